package handlers

import (
	"net/http"

	"catdomains/internal/models"

	"github.com/labstack/echo/v4"
)

type domainsPage struct {
	Category *models.Category
	Domains  []models.DomainAssociation
	Search   string
}

// DomainsPage renders the management page of one category.
func (h *DomainHandler) DomainsPage(c echo.Context) error {
	id, err := categoryID(c)
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	cat, err := h.domains.Category(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	opts := listOptions(c)
	domains, err := h.domains.List(ctx, id, opts)
	if err != nil {
		return respondError(c, err)
	}

	return c.Render(http.StatusOK, "domains.html", domainsPage{
		Category: cat,
		Domains:  domains,
		Search:   opts.Search,
	})
}
