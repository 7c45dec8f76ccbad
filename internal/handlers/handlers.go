package handlers

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"catdomains/internal/apperrors"
	"catdomains/internal/models"
	"catdomains/internal/repository"
	"catdomains/internal/services"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

// response mirrors the {"success": ..., "message": ...} envelope the admin
// UI expects.
type response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type DomainHandler struct {
	domains   *services.DomainService
	imports   *services.ImportService
	links     *services.LinkService
	maxUpload int64
}

func NewDomainHandler(domains *services.DomainService, imports *services.ImportService, links *services.LinkService, maxUpload int64) *DomainHandler {
	return &DomainHandler{domains: domains, imports: imports, links: links, maxUpload: maxUpload}
}

// RegisterRoutes mounts the JSON API under /api and the management page,
// all guarded by auth.
func RegisterRoutes(e *echo.Echo, h *DomainHandler, auth echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health)
	e.GET("/categories/:id/domains", h.DomainsPage, auth)

	api := e.Group("/api", auth)
	api.GET("/categories/:id/domains", h.ListDomains)
	api.POST("/categories/:id/domains", h.AddDomain)
	api.DELETE("/categories/:id/domains/:domain", h.DisableDomain)
	api.POST("/domains/import", h.ImportDomains)
	api.GET("/domains/example.csv", h.ExampleCSV)
	api.GET("/entities", h.EntitiesByEmail)
	api.POST("/users", h.RegisterUser)
	api.POST("/users/link", h.LinkUsers)
}

func (h *DomainHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *DomainHandler) ListDomains(c echo.Context) error {
	id, err := categoryID(c)
	if err != nil {
		return respondError(c, err)
	}

	domains, err := h.domains.List(c.Request().Context(), id, listOptions(c))
	if err != nil {
		return respondError(c, err)
	}
	if domains == nil {
		domains = []models.DomainAssociation{}
	}
	return c.JSON(http.StatusOK, response{Success: true, Data: domains})
}

func (h *DomainHandler) AddDomain(c echo.Context) error {
	id, err := categoryID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req struct {
		DomainName string `json:"domain_name" form:"domain_name"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, &apperrors.ValidationError{Reason: "invalid request body"})
	}

	d, err := h.domains.Add(c.Request().Context(), id, req.DomainName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, response{Success: true, Data: d})
}

func (h *DomainHandler) DisableDomain(c echo.Context) error {
	id, err := categoryID(c)
	if err != nil {
		return respondError(c, err)
	}
	domain, err := url.PathUnescape(c.Param("domain"))
	if err != nil {
		return respondError(c, &apperrors.ValidationError{Field: "domain", Reason: "is not a valid path segment"})
	}

	if err := h.domains.Disable(c.Request().Context(), id, domain); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response{Success: true})
}

// ImportDomains reconciles every domain association with the uploaded
// "domainscsv" file.
func (h *DomainHandler) ImportDomains(c echo.Context) error {
	fh, err := c.FormFile("domainscsv")
	if err != nil {
		return respondError(c, &apperrors.ValidationError{Field: "domainscsv", Reason: "file is required"})
	}
	if h.maxUpload > 0 && fh.Size > h.maxUpload {
		return c.JSON(http.StatusRequestEntityTooLarge, response{Message: "file is too large"})
	}

	f, err := fh.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer f.Close()

	var r io.Reader = f
	if h.maxUpload > 0 {
		r = io.LimitReader(f, h.maxUpload)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return respondError(c, err)
	}

	report, err := h.imports.ImportCSV(c.Request().Context(), content)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response{Success: true, Data: report})
}

func (h *DomainHandler) ExampleCSV(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename=example.csv")
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", services.ExampleCSV())
}

func (h *DomainHandler) EntitiesByEmail(c echo.Context) error {
	email := strings.TrimSpace(c.QueryParam("email"))
	if email == "" {
		return respondError(c, &apperrors.ValidationError{Field: "email", Reason: "is required"})
	}

	names, err := h.domains.EntitiesByEmail(c.Request().Context(), email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response{Success: true, Data: names})
}

func (h *DomainHandler) RegisterUser(c echo.Context) error {
	var req struct {
		Email      string `json:"email"`
		CategoryID *uint  `json:"category_id"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, &apperrors.ValidationError{Reason: "invalid request body"})
	}

	u, err := h.links.Register(c.Request().Context(), req.Email, req.CategoryID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, response{Success: true, Data: u})
}

func (h *DomainHandler) LinkUsers(c echo.Context) error {
	var req struct {
		UserIDs    []uint `json:"user_ids"`
		CategoryID *uint  `json:"category_id"`
	}
	if err := c.Bind(&req); err != nil {
		return respondError(c, &apperrors.ValidationError{Reason: "invalid request body"})
	}

	users, err := h.links.LinkUsers(c.Request().Context(), req.UserIDs, req.CategoryID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, response{Success: true, Data: users})
}

func categoryID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, &apperrors.ValidationError{Field: "id", Reason: "must be a positive integer"}
	}
	return uint(id), nil
}

func listOptions(c echo.Context) repository.ListOptions {
	return repository.ListOptions{
		Order:  c.QueryParam("order"),
		SortBy: c.QueryParam("sortby"),
		Search: c.QueryParam("search"),
	}
}

func respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	msg := "internal error"

	switch {
	case errors.Is(err, apperrors.ErrValidation):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, apperrors.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrPersistence):
		msg = err.Error()
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.JSON(status, response{Success: false, Message: msg})
}
