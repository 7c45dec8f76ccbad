package models

import (
	"strings"
	"time"
)

// DomainState is the lifecycle state of a DomainAssociation.
type DomainState int

const (
	StateActive DomainState = iota
	StateDisabled
)

func (s DomainState) String() string {
	if s == StateDisabled {
		return "disabled"
	}
	return "active"
}

// DomainAssociation links an allowed email domain (or ".suffix" pattern) to
// a category. Rows are never deleted: Disable and Reactivate toggle
// DisabledAt so the history of a pair is kept.
type DomainAssociation struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	DomainName string     `gorm:"not null;index:idx_domain_category,priority:1" json:"domain_name"`
	CategoryID uint       `gorm:"column:course_categories_id;not null;index:idx_domain_category,priority:2" json:"course_categories_id"`
	CreatedAt  time.Time  `json:"created_at"`
	DisabledAt *time.Time `gorm:"index" json:"disabled_at"`
}

func (DomainAssociation) TableName() string {
	return "course_categories_domains"
}

// NewDomainAssociation returns an active association created at now.
func NewDomainAssociation(domain string, categoryID uint, now time.Time) DomainAssociation {
	return DomainAssociation{
		DomainName: NormalizeDomain(domain),
		CategoryID: categoryID,
		CreatedAt:  now,
	}
}

func (d *DomainAssociation) State() DomainState {
	if d.DisabledAt != nil {
		return StateDisabled
	}
	return StateActive
}

func (d *DomainAssociation) Active() bool {
	return d.State() == StateActive
}

// Disable soft deletes the association. Disabling a disabled association
// keeps its original DisabledAt.
func (d *DomainAssociation) Disable(now time.Time) {
	if d.DisabledAt != nil {
		return
	}
	t := now
	d.DisabledAt = &t
}

// Reactivate clears DisabledAt and restarts the association at now.
func (d *DomainAssociation) Reactivate(now time.Time) {
	d.DisabledAt = nil
	d.CreatedAt = now
}

// NormalizeDomain trims and lower-cases a domain name or pattern.
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}
