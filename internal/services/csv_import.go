package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"catdomains/internal/allowlist"
	"catdomains/internal/apperrors"
	"catdomains/internal/models"
	"catdomains/internal/repository"

	"github.com/rs/zerolog/log"
	textunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"gorm.io/gorm"
)

const (
	Separator       = ';'
	FieldDomainName = "domain_name"
	FieldIDNumber   = "idnumber"
)

var requiredFields = []string{FieldDomainName, FieldIDNumber}

// ImportRow is one validated CSV data line.
type ImportRow struct {
	Line       int
	DomainName string
	IDNumber   string
	CategoryID uint
}

// ImportReport counts what a reconciliation changed.
type ImportReport struct {
	Inserted    int `json:"inserted"`
	Reactivated int `json:"reactivated"`
	Unchanged   int `json:"unchanged"`
	Disabled    int `json:"disabled"`
}

// ImportService replaces the whole set of domain associations with the
// content of a CSV file.
type ImportService struct {
	db         *gorm.DB
	domains    *repository.DomainRepository
	categories *repository.CategoryRepository
	allow      allowlist.Source
	now        func() time.Time
}

func NewImportService(db *gorm.DB, allow allowlist.Source) *ImportService {
	return &ImportService{
		db:         db,
		domains:    repository.NewDomainRepository(db),
		categories: repository.NewCategoryRepository(db),
		allow:      allow,
		now:        time.Now,
	}
}

// ImportCSV validates content and, when every line is valid, reconciles the
// stored associations with it.
func (s *ImportService) ImportCSV(ctx context.Context, content []byte) (ImportReport, error) {
	rows, err := s.ValidateCSV(ctx, content)
	if err != nil {
		return ImportReport{}, err
	}
	return s.Reconcile(ctx, rows)
}

// ValidateCSV checks the whole file and stops at the first invalid line.
// Nothing is written.
func (s *ImportService) ValidateCSV(ctx context.Context, content []byte) ([]ImportRow, error) {
	lines, err := splitLines(content)
	if err != nil {
		return nil, &apperrors.ValidationError{Line: 1, Reason: "file is not valid text"}
	}
	if len(lines) <= 1 {
		return nil, &apperrors.ValidationError{Line: 1, Reason: "file has no data lines"}
	}

	header, err := parseHeader(lines[0])
	if err != nil {
		return nil, &apperrors.ValidationError{Line: 1, Reason: err.Error()}
	}

	allow := s.allow()
	rows := make([]ImportRow, 0, len(lines)-1)

	for i, line := range lines[1:] {
		lineNo := i + 2
		if strings.TrimSpace(line) == "" {
			continue
		}
		if !strings.ContainsRune(line, Separator) {
			return nil, &apperrors.ValidationError{Line: lineNo, Reason: fmt.Sprintf("missing %q separator", string(Separator))}
		}

		columns, err := splitColumns(line)
		if err != nil {
			return nil, &apperrors.ValidationError{Line: lineNo, Reason: "malformed line"}
		}

		if len(columns) != len(requiredFields) {
			return nil, &apperrors.ValidationError{
				Line:   lineNo,
				Reason: fmt.Sprintf("expected %d non-empty fields, got %d", len(requiredFields), len(columns)),
			}
		}

		row := ImportRow{
			Line:       lineNo,
			DomainName: models.NormalizeDomain(columns[header[FieldDomainName]]),
			IDNumber:   columns[header[FieldIDNumber]],
		}

		cat, err := s.categories.ByIDNumber(ctx, row.IDNumber)
		if errors.Is(err, apperrors.ErrNotFound) || (err == nil && !cat.MainEntity) {
			return nil, &apperrors.ValidationError{Line: lineNo, Field: FieldIDNumber, Reason: fmt.Sprintf("unknown entity %q", row.IDNumber)}
		}
		if err != nil {
			return nil, apperrors.AtLine(err, lineNo)
		}
		row.CategoryID = cat.ID

		if !allow.IsWhitelisted(row.DomainName) {
			return nil, &apperrors.ValidationError{Line: lineNo, Field: FieldDomainName, Reason: fmt.Sprintf("%q is not an allowed email domain", row.DomainName)}
		}

		rows = append(rows, row)
	}

	return rows, nil
}

// Import reconciles rows and reports whether it completed.
func (s *ImportService) Import(ctx context.Context, rows []ImportRow) (bool, error) {
	if _, err := s.Reconcile(ctx, rows); err != nil {
		return false, err
	}
	return true, nil
}

type pair struct {
	domain     string
	categoryID uint
}

// Reconcile makes the set of active associations equal to the pairs in
// rows, in one transaction: new pairs are inserted, disabled pairs are
// reactivated, and active pairs missing from rows are disabled last.
func (s *ImportService) Reconcile(ctx context.Context, rows []ImportRow) (ImportReport, error) {
	var report ImportReport
	now := s.now()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		domains := s.domains.WithTx(tx)

		existing, err := domains.All(ctx)
		if err != nil {
			return err
		}
		byPair := make(map[pair][]*models.DomainAssociation, len(existing))
		for i := range existing {
			d := &existing[i]
			k := pair{models.NormalizeDomain(d.DomainName), d.CategoryID}
			byPair[k] = append(byPair[k], d)
		}

		present := make(map[pair]bool, len(rows))
		for _, row := range rows {
			k := pair{models.NormalizeDomain(row.DomainName), row.CategoryID}
			if present[k] {
				continue
			}
			present[k] = true

			current := byPair[k]
			switch {
			case anyActive(current):
				n, err := disableDuplicates(ctx, domains, current, now)
				if err != nil {
					return apperrors.AtLine(err, row.Line)
				}
				report.Disabled += n
				report.Unchanged++
			case len(current) > 0:
				latest := current[len(current)-1]
				latest.Reactivate(now)
				if err := domains.SaveLifecycle(ctx, latest); err != nil {
					return apperrors.AtLine(err, row.Line)
				}
				report.Reactivated++
			default:
				d := models.NewDomainAssociation(k.domain, k.categoryID, now)
				if err := domains.Add(ctx, &d); err != nil {
					return apperrors.AtLine(err, row.Line)
				}
				report.Inserted++
			}
		}

		for i := range existing {
			d := &existing[i]
			if !d.Active() || present[pair{models.NormalizeDomain(d.DomainName), d.CategoryID}] {
				continue
			}
			d.Disable(now)
			if err := domains.SaveLifecycle(ctx, d); err != nil {
				return err
			}
			report.Disabled++
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("domains import rolled back")
		return ImportReport{}, err
	}

	log.Info().
		Int("inserted", report.Inserted).
		Int("reactivated", report.Reactivated).
		Int("unchanged", report.Unchanged).
		Int("disabled", report.Disabled).
		Msg("domains imported")
	return report, nil
}

const exampleCSV = "domain_name;idnumber\n" +
	"example.com;entity1\n" +
	".example.org;entity2\n"

// ExampleCSV returns a sample file users can start from.
func ExampleCSV() []byte {
	return []byte(exampleCSV)
}

// disableDuplicates keeps the newest active row of a pair and disables the
// others. ds is in id order.
func disableDuplicates(ctx context.Context, domains *repository.DomainRepository, ds []*models.DomainAssociation, now time.Time) (int, error) {
	keep := -1
	for i, d := range ds {
		if d.Active() {
			keep = i
		}
	}

	disabled := 0
	for i, d := range ds {
		if i == keep || !d.Active() {
			continue
		}
		d.Disable(now)
		if err := domains.SaveLifecycle(ctx, d); err != nil {
			return disabled, err
		}
		disabled++
	}
	if disabled > 0 {
		log.Warn().Str("domain", ds[keep].DomainName).Uint("category", ds[keep].CategoryID).
			Int("disabled", disabled).Msg("duplicate active domain rows disabled")
	}
	return disabled, nil
}

func anyActive(ds []*models.DomainAssociation) bool {
	for _, d := range ds {
		if d.Active() {
			return true
		}
	}
	return false
}

// splitLines decodes content (UTF-8, or UTF-16 with a byte order mark),
// normalizes line breaks and drops trailing blank lines.
func splitLines(content []byte) ([]string, error) {
	decoder := textunicode.BOMOverride(textunicode.UTF8.NewDecoder())
	text, _, err := transform.Bytes(decoder, content)
	if err != nil {
		return nil, err
	}

	normalized := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(string(text))
	lines := strings.Split(normalized, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// splitColumns parses one CSV line and returns its cleaned, non-empty
// fields.
func splitColumns(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(line)))
	r.Comma = Separator
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	fields, err := r.Read()
	if err != nil {
		return nil, err
	}

	columns := make([]string, 0, len(fields))
	for _, f := range fields {
		if c := cleanColumn(f); c != "" {
			columns = append(columns, c)
		}
	}
	return columns, nil
}

// cleanColumn trims a field and strips control and format characters.
func cleanColumn(s string) string {
	s, _, _ = transform.String(runes.Remove(runes.In(unicode.C)), s)
	return strings.TrimSpace(s)
}

// parseHeader reads the first line of the file, which must name both
// fields.
func parseHeader(line string) (map[string]int, error) {
	if !strings.ContainsRune(line, Separator) {
		return nil, fmt.Errorf("header must be %q", strings.Join(requiredFields, string(Separator)))
	}
	columns, err := splitColumns(line)
	if err != nil {
		return nil, errors.New("malformed header")
	}
	return headerIndex(columns)
}

func headerIndex(columns []string) (map[string]int, error) {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		idx[strings.ToLower(c)] = i
	}
	if len(columns) != len(requiredFields) || len(idx) != len(requiredFields) {
		return nil, fmt.Errorf("header must be %q", strings.Join(requiredFields, string(Separator)))
	}
	for _, f := range requiredFields {
		if _, ok := idx[f]; !ok {
			return nil, fmt.Errorf("header must be %q", strings.Join(requiredFields, string(Separator)))
		}
	}
	return idx, nil
}
