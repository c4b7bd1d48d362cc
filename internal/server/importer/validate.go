package importer

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

var userNamePattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Rules are the validation settings and defaults applied to every row.
type Rules struct {
	MinCredentialLength int
	Departments         []string
	DefaultPosition     string
	DefaultDepartment   string
	EmailDomain         string
}

// RulesFromConfig extracts import rules from cfg.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		MinCredentialLength: cfg.MinCredentialLength,
		Departments:         cfg.Departments,
		DefaultPosition:     cfg.DefaultPosition,
		DefaultDepartment:   cfg.DefaultDepartment,
		EmailDomain:         cfg.IdentityEmailDomain,
	}
}

// Row is a validated import row with defaults applied. It is never persisted.
type Row struct {
	Row        int
	UserName   string
	Credential string
	Name       string
	Position   string
	Department string
	Role       models.Role
}

// User returns the desired user record for r.
func (r Row) User() models.User {
	return models.User{
		UserName:   r.UserName,
		Name:       r.Name,
		Position:   r.Position,
		Department: r.Department,
		Role:       r.Role,
	}
}

// Validate checks every row and reports at most one error per row, the first
// rule it breaks. The rows are only usable when no error is returned.
func Validate(raw []RawRow, rules Rules) ([]Row, []*common.ValidationError) {
	var (
		rows []Row
		errs []*common.ValidationError
	)
	firstSeen := map[string]int{}

	for _, rr := range raw {
		row, err := validateRow(rr, rules)
		if err == nil {
			if first, dup := firstSeen[row.UserName]; dup {
				err = common.NewValidationError(rr.Row, string(ColUserName),
					fmt.Sprintf("duplicate username %q, first seen in row %d", row.UserName, first))
			} else {
				firstSeen[row.UserName] = rr.Row
			}
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, row)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return rows, nil
}

func validateRow(rr RawRow, rules Rules) (Row, *common.ValidationError) {
	v := rr.Values
	row := Row{
		Row:        rr.Row,
		UserName:   v[ColUserName],
		Credential: v[ColCredential],
		Name:       v[ColName],
		Position:   v[ColPosition],
		Department: strings.ToLower(v[ColDepartment]),
		Role:       models.Role(strings.ToLower(v[ColRole])),
	}

	for _, req := range []struct {
		col   Column
		value string
	}{
		{ColUserName, row.UserName},
		{ColCredential, row.Credential},
	} {
		if req.value == "" {
			return row, common.NewValidationError(rr.Row, string(req.col), "is required")
		}
	}

	if !userNamePattern.MatchString(row.UserName) {
		return row, common.NewValidationError(rr.Row, string(ColUserName),
			fmt.Sprintf("%q must contain only lowercase letters, digits, '_' or '-'", row.UserName))
	}

	if n := utf8.RuneCountInString(row.Credential); n < rules.MinCredentialLength {
		return row, common.NewValidationError(rr.Row, string(ColCredential),
			fmt.Sprintf("must be at least %d characters, got %d", rules.MinCredentialLength, n))
	}

	if row.Name == "" {
		return row, common.NewValidationError(rr.Row, string(ColName), "is required")
	}

	if row.Position == "" {
		row.Position = rules.DefaultPosition
	}

	if row.Role == "" {
		row.Role = models.LowestRole
	}
	if !row.Role.Valid() {
		return row, common.NewValidationError(rr.Row, string(ColRole), fmt.Sprintf("unknown role %q", row.Role))
	}

	if row.Department == "" {
		row.Department = rules.DefaultDepartment
	}
	if !slices.Contains(rules.Departments, row.Department) {
		return row, common.NewValidationError(rr.Row, string(ColDepartment), fmt.Sprintf("unknown department %q", row.Department))
	}

	return row, nil
}
