package importer

import (
	"testing"

	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRules() Rules {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	return RulesFromConfig(cfg)
}

func raw(row int, kv ...string) RawRow {
	r := RawRow{Row: row, Line: row + 1, Values: map[Column]string{}}
	for i := 0; i+1 < len(kv); i += 2 {
		r.Values[Column(kv[i])] = kv[i+1]
	}
	return r
}

func TestValidate_AppliesDefaults(t *testing.T) {
	rows, errs := Validate([]RawRow{
		raw(1, "username", "t01", "credential", "abcdef", "name", "Ann"),
		raw(2, "username", "t02", "credential", "abcdef", "name", "Bob", "role", "Manager", "department", "HR", "position", "Head"),
	}, testRules())
	require.Empty(t, errs)
	require.Len(t, rows, 2)

	assert.Equal(t, models.LowestRole, rows[0].Role)
	assert.Equal(t, "Staff", rows[0].Position)
	assert.Equal(t, "general", rows[0].Department)

	assert.Equal(t, models.RoleManager, rows[1].Role)
	assert.Equal(t, "hr", rows[1].Department)
	assert.Equal(t, "Head", rows[1].Position)
}

func TestValidate_OneErrorPerRow(t *testing.T) {
	tests := []struct {
		name  string
		row   RawRow
		field string
	}{
		{"missing username", raw(1, "credential", "abcdef", "name", "A"), "username"},
		{"missing credential", raw(1, "username", "t01", "name", "A"), "credential"},
		{"uppercase username", raw(1, "username", "T01", "credential", "abcdef", "name", "A"), "username"},
		{"username with space", raw(1, "username", "t 01", "credential", "abcdef", "name", "A"), "username"},
		{"short credential", raw(1, "username", "t01", "credential", "short"), "credential"},
		{"missing name", raw(1, "username", "t01", "credential", "abcdef"), "name"},
		{"unknown role", raw(1, "username", "t01", "credential", "abcdef", "name", "A", "role", "root"), "role"},
		{"unknown department", raw(1, "username", "t01", "credential", "abcdef", "name", "A", "department", "sales"), "department"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, errs := Validate([]RawRow{tt.row}, testRules())
			assert.Nil(t, rows)
			require.Len(t, errs, 1)
			assert.Equal(t, 1, errs[0].Row)
			assert.Equal(t, tt.field, errs[0].Field)
		})
	}
}

func TestValidate_DuplicateUsername(t *testing.T) {
	_, errs := Validate([]RawRow{
		raw(1, "username", "t01", "credential", "abcdef", "name", "A"),
		raw(2, "username", "t02", "credential", "abcdef", "name", "B"),
		raw(3, "username", "t01", "credential", "abcdef", "name", "C"),
	}, testRules())
	require.Len(t, errs, 1)
	assert.Equal(t, 3, errs[0].Row)
	assert.Contains(t, errs[0].Message, "row 1")
}

func TestValidate_ShortCredentialScenario(t *testing.T) {
	rows, errs := Validate([]RawRow{
		raw(1, "username", "t01", "credential", "abcdef", "name", "A"),
		raw(2, "username", "t01", "credential", "short"),
	}, testRules())

	assert.Nil(t, rows)
	require.Len(t, errs, 1)
	assert.Equal(t, 2, errs[0].Row)
	assert.Equal(t, "credential", errs[0].Field)
}
