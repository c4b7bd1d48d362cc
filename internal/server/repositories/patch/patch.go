// Package patch builds partial-field UPDATE statements for the document store.
// Only columns on a per-collection allow-list may be written.
package patch

import (
	"fmt"
	"sort"
	"strings"
)

// Fields maps column names to new values.
type Fields map[string]any

// Columns returns the field names in a stable order.
func (f Fields) Columns() []string {
	cols := make([]string, 0, len(f))
	for c := range f {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// AllowList is the set of columns a partial update may touch.
type AllowList map[string]struct{}

// NewAllowList builds an AllowList from column names.
func NewAllowList(cols ...string) AllowList {
	a := make(AllowList, len(cols))
	for _, c := range cols {
		a[c] = struct{}{}
	}
	return a
}

// BuildUpdate renders `UPDATE <table> SET c1 = $1, ... WHERE id = $n` with
// columns in stable order. It fails on an empty patch or on a column outside
// the allow-list.
func BuildUpdate(table string, allowed AllowList, id string, f Fields) (string, []any, error) {
	if len(f) == 0 {
		return "", nil, fmt.Errorf("empty patch for %s %s", table, id)
	}

	cols := f.Columns()
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		if _, ok := allowed[c]; !ok {
			return "", nil, fmt.Errorf("column %q is not writable on %s", c, table)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", c, i+1))
		args = append(args, f[c])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d", table, strings.Join(sets, ", "), len(args))
	return query, args, nil
}
