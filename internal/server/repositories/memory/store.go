// Package memory is an in-memory test double of the document store. It
// implements the user, category and entry repositories plus the grouped
// atomic write, and a group can be made to fail on demand.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/server/batch"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/categories"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/entries"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/patch"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/users"
)

// ErrInjected is returned by a group selected with FailGroup.
var ErrInjected = errors.New("injected group failure")

// Store holds every collection behind one mutex.
type Store struct {
	mu         sync.Mutex
	users      map[string]models.User
	categories map[string]models.Category
	entries    map[string]models.Entry

	writes    int
	groups    int
	failGroup int
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		users:      map[string]models.User{},
		categories: map[string]models.Category{},
		entries:    map[string]models.Entry{},
	}
}

// FailGroup makes the n-th CommitGroup call (1-based) fail without applying
// anything. Zero disables injection.
func (s *Store) FailGroup(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGroup = n
}

// Writes counts every applied create, update and delete.
func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Groups counts committed groups.
func (s *Store) Groups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.groups
}

func (s *Store) Users() users.Repository           { return &userRepo{s} }
func (s *Store) Categories() categories.Repository { return &categoryRepo{s} }
func (s *Store) Entries() entries.Repository       { return &entryRepo{s} }

var _ batch.Committer = (*Store)(nil)

// CommitGroup applies group atomically: it is validated against a snapshot
// and only swapped in when every mutation succeeds.
func (s *Store) CommitGroup(ctx context.Context, group []batch.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(group) > common.MaxBatchGroupSize {
		return fmt.Errorf("group of %d exceeds limit %d", len(group), common.MaxBatchGroupSize)
	}
	if s.failGroup == s.groups+1 {
		s.failGroup = 0
		return ErrInjected
	}

	u := clone(s.users)
	e := clone(s.entries)

	for i, m := range group {
		var err error
		switch {
		case m.Target == batch.TargetEntries && m.Op == batch.OpUpdate:
			err = updateEntry(e, m.ID, m.Fields)
		case m.Target == batch.TargetUsers && m.Op == batch.OpUpdate:
			err = updateUser(u, m.ID, m.Fields)
		default:
			err = fmt.Errorf("unsupported mutation %s on %s", m.Op, m.Target)
		}
		if err != nil {
			return fmt.Errorf("mutation %d (%s %s %s): %w", i, m.Op, m.Target, m.ID, err)
		}
	}

	s.users, s.entries = u, e
	s.writes += len(group)
	s.groups++
	return nil
}

func clone[T any](m map[string]T) map[string]T {
	out := make(map[string]T, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func remove[T any](m map[string]T, resource, id string) error {
	if _, ok := m[id]; !ok {
		return common.NewNotFoundError(resource, id)
	}
	delete(m, id)
	return nil
}

func checkAllowed(allowed patch.AllowList, table string, f patch.Fields) error {
	if len(f) == 0 {
		return fmt.Errorf("empty patch for %s", table)
	}
	for _, col := range f.Columns() {
		if _, ok := allowed[col]; !ok {
			return fmt.Errorf("column %q is not writable on %s", col, table)
		}
	}
	return nil
}

func updateUser(m map[string]models.User, id string, f patch.Fields) error {
	if err := checkAllowed(users.Writable, "users", f); err != nil {
		return err
	}
	u, ok := m[id]
	if !ok {
		return common.NewNotFoundError("user", id)
	}
	for _, col := range f.Columns() {
		v := f[col]
		switch col {
		case "name":
			u.Name = asString(v)
		case "position":
			u.Position = asString(v)
		case "department":
			u.Department = asString(v)
		case "role":
			u.Role = models.Role(asString(v))
		case "external_id":
			u.ExternalID = asString(v)
		case "updated_at":
			u.UpdatedAt = asTime(v)
		case "updated_by":
			u.UpdatedBy = asString(v)
		}
	}
	m[id] = u
	return nil
}

func updateEntry(m map[string]models.Entry, id string, f patch.Fields) error {
	if err := checkAllowed(entries.Writable, "entries", f); err != nil {
		return err
	}
	e, ok := m[id]
	if !ok {
		return common.NewNotFoundError("entry", id)
	}
	for _, col := range f.Columns() {
		v := f[col]
		switch col {
		case "category_id":
			e.CategoryID = asString(v)
		case "category_name":
			e.CategoryName = asString(v)
		case "payload":
			e.Payload = asBytes(v)
		case "migrated_from":
			e.MigratedFrom = asString(v)
		case "migrated_at":
			if t := asTime(v); !t.IsZero() {
				e.MigratedAt = &t
			} else {
				e.MigratedAt = nil
			}
		case "migrated_by":
			e.MigratedBy = asString(v)
		case "updated_at":
			e.UpdatedAt = asTime(v)
		}
	}
	m[id] = e
	return nil
}

func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case models.Role:
		return string(x)
	}
	return fmt.Sprint(v)
}

func asTime(v any) time.Time {
	switch x := v.(type) {
	case time.Time:
		return x
	case *time.Time:
		if x != nil {
			return *x
		}
	}
	return time.Time{}
}

func asBytes(v any) []byte {
	switch x := v.(type) {
	case []byte:
		return append([]byte(nil), x...)
	case string:
		return []byte(x)
	}
	return nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.users {
		if strings.EqualFold(existing.UserName, u.UserName) {
			return nil, common.NewConflictError("user", u.UserName, "username already exists")
		}
	}
	r.s.users[u.ID] = *u
	r.s.writes++
	return u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, common.NewNotFoundError("user", id)
	}
	return &u, nil
}

func (r *userRepo) GetUserByLogin(ctx context.Context, login string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.UserName == login {
			return &u, nil
		}
	}
	return nil, common.NewNotFoundError("user", login)
}

func (r *userRepo) List(ctx context.Context) ([]*models.User, error) {
	return r.list(func(*models.User) bool { return true }), nil
}

func (r *userRepo) ListProvisioned(ctx context.Context) ([]*models.User, error) {
	return r.list((*models.User).HasExternalIdentity), nil
}

func (r *userRepo) list(keep func(*models.User) bool) []*models.User {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*models.User{}
	for _, u := range r.s.users {
		if keep(&u) {
			out = append(out, &u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserName < out[j].UserName })
	return out
}

func (r *userRepo) UpdateFields(ctx context.Context, id string, fields patch.Fields) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := updateUser(r.s.users, id, fields); err != nil {
		return err
	}
	r.s.writes++
	return nil
}

type categoryRepo struct{ s *Store }

func (r *categoryRepo) Create(ctx context.Context, c *models.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.categories[c.ID] = *c
	r.s.writes++
	return nil
}

func (r *categoryRepo) Update(ctx context.Context, c *models.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	existing, ok := r.s.categories[c.ID]
	if !ok {
		return common.NewNotFoundError("category", c.ID)
	}
	updated := *c
	updated.CreatedAt, updated.CreatedBy = existing.CreatedAt, existing.CreatedBy
	r.s.categories[c.ID] = updated
	r.s.writes++
	return nil
}

func (r *categoryRepo) GetByID(ctx context.Context, id string) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.categories[id]
	if !ok {
		return nil, common.NewNotFoundError("category", id)
	}
	return &c, nil
}

func (r *categoryRepo) GetByName(ctx context.Context, name string) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, c := range r.s.categories {
		if c.Name == name {
			return &c, nil
		}
	}
	return nil, common.NewNotFoundError("category", name)
}

func (r *categoryRepo) List(ctx context.Context) ([]*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*models.Category{}
	for _, c := range r.s.categories {
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (r *categoryRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := remove(r.s.categories, "category", id); err != nil {
		return err
	}
	r.s.writes++
	return nil
}

type entryRepo struct{ s *Store }

func (r *entryRepo) Create(ctx context.Context, e *models.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.entries[e.ID] = *e
	r.s.writes++
	return nil
}

func (r *entryRepo) GetByID(ctx context.Context, id string) (*models.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.entries[id]
	if !ok {
		return nil, common.NewNotFoundError("entry", id)
	}
	return &e, nil
}

func (r *entryRepo) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, e := range r.s.entries {
		if e.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (r *entryRepo) ListByCategory(ctx context.Context, categoryID string) ([]*models.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := []*models.Entry{}
	for _, e := range r.s.entries {
		if e.CategoryID == categoryID {
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *entryRepo) UpdateFields(ctx context.Context, id string, fields patch.Fields) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := updateEntry(r.s.entries, id, fields); err != nil {
		return err
	}
	r.s.writes++
	return nil
}

