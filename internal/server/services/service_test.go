package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/identity/identitytest"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/batch"
	"github.com/dmitrijs2005/staffkeeper/internal/server/claimsync"
	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
	"github.com/dmitrijs2005/staffkeeper/internal/server/importer"
	"github.com/dmitrijs2005/staffkeeper/internal/server/integrity"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/categories"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serviceTime = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	provider *identitytest.Provider
	svc      *StaffService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCategories(t, nil)
}

func newFixtureWithCategories(t *testing.T, wrap func(categories.Repository) categories.Repository) *fixture {
	t.Helper()

	cfg := &config.Config{}
	cfg.LoadDefaults()
	now := func() time.Time { return serviceTime }
	l := logging.Discard()

	store := memory.New()
	provider := identitytest.New()
	ex := batch.NewExecutor(store, cfg.GroupSize(), l)

	cats := store.Categories()
	if wrap != nil {
		cats = wrap(cats)
	}

	svc := NewStaffService(
		store.Users(),
		cats,
		integrity.New(cats, store.Entries(), ex, now, l),
		claimsync.New(store.Users(), provider, now, l),
		importer.New(store.Users(), provider, ex, importer.RulesFromConfig(cfg), now, l),
		now,
		l,
	)

	f := &fixture{store: store, provider: provider, svc: svc}
	f.addUser(t, "root", models.RoleSuperAdmin)
	f.addUser(t, "boss", models.RoleAdmin)
	f.addUser(t, "lead", models.RoleManager)
	f.addUser(t, "t01", models.RoleStaff)
	return f
}

func (f *fixture) addUser(t *testing.T, username string, role models.Role) {
	t.Helper()
	ext := f.provider.Seed(username+"@staff.local", &models.Claims{Role: role, UserName: username})
	_, err := f.store.Users().Create(context.Background(), &models.User{
		ID: "id-" + username, UserName: username, Role: role, ExternalID: ext,
	})
	require.NoError(t, err)
}

func (f *fixture) actor(t *testing.T, username string) Actor {
	t.Helper()
	a, err := f.svc.ResolveActor(context.Background(), username)
	require.NoError(t, err)
	return a
}

func TestResolveActor(t *testing.T) {
	f := newFixture(t)

	a := f.actor(t, "boss")
	assert.Equal(t, Actor{UserName: "boss", Role: models.RoleAdmin}, a)

	_, err := f.svc.ResolveActor(context.Background(), "ghost")
	require.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestPermissionCheckedBeforeSideEffects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	staff := f.actor(t, "t01")
	lead := f.actor(t, "lead")
	writes := f.store.Writes()
	calls := len(f.provider.Calls())

	_, err := f.svc.SaveCategory(ctx, staff, &models.Category{Name: "Teaching"})
	assert.ErrorIs(t, err, common.ErrPermission)
	_, err = f.svc.DeleteCategory(ctx, lead, "x", "")
	assert.ErrorIs(t, err, common.ErrPermission)
	_, err = f.svc.MigrateEntries(ctx, lead, "x", "y")
	assert.ErrorIs(t, err, common.ErrPermission)
	_, err = f.svc.SyncAllRoles(ctx, lead)
	assert.ErrorIs(t, err, common.ErrPermission)
	_, err = f.svc.SyncOneRole(ctx, staff, "t01")
	assert.ErrorIs(t, err, common.ErrPermission)
	err = f.svc.ForceInvalidate(ctx, f.actor(t, "boss"), "t01", true)
	assert.ErrorIs(t, err, common.ErrPermission)
	_, err = f.svc.ApplyImport(ctx, lead, importer.File{Name: "a.csv", Data: []byte("username,password,name\nx1,abcdef,X\n")})
	assert.ErrorIs(t, err, common.ErrPermission)
	_, err = f.svc.PreviewImport(ctx, staff, importer.File{Name: "a.csv"})
	assert.ErrorIs(t, err, common.ErrPermission)

	assert.Equal(t, writes, f.store.Writes())
	assert.Len(t, f.provider.Calls(), calls)
}

func TestSaveCategory_CreateUpdateAndConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.actor(t, "boss")

	books, err := f.svc.SaveCategory(ctx, boss, &models.Category{Name: " Books ", DisplayOrder: 2})
	require.NoError(t, err)
	assert.NotEmpty(t, books.ID)
	assert.Equal(t, "Books", books.Name)
	assert.Equal(t, "boss", books.CreatedBy)
	assert.Equal(t, serviceTime, books.CreatedAt)

	_, err = f.svc.SaveCategory(ctx, boss, &models.Category{Name: "Articles", DisplayOrder: 1})
	require.NoError(t, err)

	_, err = f.svc.SaveCategory(ctx, boss, &models.Category{Name: "Books"})
	require.ErrorIs(t, err, common.ErrConflict)

	books.Name = "Monographs"
	_, err = f.svc.SaveCategory(ctx, boss, books)
	require.NoError(t, err)

	_, err = f.svc.SaveCategory(ctx, boss, &models.Category{ID: "nope", Name: "Ghost"})
	require.ErrorIs(t, err, common.ErrorNotFound)

	_, err = f.svc.SaveCategory(ctx, boss, &models.Category{Name: "  "})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = f.svc.SaveCategory(ctx, boss, &models.Category{Name: "Bad", FormConfig: []byte("{")})
	require.ErrorIs(t, err, common.ErrValidation)

	list, err := f.svc.GetAllCategories(ctx, f.actor(t, "t01"))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Articles", list[0].Name)
	assert.Equal(t, "Monographs", list[1].Name)
}

func TestRenameKeepsCachedEntryName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.actor(t, "boss")

	c, err := f.svc.SaveCategory(ctx, boss, &models.Category{Name: "Books"})
	require.NoError(t, err)
	require.NoError(t, f.store.Entries().Create(ctx, &models.Entry{ID: "e1", CategoryID: c.ID, CategoryName: "Books"}))

	c.Name = "Monographs"
	_, err = f.svc.SaveCategory(ctx, boss, c)
	require.NoError(t, err)

	e, err := f.store.Entries().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, e.CategoryID)
	assert.Equal(t, "Books", e.CategoryName, "cached name is display only")
}

func TestCategoryDeletionFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.actor(t, "boss")

	a, err := f.svc.SaveCategory(ctx, boss, &models.Category{Name: "A"})
	require.NoError(t, err)
	b, err := f.svc.SaveCategory(ctx, boss, &models.Category{Name: "B"})
	require.NoError(t, err)
	for _, id := range []string{"e1", "e2"} {
		require.NoError(t, f.store.Entries().Create(ctx, &models.Entry{ID: id, CategoryID: a.ID, CategoryName: "A"}))
	}

	n, err := f.svc.CheckUsage(ctx, f.actor(t, "lead"), a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	o, err := f.svc.DeleteCategory(ctx, boss, a.ID, "")
	require.ErrorIs(t, err, common.ErrCategoryInUse)
	assert.Equal(t, integrity.AwaitingTarget, o.State)
	assert.Equal(t, 2, o.Usage)

	o, err = f.svc.DeleteCategory(ctx, boss, a.ID, b.ID)
	require.NoError(t, err)
	assert.Equal(t, integrity.Done, o.State)
	assert.Equal(t, 2, o.MigratedCount)

	e, err := f.store.Entries().GetByID(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "B", e.CategoryName)
	assert.Equal(t, "boss", e.MigratedBy)
}

type failingNames struct {
	categories.Repository
}

func (failingNames) GetByName(context.Context, string) (*models.Category, error) {
	return nil, errors.New("connection reset")
}

func TestSaveCategory_StoreFailureIsAuthoritative(t *testing.T) {
	f := newFixtureWithCategories(t, func(r categories.Repository) categories.Repository {
		return failingNames{r}
	})

	_, err := f.svc.SaveCategory(context.Background(), f.actor(t, "boss"), &models.Category{Name: "A"})
	require.ErrorIs(t, err, common.ErrProvider)
	assert.False(t, common.IsBestEffort(err))
}

func TestRoleOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.actor(t, "root")

	require.NoError(t, f.store.Users().UpdateFields(ctx, "id-t01", map[string]any{"role": string(models.RoleManager)}))

	rep, err := f.svc.VerifyRoles(ctx, f.actor(t, "lead"))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.MismatchCount)
	assert.Equal(t, "t01", rep.Mismatches[0].UserName)

	claims, err := f.svc.SyncOneRole(ctx, root, "t01")
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, claims.Role)

	_, err = f.svc.SyncOneRole(ctx, root, "ghost")
	require.ErrorIs(t, err, common.ErrorNotFound)

	sr, err := f.svc.SyncAllRoles(ctx, root)
	require.NoError(t, err)
	assert.Zero(t, sr.Attempted)

	require.ErrorIs(t, f.svc.ForceInvalidate(ctx, root, "t01", false), common.ErrConfirmationRequired)
	require.NoError(t, f.svc.ForceInvalidate(ctx, root, "t01", true))
}

func TestImportOperations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boss := f.actor(t, "boss")
	file := importer.File{Name: "staff.csv", Data: []byte("username,password,name\nn01,abcdef,New One\n")}

	prev, err := f.svc.PreviewImport(ctx, boss, file)
	require.NoError(t, err)
	assert.Equal(t, 1, prev.Created)

	rep, err := f.svc.ApplyImport(ctx, boss, file)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Created)

	u, err := f.store.Users().GetUserByLogin(ctx, "n01")
	require.NoError(t, err)
	assert.Equal(t, "boss", u.CreatedBy)
}
