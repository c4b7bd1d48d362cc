package identity

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func setup(t *testing.T) (*SQLiteProvider, *fakeClock) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := Open(context.Background(), fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()

	clk := &fakeClock{t: time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)}
	return NewSQLiteProvider(db, cfg, logging.Discard(), WithClock(clk.Now)), clk
}

func TestCreateAccount_AndSignIn(t *testing.T) {
	p, _ := setup(t)
	ctx := context.Background()

	id, err := p.CreateAccount(ctx, Credentials{Email: "T01@staff.local", Password: "abcdef", DisplayName: "Ann"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	pair, err := p.SignIn(ctx, "t01@staff.local", "abcdef")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
	assert.Len(t, pair.RefreshToken, 64)

	_, err = p.SignIn(ctx, "t01@staff.local", "wrong!")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = p.SignIn(ctx, "nobody@staff.local", "abcdef")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestCreateAccount_DuplicateEmailConflicts(t *testing.T) {
	p, _ := setup(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, Credentials{Email: "t01@staff.local", Password: "abcdef"})
	require.NoError(t, err)

	_, err = p.CreateAccount(ctx, Credentials{Email: "T01@staff.local", Password: "other1"})
	require.ErrorIs(t, err, common.ErrConflict)
}

func TestCreateAccount_RequiresCredentials(t *testing.T) {
	p, _ := setup(t)

	_, err := p.CreateAccount(context.Background(), Credentials{Email: "t01@staff.local"})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestClaims_MissingThenSet(t *testing.T) {
	p, clk := setup(t)
	ctx := context.Background()

	id, err := p.CreateAccount(ctx, Credentials{Email: "t01@staff.local", Password: "abcdef"})
	require.NoError(t, err)

	_, err = p.GetClaims(ctx, id)
	require.ErrorIs(t, err, common.ErrClaimsMissing)

	want := models.Claims{Role: models.RoleManager, UserName: "t01", LastSyncedAt: clk.Now()}
	require.NoError(t, p.SetClaims(ctx, id, want))

	got, err := p.GetClaims(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want.Role, got.Role)
	assert.Equal(t, want.UserName, got.UserName)
	assert.True(t, want.LastSyncedAt.Equal(got.LastSyncedAt))
}

func TestClaims_UnknownAccount(t *testing.T) {
	p, _ := setup(t)
	ctx := context.Background()

	_, err := p.GetClaims(ctx, "missing")
	require.ErrorIs(t, err, common.ErrorNotFound)

	err = p.SetClaims(ctx, "missing", models.Claims{Role: models.RoleStaff})
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAccessTokenCarriesClaims(t *testing.T) {
	p, _ := setup(t)
	ctx := context.Background()

	id, err := p.CreateAccount(ctx, Credentials{Email: "t01@staff.local", Password: "abcdef"})
	require.NoError(t, err)
	require.NoError(t, p.SetClaims(ctx, id, models.Claims{Role: models.RoleAdmin, UserName: "t01"}))

	pair, err := p.SignIn(ctx, "t01@staff.local", "abcdef")
	require.NoError(t, err)

	tc, err := p.VerifyAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, id, tc.Subject)
	assert.Equal(t, models.RoleAdmin, tc.Role)
}

func TestRevokeSessions_InvalidatesIssuedTokens(t *testing.T) {
	p, _ := setup(t)
	ctx := context.Background()

	id, err := p.CreateAccount(ctx, Credentials{Email: "t01@staff.local", Password: "abcdef"})
	require.NoError(t, err)
	require.NoError(t, p.SetClaims(ctx, id, models.Claims{Role: models.RoleAdmin, UserName: "t01"}))

	stale, err := p.SignIn(ctx, "t01@staff.local", "abcdef")
	require.NoError(t, err)

	require.NoError(t, p.SetClaims(ctx, id, models.Claims{Role: models.RoleStaff, UserName: "t01"}))
	require.NoError(t, p.RevokeSessions(ctx, id))

	_, err = p.VerifyAccessToken(ctx, stale.AccessToken)
	require.ErrorIs(t, err, common.ErrTokenRevoked)

	_, err = p.Refresh(ctx, stale.RefreshToken)
	require.ErrorIs(t, err, common.ErrorUnauthorized)

	fresh, err := p.SignIn(ctx, "t01@staff.local", "abcdef")
	require.NoError(t, err)
	tc, err := p.VerifyAccessToken(ctx, fresh.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStaff, tc.Role)
}

func TestRevokeSessions_UnknownAccount(t *testing.T) {
	p, _ := setup(t)
	require.ErrorIs(t, p.RevokeSessions(context.Background(), "missing"), common.ErrorNotFound)
}

func TestRefresh_RotatesAndPicksUpNewClaims(t *testing.T) {
	p, _ := setup(t)
	ctx := context.Background()

	id, err := p.CreateAccount(ctx, Credentials{Email: "t01@staff.local", Password: "abcdef"})
	require.NoError(t, err)
	require.NoError(t, p.SetClaims(ctx, id, models.Claims{Role: models.RoleStaff, UserName: "t01"}))

	first, err := p.SignIn(ctx, "t01@staff.local", "abcdef")
	require.NoError(t, err)

	require.NoError(t, p.SetClaims(ctx, id, models.Claims{Role: models.RoleManager, UserName: "t01"}))

	second, err := p.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	tc, err := p.VerifyAccessToken(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, tc.Role)

	_, err = p.Refresh(ctx, first.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized, "refresh tokens are single use")
}

func TestRefresh_Expired(t *testing.T) {
	p, clk := setup(t)
	ctx := context.Background()

	_, err := p.CreateAccount(ctx, Credentials{Email: "t01@staff.local", Password: "abcdef"})
	require.NoError(t, err)

	pair, err := p.SignIn(ctx, "t01@staff.local", "abcdef")
	require.NoError(t, err)

	clk.Advance(time.Hour)
	_, err = p.Refresh(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, common.ErrRefreshTokenExpired)

	_, err = p.VerifyAccessToken(ctx, pair.AccessToken)
	require.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestUpdateAccount(t *testing.T) {
	p, _ := setup(t)
	ctx := context.Background()

	id, err := p.CreateAccount(ctx, Credentials{Email: "t01@staff.local", Password: "abcdef"})
	require.NoError(t, err)
	_, err = p.CreateAccount(ctx, Credentials{Email: "t02@staff.local", Password: "abcdef"})
	require.NoError(t, err)

	name, pw := "Ann Smith", "newpass"
	require.NoError(t, p.UpdateAccount(ctx, id, AccountUpdate{DisplayName: &name, Password: &pw}))

	_, err = p.SignIn(ctx, "t01@staff.local", "abcdef")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
	_, err = p.SignIn(ctx, "t01@staff.local", "newpass")
	assert.NoError(t, err)

	taken := "t02@staff.local"
	err = p.UpdateAccount(ctx, id, AccountUpdate{Email: &taken})
	assert.ErrorIs(t, err, common.ErrConflict)

	err = p.UpdateAccount(ctx, "missing", AccountUpdate{DisplayName: &name})
	assert.ErrorIs(t, err, common.ErrorNotFound)

	assert.NoError(t, p.UpdateAccount(ctx, "missing", AccountUpdate{}))
}

func TestDeleteAccount(t *testing.T) {
	p, _ := setup(t)
	ctx := context.Background()

	id, err := p.CreateAccount(ctx, Credentials{Email: "t01@staff.local", Password: "abcdef"})
	require.NoError(t, err)
	pair, err := p.SignIn(ctx, "t01@staff.local", "abcdef")
	require.NoError(t, err)

	require.NoError(t, p.DeleteAccount(ctx, id))
	require.ErrorIs(t, p.DeleteAccount(ctx, id), common.ErrorNotFound)

	_, err = p.VerifyAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, common.ErrTokenRevoked)
	_, err = p.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "t01@staff.local", Email("T01", "staff.local"))
}
