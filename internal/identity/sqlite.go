package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/dbx"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/auth"
	"github.com/dmitrijs2005/staffkeeper/internal/server/config"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/google/uuid"
)

// SQLiteProvider is the bundled identity provider.
type SQLiteProvider struct {
	db                           *sql.DB
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	now                          func() time.Time
	logger                       logging.Logger
}

// Option customizes a SQLiteProvider.
type Option func(*SQLiteProvider)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *SQLiteProvider) { p.now = now }
}

// NewSQLiteProvider returns a provider over an initialized database (see Open).
func NewSQLiteProvider(db *sql.DB, cfg *config.Config, l logging.Logger, opts ...Option) *SQLiteProvider {
	p := &SQLiteProvider{
		db:                           db,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		now:                          time.Now,
		logger:                       l.With("module", common.IdentityProviderName),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

var _ Provider = (*SQLiteProvider)(nil)

type account struct {
	id         string
	email      string
	salt       []byte
	hash       []byte
	claims     sql.NullString
	generation int
}

func (p *SQLiteProvider) CreateAccount(ctx context.Context, c Credentials) (string, error) {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if email == "" || c.Password == "" {
		return "", common.NewValidationError(0, "credentials", "email and password are required")
	}

	id := uuid.NewString()
	salt, hash := hashPassword(c.Password)
	now := p.now().UnixNano()

	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		taken, err := emailTaken(ctx, tx, email, "")
		if err != nil {
			return err
		}
		if taken {
			return common.NewConflictError("account", email, "email already registered")
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO accounts (id, email, display_name, salt, password_hash, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, email, c.DisplayName, salt, hash, now, now)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	p.logger.Info(ctx, "account created", "email", email, "id", id)
	return id, nil
}

func (p *SQLiteProvider) SetClaims(ctx context.Context, externalID string, claims models.Claims) error {
	b, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("encode claims: %w", err)
	}

	res, err := p.db.ExecContext(ctx,
		`UPDATE accounts SET claims = ?, updated_at = ? WHERE id = ?`,
		string(b), p.now().UnixNano(), externalID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res, externalID)
}

func (p *SQLiteProvider) GetClaims(ctx context.Context, externalID string) (*models.Claims, error) {
	a, err := getAccount(ctx, p.db, `id = ?`, externalID)
	if err != nil {
		return nil, err
	}
	return decodeClaims(a.claims)
}

func (p *SQLiteProvider) UpdateAccount(ctx context.Context, externalID string, u AccountUpdate) error {
	if u.Empty() {
		return nil
	}

	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := getAccount(ctx, tx, `id = ?`, externalID); err != nil {
			return err
		}

		var (
			sets []string
			args []any
		)
		if u.Email != nil {
			email := strings.ToLower(strings.TrimSpace(*u.Email))
			taken, err := emailTaken(ctx, tx, email, externalID)
			if err != nil {
				return err
			}
			if taken {
				return common.NewConflictError("account", email, "email already registered")
			}
			sets = append(sets, "email = ?")
			args = append(args, email)
		}
		if u.DisplayName != nil {
			sets = append(sets, "display_name = ?")
			args = append(args, *u.DisplayName)
		}
		if u.Password != nil {
			salt, hash := hashPassword(*u.Password)
			sets = append(sets, "salt = ?", "password_hash = ?")
			args = append(args, salt, hash)
		}
		sets = append(sets, "updated_at = ?")
		args = append(args, p.now().UnixNano(), externalID)

		query := fmt.Sprintf(`UPDATE accounts SET %s WHERE id = ?`, strings.Join(sets, ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func (p *SQLiteProvider) DeleteAccount(ctx context.Context, externalID string) error {
	return dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE account_id = ?`, externalID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, externalID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return expectOne(res, externalID)
	})
}

// RevokeSessions bumps the account generation, which invalidates every access
// token issued before, and drops all refresh tokens.
func (p *SQLiteProvider) RevokeSessions(ctx context.Context, externalID string) error {
	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET generation = generation + 1, updated_at = ? WHERE id = ?`,
			p.now().UnixNano(), externalID)
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		if err := expectOne(res, externalID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE account_id = ?`, externalID); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	p.logger.Info(ctx, "sessions revoked", "id", externalID)
	return nil
}

// SignIn checks credentials and issues a token pair carrying the current claims.
func (p *SQLiteProvider) SignIn(ctx context.Context, email, password string) (*TokenPair, error) {
	a, err := getAccount(ctx, p.db, `email = ?`, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}

	if !checkPassword(password, a.salt, a.hash) {
		return nil, common.ErrorUnauthorized
	}

	var pair *TokenPair
	err = dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		pair, err = p.generateTokenPair(ctx, tx, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new pair. The new access token
// carries the claims as they are now, so a re-synced role takes effect here.
func (p *SQLiteProvider) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	var pair *TokenPair

	err := dbx.WithTx(ctx, p.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var (
			accountID string
			expires   int64
		)
		err := tx.QueryRowContext(ctx,
			`SELECT account_id, expires_at FROM refresh_tokens WHERE token = ?`, refreshToken).
			Scan(&accountID, &expires)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("db error: %w", err)
		}

		if time.Unix(0, expires).Before(p.now()) {
			return common.ErrRefreshTokenExpired
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE token = ?`, refreshToken); err != nil {
			return fmt.Errorf("error deleting refresh token: %w", err)
		}

		a, err := getAccount(ctx, tx, `id = ?`, accountID)
		if err != nil {
			return err
		}

		pair, err = p.generateTokenPair(ctx, tx, a)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

// VerifyAccessToken validates an access token and rejects it when the
// account's sessions were revoked after it was issued.
func (p *SQLiteProvider) VerifyAccessToken(ctx context.Context, token string) (*auth.TokenClaims, error) {
	claims, err := auth.ParseToken(token, p.jwtSecret, p.now)
	if err != nil {
		return nil, err
	}

	a, err := getAccount(ctx, p.db, `id = ?`, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrTokenRevoked
		}
		return nil, err
	}
	if claims.Generation != a.generation {
		return nil, common.ErrTokenRevoked
	}

	return claims, nil
}

func (p *SQLiteProvider) generateTokenPair(ctx context.Context, tx dbx.DBTX, a *account) (*TokenPair, error) {
	claims, err := decodeClaims(a.claims)
	if err != nil && !errors.Is(err, common.ErrClaimsMissing) {
		return nil, err
	}
	if claims == nil {
		claims = &models.Claims{}
	}

	now := p.now()
	accessToken, err := auth.GenerateToken(a.id, *claims, a.generation, p.jwtSecret, p.accessTokenValidityDuration, now)
	if err != nil {
		return nil, common.ErrorInternal
	}

	refreshToken, err := common.MakeRandHexString(32)
	if err != nil {
		return nil, common.ErrorInternal
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO refresh_tokens (token, account_id, expires_at) VALUES (?, ?, ?)`,
		refreshToken, a.id, now.Add(p.refreshTokenValidityDuration).UnixNano())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func getAccount(ctx context.Context, db dbx.DBTX, where string, arg any) (*account, error) {
	var a account
	err := db.QueryRowContext(ctx,
		`SELECT id, email, salt, password_hash, claims, generation FROM accounts WHERE `+where, arg).
		Scan(&a.id, &a.email, &a.salt, &a.hash, &a.claims, &a.generation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.NewNotFoundError("account", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &a, nil
}

func emailTaken(ctx context.Context, db dbx.DBTX, email, exceptID string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE email = ? AND id <> ?`, email, exceptID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n > 0, nil
}

func decodeClaims(s sql.NullString) (*models.Claims, error) {
	if !s.Valid || s.String == "" {
		return nil, common.ErrClaimsMissing
	}
	var c models.Claims
	if err := json.Unmarshal([]byte(s.String), &c); err != nil {
		return nil, fmt.Errorf("decode claims: %w", err)
	}
	return &c, nil
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.NewNotFoundError("account", id)
	}
	return nil
}
