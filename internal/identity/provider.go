// Package identity defines the identity provider contract consumed by the
// reconciliation engine and ships a bundled SQLite-backed implementation.
//
// The provider owns credentials and a small claims payload per account. The
// claims only cache the authoritative role held in the document store.
package identity

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

// Credentials are the inputs for a new account.
type Credentials struct {
	Email       string
	Password    string
	DisplayName string
}

// AccountUpdate changes account attributes. Nil fields are left untouched.
type AccountUpdate struct {
	Email       *string
	DisplayName *string
	Password    *string
}

// Empty reports whether the update changes nothing.
func (u AccountUpdate) Empty() bool {
	return u.Email == nil && u.DisplayName == nil && u.Password == nil
}

// Provider is the identity provider contract.
type Provider interface {
	// CreateAccount registers credentials and returns the external id.
	// An already registered email yields a ConflictError.
	CreateAccount(ctx context.Context, c Credentials) (string, error)
	SetClaims(ctx context.Context, externalID string, claims models.Claims) error
	// GetClaims returns common.ErrClaimsMissing when the account carries no claims.
	GetClaims(ctx context.Context, externalID string) (*models.Claims, error)
	UpdateAccount(ctx context.Context, externalID string, u AccountUpdate) error
	// DeleteAccount removes the account and its refresh tokens. The
	// reconciliation operations never call it: an import that provisioned an
	// account but failed to write the user record leaves the account in place
	// and reports its id, and the operator decides.
	DeleteAccount(ctx context.Context, externalID string) error
	// RevokeSessions invalidates every token issued so far for the account.
	RevokeSessions(ctx context.Context, externalID string) error
}

// TokenPair is returned by sign-in and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Email maps a staff username onto the account email used by the provider.
func Email(username, domain string) string {
	return fmt.Sprintf("%s@%s", strings.ToLower(username), domain)
}
