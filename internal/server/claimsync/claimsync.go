// Package claimsync reconciles the authoritative role on user records with
// the role cached in identity-provider claims.
package claimsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/identity"
	"github.com/dmitrijs2005/staffkeeper/internal/logging"
	"github.com/dmitrijs2005/staffkeeper/internal/server/diff"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
	"github.com/dmitrijs2005/staffkeeper/internal/server/repositories/users"
)

// Status is the per-user verification outcome.
type Status string

const (
	// StatusInSync: cached claims equal the authoritative role.
	StatusInSync Status = "in_sync"
	// StatusMismatch: cached role differs from the record.
	StatusMismatch Status = "mismatch"
	// StatusClaimsMissing: the account exists but carries no claims.
	StatusClaimsMissing Status = "claims_missing"
	// StatusNoExternalIdentity: the user was never provisioned.
	StatusNoExternalIdentity Status = "no_external_identity"
	// StatusAccountMissing: the record references an account the provider does not know.
	StatusAccountMissing Status = "account_missing"
)

// Check is one user's verification result. CachedRole is empty when no
// claims could be read.
type Check struct {
	UserID         string      `json:"userId"`
	UserName       string      `json:"username"`
	ExternalID     string      `json:"externalId,omitempty"`
	Status         Status      `json:"status"`
	Classification diff.Kind   `json:"classification,omitempty"`
	ExpectedRole   models.Role `json:"expectedRole"`
	CachedRole     models.Role `json:"cachedRole,omitempty"`
}

// NeedsSync reports whether SyncAll should rewrite the claims.
func (c Check) NeedsSync() bool {
	return c.Status == StatusMismatch || c.Status == StatusClaimsMissing
}

// VerifyReport is the read-only result of VerifyAll.
type VerifyReport struct {
	Checked            int      `json:"checked"`
	InSync             int      `json:"inSync"`
	MismatchCount      int      `json:"mismatchCount"`
	Mismatches         []Check  `json:"mismatches"`
	NoExternalIdentity []string `json:"noExternalIdentity"`
	AccountMissing     []Check  `json:"accountMissing"`
}

// Failure is one user SyncAll could not fix.
type Failure struct {
	UserName string `json:"username"`
	Error    string `json:"error"`
}

// SyncReport is the result of SyncAll.
type SyncReport struct {
	Attempted int       `json:"attempted"`
	Synced    int       `json:"synced"`
	Failures  []Failure `json:"failures"`
}

// Synchronizer compares and rewrites cached claims.
type Synchronizer struct {
	users    users.Repository
	provider identity.Provider
	now      func() time.Time
	logger   logging.Logger
}

// New returns a Synchronizer. now stamps LastSyncedAt.
func New(u users.Repository, p identity.Provider, now func() time.Time, l logging.Logger) *Synchronizer {
	if now == nil {
		now = time.Now
	}
	return &Synchronizer{users: u, provider: p, now: now, logger: l.With("module", "claimsync")}
}

// Desired returns the claims that mirror u.
func Desired(u *models.User) models.Claims {
	return models.Claims{Role: u.Role, UserName: u.UserName}
}

// VerifyAll classifies the cached claims of every user. It performs no
// writes. A provider failure other than missing claims or a missing account
// aborts the whole run.
func (s *Synchronizer) VerifyAll(ctx context.Context) (*VerifyReport, error) {
	all, err := s.users.List(ctx)
	if err != nil {
		return nil, common.NewAuthoritativeError("list users", err)
	}
	provisioned, err := s.users.ListProvisioned(ctx)
	if err != nil {
		return nil, common.NewAuthoritativeError("list provisioned users", err)
	}

	rep := &VerifyReport{Mismatches: []Check{}, NoExternalIdentity: []string{}, AccountMissing: []Check{}}

	seen := make(map[string]struct{}, len(provisioned))
	for _, u := range provisioned {
		seen[u.ID] = struct{}{}
	}
	for _, u := range all {
		if _, ok := seen[u.ID]; !ok {
			rep.NoExternalIdentity = append(rep.NoExternalIdentity, u.UserName)
		}
	}

	for _, u := range provisioned {
		c, err := s.verify(ctx, u)
		if err != nil {
			return nil, err
		}
		rep.Checked++

		switch c.Status {
		case StatusInSync:
			rep.InSync++
		case StatusAccountMissing:
			rep.AccountMissing = append(rep.AccountMissing, c)
		default:
			rep.Mismatches = append(rep.Mismatches, c)
		}
	}
	rep.MismatchCount = len(rep.Mismatches)

	s.logger.Info(ctx, "claims verified",
		"checked", rep.Checked, "mismatches", rep.MismatchCount,
		"unprovisioned", len(rep.NoExternalIdentity), "accountMissing", len(rep.AccountMissing))
	return rep, nil
}

func (s *Synchronizer) verify(ctx context.Context, u *models.User) (Check, error) {
	c := Check{UserID: u.ID, UserName: u.UserName, ExternalID: u.ExternalID, ExpectedRole: u.Role}

	cached, err := s.provider.GetClaims(ctx, u.ExternalID)
	switch {
	case errors.Is(err, common.ErrClaimsMissing):
		c.Status = StatusClaimsMissing
		c.Classification = diff.Create
		return c, nil
	case errors.Is(err, common.ErrorNotFound):
		c.Status = StatusAccountMissing
		return c, nil
	case err != nil:
		return c, common.NewAuthoritativeError(fmt.Sprintf("get claims for %s", u.UserName), err)
	}

	c.CachedRole = cached.Role
	res := diff.ClaimsSchema.Classify(Desired(u), cached)
	c.Classification = res.Kind
	if res.Kind == diff.Skip {
		c.Status = StatusInSync
	} else {
		c.Status = StatusMismatch
	}
	return c, nil
}

// SyncOne writes claims equal to the user's authoritative role, stamped with
// the current time. It always writes, even when the cache already matches.
func (s *Synchronizer) SyncOne(ctx context.Context, u *models.User) (*models.Claims, error) {
	if !u.HasExternalIdentity() {
		return nil, fmt.Errorf("%s: %w", u.UserName, common.ErrNoExternalIdentity)
	}

	claims := Desired(u)
	claims.LastSyncedAt = s.now().UTC()

	if err := s.provider.SetClaims(ctx, u.ExternalID, claims); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, common.NewAuthoritativeError(fmt.Sprintf("set claims for %s", u.UserName), err)
	}

	s.logger.Info(ctx, "claims synced", "username", u.UserName, "role", u.Role)
	return &claims, nil
}

// SyncAll re-verifies and syncs every user that needs it. A failure for one
// user is recorded and the loop continues.
func (s *Synchronizer) SyncAll(ctx context.Context) (*SyncReport, error) {
	rep, err := s.VerifyAll(ctx)
	if err != nil {
		return nil, err
	}

	out := &SyncReport{Failures: []Failure{}}
	for _, c := range rep.Mismatches {
		if !c.NeedsSync() {
			continue
		}
		out.Attempted++

		u, err := s.users.GetByID(ctx, c.UserID)
		if err == nil {
			_, err = s.SyncOne(ctx, u)
		}
		if err != nil {
			s.logger.Warn(ctx, "claims sync failed", "username", c.UserName, "error", err)
			out.Failures = append(out.Failures, Failure{UserName: c.UserName, Error: err.Error()})
			continue
		}
		out.Synced++
	}

	return out, nil
}

// ForceInvalidate revokes every token issued to u so a session holding stale
// claims must authenticate again. confirmed must be true.
func (s *Synchronizer) ForceInvalidate(ctx context.Context, u *models.User, confirmed bool) error {
	if !confirmed {
		return common.ErrConfirmationRequired
	}
	if !u.HasExternalIdentity() {
		return fmt.Errorf("%s: %w", u.UserName, common.ErrNoExternalIdentity)
	}

	if err := s.provider.RevokeSessions(ctx, u.ExternalID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return err
		}
		return common.NewAuthoritativeError(fmt.Sprintf("revoke sessions for %s", u.UserName), err)
	}

	s.logger.Warn(ctx, "sessions force-invalidated", "username", u.UserName)
	return nil
}
