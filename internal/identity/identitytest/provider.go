// Package identitytest provides an in-memory identity.Provider with call
// recording and error injection.
package identitytest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/dmitrijs2005/staffkeeper/internal/common"
	"github.com/dmitrijs2005/staffkeeper/internal/identity"
	"github.com/dmitrijs2005/staffkeeper/internal/server/models"
)

// Operation names used by Fail and Calls.
const (
	OpCreateAccount  = "CreateAccount"
	OpSetClaims      = "SetClaims"
	OpGetClaims      = "GetClaims"
	OpUpdateAccount  = "UpdateAccount"
	OpDeleteAccount  = "DeleteAccount"
	OpRevokeSessions = "RevokeSessions"
)

// Account is the stored state of one account.
type Account struct {
	ID          string
	Email       string
	DisplayName string
	Password    string
	Claims      *models.Claims
	Revocations int
}

// Provider is an in-memory identity.Provider.
type Provider struct {
	mu       sync.Mutex
	accounts map[string]*Account
	seq      int
	failures map[string]error
	calls    []string
}

var _ identity.Provider = (*Provider)(nil)

// New returns an empty Provider.
func New() *Provider {
	return &Provider{accounts: map[string]*Account{}, failures: map[string]error{}}
}

// Fail makes op fail with err. key is the email for CreateAccount and the
// external id otherwise; an empty key matches every call.
func (p *Provider) Fail(op, key string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[op+"|"+key] = err
}

// Calls returns "op key" for every call made so far.
func (p *Provider) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// Account returns a copy of the account with id.
func (p *Provider) Account(id string) (Account, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	a, ok := p.accounts[id]
	if !ok {
		return Account{}, false
	}
	out := *a
	if a.Claims != nil {
		c := *a.Claims
		out.Claims = &c
	}
	return out, true
}

// Seed stores an account directly and returns its id.
func (p *Provider) Seed(email string, claims *models.Claims) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.add(email, "", "", claims)
}

func (p *Provider) add(email, name, password string, claims *models.Claims) string {
	p.seq++
	id := fmt.Sprintf("ext-%d", p.seq)
	p.accounts[id] = &Account{ID: id, Email: email, DisplayName: name, Password: password, Claims: claims}
	return id
}

func (p *Provider) enter(op, key string) error {
	p.calls = append(p.calls, op+" "+key)
	if err, ok := p.failures[op+"|"+key]; ok {
		return err
	}
	if err, ok := p.failures[op+"|"]; ok {
		return err
	}
	return nil
}

func (p *Provider) get(id string) (*Account, error) {
	a, ok := p.accounts[id]
	if !ok {
		return nil, common.NewNotFoundError("account", id)
	}
	return a, nil
}

func (p *Provider) CreateAccount(ctx context.Context, c identity.Credentials) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	email := strings.ToLower(c.Email)
	if err := p.enter(OpCreateAccount, email); err != nil {
		return "", err
	}
	for _, a := range p.accounts {
		if a.Email == email {
			return "", common.NewConflictError("account", email, "email already registered")
		}
	}
	return p.add(email, c.DisplayName, c.Password, nil), nil
}

func (p *Provider) SetClaims(ctx context.Context, externalID string, claims models.Claims) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter(OpSetClaims, externalID); err != nil {
		return err
	}
	a, err := p.get(externalID)
	if err != nil {
		return err
	}
	a.Claims = &claims
	return nil
}

func (p *Provider) GetClaims(ctx context.Context, externalID string) (*models.Claims, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter(OpGetClaims, externalID); err != nil {
		return nil, err
	}
	a, err := p.get(externalID)
	if err != nil {
		return nil, err
	}
	if a.Claims == nil {
		return nil, common.ErrClaimsMissing
	}
	c := *a.Claims
	return &c, nil
}

func (p *Provider) UpdateAccount(ctx context.Context, externalID string, u identity.AccountUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter(OpUpdateAccount, externalID); err != nil {
		return err
	}
	a, err := p.get(externalID)
	if err != nil {
		return err
	}
	if u.Email != nil {
		a.Email = strings.ToLower(*u.Email)
	}
	if u.DisplayName != nil {
		a.DisplayName = *u.DisplayName
	}
	if u.Password != nil {
		a.Password = *u.Password
	}
	return nil
}

func (p *Provider) DeleteAccount(ctx context.Context, externalID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter(OpDeleteAccount, externalID); err != nil {
		return err
	}
	if _, err := p.get(externalID); err != nil {
		return err
	}
	delete(p.accounts, externalID)
	return nil
}

func (p *Provider) RevokeSessions(ctx context.Context, externalID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enter(OpRevokeSessions, externalID); err != nil {
		return err
	}
	a, err := p.get(externalID)
	if err != nil {
		return err
	}
	a.Revocations++
	return nil
}
