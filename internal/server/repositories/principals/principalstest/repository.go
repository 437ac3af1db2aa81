// Package principalstest provides an in-memory principals.Repository for
// tests of components that consume the store.
package principalstest

import (
	"context"
	"sync"
	"time"

	"github.com/confideapp/confide/internal/errs"
	"github.com/confideapp/confide/internal/server/models"
	"github.com/confideapp/confide/internal/server/repositories/principals"
)

// Repository is a map-backed principals.Repository. Safe for concurrent use.
type Repository struct {
	mu   sync.Mutex
	byID map[string]*models.Principal
}

var _ principals.Repository = (*Repository)(nil)

func New() *Repository {
	return &Repository{byID: make(map[string]*models.Principal)}
}

// Add stores the principal as-is, bypassing Create defaults.
func (r *Repository) Add(p *models.Principal) *models.Principal {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.byID[cp.ID] = &cp
	return &cp
}

func (r *Repository) Create(_ context.Context, p *models.Principal) (*models.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.Username == p.Username || existing.Email == p.Email {
			return nil, errs.New(errs.Conflict, "username or email already taken")
		}
	}
	cp := *p
	if cp.Role == "" {
		cp.Role = models.RoleUser
	}
	if cp.Status == "" {
		cp.Status = models.StatusActive
	}
	r.byID[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (r *Repository) find(match func(*models.Principal) bool) (*models.Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.byID {
		if match(p) {
			out := *p
			out.RefreshTokens = append([]string(nil), p.RefreshTokens...)
			return &out, nil
		}
	}
	return nil, errs.New(errs.NotFound, "principal not found")
}

func (r *Repository) GetByID(_ context.Context, id string) (*models.Principal, error) {
	return r.find(func(p *models.Principal) bool { return p.ID == id })
}

func (r *Repository) GetByEmail(_ context.Context, email string) (*models.Principal, error) {
	return r.find(func(p *models.Principal) bool { return p.Email == email })
}

func (r *Repository) GetByUsername(_ context.Context, username string) (*models.Principal, error) {
	return r.find(func(p *models.Principal) bool { return p.Username == username })
}

func (r *Repository) SetOTP(_ context.Context, id string, purpose models.OTPPurpose, code string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := &models.OTPChallenge{Code: code, ExpiresAt: expiresAt}
	if purpose == models.PurposePasswordReset {
		r.byID[id].ResetOTP = ch
	} else {
		r.byID[id].ConfirmOTP = ch
	}
	return nil
}

func (r *Repository) ClearOTP(_ context.Context, id string, purpose models.OTPPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if purpose == models.PurposePasswordReset {
		r.byID[id].ResetOTP = nil
	} else {
		r.byID[id].ConfirmOTP = nil
	}
	return nil
}

func (r *Repository) ConfirmEmail(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID[id]
	p.EmailConfirmed = true
	p.ConfirmOTP = nil
	return nil
}

func (r *Repository) UpdatePassword(_ context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID[id]
	p.PasswordHash = hash
	p.ResetOTP = nil
	return nil
}

func (r *Repository) AppendRefreshToken(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID[id]
	p.RefreshTokens = append(p.RefreshTokens, token)
	return nil
}

func (r *Repository) RemoveRefreshToken(_ context.Context, id, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID[id]
	out := p.RefreshTokens[:0]
	for _, t := range p.RefreshTokens {
		if t != token {
			out = append(out, t)
		}
	}
	p.RefreshTokens = out
	return nil
}

func (r *Repository) ClearRefreshTokens(_ context.Context, id string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID[id]
	purged := p.RefreshTokens
	p.RefreshTokens = nil
	return purged, nil
}

func (r *Repository) SetStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id].Status = status
	return nil
}

func (r *Repository) LinkIdentity(_ context.Context, id string, ident models.FederatedIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID[id]
	for _, existing := range p.Identities {
		if existing == ident {
			return nil
		}
	}
	p.Identities = append(p.Identities, ident)
	return nil
}

func (r *Repository) SetProfileImage(_ context.Context, id string, img models.ImageRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id].ProfileImage = img
	return nil
}
