package session

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/pkg/auth"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/security"
)

type Config struct {
	RosterCacheTTL time.Duration
}

// Session is the result of a successful login
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Staff     model.Actor `json:"staff"`
}

type SessionService interface {
	Login(ctx context.Context, staffID uuid.UUID, pin string) (*Session, error)
	Authenticate(ctx context.Context, token string) (model.Actor, error)
	Invalidate(staffID uuid.UUID)
}

// Service issues session tokens and resolves them against the staff roster.
// Roster lookups are cached briefly; admin edits invalidate the entry.
type Service struct {
	staff  repository.StaffRepository
	tokens auth.JWTService
	hasher security.PINHasher
	roster *cache.Cache
}

func NewService(staff repository.StaffRepository, tokens auth.JWTService, hasher security.PINHasher, cfg Config) *Service {
	ttl := cfg.RosterCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{
		staff:  staff,
		tokens: tokens,
		hasher: hasher,
		roster: cache.New(ttl, 2*ttl),
	}
}

func (s *Service) Login(ctx context.Context, staffID uuid.UUID, pin string) (*Session, error) {
	staff, err := s.staff.Get(ctx, staffID)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Unauthorized(err)
		}
		return nil, errors.Internal(err)
	}
	if !staff.IsActive || staff.PINHash == "" {
		return nil, errors.Unauthorized(nil)
	}
	if err := s.hasher.Compare(staff.PINHash, pin); err != nil {
		return nil, errors.Unauthorized(err)
	}

	token, expires, err := s.tokens.GenerateAccessToken(staff.ID, staff.Name, string(staff.Role))
	if err != nil {
		return nil, errors.Internal(err)
	}
	s.roster.SetDefault(staff.ID.String(), staff)
	return &Session{Token: token, ExpiresAt: expires, Staff: staff.Actor()}, nil
}

// Authenticate returns the acting staff member behind token. Role and name
// come from the roster, not from the token.
func (s *Service) Authenticate(ctx context.Context, token string) (model.Actor, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return model.Actor{}, errors.Unauthorized(err)
	}

	staff, err := s.lookup(ctx, claims.StaffID)
	if err != nil {
		return model.Actor{}, err
	}
	if !staff.IsActive {
		return model.Actor{}, errors.Unauthorized(nil)
	}
	return staff.Actor(), nil
}

func (s *Service) Invalidate(staffID uuid.UUID) {
	s.roster.Delete(staffID.String())
}

func (s *Service) lookup(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	if cached, ok := s.roster.Get(id.String()); ok {
		return cached.(*model.Staff), nil
	}
	staff, err := s.staff.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.Unauthorized(err)
		}
		return nil, errors.Internal(err)
	}
	s.roster.SetDefault(id.String(), staff)
	return staff, nil
}
