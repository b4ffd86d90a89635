package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/glucolens/glucolens-server/internal/errors"
	"github.com/glucolens/glucolens-server/internal/model"
	"github.com/glucolens/glucolens-server/internal/repository"
	"github.com/glucolens/glucolens-server/internal/util"
)

type CreateSessionResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionService owns the pairing session lifecycle: minting tokens and
// deciding, at validation time, whether a presented token still grants
// capability. Expiry is a pure time comparison here; the background reaper
// only reclaims storage.
type SessionService struct {
	sessionRepo repository.SessionRepository
	ttl         time.Duration
	now         func() time.Time
}

func NewSessionService(sessionRepo repository.SessionRepository, ttl time.Duration) *SessionService {
	return &SessionService{
		sessionRepo: sessionRepo,
		ttl:         ttl,
		now:         time.Now,
	}
}

// Create mints a fresh session for ownerID. Creating a new session never
// revokes the owner's earlier tokens; they ride out their own TTL.
func (s *SessionService) Create(ctx context.Context, ownerID string) (*CreateSessionResult, error) {
	token, err := util.GenerateToken()
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateSessionParams{
		TokenHash: util.HashToken(token),
		OwnerID:   ownerID,
		ExpiresAt: s.now().Add(s.ttl),
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("ownerId", ownerID).
		Time("expiresAt", session.ExpiresAt).
		Msg("pairing session created")

	return &CreateSessionResult{
		Token:     token,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Validate resolves a raw token to its session if and only if it exists
// and has not expired. Unknown and expired tokens produce the same error,
// so a caller cannot tell whether a token ever existed. The call is
// read-only and idempotent.
func (s *SessionService) Validate(ctx context.Context, token string) (*model.PairingSession, error) {
	if token == "" {
		return nil, apperrors.InvalidSession()
	}

	session, err := s.sessionRepo.FindByTokenHash(ctx, util.HashToken(token))
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if session == nil {
		log.Warn().Str("token", util.MaskToken(token)).Msg("unknown pairing token presented")
		return nil, apperrors.InvalidSession()
	}
	if session.Expired(s.now()) {
		// The row may still be physically present until the reaper runs.
		// It grants nothing either way.
		log.Warn().Str("token", util.MaskToken(token)).Msg("expired pairing token presented")
		return nil, apperrors.InvalidSession()
	}

	return session, nil
}

// Status is the unauthenticated check behind the phone page countdown. It
// returns nil for unknown and expired tokens alike, leaking nothing
// beyond what Validate already answers.
func (s *SessionService) Status(ctx context.Context, token string) *model.PairingSession {
	session, err := s.Validate(ctx, token)
	if err != nil {
		return nil
	}
	return session
}
