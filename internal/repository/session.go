package repository

import (
	"context"

	"github.com/glucolens/glucolens-server/internal/database"
	"github.com/glucolens/glucolens-server/internal/model"
)

type SessionRepository interface {
	// FindByTokenHash returns the session row regardless of expiry. Logical
	// expiry is the session service's job; the row being physically present
	// must never be read as the token being valid.
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.PairingSession, error)
	Create(ctx context.Context, params model.CreateSessionParams) (*model.PairingSession, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

type sessionRepo struct {
	db database.DBTX
}

func NewSessionRepository(db database.DBTX) SessionRepository {
	return &sessionRepo{db: db}
}

func (r *sessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.PairingSession, error) {
	var session model.PairingSession
	err := r.db.GetContext(ctx, &session, `
		SELECT * FROM pairing_sessions WHERE token_hash = $1
	`, tokenHash)
	return HandleNotFound(&session, err)
}

func (r *sessionRepo) Create(ctx context.Context, params model.CreateSessionParams) (*model.PairingSession, error) {
	var session model.PairingSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO pairing_sessions (token_hash, owner_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.TokenHash, params.OwnerID, params.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM pairing_sessions WHERE expires_at < NOW()
	`)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
