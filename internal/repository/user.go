package repository

import (
	"context"

	"github.com/glucolens/glucolens-server/internal/database"
	"github.com/glucolens/glucolens-server/internal/model"
)

type UserRepository interface {
	FindByAPITokenHash(ctx context.Context, tokenHash string) (*model.User, error)
}

type userRepo struct {
	db database.DBTX
}

func NewUserRepository(db database.DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) FindByAPITokenHash(ctx context.Context, tokenHash string) (*model.User, error) {
	var user model.User
	err := r.db.GetContext(ctx, &user, `
		SELECT * FROM users WHERE api_token_hash = $1
	`, tokenHash)
	return HandleNotFound(&user, err)
}
