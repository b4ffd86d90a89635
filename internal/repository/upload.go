package repository

import (
	"context"

	"github.com/glucolens/glucolens-server/internal/database"
	"github.com/glucolens/glucolens-server/internal/model"
)

type UploadRepository interface {
	Create(ctx context.Context, params model.CreateUploadParams) (*model.UploadedImage, error)
	FindByStorageRef(ctx context.Context, storageRef string) (*model.UploadedImage, error)
	FindRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]model.UploadedImage, error)
}

type uploadRepo struct {
	db database.DBTX
}

func NewUploadRepository(db database.DBTX) UploadRepository {
	return &uploadRepo{db: db}
}

func (r *uploadRepo) Create(ctx context.Context, params model.CreateUploadParams) (*model.UploadedImage, error) {
	var upload model.UploadedImage
	err := r.db.GetContext(ctx, &upload, `
		INSERT INTO uploaded_images (session_id, owner_id, storage_ref)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.SessionID, params.OwnerID, params.StorageRef)
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

func (r *uploadRepo) FindByStorageRef(ctx context.Context, storageRef string) (*model.UploadedImage, error) {
	var upload model.UploadedImage
	err := r.db.GetContext(ctx, &upload, `
		SELECT * FROM uploaded_images WHERE storage_ref = $1
	`, storageRef)
	return HandleNotFound(&upload, err)
}

func (r *uploadRepo) FindRecentBySessionID(ctx context.Context, sessionID string, limit int) ([]model.UploadedImage, error) {
	var uploads []model.UploadedImage
	err := r.db.SelectContext(ctx, &uploads, `
		SELECT * FROM uploaded_images
		WHERE session_id = $1
		ORDER BY received_at DESC
		LIMIT $2
	`, sessionID, limit)
	return uploads, err
}
