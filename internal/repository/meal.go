package repository

import (
	"context"

	"github.com/glucolens/glucolens-server/internal/database"
	"github.com/glucolens/glucolens-server/internal/model"
)

// MealRepository is append-only: analyses are never updated or deleted.
type MealRepository interface {
	Create(ctx context.Context, params model.CreateMealAnalysisParams) (*model.MealAnalysis, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.MealAnalysis, error)
}

type mealRepo struct {
	db database.DBTX
}

func NewMealRepository(db database.DBTX) MealRepository {
	return &mealRepo{db: db}
}

func (r *mealRepo) Create(ctx context.Context, params model.CreateMealAnalysisParams) (*model.MealAnalysis, error) {
	var meal model.MealAnalysis
	err := r.db.GetContext(ctx, &meal, `
		INSERT INTO meal_analyses (
			owner_id, image_ref, detected_foods, total_carbs_g, total_calories,
			predicted_spike, risk_level, recommendation, confidence_score
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING *
	`, params.OwnerID, params.ImageRef, params.DetectedFoods, params.TotalCarbsG,
		params.TotalCalories, params.PredictedSpike, params.RiskLevel,
		params.Recommendation, params.ConfidenceScore)
	if err != nil {
		return nil, err
	}
	return &meal, nil
}

func (r *mealRepo) ListByOwner(ctx context.Context, ownerID string, limit int) ([]model.MealAnalysis, error) {
	var meals []model.MealAnalysis
	err := r.db.SelectContext(ctx, &meals, `
		SELECT * FROM meal_analyses
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	return meals, err
}
