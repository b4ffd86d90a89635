package service

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	apperrors "github.com/glucolens/glucolens-server/internal/errors"
	"github.com/glucolens/glucolens-server/internal/inference"
	"github.com/glucolens/glucolens-server/internal/model"
	"github.com/glucolens/glucolens-server/internal/repository"
	"github.com/glucolens/glucolens-server/internal/storage"
)

// defaultGlucoseMmolL is assumed when the caller supplies no point-in-time
// reading.
const defaultGlucoseMmolL = 6.0

type AnalyzeParams struct {
	ImageRef       string
	CurrentGlucose *float64
}

type AnalyzeResult struct {
	Stage1   *inference.FoodDetection    `json:"stage1"`
	Stage2   *inference.ImpactPrediction `json:"stage2"`
	RecordID string                      `json:"recordId"`
}

// AnalysisService runs the two-stage pipeline: food detection over the
// stored image, then glycemic impact prediction against the owner's
// profile, then exactly one meal row. Either stage failing aborts the run
// with nothing persisted. Runs are independent; concurrent analyses share
// only the stores they write to.
type AnalysisService struct {
	detector   inference.FoodDetector
	predictor  inference.ImpactPredictor
	images     *storage.ImageStore
	uploadRepo repository.UploadRepository
	mealRepo   repository.MealRepository
}

func NewAnalysisService(
	detector inference.FoodDetector,
	predictor inference.ImpactPredictor,
	images *storage.ImageStore,
	uploadRepo repository.UploadRepository,
	mealRepo repository.MealRepository,
) *AnalysisService {
	return &AnalysisService{
		detector:   detector,
		predictor:  predictor,
		images:     images,
		uploadRepo: uploadRepo,
		mealRepo:   mealRepo,
	}
}

// Analyze runs the pipeline for owner. The persisted record is keyed to
// the authenticated owner, never to whoever held the upload token.
func (s *AnalysisService) Analyze(ctx context.Context, owner *model.User, params AnalyzeParams) (*AnalyzeResult, error) {
	imagePath, err := s.images.Path(params.ImageRef)
	if err != nil {
		return nil, apperrors.InvalidInput("imageRef", "not a valid storage ref")
	}

	// The ref must name a recorded upload, not merely a file that happens
	// to sit in the store directory.
	upload, err := s.uploadRepo.FindByStorageRef(ctx, params.ImageRef)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	if upload == nil || !s.images.Exists(params.ImageRef) {
		return nil, apperrors.NotFound("Image")
	}

	stage1, err := s.detector.DetectFoods(ctx, imagePath)
	if err != nil {
		log.Warn().Err(err).Str("ownerId", owner.ID).Msg("food detection failed, aborting run")
		return nil, err
	}

	glucose := defaultGlucoseMmolL
	if params.CurrentGlucose != nil {
		glucose = *params.CurrentGlucose
	}

	stage2, err := s.predictor.PredictImpact(ctx, inference.ImpactParams{
		TotalCarbsG:        stage1.TotalCarbsG,
		DiabetesType:       owner.DiabetesType,
		CurrentGlucose:     glucose,
		InsulinToCarbRatio: owner.InsulinToCarbRatio,
		HeightCm:           owner.HeightCm,
		WeightKg:           owner.WeightKg,
		Age:                owner.Age,
		Gender:             owner.Gender,
	})
	if err != nil {
		// Stage 1's output is discarded too: no partially populated record
		// ever reaches the store.
		log.Warn().Err(err).Str("ownerId", owner.ID).Msg("impact prediction failed, aborting run")
		return nil, err
	}

	foodsJSON, err := json.Marshal(stage1.FoodsDetected)
	if err != nil {
		return nil, apperrors.Internal("failed to encode detected foods")
	}

	meal, err := s.mealRepo.Create(ctx, model.CreateMealAnalysisParams{
		OwnerID:         owner.ID,
		ImageRef:        params.ImageRef,
		DetectedFoods:   foodsJSON,
		TotalCarbsG:     stage1.TotalCarbsG,
		TotalCalories:   stage1.TotalCalories,
		PredictedSpike:  stage2.PredictedSpike,
		RiskLevel:       stage2.RiskLevel,
		Recommendation:  stage2.Recommendation,
		ConfidenceScore: stage2.ConfidenceScore,
	})
	if err != nil {
		return nil, apperrors.Database(err)
	}

	log.Info().
		Str("ownerId", owner.ID).
		Str("recordId", meal.ID).
		Str("riskLevel", string(stage2.RiskLevel)).
		Float64("totalCarbsG", stage1.TotalCarbsG).
		Msg("meal analysis persisted")

	return &AnalyzeResult{
		Stage1:   stage1,
		Stage2:   stage2,
		RecordID: meal.ID,
	}, nil
}

// History returns the owner's analyses, most recent first.
func (s *AnalysisService) History(ctx context.Context, ownerID string, limit int) ([]model.MealAnalysis, error) {
	meals, err := s.mealRepo.ListByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return meals, nil
}
