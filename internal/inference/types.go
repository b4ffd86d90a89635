package inference

import (
	"context"
	"fmt"

	"github.com/glucolens/glucolens-server/internal/model"
)

// FoodDetection is the validated output of the food detection stage.
type FoodDetection struct {
	FoodsDetected []model.DetectedFood `json:"foodsDetected"`
	TotalCarbsG   float64              `json:"totalCarbsG"`
	TotalCalories float64              `json:"totalCalories"`
}

// ImpactPrediction is the validated output of the impact prediction stage.
type ImpactPrediction struct {
	PredictedSpike        string          `json:"predictedSpike"`
	RiskLevel             model.RiskLevel `json:"riskLevel"`
	Recommendation        string          `json:"recommendation"`
	HealthierAlternatives []string        `json:"healthierAlternatives"`
	Explanation           string          `json:"explanation"`
	ConfidenceScore       float64         `json:"confidenceScore"`
}

// ImpactParams carries the profile fields the prediction stage is
// conditioned on.
type ImpactParams struct {
	TotalCarbsG        float64
	DiabetesType       model.DiabetesType
	CurrentGlucose     float64
	InsulinToCarbRatio float64
	HeightCm           *float64
	WeightKg           *float64
	Age                *int
	Gender             *string
}

// FoodDetector is the food detection stage boundary.
type FoodDetector interface {
	DetectFoods(ctx context.Context, imagePath string) (*FoodDetection, error)
}

// ImpactPredictor is the impact prediction stage boundary.
type ImpactPredictor interface {
	PredictImpact(ctx context.Context, params ImpactParams) (*ImpactPrediction, error)
}

// Raw wire shapes, matching what the model is prompted to emit.

type rawDetectedFood struct {
	Name              string  `json:"name"`
	EstimatedPortion  string  `json:"estimated_portion"`
	EstimatedCarbsG   float64 `json:"estimated_carbs_g"`
	EstimatedCalories float64 `json:"estimated_calories"`
	Confidence        float64 `json:"confidence"`
}

type rawFoodDetection struct {
	FoodsDetected          []rawDetectedFood `json:"foods_detected"`
	TotalEstimatedCarbsG   float64           `json:"total_estimated_carbs_g"`
	TotalEstimatedCalories float64           `json:"total_estimated_calories"`
}

func (r *rawFoodDetection) validate() (*FoodDetection, error) {
	if r.TotalEstimatedCarbsG < 0 {
		return nil, fmt.Errorf("negative total carbs %v", r.TotalEstimatedCarbsG)
	}
	if r.TotalEstimatedCalories < 0 {
		return nil, fmt.Errorf("negative total calories %v", r.TotalEstimatedCalories)
	}

	foods := make([]model.DetectedFood, 0, len(r.FoodsDetected))
	for _, f := range r.FoodsDetected {
		if f.Name == "" {
			return nil, fmt.Errorf("detected food with empty name")
		}
		if f.EstimatedCarbsG < 0 || f.EstimatedCalories < 0 {
			return nil, fmt.Errorf("negative macros for %q", f.Name)
		}
		foods = append(foods, model.DetectedFood{
			Name:              f.Name,
			EstimatedPortion:  f.EstimatedPortion,
			EstimatedCarbsG:   f.EstimatedCarbsG,
			EstimatedCalories: f.EstimatedCalories,
			Confidence:        f.Confidence,
		})
	}

	return &FoodDetection{
		FoodsDetected: foods,
		TotalCarbsG:   r.TotalEstimatedCarbsG,
		TotalCalories: r.TotalEstimatedCalories,
	}, nil
}

type rawImpactPrediction struct {
	PredictedGlucoseSpikeMmolL string   `json:"predicted_glucose_spike_mmol_L"`
	RiskLevel                  string   `json:"risk_level"`
	Recommendation             string   `json:"recommendation"`
	HealthierAlternatives      []string `json:"healthier_alternatives"`
	Explanation                string   `json:"explanation"`
	ConfidenceScore            float64  `json:"confidence_score"`
}

func (r *rawImpactPrediction) validate() (*ImpactPrediction, error) {
	risk, err := model.ParseRiskLevel(r.RiskLevel)
	if err != nil {
		return nil, err
	}
	if r.PredictedGlucoseSpikeMmolL == "" {
		return nil, fmt.Errorf("empty predicted spike")
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
		return nil, fmt.Errorf("confidence score %v out of range", r.ConfidenceScore)
	}

	return &ImpactPrediction{
		PredictedSpike:        r.PredictedGlucoseSpikeMmolL,
		RiskLevel:             risk,
		Recommendation:        r.Recommendation,
		HealthierAlternatives: r.HealthierAlternatives,
		Explanation:           r.Explanation,
		ConfidenceScore:       r.ConfidenceScore,
	}, nil
}
