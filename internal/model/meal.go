package model

import (
	"encoding/json"
	"time"
)

// DetectedFood is one item from the food detection stage.
type DetectedFood struct {
	Name              string  `json:"name"`
	EstimatedPortion  string  `json:"estimatedPortion"`
	EstimatedCarbsG   float64 `json:"estimatedCarbsG"`
	EstimatedCalories float64 `json:"estimatedCalories"`
	Confidence        float64 `json:"confidence"`
}

// MealAnalysis is the persisted, immutable result of one successful
// pipeline run. A row exists only when both stages succeeded; it is
// appended once and never updated.
type MealAnalysis struct {
	ID              string          `db:"id" json:"id"`
	OwnerID         string          `db:"owner_id" json:"ownerId"`
	ImageRef        string          `db:"image_ref" json:"imageRef"`
	DetectedFoods   json.RawMessage `db:"detected_foods" json:"detectedFoods"`
	TotalCarbsG     float64         `db:"total_carbs_g" json:"totalCarbsG"`
	TotalCalories   float64         `db:"total_calories" json:"totalCalories"`
	PredictedSpike  string          `db:"predicted_spike" json:"predictedSpike"`
	RiskLevel       RiskLevel       `db:"risk_level" json:"riskLevel"`
	Recommendation  string          `db:"recommendation" json:"recommendation"`
	ConfidenceScore float64         `db:"confidence_score" json:"confidenceScore"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
}

type CreateMealAnalysisParams struct {
	OwnerID         string
	ImageRef        string
	DetectedFoods   json.RawMessage
	TotalCarbsG     float64
	TotalCalories   float64
	PredictedSpike  string
	RiskLevel       RiskLevel
	Recommendation  string
	ConfidenceScore float64
}
