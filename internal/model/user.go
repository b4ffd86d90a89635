package model

import "time"

// User holds the profile fields the impact prediction stage consumes.
// Registration and login live outside this service; a user row is located
// by the sha256 hash of its API token.
type User struct {
	ID                   string       `db:"id" json:"id"`
	Email                string       `db:"email" json:"email"`
	APITokenHash         string       `db:"api_token_hash" json:"-"`
	DiabetesType         DiabetesType `db:"diabetes_type" json:"diabetesType"`
	InsulinToCarbRatio   float64      `db:"insulin_to_carb_ratio" json:"insulinToCarbRatio"`
	BaselineGlucoseRange string       `db:"baseline_glucose_range" json:"baselineGlucoseRange"`
	HeightCm             *float64     `db:"height_cm" json:"heightCm,omitempty"`
	WeightKg             *float64     `db:"weight_kg" json:"weightKg,omitempty"`
	Age                  *int         `db:"age" json:"age,omitempty"`
	Gender               *string      `db:"gender" json:"gender,omitempty"`
	CreatedAt            time.Time    `db:"created_at" json:"createdAt"`
}
