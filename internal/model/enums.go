package model

import "fmt"

// RiskLevel is the predicted glycemic risk bucket returned by the impact
// prediction stage. It is a closed set; anything else coming back from the
// inference backend is a malformed response, never coerced.
type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskModerate RiskLevel = "Moderate"
	RiskHigh     RiskLevel = "High"
)

// ParseRiskLevel validates a raw risk level string against the closed set.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(s) {
	case RiskLow:
		return RiskLow, nil
	case RiskModerate:
		return RiskModerate, nil
	case RiskHigh:
		return RiskHigh, nil
	default:
		return "", fmt.Errorf("unknown risk level %q", s)
	}
}

type DiabetesType string

const (
	DiabetesType1       DiabetesType = "Type 1"
	DiabetesType2       DiabetesType = "Type 2"
	DiabetesPrediabetes DiabetesType = "Prediabetes"
	DiabetesNone        DiabetesType = "None"
)
