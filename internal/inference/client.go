package inference

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/glucolens/glucolens-server/internal/errors"
)

const detectFoodsPrompt = `Analyze this meal image. Return ONLY valid JSON, no markdown or extra text:
{
  "foods_detected": [
    {
      "name": "Food name",
      "estimated_portion": "e.g. 1 cup",
      "estimated_carbs_g": number,
      "estimated_calories": number,
      "confidence": 0.0-1.0
    }
  ],
  "total_estimated_carbs_g": number,
  "total_estimated_calories": number
}`

// Client talks to an OpenRouter-compatible chat completions API and
// implements both pipeline stages. One run is two strictly sequential
// calls; independent runs share nothing but this client.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func NewClient(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		http:    &http.Client{Timeout: timeout},
	}
}

var _ FoodDetector = (*Client)(nil)
var _ ImpactPredictor = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) DetectFoods(ctx context.Context, imagePath string) (*FoodDetection, error) {
	const stage = apperrors.StageFoodDetection

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, apperrors.StorageFailure("read image for analysis", err)
	}

	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeTypeForPath(imagePath), base64.StdEncoding.EncodeToString(data))
	messages := []chatMessage{{
		Role: "user",
		Content: []map[string]any{
			{"type": "text", "text": detectFoodsPrompt},
			{"type": "image_url", "image_url": map[string]string{"url": dataURL}},
		},
	}}

	text, err := c.complete(ctx, stage, messages)
	if err != nil {
		return nil, err
	}

	var raw rawFoodDetection
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, apperrors.MalformedResponse(stage, err)
	}
	detection, err := raw.validate()
	if err != nil {
		return nil, apperrors.MalformedResponse(stage, err)
	}

	log.Debug().
		Int("foods", len(detection.FoodsDetected)).
		Float64("totalCarbsG", detection.TotalCarbsG).
		Msg("food detection complete")

	return detection, nil
}

func (c *Client) PredictImpact(ctx context.Context, params ImpactParams) (*ImpactPrediction, error) {
	const stage = apperrors.StageImpactPrediction

	prompt := fmt.Sprintf(
		"Given: total carbs %.1fg, diabetes type %s, current glucose %.1f mmol/L, insulin-to-carb ratio %.1f, height %scm, weight %skg, age %s, gender %s.\n"+
			"Predict glucose impact. Return ONLY valid JSON, no markdown or extra text:\n"+
			`{
  "predicted_glucose_spike_mmol_L": "e.g. 3-4",
  "risk_level": "Low|Moderate|High",
  "recommendation": "string",
  "healthier_alternatives": ["string"],
  "explanation": "string",
  "confidence_score": 0.0-1.0
}`,
		params.TotalCarbsG, params.DiabetesType, params.CurrentGlucose, params.InsulinToCarbRatio,
		floatOrUnknown(params.HeightCm), floatOrUnknown(params.WeightKg),
		intOrUnknown(params.Age), strOrUnknown(params.Gender),
	)

	text, err := c.complete(ctx, stage, []chatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, err
	}

	var raw rawImpactPrediction
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, apperrors.MalformedResponse(stage, err)
	}
	prediction, err := raw.validate()
	if err != nil {
		return nil, apperrors.MalformedResponse(stage, err)
	}

	log.Debug().
		Str("riskLevel", string(prediction.RiskLevel)).
		Str("predictedSpike", prediction.PredictedSpike).
		Msg("impact prediction complete")

	return prediction, nil
}

// complete sends one chat completion request and returns the model's text
// with any markdown code fences stripped. Transport problems, timeouts and
// non-200 statuses are INFERENCE_UNAVAILABLE; an empty completion is
// MALFORMED_RESPONSE.
func (c *Client) complete(ctx context.Context, stage apperrors.Stage, messages []chatMessage) (string, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages})
	if err != nil {
		return "", apperrors.InferenceUnavailable(stage, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", apperrors.InferenceUnavailable(stage, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.InferenceUnavailable(stage, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", apperrors.InferenceUnavailable(stage,
			fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(errBody)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", apperrors.MalformedResponse(stage, err)
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return "", apperrors.MalformedResponse(stage, fmt.Errorf("empty completion"))
	}

	return stripCodeFences(parsed.Choices[0].Message.Content), nil
}

// stripCodeFences removes ```json fences some models wrap JSON output in.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func mimeTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func floatOrUnknown(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.1f", *v)
}

func intOrUnknown(v *int) string {
	if v == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d", *v)
}

func strOrUnknown(v *string) string {
	if v == nil || *v == "" {
		return "unknown"
	}
	return *v
}
