package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/utils"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// FeatureExtractionRepository extracts card attributes with a language model.
type FeatureExtractionRepository interface {
	Extract(ctx context.Context, title, description string) (*dto.Features, error)
}

type geminiFeatureRepository struct {
	cfg            config.Gemini
	log            *logger.Logger
	requestLimiter *rate.Limiter
	genAiClient    *genai.Client
}

type geminiFeatureResponse struct {
	CardName      string                 `json:"card_name"`
	Rarity        string                 `json:"rarity"`
	Edition       string                 `json:"edition"`
	CardCondition string                 `json:"card_condition"`
	Extras        map[string]interface{} `json:"extras"`
	Confidence    float64                `json:"confidence"`
}

// NewGeminiFeatureRepository creates a new FeatureExtractionRepository backed by Gemini.
func NewGeminiFeatureRepository(cfg config.Gemini, log *logger.Logger, genAiClient *genai.Client) FeatureExtractionRepository {
	return &geminiFeatureRepository{
		cfg:            cfg,
		log:            log,
		requestLimiter: perMinuteLimiter(cfg.MaxRequestPerMinute),
		genAiClient:    genAiClient,
	}
}

func (r *geminiFeatureRepository) Extract(ctx context.Context, title, description string) (*dto.Features, error) {
	if err := r.requestLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for request limit: %w", err)
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromText(BuildFeatureExtractionPrompt(title, description), "user"),
	}
	resp, err := r.genAiClient.Models.GenerateContent(ctx, r.cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature:      utils.ToPointer(float32(0.1)),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		r.log.WarnContext(ctx, "Gemini feature extraction failed", logger.ErrorField(err), logger.StringField("title", title))
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	return parseFeatureResponse(resp.Text())
}

func parseFeatureResponse(text string) (*dto.Features, error) {
	rawJSON := strings.Trim(strings.TrimSpace(text), "`json\n`")
	if rawJSON == "" {
		return nil, fmt.Errorf("no content found in Gemini response")
	}

	var result geminiFeatureResponse
	if err := json.Unmarshal([]byte(rawJSON), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal features from Gemini response: %w", err)
	}

	features := dto.Features{
		CardName:   strings.TrimSpace(result.CardName),
		Rarity:     strings.TrimSpace(result.Rarity),
		Edition:    strings.TrimSpace(result.Edition),
		Condition:  strings.TrimSpace(result.CardCondition),
		Confidence: result.Confidence,
		Method:     dto.ExtractionMethodGemini,
		Extras:     result.Extras,
	}.Normalize(0.5)
	return &features, nil
}
