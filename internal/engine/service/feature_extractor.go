package service

import (
	"context"
	"regexp"
	"strings"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/repository"
	"golang-cardflip-engine/pkg/logger"
	"golang-cardflip-engine/pkg/utils"
)

const ruleBasedConfidence = 0.35

var (
	rarityTokens = []string{"UR", "SSR", "SR", "R", "N"}
	// Longer condition phrases come first so "near mint" is not read as "mint".
	conditionTokens = []string{"near mint", "mint", "nm", "light play", "lp", "played", "damaged"}
	noiseWords      = map[string]struct{}{
		"mint": {}, "near": {}, "nm": {}, "lp": {}, "played": {}, "damaged": {}, "light": {}, "play": {},
		"first": {}, "owner": {}, "clean": {}, "scratch": {}, "scratches": {},
	}
	rarityPatterns  = buildRarityPatterns()
	bracketPattern  = regexp.MustCompile(`\[[^\]]+\]|\([^)]*\)`)
	maxCardNameRune = 64
)

func buildRarityPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(rarityTokens))
	for _, token := range rarityTokens {
		patterns[token] = regexp.MustCompile(`(?i)(^|[^A-Za-z])` + regexp.QuoteMeta(token) + `($|[^A-Za-z])`)
	}
	return patterns
}

// FeatureExtractor turns listing text into card attributes.
type FeatureExtractor interface {
	Extract(ctx context.Context, title, description string) dto.Features
}

type featureExtractor struct {
	provider repository.FeatureExtractionRepository
	log      *logger.Logger
}

// NewFeatureExtractor creates a new FeatureExtractor. provider may be nil, in
// which case only the rule based extractor runs.
func NewFeatureExtractor(provider repository.FeatureExtractionRepository, log *logger.Logger) FeatureExtractor {
	return &featureExtractor{provider: provider, log: log}
}

// Extract asks the model first and falls back to the rule based extractor
// when it is unavailable or fails.
func (e *featureExtractor) Extract(ctx context.Context, title, description string) dto.Features {
	if e.provider != nil {
		features, err := e.provider.Extract(ctx, title, description)
		if err == nil && features != nil {
			return *features
		}
		if err != nil {
			e.log.DebugContext(ctx, "Falling back to rule based feature extraction", logger.ErrorField(err))
		}
	}
	return ExtractRuleBased(title, description)
}

// ExtractRuleBased reads rarity and condition tiers from keyword matches and
// guesses the card name from what is left of the title.
func ExtractRuleBased(title, description string) dto.Features {
	text := strings.TrimSpace(title + " " + description)
	lower := strings.ToLower(text)

	rarity := dto.UnknownValue
	for _, token := range rarityTokens {
		if rarityPatterns[token].MatchString(text) {
			rarity = token
			break
		}
	}

	condition := dto.UnknownValue
	for _, token := range conditionTokens {
		if strings.Contains(lower, token) {
			condition = token
			break
		}
	}

	return dto.Features{
		CardName:   guessCardName(title),
		Rarity:     rarity,
		Edition:    dto.UnknownValue,
		Condition:  condition,
		Confidence: ruleBasedConfidence,
		Method:     dto.ExtractionMethodRuleBased,
		Extras:     map[string]interface{}{},
	}
}

func guessCardName(title string) string {
	cleaned := bracketPattern.ReplaceAllString(title, " ")
	for _, token := range rarityTokens {
		cleaned = rarityPatterns[token].ReplaceAllString(cleaned, "$1 $2")
	}

	words := make([]string, 0)
	for _, w := range strings.Fields(cleaned) {
		if _, noise := noiseWords[strings.ToLower(w)]; noise {
			continue
		}
		words = append(words, w)
	}
	name := strings.Join(words, " ")
	if name == "" {
		return dto.UnknownValue
	}
	return utils.Truncate(name, maxCardNameRune)
}
