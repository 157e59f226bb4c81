package service

import (
	"context"
	"errors"
	"testing"

	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/pkg/logger"

	"github.com/stretchr/testify/assert"
)

type stubFeatureProvider struct {
	features *dto.Features
	err      error
	calls    int
}

func (s *stubFeatureProvider) Extract(ctx context.Context, title, description string) (*dto.Features, error) {
	s.calls++
	return s.features, s.err
}

func TestExtractRuleBased(t *testing.T) {
	tests := []struct {
		name      string
		title     string
		desc      string
		card      string
		rarity    string
		condition string
	}{
		{"rarity and near mint", "Pikachu SR near mint", "", "Pikachu", "SR", "near mint"},
		{"mint only", "[JP] Charizard UR", "mint, first owner", "Charizard", "UR", "mint"},
		{"rarity inside word ignored", "Snorlax Rare promo", "", "Snorlax Rare promo", "unknown", "unknown"},
		{"played in description", "Mewtwo (holo) N", "lightly played", "Mewtwo", "N", "played"},
		{"nothing left", "[lot] SSR", "damaged", "unknown", "SSR", "damaged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ExtractRuleBased(tt.title, tt.desc)
			assert.Equal(t, tt.card, f.CardName)
			assert.Equal(t, tt.rarity, f.Rarity)
			assert.Equal(t, tt.condition, f.Condition)
			assert.Equal(t, "unknown", f.Edition)
			assert.Equal(t, 0.35, f.Confidence)
			assert.Equal(t, dto.ExtractionMethodRuleBased, f.Method)
		})
	}
}

func TestFeatureExtractorPrefersProvider(t *testing.T) {
	provider := &stubFeatureProvider{features: &dto.Features{CardName: "Mew", Method: dto.ExtractionMethodGemini, Confidence: 0.8}}
	f := NewFeatureExtractor(provider, logger.NewNop()).Extract(context.Background(), "Mew SR", "")

	assert.Equal(t, "Mew", f.CardName)
	assert.Equal(t, dto.ExtractionMethodGemini, f.Method)
	assert.Equal(t, 1, provider.calls)
}

func TestFeatureExtractorFallsBack(t *testing.T) {
	provider := &stubFeatureProvider{err: errors.New("quota")}
	f := NewFeatureExtractor(provider, logger.NewNop()).Extract(context.Background(), "Mew SR", "")
	assert.Equal(t, dto.ExtractionMethodRuleBased, f.Method)

	f = NewFeatureExtractor(nil, logger.NewNop()).Extract(context.Background(), "Mew SR", "")
	assert.Equal(t, "Mew", f.CardName)
	assert.Equal(t, "SR", f.Rarity)
}
