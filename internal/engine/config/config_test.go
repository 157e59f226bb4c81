package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsAndOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
scanner:
  interval: 3s
  pages: 40
  keywords: [" pikachu ", "pikachu", "charizard"]
strategy:
  profile: safe
  profiles:
    conservative:
      min_score: 80
  overrides:
    max_risk_score: 25
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.06, cfg.Trading.PlatformFeeRate)
	assert.Equal(t, 3, cfg.Monitor.MaxErrors)
	assert.Equal(t, 900*time.Second, cfg.Monitor.Cooldown)
	assert.Equal(t, 10*time.Second, cfg.Scanner.Interval, "interval is clamped to the 10s minimum")
	assert.Equal(t, 10, cfg.Scanner.Pages)
	assert.Equal(t, []string{"pikachu", "charizard"}, cfg.Scanner.Keywords)
	assert.Equal(t, "conservative", cfg.Strategy.Profile)

	name, p, err := cfg.Strategy.LookupProfile("cons")
	require.NoError(t, err)
	assert.Equal(t, "conservative", name)
	assert.Equal(t, 80.0, p.MinScore)
	assert.Equal(t, 25.0, p.MaxRiskScore)
	assert.True(t, p.AutoRejectUnqualified)

	_, balanced, err := cfg.Strategy.LookupProfile("balanced")
	require.NoError(t, err)
	assert.Equal(t, 65.0, balanced.MinScore)
	assert.Equal(t, 25.0, balanced.MaxRiskScore, "global overrides apply to every profile")
}

func TestValidateRejectsUnknownProfile(t *testing.T) {
	cfg := Default()
	cfg.Strategy.Profile = "yolo"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsInvertedRiskThresholds(t *testing.T) {
	cfg := Default()
	cfg.Risk.BlockScore = 30
	assert.Error(t, cfg.Validate())
}

func TestRiskKeywords(t *testing.T) {
	cfg := Default()
	assert.Contains(t, cfg.Risk.Keywords(), "wechat")
	assert.Len(t, cfg.Risk.Keywords(), 8)
}
