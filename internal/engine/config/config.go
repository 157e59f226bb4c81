package config

import (
	"fmt"
	"strings"
	"time"

	"golang-cardflip-engine/pkg/config"
	"golang-cardflip-engine/pkg/utils"
)

// Trading holds the cost model shared by valuation, scoring and pricing.
type Trading struct {
	PlatformFeeRate float64 `mapstructure:"platform_fee_rate"`
	ShippingCost    float64 `mapstructure:"shipping_cost"`
	MinProfit       float64 `mapstructure:"min_profit"`
	MinROI          float64 `mapstructure:"min_roi"`
	RiskDiscount    float64 `mapstructure:"risk_discount"`
	ListMarkup      float64 `mapstructure:"list_markup"`
}

// Risk holds the risk scorer thresholds.
type Risk struct {
	BlockScore             float64 `mapstructure:"block_score"`
	ReviewScore            float64 `mapstructure:"review_score"`
	MinModelConfidence     float64 `mapstructure:"min_model_confidence"`
	MinComparables         int     `mapstructure:"min_comparables"`
	MaxCISpreadRatio       float64 `mapstructure:"max_ci_spread_ratio"`
	MinMarginRatio         float64 `mapstructure:"min_margin_ratio"`
	SellerOpenListingLimit int     `mapstructure:"seller_open_listing_limit"`
	KeywordPenalty         float64 `mapstructure:"keyword_penalty"`
	SuspiciousKeywords     string  `mapstructure:"suspicious_keywords"`
	SendToReviewMaxScore   float64 `mapstructure:"send_to_review_max_score"`
}

// Keywords returns the suspicious keyword list, lowercased.
func (r Risk) Keywords() []string {
	return utils.SplitCSV(r.SuspiciousKeywords)
}

// Pricing holds the reprice planner tuning.
type Pricing struct {
	AgeDiscountPerDay     float64            `mapstructure:"age_discount_per_day"`
	MaxAgeDiscount        float64            `mapstructure:"max_age_discount"`
	InventorySoftCap      int                `mapstructure:"inventory_soft_cap"`
	StaleDays             int                `mapstructure:"stale_days"`
	UrgentDays            int                `mapstructure:"urgent_days"`
	ModeFactors           map[string]float64 `mapstructure:"mode_factors"`
	VolatilityFactor      float64            `mapstructure:"volatility_factor"`
	MaxVolatilityDiscount float64            `mapstructure:"max_volatility_discount"`
	ComparableLimit       int                `mapstructure:"comparable_limit"`
	AutoRepriceEnabled    bool               `mapstructure:"auto_reprice_enabled"`
	AutoRepriceInterval   time.Duration      `mapstructure:"auto_reprice_interval"`
	AutoRepriceMode       string             `mapstructure:"auto_reprice_mode"`
}

// DelayBand is a triangular sleep distribution in seconds.
type DelayBand struct {
	Min    float64 `mapstructure:"min"`
	Likely float64 `mapstructure:"likely"`
	Max    float64 `mapstructure:"max"`
}

// Monitor holds the market monitor settings.
type Monitor struct {
	Keyword             string        `mapstructure:"keyword"`
	Pages               int           `mapstructure:"pages"`
	MaxPrice            float64       `mapstructure:"max_price"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	Timezone            string        `mapstructure:"timezone"`
	Day                 DelayBand     `mapstructure:"day"`
	Peak                DelayBand     `mapstructure:"peak"`
	Night               DelayBand     `mapstructure:"night"`
	LongRestProbability float64       `mapstructure:"long_rest_probability"`
	LongRestMin         float64       `mapstructure:"long_rest_min"`
	LongRestMax         float64       `mapstructure:"long_rest_max"`
	MaxErrors           int           `mapstructure:"max_errors"`
	BlockThreshold      int           `mapstructure:"block_threshold"`
	Cooldown            time.Duration `mapstructure:"cooldown"`
	UseProxy            bool          `mapstructure:"use_proxy"`
	AutoStart           bool          `mapstructure:"auto_start"`
}

// Scanner holds the keyword scan scheduler settings.
type Scanner struct {
	Keywords              []string      `mapstructure:"keywords"`
	Interval              time.Duration `mapstructure:"interval"`
	Pages                 int           `mapstructure:"pages"`
	MaxPrice              float64       `mapstructure:"max_price"`
	MaxConcurrentKeywords int           `mapstructure:"max_concurrent_keywords"`
	SeenTTL               time.Duration `mapstructure:"seen_ttl"`
	RequestTimeout        time.Duration `mapstructure:"request_timeout"`
	UseProxy              bool          `mapstructure:"use_proxy"`
	AutoStart             bool          `mapstructure:"auto_start"`
}

// Analysis holds the analysis engine settings.
type Analysis struct {
	RecentSalesLimit     int           `mapstructure:"recent_sales_limit"`
	OpenBatchLimit       int           `mapstructure:"open_batch_limit"`
	SweepEnabled         bool          `mapstructure:"sweep_enabled"`
	SweepInterval        time.Duration `mapstructure:"sweep_interval"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	NotifyUnderpriced    bool          `mapstructure:"notify_underpriced"`
	RequestRetryInterval time.Duration `mapstructure:"request_retry_interval"`
	RequestMaxIdle       time.Duration `mapstructure:"request_max_idle"`
	RequestMaxRetries    int64         `mapstructure:"request_max_retries"`
}

// Profile is a named bundle of strategy qualification thresholds.
type Profile struct {
	MinScore              float64 `mapstructure:"min_score" json:"min_score"`
	MinROI                float64 `mapstructure:"min_roi" json:"min_roi"`
	MaxRiskScore          float64 `mapstructure:"max_risk_score" json:"max_risk_score"`
	AllowBlockedReview    bool    `mapstructure:"allow_blocked_review" json:"allow_blocked_review"`
	AutoRejectUnqualified bool    `mapstructure:"auto_reject_unqualified" json:"auto_reject_unqualified"`
}

// ProfileOverride carries optional per-field overrides on top of a profile.
type ProfileOverride struct {
	MinScore              *float64 `mapstructure:"min_score" json:"min_score,omitempty"`
	MinROI                *float64 `mapstructure:"min_roi" json:"min_roi,omitempty"`
	MaxRiskScore          *float64 `mapstructure:"max_risk_score" json:"max_risk_score,omitempty"`
	AllowBlockedReview    *bool    `mapstructure:"allow_blocked_review" json:"allow_blocked_review,omitempty"`
	AutoRejectUnqualified *bool    `mapstructure:"auto_reject_unqualified" json:"auto_reject_unqualified,omitempty"`
}

// Apply returns p with every set override field replaced.
func (o ProfileOverride) Apply(p Profile) Profile {
	if o.MinScore != nil {
		p.MinScore = *o.MinScore
	}
	if o.MinROI != nil {
		p.MinROI = *o.MinROI
	}
	if o.MaxRiskScore != nil {
		p.MaxRiskScore = *o.MaxRiskScore
	}
	if o.AllowBlockedReview != nil {
		p.AllowBlockedReview = *o.AllowBlockedReview
	}
	if o.AutoRejectUnqualified != nil {
		p.AutoRejectUnqualified = *o.AutoRejectUnqualified
	}
	return p
}

// Strategy holds the strategy engine settings.
type Strategy struct {
	Enabled   bool                       `mapstructure:"enabled"`
	Name      string                     `mapstructure:"name"`
	Profile   string                     `mapstructure:"profile"`
	Profiles  map[string]ProfileOverride `mapstructure:"profiles"`
	Overrides ProfileOverride            `mapstructure:"overrides"`

	resolved map[string]Profile
}

// Marketplace holds the scrape source settings.
type Marketplace struct {
	BaseURL             string        `mapstructure:"base_url"`
	SearchPath          string        `mapstructure:"search_path"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Timeout             time.Duration `mapstructure:"timeout"`
	Cookie              string        `mapstructure:"cookie"`
	CookieProviderURL   string        `mapstructure:"cookie_provider_url"`
	CookieTTL           time.Duration `mapstructure:"cookie_ttl"`
	BrowserCookies      bool          `mapstructure:"browser_cookies"`
	BrowserLoginURL     string        `mapstructure:"browser_login_url"`
	ChromeBin           string        `mapstructure:"chrome_bin"`
	ProxyPoolURL        string        `mapstructure:"proxy_pool_url"`
}

// Gemini holds the configuration for the Gemini API.
type Gemini struct {
	Enabled             bool          `mapstructure:"enabled"`
	APIKey              string        `mapstructure:"api_key"`
	Model               string        `mapstructure:"model"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
	Timeout             time.Duration `mapstructure:"timeout"`
}

// Telegram holds configuration for the Telegram notifier.
type Telegram struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Bus holds the event bus settings.
type Bus struct {
	StopTimeout time.Duration `mapstructure:"stop_timeout"`
}

// Config holds the full configuration for the engine service.
type Config struct {
	App         config.App      `mapstructure:"app"`
	Logger      config.Logger   `mapstructure:"logger"`
	Database    config.Database `mapstructure:"database"`
	Redis       config.Redis    `mapstructure:"redis"`
	API         config.API      `mapstructure:"api"`
	Bus         Bus             `mapstructure:"bus"`
	Trading     Trading         `mapstructure:"trading"`
	Risk        Risk            `mapstructure:"risk"`
	Pricing     Pricing         `mapstructure:"pricing"`
	Monitor     Monitor         `mapstructure:"monitor"`
	Scanner     Scanner         `mapstructure:"scanner"`
	Analysis    Analysis        `mapstructure:"analysis"`
	Strategy    Strategy        `mapstructure:"strategy"`
	Marketplace Marketplace     `mapstructure:"marketplace"`
	Gemini      Gemini          `mapstructure:"gemini"`
	Telegram    Telegram        `mapstructure:"telegram"`
}

// Load loads the engine configuration from the given path and resolves it.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg, Defaults()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a fully resolved configuration built from Defaults only.
func Default() *Config {
	cfg := &Config{
		App:    config.App{Name: "cardflip-engine", Env: "local"},
		Logger: config.Logger{Level: "info", Encoding: "json"},
		Bus:    Bus{StopTimeout: 2 * time.Second},
		Trading: Trading{
			PlatformFeeRate: 0.06, ShippingCost: 8, MinProfit: 20, MinROI: 0.12,
			RiskDiscount: 0.05, ListMarkup: 0.03,
		},
		Risk: Risk{
			BlockScore: 70, ReviewScore: 40, MinModelConfidence: 0.45, MinComparables: 6,
			MaxCISpreadRatio: 0.35, MinMarginRatio: 0.08, SellerOpenListingLimit: 12,
			KeywordPenalty: 18, SuspiciousKeywords: defaultSuspiciousKeywords, SendToReviewMaxScore: 45,
		},
		Pricing: Pricing{
			AgeDiscountPerDay: 0.003, MaxAgeDiscount: 0.18, InventorySoftCap: 25,
			StaleDays: 3, UrgentDays: 7, ModeFactors: defaultModeFactors(),
			VolatilityFactor: 0.25, MaxVolatilityDiscount: 0.10, ComparableLimit: 40,
			AutoRepriceInterval: 6 * time.Hour, AutoRepriceMode: "balanced",
		},
		Monitor: Monitor{
			Pages: 1, MaxPrice: 100, RequestTimeout: 10 * time.Second, Timezone: "Local",
			Day:   DelayBand{Min: 15, Likely: 17, Max: 30},
			Peak:  DelayBand{Min: 3, Likely: 4, Max: 8},
			Night: DelayBand{Min: 25, Likely: 28, Max: 45},
			LongRestProbability: 0.05, LongRestMin: 10, LongRestMax: 30,
			MaxErrors: 3, BlockThreshold: 2, Cooldown: 900 * time.Second,
		},
		Scanner: Scanner{
			Interval: 300 * time.Second, Pages: 1, MaxPrice: 100, MaxConcurrentKeywords: 1, SeenTTL: time.Hour,
			RequestTimeout: 10 * time.Second,
		},
		Analysis: Analysis{
			RecentSalesLimit: 80, OpenBatchLimit: 50, SweepInterval: 10 * time.Minute, RequestTimeout: 30 * time.Second,
			RequestRetryInterval: time.Minute, RequestMaxIdle: 2 * time.Minute, RequestMaxRetries: 3,
		},
		Strategy: Strategy{Enabled: true, Name: "BargainHunter", Profile: "balanced"},
		Marketplace: Marketplace{
			BaseURL: "https://www.goofish.com", SearchPath: "/search", MaxRequestPerMinute: 20, Timeout: 10 * time.Second, CookieTTL: 30 * time.Minute,
		},
		Gemini: Gemini{Model: "gemini-2.0-flash", MaxRequestPerMinute: 10, Timeout: 30 * time.Second},
	}
	_ = cfg.Validate()
	return cfg
}

const defaultSuspiciousKeywords = "urgent sale,quick sale,private chat,vx,wechat,prepay,outside platform,offline deal"

func defaultModeFactors() map[string]float64 {
	return map[string]float64{"balanced": 1.00, "fast_exit": 0.96, "profit_max": 1.05}
}

// Defaults lists viper defaults for every tunable key.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"app.name":                           "cardflip-engine",
		"logger.level":                       "info",
		"logger.encoding":                    "json",
		"database.port":                      5432,
		"database.ssl_mode":                  "disable",
		"redis.port":                         6379,
		"redis.stream_max_len":               10000,
		"api.port":                           8080,
		"bus.stop_timeout":                   "2s",
		"trading.platform_fee_rate":          0.06,
		"trading.shipping_cost":              8.0,
		"trading.min_profit":                 20.0,
		"trading.min_roi":                    0.12,
		"trading.risk_discount":              0.05,
		"trading.list_markup":                0.03,
		"risk.block_score":                   70.0,
		"risk.review_score":                  40.0,
		"risk.min_model_confidence":          0.45,
		"risk.min_comparables":               6,
		"risk.max_ci_spread_ratio":           0.35,
		"risk.min_margin_ratio":              0.08,
		"risk.seller_open_listing_limit":     12,
		"risk.keyword_penalty":               18.0,
		"risk.suspicious_keywords":           defaultSuspiciousKeywords,
		"risk.send_to_review_max_score":      45.0,
		"pricing.age_discount_per_day":       0.003,
		"pricing.max_age_discount":           0.18,
		"pricing.inventory_soft_cap":         25,
		"pricing.stale_days":                 3,
		"pricing.urgent_days":                7,
		"pricing.mode_factors":               defaultModeFactors(),
		"pricing.volatility_factor":          0.25,
		"pricing.max_volatility_discount":    0.10,
		"pricing.comparable_limit":           40,
		"pricing.auto_reprice_interval":      "6h",
		"pricing.auto_reprice_mode":          "balanced",
		"monitor.pages":                      1,
		"monitor.max_price":                  100.0,
		"monitor.request_timeout":            "10s",
		"monitor.timezone":                   "Local",
		"monitor.day.min":                    15.0,
		"monitor.day.likely":                 17.0,
		"monitor.day.max":                    30.0,
		"monitor.peak.min":                   3.0,
		"monitor.peak.likely":                4.0,
		"monitor.peak.max":                   8.0,
		"monitor.night.min":                  25.0,
		"monitor.night.likely":               28.0,
		"monitor.night.max":                  45.0,
		"monitor.long_rest_probability":      0.05,
		"monitor.long_rest_min":              10.0,
		"monitor.long_rest_max":              30.0,
		"monitor.max_errors":                 3,
		"monitor.block_threshold":            2,
		"monitor.cooldown":                   "900s",
		"scanner.interval":                   "300s",
		"scanner.pages":                      1,
		"scanner.max_price":                  100.0,
		"scanner.max_concurrent_keywords":    1,
		"scanner.seen_ttl":                   "1h",
		"scanner.request_timeout":            "10s",
		"analysis.recent_sales_limit":        80,
		"analysis.open_batch_limit":          50,
		"analysis.sweep_interval":            "10m",
		"analysis.request_timeout":           "30s",
		"analysis.request_retry_interval":    "1m",
		"analysis.request_max_idle":          "2m",
		"analysis.request_max_retries":       3,
		"strategy.enabled":                   true,
		"strategy.name":                      "BargainHunter",
		"strategy.profile":                   "balanced",
		"marketplace.base_url":               "https://www.goofish.com",
		"marketplace.search_path":            "/search",
		"marketplace.max_request_per_minute": 20,
		"marketplace.timeout":                "10s",
		"marketplace.cookie_ttl":             "30m",
		"gemini.model":                       "gemini-2.0-flash",
		"gemini.max_request_per_minute":      10,
		"gemini.timeout":                     "30s",
	}
}

// builtinProfiles are the base threshold bundles before any override.
var builtinProfiles = map[string]Profile{
	"aggressive":   {MinScore: 50, MinROI: 0.10, MaxRiskScore: 60, AllowBlockedReview: true},
	"balanced":     {MinScore: 65, MinROI: 0.15, MaxRiskScore: 45},
	"conservative": {MinScore: 75, MinROI: 0.22, MaxRiskScore: 30, AutoRejectUnqualified: true},
}

var profileAliases = map[string]string{
	"agg":  "aggressive",
	"fast": "aggressive",
	"cons": "conservative",
	"safe": "conservative",
}

// NormalizeProfileName maps aliases to canonical profile names.
func NormalizeProfileName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := profileAliases[name]; ok {
		return canonical
	}
	return name
}

// ProfileNames lists the canonical profile names.
func ProfileNames() []string {
	return []string{"aggressive", "balanced", "conservative"}
}

// Resolve merges built-in profile defaults with the per-profile overrides and
// then the global overrides. It is called once by Validate.
func (s *Strategy) Resolve() {
	s.resolved = make(map[string]Profile, len(builtinProfiles))
	for name, base := range builtinProfiles {
		p := base
		if o, ok := s.Profiles[name]; ok {
			p = o.Apply(p)
		}
		s.resolved[name] = s.Overrides.Apply(p)
	}
	s.Profile = NormalizeProfileName(s.Profile)
}

// LookupProfile returns the resolved thresholds for a profile name or alias.
func (s *Strategy) LookupProfile(name string) (string, Profile, error) {
	if s.resolved == nil {
		s.Resolve()
	}
	canonical := NormalizeProfileName(name)
	p, ok := s.resolved[canonical]
	if !ok {
		return "", Profile{}, fmt.Errorf("unknown strategy profile %q", name)
	}
	return canonical, p, nil
}

// Validate clamps ranges, rejects impossible values and resolves profiles.
func (c *Config) Validate() error {
	if c.Trading.PlatformFeeRate < 0 || c.Trading.PlatformFeeRate >= 1 {
		return fmt.Errorf("trading.platform_fee_rate must be in [0,1), got %v", c.Trading.PlatformFeeRate)
	}
	if c.Trading.ShippingCost < 0 || c.Trading.MinProfit < 0 {
		return fmt.Errorf("trading costs must be non-negative")
	}
	if c.Risk.BlockScore < c.Risk.ReviewScore {
		return fmt.Errorf("risk.block_score (%v) must be >= risk.review_score (%v)", c.Risk.BlockScore, c.Risk.ReviewScore)
	}
	if c.Monitor.MaxErrors <= 0 || c.Monitor.BlockThreshold <= 0 {
		return fmt.Errorf("monitor.max_errors and monitor.block_threshold must be positive")
	}

	c.Monitor.Pages = clampInt(c.Monitor.Pages, 1, 10)
	c.Scanner.Pages = clampInt(c.Scanner.Pages, 1, 10)
	if c.Scanner.Interval < 10*time.Second {
		c.Scanner.Interval = 10 * time.Second
	}
	if c.Scanner.RequestTimeout <= 0 {
		c.Scanner.RequestTimeout = 10 * time.Second
	}
	if c.Scanner.MaxConcurrentKeywords <= 0 {
		c.Scanner.MaxConcurrentKeywords = 1
	}
	if len(c.Pricing.ModeFactors) == 0 {
		c.Pricing.ModeFactors = defaultModeFactors()
	}
	if c.Analysis.SweepInterval <= 0 {
		c.Analysis.SweepInterval = 10 * time.Minute
	}
	if c.Analysis.RequestRetryInterval <= 0 {
		c.Analysis.RequestRetryInterval = time.Minute
	}
	if c.Pricing.AutoRepriceInterval <= 0 {
		c.Pricing.AutoRepriceInterval = 6 * time.Hour
	}
	if c.Bus.StopTimeout <= 0 {
		c.Bus.StopTimeout = 2 * time.Second
	}
	if c.Marketplace.MaxRequestPerMinute <= 0 {
		c.Marketplace.MaxRequestPerMinute = 20
	}
	if c.Gemini.MaxRequestPerMinute <= 0 {
		c.Gemini.MaxRequestPerMinute = 10
	}
	c.Scanner.Keywords = utils.UniqueTrimmed(c.Scanner.Keywords)

	c.Strategy.Resolve()
	if _, _, err := c.Strategy.LookupProfile(c.Strategy.Profile); err != nil {
		return err
	}
	return nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
