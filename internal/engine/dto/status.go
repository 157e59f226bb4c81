package dto

import "time"

// CircuitState is the market monitor's breaker.
type CircuitState struct {
	Open              bool       `json:"open"`
	Reason            string     `json:"reason,omitempty"`
	OpenedAt          *time.Time `json:"opened_at,omitempty"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	Consecutive403    int        `json:"consecutive_403"`
}

// MonitorStatus is a snapshot of the market monitor.
type MonitorStatus struct {
	IsRunning    bool         `json:"is_running"`
	Runs         int          `json:"runs"`
	LastRunAt    *time.Time   `json:"last_run_at,omitempty"`
	LastInserted int          `json:"last_inserted"`
	LastError    string       `json:"last_error,omitempty"`
	Circuit      CircuitState `json:"circuit"`
	ErrorCount   int          `json:"error_count"`
	Keyword      string       `json:"keyword"`
	MaxPrice     float64      `json:"max_price"`
	CookieError  string       `json:"cookie_error,omitempty"`
}

// StartResult reports the outcome of a start command.
type StartResult struct {
	Started                  bool   `json:"started"`
	Message                  string `json:"message"`
	CooldownRemainingSeconds int    `json:"cooldown_remaining_seconds,omitempty"`
}

// StopResult reports the outcome of a stop command.
type StopResult struct {
	Stopped bool   `json:"stopped"`
	Message string `json:"message"`
}

// MonitorRunResult is the outcome of one monitor cycle.
type MonitorRunResult struct {
	Fetched     int    `json:"fetched"`
	Inserted    int    `json:"inserted"`
	CircuitOpen bool   `json:"circuit_open"`
	Reason      string `json:"reason,omitempty"`
}

// ScanResult is the outcome of one scan scheduler cycle.
type ScanResult struct {
	Fetched  int      `json:"fetched"`
	Inserted int      `json:"inserted"`
	Errors   []string `json:"errors,omitempty"`
}

// ScannerStatus is a snapshot of the scan scheduler.
type ScannerStatus struct {
	IsRunning    bool       `json:"is_running"`
	Keywords     []string   `json:"keywords"`
	Interval     string     `json:"interval"`
	Pages        int        `json:"pages"`
	Runs         int        `json:"runs"`
	LastRunAt    *time.Time `json:"last_run_at,omitempty"`
	LastFetched  int        `json:"last_fetched"`
	LastInserted int        `json:"last_inserted"`
	LastError    string     `json:"last_error,omitempty"`
}

// BusStats is a snapshot of the event bus.
type BusStats struct {
	Running         bool   `json:"running"`
	Queued          int    `json:"queued"`
	Processed       uint64 `json:"processed"`
	HandlerFailures uint64 `json:"handler_failures"`
}

// StrategyStatus describes one live strategy.
type StrategyStatus struct {
	Name     string  `json:"name"`
	Active   bool    `json:"active"`
	Profile  string  `json:"profile"`
	Settings Profile `json:"settings"`
	Orders   int     `json:"orders"`
}

// Profile mirrors the strategy thresholds for status output.
type Profile struct {
	MinScore              float64 `json:"min_score"`
	MinROI                float64 `json:"min_roi"`
	MaxRiskScore          float64 `json:"max_risk_score"`
	AllowBlockedReview    bool    `json:"allow_blocked_review"`
	AutoRejectUnqualified bool    `json:"auto_reject_unqualified"`
}

// EngineStatus aggregates every engine's status.
type EngineStatus struct {
	Bus        BusStats         `json:"bus"`
	Monitor    MonitorStatus    `json:"monitor"`
	Scanner    ScannerStatus    `json:"scanner"`
	Strategies []StrategyStatus `json:"strategies"`
	Orders     int              `json:"orders"`
	Positions  []Position       `json:"positions"`
}
