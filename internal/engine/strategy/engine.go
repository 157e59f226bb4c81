package strategy

import (
	"fmt"
	"sync"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/internal/engine/dto"
	"golang-cardflip-engine/internal/engine/event"
	"golang-cardflip-engine/pkg/logger"
)

// Subscriber is the part of the bus the engine registers strategies on.
type Subscriber interface {
	Register(t event.Type, name string, fn event.Handler) event.HandlerID
}

// Engine owns the live strategies and the active threshold profile.
type Engine struct {
	bus Subscriber
	cfg config.Strategy
	log *logger.Logger

	mu          sync.RWMutex
	strategies  []Strategy
	byName      map[string]Strategy
	profileName string
	profile     config.Profile
}

// NewEngine creates an engine using the configured default profile.
func NewEngine(bus Subscriber, cfg config.Strategy, log *logger.Logger) (*Engine, error) {
	name, profile, err := cfg.LookupProfile(cfg.Profile)
	if err != nil {
		return nil, err
	}
	return &Engine{
		bus:         bus,
		cfg:         cfg,
		log:         log,
		byName:      make(map[string]Strategy),
		profileName: name,
		profile:     profile,
	}, nil
}

// Add registers a strategy on the bus and applies the current profile.
func (e *Engine) Add(s Strategy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.byName[s.Name()]; exists {
		return fmt.Errorf("strategy %q already registered", s.Name())
	}
	s.ApplyProfile(e.profileName, e.profile)
	e.strategies = append(e.strategies, s)
	e.byName[s.Name()] = s

	e.bus.Register(event.TypeItemAnalyzed, s.Name(), s.OnItemAnalyzed)
	e.bus.Register(event.TypeOrderTraded, s.Name(), s.OnOrderTraded)
	e.log.Info("Strategy registered", logger.StringField("strategy", s.Name()))
	return nil
}

func (e *Engine) Start(name string) error {
	s, err := e.lookup(name)
	if err != nil {
		return err
	}
	s.Start()
	return nil
}

func (e *Engine) Stop(name string) error {
	s, err := e.lookup(name)
	if err != nil {
		return err
	}
	s.Stop()
	return nil
}

func (e *Engine) StartAll() {
	for _, s := range e.list() {
		s.Start()
	}
}

func (e *Engine) StopAll() {
	for _, s := range e.list() {
		s.Stop()
	}
}

// SetProfile resolves a profile name or alias, applies the overrides on top
// and pushes the result to every live strategy.
func (e *Engine) SetProfile(name string, overrides config.ProfileOverride) (string, config.Profile, error) {
	canonical, base, err := e.cfg.LookupProfile(name)
	if err != nil {
		return "", config.Profile{}, err
	}
	profile := overrides.Apply(base)

	e.mu.Lock()
	e.profileName = canonical
	e.profile = profile
	strategies := append([]Strategy(nil), e.strategies...)
	e.mu.Unlock()

	for _, s := range strategies {
		s.ApplyProfile(canonical, profile)
	}
	e.log.Info("Strategy profile changed",
		logger.StringField("profile", canonical),
		logger.Float64Field("min_score", profile.MinScore),
		logger.Float64Field("min_roi", profile.MinROI),
		logger.Float64Field("max_risk_score", profile.MaxRiskScore))
	return canonical, profile, nil
}

// Profile returns the active profile.
func (e *Engine) Profile() (string, config.Profile) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.profileName, e.profile
}

func (e *Engine) Statuses() []dto.StrategyStatus {
	strategies := e.list()
	out := make([]dto.StrategyStatus, 0, len(strategies))
	for _, s := range strategies {
		out = append(out, s.Status())
	}
	return out
}

func (e *Engine) list() []Strategy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Strategy(nil), e.strategies...)
}

func (e *Engine) lookup(name string) (Strategy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s, ok := e.byName[name]
	if !ok {
		return nil, fmt.Errorf("strategy %q not found", name)
	}
	return s, nil
}
