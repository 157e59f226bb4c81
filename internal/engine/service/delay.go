package service

import (
	"math/rand"
	"sync"
	"time"

	"golang-cardflip-engine/internal/engine/config"
	"golang-cardflip-engine/pkg/utils"
)

// DelaySampler picks the sleep between monitor cycles from the time-of-day
// band, with an occasional long rest in its place.
type DelaySampler struct {
	cfg config.Monitor
	loc *time.Location

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDelaySampler creates a sampler. A nil rng is seeded from the clock.
func NewDelaySampler(cfg config.Monitor, rng *rand.Rand) *DelaySampler {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &DelaySampler{cfg: cfg, loc: utils.LoadLocation(cfg.Timezone), rng: rng}
}

// Band returns the delay band for the local hour of now.
// Day is 08-17, peak 17-24 and night 00-08.
func (d *DelaySampler) Band(now time.Time) config.DelayBand {
	hour := now.In(d.loc).Hour()
	switch {
	case hour >= 8 && hour < 17:
		return d.cfg.Day
	case hour >= 17:
		return d.cfg.Peak
	}
	return d.cfg.Night
}

// Next samples the delay to wait after a cycle finishing at now.
func (d *DelaySampler) Next(now time.Time) time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cfg.LongRestProbability > 0 && d.rng.Float64() < d.cfg.LongRestProbability {
		return seconds(utils.Uniform(d.rng, d.cfg.LongRestMin, d.cfg.LongRestMax))
	}
	band := d.Band(now)
	return seconds(utils.Triangular(d.rng, band.Min, band.Max, band.Likely))
}

func seconds(v float64) time.Duration {
	if v < 0 {
		v = 0
	}
	return time.Duration(v * float64(time.Second))
}
