package sim

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"
)

//go:generate go tool mockgen -source=advisor.go -destination=mocks/advisor_mock.go -package=mocks

// ErrNoAdvice is returned by advisors that have nothing to suggest.
var ErrNoAdvice = errors.New("no advice available")

// AdviceRequest is the game-state snapshot sent to the advisory collaborator.
type AdviceRequest struct {
	Seq         uint64  `json:"seq"`
	Personality string  `json:"personality"`
	Phase       int     `json:"phase"`
	HealthRatio float64 `json:"healthRatio"`
	BossX       float64 `json:"bossX"`
	PlayerX     float64 `json:"playerX"`
	PlayerLives int     `json:"playerLives"`
	Invaders    int     `json:"invaders"`
	Tick        uint64  `json:"tick"`
}

// Advisor suggests the next boss attack pattern. Implementations may block;
// the simulation only ever calls them from a background goroutine. They must
// return once ctx is done, since a call that outlives it still holds one of
// the client's maxRunning slots.
type Advisor interface {
	Suggest(ctx context.Context, req AdviceRequest) (string, error)
}

// maxRunning bounds advisor calls still running, abandoned ones included.
const maxRunning = 4

type advice struct {
	seq     uint64
	pattern string
	err     error
}

// AdvisoryClient runs at most one advisor request at a time and hands back
// results without blocking. Only the answer to the latest request is used;
// anything else is stale and dropped.
type AdvisoryClient struct {
	advisor  Advisor
	timeout  time.Duration
	maxAge   time.Duration
	log      *slog.Logger
	results  chan advice
	seq      uint64
	inflight bool
	issuedAt time.Duration
	running  atomic.Int32
}

// NewAdvisoryClient wraps an advisor with the configured latency budget.
func NewAdvisoryClient(a Advisor, cfg AdvisoryConfig, log *slog.Logger) *AdvisoryClient {
	if log == nil {
		log = slog.Default()
	}
	return &AdvisoryClient{
		advisor: a,
		timeout: cfg.Timeout,
		maxAge:  cfg.MaxAge,
		log:     log,
		results: make(chan advice, 4),
	}
}

// Request starts an asynchronous suggestion unless one is still in flight.
// now is simulated time and is only used to age the answer.
func (c *AdvisoryClient) Request(now time.Duration, req AdviceRequest) {
	if c.inflight {
		if now-c.issuedAt <= c.maxAge {
			return
		}
		// give up on the lost request; its answer will carry an old seq
		c.inflight = false
	}
	if c.running.Load() >= maxRunning {
		c.log.Warn("advisor calls not returning, skipping request", "running", c.running.Load())
		return
	}
	c.running.Add(1)
	c.seq++
	req.Seq = c.seq
	c.inflight = true
	c.issuedAt = now

	go func(a Advisor, timeout time.Duration, out chan<- advice) {
		defer c.running.Add(-1)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		pattern, err := a.Suggest(ctx, req)
		select {
		case out <- advice{seq: req.Seq, pattern: pattern, err: err}:
		default:
		}
	}(c.advisor, c.timeout, c.results)
}

// Poll returns the answer to the latest request if it has arrived, succeeded
// and is not older than MaxAge. It never blocks.
func (c *AdvisoryClient) Poll(now time.Duration) (string, bool) {
	for {
		select {
		case a := <-c.results:
			if a.seq != c.seq {
				c.log.Debug("discarding stale advice", "seq", a.seq, "latest", c.seq)
				continue
			}
			c.inflight = false
			if a.err != nil {
				c.log.Debug("advisor failed, using fallback", "err", a.err)
				return "", false
			}
			if now-c.issuedAt > c.maxAge {
				c.log.Debug("advice too old, using fallback", "age", now-c.issuedAt)
				return "", false
			}
			return a.pattern, true
		default:
			return "", false
		}
	}
}

// Running reports advisor calls that have not returned yet.
func (c *AdvisoryClient) Running() int {
	return int(c.running.Load())
}

// Seq is the sequence number of the latest request.
func (c *AdvisoryClient) Seq() uint64 {
	return c.seq
}

// defaultFallbackPatterns is the deterministic attack rotation per
// personality, used whenever no fresh advice is available.
func defaultFallbackPatterns() map[string][]string {
	return map[string][]string{
		PersonalityAggressive.String(): {PatternAimed, PatternSpread, PatternAimed, PatternBombRain},
		PersonalityDefensive.String():  {PatternSpread, PatternSpiral, PatternSpread, PatternLaserSweep},
		PersonalityTactical.String():   {PatternAimed, PatternHomingBarrage, PatternSpread, PatternBombRain, PatternLaserSweep},
		PersonalityChaotic.String():    {PatternSpiral, PatternBombRain, PatternHomingBarrage, PatternLaserSweep, PatternSpread},
	}
}
