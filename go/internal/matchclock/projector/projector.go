package projector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/matchday/go/internal/models"
	"github.com/rs/zerolog/log"
)

var errSubscriptionClosed = errors.New("subscription closed")

// Subscription delivers records for one match until closed.
type Subscription interface {
	Updates() <-chan models.MatchClock
	Close() error
}

// Source is where a projector gets its records from.
type Source interface {
	Subscribe(ctx context.Context, matchID uuid.UUID) (Subscription, error)
	FetchClock(ctx context.Context, matchID uuid.UUID) (*models.MatchClock, error)
}

type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func DefaultConfig() Config {
	return Config{
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Option configures a Projector.
type Option func(*Projector)

// WithClock overrides the wall clock, used by tests.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Projector) {
		p.clock = clock
	}
}

// WithRenderer registers a callback invoked with every new view.
func WithRenderer(render func(View)) Option {
	return func(p *Projector) {
		p.render = render
	}
}

// Projector renders a ticking clock for one match from the last record it
// received plus locally elapsed time.
type Projector struct {
	source  Source
	matchID uuid.UUID
	cfg     Config
	clock   clockwork.Clock
	render  func(View)

	mu       sync.RWMutex
	last     *models.MatchClock
	minute   int
	seconds  int
	degraded bool
}

func New(source Source, matchID uuid.UUID, cfg Config, opts ...Option) *Projector {
	p := &Projector{
		source:   source,
		matchID:  matchID,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		degraded: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run follows the match until ctx is done. Subscribe and fetch failures leave
// the display degraded and are retried with capped exponential backoff.
func (p *Projector) Run(ctx context.Context) error {
	backoff := p.cfg.InitialBackoff
	for {
		synced, err := p.follow(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if synced {
			backoff = p.cfg.InitialBackoff
		}

		p.markDegraded()
		log.Warn().
			Err(err).
			Str("match_id", p.matchID.String()).
			Dur("retry_in", backoff).
			Msg("projector lost sync")

		select {
		case <-ctx.Done():
			return nil
		case <-p.clock.After(backoff):
		}
		backoff = min(backoff*2, p.cfg.MaxBackoff)
	}
}

// follow subscribes before fetching so a commit between the two is not lost;
// version gating discards whichever of the two is older.
func (p *Projector) follow(ctx context.Context) (bool, error) {
	sub, err := p.source.Subscribe(ctx, p.matchID)
	if err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	defer sub.Close()

	rec, err := p.source.FetchClock(ctx, p.matchID)
	if err != nil {
		return false, fmt.Errorf("fetch: %w", err)
	}
	p.Apply(*rec)

	ticker := p.clock.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case rec, ok := <-sub.Updates():
			if !ok {
				return true, errSubscriptionClosed
			}
			p.Apply(rec)
		case <-ticker.Chan():
			p.Tick()
		}
	}
}

// Apply resyncs from rec unless a newer record was already applied.
func (p *Projector) Apply(rec models.MatchClock) {
	p.mu.Lock()
	if p.last != nil && rec.Version < p.last.Version {
		p.mu.Unlock()
		log.Debug().
			Str("match_id", p.matchID.String()).
			Int64("version", rec.Version).
			Int64("current_version", p.last.Version).
			Msg("discarding stale record")
		return
	}

	p.last = &rec
	p.degraded = false
	if rec.Running() {
		elapsed := rec.ElapsedSeconds(p.clock.Now())
		p.minute = rec.CurrentMinute + int(elapsed/60)
		p.seconds = int(elapsed % 60)
	} else {
		p.minute = rec.CurrentMinute
		p.seconds = 0
	}
	view := p.viewLocked()
	p.mu.Unlock()

	p.emit(view)
}

// Tick advances the local display by one second while the clock runs.
func (p *Projector) Tick() {
	p.mu.Lock()
	if p.degraded || p.last == nil || !p.last.Running() {
		p.mu.Unlock()
		return
	}
	p.seconds++
	if p.seconds == 60 {
		p.seconds = 0
		p.minute++
	}
	view := p.viewLocked()
	p.mu.Unlock()

	p.emit(view)
}

func (p *Projector) markDegraded() {
	p.mu.Lock()
	p.degraded = true
	view := p.viewLocked()
	p.mu.Unlock()

	p.emit(view)
}

// View returns the current view.
func (p *Projector) View() View {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.viewLocked()
}

// Display returns the current display text.
func (p *Projector) Display() string {
	return p.View().Display
}

func (p *Projector) viewLocked() View {
	v := View{
		Display:  formatDisplay(p.last, p.minute, p.seconds, p.degraded),
		Minute:   p.minute,
		Seconds:  p.seconds,
		Degraded: p.degraded,
	}
	if p.last != nil {
		rec := *p.last
		v.Record = &rec
	}
	return v
}

func (p *Projector) emit(view View) {
	if p.render != nil {
		p.render(view)
	}
}
