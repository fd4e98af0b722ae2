package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Rorical/ragchat/internal/models"
)

var (
	ErrPollerRunning   = errors.New("status poller already running")
	ErrInvalidInterval = errors.New("poll interval must be positive")
)

// DefaultMaxInFlight bounds overlapping status fetches. Ticks that find the
// limit reached are skipped.
const DefaultMaxInFlight = 2

type StatusFetcher interface {
	FetchStatus(ctx context.Context) (models.StatusSnapshot, error)
}

// StatusPoller fetches a status snapshot immediately on Start and then once
// per interval, and publishes each result to subscribers.
//
// Fetches may overlap. Each one is numbered when issued and a result is
// applied only if no later-issued fetch has been applied already, so the
// published snapshot never goes back in time. Nothing is published after
// Stop returns, even by fetches that were in flight.
type StatusPoller struct {
	fetcher     StatusFetcher
	logger      *zap.Logger
	maxInFlight int64

	issued atomic.Uint64

	mu      sync.Mutex
	running bool
	gen     uint64
	sem     *semaphore.Weighted // slots of the current generation
	cancel  context.CancelFunc
	done    chan struct{}
	applied uint64
	latest  *models.StatusSnapshot
	nextSub int
	subs    map[int]func(models.StatusSnapshot)
}

func NewStatusPoller(fetcher StatusFetcher, maxInFlight int64, logger *zap.Logger) *StatusPoller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &StatusPoller{
		fetcher:     fetcher,
		logger:      logger.Named("poller"),
		maxInFlight: maxInFlight,
		subs:        make(map[int]func(models.StatusSnapshot)),
	}
}

// Subscribe registers fn for every applied snapshot and returns a func that
// removes it. fn runs with the poller lock held and must not call back into
// the poller.
func (p *StatusPoller) Subscribe(fn func(models.StatusSnapshot)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// Latest returns the most recently applied snapshot.
func (p *StatusPoller) Latest() (models.StatusSnapshot, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return models.StatusSnapshot{}, false
	}
	return *p.latest, true
}

func (p *StatusPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start begins polling. The first fetch is issued right away.
func (p *StatusPoller) Start(interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return ErrPollerRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.running = true
	p.gen++
	// Fetches abandoned by an earlier Stop keep their slots until they
	// return, so each generation gets fresh ones.
	p.sem = semaphore.NewWeighted(p.maxInFlight)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.loop(ctx, p.gen, p.sem, interval, p.done)
	p.logger.Info("status polling started", zap.Duration("interval", interval))
	return nil
}

// Stop cancels the timer and any in-flight fetch. It is safe to call more
// than once; after it returns no further snapshot is published.
func (p *StatusPoller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	done := p.done
	p.mu.Unlock()

	<-done
	p.logger.Info("status polling stopped")
}

func (p *StatusPoller) loop(ctx context.Context, gen uint64, sem *semaphore.Weighted, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.tick(ctx, gen, sem)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx, gen, sem)
		}
	}
}

func (p *StatusPoller) tick(ctx context.Context, gen uint64, sem *semaphore.Weighted) {
	if !sem.TryAcquire(1) {
		p.logger.Debug("status fetch still outstanding, skipping tick")
		return
	}
	seq := p.issued.Add(1)

	go func() {
		defer sem.Release(1)
		snap, err := p.fetcher.FetchStatus(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("status fetch failed", zap.Uint64("seq", seq), zap.Error(err))
			}
			return
		}
		p.apply(gen, seq, snap)
	}()
}

func (p *StatusPoller) apply(gen, seq uint64, snap models.StatusSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running || gen != p.gen {
		return
	}
	if seq <= p.applied {
		p.logger.Debug("discarding stale status", zap.Uint64("seq", seq), zap.Uint64("applied", p.applied))
		return
	}
	p.applied = seq
	p.latest = &snap
	for _, fn := range p.subs {
		fn(snap)
	}
}
