package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

const (
	// DefaultLogInterval is the pause between two height polls.
	DefaultLogInterval = 4 * time.Second
	// DefaultQueryTimeout bounds a single poll.
	DefaultQueryTimeout = 30 * time.Second
)

// LoggedState is a snapshot of on-chain data that can be compared and diffed.
// Implementations must treat their receiver as immutable.
type LoggedState[S any, D any] interface {
	// Identity returns the empty state that a diff is applied to for rendering.
	Identity() S
	Equal(other S) bool
	// Diff returns the changes that turn the receiver into other.
	Diff(other S) D
	Apply(diff D) S
	String() string
	// NewState reads the current state from the chain.
	NewState(ctx context.Context, client chain.Client) (S, error)
}

// Config configures a Tracker.
type Config struct {
	LogInterval  time.Duration
	QueryTimeout time.Duration
	// Label tags every update, the chain id is used when empty.
	Label string
}

// Update is emitted whenever the tracked state changed at a new height.
type Update[D any] struct {
	Label    string
	Height   uint64
	Diff     D
	Rendered string
}

func (u Update[D]) String() string {
	return fmt.Sprintf("[%s] height %d: Update diff: %s", u.Label, u.Height, u.Rendered)
}

// Tracker polls a chain and recomputes its state each time the height advances.
type Tracker[S LoggedState[S, D], D any] struct {
	client chain.Client
	cfg    Config
	logger *zap.Logger

	state      S
	lastHeight uint64
}

// New returns a tracker seeded with initial.
func New[S LoggedState[S, D], D any](client chain.Client, initial S, cfg Config, logger *zap.Logger) *Tracker[S, D] {
	if cfg.LogInterval <= 0 {
		cfg.LogInterval = DefaultLogInterval
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker[S, D]{
		client: client,
		cfg:    cfg,
		logger: logger,
		state:  initial,
	}
}

// Run blocks until ctx is cancelled, sending each update to updates when it is
// not nil. Cancellation is observed between polls only, a poll in flight runs
// to completion. Run returns nil on cancellation.
func (t *Tracker[S, D]) Run(ctx context.Context, updates chan<- Update[D]) error {
	info, err := t.client.BlockInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to query baseline block: %w", err)
	}
	t.lastHeight = info.Height
	if t.cfg.Label == "" {
		t.cfg.Label = info.ChainID
	}
	t.logger = t.logger.With(zap.String("target", t.cfg.Label))
	t.logger.Info("tracking state", zap.Uint64("height", t.lastHeight), zap.Duration("interval", t.cfg.LogInterval))

	ticker := time.NewTicker(t.cfg.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("stopped tracking state", zap.Uint64("height", t.lastHeight))
			return nil
		default:
		}

		if update, changed := t.poll(ctx); changed && updates != nil {
			select {
			case updates <- update:
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case <-ctx.Done():
			t.logger.Info("stopped tracking state", zap.Uint64("height", t.lastHeight))
			return nil
		case <-ticker.C:
		}
	}
}

// poll runs one iteration. It is detached from ctx cancellation so a state is
// never observed half-refreshed.
func (t *Tracker[S, D]) poll(ctx context.Context) (Update[D], bool) {
	pollCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.QueryTimeout)
	defer cancel()

	height, err := t.client.BlockHeight(pollCtx)
	if err != nil {
		t.logger.Warn("failed to query block height", zap.Error(err))
		return Update[D]{}, false
	}
	if height <= t.lastHeight {
		return Update[D]{}, false
	}

	next, err := t.state.NewState(pollCtx, t.client)
	if err != nil {
		t.logger.Warn("failed to refresh state", zap.Uint64("height", height), zap.Error(err))
		return Update[D]{}, false
	}

	var (
		update  Update[D]
		changed bool
	)
	if !t.state.Equal(next) {
		diff := t.state.Diff(next)
		update = Update[D]{
			Label:    t.cfg.Label,
			Height:   height,
			Diff:     diff,
			Rendered: t.state.Identity().Apply(diff).String(),
		}
		changed = true
		t.logger.Info("Update diff: "+update.Rendered, zap.Uint64("height", height))
	} else {
		t.logger.Debug("state updated", zap.Uint64("height", height))
	}

	t.state = next
	t.lastHeight = height
	return update, changed
}

// State returns the last computed state. It must not be called while Run is active.
func (t *Tracker[S, D]) State() S {
	return t.state
}

// Handle controls a tracker started with Spawn.
type Handle[D any] struct {
	cancel  context.CancelFunc
	updates chan Update[D]
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// Spawn runs a tracker in its own goroutine until Stop is called or ctx is cancelled.
func Spawn[S LoggedState[S, D], D any](ctx context.Context, client chain.Client, initial S, cfg Config, logger *zap.Logger) *Handle[D] {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle[D]{
		cancel:  cancel,
		updates: make(chan Update[D], 16),
		done:    make(chan struct{}),
	}

	t := New[S, D](client, initial, cfg, logger)
	go func() {
		defer close(h.done)
		defer close(h.updates)

		err := t.Run(ctx, h.updates)
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
	}()
	return h
}

// Updates returns the channel of emitted updates. It is closed when the tracker stops.
func (h *Handle[D]) Updates() <-chan Update[D] {
	return h.updates
}

// Stop cancels the tracker. It does not wait for it to return.
func (h *Handle[D]) Stop() {
	h.cancel()
}

// Wait blocks until the tracker has returned.
func (h *Handle[D]) Wait() error {
	<-h.done
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed when the tracker has returned.
func (h *Handle[D]) Done() <-chan struct{} {
	return h.done
}
