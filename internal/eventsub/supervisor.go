package eventsub

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/log"
)

const DefaultRedialDelay = time.Second

var ErrNotTracked = errors.New("entity is not tracked")

// ConnectionFactory builds the Connection of a newly tracked entity.
type ConnectionFactory func(id domain.EntityID) (*Connection, error)

// FatalHandler is told about an entity dropped after a revocation.
type FatalHandler func(id domain.EntityID, d Disconnect)

type SupervisorOption func(*Supervisor)

func WithDefaultURL(url string) SupervisorOption {
	return func(s *Supervisor) {
		if url != "" {
			s.defaultURL = url
		}
	}
}

func WithRedialDelay(d time.Duration) SupervisorOption {
	return func(s *Supervisor) {
		if d >= 0 {
			s.redialDelay = d
		}
	}
}

func WithFatalHandler(fn FatalHandler) SupervisorOption {
	return func(s *Supervisor) {
		s.onFatal = fn
	}
}

func WithSupervisorLogger(logger zerolog.Logger) SupervisorOption {
	return func(s *Supervisor) {
		s.logger = logger
	}
}

// Supervisor owns one Connection per tracked entity and restarts its socket
// according to why the previous one ended.
type Supervisor struct {
	factory     ConnectionFactory
	defaultURL  string
	redialDelay time.Duration
	onFatal     FatalHandler
	logger      zerolog.Logger
	wait        func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	active map[domain.EntityID]*supervised
	closed bool
}

type supervised struct {
	conn   *Connection
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSupervisor(factory ConnectionFactory, opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{
		factory:     factory,
		defaultURL:  DefaultURL,
		redialDelay: DefaultRedialDelay,
		logger:      log.WithComponent("supervisor"),
		wait:        sleepContext,
		active:      map[domain.EntityID]*supervised{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Track starts supervising id. Tracking an already tracked entity is a no-op.
func (s *Supervisor) Track(id domain.EntityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("supervisor is shut down")
	}
	if _, ok := s.active[id]; ok {
		return nil
	}

	conn, err := s.factory(id)
	if err != nil {
		return fmt.Errorf("build connection for %s: %w", id, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sup := &supervised{conn: conn, cancel: cancel, done: make(chan struct{})}
	s.active[id] = sup
	activeConnections.Inc()

	go s.supervise(ctx, id, sup)

	s.logger.Info().Str(log.FieldChannelID, string(id)).Msg("tracking channel")
	return nil
}

type untrackOptions struct {
	cleanup bool
}

type UntrackOption func(*untrackOptions)

// WithCleanup also deletes the entity's persisted subscriptions once its
// socket is closed.
func WithCleanup() UntrackOption {
	return func(o *untrackOptions) {
		o.cleanup = true
	}
}

// Untrack stops supervising id and waits for its socket to close.
func (s *Supervisor) Untrack(ctx context.Context, id domain.EntityID, opts ...UntrackOption) error {
	var options untrackOptions
	for _, opt := range opts {
		opt(&options)
	}

	s.mu.Lock()
	sup, ok := s.active[id]
	if ok {
		delete(s.active, id)
		activeConnections.Dec()
	}
	s.mu.Unlock()

	if !ok {
		return ErrNotTracked
	}

	sup.cancel()
	select {
	case <-sup.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info().Str(log.FieldChannelID, string(id)).Msg("channel untracked")

	if options.cleanup {
		if err := sup.conn.DeleteSubscriptions(ctx); err != nil {
			return fmt.Errorf("clean up subscriptions for %s: %w", id, err)
		}
	}

	return nil
}

// Active lists the tracked entities in id order.
func (s *Supervisor) Active() []domain.EntityID {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]domain.EntityID, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Supervisor) Connection(id domain.EntityID) (*Connection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sup, ok := s.active[id]
	if !ok {
		return nil, false
	}
	return sup.conn, true
}

// Shutdown untracks every entity and refuses further Track calls.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	ids := make([]domain.EntityID, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := s.Untrack(ctx, id); err != nil && !errors.Is(err, ErrNotTracked) {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (s *Supervisor) supervise(ctx context.Context, id domain.EntityID, sup *supervised) {
	defer close(sup.done)

	logger := s.logger.With().Str(log.FieldChannelID, string(id)).Logger()
	ep := Endpoint{URL: s.defaultURL}

	for {
		d := sup.conn.Serve(ctx, ep)

		switch d.Cause {
		case CauseCanceled:
			return

		case CauseRevoked:
			s.drop(id, sup)
			logger.Error().Str("reason", d.Reason).Msg("channel dropped after revocation")
			if s.onFatal != nil {
				s.onFatal(id, d)
			}
			return

		case CauseReconnect:
			if d.ReconnectURL == "" {
				ep = Endpoint{URL: s.defaultURL}
				continue
			}
			ep = Endpoint{URL: d.ReconnectURL, Resume: true}

		case CauseDialFailed:
			logger.Warn().Err(d.Err).Dur("delay", s.redialDelay).Msg("redialing eventsub")
			if err := s.wait(ctx, s.redialDelay); err != nil {
				return
			}
			ep = Endpoint{URL: s.defaultURL}

		default:
			logger.Info().
				Str(log.FieldCause, string(d.Cause)).
				Int(log.FieldCloseCode, d.Code).
				Msg("reopening eventsub socket")
			ep = Endpoint{URL: s.defaultURL}
		}
	}
}

func (s *Supervisor) drop(id domain.EntityID, sup *supervised) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.active[id]; ok && current == sup {
		delete(s.active, id)
		activeConnections.Dec()
	}
	sup.cancel()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
