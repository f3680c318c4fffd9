package eventsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bnema/twitch-bot-cli/internal/domain"
	"github.com/bnema/twitch-bot-cli/internal/log"
)

const (
	DefaultURL            = "wss://eventsub.wss.twitch.tv/ws"
	DefaultKeepaliveGrace = 2 * time.Second
	DefaultWelcomeTimeout = 10 * time.Second
)

type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateReconciling
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateReconciling:
		return "reconciling"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

type Cause string

const (
	CauseUnexpected       Cause = "unexpected"
	CauseKeepaliveTimeout Cause = "keepalive_timeout"
	CauseReconnect        Cause = "reconnect"
	CauseRevoked          Cause = "revoked"
	CauseCanceled         Cause = "canceled"
	CauseDialFailed       Cause = "dial_failed"
)

// Endpoint is where one Serve call opens its socket. Resume is set when the
// URL is a server-provided reconnect_url; the session then keeps its
// subscriptions and the welcome does not reconcile.
type Endpoint struct {
	URL    string
	Resume bool
}

// Disconnect explains why Serve returned. Code is the close code sent or
// received, zero when the socket broke without one.
type Disconnect struct {
	Cause        Cause
	Code         int
	Reason       string
	ReconnectURL string
	Err          error
}

// SubscriptionAPI creates and deletes server-side subscriptions for one
// entity. Implementations authenticate as that entity.
type SubscriptionAPI interface {
	Create(ctx context.Context, entity domain.EntityID, sessionID string, spec domain.SubscriptionSpec) (domain.Subscription, error)
	Delete(ctx context.Context, entity domain.EntityID, id string) error
}

// SubscriptionLedger persists the subscription ids of an entity so stale
// ones can be deleted by a later process.
type SubscriptionLedger interface {
	LoadSubscriptionIDs(ctx context.Context, entity domain.EntityID) ([]string, error)
	SaveSubscriptionIDs(ctx context.Context, entity domain.EntityID, ids []string) error
}

// NotificationHandler receives notifications in arrival order. It runs on
// the connection loop; a slow handler delays the next frame.
type NotificationHandler func(ctx context.Context, entity domain.EntityID, notification Notification)

type ConnectionConfig struct {
	Entity         domain.EntityID
	Dialer         Dialer
	API            SubscriptionAPI
	Ledger         SubscriptionLedger
	Handler        NotificationHandler
	KeepaliveGrace time.Duration
	WelcomeTimeout time.Duration
	Logger         *zerolog.Logger
	Now            func() time.Time
}

// Connection keeps one entity's EventSub session. Each Serve call owns one
// socket from dial to close.
type Connection struct {
	entity         domain.EntityID
	dialer         Dialer
	api            SubscriptionAPI
	ledger         SubscriptionLedger
	handler        NotificationHandler
	keepaliveGrace time.Duration
	welcomeTimeout time.Duration
	logger         zerolog.Logger
	now            func() time.Time

	state atomic.Int32

	mu              sync.RWMutex
	session         *domain.SessionDescriptor
	subscriptionIDs []string
}

func NewConnection(cfg ConnectionConfig) (*Connection, error) {
	if cfg.Entity == "" {
		return nil, errors.New("entity is required")
	}
	if cfg.Dialer == nil {
		return nil, errors.New("dialer is required")
	}
	if cfg.API == nil {
		return nil, errors.New("subscription api is required")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("subscription ledger is required")
	}

	c := &Connection{
		entity:         cfg.Entity,
		dialer:         cfg.Dialer,
		api:            cfg.API,
		ledger:         cfg.Ledger,
		handler:        cfg.Handler,
		keepaliveGrace: cfg.KeepaliveGrace,
		welcomeTimeout: cfg.WelcomeTimeout,
		now:            cfg.Now,
	}
	if c.keepaliveGrace <= 0 {
		c.keepaliveGrace = DefaultKeepaliveGrace
	}
	if c.welcomeTimeout <= 0 {
		c.welcomeTimeout = DefaultWelcomeTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if cfg.Logger != nil {
		c.logger = cfg.Logger.With().Str(log.FieldChannelID, string(cfg.Entity)).Logger()
	} else {
		c.logger = log.WithChannel("eventsub", string(cfg.Entity))
	}

	return c, nil
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

// Session returns a copy of the current session, if a welcome was received
// on the live socket.
func (c *Connection) Session() (domain.SessionDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.session == nil {
		return domain.SessionDescriptor{}, false
	}
	return *c.session, true
}

// SubscriptionIDs returns the ids created by the last reconciliation.
func (c *Connection) SubscriptionIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return append([]string(nil), c.subscriptionIDs...)
}

func (c *Connection) setState(next State) {
	prev := State(c.state.Swap(int32(next)))
	if prev != next {
		c.logger.Debug().
			Str(log.FieldOldState, prev.String()).
			Str(log.FieldNewState, next.String()).
			Msg("connection state changed")
	}
}

func (c *Connection) setSession(session *domain.SessionDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session = session
}

type readResult struct {
	data []byte
	err  error
}

// Serve dials ep, runs the session until the socket ends, and reports why.
// The socket, its reader goroutine and the keepalive timer never outlive
// the call.
func (c *Connection) Serve(ctx context.Context, ep Endpoint) (d Disconnect) {
	if ep.URL == "" {
		ep.URL = DefaultURL
	}

	connID := uuid.NewString()
	logger := c.logger.With().Str(log.FieldConnID, connID).Logger()

	defer func() {
		switch d.Cause {
		case CauseCanceled, CauseRevoked:
			c.setState(StateClosed)
		default:
			c.setState(StateReconnecting)
		}
		disconnectsTotal.WithLabelValues(string(d.Cause)).Inc()
	}()

	c.setState(StateConnecting)
	logger.Debug().Str("url", ep.URL).Bool("resume", ep.Resume).Msg("dialing eventsub")

	transport, err := c.dialer.Dial(ctx, ep.URL)
	if err != nil {
		if ctx.Err() != nil {
			return Disconnect{Cause: CauseCanceled, Err: ctx.Err()}
		}
		logger.Warn().Err(err).Msg("eventsub dial failed")
		return Disconnect{Cause: CauseDialFailed, Err: err}
	}

	frames := make(chan readResult)
	stop := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			data, err := transport.Read()
			select {
			case frames <- readResult{data: data, err: err}:
			case <-stop:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	closeCode := CloseNormal
	closeReason := "client closing"
	defer func() {
		close(stop)
		_ = transport.Close(closeCode, closeReason)
		<-readerDone
		c.setSession(nil)
	}()

	closeWith := func(code int, reason string) {
		closeCode, closeReason = code, reason
	}

	window := c.welcomeTimeout + c.keepaliveGrace
	timer := time.NewTimer(window)
	defer timer.Stop()

	welcomed := false
	for {
		select {
		case <-ctx.Done():
			closeWith(CloseNormal, "untracked")
			return Disconnect{Cause: CauseCanceled, Code: CloseNormal, Reason: "untracked", Err: ctx.Err()}

		case <-timer.C:
			closeWith(CloseKeepaliveTimeout, "keepalive timeout")
			logger.Warn().Dur("window", window).Msg("no frame within keepalive window")
			return Disconnect{Cause: CauseKeepaliveTimeout, Code: CloseKeepaliveTimeout, Reason: "keepalive timeout"}

		case res := <-frames:
			if res.err != nil {
				return c.readFailure(logger, res.err)
			}
			resetTimer(timer, window)

			meta, msg, err := decodeFrame(res.data)
			if err != nil {
				framesTotal.WithLabelValues("invalid").Inc()
				logger.Warn().Err(err).Str(log.FieldMessageType, meta.MessageType).Msg("ignoring eventsub frame")
				continue
			}
			framesTotal.WithLabelValues(meta.MessageType).Inc()

			switch m := msg.(type) {
			case welcomeMessage:
				if keepalive := m.Session.KeepaliveTimeout(); keepalive > 0 {
					window = keepalive + c.keepaliveGrace
				}
				c.setSession(&domain.SessionDescriptor{
					SessionID:        m.Session.ID,
					Status:           domain.SessionStatusConnected,
					KeepaliveTimeout: m.Session.KeepaliveTimeout(),
					CreatedAt:        c.now(),
				})
				logger.Info().Str(log.FieldSessionID, m.Session.ID).Dur("keepalive", m.Session.KeepaliveTimeout()).Msg("eventsub session welcomed")

				if !welcomed && !ep.Resume {
					c.setState(StateReconciling)
					c.reconcile(ctx, logger, m.Session.ID)
				}
				welcomed = true
				c.setState(StateConnected)
				resetTimer(timer, window)

			case keepaliveMessage:

			case Notification:
				if c.handler != nil {
					c.handler(ctx, c.entity, m)
				}

			case reconnectMessage:
				url := ""
				if m.Session.ReconnectURL != nil {
					url = *m.Session.ReconnectURL
				}
				c.setSession(&domain.SessionDescriptor{
					SessionID:    m.Session.ID,
					Status:       domain.SessionStatusReconnecting,
					ReconnectURL: url,
					CreatedAt:    c.now(),
				})
				closeWith(ClosePlannedReconnect, "reconnect requested")
				logger.Info().Str(log.FieldSessionID, m.Session.ID).Msg("eventsub server requested reconnect")
				return Disconnect{Cause: CauseReconnect, Code: ClosePlannedReconnect, Reason: "reconnect requested", ReconnectURL: url}

			case Revocation:
				closeWith(CloseRevoked, "subscription revoked")
				logger.Error().
					Str(log.FieldSubscriptionID, m.Subscription.ID).
					Str(log.FieldEventType, m.Subscription.Type).
					Str(log.FieldStatus, m.Subscription.Status).
					Msg("eventsub subscription revoked")
				return Disconnect{Cause: CauseRevoked, Code: CloseRevoked, Reason: m.Subscription.Status}
			}
		}
	}
}

func (c *Connection) readFailure(logger zerolog.Logger, err error) Disconnect {
	var closeErr *CloseError
	if errors.As(err, &closeErr) {
		logger.Warn().Int(log.FieldCloseCode, closeErr.Code).Str("reason", closeErr.Text).Msg("eventsub socket closed by server")
		return Disconnect{Cause: CauseUnexpected, Code: closeErr.Code, Reason: closeErr.Text, Err: err}
	}

	logger.Warn().Err(err).Msg("eventsub socket read failed")
	return Disconnect{Cause: CauseUnexpected, Err: err}
}

func resetTimer(timer *time.Timer, d time.Duration) {
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	timer.Reset(d)
}
