package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kmcbride3/discordflow/internal/action"
	"github.com/kmcbride3/discordflow/internal/engine"
	"github.com/kmcbride3/discordflow/internal/gateway"
	"github.com/kmcbride3/discordflow/internal/rpc"
	"github.com/kmcbride3/discordflow/internal/session"
	"github.com/kmcbride3/discordflow/internal/trigger"
	"github.com/kmcbride3/discordflow/internal/workflow"
)

// Coordinator owns the long-lived platform session and answers caller
// requests over the control channel. Credential handshakes are
// serialized; a submission arriving while another is mid-login is
// answered with the login outcome instead of queueing.
type Coordinator struct {
	logger   *slog.Logger
	session  *session.Session
	gateway  gateway.Client
	registry *trigger.Registry
	engine   *engine.Engine
	invoker  *workflow.Invoker
	executor *action.Executor

	loginTimeout time.Duration

	credMu      sync.Mutex
	primed      bool
	unsubscribe func()

	pendingMu sync.Mutex
	pending   gateway.Identity
}

func New(log *slog.Logger, sess *session.Session, gw gateway.Client, registry *trigger.Registry, eng *engine.Engine, inv *workflow.Invoker, exec *action.Executor) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	c := &Coordinator{
		logger:       log.With(slog.String("component", "coordinator")),
		session:      sess,
		gateway:      gw,
		registry:     registry,
		engine:       eng,
		invoker:      inv,
		executor:     exec,
		loginTimeout: 3 * time.Second,
	}
	sess.SetMirror(func(channelID, text string) {
		if _, err := gw.SendMessage(context.Background(), channelID, text); err != nil {
			c.logger.Warn("log mirror send failed", slog.Any("error", err))
		}
	})
	return c
}

// SubmitCredentials runs one credential handshake and reports its
// outcome. A ready session answers already for its own identity and
// re-authenticates when the identity changed; while a login is in
// flight, a repeat of the pending identity answers login and any other
// identity answers different. The first successful login also
// subscribes the event engine and registers the command set, once per
// process.
func (c *Coordinator) SubmitCredentials(ctx context.Context, req rpc.CredentialsRequest) string {
	if req.BaseURL != "" {
		c.session.SetBaseURL(req.BaseURL)
	}
	if req.APIKey != "" {
		c.session.SetAPIKey(req.APIKey)
	}
	if req.ClientID == "" || req.Token == "" {
		return rpc.OutcomeMissing
	}
	identity := gateway.Identity{ClientID: req.ClientID, Token: req.Token}

	if !c.credMu.TryLock() {
		c.pendingMu.Lock()
		pending := c.pending
		c.pendingMu.Unlock()
		if pending == identity {
			return rpc.OutcomeLogin
		}
		return rpc.OutcomeDifferent
	}
	defer c.credMu.Unlock()

	if c.session.Phase() == session.PhaseReady {
		if c.session.Identity() == identity {
			return rpc.OutcomeAlready
		}
		// Identity changed: fall through and log in again.
	}

	c.pendingMu.Lock()
	c.pending = identity
	c.pendingMu.Unlock()

	c.session.SetPhase(session.PhaseAuthenticating)
	loginCtx, cancel := context.WithTimeout(ctx, c.loginTimeout)
	defer cancel()
	if err := c.gateway.Login(loginCtx, identity); err != nil {
		c.session.SetPhase(session.PhaseError)
		c.session.Log("login failed: " + err.Error())
		return rpc.OutcomeError
	}

	c.session.SetIdentity(identity)
	c.session.SetPhase(session.PhaseReady)
	if !c.primed {
		c.primed = true
		c.unsubscribe = c.gateway.Subscribe(c.engine.HandleEvent)
		if err := c.registry.PrimeCommands(ctx); err != nil {
			c.session.Log("command registration failed: " + err.Error())
		}
	}
	c.session.Log("bot is ready")
	return rpc.OutcomeReady
}

// Close detaches the event subscription and cancels pending command
// syncs. The gateway connection itself is owned by the caller of New.
func (c *Coordinator) Close() {
	c.credMu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.credMu.Unlock()
	c.registry.Close()
}
