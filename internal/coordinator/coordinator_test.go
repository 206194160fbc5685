package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/kmcbride3/discordflow/internal/action"
	"github.com/kmcbride3/discordflow/internal/engine"
	"github.com/kmcbride3/discordflow/internal/gateway"
	"github.com/kmcbride3/discordflow/internal/gateway/local"
	"github.com/kmcbride3/discordflow/internal/rpc"
	"github.com/kmcbride3/discordflow/internal/session"
	"github.com/kmcbride3/discordflow/internal/trigger"
	"github.com/kmcbride3/discordflow/internal/workflow"
)

func newTestCoordinator(t *testing.T) (*Coordinator, *local.Gateway, *session.Session, *trigger.Registry) {
	t.Helper()
	log := slog.Default()
	sess := session.New(log)
	gw := local.New(log)
	registry := trigger.NewRegistry(log, gw.RegisterCommands)
	registry.SetBaseCommands(engine.BuiltinCommandSpecs())
	client := workflow.NewClient(log)
	invoker := workflow.NewInvoker(log, sess, gw, client, registry)
	eng := engine.New(log, sess, registry, gw, invoker)
	exec := action.NewExecutor(log, sess, gw)
	coord := New(log, sess, gw, registry, eng, invoker, exec)
	t.Cleanup(coord.Close)
	return coord, gw, sess, registry
}

func request(t *testing.T, msgType string, payload any) rpc.Envelope {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	return rpc.Envelope{Type: msgType, ID: "req-1", Data: data}
}

func TestHandshakeOutcomes(t *testing.T) {
	coord, gw, sess, _ := newTestCoordinator(t)
	ctx := context.Background()

	if got := coord.SubmitCredentials(ctx, rpc.CredentialsRequest{}); got != rpc.OutcomeMissing {
		t.Fatalf("empty submission = %s, want missing", got)
	}

	creds := rpc.CredentialsRequest{ClientID: "bot-1", Token: "tok-1"}
	if got := coord.SubmitCredentials(ctx, creds); got != rpc.OutcomeReady {
		t.Fatalf("first submission = %s, want ready", got)
	}
	if !sess.Ready() {
		t.Fatal("session should be ready")
	}
	if got := coord.SubmitCredentials(ctx, creds); got != rpc.OutcomeAlready {
		t.Fatalf("repeat submission = %s, want already", got)
	}
	if len(gw.RegisteredCommands()) == 0 {
		t.Fatal("first ready handshake should register the command set")
	}
}

// A ready session accepts a submission carrying another identity by
// logging in again with it.
func TestIdentityChangeReauthenticates(t *testing.T) {
	coord, _, sess, _ := newTestCoordinator(t)
	ctx := context.Background()

	if got := coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-1", Token: "tok-1"}); got != rpc.OutcomeReady {
		t.Fatalf("first submission = %s, want ready", got)
	}
	if got := coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-2", Token: "tok-2"}); got != rpc.OutcomeReady {
		t.Fatalf("identity-changed submission = %s, want ready", got)
	}
	if !sess.Ready() || sess.Identity().ClientID != "bot-2" {
		t.Fatalf("new identity not adopted: phase=%s identity=%+v", sess.Phase(), sess.Identity())
	}

	// The same token pair is now the live identity again.
	if got := coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-2", Token: "tok-2"}); got != rpc.OutcomeAlready {
		t.Fatalf("repeat of new identity = %s, want already", got)
	}
}

type blockingGateway struct {
	*local.Gateway
	release chan struct{}
}

func (g *blockingGateway) Login(ctx context.Context, id gateway.Identity) error {
	select {
	case <-g.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return g.Gateway.Login(ctx, id)
}

// While a login is in flight, a repeat of the pending identity answers
// login and any other identity answers different; neither queues.
func TestMidLoginSubmissions(t *testing.T) {
	log := slog.Default()
	sess := session.New(log)
	gw := &blockingGateway{Gateway: local.New(log), release: make(chan struct{})}
	registry := trigger.NewRegistry(log, gw.RegisterCommands)
	client := workflow.NewClient(log)
	invoker := workflow.NewInvoker(log, sess, gw, client, registry)
	eng := engine.New(log, sess, registry, gw, invoker)
	exec := action.NewExecutor(log, sess, gw)
	coord := New(log, sess, gw, registry, eng, invoker, exec)
	t.Cleanup(coord.Close)

	ctx := context.Background()
	first := make(chan string, 1)
	go func() {
		first <- coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-1", Token: "tok-1"})
	}()

	waitForPhase(t, sess, session.PhaseAuthenticating)
	if got := coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-1", Token: "tok-1"}); got != rpc.OutcomeLogin {
		t.Fatalf("pending identity repeat = %s, want login", got)
	}
	if got := coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-2", Token: "tok-2"}); got != rpc.OutcomeDifferent {
		t.Fatalf("other identity mid-login = %s, want different", got)
	}

	close(gw.release)
	if got := <-first; got != rpc.OutcomeReady {
		t.Fatalf("released login = %s, want ready", got)
	}
}

func waitForPhase(t *testing.T, sess *session.Session, want session.Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sess.Phase() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("phase never reached %s", want)
}

func TestHandshakeLoginFailure(t *testing.T) {
	coord, gw, sess, _ := newTestCoordinator(t)
	ctx := context.Background()

	gw.SetLoginErr(errors.New("bad token"))
	if got := coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-1", Token: "tok-1"}); got != rpc.OutcomeError {
		t.Fatalf("failed login = %s, want error", got)
	}
	if sess.Phase() != session.PhaseError {
		t.Fatalf("phase = %s, want error", sess.Phase())
	}

	gw.SetLoginErr(nil)
	if got := coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-1", Token: "tok-1"}); got != rpc.OutcomeReady {
		t.Fatalf("retry after failure = %s, want ready", got)
	}
}

func TestHandshakeStoresEngineCoordinates(t *testing.T) {
	coord, _, sess, _ := newTestCoordinator(t)

	coord.SubmitCredentials(context.Background(), rpc.CredentialsRequest{BaseURL: "http://engine", APIKey: "k1"})
	if sess.BaseURL() != "http://engine" || sess.APIKey() != "k1" {
		t.Fatalf("coordinates not stored: %s %s", sess.BaseURL(), sess.APIKey())
	}
}

func TestListOptionsDegradeWhenNotReady(t *testing.T) {
	coord, gw, _, _ := newTestCoordinator(t)
	gw.SeedChannels(gateway.Option{Name: "general", Value: "c1"})
	ctx := context.Background()

	result, err := coord.Handle(ctx, request(t, rpc.TypeListChannels, struct{}{}))
	if err != nil {
		t.Fatalf("list before ready: %v", err)
	}
	if got := result.(rpc.OptionsResponse); len(got.Options) != 0 {
		t.Fatalf("expected empty list before ready, got %v", got.Options)
	}

	coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-1", Token: "tok-1"})
	result, err = coord.Handle(ctx, request(t, rpc.TypeListChannels, struct{}{}))
	if err != nil {
		t.Fatalf("list after ready: %v", err)
	}
	if got := result.(rpc.OptionsResponse); len(got.Options) != 1 || got.Options[0].Value != "c1" {
		t.Fatalf("unexpected options: %v", got.Options)
	}
}

func TestListRolesHidesEveryone(t *testing.T) {
	coord, gw, _, _ := newTestCoordinator(t)
	gw.SeedRoles(
		gateway.Option{Name: "@everyone", Value: "r0"},
		gateway.Option{Name: "mods", Value: "r1"},
	)
	ctx := context.Background()
	coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-1", Token: "tok-1"})

	result, err := coord.Handle(ctx, request(t, rpc.TypeListRoles, struct{}{}))
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	got := result.(rpc.OptionsResponse)
	if len(got.Options) != 1 || got.Options[0].Value != "r1" {
		t.Fatalf("everyone role should be hidden, got %v", got.Options)
	}
}

func TestHandleSendMessage(t *testing.T) {
	coord, gw, _, _ := newTestCoordinator(t)
	ctx := context.Background()
	coord.SubmitCredentials(ctx, rpc.CredentialsRequest{ClientID: "bot-1", Token: "tok-1"})

	result, err := coord.Handle(ctx, request(t, rpc.TypeSendMessage, rpc.SendMessageRequest{ChannelID: "c1", Content: "hello"}))
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	resp := result.(rpc.SendMessageResponse)
	if content, ok := gw.MessageContent("c1", resp.MessageID); !ok || content != "hello" {
		t.Fatalf("message not delivered: %q ok=%t", content, ok)
	}
}

func TestHandleSendMessageRequiresReady(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	if _, err := coord.Handle(context.Background(), request(t, rpc.TypeSendMessage, rpc.SendMessageRequest{ChannelID: "c1", Content: "hello"})); err == nil {
		t.Fatal("expected not-ready error")
	}
}

func TestHandleTriggerAppliesDefinition(t *testing.T) {
	coord, _, sess, registry := newTestCoordinator(t)

	req := rpc.TriggerRequest{
		Trigger: trigger.Trigger{WebhookID: "wh-1", Type: trigger.TypeMessage, Value: "ping", Active: true},
		BaseURL: "http://engine",
	}
	if _, err := coord.Handle(context.Background(), request(t, rpc.TypeTrigger, req)); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if _, ok := registry.Trigger("wh-1"); !ok {
		t.Fatal("trigger not stored")
	}
	if sess.BaseURL() != "http://engine" {
		t.Fatal("base url not adopted")
	}
}

func TestHandleTriggerRejectsInvalidDefinition(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	req := rpc.TriggerRequest{Trigger: trigger.Trigger{Type: trigger.TypeMessage}}
	if _, err := coord.Handle(context.Background(), request(t, rpc.TypeTrigger, req)); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestHandleExecutionRegistersMatch(t *testing.T) {
	coord, _, sess, _ := newTestCoordinator(t)

	req := rpc.ExecutionRequest{ExecutionID: "e1", ChannelID: "c1", UserID: "u1"}
	if _, err := coord.Handle(context.Background(), request(t, rpc.TypeExecution, req)); err != nil {
		t.Fatalf("execution: %v", err)
	}
	entry, ok := sess.Execution("e1")
	if !ok || entry.ChannelID != "c1" || entry.UserID != "u1" {
		t.Fatalf("unexpected entry: %+v ok=%t", entry, ok)
	}
}

func TestHandleUnknownType(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t)
	if _, err := coord.Handle(context.Background(), rpc.Envelope{Type: "bogus", ID: "r1"}); !errors.Is(err, rpc.ErrUnknownType) {
		t.Fatalf("expected unknown type error, got %v", err)
	}
}
