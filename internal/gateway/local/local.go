package local

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/kmcbride3/discordflow/internal/gateway"
)

// Gateway is an in-process loopback implementation of gateway.Client.
// It backs local development and tests: sends are recorded and echoed to
// the log, and events are injected with Emit. A real platform client
// replaces it in production deployments.
type Gateway struct {
	logger *slog.Logger

	mu        sync.Mutex
	loggedIn  bool
	identity  gateway.Identity
	messages  map[string]map[string]string // channelID -> messageID -> content
	members   map[string][]string          // userID -> role ids
	channels  []gateway.Option
	roles     []gateway.Option
	commands  []gateway.CommandSpec
	status    gateway.Status
	handlers  map[string]gateway.Handler
	loginErr  error
	sendOrder []string
	replies   []InteractionRecord
}

// InteractionRecord is one acknowledged interaction, kept for assertions.
type InteractionRecord struct {
	InteractionID string
	Content       string
	Ephemeral     bool
}

func New(log *slog.Logger) *Gateway {
	if log == nil {
		log = slog.Default()
	}
	return &Gateway{
		logger:   log.With(slog.String("component", "gateway_local")),
		messages: map[string]map[string]string{},
		members:  map[string][]string{},
		handlers: map[string]gateway.Handler{},
	}
}

func (g *Gateway) Login(ctx context.Context, id gateway.Identity) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.loginErr != nil {
		return g.loginErr
	}
	if !id.Complete() {
		return fmt.Errorf("identity incomplete")
	}
	g.loggedIn = true
	g.identity = id
	g.logger.Info("login", slog.String("client_id", id.ClientID))
	return nil
}

func (g *Gateway) Subscribe(h gateway.Handler) func() {
	key := uuid.NewString()
	g.mu.Lock()
	g.handlers[key] = h
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.handlers, key)
		g.mu.Unlock()
	}
}

// Emit delivers an event to every subscribed handler.
func (g *Gateway) Emit(ctx context.Context, ev gateway.Event) {
	g.mu.Lock()
	handlers := make([]gateway.Handler, 0, len(g.handlers))
	for _, h := range g.handlers {
		handlers = append(handlers, h)
	}
	g.mu.Unlock()
	for _, h := range handlers {
		h(ctx, ev)
	}
}

func (g *Gateway) BotUserID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.identity.ClientID
}

func (g *Gateway) Channels(ctx context.Context) ([]gateway.Option, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.loggedIn {
		return nil, gateway.ErrNotReady
	}
	return append([]gateway.Option(nil), g.channels...), nil
}

func (g *Gateway) Roles(ctx context.Context) ([]gateway.Option, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.loggedIn {
		return nil, gateway.ErrNotReady
	}
	return append([]gateway.Option(nil), g.roles...), nil
}

func (g *Gateway) SendMessage(ctx context.Context, channelID, content string) (gateway.Message, error) {
	if channelID == "" {
		return gateway.Message{}, fmt.Errorf("channel id is required")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := strconv.Itoa(len(g.sendOrder) + 1)
	if g.messages[channelID] == nil {
		g.messages[channelID] = map[string]string{}
	}
	g.messages[channelID][id] = content
	g.sendOrder = append(g.sendOrder, channelID+"/"+id)
	g.logger.Info("send", slog.String("channel_id", channelID), slog.String("message_id", id))
	return gateway.Message{ID: id, ChannelID: channelID, Content: content}, nil
}

func (g *Gateway) EditMessage(ctx context.Context, channelID, messageID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	channel := g.messages[channelID]
	if channel == nil {
		return fmt.Errorf("unknown channel: %s", channelID)
	}
	if _, ok := channel[messageID]; !ok {
		return fmt.Errorf("unknown message: %s", messageID)
	}
	channel[messageID] = content
	return nil
}

func (g *Gateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	channel := g.messages[channelID]
	if channel == nil {
		return fmt.Errorf("unknown channel: %s", channelID)
	}
	delete(channel, messageID)
	return nil
}

func (g *Gateway) BulkDelete(ctx context.Context, channelID string, count int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.logger.Info("bulk delete", slog.String("channel_id", channelID), slog.Int("count", count))
	g.messages[channelID] = map[string]string{}
	return nil
}

func (g *Gateway) MemberRoles(ctx context.Context, userID string) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	roles, ok := g.members[userID]
	if !ok {
		return nil, fmt.Errorf("unknown member: %s", userID)
	}
	return append([]string(nil), roles...), nil
}

func (g *Gateway) AddRole(ctx context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[userID] = append(g.members[userID], roleID)
	return nil
}

func (g *Gateway) RemoveRole(ctx context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	roles := g.members[userID]
	kept := roles[:0]
	for _, id := range roles {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	g.members[userID] = kept
	return nil
}

func (g *Gateway) RegisterCommands(ctx context.Context, specs []gateway.CommandSpec) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commands = append([]gateway.CommandSpec(nil), specs...)
	g.logger.Info("register commands", slog.Int("count", len(specs)))
	return nil
}

func (g *Gateway) InteractionReply(ctx context.Context, interactionID, content string, ephemeral bool) error {
	g.mu.Lock()
	g.replies = append(g.replies, InteractionRecord{InteractionID: interactionID, Content: content, Ephemeral: ephemeral})
	g.mu.Unlock()
	g.logger.Info("interaction reply", slog.String("interaction_id", interactionID), slog.Bool("ephemeral", ephemeral))
	return nil
}

func (g *Gateway) SetStatus(ctx context.Context, status gateway.Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.status = status
	return nil
}

// Seed helpers for tests and local development.

func (g *Gateway) SeedChannels(options ...gateway.Option) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels = append(g.channels, options...)
}

func (g *Gateway) SeedRoles(options ...gateway.Option) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roles = append(g.roles, options...)
}

func (g *Gateway) SeedMember(userID string, roleIDs ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members[userID] = append([]string(nil), roleIDs...)
}

func (g *Gateway) SetLoginErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loginErr = err
}

// MessageContent reports the current content of a message, for assertions.
func (g *Gateway) MessageContent(channelID, messageID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	channel := g.messages[channelID]
	if channel == nil {
		return "", false
	}
	content, ok := channel[messageID]
	return content, ok
}

// InteractionReplies reports every acknowledged interaction in order.
func (g *Gateway) InteractionReplies() []InteractionRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]InteractionRecord(nil), g.replies...)
}

// RegisteredCommands reports the last registered command set.
func (g *Gateway) RegisteredCommands() []gateway.CommandSpec {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.CommandSpec(nil), g.commands...)
}
