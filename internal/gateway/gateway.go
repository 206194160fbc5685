package gateway

import (
	"context"
	"errors"
)

// ErrNotReady is returned by operations that need a logged-in connection.
var ErrNotReady = errors.New("gateway not ready")

// Handler receives platform events. Handlers must not block the delivery
// goroutine; long work is expected to be spawned by the receiver.
type Handler func(ctx context.Context, ev Event)

// Client is the platform collaborator. Login, socket reconnection and
// rate-limit handling live behind this boundary; the coordinator only
// consumes typed events and the operations below.
type Client interface {
	// Login authenticates with the platform. It is expected to respect
	// ctx cancellation; the handshake bounds it with a timeout.
	Login(ctx context.Context, id Identity) error

	// Subscribe registers an event handler and returns a cancel func.
	Subscribe(h Handler) (cancel func())

	BotUserID() string

	Channels(ctx context.Context) ([]Option, error)
	Roles(ctx context.Context) ([]Option, error)

	SendMessage(ctx context.Context, channelID, content string) (Message, error)
	EditMessage(ctx context.Context, channelID, messageID, content string) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	BulkDelete(ctx context.Context, channelID string, count int) error

	MemberRoles(ctx context.Context, userID string) ([]string, error)
	AddRole(ctx context.Context, userID, roleID string) error
	RemoveRole(ctx context.Context, userID, roleID string) error

	RegisterCommands(ctx context.Context, specs []CommandSpec) error
	InteractionReply(ctx context.Context, interactionID, content string, ephemeral bool) error
	SetStatus(ctx context.Context, status Status) error
}
