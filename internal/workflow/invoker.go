package workflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kmcbride3/discordflow/internal/gateway"
	"github.com/kmcbride3/discordflow/internal/session"
)

// EngineClient is the workflow-engine boundary the invoker calls through.
type EngineClient interface {
	Invoke(ctx context.Context, baseURL, webhookID string, payload InvokePayload, testMode bool) error
	ExecutionStatusFor(ctx context.Context, baseURL, apiKey, executionID string) (ExecutionStatus, error)
}

// Deactivator soft-disables a trigger after persistent delivery failure.
type Deactivator interface {
	Deactivate(webhookID string)
}

// EventContext is the platform context serialized into an invocation.
type EventContext struct {
	Content              string
	ChannelID            string
	MessageID            string
	User                 *gateway.User
	Attachments          []gateway.Attachment
	Presence             gateway.Presence
	Nick                 string
	AddedRoles           []string
	RemovedRoles         []string
	InteractionMessageID string
	InteractionValues    []string
	UserRoles            []string
}

// Invoker posts matched events to the workflow engine and manages the
// placeholder animation and execution-status poll loops.
type Invoker struct {
	logger   *slog.Logger
	session  *session.Session
	gateway  gateway.Client
	client   EngineClient
	triggers Deactivator

	animateInterval time.Duration
	pollInterval    time.Duration
	promptInterval  time.Duration
}

func NewInvoker(log *slog.Logger, sess *session.Session, gw gateway.Client, client EngineClient, triggers Deactivator) *Invoker {
	if log == nil {
		log = slog.Default()
	}
	return &Invoker{
		logger:          log.With(slog.String("component", "workflow_invoker")),
		session:         sess,
		gateway:         gw,
		client:          client,
		triggers:        triggers,
		animateInterval: 800 * time.Millisecond,
		pollInterval:    3 * time.Second,
		promptInterval:  time.Second,
	}
}

// Invoke posts the event context for one matched trigger. On delivery
// failure the trigger is soft-disabled unless test mode is active, so the
// channel index converges without an external refresh. Reports success.
func (i *Invoker) Invoke(ctx context.Context, t TriggerRef, ec EventContext) bool {
	matchingID := ""
	if t.Placeholder != "" {
		matchingID = uuid.NewString()
	}
	payload := InvokePayload{
		Content:              ec.Content,
		ChannelID:            ec.ChannelID,
		PlaceholderID:        matchingID,
		MessageID:            ec.MessageID,
		Attachments:          ec.Attachments,
		Presence:             string(ec.Presence),
		Nick:                 ec.Nick,
		AddedRoles:           ec.AddedRoles,
		RemovedRoles:         ec.RemovedRoles,
		InteractionMessageID: ec.InteractionMessageID,
		InteractionValues:    ec.InteractionValues,
		UserRoles:            ec.UserRoles,
	}
	if ec.User != nil {
		payload.UserID = ec.User.ID
		payload.UserName = ec.User.Username
		payload.UserTag = ec.User.Tag
	}

	testMode := i.session.TestMode()
	if err := i.client.Invoke(ctx, i.session.BaseURL(), t.WebhookID, payload, testMode); err != nil {
		i.session.Log("triggerWorkflow error: " + err.Error())
		if !testMode && i.triggers != nil {
			i.triggers.Deactivate(t.WebhookID)
		}
		return false
	}

	if matchingID != "" {
		i.startPlaceholder(ctx, matchingID, ec.ChannelID, t.Placeholder)
	}
	return true
}

// TriggerRef carries the trigger fields the invoker needs. It avoids a
// dependency on the registry package.
type TriggerRef struct {
	WebhookID   string
	Placeholder string
}

// startPlaceholder sends the placeholder template text and starts the
// animation loop for it. Send failures are logged, not raised.
func (i *Invoker) startPlaceholder(ctx context.Context, matchingID, channelID, text string) {
	placeholder, err := i.gateway.SendMessage(ctx, channelID, text)
	if err != nil {
		i.session.Log("placeholder send error: " + err.Error())
		return
	}
	i.session.CreatePlaceholder(matchingID, placeholder.ID, channelID)
	go i.animate(ctx, matchingID, channelID, placeholder.ID, text)
}

// animate re-renders the placeholder with a rotating 0-3 dot suffix every
// tick until the entry is released or deleted, then restores the bare
// template text. Every exit route ends in FinishPlaceholder so the
// execution poller is guaranteed to terminate.
func (i *Invoker) animate(ctx context.Context, matchingID, channelID, messageID, text string) {
	ticker := time.NewTicker(i.animateInterval)
	defer ticker.Stop()
	dots := 0
	for {
		select {
		case <-ctx.Done():
			i.session.FinishPlaceholder(matchingID)
			return
		case <-ticker.C:
		}

		entry, ok := i.session.Placeholder(matchingID)
		if !ok || entry.Released {
			if err := i.gateway.EditMessage(ctx, channelID, messageID, text); err != nil {
				i.logger.Warn("placeholder restore failed", slog.Any("error", err))
			}
			i.session.FinishPlaceholder(matchingID)
			return
		}

		dots++
		if dots > 3 {
			dots = 0
		}
		content := text + strings.Repeat(".", dots)
		if err := i.gateway.EditMessage(ctx, channelID, messageID, content); err != nil {
			i.logger.Warn("placeholder edit failed", slog.Any("error", err))
		}
	}
}

// WatchExecution registers an execution match entry and, when the entry
// is linked to a placeholder, starts the status poll loop.
func (i *Invoker) WatchExecution(ctx context.Context, entry session.ExecutionMatch, apiKey, baseURL string) {
	if entry.ExecutionID == "" || entry.ChannelID == "" {
		return
	}
	i.session.CreateExecution(entry)
	if entry.PlaceholderID == "" || baseURL == "" {
		return
	}
	go i.pollExecution(ctx, entry, apiKey, baseURL)
}

// pollExecution queries the execution status every tick for as long as
// the linked placeholder entry exists. Any answer reporting the run as
// finished or stopped, and any query error, deletes both entries: the
// placeholder's removal is the only termination path, so it must happen
// on every exit route.
func (i *Invoker) pollExecution(ctx context.Context, entry session.ExecutionMatch, apiKey, baseURL string) {
	ticker := time.NewTicker(i.pollInterval)
	defer ticker.Stop()
	for {
		status, err := i.client.ExecutionStatusFor(ctx, baseURL, apiKey, entry.ExecutionID)
		if err != nil || status.Done() {
			if err != nil {
				i.session.Log("execution status error: " + err.Error())
			}
			i.resolvePlaceholder(entry.PlaceholderID)
			i.session.DeleteExecution(entry.ExecutionID)
			return
		}
		select {
		case <-ctx.Done():
			i.resolvePlaceholder(entry.PlaceholderID)
			i.session.DeleteExecution(entry.ExecutionID)
			return
		case <-ticker.C:
		}
		if !i.session.PlaceholderExists(entry.PlaceholderID) {
			i.session.DeleteExecution(entry.ExecutionID)
			return
		}
	}
}

// resolvePlaceholder releases the entry so the animation loop stops on
// its next tick. When no loop owns the entry the removal happens here.
func (i *Invoker) resolvePlaceholder(matchingID string) {
	if matchingID == "" {
		return
	}
	if !i.session.ReleasePlaceholder(matchingID) {
		return
	}
	if !i.session.PlaceholderWaiting(matchingID) {
		i.session.FinishPlaceholder(matchingID)
	}
}

// ResolvePlaceholder is the external resolution path used by callers that
// deliver the real response for a pending placeholder.
func (i *Invoker) ResolvePlaceholder(matchingID string) {
	i.resolvePlaceholder(matchingID)
}
