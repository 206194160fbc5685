package engine

import (
	"context"
	"log/slog"

	"github.com/kmcbride3/discordflow/internal/gateway"
	"github.com/kmcbride3/discordflow/internal/session"
	"github.com/kmcbride3/discordflow/internal/trigger"
	"github.com/kmcbride3/discordflow/internal/workflow"
)

// Invoker is the workflow-invocation boundary.
type Invoker interface {
	Invoke(ctx context.Context, ref workflow.TriggerRef, ec workflow.EventContext) bool
}

// Engine subscribes to every platform event kind and routes matches to
// the workflow invoker. Matching failures for one event/trigger pair
// never abort the remaining candidates.
type Engine struct {
	logger   *slog.Logger
	session  *session.Session
	registry *trigger.Registry
	gateway  gateway.Client
	invoker  Invoker
}

func New(log *slog.Logger, sess *session.Session, registry *trigger.Registry, gw gateway.Client, invoker Invoker) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		logger:   log.With(slog.String("component", "engine")),
		session:  sess,
		registry: registry,
		gateway:  gw,
		invoker:  invoker,
	}
}

// HandleEvent dispatches one platform event. The kind set is closed;
// unknown kinds are logged and dropped.
func (e *Engine) HandleEvent(ctx context.Context, ev gateway.Event) {
	switch ev.Kind {
	case gateway.EventMessage:
		e.handleMessage(ctx, ev.Message, trigger.TypeMessage)
	case gateway.EventMessageUpdate:
		e.handleMessage(ctx, ev.Message, trigger.TypeMessageUpdate)
	case gateway.EventThreadCreate:
		e.handleThread(ctx, ev.Thread, trigger.TypeThreadCreate)
	case gateway.EventThreadUpdate:
		e.handleThread(ctx, ev.Thread, trigger.TypeThreadUpdate)
	case gateway.EventPresence:
		e.handlePresence(ctx, ev.Presence)
	case gateway.EventMemberJoin:
		e.handleMember(ctx, ev.Member, trigger.TypeUserJoins)
	case gateway.EventMemberLeave:
		e.handleMember(ctx, ev.Member, trigger.TypeUserLeaves)
	case gateway.EventCommand:
		e.handleCommand(ctx, ev.Command)
	case gateway.EventComponent:
		e.handleComponent(ev.Component)
	default:
		e.logger.Warn("unhandled event kind", slog.String("kind", ev.Kind.String()))
	}
}

func (e *Engine) handleMessage(ctx context.Context, ev *gateway.MessageEvent, want trigger.Type) {
	if ev == nil || ev.Content == "" || ev.Author.Bot {
		return
	}
	for _, t := range e.registry.Lookup(ev.ChannelID) {
		if t.Type != want || !t.HasContentFilter() {
			continue
		}
		if !roleGate(t.RoleIDs, ev.AuthorRoles) {
			continue
		}
		if t.BotMention && !ev.BotMentioned {
			continue
		}

		match := false
		if t.Pattern != "" || t.Value != "" {
			ok, err := t.MatchContent(ev.Content)
			if err != nil {
				e.session.Log("trigger pattern error: " + err.Error())
				continue
			}
			match = ok
		} else if ev.BotMentioned {
			match = true
		}
		if !match {
			continue
		}

		e.session.Log("triggerWorkflow " + t.WebhookID)
		e.invoker.Invoke(ctx, workflow.TriggerRef{WebhookID: t.WebhookID}, workflow.EventContext{
			Content:     ev.Content,
			ChannelID:   ev.ChannelID,
			MessageID:   ev.ID,
			User:        &ev.Author,
			Attachments: ev.Attachments,
		})
	}
}

func (e *Engine) handleThread(ctx context.Context, ev *gateway.ThreadEvent, want trigger.Type) {
	if ev == nil || ev.Name == "" {
		return
	}
	for _, t := range e.registry.Lookup(ev.ParentID) {
		if t.Type != want || !t.HasContentFilter() {
			continue
		}
		// Thread events carry no member context, so a role-restricted
		// trigger is skipped rather than matched.
		if len(t.RoleIDs) > 0 {
			continue
		}
		if t.BotMention {
			continue
		}
		ok, err := t.MatchContent(ev.Name)
		if err != nil {
			e.session.Log("trigger pattern error: " + err.Error())
			continue
		}
		if !ok {
			continue
		}

		e.session.Log("triggerWorkflow " + t.WebhookID)
		e.invoker.Invoke(ctx, workflow.TriggerRef{WebhookID: t.WebhookID}, workflow.EventContext{
			Content:   ev.Name,
			ChannelID: ev.ThreadID,
		})
	}
}

func (e *Engine) handlePresence(ctx context.Context, ev *gateway.PresenceEvent) {
	if ev == nil || ev.Status == "" || ev.User.ID == "" || ev.GuildID == "" {
		return
	}
	for _, t := range e.registry.Lookup(ev.GuildID) {
		if t.Type != trigger.TypePresence {
			continue
		}
		if !roleGate(t.RoleIDs, ev.Roles) {
			continue
		}
		if t.Presence != ev.Status && t.Presence != gateway.PresenceAny {
			continue
		}

		e.session.Log("triggerWorkflow " + t.WebhookID)
		user := ev.User
		e.invoker.Invoke(ctx, workflow.TriggerRef{WebhookID: t.WebhookID}, workflow.EventContext{
			ChannelID: ev.GuildID,
			User:      &user,
			Presence:  ev.Status,
		})
	}
}

func (e *Engine) handleMember(ctx context.Context, ev *gateway.MemberEvent, want trigger.Type) {
	if ev == nil || ev.User.System {
		return
	}
	for scopeKey, triggers := range e.registry.IndexSnapshot() {
		for _, t := range triggers {
			if t.Type != want {
				continue
			}
			if !roleGate(t.RoleIDs, ev.Roles) {
				continue
			}

			e.session.Log("triggerWorkflow " + t.WebhookID)
			user := ev.User
			e.invoker.Invoke(ctx, workflow.TriggerRef{WebhookID: t.WebhookID, Placeholder: t.Placeholder}, workflow.EventContext{
				ChannelID: scopeKey,
				User:      &user,
				Nick:      ev.Nick,
				UserRoles: ev.Roles,
			})
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, ev *gateway.CommandEvent) {
	if ev == nil {
		return
	}
	if e.runBuiltinCommand(ctx, ev) {
		return
	}
	if ev.GuildID == "" {
		e.reply(ctx, ev.InteractionID, "Commands work only inside channels", false)
		return
	}

	for _, t := range e.registry.Lookup(ev.ChannelID) {
		if t.Type != trigger.TypeCommand || t.Name != ev.Name {
			continue
		}
		if len(t.RoleIDs) > 0 && !hasAnyRole(t.RoleIDs, ev.Roles) {
			// Visible only to the invoker; the workflow is not called.
			e.reply(ctx, ev.InteractionID, "You do not have permission", true)
			return
		}

		e.session.Log("triggerWorkflow " + t.WebhookID)
		// Acknowledge before invoking so the platform's interaction
		// deadline is never missed.
		e.reply(ctx, ev.InteractionID, "/"+ev.Name+" sent", true)

		var values []string
		if ev.HasInput {
			values = []string{ev.Input}
		}
		user := ev.User
		e.invoker.Invoke(ctx, workflow.TriggerRef{WebhookID: t.WebhookID, Placeholder: t.Placeholder}, workflow.EventContext{
			ChannelID:         ev.ChannelID,
			User:              &user,
			InteractionValues: values,
			UserRoles:         ev.Roles,
		})
	}
}

func (e *Engine) handleComponent(ev *gateway.ComponentEvent) {
	if ev == nil || ev.MessageID == "" {
		return
	}
	e.session.SetPromptResponse(ev.MessageID, session.PromptResponse{
		Values: ev.Values,
		User:   ev.User,
	})
}

func (e *Engine) reply(ctx context.Context, interactionID, content string, ephemeral bool) {
	if err := e.gateway.InteractionReply(ctx, interactionID, content, ephemeral); err != nil {
		e.session.Log("interaction reply error: " + err.Error())
	}
}

// roleGate applies the trigger's role restriction: pass when the trigger
// has none, otherwise require the actor to hold at least one listed role.
func roleGate(required, held []string) bool {
	if len(required) == 0 {
		return true
	}
	return hasAnyRole(required, held)
}

func hasAnyRole(required, held []string) bool {
	for _, want := range required {
		for _, have := range held {
			if want == have {
				return true
			}
		}
	}
	return false
}
