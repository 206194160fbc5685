package action

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kmcbride3/discordflow/internal/gateway"
	"github.com/kmcbride3/discordflow/internal/session"
)

const (
	ActionRemoveMessages = "removeMessages"
	ActionAddRole        = "addRole"
	ActionRemoveRole     = "removeRole"
)

// The platform caps bulk deletion at 100 messages.
const bulkDeleteCeiling = 100

// StringList accepts either a JSON array of strings or a single
// comma-separated string, which is how role id lists arrive.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		*l = nil
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				*l = append(*l, part)
			}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

// Request is a moderation-style side effect asked for by a caller.
type Request struct {
	ExecutionID          string     `json:"executionId"`
	TriggerPlaceholder   bool       `json:"triggerPlaceholder"`
	TriggerChannel       bool       `json:"triggerChannel"`
	ChannelID            string     `json:"channelId"`
	ActionType           string     `json:"actionType"`
	RemoveMessagesNumber int        `json:"removeMessagesNumber"`
	UserID               string     `json:"userId,omitempty"`
	RoleUpdateIDs        StringList `json:"roleUpdateIds,omitempty"`
}

type Result struct {
	ChannelID string `json:"channelId"`
	Action    string `json:"action"`
}

// Executor applies caller-requested side effects, optionally gated on a
// pending placeholder being resolved first.
type Executor struct {
	logger  *slog.Logger
	session *session.Session
	gateway gateway.Client

	waitInterval time.Duration
	waitAttempts int
}

func NewExecutor(log *slog.Logger, sess *session.Session, gw gateway.Client) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		logger:       log.With(slog.String("component", "action_executor")),
		session:      sess,
		gateway:      gw,
		waitInterval: 300 * time.Millisecond,
		waitAttempts: 10,
	}
}

// Perform resolves the effective channel, clears a gating placeholder
// when asked to, and applies the action. Sub-steps that call the
// platform are independently fault-tolerant.
func (e *Executor) Perform(ctx context.Context, req Request) (Result, error) {
	if !e.session.Ready() {
		return Result{}, fmt.Errorf("session not ready")
	}

	channelID, match, err := e.ResolveChannel(req.ExecutionID, req.ChannelID, req.TriggerPlaceholder || req.TriggerChannel)
	if err != nil {
		return Result{}, err
	}
	if channelID == "" && req.ActionType == "" {
		return Result{}, fmt.Errorf("channel or action type is required")
	}

	if req.TriggerPlaceholder && match.PlaceholderID != "" {
		e.ClearPlaceholder(ctx, channelID, match.PlaceholderID)
	}

	e.applyAction(ctx, channelID, req)
	return Result{ChannelID: channelID, Action: req.ActionType}, nil
}

// ResolveChannel picks the effective channel for an execution-bound
// request: the channel recorded for the execution when asked to follow
// it, the explicit channel otherwise.
func (e *Executor) ResolveChannel(executionID, channelID string, viaExecution bool) (string, session.ExecutionMatch, error) {
	if !viaExecution {
		return channelID, session.ExecutionMatch{}, nil
	}
	entry, ok := e.session.Execution(executionID)
	if !ok {
		return "", session.ExecutionMatch{}, fmt.Errorf("unknown execution: %s", executionID)
	}
	return entry.ChannelID, entry, nil
}

// ClearPlaceholder releases the placeholder and waits for its animation
// loop to give up edit rights before deleting the message, so the loop
// can never write to a deleted message. The wait is bounded.
func (e *Executor) ClearPlaceholder(ctx context.Context, channelID, matchingID string) {
	entry, ok := e.session.Placeholder(matchingID)
	if !ok {
		return
	}
	e.session.ReleasePlaceholder(matchingID)
	for attempt := 0; attempt < e.waitAttempts && e.session.PlaceholderWaiting(matchingID); attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(e.waitInterval):
		}
	}
	if e.session.PlaceholderExists(matchingID) {
		// No loop owns the entry anymore; remove it here.
		e.session.FinishPlaceholder(matchingID)
	}
	if err := e.gateway.DeleteMessage(ctx, channelID, entry.MessageID); err != nil {
		e.session.Log("placeholder delete failed: " + err.Error())
	}
}

func (e *Executor) applyAction(ctx context.Context, channelID string, req Request) {
	switch req.ActionType {
	case ActionRemoveMessages:
		count := req.RemoveMessagesNumber
		if count <= 0 || count > bulkDeleteCeiling {
			count = bulkDeleteCeiling
		}
		if err := e.gateway.BulkDelete(ctx, channelID, count); err != nil {
			e.session.Log("bulk delete failed: " + err.Error())
		}
	case ActionAddRole, ActionRemoveRole:
		e.updateRoles(ctx, req)
	}
}

// updateRoles mutates each requested role id independently: a role is
// added only when absent and removed only when present, and a failure on
// one id does not abort the rest.
func (e *Executor) updateRoles(ctx context.Context, req Request) {
	held, err := e.gateway.MemberRoles(ctx, req.UserID)
	if err != nil {
		e.session.Log("member fetch failed: " + err.Error())
		return
	}
	heldSet := make(map[string]struct{}, len(held))
	for _, id := range held {
		heldSet[id] = struct{}{}
	}
	for _, roleID := range req.RoleUpdateIDs {
		_, has := heldSet[roleID]
		switch {
		case req.ActionType == ActionAddRole && !has:
			if err := e.gateway.AddRole(ctx, req.UserID, roleID); err != nil {
				e.session.Log("role add failed: " + err.Error())
			}
		case req.ActionType == ActionRemoveRole && has:
			if err := e.gateway.RemoveRole(ctx, req.UserID, roleID); err != nil {
				e.session.Log("role remove failed: " + err.Error())
			}
		}
	}
}
