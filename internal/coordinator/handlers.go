package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/kmcbride3/discordflow/internal/gateway"
	"github.com/kmcbride3/discordflow/internal/rpc"
	"github.com/kmcbride3/discordflow/internal/session"
)

// Handle implements rpc.Handler over the closed request type set.
func (c *Coordinator) Handle(ctx context.Context, env rpc.Envelope) (any, error) {
	switch env.Type {
	case rpc.TypeCredentials:
		req, err := decode[rpc.CredentialsRequest](env)
		if err != nil {
			return nil, err
		}
		return rpc.CredentialsResponse{Outcome: c.SubmitCredentials(ctx, req)}, nil

	case rpc.TypeListChannels:
		return c.listOptions(ctx, c.gateway.Channels), nil

	case rpc.TypeListRoles:
		return c.listRoles(ctx), nil

	case rpc.TypeSendMessage:
		req, err := decode[rpc.SendMessageRequest](env)
		if err != nil {
			return nil, err
		}
		return c.sendMessage(ctx, req)

	case rpc.TypeSendPrompt:
		req, err := decode[rpc.SendPromptRequest](env)
		if err != nil {
			return nil, err
		}
		return c.sendPrompt(ctx, req)

	case rpc.TypeSendAction:
		req, err := decode[rpc.SendActionRequest](env)
		if err != nil {
			return nil, err
		}
		return c.executor.Perform(ctx, req)

	case rpc.TypeExecution:
		req, err := decode[rpc.ExecutionRequest](env)
		if err != nil {
			return nil, err
		}
		return c.watchExecution(req), nil

	case rpc.TypeTrigger:
		req, err := decode[rpc.TriggerRequest](env)
		if err != nil {
			return nil, err
		}
		if req.BaseURL != "" {
			c.session.SetBaseURL(req.BaseURL)
		}
		if req.APIKey != "" {
			c.session.SetAPIKey(req.APIKey)
		}
		if err := c.registry.Apply(req.Trigger); err != nil {
			return nil, err
		}
		return rpc.AckResponse{OK: true}, nil

	case rpc.TypeBotStatus:
		req, err := decode[rpc.BotStatusRequest](env)
		if err != nil {
			return nil, err
		}
		if c.session.Ready() {
			if err := c.gateway.SetStatus(ctx, req); err != nil {
				return nil, err
			}
		}
		return rpc.AckResponse{OK: true}, nil
	}
	return nil, fmt.Errorf("%w: %s", rpc.ErrUnknownType, env.Type)
}

// listOptions answers picker requests. A session that is not ready, or a
// failing platform fetch, yields an empty list rather than an error so
// the caller's UI degrades instead of breaking.
func (c *Coordinator) listOptions(ctx context.Context, fetch func(context.Context) ([]gateway.Option, error)) rpc.OptionsResponse {
	if !c.session.Ready() {
		return rpc.OptionsResponse{Options: []gateway.Option{}}
	}
	options, err := fetch(ctx)
	if err != nil {
		c.logger.Warn("option fetch failed", slog.Any("error", err))
		return rpc.OptionsResponse{Options: []gateway.Option{}}
	}
	if options == nil {
		options = []gateway.Option{}
	}
	return rpc.OptionsResponse{Options: options}
}

// listRoles hides the platform's implicit everyone role: it is not
// assignable, so offering it in pickers only invites broken triggers.
func (c *Coordinator) listRoles(ctx context.Context) rpc.OptionsResponse {
	resp := c.listOptions(ctx, c.gateway.Roles)
	kept := make([]gateway.Option, 0, len(resp.Options))
	for _, option := range resp.Options {
		if option.Name == "@everyone" {
			continue
		}
		kept = append(kept, option)
	}
	resp.Options = kept
	return resp
}

func (c *Coordinator) sendMessage(ctx context.Context, req rpc.SendMessageRequest) (rpc.SendMessageResponse, error) {
	if !c.session.Ready() {
		return rpc.SendMessageResponse{}, fmt.Errorf("session not ready")
	}
	channelID, match, err := c.executor.ResolveChannel(req.ExecutionID, req.ChannelID, req.TriggerPlaceholder || req.TriggerChannel)
	if err != nil {
		return rpc.SendMessageResponse{}, err
	}
	if req.TriggerPlaceholder && match.PlaceholderID != "" {
		c.executor.ClearPlaceholder(ctx, channelID, match.PlaceholderID)
	}
	message, err := c.gateway.SendMessage(ctx, channelID, req.Content)
	if err != nil {
		return rpc.SendMessageResponse{}, err
	}
	return rpc.SendMessageResponse{ChannelID: channelID, MessageID: message.ID}, nil
}

func (c *Coordinator) sendPrompt(ctx context.Context, req rpc.SendPromptRequest) (rpc.SendPromptResponse, error) {
	if !c.session.Ready() {
		return rpc.SendPromptResponse{}, fmt.Errorf("session not ready")
	}
	channelID, match, err := c.executor.ResolveChannel(req.ExecutionID, req.ChannelID, req.TriggerPlaceholder || req.TriggerChannel)
	if err != nil {
		return rpc.SendPromptResponse{}, err
	}
	if req.TriggerPlaceholder && match.PlaceholderID != "" {
		c.executor.ClearPlaceholder(ctx, channelID, match.PlaceholderID)
	}
	result, err := c.invoker.RunPrompt(ctx, channelID, req.Content, req.Timeout, req.NotifyTimeout)
	if err != nil {
		return rpc.SendPromptResponse{}, err
	}
	return rpc.SendPromptResponse{
		ChannelID: channelID,
		MessageID: result.MessageID,
		Value:     result.Value,
		UserID:    result.UserID,
		UserName:  result.UserName,
		UserTag:   result.UserTag,
		TimedOut:  result.TimedOut,
	}, nil
}

// watchExecution links a running workflow execution to its trigger
// context. The poll loop outlives the control-channel request that
// announced it, so it runs on the background context.
func (c *Coordinator) watchExecution(req rpc.ExecutionRequest) rpc.AckResponse {
	if req.BaseURL != "" {
		c.session.SetBaseURL(req.BaseURL)
	}
	if req.APIKey != "" {
		c.session.SetAPIKey(req.APIKey)
	}
	c.invoker.WatchExecution(context.Background(), session.ExecutionMatch{
		ExecutionID:   req.ExecutionID,
		ChannelID:     req.ChannelID,
		UserID:        req.UserID,
		PlaceholderID: req.PlaceholderID,
	}, c.session.APIKey(), c.session.BaseURL())
	return rpc.AckResponse{OK: true}
}

func decode[T any](env rpc.Envelope) (T, error) {
	var out T
	if len(env.Data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s request: %w", env.Type, err)
	}
	return out, nil
}
