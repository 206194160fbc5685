package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PromptResult is the outcome of a timed prompt: either the first
// response written to the message's slot, or a timeout. The two are
// distinguished only by the slot being empty when the countdown expires.
type PromptResult struct {
	MessageID string
	Value     string
	UserID    string
	UserName  string
	UserTag   string
	TimedOut  bool
}

// RunPrompt sends a prompt message and polls its response slot once per
// second. Each tick either resolves with an arrived response or counts
// the remaining seconds down; at zero the message is edited back to its
// bare content and, when requested, the channel is notified that the
// timeout was reached.
func (i *Invoker) RunPrompt(ctx context.Context, channelID, content string, seconds int, notifyTimeout bool) (PromptResult, error) {
	message, err := i.gateway.SendMessage(ctx, channelID, content)
	if err != nil {
		return PromptResult{}, err
	}

	remaining := seconds
	ticker := time.NewTicker(i.promptInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return PromptResult{MessageID: message.ID, TimedOut: true}, ctx.Err()
		case <-ticker.C:
		}

		if resp, ok := i.session.TakePromptResponse(message.ID); ok {
			return PromptResult{
				MessageID: message.ID,
				Value:     strings.Join(resp.Values, ","),
				UserID:    resp.User.ID,
				UserName:  resp.User.Username,
				UserTag:   resp.User.Tag,
			}, nil
		}

		if seconds > 0 && remaining <= 0 {
			if err := i.gateway.EditMessage(ctx, channelID, message.ID, content); err != nil {
				i.session.Log("failed to update timeout message: " + err.Error())
			}
			if notifyTimeout {
				if _, err := i.gateway.SendMessage(ctx, channelID, "Timeout reached"); err != nil {
					i.session.Log("failed to send timeout message: " + err.Error())
				}
			}
			return PromptResult{MessageID: message.ID, TimedOut: true}, nil
		}

		if seconds > 0 {
			remaining--
			updated := fmt.Sprintf("%s (%ds)", content, remaining)
			if err := i.gateway.EditMessage(ctx, channelID, message.ID, updated); err != nil {
				i.session.Log("failed to update timer: " + err.Error())
			}
		}
	}
}
