package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kmcbride3/discordflow/internal/gateway"
)

// InvokePayload is the serialized event context posted to the workflow
// engine's invocation endpoint.
type InvokePayload struct {
	Content              string               `json:"content,omitempty"`
	ChannelID            string               `json:"channelId,omitempty"`
	PlaceholderID        string               `json:"placeholderId"`
	UserID               string               `json:"userId,omitempty"`
	UserName             string               `json:"userName,omitempty"`
	UserTag              string               `json:"userTag,omitempty"`
	MessageID            string               `json:"messageId,omitempty"`
	Attachments          []gateway.Attachment `json:"attachments,omitempty"`
	Presence             string               `json:"presence,omitempty"`
	Nick                 string               `json:"nick,omitempty"`
	AddedRoles           []string             `json:"addedRoles,omitempty"`
	RemovedRoles         []string             `json:"removedRoles,omitempty"`
	InteractionMessageID string               `json:"interactionMessageId,omitempty"`
	InteractionValues    []string             `json:"interactionValues,omitempty"`
	UserRoles            []string             `json:"userRoles,omitempty"`
}

// ExecutionStatus is the workflow engine's answer for one execution.
type ExecutionStatus struct {
	Finished  bool    `json:"finished"`
	StoppedAt *string `json:"stoppedAt"`
}

// Done reports whether the execution finished or was stopped.
func (s ExecutionStatus) Done() bool {
	return s.Finished || s.StoppedAt != nil
}

// Client talks to the workflow engine's webhook and execution-status
// APIs. The base URL is per-call state: it travels with every trigger
// definition and may change between calls.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
}

func NewClient(log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		logger: log.With(slog.String("component", "workflow_client")),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Invoke posts the event context to the invocation endpoint for the
// webhook id. Test mode routes to the parallel test endpoint.
func (c *Client) Invoke(ctx context.Context, baseURL, webhookID string, payload InvokePayload, testMode bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	variant := ""
	if testMode {
		variant = "-test"
	}
	url := fmt.Sprintf("%s/webhook%s/%s/webhook", strings.TrimRight(baseURL, "/"), variant, webhookID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("workflow invocation error: %s", strings.TrimSpace(string(respBody)))
	}
	return nil
}

// ExecutionStatusFor queries the execution-status endpoint.
func (c *Client) ExecutionStatusFor(ctx context.Context, baseURL, apiKey, executionID string) (ExecutionStatus, error) {
	url := fmt.Sprintf("%s/executions/%s", strings.TrimRight(baseURL, "/"), executionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ExecutionStatus{}, err
	}
	req.Header.Set("Accept", "application/json")
	if apiKey != "" {
		req.Header.Set("X-N8N-API-KEY", apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ExecutionStatus{}, err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return ExecutionStatus{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ExecutionStatus{}, fmt.Errorf("execution status error: %s", strings.TrimSpace(string(respBody)))
	}
	var status ExecutionStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return ExecutionStatus{}, err
	}
	return status, nil
}
