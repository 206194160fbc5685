package rpc

import (
	"encoding/json"

	"github.com/kmcbride3/discordflow/internal/action"
	"github.com/kmcbride3/discordflow/internal/gateway"
	"github.com/kmcbride3/discordflow/internal/trigger"
)

// Request types form a closed set; the server rejects anything else.
const (
	TypeCredentials  = "credentials"
	TypeListChannels = "list:channels"
	TypeListRoles    = "list:roles"
	TypeSendMessage  = "send:message"
	TypeSendPrompt   = "send:prompt"
	TypeSendAction   = "send:action"
	TypeExecution    = "execution"
	TypeTrigger      = "trigger"
	TypeBotStatus    = "bot:status"
)

// Credential handshake outcomes.
const (
	OutcomeReady     = "ready"
	OutcomeAlready   = "already"
	OutcomeLogin     = "login"
	OutcomeMissing   = "missing"
	OutcomeError     = "error"
	OutcomeDifferent = "different"
)

// Envelope is the wire frame both directions. Replies echo the request's
// type and id; a failed request carries the error string instead of data.
type Envelope struct {
	Type  string          `json:"type"`
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

type CredentialsRequest struct {
	ClientID string `json:"clientId"`
	Token    string `json:"token"`
	BaseURL  string `json:"baseUrl,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

type CredentialsResponse struct {
	Outcome string `json:"outcome"`
}

type OptionsResponse struct {
	Options []gateway.Option `json:"options"`
}

type SendMessageRequest struct {
	ExecutionID        string `json:"executionId,omitempty"`
	TriggerPlaceholder bool   `json:"triggerPlaceholder,omitempty"`
	TriggerChannel     bool   `json:"triggerChannel,omitempty"`
	ChannelID          string `json:"channelId,omitempty"`
	Content            string `json:"content"`
}

type SendMessageResponse struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
}

type SendPromptRequest struct {
	ExecutionID        string `json:"executionId,omitempty"`
	TriggerPlaceholder bool   `json:"triggerPlaceholder,omitempty"`
	TriggerChannel     bool   `json:"triggerChannel,omitempty"`
	ChannelID          string `json:"channelId,omitempty"`
	Content            string `json:"content"`
	Timeout            int    `json:"timeout"`
	NotifyTimeout      bool   `json:"updateMessage,omitempty"`
	Buttons            string `json:"buttons,omitempty"`
	Select             string `json:"select,omitempty"`
}

type SendPromptResponse struct {
	ChannelID string `json:"channelId"`
	MessageID string `json:"messageId"`
	Value     string `json:"value,omitempty"`
	UserID    string `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	UserTag   string `json:"userTag,omitempty"`
	TimedOut  bool   `json:"timeout"`
}

// SendActionRequest and its response reuse the executor's shapes.
type SendActionRequest = action.Request

type SendActionResponse = action.Result

type ExecutionRequest struct {
	ExecutionID   string `json:"executionId"`
	ChannelID     string `json:"channelId"`
	UserID        string `json:"userId,omitempty"`
	PlaceholderID string `json:"placeholderId,omitempty"`
	APIKey        string `json:"apiKey,omitempty"`
	BaseURL       string `json:"baseUrl,omitempty"`
}

// TriggerRequest carries one full trigger definition plus the engine
// coordinates used for invocation and execution polling.
type TriggerRequest struct {
	trigger.Trigger
	BaseURL string `json:"baseUrl,omitempty"`
	APIKey  string `json:"apiKey,omitempty"`
}

type BotStatusRequest = gateway.Status

type AckResponse struct {
	OK bool `json:"ok"`
}
