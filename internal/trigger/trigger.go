package trigger

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kmcbride3/discordflow/internal/gateway"
)

// ScopeAll is the sentinel channel scope matching every channel.
const ScopeAll = "all"

// Type is the event category a trigger binds to.
type Type string

const (
	TypeMessage       Type = "message"
	TypeMessageUpdate Type = "message_update"
	TypeThreadCreate  Type = "thread_create"
	TypeThreadUpdate  Type = "thread_update"
	TypePresence      Type = "presence"
	TypeUserJoins     Type = "userJoins"
	TypeUserLeaves    Type = "userLeaves"
	TypeCommand       Type = "command"
)

func (t Type) Valid() bool {
	switch t {
	case TypeMessage, TypeMessageUpdate, TypeThreadCreate, TypeThreadUpdate,
		TypePresence, TypeUserJoins, TypeUserLeaves, TypeCommand:
		return true
	}
	return false
}

// Trigger is a routing rule binding a platform event pattern to a
// workflow invocation target.
type Trigger struct {
	WebhookID     string           `json:"webhookId"`
	Type          Type             `json:"type"`
	ChannelIDs    []string         `json:"channelIds"`
	Active        bool             `json:"active"`
	RoleIDs       []string         `json:"roleIds,omitempty"`
	Pattern       string           `json:"pattern,omitempty"`
	Value         string           `json:"value,omitempty"`
	CaseSensitive bool             `json:"caseSensitive,omitempty"`
	BotMention    bool             `json:"botMention,omitempty"`
	Presence      gateway.Presence `json:"presence,omitempty"`
	Placeholder   string           `json:"placeholder,omitempty"`

	// Command trigger metadata.
	Name                    string            `json:"name,omitempty"`
	Description             string            `json:"description,omitempty"`
	CommandFieldType        gateway.FieldType `json:"commandFieldType,omitempty"`
	CommandFieldDescription string            `json:"commandFieldDescription,omitempty"`
	CommandFieldRequired    bool              `json:"commandFieldRequired,omitempty"`
}

// Normalize rewrites an empty channel scope to the all sentinel. After
// normalization ChannelIDs is never empty.
func (t *Trigger) Normalize() {
	cleaned := make([]string, 0, len(t.ChannelIDs))
	for _, id := range t.ChannelIDs {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{ScopeAll}
	}
	t.ChannelIDs = cleaned
}

// Validate rejects malformed definitions at the registry boundary so
// matching never sees them.
func (t *Trigger) Validate() error {
	if strings.TrimSpace(t.WebhookID) == "" {
		return fmt.Errorf("trigger webhookId is required")
	}
	if !t.Type.Valid() {
		return fmt.Errorf("unsupported trigger type: %s", t.Type)
	}
	if t.Pattern != "" {
		if _, err := CompileContentMatcher(t.Pattern, "", t.CaseSensitive); err != nil {
			return fmt.Errorf("invalid trigger pattern: %w", err)
		}
	}
	if t.Type == TypeCommand && strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("command trigger requires a name")
	}
	return nil
}

// HasContentFilter reports whether the trigger can match content-bearing
// events at all. A trigger with none of pattern, value or botMention set
// never matches them.
func (t *Trigger) HasContentFilter() bool {
	return t.Pattern != "" || t.Value != "" || t.BotMention
}

// MatchContent tests the textual content of an event against the
// trigger's pattern or exact value.
func (t *Trigger) MatchContent(content string) (bool, error) {
	if t.Pattern == "" && t.Value == "" {
		return false, nil
	}
	re, err := CompileContentMatcher(t.Pattern, t.Value, t.CaseSensitive)
	if err != nil {
		return false, err
	}
	return re.MatchString(content), nil
}

// CommandSpec maps a command trigger to its platform slash-command
// registration shape: one optional named input field.
func (t *Trigger) CommandSpec() gateway.CommandSpec {
	spec := gateway.CommandSpec{
		Name:        t.Name,
		Description: t.Description,
	}
	switch t.CommandFieldType {
	case gateway.FieldText, gateway.FieldNumber, gateway.FieldInteger, gateway.FieldBoolean:
		spec.Field = &gateway.CommandField{
			Type:        t.CommandFieldType,
			Description: t.CommandFieldDescription,
			Required:    t.CommandFieldRequired,
		}
	}
	return spec
}

// CompileContentMatcher builds the matching expression: the pattern
// verbatim, or ^value$ when only a value is set. Matching is
// case-insensitive unless caseSensitive is set.
func CompileContentMatcher(pattern, value string, caseSensitive bool) (*regexp.Regexp, error) {
	src := pattern
	if src == "" {
		src = "^" + value + "$"
	}
	if !caseSensitive {
		src = "(?i)" + src
	}
	return regexp.Compile(src)
}
