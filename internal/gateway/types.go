package gateway

// Identity is the account the coordinator logs in with.
type Identity struct {
	ClientID string `json:"clientId"`
	Token    string `json:"token"`
}

func (id Identity) Complete() bool {
	return id.ClientID != "" && id.Token != ""
}

// Option is a name/value pair used for channel and role listings.
type Option struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Presence string

const (
	PresenceOnline  Presence = "online"
	PresenceIdle    Presence = "idle"
	PresenceDnd     Presence = "dnd"
	PresenceOffline Presence = "offline"
	// PresenceAny is a trigger-side sentinel matching every status.
	PresenceAny Presence = "any"
)

type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Tag      string `json:"tag"`
	Bot      bool   `json:"bot,omitempty"`
	System   bool   `json:"system,omitempty"`
}

type Attachment struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Message struct {
	ID          string       `json:"id"`
	ChannelID   string       `json:"channelId"`
	Content     string       `json:"content"`
	Author      User         `json:"author"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// EventKind enumerates every platform event the engine dispatches on.
// The set is closed; adding a kind means extending the engine switch.
type EventKind int

const (
	EventMessage EventKind = iota
	EventMessageUpdate
	EventThreadCreate
	EventThreadUpdate
	EventPresence
	EventMemberJoin
	EventMemberLeave
	EventCommand
	EventComponent
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventMessageUpdate:
		return "message_update"
	case EventThreadCreate:
		return "thread_create"
	case EventThreadUpdate:
		return "thread_update"
	case EventPresence:
		return "presence"
	case EventMemberJoin:
		return "userJoins"
	case EventMemberLeave:
		return "userLeaves"
	case EventCommand:
		return "command"
	case EventComponent:
		return "component"
	}
	return "unknown"
}

// Event is a tagged union; exactly one payload field matching Kind is set.
type Event struct {
	Kind      EventKind
	Message   *MessageEvent
	Thread    *ThreadEvent
	Presence  *PresenceEvent
	Member    *MemberEvent
	Command   *CommandEvent
	Component *ComponentEvent
}

type MessageEvent struct {
	Message
	AuthorRoles  []string
	BotMentioned bool
}

type ThreadEvent struct {
	ThreadID string
	ParentID string
	Name     string
}

type PresenceEvent struct {
	GuildID string
	User    User
	Status  Presence
	Roles   []string
}

type MemberEvent struct {
	User  User
	Nick  string
	Roles []string
}

type CommandEvent struct {
	InteractionID string
	ChannelID     string
	GuildID       string
	Name          string
	User          User
	Roles         []string
	Input         string
	HasInput      bool
	Admin         bool
}

type ComponentEvent struct {
	MessageID string
	ChannelID string
	User      User
	Values    []string
}

// FieldType is the input type of a slash-command option.
type FieldType string

const (
	FieldText    FieldType = "text"
	FieldNumber  FieldType = "number"
	FieldInteger FieldType = "integer"
	FieldBoolean FieldType = "boolean"
)

type CommandField struct {
	Type        FieldType
	Description string
	Required    bool
}

// CommandSpec describes one slash command to register with the platform.
type CommandSpec struct {
	Name        string
	Description string
	Field       *CommandField
}

// Status is the bot-level presence shown on the platform.
type Status struct {
	Activity     string   `json:"botActivity"`
	ActivityType int      `json:"botActivityType"`
	Status       Presence `json:"botStatus"`
}
