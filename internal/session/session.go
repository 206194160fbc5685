package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/kmcbride3/discordflow/internal/gateway"
)

// Phase is the platform connection phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAuthenticating
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	}
	return "unknown"
}

const logCapacity = 100

// Placeholder tracks a transient "please wait" message. Waiting is true
// while the animation loop still owns edit rights to the message;
// released means an external party asked the loop to stop.
type Placeholder struct {
	MatchingID string
	MessageID  string
	ChannelID  string
	Waiting    bool
	Released   bool
}

// ExecutionMatch correlates a workflow execution to platform context.
type ExecutionMatch struct {
	ExecutionID   string
	ChannelID     string
	UserID        string
	PlaceholderID string
}

// PromptResponse is the value slot a timed prompt polls for.
type PromptResponse struct {
	Values []string
	User   gateway.User
}

// MirrorFunc forwards a log line to the auto-log channel, best effort.
type MirrorFunc func(channelID, text string)

// Session is the process-wide state owned by the coordinator. All fields
// are guarded by mu; callers only ever receive snapshots.
type Session struct {
	logger *slog.Logger

	mu           sync.Mutex
	phase        Phase
	identity     gateway.Identity
	baseURL      string
	apiKey       string
	testMode     bool
	autoLogs     bool
	autoLogsChan string
	logs         []string
	mirror       MirrorFunc

	placeholders map[string]*Placeholder
	executions   map[string]*ExecutionMatch
	prompts      map[string]PromptResponse
}

func New(log *slog.Logger) *Session {
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		logger:       log.With(slog.String("component", "session")),
		placeholders: map[string]*Placeholder{},
		executions:   map[string]*ExecutionMatch{},
		prompts:      map[string]PromptResponse{},
	}
}

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) SetPhase(p Phase) {
	s.mu.Lock()
	s.phase = p
	s.mu.Unlock()
}

func (s *Session) Identity() gateway.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *Session) SetIdentity(id gateway.Identity) {
	s.mu.Lock()
	s.identity = id
	s.mu.Unlock()
}

func (s *Session) Ready() bool {
	return s.Phase() == PhaseReady
}

func (s *Session) BaseURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseURL
}

func (s *Session) SetBaseURL(url string) {
	s.mu.Lock()
	s.baseURL = url
	s.mu.Unlock()
}

func (s *Session) APIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiKey
}

func (s *Session) SetAPIKey(key string) {
	s.mu.Lock()
	s.apiKey = key
	s.mu.Unlock()
}

func (s *Session) TestMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testMode
}

func (s *Session) SetTestMode(enabled bool) {
	s.mu.Lock()
	s.testMode = enabled
	s.mu.Unlock()
}

func (s *Session) ToggleTestMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.testMode = !s.testMode
	return s.testMode
}

// SetMirror installs the best-effort auto-log forwarder.
func (s *Session) SetMirror(mirror MirrorFunc) {
	s.mu.Lock()
	s.mirror = mirror
	s.mu.Unlock()
}

func (s *Session) SetAutoLogs(enabled bool, channelID string) {
	s.mu.Lock()
	s.autoLogs = enabled
	if enabled {
		s.autoLogsChan = channelID
	}
	s.mu.Unlock()
}

// Log appends a timestamped line to the bounded ring, evicting the oldest
// entry past capacity, and mirrors it to the auto-log channel when one is
// configured and the session is ready. Mirror failures are swallowed.
func (s *Session) Log(message string) {
	line := time.Now().UTC().Format(time.RFC3339) + " - " + message
	s.mu.Lock()
	if len(s.logs) >= logCapacity {
		s.logs = s.logs[1:]
	}
	s.logs = append(s.logs, line)
	mirror := s.mirror
	ready := s.phase == PhaseReady
	autoLogs := s.autoLogs
	channelID := s.autoLogsChan
	s.mu.Unlock()

	s.logger.Info(message)
	if ready && autoLogs && mirror != nil && channelID != "" {
		mirror(channelID, "** "+line+" **")
	}
}

// Logs returns the most recent n lines, or all of them when n <= 0.
func (s *Session) Logs(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.logs) {
		n = len(s.logs)
	}
	return append([]string(nil), s.logs[len(s.logs)-n:]...)
}

func (s *Session) ClearLogs() {
	s.mu.Lock()
	s.logs = nil
	s.mu.Unlock()
}
