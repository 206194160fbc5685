package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kmcbride3/discordflow/internal/gateway"
)

// SyncFunc pushes the full slash-command set to the platform.
type SyncFunc func(ctx context.Context, specs []gateway.CommandSpec) error

// Registry holds the flat trigger map keyed by webhook id and the derived
// channel index. The index is rebuilt in full on every change; it is never
// patched incrementally, so deactivated triggers cannot leave stale entries.
type Registry struct {
	logger   *slog.Logger
	sync     SyncFunc
	debounce time.Duration

	mu       sync.Mutex
	triggers map[string]*Trigger
	index    map[string][]*Trigger
	base     []gateway.CommandSpec
	timer    *time.Timer
}

func NewRegistry(log *slog.Logger, syncFn SyncFunc) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		logger:   log.With(slog.String("component", "trigger_registry")),
		sync:     syncFn,
		debounce: 2 * time.Second,
		triggers: map[string]*Trigger{},
		index:    map[string][]*Trigger{},
	}
}

// SetBaseCommands installs the built-in command specs that every
// registration call carries alongside the trigger-defined commands.
func (r *Registry) SetBaseCommands(specs []gateway.CommandSpec) {
	r.mu.Lock()
	r.base = append([]gateway.CommandSpec(nil), specs...)
	r.mu.Unlock()
}

// Apply replaces exactly one trigger (by webhook id) in the registry,
// rebuilds the channel index and schedules a debounced command sync.
func (r *Registry) Apply(t Trigger) error {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Type == TypeCommand && t.Active {
		if err := r.checkCommandNameLocked(&t); err != nil {
			return err
		}
	}
	stored := t
	r.triggers[t.WebhookID] = &stored
	r.rebuildLocked()
	r.scheduleSyncLocked()
	r.logger.Info("trigger update", slog.String("webhook_id", t.WebhookID), slog.Bool("active", t.Active))
	return nil
}

// Deactivate soft-disables a trigger in place. The entry survives so the
// definition is not re-matched until a refreshed set supersedes it.
func (r *Registry) Deactivate(webhookID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.triggers[webhookID]
	if !ok || !entry.Active {
		return
	}
	entry.Active = false
	r.rebuildLocked()
	r.scheduleSyncLocked()
	r.logger.Warn("trigger deactivated", slog.String("webhook_id", webhookID))
}

// Trigger returns a snapshot of one trigger.
func (r *Registry) Trigger(webhookID string) (Trigger, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.triggers[webhookID]
	if !ok {
		return Trigger{}, false
	}
	return *entry, true
}

// Lookup returns the triggers scoped to the given key plus the ones
// registered under the all sentinel, as snapshots.
func (r *Registry) Lookup(scopeKey string) []Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Trigger
	for _, entry := range r.index[scopeKey] {
		out = append(out, *entry)
	}
	if scopeKey != ScopeAll {
		for _, entry := range r.index[ScopeAll] {
			out = append(out, *entry)
		}
	}
	return out
}

// All returns every active trigger regardless of scope.
func (r *Registry) All() []Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Trigger, 0, len(r.triggers))
	for _, id := range r.sortedIDsLocked() {
		entry := r.triggers[id]
		if entry.Active {
			out = append(out, *entry)
		}
	}
	return out
}

// IndexSnapshot copies the full channel index. Member join/leave events
// have no channel of their own; their handler fans out across every
// indexed scope key.
func (r *Registry) IndexSnapshot() map[string][]Trigger {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string][]Trigger, len(r.index))
	for key, entries := range r.index {
		copies := make([]Trigger, 0, len(entries))
		for _, entry := range entries {
			copies = append(copies, *entry)
		}
		out[key] = copies
	}
	return out
}

// Scopes returns every channel key currently present in the index.
func (r *Registry) Scopes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.index))
	for key := range r.index {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// CommandSpecs builds the current registration payload: base commands
// followed by every active command trigger.
func (r *Registry) CommandSpecs() []gateway.CommandSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commandSpecsLocked()
}

// PrimeCommands registers the command set immediately, bypassing the
// debounce. Used once per process during the first credential handshake.
func (r *Registry) PrimeCommands(ctx context.Context) error {
	if r.sync == nil {
		return nil
	}
	return r.sync(ctx, r.CommandSpecs())
}

// Close cancels any pending debounced sync.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	r.mu.Unlock()
}

func (r *Registry) checkCommandNameLocked(t *Trigger) error {
	scoped := map[string]struct{}{}
	for _, id := range t.ChannelIDs {
		scoped[id] = struct{}{}
	}
	for _, other := range r.triggers {
		if other.WebhookID == t.WebhookID || other.Type != TypeCommand || !other.Active || other.Name != t.Name {
			continue
		}
		for _, id := range other.ChannelIDs {
			_, overlap := scoped[id]
			if overlap || id == ScopeAll {
				return fmt.Errorf("command name already in use for this scope: %s", t.Name)
			}
		}
		if _, allScoped := scoped[ScopeAll]; allScoped {
			return fmt.Errorf("command name already in use for this scope: %s", t.Name)
		}
	}
	return nil
}

// rebuildLocked recomputes the channel index from the flat map. Triggers
// iterate in webhook-id order so index order is stable across rebuilds.
func (r *Registry) rebuildLocked() {
	index := map[string][]*Trigger{}
	for _, id := range r.sortedIDsLocked() {
		entry := r.triggers[id]
		if !entry.Active {
			continue
		}
		for _, channelID := range entry.ChannelIDs {
			index[channelID] = append(index[channelID], entry)
		}
	}
	r.index = index
}

func (r *Registry) sortedIDsLocked() []string {
	ids := make([]string, 0, len(r.triggers))
	for id := range r.triggers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) commandSpecsLocked() []gateway.CommandSpec {
	specs := append([]gateway.CommandSpec(nil), r.base...)
	for _, id := range r.sortedIDsLocked() {
		entry := r.triggers[id]
		if entry.Type == TypeCommand && entry.Active {
			specs = append(specs, entry.CommandSpec())
		}
	}
	return specs
}

// scheduleSyncLocked collapses bursts of trigger updates into a single
// registration call carrying the final command set.
func (r *Registry) scheduleSyncLocked() {
	if r.sync == nil {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		r.mu.Lock()
		specs := r.commandSpecsLocked()
		r.mu.Unlock()
		if err := r.sync(context.Background(), specs); err != nil {
			r.logger.Error("command sync failed", slog.Any("error", err))
		}
	})
}
