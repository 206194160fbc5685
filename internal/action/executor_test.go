package action

import (
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/kmcbride3/discordflow/internal/gateway/local"
	"github.com/kmcbride3/discordflow/internal/session"
)

type countingGateway struct {
	*local.Gateway
	bulkCounts []int
	added      []string
	removed    []string
}

func (g *countingGateway) BulkDelete(ctx context.Context, channelID string, count int) error {
	g.bulkCounts = append(g.bulkCounts, count)
	return g.Gateway.BulkDelete(ctx, channelID, count)
}

func (g *countingGateway) AddRole(ctx context.Context, userID, roleID string) error {
	g.added = append(g.added, roleID)
	return g.Gateway.AddRole(ctx, userID, roleID)
}

func (g *countingGateway) RemoveRole(ctx context.Context, userID, roleID string) error {
	g.removed = append(g.removed, roleID)
	return g.Gateway.RemoveRole(ctx, userID, roleID)
}

func newTestExecutor(t *testing.T) (*Executor, *countingGateway, *session.Session) {
	t.Helper()
	sess := session.New(slog.Default())
	sess.SetPhase(session.PhaseReady)
	gw := &countingGateway{Gateway: local.New(slog.Default())}
	exec := NewExecutor(slog.Default(), sess, gw)
	exec.waitInterval = time.Millisecond
	return exec, gw, sess
}

func TestPerformRequiresReadySession(t *testing.T) {
	exec, _, sess := newTestExecutor(t)
	sess.SetPhase(session.PhaseIdle)
	if _, err := exec.Perform(context.Background(), Request{ChannelID: "c1", ActionType: ActionRemoveMessages}); err == nil {
		t.Fatal("expected not-ready error")
	}
}

func TestRemoveMessagesClampsCount(t *testing.T) {
	exec, gw, _ := newTestExecutor(t)
	for _, tc := range []struct{ in, want int }{
		{500, 100},
		{0, 100},
		{-3, 100},
		{7, 7},
	} {
		if _, err := exec.Perform(context.Background(), Request{ChannelID: "c1", ActionType: ActionRemoveMessages, RemoveMessagesNumber: tc.in}); err != nil {
			t.Fatalf("perform(%d): %v", tc.in, err)
		}
	}
	want := []int{100, 100, 100, 7}
	if !reflect.DeepEqual(gw.bulkCounts, want) {
		t.Fatalf("bulk counts = %v, want %v", gw.bulkCounts, want)
	}
}

func TestRoleUpdatesAreIdempotent(t *testing.T) {
	exec, gw, _ := newTestExecutor(t)
	gw.SeedMember("u1", "r1")
	ctx := context.Background()

	if _, err := exec.Perform(ctx, Request{ChannelID: "c1", ActionType: ActionAddRole, UserID: "u1", RoleUpdateIDs: StringList{"r1", "r2"}}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(gw.added, []string{"r2"}) {
		t.Fatalf("only the missing role should be added, got %v", gw.added)
	}

	if _, err := exec.Perform(ctx, Request{ChannelID: "c1", ActionType: ActionRemoveRole, UserID: "u1", RoleUpdateIDs: StringList{"r2", "r9"}}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(gw.removed, []string{"r2"}) {
		t.Fatalf("only the held role should be removed, got %v", gw.removed)
	}
}

func TestPerformViaExecutionResolvesChannel(t *testing.T) {
	exec, gw, sess := newTestExecutor(t)
	sess.CreateExecution(session.ExecutionMatch{ExecutionID: "e1", ChannelID: "c7"})

	result, err := exec.Perform(context.Background(), Request{ExecutionID: "e1", TriggerChannel: true, ActionType: ActionRemoveMessages, RemoveMessagesNumber: 3})
	if err != nil {
		t.Fatal(err)
	}
	if result.ChannelID != "c7" {
		t.Fatalf("channel should come from the execution entry, got %s", result.ChannelID)
	}
	if len(gw.bulkCounts) != 1 || gw.bulkCounts[0] != 3 {
		t.Fatalf("unexpected bulk counts: %v", gw.bulkCounts)
	}
}

func TestPerformUnknownExecutionFails(t *testing.T) {
	exec, _, _ := newTestExecutor(t)
	if _, err := exec.Perform(context.Background(), Request{ExecutionID: "nope", TriggerChannel: true, ActionType: ActionRemoveMessages}); err == nil {
		t.Fatal("expected unknown execution error")
	}
}

func TestPlaceholderGateDeletesMessage(t *testing.T) {
	exec, gw, sess := newTestExecutor(t)
	ctx := context.Background()

	msg, err := gw.SendMessage(ctx, "c1", "Working")
	if err != nil {
		t.Fatal(err)
	}
	sess.CreatePlaceholder("m1", msg.ID, "c1")
	sess.CreateExecution(session.ExecutionMatch{ExecutionID: "e1", ChannelID: "c1", PlaceholderID: "m1"})

	// Stand in for the animation loop: release is observed, then the
	// entry is finished so the bounded wait ends early.
	go func() {
		for !func() bool {
			ph, ok := sess.Placeholder("m1")
			return ok && ph.Released
		}() {
			time.Sleep(time.Millisecond)
		}
		sess.FinishPlaceholder("m1")
	}()

	if _, err := exec.Perform(ctx, Request{ExecutionID: "e1", TriggerPlaceholder: true, ActionType: ActionRemoveMessages, RemoveMessagesNumber: 1}); err != nil {
		t.Fatal(err)
	}
	if _, ok := gw.MessageContent("c1", msg.ID); ok {
		t.Fatal("placeholder message should be deleted")
	}
	if sess.PlaceholderExists("m1") {
		t.Fatal("placeholder entry should be gone")
	}
}

func TestStringListAcceptsBothShapes(t *testing.T) {
	var fromArray, fromString StringList
	if err := json.Unmarshal([]byte(`["r1","r2"]`), &fromArray); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(`"r1, r2,"`), &fromString); err != nil {
		t.Fatal(err)
	}
	want := StringList{"r1", "r2"}
	if !reflect.DeepEqual(fromArray, want) || !reflect.DeepEqual(fromString, want) {
		t.Fatalf("array=%v string=%v, want %v", fromArray, fromString, want)
	}
}
