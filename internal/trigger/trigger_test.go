package trigger

import (
	"testing"

	"github.com/kmcbride3/discordflow/internal/gateway"
)

func TestNormalizeEmptyScopeBecomesAll(t *testing.T) {
	tr := Trigger{WebhookID: "wh-1", Type: TypeMessage, ChannelIDs: []string{" ", ""}}
	tr.Normalize()
	if len(tr.ChannelIDs) != 1 || tr.ChannelIDs[0] != ScopeAll {
		t.Fatalf("expected [all], got %v", tr.ChannelIDs)
	}
}

func TestNormalizeKeepsExplicitScope(t *testing.T) {
	tr := Trigger{ChannelIDs: []string{"c1", " c2 "}}
	tr.Normalize()
	if len(tr.ChannelIDs) != 2 || tr.ChannelIDs[0] != "c1" || tr.ChannelIDs[1] != "c2" {
		t.Fatalf("unexpected scope: %v", tr.ChannelIDs)
	}
}

func TestValidateRejectsBadDefinitions(t *testing.T) {
	cases := []struct {
		name string
		tr   Trigger
	}{
		{"missing webhook id", Trigger{Type: TypeMessage}},
		{"unknown type", Trigger{WebhookID: "wh", Type: "typo"}},
		{"broken pattern", Trigger{WebhookID: "wh", Type: TypeMessage, Pattern: "("}},
		{"command without name", Trigger{WebhookID: "wh", Type: TypeCommand}},
	}
	for _, tc := range cases {
		if err := tc.tr.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestMatchContentValueIsExactAndCaseInsensitive(t *testing.T) {
	tr := Trigger{Value: "ping"}
	for content, want := range map[string]bool{
		"ping":  true,
		"PING":  true,
		"ping!": false,
		"pong":  false,
	} {
		got, err := tr.MatchContent(content)
		if err != nil {
			t.Fatalf("match %q: %v", content, err)
		}
		if got != want {
			t.Errorf("match %q = %t, want %t", content, got, want)
		}
	}
}

func TestMatchContentCaseSensitiveValue(t *testing.T) {
	tr := Trigger{Value: "ping", CaseSensitive: true}
	if ok, _ := tr.MatchContent("PING"); ok {
		t.Fatal("case-sensitive value should not match PING")
	}
	if ok, _ := tr.MatchContent("ping"); !ok {
		t.Fatal("case-sensitive value should match ping")
	}
}

func TestMatchContentPatternWinsOverValue(t *testing.T) {
	tr := Trigger{Pattern: "^deploy .+", Value: "ignored"}
	if ok, _ := tr.MatchContent("deploy api"); !ok {
		t.Fatal("pattern should match")
	}
	if ok, _ := tr.MatchContent("ignored"); ok {
		t.Fatal("value must be ignored when a pattern is set")
	}
}

func TestCommandSpecFieldOnlyForKnownTypes(t *testing.T) {
	tr := Trigger{Name: "deploy", Description: "run it", CommandFieldType: gateway.FieldText, CommandFieldRequired: true}
	spec := tr.CommandSpec()
	if spec.Field == nil || spec.Field.Type != gateway.FieldText || !spec.Field.Required {
		t.Fatalf("unexpected spec field: %+v", spec.Field)
	}

	tr.CommandFieldType = ""
	if spec := tr.CommandSpec(); spec.Field != nil {
		t.Fatalf("expected no field, got %+v", spec.Field)
	}
}
