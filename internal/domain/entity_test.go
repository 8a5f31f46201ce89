package domain

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseEntityType(t *testing.T) {
	for _, raw := range []string{"agent", "team", "workflow"} {
		got, err := ParseEntityType(raw)
		if err != nil {
			t.Fatalf("ParseEntityType(%q) error: %v", raw, err)
		}
		if string(got) != raw {
			t.Fatalf("ParseEntityType(%q) = %q", raw, got)
		}
	}

	if _, err := ParseEntityType("Agent"); !errors.Is(err, ErrUnknownEntityType) {
		t.Fatalf("expected ErrUnknownEntityType, got %v", err)
	}
}

func TestSessionTypeRoundTrip(t *testing.T) {
	for _, et := range EntityTypes {
		back, err := et.SessionType().EntityType()
		if err != nil || back != et {
			t.Fatalf("round trip of %q gave %q, %v", et, back, err)
		}
	}
}

func TestProfileKey(t *testing.T) {
	e := Entity{ID: "web-search-agent", Name: "Web Search Agent", Type: EntityAgent}
	if e.ProfileKey() != "agent:web-search-agent" {
		t.Fatalf("unexpected profile key %q", e.ProfileKey())
	}
	if e.String() != "Agent: Web Search Agent (web-search-agent)" {
		t.Fatalf("unexpected string %q", e.String())
	}

	kind, id, ok := ParseProfileKey(e.ProfileKey())
	if !ok || kind != EntityAgent || id != "web-search-agent" {
		t.Fatalf("ParseProfileKey = %q %q %v", kind, id, ok)
	}

	// Ollama model ids also contain a colon but are not entity profiles.
	if _, _, ok := ParseProfileKey("llama3.2:latest"); ok {
		t.Fatal("model profile parsed as entity")
	}
	if _, _, ok := ParseProfileKey("team:"); ok {
		t.Fatal("empty id accepted")
	}
}

func TestSessionJSONExposesEntityField(t *testing.T) {
	cases := map[SessionType]string{
		SessionTypeAgent:    "agent_id",
		SessionTypeTeam:     "team_id",
		SessionTypeWorkflow: "workflow_id",
	}
	for st, field := range cases {
		data, err := json.Marshal(Session{SessionID: "s1", SessionType: st, EntityID: "e1"})
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if m[field] != "e1" {
			t.Fatalf("%s: expected %s=e1, got %v", st, field, m)
		}
		if len(m) != 6 {
			// session_id, session_type, user_id, created_at, updated_at + entity field
			t.Fatalf("%s: unexpected keys %v", st, m)
		}
	}
}
