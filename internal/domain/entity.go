package domain

import "strings"

// Entity is an agent, team or workflow exposed by AgentOS.
type Entity struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        EntityType `json:"type"`
	Description string     `json:"description,omitempty"`
}

// ProfileKey is the chat profile identifier, "{type}:{id}".
func (e Entity) ProfileKey() string {
	return string(e.Type) + ":" + e.ID
}

func (e Entity) String() string {
	kind := string(e.Type)
	if kind != "" {
		kind = strings.ToUpper(kind[:1]) + kind[1:]
	}
	return kind + ": " + e.Name + " (" + e.ID + ")"
}

// ParseProfileKey splits a "{type}:{id}" key. ok is false for plain model profiles.
func ParseProfileKey(key string) (EntityType, string, bool) {
	kind, id, found := strings.Cut(key, ":")
	if !found || id == "" {
		return "", "", false
	}
	t, err := ParseEntityType(kind)
	if err != nil {
		return "", "", false
	}
	return t, id, true
}
