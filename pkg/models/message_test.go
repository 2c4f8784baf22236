package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestUserJSONRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	original := User{ID: "user-123", Email: "test@example.com", Name: "Test User", CreatedAt: now, UpdatedAt: now}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	var decoded User
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if decoded.ID != original.ID || decoded.Email != original.Email || decoded.Name != original.Name {
		t.Errorf("decoded = %+v, want %+v", decoded, original)
	}
}

func TestUserOmitsEmptyName(t *testing.T) {
	data, err := json.Marshal(User{ID: "user-1", Email: "a@b.com"})
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if _, ok := raw["name"]; ok {
		t.Error("expected name to be omitted when empty")
	}
}
