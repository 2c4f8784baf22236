package tools

import (
	"context"
	"encoding/json"
	"testing"
)

func TestNewRegistryHasDisplayTools(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"generateForm", "generateChart", "generateCode", "generateCard"} {
		if _, ok := r.Get(name); !ok {
			t.Errorf("missing built-in tool %q", name)
		}
	}
}

func TestExecuteIdentityOnValidArgs(t *testing.T) {
	r := NewRegistry()
	args := json.RawMessage(`{"title":"T","fields":[]}`)
	result, err := r.Execute(context.Background(), "generateForm", args)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if string(result) != string(args) {
		t.Errorf("result = %s, want %s (identity)", result, args)
	}
}

func TestExecuteRejectsSchemaMismatch(t *testing.T) {
	r := NewRegistry()
	args := json.RawMessage(`{"fields":[]}`) // missing required "title"
	if _, err := r.Execute(context.Background(), "generateForm", args); err == nil {
		t.Fatal("expected schema validation error")
	}
}

func TestExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Execute(context.Background(), "doesNotExist", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unknown tool")
	}
}

func TestSubsetPreservesOrderAndSkipsUnknown(t *testing.T) {
	r := NewRegistry()
	subset := r.Subset([]string{"generateCard", "bogus", "generateForm"})
	if len(subset) != 2 {
		t.Fatalf("len(subset) = %d, want 2", len(subset))
	}
	if subset[0].Name != "generateCard" || subset[1].Name != "generateForm" {
		t.Errorf("subset = %v", subset)
	}
}

func TestSubsetEmptyForNoNames(t *testing.T) {
	r := NewRegistry()
	if got := r.Subset(nil); got != nil {
		t.Errorf("Subset(nil) = %v, want nil", got)
	}
}
