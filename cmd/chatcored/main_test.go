package main

import (
	"bytes"
	"testing"
)

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "config", "agents"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestAgentsListPrintsBuiltinAgents(t *testing.T) {
	cmd := buildRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"agents", "list"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got := out.String()
	for _, name := range []string{"main", "research", "code_review"} {
		if !bytes.Contains([]byte(got), []byte(name)) {
			t.Errorf("output missing agent %q:\n%s", name, got)
		}
	}
}

func TestConfigSchemaPrintsJSON(t *testing.T) {
	cmd := buildRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"config", "schema"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.Len() == 0 {
		t.Fatal("expected non-empty schema output")
	}
}

func TestConfigValidateFailsOnBadUpstreamProvider(t *testing.T) {
	t.Setenv("CHATCORE__UPSTREAM__PROVIDER", "not-a-real-provider")
	t.Setenv("CHATCORE__UPSTREAM__API_KEY", "test-key")

	cmd := buildRootCmd()
	cmd.SetArgs([]string{"config", "validate"})

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected validation error for unknown upstream provider")
	}
}
