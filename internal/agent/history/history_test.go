package history

import (
	"path/filepath"
	"testing"

	"github.com/marcuslowhuiyu/VibeHackathonPlatform-test-sub000/internal/agent"
)

func TestLoadMissingFileReturnsNil(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, "ws-1")
	messages, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if messages != nil {
		t.Fatalf("expected nil messages for a missing file, got %v", messages)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, "ws-1")
	want := []agent.Message{
		{Role: agent.RoleUser, Content: []agent.Block{{Kind: agent.BlockText, Text: "hello"}}},
		{Role: agent.RoleAssistant, Content: []agent.Block{{Kind: agent.BlockText, Text: "hi there"}}},
	}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d messages, got %d", len(want), len(got))
	}
	if got[0].Content[0].Text != "hello" || got[1].Content[0].Text != "hi there" {
		t.Fatalf("expected round-tripped content, got %+v", got)
	}
	if _, err := filepath.Abs(filepath.Join(dir, "ws-1.json")); err != nil {
		t.Fatalf("unexpected path error: %v", err)
	}
}

func TestResetRemovesFile(t *testing.T) {
	dir := t.TempDir()
	store := New(dir, "ws-1")
	if err := store.Save([]agent.Message{{Role: agent.RoleUser}}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	messages, err := store.Load()
	if err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if messages != nil {
		t.Fatalf("expected no messages after reset, got %v", messages)
	}
}

func TestResetOnMissingFileIsNotAnError(t *testing.T) {
	store := New(t.TempDir(), "ws-1")
	if err := store.Reset(); err != nil {
		t.Fatalf("expected reset of a nonexistent file to succeed, got %v", err)
	}
}
