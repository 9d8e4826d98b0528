package resources

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/journal"
	"github.com/mark3labs/mcp-go/mcp"
)

func read(t *testing.T, handle func(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error), uri string) mcp.TextResourceContents {
	t.Helper()
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	contents, err := handle(context.Background(), req)
	if err != nil {
		t.Fatalf("read %s: %v", uri, err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("content is %T", contents[0])
	}
	return tc
}

func TestHandleSparklers_SingleMode(t *testing.T) {
	root := t.TempDir()
	h := NewHandler(config.NewFileStore(root), nil)

	tc := read(t, h.HandleSparklers, SparklersURI)
	var got Summary
	if err := json.Unmarshal([]byte(tc.Text), &got); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, tc.Text)
	}
	if got.Mode != "single" || got.Human != "User" || got.Default != "Sparkle" {
		t.Errorf("summary = %+v", got)
	}
	if len(got.Sparklers) != 1 || got.Sparklers[0].Dir != root || got.Sparklers[0].HasIdentity {
		t.Errorf("sparklers = %+v", got.Sparklers)
	}
}

func TestHandleSparklers_MultiMode(t *testing.T) {
	root := t.TempDir()
	store := config.NewFileStore(root)
	cfg := &config.Config{
		Human:     config.HumanConfig{Name: "Ada"},
		Sparklers: []config.SparklerConfig{{Name: "Ember"}, {Name: "Nova", Default: true}},
	}
	if err := store.Save(cfg); err != nil {
		t.Fatal(err)
	}
	novaDir := filepath.Join(root, "sparklers", "Nova")
	if err := os.MkdirAll(novaDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(novaDir, config.IdentityFile), []byte("# Nova"), 0o644); err != nil {
		t.Fatal(err)
	}

	tc := read(t, NewHandler(store, nil).HandleSparklers, SparklersURI)
	var got Summary
	if err := json.Unmarshal([]byte(tc.Text), &got); err != nil {
		t.Fatal(err)
	}
	if got.Mode != "multi" || got.Default != "Nova" {
		t.Errorf("summary = %+v", got)
	}
	want := []SparklerSummary{
		{Name: "Ember", Dir: filepath.Join(root, "sparklers", "Ember")},
		{Name: "Nova", Default: true, Dir: novaDir, HasIdentity: true},
	}
	if len(got.Sparklers) != len(want) {
		t.Fatalf("sparklers = %+v", got.Sparklers)
	}
	for i := range want {
		if got.Sparklers[i] != want[i] {
			t.Errorf("sparkler %d = %+v, want %+v", i, got.Sparklers[i], want[i])
		}
	}
}

func TestHandleSparklers_BadConfig(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, config.ConfigFile), []byte("not = [toml"), 0o644); err != nil {
		t.Fatal(err)
	}
	tc := read(t, NewHandler(config.NewFileStore(root), nil).HandleSparklers, SparklersURI)
	if !strings.HasPrefix(tc.Text, "Error:") || tc.MIMEType != "text/plain" {
		t.Errorf("expected error resource, got %+v", tc)
	}
}

func TestHandleEmbodiments(t *testing.T) {
	empty := read(t, NewHandler(config.NewFileStore(t.TempDir()), nil).HandleEmbodiments, EmbodimentsURI)
	if !strings.Contains(empty.Text, `"total": 0`) {
		t.Errorf("nil journal = %s", empty.Text)
	}

	j, err := journal.New(journal.DefaultConfig(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = j.Close() })
	if _, err := j.Record(journal.Entry{SessionID: "s1", Outcome: journal.OutcomeEmbodied}); err != nil {
		t.Fatal(err)
	}

	tc := read(t, NewHandler(config.NewFileStore(t.TempDir()), j).HandleEmbodiments, EmbodimentsURI)
	var stats journal.Stats
	if err := json.Unmarshal([]byte(tc.Text), &stats); err != nil {
		t.Fatal(err)
	}
	if stats.Total != 1 || stats.ByOutcome[journal.OutcomeEmbodied] != 1 || stats.LastSession != "s1" {
		t.Errorf("stats = %+v", stats)
	}
}
