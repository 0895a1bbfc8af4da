package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CTAG07/cvforge/pkg/pdf"
	"github.com/CTAG07/cvforge/pkg/templating"
	"github.com/google/go-cmp/cmp"
)

func TestLoadConfig_WritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if _, err = os.Stat(path); err != nil {
		t.Fatalf("default config file was not written: %v", err)
	}

	again, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reloading defaults failed: %v", err)
	}
	if diff := cmp.Diff(config, again); diff != "" {
		t.Errorf("written defaults do not round trip (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_MissingSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server_config":{"server_addr":":9000"}}`), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Server.ServerAddr != ":9000" {
		t.Errorf("ServerAddr = %q, want :9000", config.Server.ServerAddr)
	}
	if diff := cmp.Diff(templating.DefaultConfig(), config.Templates); diff != "" {
		t.Errorf("template section should default (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(pdf.DefaultOptions(), *config.PDF); diff != "" {
		t.Errorf("pdf section should default (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "failed to parse config file") {
		t.Errorf("expected a parse error, got %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"info":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	} {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestConfigManager_Update(t *testing.T) {
	env := setupTestEnv(t)
	tm, _, _ := newTestPipeline(t, env)

	cm, err := NewConfigManager(env.configPath)
	if err != nil {
		t.Fatal(err)
	}
	cm.SetLogger(discardLogger())
	cm.SetTemplateManager(tm)

	t.Run("rejects invalid pdf options", func(t *testing.T) {
		next := cm.Get()
		opts := *next.PDF
		opts.PaperWidth = 0
		next.PDF = &opts
		if err := cm.Update(next); err == nil {
			t.Error("expected an error for a zero paper width")
		}
		if cm.Get().PDF.PaperWidth == 0 {
			t.Error("rejected options were applied")
		}
	})

	t.Run("applies template config", func(t *testing.T) {
		next := cm.Get()
		next.Templates = &templating.TemplateConfig{
			BindAttr:   "data-bind",
			RepeatAttr: "data-each",
		}
		if err := cm.Update(next); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		if got := tm.GetConfig().BindAttr; got != "data-bind" {
			t.Errorf("template manager BindAttr = %q, want data-bind", got)
		}
		reloaded, err := LoadConfig(env.configPath)
		if err != nil {
			t.Fatal(err)
		}
		if reloaded.Templates.RepeatAttr != "data-each" {
			t.Errorf("saved RepeatAttr = %q, want data-each", reloaded.Templates.RepeatAttr)
		}
	})
}
