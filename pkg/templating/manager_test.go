package templating

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const (
	testHTMLTemplate = `<!DOCTYPE html><html><head><title value-of="name"></title></head>` +
		`<body><ul><li repeat-for="jobs" value-of="jobs.title"></li></ul></body></html>`
	testMarkdownTemplate = "## Skills\n\nKnown for <span value-of=\"skills\"></span>.\n"
)

// setupTestManager creates a TemplateManager over a temporary template
// directory holding one HTML template, one Markdown template and a file that
// must be ignored.
func setupTestManager(tb testing.TB, config *TemplateConfig) *TemplateManager {
	tb.Helper()

	templateDir := tb.TempDir()
	files := map[string]string{
		"cv.html":    testHTMLTemplate,
		"skills.md":  testMarkdownTemplate,
		"notes.txt":  "ignored",
		"README.htm": "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(templateDir, name), []byte(content), 0644); err != nil {
			tb.Fatalf("failed to write %s: %v", name, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm, err := NewTemplateManager(logger, config, templateDir)
	if err != nil {
		tb.Fatalf("NewTemplateManager failed: %v", err)
	}
	return tm
}

func TestNewTemplateManager(t *testing.T) {
	tm := setupTestManager(t, nil)

	want := []string{"cv.html", "skills.md"}
	if diff := cmp.Diff(want, tm.GetTemplateNames()); diff != "" {
		t.Errorf("template names mismatch (-want +got):\n%s", diff)
	}
	if got := tm.GetConfig(); got != *DefaultConfig() {
		t.Errorf("nil config should fall back to defaults, got %+v", got)
	}
}

func TestNewTemplateManager_MissingDir(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tm, err := NewTemplateManager(logger, nil, filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("a missing directory should load no templates, got error %v", err)
	}
	if names := tm.GetTemplateNames(); len(names) != 0 {
		t.Errorf("expected no templates, got %v", names)
	}
}

func TestManager_MarkdownDisabled(t *testing.T) {
	config := DefaultConfig()
	config.MarkdownEnabled = false
	tm := setupTestManager(t, config)

	if diff := cmp.Diff([]string{"cv.html"}, tm.GetTemplateNames()); diff != "" {
		t.Errorf("template names mismatch (-want +got):\n%s", diff)
	}
}

func TestManager_Refresh(t *testing.T) {
	tm := setupTestManager(t, nil)
	initialCount := len(tm.GetTemplateNames())

	newTmplPath := filepath.Join(tm.GetTemplateDir(), "short.html")
	if err := os.WriteFile(newTmplPath, []byte(`<h1 value-of="name"></h1>`), 0644); err != nil {
		t.Fatalf("failed to write new template: %v", err)
	}

	if err := tm.Refresh(); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if got := len(tm.GetTemplateNames()); got != initialCount+1 {
		t.Errorf("expected %d templates after refresh, got %d", initialCount+1, got)
	}
}

func TestManager_Execute(t *testing.T) {
	tm := setupTestManager(t, nil)
	data := mustParse(t, testData)

	var buf bytes.Buffer
	if err := tm.Execute(&buf, "cv.html", data); err != nil {
		t.Fatalf("Execute failed for valid template: %v", err)
	}
	for _, want := range []string{"<title>Ada Lovelace</title>", "<li>Engineer</li><li>Lead</li>"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}

	err := tm.Execute(&buf, "nonexistent.html", data)
	if !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}
}

func TestManager_ExecuteMarkdown(t *testing.T) {
	tm := setupTestManager(t, nil)

	var buf bytes.Buffer
	if err := tm.Execute(&buf, "skills.md", mustParse(t, testData)); err != nil {
		t.Fatalf("Execute failed for markdown template: %v", err)
	}
	for _, want := range []string{"<h2>Skills</h2>", "<span>Go, Python</span>"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func TestManager_ExecuteTemplateString(t *testing.T) {
	tm := setupTestManager(t, nil)

	var buf bytes.Buffer
	if err := tm.ExecuteTemplateString(&buf, `<b value-of="name"></b>`, mustParse(t, testData)); err != nil {
		t.Fatalf("ExecuteTemplateString failed: %v", err)
	}
	if got := buf.String(); got != `<b>Ada Lovelace</b>` {
		t.Errorf("unexpected output %q", got)
	}
}

func TestManager_SetConfig(t *testing.T) {
	tm := setupTestManager(t, nil)
	tm.SetConfig(&TemplateConfig{BindAttr: "data-bind", RepeatAttr: "data-each"})

	if got := tm.GetConfig().BindAttr; got != "data-bind" {
		t.Errorf("SetConfig failed to update BindAttr: got %q", got)
	}

	var buf bytes.Buffer
	err := tm.ExecuteTemplateString(&buf, `<b data-bind="name"></b><i value-of="name"></i>`, mustParse(t, testData))
	if err != nil {
		t.Fatalf("ExecuteTemplateString failed: %v", err)
	}
	if got, want := buf.String(), `<b>Ada Lovelace</b><i value-of="name"></i>`; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// BenchmarkExecute measures a full render of the HTML test template.
func BenchmarkExecute(b *testing.B) {
	tm := setupTestManager(b, nil)
	data := mustParse(b, testData)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := tm.Execute(io.Discard, "cv.html", data); err != nil {
			b.Fatal(err)
		}
	}
}
