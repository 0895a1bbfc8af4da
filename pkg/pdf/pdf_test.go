package pdf

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestOptionsForPaper(t *testing.T) {
	tests := []struct {
		name      string
		wantWidth float64
		wantErr   bool
	}{
		{name: "", wantWidth: 8.27},
		{name: "A4", wantWidth: 8.27},
		{name: " letter ", wantWidth: 8.5},
		{name: "legal", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts, err := OptionsForPaper(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("OptionsForPaper(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if !tt.wantErr && opts.PaperWidth != tt.wantWidth {
				t.Errorf("PaperWidth = %g, want %g", opts.PaperWidth, tt.wantWidth)
			}
		})
	}
}

func TestOptions_Validate(t *testing.T) {
	if err := DefaultOptions().Validate(); err != nil {
		t.Errorf("default options should be valid: %v", err)
	}
	if err := LetterOptions().Validate(); err != nil {
		t.Errorf("letter options should be valid: %v", err)
	}

	bad := map[string]func(*Options){
		"zero width":       func(o *Options) { o.PaperWidth = 0 },
		"negative margin":  func(o *Options) { o.MarginTop = -1 },
		"margins too big":  func(o *Options) { o.MarginLeft, o.MarginRight = 5, 5 },
		"negative timeout": func(o *Options) { o.TimeoutSec = -1 },
	}
	for name, mutate := range bad {
		t.Run(name, func(t *testing.T) {
			o := DefaultOptions()
			mutate(&o)
			if err := o.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestNewChromeConverter_InvalidOptions(t *testing.T) {
	o := DefaultOptions()
	o.PaperHeight = -1
	if _, err := NewChromeConverter(o); !errors.Is(err, ErrConversion) {
		t.Errorf("expected ErrConversion, got %v", err)
	}
}

func TestChromeConverter_MissingBrowser(t *testing.T) {
	o := DefaultOptions()
	o.ExecPath = filepath.Join(t.TempDir(), "no-such-browser")
	o.TimeoutSec = 10

	c, err := NewChromeConverter(o)
	if err != nil {
		t.Fatalf("NewChromeConverter failed: %v", err)
	}
	if _, err = c.Convert(context.Background(), "<p>hi</p>"); !errors.Is(err, ErrConversion) {
		t.Errorf("expected ErrConversion, got %v", err)
	}
}

func TestConverterFunc(t *testing.T) {
	var c Converter = ConverterFunc(func(_ context.Context, html string) ([]byte, error) {
		return []byte("%PDF-" + html), nil
	})
	out, err := c.Convert(context.Background(), "x")
	if err != nil || string(out) != "%PDF-x" {
		t.Errorf("Convert() = %q, %v", out, err)
	}
}
