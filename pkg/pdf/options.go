package pdf

import (
	"fmt"
	"strings"
)

// Options controls page layout and the browser used for conversion.
// Dimensions are in inches.
type Options struct {
	PaperWidth  float64 `json:"paper_width"`
	PaperHeight float64 `json:"paper_height"`

	MarginTop    float64 `json:"margin_top"`
	MarginBottom float64 `json:"margin_bottom"`
	MarginLeft   float64 `json:"margin_left"`
	MarginRight  float64 `json:"margin_right"`

	PrintBackground     bool   `json:"print_background"`
	Landscape           bool   `json:"landscape"`
	DisplayHeaderFooter bool   `json:"display_header_footer"`
	PreferCSSPageSize   bool   `json:"prefer_css_page_size"`
	HeaderTemplate      string `json:"header_template,omitempty"`
	FooterTemplate      string `json:"footer_template,omitempty"`

	// ExecPath overrides the browser binary. Empty means chromedp's lookup.
	ExecPath string `json:"exec_path,omitempty"`
	// NoSandbox disables the browser sandbox, needed when running as root in containers.
	NoSandbox bool `json:"no_sandbox"`
	// TimeoutSec bounds a single conversion. Zero means no limit beyond the caller's context.
	TimeoutSec int `json:"timeout_sec"`
}

// DefaultOptions returns A4 paper with 10mm margins and backgrounds printed.
func DefaultOptions() Options {
	return Options{
		PaperWidth:      8.27,
		PaperHeight:     11.69,
		MarginTop:       0.39,
		MarginBottom:    0.39,
		MarginLeft:      0.39,
		MarginRight:     0.39,
		PrintBackground: true,
		NoSandbox:       true,
		TimeoutSec:      60,
	}
}

// LetterOptions returns DefaultOptions on US Letter paper.
func LetterOptions() Options {
	o := DefaultOptions()
	o.PaperWidth = 8.5
	o.PaperHeight = 11
	return o
}

// OptionsForPaper returns the preset for a paper name, "a4" or "letter".
func OptionsForPaper(name string) (Options, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "a4":
		return DefaultOptions(), nil
	case "letter":
		return LetterOptions(), nil
	}
	return Options{}, fmt.Errorf("unknown paper size %q", name)
}

// Validate reports nonsensical layouts before a browser is started.
func (o Options) Validate() error {
	if o.PaperWidth <= 0 || o.PaperHeight <= 0 {
		return fmt.Errorf("paper size must be positive, got %gx%g", o.PaperWidth, o.PaperHeight)
	}
	for _, m := range []float64{o.MarginTop, o.MarginBottom, o.MarginLeft, o.MarginRight} {
		if m < 0 {
			return fmt.Errorf("margins must not be negative, got %g", m)
		}
	}
	if o.MarginLeft+o.MarginRight >= o.PaperWidth || o.MarginTop+o.MarginBottom >= o.PaperHeight {
		return fmt.Errorf("margins leave no printable area")
	}
	if o.TimeoutSec < 0 {
		return fmt.Errorf("timeout must not be negative, got %d", o.TimeoutSec)
	}
	return nil
}
