// Package pdf turns rendered HTML into PDF documents using a headless
// Chromium driven through chromedp.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ErrConversion wraps every failure to produce a PDF.
var ErrConversion = errors.New("pdf conversion failed")

// Converter turns an HTML document into PDF bytes.
type Converter interface {
	Convert(ctx context.Context, html string) ([]byte, error)
}

// ConverterFunc adapts a function to the Converter interface.
type ConverterFunc func(ctx context.Context, html string) ([]byte, error)

// Convert calls f(ctx, html).
func (f ConverterFunc) Convert(ctx context.Context, html string) ([]byte, error) {
	return f(ctx, html)
}

// ChromeConverter prints HTML to PDF with a headless browser. Each call starts
// and stops its own browser, so a ChromeConverter may be shared freely.
type ChromeConverter struct {
	opts   Options
	logger *slog.Logger
}

// NewChromeConverter creates a ChromeConverter after validating opts.
func NewChromeConverter(opts Options) (*ChromeConverter, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversion, err)
	}
	return &ChromeConverter{
		opts:   opts,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// SetLogger sets the logger for the ChromeConverter. By default, all logs are discarded.
// Browser protocol messages are logged at debug level.
func (c *ChromeConverter) SetLogger(logger *slog.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Options returns the layout the converter prints with.
func (c *ChromeConverter) Options() Options {
	return c.opts
}

func (c *ChromeConverter) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Headless,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
	)
	if c.opts.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if c.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
	}
	return opts
}

func (c *ChromeConverter) printer() *page.PrintToPDFParams {
	p := page.PrintToPDF().
		WithPrintBackground(c.opts.PrintBackground).
		WithPaperWidth(c.opts.PaperWidth).
		WithPaperHeight(c.opts.PaperHeight).
		WithMarginTop(c.opts.MarginTop).
		WithMarginBottom(c.opts.MarginBottom).
		WithMarginLeft(c.opts.MarginLeft).
		WithMarginRight(c.opts.MarginRight).
		WithLandscape(c.opts.Landscape).
		WithDisplayHeaderFooter(c.opts.DisplayHeaderFooter).
		WithPreferCSSPageSize(c.opts.PreferCSSPageSize)
	if c.opts.HeaderTemplate != "" {
		p = p.WithHeaderTemplate(c.opts.HeaderTemplate)
	}
	if c.opts.FooterTemplate != "" {
		p = p.WithFooterTemplate(c.opts.FooterTemplate)
	}
	return p
}

// Convert loads html into a blank page and prints it.
func (c *ChromeConverter) Convert(ctx context.Context, html string) ([]byte, error) {
	if c.opts.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.opts.TimeoutSec)*time.Second)
		defer cancel()
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		c.logger.Debug(fmt.Sprintf(format, args...))
	}))
	defer cancelTask()

	start := time.Now()
	var buf []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = c.printer().Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConversion, err)
	}

	c.logger.Debug("Converted HTML to PDF", "bytes", len(buf), "duration", time.Since(start))
	return buf, nil
}
