package templating

const (
	// DefaultBindAttr is the attribute that binds a single value into an element.
	DefaultBindAttr = "value-of"
	// DefaultRepeatAttr is the attribute that repeats an element once per collection item.
	DefaultRepeatAttr = "repeat-for"
)

// TemplateConfig holds all configuration options for the templating engine.
type TemplateConfig struct {
	// BindAttr names the single-value binding attribute.
	BindAttr string

	// RepeatAttr names the collection repetition attribute.
	RepeatAttr string

	// MarkdownEnabled makes the manager load *.md templates, converting them to
	// HTML before parsing. Raw HTML inside the Markdown is kept, so directives
	// can be used there.
	MarkdownEnabled bool
}

// DefaultConfig returns a TemplateConfig using the standard directive names.
func DefaultConfig() *TemplateConfig {
	return &TemplateConfig{
		BindAttr:        DefaultBindAttr,
		RepeatAttr:      DefaultRepeatAttr,
		MarkdownEnabled: true,
	}
}

// withDefaults fills blank attribute names so a partially written config file
// still yields a working renderer.
func (c TemplateConfig) withDefaults() TemplateConfig {
	if c.BindAttr == "" {
		c.BindAttr = DefaultBindAttr
	}
	if c.RepeatAttr == "" {
		c.RepeatAttr = DefaultRepeatAttr
	}
	return c
}
