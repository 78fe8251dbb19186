package summarizer

import (
	"fmt"
	"strings"
)

// MarkdownFormatter renders a Summary as a Markdown document.
type MarkdownFormatter struct {
	translate func(string) string
	version   string
}

// MarkdownOption configures a MarkdownFormatter.
type MarkdownOption func(*MarkdownFormatter)

// WithTranslator translates headings and labels, e.g. with l10n.T.
func WithTranslator(t func(string) string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.translate = t
	}
}

// WithVersion adds the av1dec version to the footer.
func WithVersion(v string) MarkdownOption {
	return func(f *MarkdownFormatter) {
		f.version = v
	}
}

// NewMarkdownFormatter creates a MarkdownFormatter.
func NewMarkdownFormatter(opts ...MarkdownOption) *MarkdownFormatter {
	f := &MarkdownFormatter{
		translate: func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format implements Formatter.
func (f *MarkdownFormatter) Format(s *Summary) string {
	var b strings.Builder
	t := f.translate

	fmt.Fprintf(&b, "# %s\n\n", t("Decode Summary"))

	fmt.Fprintf(&b, "## %s\n\n", t("Input"))
	f.header(&b)
	f.row(&b, "File", s.Input.Path)
	f.row(&b, "Container", s.Input.Container)
	f.row(&b, "Codec", s.Input.Codec)
	f.row(&b, "Size", fmt.Sprintf("%dx%d", s.Input.Width, s.Input.Height))
	if s.Input.Timescale > 0 {
		f.row(&b, "Timescale", fmt.Sprintf("%d", s.Input.Timescale))
	}
	if s.Input.Units > 0 {
		f.row(&b, "Units", fmt.Sprintf("%d", s.Input.Units))
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Decoder"))
	f.header(&b)
	engine := s.Decoder.Engine
	if s.Decoder.Version != "" {
		engine += " " + s.Decoder.Version
	}
	f.row(&b, "Engine", engine)
	f.row(&b, "Threads", orDefault(s.Decoder.Threads, t("auto")))
	f.row(&b, "Max Frame Delay", orDefault(s.Decoder.MaxFrameDelay, t("auto")))
	f.row(&b, "Film Grain", yesNo(s.Decoder.ApplyGrain, t))
	b.WriteString("\n")

	fmt.Fprintf(&b, "## %s\n\n", t("Result"))
	f.header(&b)
	f.row(&b, "Units Submitted", fmt.Sprintf("%d", s.Result.Units))
	f.row(&b, "Pictures", fmt.Sprintf("%d", s.Result.Pictures))
	f.row(&b, "Rejected Units", fmt.Sprintf("%d", s.Result.Rejected))
	f.row(&b, "Decode Faults", fmt.Sprintf("%d", s.Result.Faults))
	if s.Result.Elapsed > 0 {
		f.row(&b, "Elapsed", fmt.Sprintf("%d ms", s.Result.Elapsed.Milliseconds()))
		f.row(&b, "Throughput", fmt.Sprintf("%.1f fps", s.Result.PicturesPerSecond()))
	}
	if s.Output.Format != "" {
		f.row(&b, "Output", fmt.Sprintf("%s (%s)", s.Output.Path, s.Output.Format))
	}
	b.WriteString("\n")

	b.WriteString("---\n\n")
	footer := fmt.Sprintf("%s %s", t("Generated at"), s.GeneratedAt.Format("2006-01-02 15:04:05"))
	if f.version != "" {
		footer += fmt.Sprintf(" · av1dec %s", f.version)
	}
	b.WriteString(footer + "\n")

	return b.String()
}

func (f *MarkdownFormatter) header(b *strings.Builder) {
	fmt.Fprintf(b, "| %s | %s |\n|---|---|\n", f.translate("Item"), f.translate("Value"))
}

func (f *MarkdownFormatter) row(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "| %s | %s |\n", f.translate(label), value)
}

func orDefault(v int, def string) string {
	if v == 0 {
		return def
	}
	return fmt.Sprintf("%d", v)
}

func yesNo(v bool, t func(string) string) string {
	if v {
		return t("Yes")
	}
	return t("No")
}
