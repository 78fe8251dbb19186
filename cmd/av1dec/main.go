// Package main provides the CLI entry point for av1dec.
package main

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/ideamans/go-l10n"

	"github.com/user/av1session/pkg/adapters/av1encoder"
	"github.com/user/av1session/pkg/adapters/codecdetect"
	"github.com/user/av1session/pkg/adapters/dav1d"
	"github.com/user/av1session/pkg/adapters/ggrenderer"
	"github.com/user/av1session/pkg/adapters/libaom"
	"github.com/user/av1session/pkg/adapters/logger"
	"github.com/user/av1session/pkg/adapters/nullsink"
	"github.com/user/av1session/pkg/adapters/osfilesystem"
	"github.com/user/av1session/pkg/adapters/pngsink"
	"github.com/user/av1session/pkg/adapters/sheetsink"
	"github.com/user/av1session/pkg/adapters/y4msink"
	"github.com/user/av1session/pkg/config"
	"github.com/user/av1session/pkg/player"
	"github.com/user/av1session/pkg/ports"
	"github.com/user/av1session/pkg/session"
	"github.com/user/av1session/pkg/summarizer"
)

// CLI defines the command-line interface with subcommands.
type CLI struct {
	Decode  DecodeCmd  `cmd:"" help:"Decode an AV1 stream to raw video or images."`
	Probe   ProbeCmd   `cmd:"" help:"Show stream information."`
	Synth   SynthCmd   `cmd:"" help:"Encode a synthetic AV1 test stream."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// DecodeCmd defines the decode subcommand.
type DecodeCmd struct {
	// Required arguments
	Input  string `arg:"" help:"Input IVF or MP4 file."`
	Output string `short:"o" help:"Output file, directory for png, or - for stdout."`

	// Configuration file, overridden by the flags below
	Config string `short:"c" type:"existingfile" help:"YAML configuration file."`

	// Engine options
	Engine         string `short:"e" help:"Decoding engine (dav1d or libaom)."`
	Threads        *int   `short:"t" help:"Decoder threads (0 = engine default)."`
	MaxFrameDelay  *int   `help:"Maximum frame delay (0 = engine default)."`
	NoGrain        bool   `help:"Disable film grain synthesis."`
	OperatingPoint *int   `help:"Operating point (0-31)."`
	AllLayers      bool   `help:"Output all spatial layers."`

	// Playback options
	MaxPictures  *int `short:"n" help:"Stop after this many pictures."`
	StopOnError  bool `help:"Abort on the first rejected unit or decode fault."`
	NoFlushFault bool `name:"no-flush-on-fault" help:"Keep decoder state after a decode fault."`

	// Output options
	Format  string `short:"f" help:"Output format (y4m, png, sheet, null)."`
	Width   *int   `short:"W" help:"Scale png output to this width."`
	Every   *int   `help:"Contact sheet: keep every Nth picture."`
	Columns *int   `help:"Contact sheet: thumbnails per row."`

	// Report options
	Summary string `short:"s" help:"Write a Markdown decode summary to this path."`

	// Logging options
	LogLevel string `short:"l" help:"Log level (debug, info, warn, error)."`
	Quiet    bool   `short:"Q" help:"Suppress all log output."`
}

// ProbeCmd defines the probe subcommand.
type ProbeCmd struct {
	Input string `arg:"" help:"Input IVF or MP4 file."`
}

// SynthCmd defines the synth subcommand.
type SynthCmd struct {
	Output  string `arg:"" help:"Output file (.ivf or .mp4)."`
	Frames  int    `short:"n" default:"30" help:"Number of frames."`
	Width   int    `short:"W" default:"320" help:"Frame width."`
	Height  int    `short:"H" default:"180" help:"Frame height."`
	FPS     int    `default:"30" help:"Frame rate."`
	Quality int    `short:"q" default:"30" help:"Quantizer (0-63, lower is better)."`
	Font    string `help:"TrueType font for the frame counter."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

var version = "dev"

func main() {
	cli := CLI{}

	ctx := kong.Parse(&cli,
		kong.Name("av1dec"),
		kong.Description(l10n.T("Decode AV1 streams with dav1d or libaom.")),
		kong.UsageOnError(),
	)

	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}

// newEngine returns the engine registered under name.
func newEngine(name string) (ports.Engine, error) {
	switch name {
	case "dav1d":
		return dav1d.New(), nil
	case "libaom":
		return libaom.New(), nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}

// openSession converts the construction panic of session.New into an error.
func openSession(engine ports.Engine, cfg config.Config, log ports.Logger) (s *session.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			openErr, ok := r.(*session.OpenError)
			if !ok {
				panic(r)
			}
			err = openErr
		}
	}()
	return session.New(engine, session.Options{Logger: log, Configure: cfg.ApplyTo}), nil
}

// Run executes the decode command.
func (cmd *DecodeCmd) Run() error {
	cfg, err := cmd.buildConfig()
	if err != nil {
		return err
	}

	// Create logger
	var log ports.Logger
	if cmd.Quiet {
		log = logger.NewNoop()
	} else {
		log = logger.NewConsole(ports.ParseLogLevel(cfg.LogLevel))
	}

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			log.Warn(l10n.T("Interrupted, shutting down..."))
			cancel()
		case <-ctx.Done():
		}
	}()

	// Create adapters
	fs := osfilesystem.New()
	renderer := ggrenderer.New()

	source, err := codecdetect.Open(fs, cmd.Input)
	if err != nil {
		return fmt.Errorf("open %s: %w", cmd.Input, err)
	}
	defer source.Close()

	engine, err := newEngine(cfg.Engine)
	if err != nil {
		return err
	}
	sess, err := openSession(engine, cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	output := cmd.outputPath(cfg.Output.Format)
	sink, err := newSink(cfg, output, fs, renderer, source.Info())
	if err != nil {
		return err
	}

	started := time.Now()
	result, err := player.New(sess, source, sink, log).Run(ctx, cfg.PlayerConfig(cmd.Input))
	if closeErr := sink.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close output: %w", closeErr)
	}
	if err != nil {
		return err
	}

	if result.Rejected > 0 || result.Faults > 0 {
		log.Warn(l10n.F("%d units rejected, %d decode faults", result.Rejected, result.Faults))
	}
	if cfg.Output.Format != "null" {
		log.Info(l10n.F("Output saved to %s", output))
	}

	if cmd.Summary != "" {
		settings := engine.DefaultSettings()
		cfg.ApplyTo(&settings)
		summary := summarizer.NewBuilder().
			WithInput(cmd.Input, source.Info()).
			WithDecoder(engine.Name(), engineVersion(engine), settings).
			WithResult(result, time.Since(started)).
			WithOutput(cfg.Output.Format, output).
			Build()
		formatter := summarizer.NewMarkdownFormatter(summarizer.WithTranslator(l10n.T), summarizer.WithVersion(version))
		if err := summarizer.NewWriter(formatter, fs).Write(cmd.Summary, summary); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
		log.Info(l10n.F("Summary saved to %s", cmd.Summary))
	}
	return nil
}

// engineVersion returns the library version of engines that report one.
func engineVersion(engine ports.Engine) string {
	if v, ok := engine.(interface{ Version() string }); ok {
		return v.Version()
	}
	return ""
}

// outputPath picks a default output next to the input when none was given.
func (cmd *DecodeCmd) outputPath(format string) string {
	if cmd.Output != "" {
		return cmd.Output
	}
	base := strings.TrimSuffix(cmd.Input, filepath.Ext(cmd.Input))
	switch format {
	case "png":
		return base + "-frames"
	case "sheet":
		return base + "-sheet.png"
	default:
		return base + ".y4m"
	}
}

// buildConfig loads the configuration file and applies CLI overrides.
func (cmd *DecodeCmd) buildConfig() (config.Config, error) {
	cfg := config.Defaults()
	if cmd.Config != "" {
		var err error
		if cfg, err = config.LoadFromFile(cmd.Config); err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
	}

	// Apply overrides
	if cmd.Engine != "" {
		cfg.Engine = cmd.Engine
	}
	if cmd.Threads != nil {
		cfg.Decoder.Threads = *cmd.Threads
	}
	if cmd.MaxFrameDelay != nil {
		cfg.Decoder.MaxFrameDelay = *cmd.MaxFrameDelay
	}
	if cmd.NoGrain {
		no := false
		cfg.Decoder.ApplyGrain = &no
	}
	if cmd.OperatingPoint != nil {
		cfg.Decoder.OperatingPoint = *cmd.OperatingPoint
	}
	if cmd.AllLayers {
		yes := true
		cfg.Decoder.AllLayers = &yes
	}
	if cmd.MaxPictures != nil {
		cfg.Playback.MaxPictures = *cmd.MaxPictures
	}
	if cmd.StopOnError {
		cfg.Playback.StopOnError = true
	}
	if cmd.NoFlushFault {
		cfg.Playback.FlushOnFault = false
	}
	if cmd.Format != "" {
		cfg.Output.Format = cmd.Format
	}
	if cmd.Width != nil {
		cfg.Output.Width = *cmd.Width
	}
	if cmd.Every != nil {
		cfg.Output.Sheet.Every = *cmd.Every
	}
	if cmd.Columns != nil {
		cfg.Output.Sheet.Columns = *cmd.Columns
	}
	if cmd.LogLevel != "" {
		cfg.LogLevel = cmd.LogLevel
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newSink creates the picture sink for the configured output format.
func newSink(cfg config.Config, output string, fs ports.FileSystem, renderer ports.Renderer, info ports.StreamInfo) (ports.PictureSink, error) {
	switch cfg.Output.Format {
	case "png":
		return pngsink.New(output, fs, renderer, pngsink.Options{Width: cfg.Output.Width}), nil

	case "sheet":
		bg, _ := config.ParseColor(cfg.Output.Sheet.Background)
		return sheetsink.New(output, fs, renderer, sheetsink.Options{
			Every:      cfg.Output.Sheet.Every,
			Columns:    cfg.Output.Sheet.Columns,
			ThumbWidth: cfg.Output.Sheet.ThumbWidth,
			Timescale:  info.Timescale,
			FontPath:   cfg.Output.Sheet.FontPath,
			Background: bg,
		}), nil

	case "null":
		return nullsink.New(), nil

	default:
		w, err := fs.Create(output)
		if err != nil {
			return nil, fmt.Errorf("create output: %w", err)
		}
		return y4msink.New(w, y4msink.Options{
			FrameRateNum: cfg.Output.FrameRateNum,
			FrameRateDen: cfg.Output.FrameRateDen,
		}), nil
	}
}

// Run executes the probe command.
func (cmd *ProbeCmd) Run() error {
	fs := osfilesystem.New()

	f, err := fs.Open(cmd.Input)
	if err != nil {
		return err
	}
	container, codec, err := codecdetect.Detect(f)
	f.Close()
	if err != nil {
		return err
	}
	fmt.Println(l10n.F("Container: %s", container))
	fmt.Println(l10n.F("Codec: %s", codec))
	if codec != codecdetect.CodecAV1 {
		return nil
	}

	source, err := codecdetect.Open(fs, cmd.Input)
	if err != nil {
		return err
	}
	defer source.Close()

	info := source.Info()
	fmt.Println(l10n.F("Size: %dx%d", info.Width, info.Height))
	fmt.Println(l10n.F("Timescale: %d", info.Timescale))
	if info.Units > 0 {
		fmt.Println(l10n.F("Units: %d", info.Units))
	}
	if len(info.ConfigOBUs) > 0 {
		fmt.Println(l10n.F("Config OBUs: %d bytes", len(info.ConfigOBUs)))
	}
	return nil
}

// Run executes the synth command.
func (cmd *SynthCmd) Run() error {
	opts := av1encoder.Options{
		Width:   cmd.Width,
		Height:  cmd.Height,
		FPS:     cmd.FPS,
		Quality: cmd.Quality,
	}
	enc, err := av1encoder.New(opts)
	if err != nil {
		return err
	}
	defer enc.Close()

	renderer := ggrenderer.New()
	for i := 0; i < cmd.Frames; i++ {
		if err := enc.Encode(cmd.render(renderer, i)); err != nil {
			return fmt.Errorf("encode frame %d: %w", i, err)
		}
	}
	packets, err := enc.Finish()
	if err != nil {
		return err
	}

	fs := osfilesystem.New()
	w, err := fs.Create(cmd.Output)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(cmd.Output), ".mp4") {
		err = av1encoder.WriteMP4(w, opts, packets)
	} else {
		err = av1encoder.WriteIVF(w, opts, packets)
	}
	if closeErr := w.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	fmt.Println(l10n.F("Wrote %d frames to %s", len(packets), cmd.Output))
	return nil
}

// render draws color bars that shift with the frame index, plus a counter.
func (cmd *SynthCmd) render(renderer ports.Renderer, index int) image.Image {
	canvas := renderer.CreateCanvas(cmd.Width, cmd.Height, color.Black)

	bars := len(av1encoder.Palette)
	barWidth := (cmd.Width + bars - 1) / bars
	for b := 0; b < bars; b++ {
		c := av1encoder.Palette[(b+index)%bars]
		canvas.DrawRect(b*barWidth, 0, barWidth, cmd.Height*3/4, c)
	}

	canvas.DrawText(fmt.Sprintf("%d", index), cmd.Width/2, cmd.Height*7/8, ports.TextStyle{
		FontSize: float64(cmd.Height) / 8,
		FontPath: cmd.Font,
		Color:    color.White,
		Align:    ports.AlignCenter,
	})
	return canvas.ToImage()
}

// Run executes the version command.
func (cmd *VersionCmd) Run() error {
	fmt.Println(l10n.F("av1dec version %s", version))
	for _, name := range config.Engines {
		engine, err := newEngine(name)
		if err != nil {
			return err
		}
		fmt.Printf("  %s %s\n", name, engineVersion(engine))
	}
	return nil
}
