package summarizer

import (
	"strings"
	"testing"
	"time"
)

func sampleSummary() *Summary {
	return &Summary{
		GeneratedAt: time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		Input: InputInfo{
			Path:      "clips/test.mp4",
			Container: "mp4",
			Codec:     "av1",
			Width:     640,
			Height:    360,
			Timescale: 30000,
			Units:     90,
		},
		Decoder: DecoderInfo{
			Engine:     "dav1d",
			Version:    "1.4.0",
			Threads:    4,
			ApplyGrain: true,
		},
		Result: ResultInfo{
			Units:    90,
			Pictures: 90,
			Elapsed:  1500 * time.Millisecond,
		},
		Output: OutputInfo{Format: "y4m", Path: "out.y4m"},
	}
}

func TestMarkdownFormatter_Format_Basic(t *testing.T) {
	formatter := NewMarkdownFormatter()

	result := formatter.Format(sampleSummary())

	checks := []string{
		"# Decode Summary",
		"clips/test.mp4",
		"| Size | 640x360 |",
		"| Timescale | 30000 |",
		"dav1d 1.4.0",
		"| Threads | 4 |",
		"| Max Frame Delay | auto |",
		"| Film Grain | Yes |",
		"| Pictures | 90 |",
		"1500 ms",
		"60.0 fps",
		"out.y4m (y4m)",
		"2024-01-15 10:30:00",
	}

	for _, check := range checks {
		if !strings.Contains(result, check) {
			t.Errorf("expected output to contain %q", check)
		}
	}
}

func TestMarkdownFormatter_OmitsUnknowns(t *testing.T) {
	formatter := NewMarkdownFormatter()

	summary := sampleSummary()
	summary.Input.Units = 0
	summary.Result.Elapsed = 0
	summary.Output = OutputInfo{}

	result := formatter.Format(summary)

	for _, absent := range []string{"| Units |", "Throughput", "| Output |"} {
		if strings.Contains(result, absent) {
			t.Errorf("output should NOT contain %q", absent)
		}
	}
}

func TestMarkdownFormatter_WithTranslator(t *testing.T) {
	translator := func(key string) string {
		translations := map[string]string{
			"Decode Summary": "デコードサマリー",
			"Engine":         "エンジン",
			"Yes":            "はい",
		}
		if v, ok := translations[key]; ok {
			return v
		}
		return key
	}

	formatter := NewMarkdownFormatter(WithTranslator(translator))
	result := formatter.Format(sampleSummary())

	for _, want := range []string{"デコードサマリー", "| エンジン |", "| はい |"} {
		if !strings.Contains(result, want) {
			t.Errorf("expected translated %q", want)
		}
	}
}

func TestMarkdownFormatter_WithVersion(t *testing.T) {
	formatter := NewMarkdownFormatter(WithVersion("v1.2.0"))

	result := formatter.Format(sampleSummary())

	if !strings.Contains(result, "av1dec v1.2.0") {
		t.Error("expected output to contain version 'v1.2.0'")
	}
}

func TestFormatFunc(t *testing.T) {
	var f Formatter = FormatFunc(func(s *Summary) string { return s.Input.Codec })
	if got := f.Format(sampleSummary()); got != "av1" {
		t.Errorf("expected av1, got %q", got)
	}
}
