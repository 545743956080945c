package coordinator

import (
	"strings"
	"testing"

	"tube-courier/internal/media"
)

func TestFormatDuration(t *testing.T) {
	tests := map[int]string{0: "unknown", 5: "0:05", 95: "1:35", 3725: "1:02:05"}
	for in, want := range tests {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%d) = %q, expected %q", in, got, want)
		}
	}
}

func TestProgressBar(t *testing.T) {
	if got := ProgressBar(40); got != "▰▰▰▰▱▱▱▱▱▱" {
		t.Errorf("unexpected bar %q", got)
	}
	if got := ProgressBar(150); strings.Contains(got, "▱") {
		t.Errorf("expected full bar, got %q", got)
	}
	if got := ProgressBar(-3); strings.Contains(got, "▰") {
		t.Errorf("expected empty bar, got %q", got)
	}
}

func TestOptionLabel(t *testing.T) {
	if got := OptionLabel(media.EncodingOption{Label: "720p", EstimatedSize: 12 << 20}); got != "720p · 12 MiB" {
		t.Errorf("unexpected label %q", got)
	}
	if got := OptionLabel(media.EncodingOption{Label: "128k"}); got != "128k" {
		t.Errorf("unexpected label %q", got)
	}
}

func TestReferenceSummary_escapes_html(t *testing.T) {
	got := ReferenceSummary(media.Reference{Title: "A <b>&</b>", Uploader: "x<y", DurationSeconds: 61})
	if strings.Contains(got, "<b>&</b>") || !strings.Contains(got, "A &lt;b&gt;&amp;&lt;/b&gt;") {
		t.Errorf("title not escaped: %s", got)
	}
	if !strings.Contains(got, "1:01") {
		t.Errorf("missing duration: %s", got)
	}
}

func TestFailureText_payload(t *testing.T) {
	got := FailureText(CodePayloadTooLarge, 50<<20, 60<<20)
	if !strings.Contains(got, "60 MiB") || !strings.Contains(got, "50 MiB") {
		t.Errorf("expected both sizes, got %q", got)
	}
}
