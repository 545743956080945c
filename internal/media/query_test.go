package media

import "testing"

func TestIsYouTubeURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", true},
		{"https://youtube.com/shorts/abc123", true},
		{"https://www.youtube.com/embed/abc123", true},
		{"https://www.youtube.com/channel/xyz", false},
		{"https://vimeo.com/123", false},
		{"amr diab", false},
	}
	for _, tt := range tests {
		if got := IsYouTubeURL(tt.in); got != tt.want {
			t.Errorf("IsYouTubeURL(%q) = %v, expected %v", tt.in, got, tt.want)
		}
	}
}

func TestExtractURL(t *testing.T) {
	got := ExtractURL("look at this https://youtu.be/abc please")
	if got != "https://youtu.be/abc" {
		t.Errorf("expected youtu.be link, got %q", got)
	}
	if got := ExtractURL("no links here"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestResolveTarget(t *testing.T) {
	if got := resolveTarget("  https://youtu.be/abc "); got != "https://youtu.be/abc" {
		t.Errorf("url should pass through, got %q", got)
	}
	if got := resolveTarget("lofi beats"); got != "ytsearch1:lofi beats" {
		t.Errorf("expected search target, got %q", got)
	}
	if got := resolveTarget("ftp://example.com/x"); got != "ytsearch1:ftp://example.com/x" {
		t.Errorf("non-http scheme should be searched, got %q", got)
	}
}
