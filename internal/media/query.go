package media

import (
	"net/url"
	"regexp"
	"strings"
)

var youtubeURL = regexp.MustCompile(`(?i)(youtube\.com/watch\?v=|youtu\.be/|youtube\.com/shorts/|youtube\.com/embed/)`)

// IsYouTubeURL reports whether s contains a watch, short, embed or youtu.be link.
func IsYouTubeURL(s string) bool {
	return youtubeURL.MatchString(s)
}

// ExtractURL returns the first YouTube link found in text, or "".
func ExtractURL(text string) string {
	for _, field := range strings.Fields(text) {
		if IsYouTubeURL(field) {
			return field
		}
	}
	return ""
}

// resolveTarget turns a user reference into a yt-dlp target. Absolute http(s)
// URLs are passed through; anything else becomes a single-hit search.
func resolveTarget(query string) string {
	q := strings.TrimSpace(query)
	if u, err := url.Parse(q); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return q
	}
	return "ytsearch1:" + q
}
