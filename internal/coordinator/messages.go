package coordinator

import (
	"fmt"
	"html"
	"strings"

	"github.com/dustin/go-humanize"

	"tube-courier/internal/media"
)

const progressBarWidth = 10

// FormatSize renders a byte count, or "unknown size" for zero.
func FormatSize(n int64) string {
	if n <= 0 {
		return "unknown size"
	}
	return humanize.IBytes(uint64(n))
}

// FormatDuration renders seconds as m:ss or h:mm:ss.
func FormatDuration(seconds int) string {
	if seconds <= 0 {
		return "unknown"
	}
	h, m, s := seconds/3600, seconds%3600/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ProgressBar renders percent as a fixed-width bar.
func ProgressBar(percent int) string {
	percent = max(0, min(percent, 100))
	filled := percent * progressBarWidth / 100
	return strings.Repeat("▰", filled) + strings.Repeat("▱", progressBarWidth-filled)
}

// ReferenceSummary is the header shown above the quality keyboard.
func ReferenceSummary(ref media.Reference) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎬 <b>%s</b>\n", html.EscapeString(ref.Title))
	if ref.Uploader != "" {
		fmt.Fprintf(&b, "👤 %s\n", html.EscapeString(ref.Uploader))
	}
	fmt.Fprintf(&b, "⏱️ %s", FormatDuration(ref.DurationSeconds))
	return b.String()
}

// OptionLabel is the keyboard button text for an encoding.
func OptionLabel(opt media.EncodingOption) string {
	if opt.EstimatedSize > 0 {
		return fmt.Sprintf("%s · %s", opt.Label, humanize.IBytes(uint64(opt.EstimatedSize)))
	}
	return opt.Label
}

func progressText(ref media.Reference, opt media.EncodingOption, percent int) string {
	return fmt.Sprintf("⬇️ <b>%s</b> (%s)\n%s %d%%",
		html.EscapeString(ref.Title), html.EscapeString(opt.Label), ProgressBar(percent), percent)
}

func uploadingText(ref media.Reference, size int64) string {
	return fmt.Sprintf("📤 Uploading <b>%s</b> (%s)…", html.EscapeString(ref.Title), FormatSize(size))
}

func deliveredText(ref media.Reference) string {
	return fmt.Sprintf("✅ <b>%s</b> delivered.", html.EscapeString(ref.Title))
}

func expiredText() string {
	return "⌛ This selection expired. Send the link or search again."
}

func captionFor(ref media.Reference, opt media.EncodingOption, size int64) Caption {
	return Caption{
		Title:           ref.Title,
		Performer:       ref.Uploader,
		DurationSeconds: ref.DurationSeconds,
		HTML: fmt.Sprintf("🎬 <b>%s</b>\n%s · %s",
			html.EscapeString(ref.Title), html.EscapeString(opt.Label), FormatSize(size)),
	}
}

// FailureText is the chat message for a failed or rejected operation.
func FailureText(code Code, maxBytes, actual int64) string {
	switch code {
	case CodeNotFound:
		return "❌ Nothing found. Check the link or try other words."
	case CodeUpstream:
		return "❌ The video platform did not answer. Try again later."
	case CodePayloadTooLarge:
		if actual > 0 {
			return fmt.Sprintf("❌ The file is too large (%s). The limit is %s; pick a lower quality.",
				FormatSize(actual), FormatSize(maxBytes))
		}
		return fmt.Sprintf("❌ This quality exceeds the %s limit; pick a lower one.", FormatSize(maxBytes))
	case CodeAlreadyDownloading:
		return "⏳ This video is already being downloaded. Try again in a moment."
	case CodeUnauthorized:
		return "🚫 This menu belongs to someone else."
	case CodeExpired:
		return expiredText()
	case CodeAlreadyProcessed:
		return "ℹ️ This selection was already handled."
	default:
		return "❌ Sending the file failed. Try again later."
	}
}
