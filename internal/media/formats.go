package media

import (
	"fmt"
	"sort"
)

// rawFormat is the subset of a yt-dlp format entry we read.
type rawFormat struct {
	FormatID       string  `json:"format_id"`
	Ext            string  `json:"ext"`
	VCodec         string  `json:"vcodec"`
	ACodec         string  `json:"acodec"`
	Height         int     `json:"height"`
	ABR            float64 `json:"abr"`
	TBR            float64 `json:"tbr"`
	Filesize       int64   `json:"filesize"`
	FilesizeApprox int64   `json:"filesize_approx"`
}

func (f rawFormat) hasVideo() bool { return f.VCodec != "" && f.VCodec != "none" }
func (f rawFormat) hasAudio() bool { return f.ACodec != "" && f.ACodec != "none" }

// estimatedSize prefers the exact size, then the extractor's estimate, then
// bitrate times duration.
func (f rawFormat) estimatedSize(durationSeconds int) int64 {
	switch {
	case f.Filesize > 0:
		return f.Filesize
	case f.FilesizeApprox > 0:
		return f.FilesizeApprox
	case f.TBR > 0 && durationSeconds > 0:
		return int64(f.TBR * 1000 / 8 * float64(durationSeconds))
	}
	return 0
}

// selectEncodings filters formats for mode, deduplicates by label and sorts
// ascending. yt-dlp lists formats worst to best, so for duplicate labels the
// last entry wins.
func selectEncodings(formats []rawFormat, mode Mode, maxHeight, durationSeconds int) []EncodingOption {
	byLabel := make(map[string]EncodingOption)
	for _, f := range formats {
		if f.FormatID == "" {
			continue
		}
		opt, ok := toOption(f, mode, maxHeight)
		if !ok {
			continue
		}
		opt.EstimatedSize = f.estimatedSize(durationSeconds)
		byLabel[opt.Label] = opt
	}

	out := make([]EncodingOption, 0, len(byLabel))
	for _, opt := range byLabel {
		out = append(out, opt)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Height != out[j].Height {
			return out[i].Height < out[j].Height
		}
		return out[i].AudioBitrate < out[j].AudioBitrate
	})
	return out
}

func toOption(f rawFormat, mode Mode, maxHeight int) (EncodingOption, bool) {
	container := f.Ext
	switch mode {
	case ModeAudio:
		if f.hasVideo() || !f.hasAudio() || f.ABR <= 0 {
			return EncodingOption{}, false
		}
		if container == "" {
			container = "m4a"
		}
		abr := int(f.ABR + 0.5)
		return EncodingOption{
			ID:           f.FormatID,
			Label:        fmt.Sprintf("%dk", abr),
			Container:    container,
			AudioBitrate: abr,
		}, true
	default:
		if !f.hasVideo() || !f.hasAudio() {
			return EncodingOption{}, false
		}
		if f.Height <= 0 || (maxHeight > 0 && f.Height > maxHeight) {
			return EncodingOption{}, false
		}
		if container == "" {
			container = "mp4"
		}
		return EncodingOption{
			ID:        f.FormatID,
			Label:     fmt.Sprintf("%dp", f.Height),
			Container: container,
			Height:    f.Height,
		}, true
	}
}
