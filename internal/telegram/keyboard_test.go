package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tube-courier/internal/media"
	"tube-courier/internal/session"
)

func TestParseQualityData(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantSID session.ID
		wantIdx int
		wantOK  bool
	}{
		{"valid", "q:abc:2", "abc", 2, true},
		{"uuid", qualityData("0f8fad5b-d9cb-469f-a165-70867728950e", 0), "0f8fad5b-d9cb-469f-a165-70867728950e", 0, true},
		{"wrong_prefix", "x:abc:2", "", 0, false},
		{"missing_index", "q:abc", "", 0, false},
		{"negative_index", "q:abc:-1", "", 0, false},
		{"non_numeric", "q:abc:two", "", 0, false},
		{"empty_session", "q::1", "", 0, false},
		{"empty", "", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sid, idx, ok := parseQualityData(tt.data)
			if ok != tt.wantOK {
				t.Fatalf("expected ok=%v, got %v", tt.wantOK, ok)
			}
			if sid != tt.wantSID || idx != tt.wantIdx {
				t.Errorf("expected (%q, %d), got (%q, %d)", tt.wantSID, tt.wantIdx, sid, idx)
			}
		})
	}
}

func TestQualityData_fits_callback_limit(t *testing.T) {
	data := qualityData("0f8fad5b-d9cb-469f-a165-70867728950e", 99)
	if len(data) > 64 {
		t.Errorf("expected at most 64 bytes, got %d", len(data))
	}
}

func TestQualityKeyboard(t *testing.T) {
	sess := session.Session{
		ID:        "s1",
		Reference: media.Reference{SourceURL: "https://youtu.be/abc"},
		Options: []media.EncodingOption{
			{ID: "18", Label: "360p"},
			{ID: "22", Label: "720p"},
		},
	}

	kb := qualityKeyboard(sess)
	require.Len(t, kb.InlineKeyboard, 2)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "q:s1:1", *kb.InlineKeyboard[0][1].CallbackData)
	require.NotNil(t, kb.InlineKeyboard[1][0].URL)
	assert.Equal(t, "https://youtu.be/abc", *kb.InlineKeyboard[1][0].URL)

	t.Run("no_link_without_source", func(t *testing.T) {
		sess.Reference.SourceURL = ""
		kb := qualityKeyboard(sess)
		assert.Len(t, kb.InlineKeyboard, 1)
	})
}
