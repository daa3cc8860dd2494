package objstore

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "holiday.mp4", want: "holiday.mp4"},
		{name: "path traversal", in: "../../etc/passwd", want: "passwd"},
		{name: "windows path", in: `C:\videos\clip.avi`, want: "clip.avi"},
		{name: "control chars", in: "cl\x00ip\x1f.mov", want: "clip.mov"},
		{name: "dotfile", in: ".hidden", want: "hidden"},
		{name: "empty", in: "", want: "upload"},
		{name: "only separators", in: "///", want: "upload"},
		{name: "unicode kept", in: "отпуск.mkv", want: "отпуск.mkv"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeFilename(tc.in))
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	long := strings.Repeat("я", 300) + ".mp4"
	got := SanitizeFilename(long)
	require.LessOrEqual(t, len(got), 255)
	// результат остаётся валидным utf-8
	require.True(t, strings.HasPrefix(got, "я"))
}

func TestKeys(t *testing.T) {
	userID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	videoID := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	sceneID := uuid.MustParse("33333333-3333-3333-3333-333333333333")

	assert.Equal(t,
		"11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222/a.mp4",
		UploadKey(userID, videoID, "a.mp4"))
	assert.Equal(t,
		"11111111-1111-1111-1111-111111111111/22222222-2222-2222-2222-222222222222/33333333-3333-3333-3333-333333333333.json",
		SidecarKey(userID, videoID, sceneID))
	assert.Equal(t,
		"22222222-2222-2222-2222-222222222222/audio.wav",
		TmpKey(videoID, "audio.wav"))
}
