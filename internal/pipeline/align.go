package pipeline

import (
	"strings"

	"github.com/romariotrain/scene-index/internal/mis"
)

// SceneTranscript собирает транскрипт сцены [startS, endS): берутся все
// сегменты с s.start < end && s.end > start, тексты конкатенируются в
// порядке времени через пробел. Сегмент, лежащий на границе, попадает в
// обе сцены — так и задумано.
func SceneTranscript(segments []mis.Segment, startS, endS float64) string {
	var parts []string
	for _, s := range segments {
		if s.StartS < endS && s.EndS > startS {
			if text := strings.TrimSpace(s.Text); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, " ")
}
