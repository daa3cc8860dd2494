package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/romariotrain/scene-index/internal/mis"
)

func TestSceneTranscript(t *testing.T) {
	segments := []mis.Segment{
		{StartS: 0, EndS: 2, Text: " first "},
		{StartS: 2, EndS: 4, Text: "second"},
		{StartS: 9, EndS: 12, Text: "spans boundary"},
		{StartS: 15, EndS: 16, Text: "late"},
	}

	// сцена [0, 10): segment на границе 9-12 перекрывается — входит
	assert.Equal(t, "first second spans boundary", SceneTranscript(segments, 0, 10))

	// сцена [10, 20): тот же segment входит и сюда — это намеренно
	assert.Equal(t, "spans boundary late", SceneTranscript(segments, 10, 20))

	// касание границы без перекрытия не считается
	assert.Equal(t, "", SceneTranscript(segments, 4, 9))

	// пустой транскрипт — валидный случай
	assert.Equal(t, "", SceneTranscript(nil, 0, 10))
}

func TestSceneTranscript_SkipsBlankSegments(t *testing.T) {
	segments := []mis.Segment{
		{StartS: 0, EndS: 1, Text: "   "},
		{StartS: 1, EndS: 2, Text: "speech"},
	}
	assert.Equal(t, "speech", SceneTranscript(segments, 0, 5))
}
