package objstore

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UploadKey строит ключ оригинала в бакете uploads: {user_id}/{video_id}/{filename}.
func UploadKey(userID, videoID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/%s/%s", userID, videoID, SanitizeFilename(filename))
}

// SidecarKey — ключ в бакете sidecars: {user_id}/{video_id}/{scene_id}.json.
func SidecarKey(userID, videoID, sceneID uuid.UUID) string {
	return fmt.Sprintf("%s/%s/%s.json", userID, videoID, sceneID)
}

// TmpKey — ключ в бакете tmp: {video_id}/...; содержимое может быть собрано GC в любой момент.
func TmpKey(videoID uuid.UUID, name string) string {
	return fmt.Sprintf("%s/%s", videoID, SanitizeFilename(name))
}

// SanitizeFilename убирает path-компоненты и управляющие символы и
// обрезает имя до 255 байт. Пустой результат заменяется на "upload".
func SanitizeFilename(name string) string {
	// берём только последний компонент, separators не принимаем дословно
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 0x20 || r == 0x7f:
			// управляющие выкидываем
		case r == '/' || r == '\\':
		default:
			b.WriteRune(r)
		}
	}
	name = b.String()

	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "upload"
	}

	for len(name) > 255 {
		// режем по рунам, чтобы не порвать utf-8
		_, size := lastRune(name)
		name = name[:len(name)-size]
	}
	return name
}

func lastRune(s string) (rune, int) {
	r := []rune(s)
	last := r[len(r)-1]
	return last, len(string(last))
}
