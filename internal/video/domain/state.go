package domain

import "fmt"

// State — состояние видео в каноническом lowercase-представлении.
// Набор объявлен один раз здесь; база хранит ту же строку, неизвестные
// строки на чтении отвергаются (ParseState).
type State string

const (
	Uploading  State = "uploading"
	Validating State = "validating"
	Processing State = "processing"
	Indexed    State = "indexed"
	Failed     State = "failed"
	Deleted    State = "deleted"
)

func ParseState(s string) (State, error) {
	switch State(s) {
	case Uploading, Validating, Processing, Indexed, Failed, Deleted:
		return State(s), nil
	default:
		return "", fmt.Errorf("unknown video state: %q", s)
	}
}

func CanTransition(from, to State) bool {
	// deleted достижим из любого нетерминального состояния (user delete).
	if to == Deleted {
		return !Terminal(from)
	}
	switch from {
	case Uploading:
		return to == Validating
	case Validating:
		return to == Processing || to == Failed
	case Processing:
		return to == Indexed || to == Failed
	default:
		// indexed, failed, deleted — терминальные
		return false
	}
}

func Terminal(s State) bool {
	switch s {
	case Indexed, Failed, Deleted:
		return true
	}
	return false
}

func ValidateTransition(from, to State) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid transition: %s -> %s", from, to)
	}
	return nil
}
