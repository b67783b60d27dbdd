package relay

import (
	"github.com/pkg/errors"
)

var (
	ErrNoSession      = errors.New("upstream client returned no session")
	ErrNoCapabilities = errors.New("tool-augmented mode requires at least one capability")
	ErrNoStream       = errors.New("upstream session returned no stream")
)

// Stage names the part of a call that failed.
type Stage string

const (
	StageSession   Stage = "session"
	StageTranslate Stage = "translate"
	StageStream    Stage = "stream"
	StageEmit      Stage = "emit"
)

// Error aborts a call. Its message is exactly the message of the cause, so the
// caller sees the upstream description unchanged.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(stage Stage, err error) *Error {
	return &Error{Stage: stage, Err: err}
}

// StageOf reports the stage of a relay error.
func StageOf(err error) (Stage, bool) {
	var re *Error
	if errors.As(err, &re) {
		return re.Stage, true
	}
	return "", false
}
