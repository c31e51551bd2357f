package repair

import (
	"errors"
	"fmt"
)

// Stage names the step of a repair call that failed.
type Stage string

const (
	StageRead   Stage = "read"
	StageDetect Stage = "detect"
	StageDecode Stage = "decode"
)

var (
	// ErrFileRead reports a target file that could not be opened or read.
	ErrFileRead = errors.New("subtitle file unreadable")
	// ErrEncodingDetection reports input whose encoding could not be determined.
	ErrEncodingDetection = errors.New("encoding not detected")
	// ErrDecode reports bytes that are not valid in the detected encoding.
	ErrDecode = errors.New("decode failed")
)

// Error describes a failed repair call. The engine remains usable after any
// Error; only the call that produced it is aborted.
type Error struct {
	Path  string
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("repair %s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("repair %s (%s): %v", e.Path, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel for the failing stage so callers can branch on
// errors.Is(err, ErrDecode) without inspecting the wrapped cause.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrFileRead:
		return e.Stage == StageRead
	case ErrEncodingDetection:
		return e.Stage == StageDetect
	case ErrDecode:
		return e.Stage == StageDecode
	}
	return false
}

// StageOf reports the failing stage of err, if it came from the engine.
func StageOf(err error) (Stage, bool) {
	var repairErr *Error
	if errors.As(err, &repairErr) {
		return repairErr.Stage, true
	}
	return "", false
}
