package tracking

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionNotFound  = errors.New("session not found")
)

type ErrorKind string

const (
	KindPermissionDenied    ErrorKind = "permission_denied"
	KindPositionUnavailable ErrorKind = "position_unavailable"
	KindTimeout             ErrorKind = "timeout"
	KindGeneric             ErrorKind = "generic"
)

var kindMessages = map[ErrorKind]string{
	KindPermissionDenied:    "Dostop do lokacije je zavrnjen. Omogočite lokacijo v nastavitvah naprave.",
	KindPositionUnavailable: "Lokacija trenutno ni na voljo.",
	KindTimeout:             "Pridobivanje lokacije je trajalo predolgo.",
	KindGeneric:             "Napaka pri pridobivanju lokacije.",
}

// LocationError is a watch-level failure. It never stops the watch.
type LocationError struct {
	Kind ErrorKind
	Err  error
}

func (e *LocationError) Error() string {
	if e.Err == nil {
		return "location: " + string(e.Kind)
	}
	return fmt.Sprintf("location: %s: %v", e.Kind, e.Err)
}

func (e *LocationError) Unwrap() error { return e.Err }

// Message is the user-facing text for the error kind.
func (e *LocationError) Message() string {
	if msg, ok := kindMessages[e.Kind]; ok {
		return msg
	}
	return kindMessages[KindGeneric]
}

func (e *LocationError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind    ErrorKind `json:"kind"`
		Message string    `json:"message"`
	}{e.Kind, e.Message()})
}

// ClassifyLocationError folds any watcher error into one of the four kinds.
func ClassifyLocationError(err error) *LocationError {
	var le *LocationError
	if errors.As(err, &le) {
		return le
	}
	var pe *PlatformError
	if errors.As(err, &pe) {
		switch pe.Code {
		case CodePermissionDenied:
			return &LocationError{Kind: KindPermissionDenied, Err: err}
		case CodePositionUnavailable:
			return &LocationError{Kind: KindPositionUnavailable, Err: err}
		case CodeTimeout:
			return &LocationError{Kind: KindTimeout, Err: err}
		}
	}
	return &LocationError{Kind: KindGeneric, Err: err}
}

type Phase string

const (
	PhaseInterim  Phase = "interim"
	PhaseTerminal Phase = "terminal"
)

// PersistenceError wraps a store failure with the phase it happened in.
type PersistenceError struct {
	Phase     Phase
	SessionID string
	Err       error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s session %s: %v", e.Phase, e.SessionID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
