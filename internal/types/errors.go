package types

import (
	"errors"
	"fmt"
)

// ErrUnparseable tags every payload decoding failure.
var ErrUnparseable = errors.New("unparseable payload")

// PayloadError describes a payload that does not have the structured shape
// expected from its speaker.
type PayloadError struct {
	Speaker Participant
	Reason  string
	Err     error
}

func (e *PayloadError) Error() string {
	msg := fmt.Sprintf("%s payload from %s: %s", ErrUnparseable, e.Speaker, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrUnparseable) true for every PayloadError.
func (e *PayloadError) Is(target error) bool {
	return target == ErrUnparseable
}

func (e *PayloadError) Unwrap() error {
	return e.Err
}

func payloadErr(speaker Participant, reason string, err error) error {
	return &PayloadError{Speaker: speaker, Reason: reason, Err: err}
}
