package peer

import (
	"errors"
	"fmt"
)

var (
	ErrManagerClosed    = errors.New("peer manager closed")
	ErrNoLocalStream    = errors.New("no local stream bound")
	ErrUnknownPeer      = errors.New("unknown peer")
	ErrChannelNotOpen   = errors.New("channel not open")
	ErrUnexpectedSignal = errors.New("unexpected signal type")
)

// LinkError wraps a failure in one peer link operation.
type LinkError struct {
	Op      string
	PeerID  string
	Err     error
	Details string
}

func (e *LinkError) Error() string {
	if e.PeerID != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.PeerID, e.Err)
	}
	if e.Details != "" {
		return fmt.Sprintf("%s: %v (%s)", e.Op, e.Err, e.Details)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *LinkError {
	return &LinkError{Op: op, Err: err}
}

func NewPeerError(op, peerID string, err error) *LinkError {
	return &LinkError{Op: op, PeerID: peerID, Err: err}
}

func WrapError(op string, err error, details string) *LinkError {
	return &LinkError{Op: op, Err: err, Details: details}
}
