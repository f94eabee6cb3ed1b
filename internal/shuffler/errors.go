package shuffler

import (
	"errors"
	"fmt"
	"net/textproto"
	"strconv"

	gompd "github.com/fhs/gompd/v2/mpd"
)

// ErrWatcherClosed is returned when the idle connection stops delivering events.
var ErrWatcherClosed = errors.New("idle watcher closed unexpectedly")

// Kind groups session errors by how the process reacts to them.
type Kind int

const (
	KindTransport Kind = iota
	KindProtocol
	KindResponse
	KindParse
	KindInvariant
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindResponse:
		return "response"
	case KindParse:
		return "parse"
	case KindInvariant:
		return "invariant"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// StoreError is a failed selection store operation. The store can no longer
// be trusted, so it is never retried.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// InvariantError means a server response could not be reconciled.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Msg
}

// Classify maps err onto the error taxonomy. Unknown errors count as transport
// failures.
func Classify(err error) Kind {
	var (
		se *StoreError
		ie *InvariantError
		ne *strconv.NumError
		pe textproto.ProtocolError
	)
	switch {
	case errors.As(err, &se):
		return KindStore
	case errors.As(err, &ie):
		return KindInvariant
	case isServerError(err):
		return KindResponse
	case errors.As(err, &ne):
		return KindParse
	case errors.As(err, &pe):
		return KindProtocol
	default:
		return KindTransport
	}
}

// isServerError reports whether err wraps an ACK returned by MPD.
func isServerError(err error) bool {
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch any(e).(type) {
		case gompd.Error, *gompd.Error:
			return true
		}
	}
	return false
}

// IsFatal reports whether err must stop the process instead of triggering a reconnect.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k := Classify(err)
	return k == KindStore || k == KindInvariant
}
