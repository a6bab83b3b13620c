// Package result classifies the outcome of anything the bot tries to do on
// the platform.
package result

import (
	"emperror.dev/errors"
	"github.com/bwmarrin/discordgo"
)

const (
	// ErrNotConfigured means the configuration named nothing to do or lacked
	// a required value. Nothing was sent to the platform.
	ErrNotConfigured = errors.Sentinel("not configured")
	// ErrDeliveryFailed means the request never got a platform answer.
	ErrDeliveryFailed = errors.Sentinel("delivery failed")
	// ErrRejected means the platform answered with an error status.
	ErrRejected = errors.Sentinel("platform rejected")
)

type Status string

const (
	StatusApplied        Status = "applied"
	StatusNotConfigured  Status = "not_configured"
	StatusDeliveryFailed Status = "delivery_failed"
	StatusRejected       Status = "rejected"
)

// Error carries one of the kinds above together with its cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func NotConfigured(op, detail string) error {
	var cause error
	if detail != "" {
		cause = errors.New(detail)
	}
	return &Error{Kind: ErrNotConfigured, Op: op, Err: cause}
}

// Platform wraps an error returned by the SDK. REST errors are rejections,
// anything else is a delivery failure. Already classified errors pass through.
func Platform(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		return &Error{Kind: ErrRejected, Op: op, Err: err}
	}
	return &Error{Kind: ErrDeliveryFailed, Op: op, Err: err}
}

func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusApplied
	case errors.Is(err, ErrNotConfigured):
		return StatusNotConfigured
	case errors.Is(err, ErrRejected):
		return StatusRejected
	default:
		return StatusDeliveryFailed
	}
}
