package dispatch

import (
	"emperror.dev/errors"
)

type Target string

const (
	TargetNone     Target = "none"
	TargetReply    Target = "reply"
	TargetFallback Target = "channel_fallback"
	TargetChannel  Target = "channel"
	TargetDM       Target = "dm"
)

// Delivery is one attempted send.
type Delivery struct {
	Key       string
	Target    Target
	ChannelID string
	Err       error
}

// Report lists every attempted send of one dispatch, successful or not.
type Report struct {
	Deliveries []Delivery
}

func (r *Report) add(d Delivery) {
	r.Deliveries = append(r.Deliveries, d)
}

func (r *Report) Merge(other Report) {
	r.Deliveries = append(r.Deliveries, other.Deliveries...)
}

// Delivered counts successful sends to target.
func (r Report) Delivered(target Target) int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Target == target && d.Err == nil {
			n++
		}
	}
	return n
}

func (r Report) Failed() []Delivery {
	var out []Delivery
	for _, d := range r.Deliveries {
		if d.Err != nil {
			out = append(out, d)
		}
	}
	return out
}

// Err combines every failure, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, d := range r.Failed() {
		errs = append(errs, errors.WithMessage(d.Err, string(d.Target)))
	}
	return errors.Combine(errs...)
}
