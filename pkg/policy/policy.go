// Package policy decides, per host record, what the next updates policy
// value should be for a requested mode, and aggregates fleet state into a
// status histogram.
package policy

import (
	"errors"

	"github.com/go-logr/logr"

	"github.com/encops/updatectl/pkg/types"
)

// ErrRefused is returned when updates are to be switched on while a downtime
// is active. This is a global precondition of the whole run: no record may
// be mutated, because enabling updates inside a declared maintenance window
// is unsafe.
var ErrRefused = errors.New("refusing to enable updates during an active downtime")

// Next computes the policy value a host should transition to. The returned
// bool reports whether the transition table produced a value at all; callers
// compare against the current value to decide whether anything changed.
//
// Records without a managed policy attribute are never initialized, whatever
// the mode. The combination of ModeOn with an active downtime must be
// rejected by the caller before any per-host evaluation; Next treats it as
// no transition.
func Next(mode types.Mode, current types.Policy, downtime bool) (types.Policy, bool) {
	if current == types.PolicyAbsent {
		return types.PolicyAbsent, false
	}

	switch mode {
	case types.ModeOn:
		if downtime {
			return types.PolicyAbsent, false
		}
		return types.PolicySecurity, true
	case types.ModeOff:
		return types.PolicyNone, true
	case types.ModeUpdate:
		if downtime && current == types.PolicySecurity {
			return types.PolicySecurityOff, true
		}
		if !downtime && current == types.PolicySecurityOff {
			return types.PolicySecurity, true
		}
	}
	return types.PolicyAbsent, false
}

// Bucket is one histogram entry.
type Bucket struct {
	Value types.Policy
	Count int
}

// Histogram counts host records per policy value. The three managed values
// are seeded up front so they always render, even at zero; values outside
// the managed set get their own bucket keyed by the literal value, appended
// in first-seen order. Hosts without a managed attribute are listed in
// Unmanaged and excluded from the buckets.
type Histogram struct {
	order     []types.Policy
	counts    map[types.Policy]int
	Unmanaged []string
}

func NewHistogram() *Histogram {
	h := &Histogram{counts: map[types.Policy]int{}}
	for _, p := range []types.Policy{types.PolicyNone, types.PolicySecurity, types.PolicySecurityOff} {
		h.order = append(h.order, p)
		h.counts[p] = 0
	}
	return h
}

// Count records the policy value of one host.
func (h *Histogram) Count(host string, p types.Policy) {
	if p == types.PolicyAbsent {
		h.Unmanaged = append(h.Unmanaged, host)
		return
	}
	if _, seen := h.counts[p]; !seen {
		h.order = append(h.order, p)
	}
	h.counts[p]++
}

// Buckets returns the histogram entries in first-insertion order.
func (h *Histogram) Buckets() []Bucket {
	buckets := make([]Bucket, 0, len(h.order))
	for _, p := range h.order {
		buckets = append(buckets, Bucket{Value: p, Count: h.counts[p]})
	}
	return buckets
}

// Label renders the operator-facing description of a policy bucket.
func Label(p types.Policy) string {
	switch p {
	case types.PolicyNone:
		return "no updates"
	case types.PolicySecurity:
		return "security updates ON"
	case types.PolicySecurityOff:
		return "security updates OFF"
	}
	return "unknown updates status"
}

// BuildHistogram aggregates the effective post-transition policy values of
// all decisions. Hosts lacking the attribute are logged at detail level and
// excluded from the counted buckets.
func BuildHistogram(decisions []types.Decision, log logr.Logger) *Histogram {
	h := NewHistogram()
	for _, d := range decisions {
		value := d.Old
		if d.Changed {
			value = d.New
		}
		if value == types.PolicyAbsent {
			log.V(1).Info("no updates attribute", "host", d.Host)
		}
		h.Count(d.Host, value)
	}
	return h
}
