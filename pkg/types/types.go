package types

import "time"

// Mode is the operator-requested action for a single run.
type Mode string

const (
	ModeOn     Mode = "on"
	ModeOff    Mode = "off"
	ModeUpdate Mode = "update"
	ModeStatus Mode = "status"
)

// Policy is the updates policy value of a host record. The zero value
// represents a record without a managed updates attribute; such records are
// never initialized or mutated.
type Policy string

const (
	PolicyAbsent      Policy = ""
	PolicyNone        Policy = "none"
	PolicySecurity    Policy = "security"
	PolicySecurityOff Policy = "security_off"
)

// Known reports whether p is one of the three managed policy values.
func (p Policy) Known() bool {
	switch p {
	case PolicyNone, PolicySecurity, PolicySecurityOff:
		return true
	}
	return false
}

// DowntimeInterval is one administrator-declared maintenance window,
// inclusive on both ends. Dates are normalized to midnight UTC.
type DowntimeInterval struct {
	Start       time.Time
	End         time.Time
	YearOmitted bool
	Raw         string
}

// Contains reports whether the given day falls inside the interval.
func (i DowntimeInterval) Contains(day time.Time) bool {
	return !day.Before(i.Start) && !day.After(i.End)
}

// Decision records the outcome of the transition engine for one host.
type Decision struct {
	Host    string
	Old     Policy
	New     Policy
	Changed bool
}
