// Package run drives one full invocation: evaluate today's downtime state
// once, apply the policy transition table to every host record, persist what
// changed, and aggregate the status histogram.
package run

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/encops/updatectl/pkg/downtime"
	"github.com/encops/updatectl/pkg/enc"
	"github.com/encops/updatectl/pkg/policy"
	"github.com/encops/updatectl/pkg/store"
	"github.com/encops/updatectl/pkg/types"
)

// Context holds the immutable inputs of a single run. Today is injected so
// behavior is reproducible in tests.
type Context struct {
	Mode      types.Mode
	Today     time.Time
	Downtimes []string
	DryRun    bool
}

// Result is everything a run produces for reporting. It is populated even
// when the run is refused, so an operator always sees fleet state.
type Result struct {
	Active    *types.DowntimeInterval
	Refused   bool
	Decisions []types.Decision
	Histogram *policy.Histogram
}

// Changed counts the hosts whose policy value was rewritten.
func (r *Result) Changed() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Changed {
			n++
		}
	}
	return n
}

// Runner wires the collaborators of a run. History is optional; a nil store
// disables run auditing.
type Runner struct {
	Dir     *enc.Dir
	History *store.HistoryStore
	Log     logr.Logger
}

// Execute performs the full-run algorithm. On refusal it returns both a
// usable Result and policy.ErrRefused; any other error leaves the fleet
// untouched.
func (r *Runner) Execute(ctx Context) (*Result, error) {
	intervals, err := downtime.ParseList(ctx.Downtimes, ctx.Today)
	if err != nil {
		return nil, err
	}

	result := &Result{Active: downtime.ActiveOn(intervals, ctx.Today)}
	if result.Active != nil {
		r.Log.Info("downtime detected in configuration", "downtime", result.Active.Raw)
	}

	records, err := r.Dir.Load()
	if err != nil {
		return nil, err
	}

	result.Refused = ctx.Mode == types.ModeOn && result.Active != nil
	if result.Refused {
		r.Log.Info("aborting because updates cannot be enabled in a downtime")
	}

	mutate := !result.Refused && ctx.Mode != types.ModeStatus
	for _, rec := range records {
		d := types.Decision{Host: rec.Host, Old: rec.Policy()}
		if mutate {
			next, ok := policy.Next(ctx.Mode, d.Old, result.Active != nil)
			if ok && next != d.Old {
				d.New = next
				d.Changed = true
				rec.SetPolicy(next)
				r.Log.V(1).Info("policy transition", "host", rec.Host, "old", d.Old, "new", d.New)
			}
		}
		result.Decisions = append(result.Decisions, d)
	}

	if mutate && !ctx.DryRun {
		if err := r.Dir.Save(records); err != nil {
			return nil, err
		}
	}

	result.Histogram = policy.BuildHistogram(result.Decisions, r.Log)

	r.audit(ctx, result)

	if result.Refused {
		return result, fmt.Errorf("%w: %s", policy.ErrRefused, result.Active.Raw)
	}
	return result, nil
}

// audit appends the run to the history store. Best effort: a history write
// failure is logged but never fails the run.
func (r *Runner) audit(ctx Context, result *Result) {
	if r.History == nil {
		return
	}
	record := &store.RunRecord{
		StartedAt: ctx.Today,
		Mode:      ctx.Mode,
		Refused:   result.Refused,
		DryRun:    ctx.DryRun,
		Changed:   result.Changed(),
		Total:     len(result.Decisions),
	}
	if result.Active != nil {
		record.Downtime = result.Active.Raw
	}
	if _, err := r.History.StoreRun(record); err != nil {
		r.Log.Error(err, "unable to record run history")
	}
}
