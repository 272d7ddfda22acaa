// Package window decides which date range a sync asks its source for.
package window

import (
	"fmt"
	"time"

	"github.com/ledgerline/ledgerline/internal/model"
)

const (
	// MaxHistoryDays bounds both the first sync and explicit start dates.
	MaxHistoryDays = 90
	// LookbackDays re-fetches recent history to catch late postings.
	LookbackDays = 7
)

// Kind says how a window was chosen.
type Kind string

const (
	KindInitial     Kind = "initial"
	KindIncremental Kind = "incremental"
	KindExplicit    Kind = "explicit"
)

// Params are the planner inputs. Latest is the account's newest stored
// transaction date, nil when the account has none.
type Params struct {
	Latest *time.Time
	Start  *time.Time
	End    *time.Time
	Today  time.Time
}

// Window is an inclusive calendar-date range.
type Window struct {
	Start time.Time
	End   time.Time
	Kind  Kind
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s (%s)", w.Start.Format(model.DateFormat), w.End.Format(model.DateFormat), w.Kind)
}

// Plan resolves the sync window:
//   - an explicit start is honored but clamped to no earlier than today-90d;
//   - an account with no transactions gets [today-90d, today];
//   - otherwise [latest-7d, today].
//
// End defaults to today. A start after today is clamped to today. When
// only the end is given, a derived start past it is pulled back to the
// end. An explicit start after the end is an invariant violation.
func Plan(p Params) (Window, error) {
	today := model.Day(p.Today)
	floor := today.AddDate(0, 0, -MaxHistoryDays)

	w := Window{End: today}
	if p.End != nil {
		w.End = model.Day(*p.End)
	}

	switch {
	case p.Start != nil:
		w.Kind = KindExplicit
		w.Start = model.Day(*p.Start)
		if w.Start.Before(floor) {
			w.Start = floor
		}
	case p.Latest == nil:
		w.Kind = KindInitial
		w.Start = floor
	default:
		w.Kind = KindIncremental
		w.Start = model.Day(*p.Latest).AddDate(0, 0, -LookbackDays)
	}

	if w.Start.After(today) {
		w.Start = today
	}
	if p.Start == nil && w.Start.After(w.End) {
		w.Start = w.End
	}
	if w.Start.After(w.End) {
		return Window{}, fmt.Errorf("%w: window start %s after end %s",
			model.ErrInvariant, w.Start.Format(model.DateFormat), w.End.Format(model.DateFormat))
	}
	return w, nil
}
