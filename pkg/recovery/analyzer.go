// Package recovery reconciles the authoritative source-side mark counts
// against the checkpointed progress of past runs, quantifies the gap, and
// produces a replay list the pipeline can consume to close it.
package recovery

import (
	"context"
	"time"

	"github.com/google/uuid"

	"geoetl/pkg/checkpoint"
	"geoetl/pkg/logger"
	"geoetl/pkg/models"
	"geoetl/pkg/source"
)

// UnitReport is the reconciliation view of one unit.
type UnitReport struct {
	Key           models.UnitKey    `json:"key"`
	Status        models.UnitStatus `json:"status"`
	ExpectedMarks int64             `json:"expected_marks"`
	WrittenMarks  int64             `json:"written_marks"`
	Reason        string            `json:"reason,omitempty"`
}

// Strategy is one recovery action in the report, ordered by priority.
type Strategy struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	TargetUnits   int    `json:"target_units"`
	ExpectedMarks int64  `json:"expected_marks"`
	Priority      string `json:"priority"`
}

// Report is the structured reconciliation outcome.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`

	ExpectedTotal  int64 `json:"expected_total"`
	ProcessedTotal int64 `json:"processed_total"`
	Deficit        int64 `json:"deficit"`

	TotalUnits     int `json:"total_units"`
	CompletedUnits int `json:"completed_units"`
	FailedUnits    int `json:"failed_units"`
	StaleUnits     int `json:"stale_units"`
	PendingUnits   int `json:"pending_units"`

	Units      []UnitReport     `json:"units"`
	ReplayList []models.UnitKey `json:"replay_list"`
	Strategies []Strategy       `json:"strategies"`
}

// Analyzer compares checkpoint state against source counts. It reads the
// store except for one guarded mutation: demoting stale claims back to
// pending before taking its snapshot.
type Analyzer struct {
	src        source.Source
	store      *checkpoint.Store
	staleAfter time.Duration
	log        logger.Logger
}

// NewAnalyzer creates an analyzer over an open store.
func NewAnalyzer(src source.Source, store *checkpoint.Store, staleAfter time.Duration, log logger.Logger) *Analyzer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Analyzer{src: src, store: store, staleAfter: staleAfter, log: log}
}

// Analyze enumerates the full unit universe, sums authoritative source
// counts, and compares them with the completed checkpoint entries. Units
// that are not completed (failed, stale-claimed, or never attempted) make
// up the replay list. Stale claims are demoted first, so the snapshot the
// report describes is already repaired.
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:       uuid.NewString(),
		GeneratedAt: time.Now().UTC(),
	}

	var stale map[models.UnitKey]bool
	if a.staleAfter > 0 {
		released, err := a.store.ReleaseStale(a.staleAfter)
		if err != nil {
			return nil, err
		}
		stale = make(map[models.UnitKey]bool, len(released))
		for _, key := range released {
			stale[key] = true
		}
	}

	snap := a.store.Snapshot()

	err := a.src.EnumerateUnits(ctx, source.Filter{}, func(key models.UnitKey) error {
		expected, err := a.src.CountMarks(ctx, key)
		if err != nil {
			return err
		}

		unit := UnitReport{Key: key, ExpectedMarks: expected}
		if entry, ok := snap.Completed[key]; ok {
			unit.Status = models.StatusCompleted
			unit.WrittenMarks = int64(entry.Marks)
			report.CompletedUnits++
		} else if entry, ok := snap.Failed[key]; ok {
			unit.Status = models.StatusFailed
			unit.Reason = entry.Reason
			report.FailedUnits++
		} else if _, ok := snap.Claimed[key]; ok {
			unit.Status = models.StatusClaimed
			report.PendingUnits++
		} else {
			unit.Status = models.StatusPending
			if stale[key] {
				unit.Reason = "claim went stale"
				report.StaleUnits++
			}
			report.PendingUnits++
		}

		report.TotalUnits++
		report.ExpectedTotal += expected
		report.ProcessedTotal += unit.WrittenMarks
		report.Units = append(report.Units, unit)

		if unit.Status != models.StatusCompleted {
			report.ReplayList = append(report.ReplayList, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Deficit = report.ExpectedTotal - report.ProcessedTotal
	report.Strategies = buildStrategies(report)

	a.log.InfoWithFields("reconciliation complete", map[string]interface{}{
		"expected_total":  report.ExpectedTotal,
		"processed_total": report.ProcessedTotal,
		"deficit":         report.Deficit,
		"replay_units":    len(report.ReplayList),
	})
	return report, nil
}

func buildStrategies(report *Report) []Strategy {
	var strategies []Strategy

	if report.FailedUnits > 0 {
		var marks int64
		for _, u := range report.Units {
			if u.Status == models.StatusFailed {
				marks += u.ExpectedMarks
			}
		}
		strategies = append(strategies, Strategy{
			Name:          "retry-failed",
			Description:   "reprocess units that failed on a previous run",
			TargetUnits:   report.FailedUnits,
			ExpectedMarks: marks,
			Priority:      "high",
		})
	}

	if report.PendingUnits > 0 {
		var marks int64
		for _, u := range report.Units {
			if u.Status == models.StatusPending || u.Status == models.StatusClaimed {
				marks += u.ExpectedMarks
			}
		}
		strategies = append(strategies, Strategy{
			Name:          "process-pending",
			Description:   "process units never attempted or recovered from stale claims",
			TargetUnits:   report.PendingUnits,
			ExpectedMarks: marks,
			Priority:      "medium",
		})
	}

	return strategies
}
