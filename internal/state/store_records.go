package state

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const upsertRecordSQL = `INSERT INTO stage_records (
    company, period, stage, seq, status, attempt_count, last_error, artifact_ref,
    correlation_id, started_at, completed_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(company, period, stage) DO UPDATE SET
    status = excluded.status,
    attempt_count = excluded.attempt_count,
    last_error = excluded.last_error,
    artifact_ref = excluded.artifact_ref,
    correlation_id = excluded.correlation_id,
    started_at = COALESCE(stage_records.started_at, excluded.started_at),
    completed_at = excluded.completed_at,
    updated_at = excluded.updated_at`

// LoadUnit reconstructs a unit from its stage records. A unit with no rows is
// fresh at the fetch stage. Records left in_progress by an interrupted run
// come back as pending with their attempt count intact.
func (s *Store) LoadUnit(ctx context.Context, company, period string) (*EpisodeUnit, error) {
	ctx = ensureContext(ctx)
	unit := NewUnit(company, period)

	var records []*StageRecord
	err := retryOnBusy(ctx, func() error {
		records = records[:0]
		rows, err := s.db.QueryContext(ctx,
			"SELECT "+recordColumns+" FROM stage_records WHERE company = ? AND period = ? ORDER BY seq",
			company, period,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeError("load unit", unit.Key(), err)
	}

	for _, rec := range records {
		if rec.Status == StatusInProgress {
			rec.Status = StatusPending
		}
		unit.Records[rec.Stage] = rec
	}
	return unit, nil
}

// RecordAttempt persists the outcome of a stage attempt with one UPSERT and
// mirrors it into the unit. started_at keeps the first attempt's time;
// completed_at is set when the status is terminal.
func (s *Store) RecordAttempt(ctx context.Context, unit *EpisodeUnit, stage Stage, outcome Outcome) error {
	if unit == nil {
		return storeError("record attempt", "nil unit", nil)
	}
	seq := stage.Index()
	if seq < 0 {
		return storeError("record attempt", fmt.Sprintf("unknown stage %q", stage), nil)
	}
	if !outcome.Status.Valid() {
		return storeError("record attempt", fmt.Sprintf("invalid status %q", outcome.Status), nil)
	}

	now := s.now().UTC()
	started := now
	var completed *time.Time
	if outcome.Status.Terminal() {
		completed = &now
	}

	_, err := s.execWithRetry(ctx, upsertRecordSQL,
		unit.Company,
		unit.Period,
		string(stage),
		seq,
		string(outcome.Status),
		outcome.AttemptCount,
		nullableString(strings.TrimSpace(outcome.Error)),
		nullableString(outcome.ArtifactRef),
		nullableString(outcome.CorrelationID),
		formatTime(started),
		nullableTime(completed),
		formatTime(now),
	)
	if err != nil {
		return storeError("record attempt", fmt.Sprintf("%s %s", unit.Key(), stage), err)
	}

	if unit.Records == nil {
		unit.Records = map[Stage]*StageRecord{}
	}
	rec := unit.Records[stage]
	if rec == nil {
		rec = &StageRecord{Company: unit.Company, Period: unit.Period, Stage: stage, StartedAt: &started}
		unit.Records[stage] = rec
	} else if rec.StartedAt == nil {
		rec.StartedAt = &started
	}
	rec.Status = outcome.Status
	rec.AttemptCount = outcome.AttemptCount
	rec.LastError = strings.TrimSpace(outcome.Error)
	rec.ArtifactRef = outcome.ArtifactRef
	rec.CorrelationID = outcome.CorrelationID
	rec.CompletedAt = completed
	rec.UpdatedAt = now
	return nil
}

// Filter narrows List results. Empty fields match everything.
type Filter struct {
	Company string
	Period  string
	Status  Status
}

// List returns stage records ordered by company, period, and stage order.
func (s *Store) List(ctx context.Context, filter Filter) ([]*StageRecord, error) {
	ctx = ensureContext(ctx)
	var (
		clauses []string
		args    []any
	)
	if filter.Company != "" {
		clauses = append(clauses, "company = ?")
		args = append(args, filter.Company)
	}
	if filter.Period != "" {
		clauses = append(clauses, "period = ?")
		args = append(args, filter.Period)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	query := "SELECT " + recordColumns + " FROM stage_records"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY company, period, seq"

	var records []*StageRecord
	err := retryOnBusy(ctx, func() error {
		records = nil
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, storeError("list", "query stage records", err)
	}
	return records, nil
}

// ListByCompany returns every record for a company.
func (s *Store) ListByCompany(ctx context.Context, company string) ([]*StageRecord, error) {
	return s.List(ctx, Filter{Company: company})
}

// ListByPeriod returns every record for a reporting period.
func (s *Store) ListByPeriod(ctx context.Context, period string) ([]*StageRecord, error) {
	return s.List(ctx, Filter{Period: period})
}

// ListUnits groups matching records into units, in company then period order.
func (s *Store) ListUnits(ctx context.Context, filter Filter) ([]*EpisodeUnit, error) {
	records, err := s.List(ctx, Filter{Company: filter.Company, Period: filter.Period})
	if err != nil {
		return nil, err
	}
	var (
		units []*EpisodeUnit
		index = map[string]*EpisodeUnit{}
	)
	for _, rec := range records {
		key := rec.Company + "/" + rec.Period
		unit, ok := index[key]
		if !ok {
			unit = NewUnit(rec.Company, rec.Period)
			index[key] = unit
			units = append(units, unit)
		}
		unit.Records[rec.Stage] = rec
	}
	if filter.Status == "" {
		return units, nil
	}
	filtered := units[:0]
	for _, unit := range units {
		if unit.StatusOf(unit.CurrentStage()) == filter.Status {
			filtered = append(filtered, unit)
		}
	}
	return filtered, nil
}

// Reset deletes the unit's records from the given stage onward so the next
// run repeats them. It returns the number of records removed.
func (s *Store) Reset(ctx context.Context, company, period string, from Stage) (int64, error) {
	start := from.Index()
	if start < 0 {
		return 0, storeError("reset", fmt.Sprintf("unknown stage %q", from), nil)
	}
	stages := stageOrder[start:]
	args := make([]any, 0, len(stages)+2)
	args = append(args, company, period)
	for _, stage := range stages {
		args = append(args, string(stage))
	}
	res, err := s.execWithRetry(ctx,
		"DELETE FROM stage_records WHERE company = ? AND period = ? AND stage IN ("+makePlaceholders(len(stages))+")",
		args...,
	)
	if err != nil {
		return 0, storeError("reset", company+"/"+period, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, storeError("reset", "rows affected", err)
	}
	return affected, nil
}
