package state

import (
	"database/sql"
	"errors"
	"time"
)

const recordColumns = "company, period, stage, status, attempt_count, last_error, artifact_ref, correlation_id, started_at, completed_at, updated_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*StageRecord, error) {
	var (
		company       string
		period        string
		stage         string
		status        string
		attempts      int
		lastError     sql.NullString
		artifactRef   sql.NullString
		correlationID sql.NullString
		startedRaw    sql.NullString
		completedRaw  sql.NullString
		updatedRaw    string
	)
	if err := scanner.Scan(
		&company,
		&period,
		&stage,
		&status,
		&attempts,
		&lastError,
		&artifactRef,
		&correlationID,
		&startedRaw,
		&completedRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rec := &StageRecord{
		Company:       company,
		Period:        period,
		Stage:         Stage(stage),
		Status:        Status(status),
		AttemptCount:  attempts,
		LastError:     lastError.String,
		ArtifactRef:   artifactRef.String,
		CorrelationID: correlationID.String,
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			rec.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			rec.CompletedAt = &completed
		}
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
