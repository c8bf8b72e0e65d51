package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// TimestampLayout is the human-readable local-time format persisted with
// each report row.
const TimestampLayout = "2006-01-02 15:04:05"

// FlowReportRow is one persisted interval flush.
type FlowReportRow struct {
	ID              int64     `json:"id"`
	RunID           string    `json:"run_id"`
	Timestamp       string    `json:"timestamp"` // local time, TimestampLayout
	Cars            int64     `json:"cars"`
	Motorcycles     int64     `json:"motorcycles"`
	Trucks          int64     `json:"trucks"`
	Buses           int64     `json:"buses"`
	IntervalTotal   int64     `json:"interval_total"`
	CumulativeTotal int64     `json:"cumulative_total"`
	Occupancy       int64     `json:"occupancy"`
	CreatedAt       time.Time `json:"created_at"`
}

// InsertFlowReport persists a flush record and fills in its row ID.
func (db *DB) InsertFlowReport(ctx context.Context, row *FlowReportRow) error {
	result, err := db.ExecContext(ctx, `
		INSERT INTO flow_reports (
			run_id, timestamp, cars, motorcycles, trucks, buses,
			interval_total, cumulative_total, occupancy
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.RunID,
		row.Timestamp,
		row.Cars,
		row.Motorcycles,
		row.Trucks,
		row.Buses,
		row.IntervalTotal,
		row.CumulativeTotal,
		row.Occupancy,
	)
	if err != nil {
		return fmt.Errorf("failed to insert flow report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	row.ID = id
	return nil
}

// RecentFlowReports returns the most recent limit reports, newest first.
func (db *DB) RecentFlowReports(ctx context.Context, limit int) ([]FlowReportRow, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, run_id, timestamp, cars, motorcycles, trucks, buses,
		       interval_total, cumulative_total, occupancy, created_at
		FROM flow_reports
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []FlowReportRow
	for rows.Next() {
		var r FlowReportRow
		if err := rows.Scan(
			&r.ID,
			&r.RunID,
			&r.Timestamp,
			&r.Cars,
			&r.Motorcycles,
			&r.Trucks,
			&r.Buses,
			&r.IntervalTotal,
			&r.CumulativeTotal,
			&r.Occupancy,
			&r.CreatedAt,
		); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reports, nil
}

// RunTotals holds the conservation check for a session: the sum of all
// flushed interval totals must equal the last cumulative total.
type RunTotals struct {
	RunID            string `json:"run_id"`
	Flushes          int64  `json:"flushes"`
	IntervalSum      int64  `json:"interval_sum"`
	LatestCumulative int64  `json:"latest_cumulative"`
}

// FlowReportTotals aggregates per-run totals across all flushes.
func (db *DB) FlowReportTotals(ctx context.Context, runID string) (*RunTotals, error) {
	var t RunTotals
	var intervalSum, latest sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*), SUM(interval_total),
		       (SELECT cumulative_total FROM flow_reports
		        WHERE run_id = ? ORDER BY id DESC LIMIT 1)
		FROM flow_reports
		WHERE run_id = ?`, runID, runID).Scan(&t.Flushes, &intervalSum, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate run totals: %w", err)
	}
	t.RunID = runID
	t.IntervalSum = intervalSum.Int64
	t.LatestCumulative = latest.Int64
	return &t, nil
}
