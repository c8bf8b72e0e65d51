package db

import (
	"context"

	"github.com/greenpulse-data/flow.report/internal/counting"
)

// ReportSink adapts the database to the scheduler's sink interface.
type ReportSink struct {
	DB *DB
}

// WriteReport persists one flush as a flow_reports row.
func (s *ReportSink) WriteReport(ctx context.Context, rep counting.FlowReport) error {
	row := &FlowReportRow{
		RunID:           rep.RunID,
		Timestamp:       rep.Timestamp.Local().Format(TimestampLayout),
		Cars:            rep.Interval[counting.ClassCar],
		Motorcycles:     rep.Interval[counting.ClassMotorcycle],
		Trucks:          rep.Interval[counting.ClassTruck],
		Buses:           rep.Interval[counting.ClassBus],
		IntervalTotal:   rep.IntervalTotal,
		CumulativeTotal: rep.CumulativeTotal,
		Occupancy:       int64(rep.Occupancy),
	}
	return s.DB.InsertFlowReport(ctx, row)
}
