// Package report contains the CSV report sink, which mirrors the flow
// log format consumed by downstream spreadsheet tooling.
package report

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/greenpulse-data/flow.report/internal/counting"
)

// csvHeader is the fixed column set, one row per interval flush.
var csvHeader = []string{
	"Timestamp",
	"Cars_Flow",
	"Motorcycles_Flow",
	"Trucks_Flow",
	"Buses_Flow",
	"Total_Interval_Flow",
	"Cumulative_Flow",
	"Vehicles_In_Frame_(Queue_Proxy)",
}

// timestampLayout matches the database sink so the two outputs line up.
const timestampLayout = "2006-01-02 15:04:05"

// CSVSink appends one row per flush to a CSV file. The header is written
// when the sink creates the file; appending to an existing file skips
// it so restarts don't corrupt the log.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

// NewCSVSink creates the file with a header row if it does not already
// exist.
func NewCSVSink(path string) (*CSVSink, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create csv file: %w", err)
		}
		w := csv.NewWriter(f)
		if err := w.Write(csvHeader); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, err
		}
		if err := f.Close(); err != nil {
			return nil, err
		}
	}
	return &CSVSink{path: path}, nil
}

// WriteReport appends one flush row. The file is opened per write so a
// deleted or rotated log recovers on the next flush.
func (s *CSVSink) WriteReport(ctx context.Context, rep counting.FlowReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	record := []string{
		rep.Timestamp.Local().Format(timestampLayout),
		strconv.FormatInt(rep.Interval[counting.ClassCar], 10),
		strconv.FormatInt(rep.Interval[counting.ClassMotorcycle], 10),
		strconv.FormatInt(rep.Interval[counting.ClassTruck], 10),
		strconv.FormatInt(rep.Interval[counting.ClassBus], 10),
		strconv.FormatInt(rep.IntervalTotal, 10),
		strconv.FormatInt(rep.CumulativeTotal, 10),
		strconv.Itoa(rep.Occupancy),
	}
	if err := w.Write(record); err != nil {
		return fmt.Errorf("failed to write csv record: %w", err)
	}
	w.Flush()
	return w.Error()
}

// Path returns the sink's file path.
func (s *CSVSink) Path() string { return s.path }
