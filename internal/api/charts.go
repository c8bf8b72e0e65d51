package api

import (
	"fmt"
	"image/color"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/greenpulse-data/flow.report/internal/db"
)

// chartReports fetches the rows for the chart endpoints, oldest first so
// the x-axis reads left to right in time.
func (s *Server) chartReports(r *http.Request) ([]db.FlowReportRow, error) {
	limit := 120
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 2000 {
			limit = v
		}
	}
	rows, err := s.db.RecentFlowReports(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	// RecentFlowReports returns newest first
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// renderFlowChart renders an interactive line chart (HTML) of the
// per-class interval flows using go-echarts. Debugging/operator view;
// no auth.
func (s *Server) renderFlowChart(w http.ResponseWriter, r *http.Request) {
	rows, err := s.chartReports(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "no flow reports recorded yet", http.StatusNotFound)
		return
	}

	timestamps := make([]string, 0, len(rows))
	cars := make([]opts.LineData, 0, len(rows))
	motorcycles := make([]opts.LineData, 0, len(rows))
	trucks := make([]opts.LineData, 0, len(rows))
	buses := make([]opts.LineData, 0, len(rows))
	occupancy := make([]opts.LineData, 0, len(rows))
	for _, row := range rows {
		timestamps = append(timestamps, row.Timestamp)
		cars = append(cars, opts.LineData{Value: row.Cars})
		motorcycles = append(motorcycles, opts.LineData{Value: row.Motorcycles})
		trucks = append(trucks, opts.LineData{Value: row.Trucks})
		buses = append(buses, opts.LineData{Value: row.Buses})
		occupancy = append(occupancy, opts.LineData{Value: row.Occupancy})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Traffic Flow", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Interval Flow per Class", Subtitle: fmt.Sprintf("last %d reports", len(rows))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(timestamps).
		AddSeries("cars", cars).
		AddSeries("motorcycles", motorcycles).
		AddSeries("trucks", trucks).
		AddSeries("buses", buses).
		AddSeries("occupancy", occupancy)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// renderFlowPNG renders a static PNG of interval totals and cumulative
// flow, for embedding where an HTML chart won't do.
func (s *Server) renderFlowPNG(w http.ResponseWriter, r *http.Request) {
	rows, err := s.chartReports(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if len(rows) == 0 {
		http.Error(w, "no flow reports recorded yet", http.StatusNotFound)
		return
	}

	intervalPts := make(plotter.XYs, 0, len(rows))
	cumulativePts := make(plotter.XYs, 0, len(rows))
	for i, row := range rows {
		intervalPts = append(intervalPts, plotter.XY{X: float64(i), Y: float64(row.IntervalTotal)})
		cumulativePts = append(cumulativePts, plotter.XY{X: float64(i), Y: float64(row.CumulativeTotal)})
	}

	p := plot.New()
	p.Title.Text = "Traffic Flow"
	p.X.Label.Text = "report index"
	p.Y.Label.Text = "vehicles"

	intervalLine, err := plotter.NewLine(intervalPts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	intervalLine.Width = vg.Points(1)
	intervalLine.Color = color.RGBA{G: 180, A: 255}

	cumulativeLine, err := plotter.NewLine(cumulativePts)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	cumulativeLine.Width = vg.Points(1)
	cumulativeLine.Color = color.RGBA{B: 200, A: 255}

	p.Add(intervalLine, cumulativeLine)
	p.Legend.Add("interval", intervalLine)
	p.Legend.Add("cumulative", cumulativeLine)

	wt, err := p.WriterTo(12*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := wt.WriteTo(w); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
