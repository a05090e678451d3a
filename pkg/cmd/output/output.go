// Package output renders prediction runs and reference data for the CLI.
package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/mpapenbr/qualipredict/pkg/model"
	"github.com/mpapenbr/qualipredict/pkg/predict"
)

type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

var ErrUnknownFormat = errors.New("unknown output format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, "":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
	}
}

func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	t.Style().Title.Format = text.FormatDefault
	if title != "" {
		t.SetTitle(title)
	}
	return t
}

// Settings prints the summary of the options used for a prediction.
func Settings(w io.Writer, circuit string, opts model.Options) {
	fmt.Fprintf(w, "Circuit: %s\n", circuit)
	fmt.Fprintf(w, "Model: %s\n", predict.EffectiveModel(opts).DisplayName())
	fmt.Fprintf(w, "Algorithm: %s\n", opts.MLModel.DisplayName())
	if predict.EffectiveModel(opts) == model.ModelTypeHybrid {
		fmt.Fprintf(w, "ML Weight: %.0f%%\n", opts.MLWeight*100)
	}
	if !opts.UsePerformance.GetOr(true) {
		fmt.Fprintln(w, "Performance factors: off")
	}
	fmt.Fprintf(w, "Weather: %s\n", opts.Weather.DisplayName())
}

func PredictionTable(w io.Writer, run *model.PredictionRun) {
	t := newTable(w, fmt.Sprintf("Qualifying prediction: %s", run.Circuit))
	t.AppendHeader(table.Row{"Position", "Driver", "Team", "Predicted Time", "Gap to Pole"})
	for _, e := range run.Entries {
		t.AppendRow(table.Row{e.Position, e.Driver, e.Team, e.Time, e.Gap})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignCenter},
		{Number: 4, Align: text.AlignCenter},
		{Number: 5, Align: text.AlignRight},
	})
	t.Render()
}

func CircuitsTable(w io.Writer, circuits []model.Circuit) {
	t := newTable(w, "Circuits")
	t.AppendHeader(table.Row{"", "Circuit", "Base Time", "Lap"})
	for _, c := range circuits {
		t.AppendRow(table.Row{c.Flag, c.Name, fmt.Sprintf("%.3f", c.BaseTime),
			predict.FormatLapTime(c.BaseTime)})
	}
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 3, Align: text.AlignRight}})
	t.Render()
}

func DriversTable(w io.Writer, drivers []model.RosterEntry) {
	t := newTable(w, "Drivers")
	t.AppendHeader(table.Row{"Driver", "Team", "Color"})
	for _, d := range drivers {
		t.AppendRow(table.Row{d.Name, d.Team, d.TeamColor})
	}
	t.Render()
}

func HistoricalTables(w io.Writer, data model.HistoricalData) {
	s := newTable(w, "Summary")
	s.AppendHeader(table.Row{"Sessions", "Drivers", "Teams"})
	s.AppendRow(table.Row{data.Summary.Sessions, data.Summary.Drivers, data.Summary.Teams})
	s.Render()

	c := newTable(w, "Average time per circuit")
	c.AppendHeader(table.Row{"Circuit", "Average"})
	for _, a := range data.CircuitData {
		c.AppendRow(table.Row{a.Name, predict.FormatLapTime(a.AverageTime)})
	}
	c.Render()

	d := newTable(w, "Average time per driver")
	d.AppendHeader(table.Row{"Driver", "Team", "Average"})
	for _, a := range data.DriverData {
		d.AppendRow(table.Row{a.Name, a.Team, predict.FormatLapTime(a.AverageTime)})
	}
	d.Render()

	tm := newTable(w, "Average time per team")
	tm.AppendHeader(table.Row{"Team", "Average"})
	for _, a := range data.TeamData {
		tm.AppendRow(table.Row{a.Name, predict.FormatLapTime(a.AverageTime)})
	}
	tm.Render()
}

func PerformanceTables(w io.Writer, perf model.ModelPerformance) {
	m := newTable(w, "Model metrics")
	m.AppendHeader(table.Row{"MAE", "RMSE", "R²", "CV MAE", "CV R²"})
	m.AppendRow(table.Row{
		fmt.Sprintf("%.3f", perf.Metrics.MAE),
		fmt.Sprintf("%.3f", perf.Metrics.RMSE),
		fmt.Sprintf("%.3f", perf.Metrics.R2),
		fmt.Sprintf("%.3f ± %.3f", perf.CV.MAEMean, perf.CV.MAEStd),
		fmt.Sprintf("%.3f ± %.3f", perf.CV.R2Mean, perf.CV.R2Std),
	})
	m.Render()

	p := newTable(w, "Actual vs predicted")
	p.AppendHeader(table.Row{"Driver", "Circuit", "Actual", "Predicted", "Delta"})
	for _, s := range perf.Predictions {
		p.AppendRow(table.Row{
			s.Driver, s.Circuit,
			fmt.Sprintf("%.3f", s.Actual),
			fmt.Sprintf("%.3f", s.Predicted),
			fmt.Sprintf("%+.3f", s.Predicted-s.Actual),
		})
	}
	p.SetColumnConfigs([]table.ColumnConfig{
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	p.Render()
}
