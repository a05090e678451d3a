package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/aarondl/opt/omit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/qualipredict/pkg/model"
	"github.com/mpapenbr/qualipredict/pkg/refdata"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrUnknownFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettings(t *testing.T) {
	tests := []struct {
		name string
		opts model.Options
		want []string
		not  []string
	}{
		{
			name: "hybrid",
			opts: model.Options{
				ModelType: model.ModelTypeHybrid, MLModel: model.MLForest,
				MLWeight: 0.7, Weather: model.WeatherDamp,
			},
			want: []string{
				"Circuit: Japan", "Model: Hybrid", "Algorithm: Random Forest",
				"ML Weight: 70%", "Weather: Damp",
			},
		},
		{
			name: "performance only",
			opts: model.Options{
				ModelType: model.ModelTypePerformance, MLModel: model.MLGBM,
				Weather: model.WeatherWet,
			},
			want: []string{"Model: Performance Only", "Algorithm: Gradient Boosting", "Weather: Wet"},
			not:  []string{"ML Weight"},
		},
		{
			name: "performance disabled",
			opts: model.Options{
				ModelType: model.ModelTypeHybrid, MLModel: model.MLRidge,
				UsePerformance: omit.From(false), Weather: model.WeatherDry,
			},
			want: []string{"Performance factors: off", "Algorithm: Ridge Regression", "Model: ML Only"},
			not:  []string{"ML Weight", "Model: Hybrid"},
		},
		{
			name: "performance model with factors disabled",
			opts: model.Options{
				ModelType: model.ModelTypePerformance, MLModel: model.MLLinear,
				UsePerformance: omit.From(false), Weather: model.WeatherDry,
			},
			want: []string{"Model: ML Only", "Performance factors: off"},
			not:  []string{"Performance Only"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Settings(&buf, "Japan", tt.opts)
			for _, s := range tt.want {
				assert.Contains(t, buf.String(), s)
			}
			for _, s := range tt.not {
				assert.NotContains(t, buf.String(), s)
			}
		})
	}
}

func TestPredictionTable(t *testing.T) {
	run := &model.PredictionRun{
		Circuit: "Monaco",
		Entries: []model.Entry{
			{Position: 1, Driver: "Charles Leclerc", Team: "Ferrari", Time: "1:10.123", Gap: "POLE"},
			{Position: 2, Driver: "Lando Norris", Team: "McLaren", Time: "1:10.456", Gap: "+0.333s"},
		},
	}
	var buf bytes.Buffer
	PredictionTable(&buf, run)
	out := buf.String()
	for _, s := range []string{
		"Monaco", "Gap to Pole", "Charles Leclerc", "POLE", "+0.333s", "1:10.456",
	} {
		assert.Contains(t, out, s)
	}
	assert.Less(t, strings.Index(out, "Charles Leclerc"), strings.Index(out, "Lando Norris"))
}

func TestReferenceTables(t *testing.T) {
	tables := refdata.Default()
	var buf bytes.Buffer
	CircuitsTable(&buf, tables.Circuits())
	assert.Contains(t, buf.String(), "Japan")
	assert.Contains(t, buf.String(), "Base Time")

	buf.Reset()
	DriversTable(&buf, tables.RosterWithColors())
	assert.Contains(t, buf.String(), "Max Verstappen")

	buf.Reset()
	HistoricalTables(&buf, tables.HistoricalSummary())
	assert.Contains(t, buf.String(), "Average time per team")

	buf.Reset()
	PerformanceTables(&buf, tables.ModelPerformance())
	assert.Contains(t, buf.String(), "Actual vs predicted")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, model.Entry{Position: 1, Driver: "x", Gap: "POLE"}))
	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "POLE", got["gap"])
	assert.InDelta(t, 1, got["position"], 0)
}
