package refdata

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/qualipredict/pkg/model"
)

const DefaultTeamColor = "#FFFFFF"

//go:embed reference.yaml
var embedded []byte

var (
	ErrEmptyRoster     = errors.New("roster is empty")
	ErrDuplicateDriver = errors.New("duplicate driver in roster")
	ErrMissingDry      = errors.New("weather factors must contain dry")
)

type (
	// Document is the yaml representation of the reference data
	Document struct {
		Roster           []model.Driver         `yaml:"roster"`
		Circuits         []model.Circuit        `yaml:"circuits"`
		TeamFactors      map[string]float64     `yaml:"teamFactors"`
		DriverFactors    map[string]float64     `yaml:"driverFactors"`
		WeatherFactors   map[string]float64     `yaml:"weatherFactors"`
		TeamColors       map[string]string      `yaml:"teamColors"`
		Historical       model.HistoricalData   `yaml:"historical"`
		ModelPerformance model.ModelPerformance `yaml:"modelPerformance"`
	}
	// Tables holds the read-only lookup tables. Accessors return copies.
	Tables struct {
		doc       Document
		baseTimes map[string]float64
	}
)

var (
	defaultMu     sync.RWMutex
	defaultTables *Tables
	loadEmbedded  = sync.OnceValue(func() *Tables {
		t, err := Load(bytes.NewReader(embedded))
		if err != nil {
			panic(fmt.Sprintf("embedded reference data: %v", err))
		}
		return t
	})
)

// Default returns the tables used when nothing else is configured.
func Default() *Tables {
	defaultMu.RLock()
	t := defaultTables
	defaultMu.RUnlock()
	if t != nil {
		return t
	}
	return loadEmbedded()
}

// SetDefault replaces the default tables. Intended to be called once during startup.
func SetDefault(t *Tables) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultTables = t
}

func Load(r io.Reader) (*Tables, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode reference data: %w", err)
	}
	return FromDocument(doc)
}

func LoadFile(path string) (*Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func FromDocument(doc Document) (*Tables, error) {
	if len(doc.Roster) == 0 {
		return nil, ErrEmptyRoster
	}
	if dups := lo.FindDuplicatesBy(doc.Roster,
		func(d model.Driver) string { return d.Name }); len(dups) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateDriver, dups[0].Name)
	}
	if _, ok := doc.WeatherFactors[string(model.WeatherDry)]; !ok {
		return nil, ErrMissingDry
	}
	doc = doc.clone()
	return &Tables{
		doc: doc,
		baseTimes: lo.SliceToMap(doc.Circuits,
			func(c model.Circuit) (string, float64) { return c.Name, c.BaseTime }),
	}, nil
}

// Document returns a deep copy of the underlying document.
func (t *Tables) Document() Document {
	return t.doc.clone()
}

func (t *Tables) BaseTime(circuit string) (float64, bool) {
	v, ok := t.baseTimes[circuit]
	return v, ok
}

func (t *Tables) TeamFactor(team string) (float64, bool) {
	v, ok := t.doc.TeamFactors[team]
	return v, ok
}

func (t *Tables) DriverFactor(driver string) (float64, bool) {
	v, ok := t.doc.DriverFactors[driver]
	return v, ok
}

func (t *Tables) WeatherFactor(weather model.Weather) (float64, bool) {
	v, ok := t.doc.WeatherFactors[string(weather)]
	return v, ok
}

func (t *Tables) TeamColor(team string) string {
	if c, ok := t.doc.TeamColors[team]; ok {
		return c
	}
	return DefaultTeamColor
}

// Roster returns the drivers in their fixed order
func (t *Tables) Roster() []model.Driver {
	return slices.Clone(t.doc.Roster)
}

func (t *Tables) RosterWithColors() []model.RosterEntry {
	return lo.Map(t.doc.Roster, func(d model.Driver, _ int) model.RosterEntry {
		return model.RosterEntry{Name: d.Name, Team: d.Team, TeamColor: t.TeamColor(d.Team)}
	})
}

func (t *Tables) Circuits() []model.Circuit {
	return slices.Clone(t.doc.Circuits)
}

func (t *Tables) HistoricalSummary() model.HistoricalData {
	return cloneHistorical(t.doc.Historical)
}

func (t *Tables) ModelPerformance() model.ModelPerformance {
	return cloneModelPerformance(t.doc.ModelPerformance)
}

// HistoricalSummary returns the historical data of the default tables
func HistoricalSummary() model.HistoricalData {
	return Default().HistoricalSummary()
}

// ModelPerformance returns the model evaluation data of the default tables
func ModelPerformance() model.ModelPerformance {
	return Default().ModelPerformance()
}

func (d Document) clone() Document {
	return Document{
		Roster:           slices.Clone(d.Roster),
		Circuits:         slices.Clone(d.Circuits),
		TeamFactors:      maps.Clone(d.TeamFactors),
		DriverFactors:    maps.Clone(d.DriverFactors),
		WeatherFactors:   maps.Clone(d.WeatherFactors),
		TeamColors:       maps.Clone(d.TeamColors),
		Historical:       cloneHistorical(d.Historical),
		ModelPerformance: cloneModelPerformance(d.ModelPerformance),
	}
}

func cloneHistorical(h model.HistoricalData) model.HistoricalData {
	return model.HistoricalData{
		Summary:     h.Summary,
		CircuitData: slices.Clone(h.CircuitData),
		DriverData:  slices.Clone(h.DriverData),
		TeamData:    slices.Clone(h.TeamData),
	}
}

func cloneModelPerformance(m model.ModelPerformance) model.ModelPerformance {
	return model.ModelPerformance{
		Metrics:     m.Metrics,
		CV:          m.CV,
		Predictions: slices.Clone(m.Predictions),
	}
}
