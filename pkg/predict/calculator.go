package predict

import (
	"math/rand/v2"
	"slices"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/pkg/model"
	"github.com/mpapenbr/qualipredict/pkg/refdata"
)

const (
	DefaultBaseTime = 90.0
	jitterMin       = 0.995
	jitterSpan      = 0.02
)

// Random provides uniformly distributed values in [0,1).
// Implementations must be safe for concurrent use if the Calculator is shared.
type Random interface {
	Float64() float64
}

type globalRandom struct{}

func (globalRandom) Float64() float64 { return rand.Float64() }

type (
	Option     func(*Calculator)
	Calculator struct {
		tables *refdata.Tables
		random Random
		l      *log.Logger
	}
	rawResult struct {
		driver  model.Driver
		rawTime float64
	}
)

func WithTables(t *refdata.Tables) Option {
	return func(c *Calculator) {
		c.tables = t
	}
}

// WithRandom sets the jitter source. A nil source keeps the default.
func WithRandom(r Random) Option {
	return func(c *Calculator) {
		if r != nil {
			c.random = r
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Calculator) {
		c.l = l
	}
}

func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{
		random: globalRandom{},
		l:      log.Default().Named("predict"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tables == nil {
		c.tables = refdata.Default()
	}
	return c
}

// EffectiveModel returns the blend strategy that Compute uses for opts.
// Unknown model types resolve to hybrid. If UsePerformance is explicitly
// false the performance factors are not used at all.
func EffectiveModel(opts model.Options) model.ModelType {
	if !opts.UsePerformance.GetOr(true) {
		return model.ModelTypeML
	}
	switch opts.ModelType {
	case model.ModelTypePerformance, model.ModelTypeML:
		return opts.ModelType
	default:
		return model.ModelTypeHybrid
	}
}

// Compute returns the predicted grid for circuit, sorted by lap time.
// Unknown circuits, weather tags and drivers fall back to default values.
// MLWeight is used as is, callers have to keep it within [0,1].
func (c *Calculator) Compute(circuit string, opts model.Options) []model.Entry {
	base, ok := c.tables.BaseTime(circuit)
	if !ok {
		base = DefaultBaseTime
	}
	weatherFactor, ok := c.tables.WeatherFactor(opts.Weather)
	if !ok {
		weatherFactor = 1.0
	}
	mode := EffectiveModel(opts)
	c.l.Debug("compute",
		log.String("circuit", circuit),
		log.Float64("base", base),
		log.Float64("weather", weatherFactor),
		log.String("model", string(mode)),
		log.Float64("mlWeight", opts.MLWeight))

	roster := c.tables.Roster()
	raw := make([]rawResult, 0, len(roster))
	for _, d := range roster {
		teamFactor, ok := c.tables.TeamFactor(d.Team)
		if !ok {
			teamFactor = 1.0
		}
		driverFactor, ok := c.tables.DriverFactor(d.Name)
		if !ok {
			driverFactor = 1.0
		}
		r := jitterMin + c.random.Float64()*jitterSpan

		var t float64
		switch mode {
		case model.ModelTypePerformance:
			t = base * teamFactor * driverFactor * weatherFactor * r
		case model.ModelTypeML:
			t = base * weatherFactor * r
		default:
			ml := base * weatherFactor * r
			perf := base * teamFactor * driverFactor * weatherFactor * r
			t = ml*opts.MLWeight + perf*(1-opts.MLWeight)
		}
		raw = append(raw, rawResult{driver: d, rawTime: t})
	}

	slices.SortStableFunc(raw, func(a, b rawResult) int {
		switch {
		case a.rawTime < b.rawTime:
			return -1
		case a.rawTime > b.rawTime:
			return 1
		default:
			return 0
		}
	})

	ret := make([]model.Entry, len(raw))
	if len(raw) == 0 {
		return ret
	}
	pole := raw[0].rawTime
	for i, item := range raw {
		gap := PoleGap
		if i > 0 {
			gap = FormatGap(item.rawTime - pole)
		}
		ret[i] = model.Entry{
			Position: i + 1,
			Driver:   item.driver.Name,
			Team:     item.driver.Team,
			Time:     FormatLapTime(item.rawTime),
			Gap:      gap,
			RawTime:  item.rawTime,
		}
	}
	return ret
}
