package model

import (
	"strings"
	"time"

	"github.com/aarondl/opt/omit"
)

type (
	ModelType string
	MLModel   string
	Weather   string
)

const (
	ModelTypePerformance ModelType = "performance"
	ModelTypeML          ModelType = "ml"
	ModelTypeHybrid      ModelType = "hybrid"
)

const (
	MLLinear MLModel = "linear"
	MLRidge  MLModel = "ridge"
	MLForest MLModel = "rf"
	MLGBM    MLModel = "gbm"
)

const (
	WeatherDry  Weather = "dry"
	WeatherDamp Weather = "damp"
	WeatherWet  Weather = "wet"
)

// Options is the option set of a single prediction request.
// UsePerformance defaults to true when not set.
type Options struct {
	ModelType      ModelType      `json:"modelType"`
	MLModel        MLModel        `json:"mlModel,omitempty"`
	UsePerformance omit.Val[bool] `json:"usePerformance,omitzero"`
	MLWeight       float64        `json:"mlWeight"`
	Weather        Weather        `json:"weather"`
}

// Entry is one row of the predicted grid
type Entry struct {
	Position int     `json:"position"`
	Driver   string  `json:"driver"`
	Team     string  `json:"team"`
	Time     string  `json:"time"`
	Gap      string  `json:"gap"`
	RawTime  float64 `json:"rawTime"`
}

// PredictionRun is a completed prediction as delivered to subscribers
type PredictionRun struct {
	ID             string    `json:"id"`
	Circuit        string    `json:"circuit"`
	Options        Options   `json:"options"`
	EffectiveModel ModelType `json:"effectiveModel"`
	CreatedAt      time.Time `json:"createdAt"`
	Entries        []Entry   `json:"entries"`
}

func (m ModelType) DisplayName() string {
	switch m {
	case ModelTypeML:
		return "ML Only"
	case ModelTypePerformance:
		return "Performance Only"
	default:
		return "Hybrid"
	}
}

func (m MLModel) DisplayName() string {
	switch m {
	case MLLinear:
		return "Linear Regression"
	case MLRidge:
		return "Ridge Regression"
	case MLForest:
		return "Random Forest"
	default:
		return "Gradient Boosting"
	}
}

func (m MLModel) IsValid() bool {
	switch m {
	case MLLinear, MLRidge, MLForest, MLGBM:
		return true
	}
	return false
}

func (w Weather) DisplayName() string {
	if w == "" {
		return ""
	}
	return strings.ToUpper(string(w[:1])) + string(w[1:])
}
