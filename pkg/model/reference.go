package model

type Driver struct {
	Name string `json:"name" yaml:"name"`
	Team string `json:"team" yaml:"team"`
}

type RosterEntry struct {
	Name      string `json:"name"`
	Team      string `json:"team"`
	TeamColor string `json:"teamColor"`
}

type Circuit struct {
	Name     string  `json:"name" yaml:"name"`
	Flag     string  `json:"flag" yaml:"flag"`
	BaseTime float64 `json:"baseTime" yaml:"baseTime"`
}

type (
	HistoricalData struct {
		Summary     Summary         `json:"summary" yaml:"summary"`
		CircuitData []NamedAverage  `json:"circuitData" yaml:"circuitData"`
		DriverData  []DriverAverage `json:"driverData" yaml:"driverData"`
		TeamData    []NamedAverage  `json:"teamData" yaml:"teamData"`
	}
	Summary struct {
		Sessions int `json:"sessions" yaml:"sessions"`
		Drivers  int `json:"drivers" yaml:"drivers"`
		Teams    int `json:"teams" yaml:"teams"`
	}
	NamedAverage struct {
		Name        string  `json:"name" yaml:"name"`
		AverageTime float64 `json:"averageTime" yaml:"averageTime"`
	}
	DriverAverage struct {
		Name        string  `json:"name" yaml:"name"`
		Team        string  `json:"team" yaml:"team"`
		AverageTime float64 `json:"averageTime" yaml:"averageTime"`
	}
)

//nolint:tagliatelle // field names as used by the dashboard
type (
	ModelPerformance struct {
		Metrics     Metrics            `json:"metrics" yaml:"metrics"`
		CV          CrossValidation    `json:"cv" yaml:"cv"`
		Predictions []PredictionSample `json:"predictions" yaml:"predictions"`
	}
	Metrics struct {
		MAE  float64 `json:"mae" yaml:"mae"`
		RMSE float64 `json:"rmse" yaml:"rmse"`
		R2   float64 `json:"r2" yaml:"r2"`
	}
	CrossValidation struct {
		MAEMean float64 `json:"mae_mean" yaml:"mae_mean"`
		MAEStd  float64 `json:"mae_std" yaml:"mae_std"`
		R2Mean  float64 `json:"r2_mean" yaml:"r2_mean"`
		R2Std   float64 `json:"r2_std" yaml:"r2_std"`
	}
	PredictionSample struct {
		Driver    string  `json:"driver" yaml:"driver"`
		Circuit   string  `json:"circuit" yaml:"circuit"`
		Actual    float64 `json:"actual" yaml:"actual"`
		Predicted float64 `json:"predicted" yaml:"predicted"`
	}
)
