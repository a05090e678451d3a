package predictv1

import "github.com/mpapenbr/qualipredict/pkg/model"

type (
	PredictRequest struct {
		Circuit string        `json:"circuit"`
		Options model.Options `json:"options"`
	}
	PredictResponse = model.PredictionRun

	ListCircuitsRequest  struct{}
	ListCircuitsResponse struct {
		Circuits []model.Circuit `json:"circuits"`
	}

	ListDriversRequest  struct{}
	ListDriversResponse struct {
		Drivers []model.RosterEntry `json:"drivers"`
	}

	GetHistoricalDataRequest  struct{}
	GetHistoricalDataResponse = model.HistoricalData

	GetModelPerformanceRequest  struct{}
	GetModelPerformanceResponse = model.ModelPerformance

	// WatchPredictionsRequest selects the runs to receive. An empty circuit
	// means all circuits.
	WatchPredictionsRequest struct {
		Circuit string `json:"circuit,omitempty"`
	}
	WatchPredictionsResponse = model.PredictionRun
)
