package predictv1

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const PredictionServiceName = "qualipredict.v1.PredictionService"

const (
	PredictProcedure             = "/qualipredict.v1.PredictionService/Predict"
	ListCircuitsProcedure        = "/qualipredict.v1.PredictionService/ListCircuits"
	ListDriversProcedure         = "/qualipredict.v1.PredictionService/ListDrivers"
	GetHistoricalDataProcedure   = "/qualipredict.v1.PredictionService/GetHistoricalData"
	GetModelPerformanceProcedure = "/qualipredict.v1.PredictionService/GetModelPerformance"
	WatchPredictionsProcedure    = "/qualipredict.v1.PredictionService/WatchPredictions"
)

//nolint:lll // interface
type PredictionServiceHandler interface {
	Predict(context.Context, *connect.Request[PredictRequest]) (*connect.Response[PredictResponse], error)
	ListCircuits(context.Context, *connect.Request[ListCircuitsRequest]) (*connect.Response[ListCircuitsResponse], error)
	ListDrivers(context.Context, *connect.Request[ListDriversRequest]) (*connect.Response[ListDriversResponse], error)
	GetHistoricalData(context.Context, *connect.Request[GetHistoricalDataRequest]) (*connect.Response[GetHistoricalDataResponse], error)
	GetModelPerformance(context.Context, *connect.Request[GetModelPerformanceRequest]) (*connect.Response[GetModelPerformanceResponse], error)
	WatchPredictions(context.Context, *connect.Request[WatchPredictionsRequest], *connect.ServerStream[WatchPredictionsResponse]) error
}

// NewPredictionServiceHandler builds an HTTP handler for all procedures of
// the service. The JSON codec is always installed.
//
//nolint:funlen // handler table
func NewPredictionServiceHandler(
	svc PredictionServiceHandler,
	opts ...connect.HandlerOption,
) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
	readOnly := append(
		[]connect.HandlerOption{connect.WithIdempotency(connect.IdempotencyNoSideEffects)},
		opts...)
	handlers := map[string]http.Handler{
		PredictProcedure: connect.NewUnaryHandler(
			PredictProcedure, svc.Predict, opts...),
		ListCircuitsProcedure: connect.NewUnaryHandler(
			ListCircuitsProcedure, svc.ListCircuits, readOnly...),
		ListDriversProcedure: connect.NewUnaryHandler(
			ListDriversProcedure, svc.ListDrivers, readOnly...),
		GetHistoricalDataProcedure: connect.NewUnaryHandler(
			GetHistoricalDataProcedure, svc.GetHistoricalData, readOnly...),
		GetModelPerformanceProcedure: connect.NewUnaryHandler(
			GetModelPerformanceProcedure, svc.GetModelPerformance, readOnly...),
		WatchPredictionsProcedure: connect.NewServerStreamHandler(
			WatchPredictionsProcedure, svc.WatchPredictions, opts...),
	}
	prefix := "/" + PredictionServiceName + "/"
	return prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

//nolint:lll // readability
type PredictionServiceClient struct {
	predict             *connect.Client[PredictRequest, PredictResponse]
	listCircuits        *connect.Client[ListCircuitsRequest, ListCircuitsResponse]
	listDrivers         *connect.Client[ListDriversRequest, ListDriversResponse]
	getHistoricalData   *connect.Client[GetHistoricalDataRequest, GetHistoricalDataResponse]
	getModelPerformance *connect.Client[GetModelPerformanceRequest, GetModelPerformanceResponse]
	watchPredictions    *connect.Client[WatchPredictionsRequest, WatchPredictionsResponse]
}

//nolint:whitespace // editor/linter issue
func NewPredictionServiceClient(
	httpClient connect.HTTPClient,
	baseURL string,
	opts ...connect.ClientOption,
) *PredictionServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(JSONCodec{})}, opts...)
	return &PredictionServiceClient{
		predict: connect.NewClient[PredictRequest, PredictResponse](
			httpClient, baseURL+PredictProcedure, opts...),
		listCircuits: connect.NewClient[ListCircuitsRequest, ListCircuitsResponse](
			httpClient, baseURL+ListCircuitsProcedure, opts...),
		listDrivers: connect.NewClient[ListDriversRequest, ListDriversResponse](
			httpClient, baseURL+ListDriversProcedure, opts...),
		getHistoricalData: connect.NewClient[GetHistoricalDataRequest, GetHistoricalDataResponse](
			httpClient, baseURL+GetHistoricalDataProcedure, opts...),
		getModelPerformance: connect.NewClient[GetModelPerformanceRequest, GetModelPerformanceResponse](
			httpClient, baseURL+GetModelPerformanceProcedure, opts...),
		watchPredictions: connect.NewClient[WatchPredictionsRequest, WatchPredictionsResponse](
			httpClient, baseURL+WatchPredictionsProcedure, opts...),
	}
}

//nolint:whitespace // editor/linter issue
func (c *PredictionServiceClient) Predict(
	ctx context.Context, req *connect.Request[PredictRequest],
) (*connect.Response[PredictResponse], error) {
	return c.predict.CallUnary(ctx, req)
}

//nolint:whitespace // editor/linter issue
func (c *PredictionServiceClient) ListCircuits(
	ctx context.Context, req *connect.Request[ListCircuitsRequest],
) (*connect.Response[ListCircuitsResponse], error) {
	return c.listCircuits.CallUnary(ctx, req)
}

//nolint:whitespace // editor/linter issue
func (c *PredictionServiceClient) ListDrivers(
	ctx context.Context, req *connect.Request[ListDriversRequest],
) (*connect.Response[ListDriversResponse], error) {
	return c.listDrivers.CallUnary(ctx, req)
}

//nolint:whitespace // editor/linter issue
func (c *PredictionServiceClient) GetHistoricalData(
	ctx context.Context, req *connect.Request[GetHistoricalDataRequest],
) (*connect.Response[GetHistoricalDataResponse], error) {
	return c.getHistoricalData.CallUnary(ctx, req)
}

//nolint:whitespace // editor/linter issue
func (c *PredictionServiceClient) GetModelPerformance(
	ctx context.Context, req *connect.Request[GetModelPerformanceRequest],
) (*connect.Response[GetModelPerformanceResponse], error) {
	return c.getModelPerformance.CallUnary(ctx, req)
}

//nolint:whitespace // editor/linter issue
func (c *PredictionServiceClient) WatchPredictions(
	ctx context.Context, req *connect.Request[WatchPredictionsRequest],
) (*connect.ServerStreamForClient[WatchPredictionsResponse], error) {
	return c.watchPredictions.CallServerStream(ctx, req)
}
