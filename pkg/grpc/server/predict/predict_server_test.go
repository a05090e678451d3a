package predict

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/aarondl/opt/omit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/pkg/api/predictv1"
	"github.com/mpapenbr/qualipredict/pkg/config"
	"github.com/mpapenbr/qualipredict/pkg/grpc/server/util"
	"github.com/mpapenbr/qualipredict/pkg/model"
	"github.com/mpapenbr/qualipredict/pkg/predict"
	"github.com/mpapenbr/qualipredict/pkg/utils/broadcast"
)

type fixedRandom float64

func (f fixedRandom) Float64() float64 { return float64(f) }

func setupClient(t *testing.T) *predictv1.PredictionServiceClient {
	t.Helper()
	publish := make(chan *model.PredictionRun)
	feed := broadcast.NewBroadcastServer("test", publish)
	srv := NewServer(
		WithFeed(publish, feed),
		WithDebugWire(true),
		WithCalculator(predict.NewCalculator(predict.WithRandom(fixedRandom(0.5)))),
	)
	otelInterceptor, err := otelconnect.NewInterceptor(
		otelconnect.WithTracerProvider(sdktrace.NewTracerProvider()))
	require.NoError(t, err)

	mux := http.NewServeMux()
	path, handler := predictv1.NewPredictionServiceHandler(srv,
		connect.WithInterceptors(
			otelInterceptor,
			util.NewTraceIDInterceptor(),
			util.NewAppContextInterceptor(&config.Config{}),
			util.NewRequestLogInterceptor(log.Default()),
		))
	mux.Handle(path, handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ts.Close()
		feed.Close()
	})
	return predictv1.NewPredictionServiceClient(ts.Client(), ts.URL)
}

func TestPredict(t *testing.T) {
	client := setupClient(t)
	res, err := client.Predict(context.Background(), connect.NewRequest(
		&predictv1.PredictRequest{
			Circuit: "Japan",
			Options: model.Options{
				ModelType: model.ModelTypeHybrid,
				MLModel:   model.MLLinear,
				MLWeight:  0.7,
				Weather:   model.WeatherDry,
			},
		}))
	require.NoError(t, err)
	run := res.Msg
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "Japan", run.Circuit)
	assert.Equal(t, model.ModelTypeHybrid, run.EffectiveModel)
	assert.Equal(t, model.MLLinear, run.Options.MLModel)
	assert.Len(t, run.Entries, 20)
	assert.Equal(t, predict.PoleGap, run.Entries[0].Gap)
	assert.NotEmpty(t, res.Header().Get("X-Trace-ID"))
}

func TestPredictUsePerformanceFalse(t *testing.T) {
	client := setupClient(t)
	res, err := client.Predict(context.Background(), connect.NewRequest(
		&predictv1.PredictRequest{
			Circuit: "Monaco",
			Options: model.Options{
				ModelType:      model.ModelTypeHybrid,
				UsePerformance: omit.From(false),
				MLWeight:       0.5,
				Weather:        model.WeatherWet,
			},
		}))
	require.NoError(t, err)
	assert.Equal(t, model.ModelTypeML, res.Msg.EffectiveModel)
	assert.False(t, res.Msg.Options.UsePerformance.GetOr(true))
}

func TestPredictInvalidArgument(t *testing.T) {
	client := setupClient(t)
	tests := []struct {
		name string
		req  *predictv1.PredictRequest
	}{
		{
			name: "missing circuit",
			req:  &predictv1.PredictRequest{Options: model.Options{MLWeight: 0.5}},
		},
		{
			name: "blank circuit",
			req:  &predictv1.PredictRequest{Circuit: "  ", Options: model.Options{MLWeight: 0.5}},
		},
		{
			name: "negative weight",
			req:  &predictv1.PredictRequest{Circuit: "Japan", Options: model.Options{MLWeight: -0.1}},
		},
		{
			name: "weight above one",
			req:  &predictv1.PredictRequest{Circuit: "Japan", Options: model.Options{MLWeight: 1.5}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Predict(context.Background(), connect.NewRequest(tt.req))
			require.Error(t, err)
			assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
		})
	}
}

func TestPredictUnknownCircuit(t *testing.T) {
	client := setupClient(t)
	res, err := client.Predict(context.Background(), connect.NewRequest(
		&predictv1.PredictRequest{
			Circuit: "Nonexistent Circuit",
			Options: model.Options{ModelType: model.ModelTypeML, Weather: "snow"},
		}))
	require.NoError(t, err)
	assert.Len(t, res.Msg.Entries, 20)
}

func TestReferenceProcedures(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	circuits, err := client.ListCircuits(ctx,
		connect.NewRequest(&predictv1.ListCircuitsRequest{}))
	require.NoError(t, err)
	assert.Len(t, circuits.Msg.Circuits, 24)

	drivers, err := client.ListDrivers(ctx,
		connect.NewRequest(&predictv1.ListDriversRequest{}))
	require.NoError(t, err)
	require.Len(t, drivers.Msg.Drivers, 20)
	for _, d := range drivers.Msg.Drivers {
		assert.NotEmpty(t, d.TeamColor, d.Name)
	}

	hist, err := client.GetHistoricalData(ctx,
		connect.NewRequest(&predictv1.GetHistoricalDataRequest{}))
	require.NoError(t, err)
	assert.Equal(t, model.Summary{Sessions: 24, Drivers: 20, Teams: 10}, hist.Msg.Summary)

	perf, err := client.GetModelPerformance(ctx,
		connect.NewRequest(&predictv1.GetModelPerformanceRequest{}))
	require.NoError(t, err)
	assert.Len(t, perf.Msg.Predictions, 20)
}

func TestWatchPredictions(t *testing.T) {
	client := setupClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// runs published before the subscription exists are lost, so keep
	// predicting until the stream delivers something
	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			for _, c := range []string{"Monaco", "Japan"} {
				//nolint:errcheck // failures show up as missing stream data
				client.Predict(ctx, connect.NewRequest(&predictv1.PredictRequest{
					Circuit: c,
					Options: model.Options{ModelType: model.ModelTypePerformance},
				}))
			}
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	stream, err := client.WatchPredictions(ctx, connect.NewRequest(
		&predictv1.WatchPredictionsRequest{Circuit: "japan"}))
	if err != nil {
		close(stop)
		wg.Wait()
		require.NoError(t, err)
	}
	received := stream.Receive()
	close(stop)
	wg.Wait()
	require.True(t, received, "stream error: %v", stream.Err())

	run := stream.Msg()
	assert.Equal(t, "Japan", run.Circuit)
	assert.Equal(t, model.ModelTypePerformance, run.EffectiveModel)
	assert.Len(t, run.Entries, 20)
	require.NoError(t, stream.Close())
}

func TestWatchPredictionsWithoutFeed(t *testing.T) {
	srv := NewServer()
	path, handler := predictv1.NewPredictionServiceHandler(srv)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	client := predictv1.NewPredictionServiceClient(ts.Client(), ts.URL)
	stream, err := client.WatchPredictions(context.Background(),
		connect.NewRequest(&predictv1.WatchPredictionsRequest{}))
	require.NoError(t, err)
	assert.False(t, stream.Receive())
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(stream.Err()))
	require.NoError(t, stream.Close())
}
