package predict

import (
	"context"
	"errors"
	"strings"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/pkg/api/predictv1"
	"github.com/mpapenbr/qualipredict/pkg/config"
	"github.com/mpapenbr/qualipredict/pkg/model"
	"github.com/mpapenbr/qualipredict/pkg/predict"
	"github.com/mpapenbr/qualipredict/pkg/refdata"
	"github.com/mpapenbr/qualipredict/pkg/utils/broadcast"
)

type Option func(*predictionServer)

func WithTables(t *refdata.Tables) Option {
	return func(srv *predictionServer) {
		srv.tables = t
	}
}

func WithCalculator(c *predict.Calculator) Option {
	return func(srv *predictionServer) {
		srv.calc = c
	}
}

// WithFeed sets the channel completed runs are published to and the
// broadcast server WatchPredictions subscribes to.
//
//nolint:whitespace // editor/linter
func WithFeed(
	publish chan<- *model.PredictionRun,
	feed broadcast.BroadcastServer[*model.PredictionRun],
) Option {
	return func(srv *predictionServer) {
		srv.publish = publish
		srv.feed = feed
	}
}

func WithDebugWire(arg bool) Option {
	return func(srv *predictionServer) {
		srv.debugWire = arg
	}
}

func WithLogger(l *log.Logger) Option {
	return func(srv *predictionServer) {
		srv.l = l
	}
}

type predictionServer struct {
	tables    *refdata.Tables
	calc      *predict.Calculator
	publish   chan<- *model.PredictionRun
	feed      broadcast.BroadcastServer[*model.PredictionRun]
	debugWire bool // if true, debug events affecting "wire" actions (send/receive)
	l         *log.Logger

	predictions metric.Int64Counter
	duration    metric.Float64Histogram
}

var _ predictv1.PredictionServiceHandler = (*predictionServer)(nil)

func NewServer(opts ...Option) *predictionServer {
	ret := &predictionServer{l: log.Default().Named("grpc.predict")}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tables == nil {
		ret.tables = refdata.Default()
	}
	if ret.calc == nil {
		ret.calc = predict.NewCalculator(
			predict.WithTables(ret.tables),
			predict.WithLogger(ret.l))
	}
	ret.setupMetrics()
	return ret
}

func (s *predictionServer) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("qp.predict")
	var err error
	if s.predictions, err = meter.Int64Counter("qp.predictions",
		metric.WithDescription("Number of computed predictions"),
		metric.WithUnit("{prediction}")); err != nil {
		s.l.Error("failed to register metric", log.ErrorField(err))
	}
	if s.duration, err = meter.Float64Histogram("qp.predict.duration",
		metric.WithDescription("Time spent computing a prediction"),
		metric.WithUnit("ms")); err != nil {
		s.l.Error("failed to register metric", log.ErrorField(err))
	}
}

//nolint:whitespace // can't make both editor and linter happy
func (s *predictionServer) Predict(
	ctx context.Context,
	req *connect.Request[predictv1.PredictRequest],
) (*connect.Response[predictv1.PredictResponse], error) {
	if err := predict.Validate(req.Msg.Circuit, req.Msg.Options); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	start := time.Now()
	entries := s.calc.Compute(req.Msg.Circuit, req.Msg.Options)
	effective := predict.EffectiveModel(req.Msg.Options)
	elapsed := time.Since(start)

	attrs := metric.WithAttributes(attribute.String("model", string(effective)))
	if s.predictions != nil {
		s.predictions.Add(ctx, 1, attrs)
	}
	if s.duration != nil {
		s.duration.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
	}

	run := &model.PredictionRun{
		ID:             uuid.NewString(),
		Circuit:        req.Msg.Circuit,
		Options:        req.Msg.Options,
		EffectiveModel: effective,
		CreatedAt:      start.UTC(),
		Entries:        entries,
	}
	s.l.Debug("prediction computed",
		log.String("id", run.ID),
		log.String("circuit", run.Circuit),
		log.String("model", string(effective)),
		log.Duration("elapsed", elapsed))

	if err := s.publishRun(ctx, run); err != nil {
		return nil, connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewResponse(run), nil
}

// publishRun hands the run to the feed. Nothing is published when no feed
// is configured.
func (s *predictionServer) publishRun(ctx context.Context, run *model.PredictionRun) error {
	if s.publish == nil {
		return nil
	}
	select {
	case s.publish <- run:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

//nolint:whitespace // can't make both editor and linter happy
func (s *predictionServer) ListCircuits(
	ctx context.Context,
	req *connect.Request[predictv1.ListCircuitsRequest],
) (*connect.Response[predictv1.ListCircuitsResponse], error) {
	return connect.NewResponse(&predictv1.ListCircuitsResponse{
		Circuits: s.tables.Circuits(),
	}), nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *predictionServer) ListDrivers(
	ctx context.Context,
	req *connect.Request[predictv1.ListDriversRequest],
) (*connect.Response[predictv1.ListDriversResponse], error) {
	return connect.NewResponse(&predictv1.ListDriversResponse{
		Drivers: s.tables.RosterWithColors(),
	}), nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *predictionServer) GetHistoricalData(
	ctx context.Context,
	req *connect.Request[predictv1.GetHistoricalDataRequest],
) (*connect.Response[predictv1.GetHistoricalDataResponse], error) {
	data := s.tables.HistoricalSummary()
	return connect.NewResponse(&data), nil
}

//nolint:whitespace // can't make both editor and linter happy
func (s *predictionServer) GetModelPerformance(
	ctx context.Context,
	req *connect.Request[predictv1.GetModelPerformanceRequest],
) (*connect.Response[predictv1.GetModelPerformanceResponse], error) {
	data := s.tables.ModelPerformance()
	return connect.NewResponse(&data), nil
}

//nolint:whitespace,cyclop // can't make both editor and linter happy
func (s *predictionServer) WatchPredictions(
	ctx context.Context,
	req *connect.Request[predictv1.WatchPredictionsRequest],
	stream *connect.ServerStream[predictv1.WatchPredictionsResponse],
) error {
	if s.feed == nil {
		return connect.NewError(connect.CodeUnavailable,
			errors.New("prediction feed not configured"))
	}
	debugWire := s.debugWire
	if cfg := config.FromContext(ctx); cfg != nil {
		debugWire = debugWire || cfg.DebugWire
	}
	circuit := strings.TrimSpace(req.Msg.Circuit)
	s.l.Debug("Sending predictions", log.String("circuit", circuit))

	dataChan := s.feed.Subscribe()
	// headers go out once the subscription exists, clients wait for them
	if err := stream.Send(nil); err != nil {
		s.feed.CancelSubscription(dataChan)
		return err
	}
	for {
		select {
		case <-ctx.Done():
			s.feed.CancelSubscription(dataChan)
			s.l.Debug("WatchPredictions client gone")
			return connect.NewError(connect.CodeCanceled, ctx.Err())
		case run, ok := <-dataChan:
			if !ok {
				s.l.Debug("WatchPredictions feed closed")
				return nil
			}
			if circuit != "" && !strings.EqualFold(circuit, run.Circuit) {
				continue
			}
			if debugWire {
				s.l.Debug("Send prediction",
					log.String("id", run.ID),
					log.String("circuit", run.Circuit))
			}
			if err := stream.Send(run); err != nil {
				s.feed.CancelSubscription(dataChan)
				return err
			}
		}
	}
}
