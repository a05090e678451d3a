package util

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/pkg/config"
	grpcutil "github.com/mpapenbr/qualipredict/pkg/grpc/util"
)

const traceIDHeader = "X-Trace-ID"

// traceID returns the id of the active span or "" if there is none.
func traceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span == nil || !span.SpanContext().IsValid() {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

type traceIDInjector struct{}

// NewTraceIDInterceptor adds the X-Trace-ID header to responses (and to error
// metadata) whenever the request runs inside a valid span.
func NewTraceIDInterceptor() connect.Interceptor {
	return &traceIDInjector{}
}

//nolint:whitespace // better readability
func (i *traceIDInjector) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		id := traceID(ctx)
		res, err := next(ctx, req)
		if id == "" {
			return res, err
		}
		if err != nil {
			var cErr *connect.Error
			if errors.As(err, &cErr) {
				cErr.Meta().Set(traceIDHeader, id)
			}
			return nil, err
		}
		res.Header().Set(traceIDHeader, id)
		return res, nil
	}
}

//nolint:whitespace // editor/linter
func (i *traceIDInjector) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return next
}

//nolint:whitespace // editor/linter
func (i *traceIDInjector) WrapStreamingHandler(
	next connect.StreamingHandlerFunc,
) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if id := traceID(ctx); id != "" {
			conn.ResponseHeader().Set(traceIDHeader, id)
		}
		return next(ctx, conn)
	}
}

type configInjector struct {
	config *config.Config
}

// NewAppContextInterceptor makes the server config available to handlers via
// config.FromContext.
func NewAppContextInterceptor(cfg *config.Config) connect.Interceptor {
	return &configInjector{config: cfg}
}

//nolint:whitespace // better readability
func (i *configInjector) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return next(config.NewContext(ctx, i.config), req)
	}
}

//nolint:whitespace // editor/linter
func (i *configInjector) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return next
}

//nolint:whitespace // editor/linter
func (i *configInjector) WrapStreamingHandler(
	next connect.StreamingHandlerFunc,
) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		return next(config.NewContext(ctx, i.config), conn)
	}
}

type requestLogger struct {
	l *log.Logger
}

// NewRequestLogInterceptor logs every finished call on debug level and every
// failed call on warn level.
func NewRequestLogInterceptor(l *log.Logger) connect.Interceptor {
	return &requestLogger{l: l}
}

func (i *requestLogger) done(ctx context.Context, procedure string, start time.Time, err error) {
	fields := []log.Field{
		log.String("procedure", procedure),
		log.Duration("duration", time.Since(start)),
	}
	if id := traceID(ctx); id != "" {
		fields = append(fields, log.String("traceId", id))
	}
	if err != nil {
		i.l.Warn("call failed", append(fields,
			log.String("code", connect.CodeOf(err).String()),
			log.ErrorField(err))...)
		return
	}
	i.l.Debug("call done", fields...)
}

//nolint:whitespace // better readability
func (i *requestLogger) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		res, err := next(ctx, req)
		i.done(ctx, req.Spec().Procedure, start, err)
		return res, err
	}
}

//nolint:whitespace // editor/linter
func (i *requestLogger) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return next
}

//nolint:whitespace // editor/linter
func (i *requestLogger) WrapStreamingHandler(
	next connect.StreamingHandlerFunc,
) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		err := next(ctx, conn)
		i.done(ctx, conn.Spec().Procedure, start, err)
		return err
	}
}

type clientVersionCheck struct{}

// NewClientVersionInterceptor rejects calls from clients older than
// grpcutil.RequiredClientVersion.
func NewClientVersionInterceptor() connect.Interceptor {
	return &clientVersionCheck{}
}

func (i *clientVersionCheck) check(h http.Header) error {
	v := h.Get(grpcutil.ClientVersionHeader)
	if grpcutil.CheckClientVersion(v) {
		return nil
	}
	return connect.NewError(connect.CodeFailedPrecondition,
		fmt.Errorf("client version %s not supported, need %s or newer",
			v, grpcutil.RequiredClientVersion))
}

//nolint:whitespace // better readability
func (i *clientVersionCheck) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if err := i.check(req.Header()); err != nil {
			return nil, err
		}
		return next(ctx, req)
	}
}

//nolint:whitespace // editor/linter
func (i *clientVersionCheck) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return next
}

//nolint:whitespace // editor/linter
func (i *clientVersionCheck) WrapStreamingHandler(
	next connect.StreamingHandlerFunc,
) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := i.check(conn.RequestHeader()); err != nil {
			return err
		}
		return next(ctx, conn)
	}
}

type clientVersionSender struct {
	version string
}

// NewClientVersionSender adds the client version header to outgoing calls.
func NewClientVersionSender(version string) connect.Interceptor {
	return &clientVersionSender{version: version}
}

//nolint:whitespace // better readability
func (i *clientVersionSender) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		req.Header().Set(grpcutil.ClientVersionHeader, i.version)
		return next(ctx, req)
	}
}

//nolint:whitespace // editor/linter
func (i *clientVersionSender) WrapStreamingClient(
	next connect.StreamingClientFunc,
) connect.StreamingClientFunc {
	return func(ctx context.Context, spec connect.Spec) connect.StreamingClientConn {
		conn := next(ctx, spec)
		conn.RequestHeader().Set(grpcutil.ClientVersionHeader, i.version)
		return conn
	}
}

//nolint:whitespace // editor/linter
func (i *clientVersionSender) WrapStreamingHandler(
	next connect.StreamingHandlerFunc,
) connect.StreamingHandlerFunc {
	return next
}
