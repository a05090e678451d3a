package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"connectrpc.com/connect"
	"connectrpc.com/otelconnect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/pkg/api/predictv1"
	"github.com/mpapenbr/qualipredict/pkg/config"
	grpcutil "github.com/mpapenbr/qualipredict/pkg/grpc/util"
)

const pingProcedure = "/test.v1.TestService/Ping"

type (
	pingRequest  struct{}
	pingResponse struct {
		DebugWire bool `json:"debugWire"`
	}
)

func setup(t *testing.T, clientVersion string) *connect.Client[pingRequest, pingResponse] {
	t.Helper()
	otelInterceptor, err := otelconnect.NewInterceptor(
		otelconnect.WithTracerProvider(sdktrace.NewTracerProvider()))
	require.NoError(t, err)
	handler := connect.NewUnaryHandler(pingProcedure,
		func(ctx context.Context, _ *connect.Request[pingRequest]) (
			*connect.Response[pingResponse], error,
		) {
			return connect.NewResponse(&pingResponse{
				DebugWire: config.FromContext(ctx).DebugWire,
			}), nil
		},
		connect.WithCodec(predictv1.JSONCodec{}),
		connect.WithInterceptors(
			otelInterceptor,
			NewTraceIDInterceptor(),
			NewClientVersionInterceptor(),
			NewAppContextInterceptor(&config.Config{DebugWire: true}),
			NewRequestLogInterceptor(log.Default()),
		))
	mux := http.NewServeMux()
	mux.Handle(pingProcedure, handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	opts := []connect.ClientOption{connect.WithCodec(predictv1.JSONCodec{})}
	if clientVersion != "" {
		opts = append(opts, connect.WithInterceptors(NewClientVersionSender(clientVersion)))
	}
	return connect.NewClient[pingRequest, pingResponse](
		ts.Client(), ts.URL+pingProcedure, opts...)
}

func TestInterceptorChain(t *testing.T) {
	c := setup(t, "v1.0.0")
	res, err := c.CallUnary(context.Background(), connect.NewRequest(&pingRequest{}))
	require.NoError(t, err)
	assert.True(t, res.Msg.DebugWire)
	assert.Len(t, res.Header().Get(traceIDHeader), 32)
}

func TestClientVersionRejected(t *testing.T) {
	c := setup(t, "v0.0.1")
	_, err := c.CallUnary(context.Background(), connect.NewRequest(&pingRequest{}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeFailedPrecondition, connect.CodeOf(err))
	assert.Contains(t, err.Error(), grpcutil.RequiredClientVersion)

	var cErr *connect.Error
	require.ErrorAs(t, err, &cErr)
	assert.NotEmpty(t, cErr.Meta().Get(traceIDHeader))
}

func TestClientWithoutVersion(t *testing.T) {
	c := setup(t, "")
	_, err := c.CallUnary(context.Background(), connect.NewRequest(&pingRequest{}))
	require.NoError(t, err)
}

func TestTraceIDWithoutSpan(t *testing.T) {
	assert.Empty(t, traceID(context.Background()))
}
