package client

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/qualipredict/pkg/api/predictv1"
	"github.com/mpapenbr/qualipredict/pkg/config"
	"github.com/mpapenbr/qualipredict/pkg/grpc/server/predict"
	"github.com/mpapenbr/qualipredict/pkg/model"
	"github.com/mpapenbr/qualipredict/pkg/utils/broadcast"
)

func startServer(t *testing.T) string {
	t.Helper()
	publish := make(chan *model.PredictionRun)
	feed := broadcast.NewBroadcastServer("test", publish)
	path, handler := predictv1.NewPredictionServiceHandler(
		predict.NewServer(predict.WithFeed(publish, feed)))
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	ts := httptest.NewServer(mux)
	t.Cleanup(func() {
		ts.Close()
		feed.Close()
	})
	config.WaitForServices = "2s"
	return ts.URL
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewClientCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func TestClientPredictSelect(t *testing.T) {
	url := startServer(t)
	out, err := execute(t, "predict", "--addr", url,
		"--circuit", "Singapore", "--select", "$.entries[0].gap")
	require.NoError(t, err)
	assert.Equal(t, `"POLE"`, strings.TrimSpace(out))

	out, err = execute(t, "predict", "--addr", url,
		"--circuit", "Singapore", "--select", "$.entries[*].position")
	require.NoError(t, err)
	assert.Len(t, strings.Fields(out), 20)
}

func TestClientPredictTable(t *testing.T) {
	url := startServer(t)
	out, err := execute(t, "predict", "--addr", url, "--circuit", "Mexico")
	require.NoError(t, err)
	assert.Contains(t, out, "Circuit: Mexico")
	assert.Contains(t, out, "Gap to Pole")
}

func TestClientPredictInvalidWeight(t *testing.T) {
	url := startServer(t)
	_, err := execute(t, "predict", "--addr", url, "--ml-weight", "3")
	require.Error(t, err)
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestClientCircuits(t *testing.T) {
	url := startServer(t)
	out, err := execute(t, "circuits", "--addr", url, "--select", "$.circuits[23].name")
	require.NoError(t, err)
	assert.Equal(t, `"Abu Dhabi"`, strings.TrimSpace(out))
}

func TestWatch(t *testing.T) {
	url := startServer(t)
	selector = ""
	c := predictv1.NewPredictionServiceClient(http.DefaultClient, url)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var buf bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- watch(ctx, &buf, c, "Qatar", 1) }()

	var wg sync.WaitGroup
	wg.Add(1)
	stop := make(chan struct{})
	go func() {
		defer wg.Done()
		for {
			//nolint:errcheck // result is checked via the stream
			c.Predict(ctx, connect.NewRequest(&predictv1.PredictRequest{
				Circuit: "Qatar",
				Options: model.Options{ModelType: model.ModelTypeML, Weather: model.WeatherDry},
			}))
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-time.After(20 * time.Millisecond):
			}
		}
	}()
	err := <-done
	close(stop)
	wg.Wait()
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Qatar")
	assert.Contains(t, buf.String(), "ML Only")
}

func TestSelect(t *testing.T) {
	run := &model.PredictionRun{
		Circuit: "Japan",
		Entries: []model.Entry{{Position: 1, Driver: "Max Verstappen", RawTime: 88.5}},
	}
	var buf bytes.Buffer
	require.NoError(t, Select(&buf, run, "$.entries[0].driver"))
	assert.Equal(t, "\"Max Verstappen\"\n", buf.String())

	buf.Reset()
	require.NoError(t, Select(&buf, run, "$.circuit"))
	assert.Equal(t, "\"Japan\"\n", buf.String())

	assert.ErrorIs(t, Select(&buf, run, "$.nothing"), ErrNoMatch)
	assert.Error(t, Select(&buf, run, "$[[["))
}
