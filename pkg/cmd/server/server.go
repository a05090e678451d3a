package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // only served on the profiling port
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"connectrpc.com/grpchealth"
	"connectrpc.com/otelconnect"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/pkg/api/predictv1"
	cmdutil "github.com/mpapenbr/qualipredict/pkg/cmd/util"
	"github.com/mpapenbr/qualipredict/pkg/config"
	"github.com/mpapenbr/qualipredict/pkg/grpc/server/predict"
	"github.com/mpapenbr/qualipredict/pkg/grpc/server/util"
	"github.com/mpapenbr/qualipredict/pkg/model"
	natspub "github.com/mpapenbr/qualipredict/pkg/publish/nats"
	"github.com/mpapenbr/qualipredict/pkg/refdata"
	"github.com/mpapenbr/qualipredict/pkg/utils"
	"github.com/mpapenbr/qualipredict/pkg/utils/broadcast"
)

var appConfig config.Config // holds processed config values

func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "starts the prediction API server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			appConfig = config.Config{DebugWire: appConfig.DebugWire}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.ServerAddr,
		"addr",
		"a",
		"localhost:8080",
		"API server listen address")
	cmd.Flags().StringVar(&config.TLSCertFile,
		"tls-cert-file",
		"",
		"if set together with --tls-key-file the server uses TLS (reloaded on change)")
	cmd.Flags().StringVar(&config.TLSKeyFile,
		"tls-key-file",
		"",
		"private key for --tls-cert-file")
	cmd.Flags().StringVar(&config.TLSCAFile,
		"tls-ca-file",
		"",
		"CA file used to verify client certificates")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data")
	cmd.Flags().StringVar(&config.TelemetryExporter,
		"telemetry-exporter",
		"otlp",
		"telemetry exporter (otlp, stdout)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().StringVar(&config.NatsURL,
		"nats-url",
		"",
		"if set, prediction runs are published to this NATS server")
	cmd.Flags().StringVar(&config.NatsSubjectPrefix,
		"nats-subject-prefix",
		natspub.DefaultSubjectPrefix,
		"subject prefix for published prediction runs")
	cmd.Flags().StringVar(&config.NatsKVBucket,
		"nats-kv-bucket",
		"",
		"if set, the latest run per circuit is stored in this JetStream KV bucket")
	cmd.Flags().BoolVar(&appConfig.DebugWire,
		"debug-wire",
		false,
		"if true and log level is debug, every streamed prediction is logged")
	return cmd
}

//nolint:funlen,cyclop // startup sequence
func startServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // profiling only
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	if err := cmdutil.WaitForServices(ctx, utils.ExtractFromNatsURL(config.NatsURL)); err != nil {
		log.Error("required services not ready", log.ErrorField(err))
		return err
	}

	var telemetry *config.Telemetry
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		var err error
		if telemetry, err = config.SetupTelemetry(ctx); err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}
	defer func() {
		if telemetry != nil {
			telemetry.Shutdown()
		}
	}()

	publish := make(chan *model.PredictionRun)
	feed := broadcast.NewBroadcastServer("predictions", publish,
		broadcast.WithLogger[*model.PredictionRun](log.Default().Named("broadcast")))
	defer feed.Close()

	if config.NatsURL != "" {
		nc, err := nats.Connect(config.NatsURL, nats.Name("qpred"))
		if err != nil {
			log.Error("could not connect to nats", log.ErrorField(err))
			return err
		}
		defer nc.Close()
		pubOpts := []natspub.Option{natspub.WithSubjectPrefix(config.NatsSubjectPrefix)}
		if config.NatsKVBucket != "" {
			kv, kvErr := createKeyValue(ctx, nc, config.NatsKVBucket)
			if kvErr != nil {
				log.Error("could not create kv bucket", log.ErrorField(kvErr))
				return kvErr
			}
			pubOpts = append(pubOpts, natspub.WithKeyValue(kv))
		}
		publisher := natspub.NewPublisher(nc, feed, pubOpts...)
		publisher.Start(ctx)
		log.Info("Publishing predictions to nats",
			log.String("url", config.NatsURL),
			log.String("prefix", config.NatsSubjectPrefix))
	}

	mux, err := registerServices(publish, feed)
	if err != nil {
		log.Error("server could not be started", log.ErrorField(err))
		return err
	}

	tlsConfig, err := newTLSConfig(ctx,
		config.TLSCertFile, config.TLSKeyFile, config.TLSCAFile)
	if err != nil {
		log.Error("could not setup TLS", log.ErrorField(err))
		return err
	}
	//nolint:gosec // streams are long-lived, no global timeouts
	server := &http.Server{
		Addr:      config.ServerAddr,
		Handler:   h2c.NewHandler(newCORS().Handler(mux), &http2.Server{}),
		TLSConfig: tlsConfig,
	}
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting API server",
			log.String("addr", config.ServerAddr),
			log.Bool("tls", tlsConfig != nil))
		if tlsConfig != nil {
			errChan <- server.ListenAndServeTLS("", "")
			return
		}
		errChan <- server.ListenAndServe()
	}()
	setupGoRoutinesDump()

	select {
	case err := <-errChan:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server could not be started", log.ErrorField(err))
			return err
		}
	case <-ctx.Done():
		log.Debug("Got signal, shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx, server, feed, publish); err != nil {
			log.Warn("error during shutdown", log.ErrorField(err))
		}
	}
	log.Info("Server terminated")
	return nil
}

// shutdown closes the feed first so open WatchPredictions streams end.
// Runs published by in-flight Predict calls are discarded until the server
// is down.
//
//nolint:whitespace // editor/linter issue
func shutdown(
	ctx context.Context,
	server *http.Server,
	feed broadcast.BroadcastServer[*model.PredictionRun],
	publish <-chan *model.PredictionRun,
) error {
	feed.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case <-publish:
			case <-done:
				return
			}
		}
	}()
	return server.Shutdown(ctx)
}

func registerServices(
	publish chan<- *model.PredictionRun,
	feed broadcast.BroadcastServer[*model.PredictionRun],
) (*http.ServeMux, error) {
	mux := http.NewServeMux()
	myOtel, err := otelconnect.NewInterceptor()
	if err != nil {
		return nil, err
	}
	srv := predict.NewServer(
		predict.WithTables(refdata.Default()),
		predict.WithFeed(publish, feed),
		predict.WithDebugWire(appConfig.DebugWire),
	)
	path, handler := predictv1.NewPredictionServiceHandler(srv,
		connect.WithInterceptors(
			myOtel,
			util.NewTraceIDInterceptor(),
			util.NewClientVersionInterceptor(),
			util.NewAppContextInterceptor(&appConfig),
			util.NewRequestLogInterceptor(log.Default().Named("grpc")),
		))
	mux.Handle(path, handler)
	mux.Handle(grpchealth.NewHandler(
		grpchealth.NewStaticChecker(predictv1.PredictionServiceName)))
	return mux, nil
}

//nolint:whitespace // editor/linter issue
func createKeyValue(
	ctx context.Context, nc *nats.Conn, bucket string,
) (jetstream.KeyValue, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	return js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "latest prediction run per circuit",
		History:     1,
	})
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func newCORS() *cors.Cors {
	// browser clients of the dashboard may run on any origin
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{
			"Accept",
			"Accept-Encoding",
			"Accept-Post",
			"Connect-Accept-Encoding",
			"Connect-Content-Encoding",
			"Content-Encoding",
			"Grpc-Accept-Encoding",
			"Grpc-Encoding",
			"Grpc-Message",
			"Grpc-Status",
			"Grpc-Status-Details-Bin",
			"X-Trace-ID",
		},
		MaxAge: int(2 * time.Hour / time.Second),
	})
}
