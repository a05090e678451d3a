package config

import (
	"context"
	"errors"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/version"
)

type Telemetry struct {
	ctx    context.Context
	tracer *sdktrace.TracerProvider
	meter  *sdkmetric.MeterProvider
}

func (t *Telemetry) Shutdown() {
	ctx, cancel := context.WithTimeout(t.ctx, 5*time.Second)
	defer cancel()
	if err := t.tracer.Shutdown(ctx); err != nil {
		log.Warn("error shutting down tracer provider", log.ErrorField(err))
	}
	if err := t.meter.Shutdown(ctx); err != nil {
		log.Warn("error shutting down meter provider", log.ErrorField(err))
	}
}

func SetupTelemetry(ctx context.Context) (*Telemetry, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "qpred"),
		attribute.String("service.version", version.Version),
	)
	traceExporter, metricReader, err := createExporters(ctx)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricReader),
		sdkmetric.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	return &Telemetry{ctx: ctx, tracer: tp, meter: mp}, nil
}

//nolint:whitespace // editor/linter issue
func createExporters(ctx context.Context) (
	sdktrace.SpanExporter, sdkmetric.Reader, error,
) {
	switch TelemetryExporter {
	case "stdout":
		te, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
		if err != nil {
			return nil, nil, err
		}
		me, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stderr))
		if err != nil {
			return nil, nil, err
		}
		return te, sdkmetric.NewPeriodicReader(me,
			sdkmetric.WithInterval(time.Minute)), nil
	case "otlp", "":
		te, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(TelemetryEndpoint),
			otlptracegrpc.WithInsecure())
		if err != nil {
			return nil, nil, err
		}
		me, err := otlpmetricgrpc.New(ctx,
			otlpmetricgrpc.WithEndpoint(TelemetryEndpoint),
			otlpmetricgrpc.WithInsecure())
		if err != nil {
			return nil, nil, err
		}
		return te, sdkmetric.NewPeriodicReader(me,
			sdkmetric.WithInterval(15*time.Second)), nil
	default:
		return nil, nil, errors.New("unknown telemetry exporter: " + TelemetryExporter)
	}
}
