package telemetry

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/getcharzp/sam2-embed"

var tracer trace.Tracer

// Init 设置了 OTEL_EXPORTER_OTLP_ENDPOINT 时启用 OTLP tracing, 返回关闭函数
func Init(serviceName string) func(context.Context) error {
	noop := func(context.Context) error { return nil }

	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		slog.Debug("未设置 OTEL_EXPORTER_OTLP_ENDPOINT, 不启用 OpenTelemetry")
		tracer = otel.Tracer(instrumentationName)
		return noop
	}

	ctx := context.Background()
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithInsecure(),
		otlptracegrpc.WithEndpoint(endpoint),
	)
	if err != nil {
		slog.Warn("创建 OTLP exporter 失败, 不启用 tracing", "error", err, "endpoint", endpoint)
		tracer = otel.Tracer(instrumentationName)
		return noop
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		slog.Warn("创建 resource 失败", "error", err)
		res = resource.Default()
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	UseTracerProvider(tp)

	slog.Info("已启用 OpenTelemetry tracing", "endpoint", endpoint, "service", serviceName)
	return tp.Shutdown
}

// UseTracerProvider 使用指定的 TracerProvider 创建 span
func UseTracerProvider(tp trace.TracerProvider) {
	tracer = tp.Tracer(instrumentationName)
}

// StartSpan 开始一个 span, 未初始化 tracer 时返回 ctx 中已有的 (noop) span
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}
