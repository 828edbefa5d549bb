package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	meterOnce sync.Once

	encoderLatency metric.Float64Histogram
	encoderErrors  metric.Int64Counter
	handleRequests metric.Int64Counter
)

func initMeter() {
	meterOnce.Do(func() {
		meter := otel.Meter(instrumentationName)

		var err error
		if encoderLatency, err = meter.Float64Histogram("sam2.encoder.latency_ms"); err != nil {
			slog.Warn("创建 metric 失败", "name", "sam2.encoder.latency_ms", "error", err)
		}
		if encoderErrors, err = meter.Int64Counter("sam2.encoder.errors"); err != nil {
			slog.Warn("创建 metric 失败", "name", "sam2.encoder.errors", "error", err)
		}
		if handleRequests, err = meter.Int64Counter("sam2.handle.requests"); err != nil {
			slog.Warn("创建 metric 失败", "name", "sam2.handle.requests", "error", err)
		}
	})
}

// ObserveEncoderLatency 记录一次 encoder 推理耗时, result 为 "ok" 或 "error"
func ObserveEncoderLatency(ctx context.Context, model, device, result string, d time.Duration) {
	initMeter()
	if encoderLatency == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("device", device),
		attribute.String("result", result),
	)
	encoderLatency.Record(ctx, float64(d.Microseconds())/1000, attrs)
	if result == "error" && encoderErrors != nil {
		encoderErrors.Add(ctx, 1, attrs)
	}
}

// RecordHandle 记录一次 Handle 调用, result 为 "ok" 或 "error"
func RecordHandle(ctx context.Context, model, result string) {
	initMeter()
	if handleRequests == nil {
		return
	}
	handleRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("model", model),
		attribute.String("result", result),
	))
}
