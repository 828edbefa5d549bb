package config

import (
	"log/slog"
	"testing"

	"github.com/getcharzp/sam2-embed"
	"github.com/getcharzp/sam2-embed/sam2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	def := sam2.DefaultConfig()
	cfg := Load()

	assert.Equal(t, def.CheckpointPath, cfg.CheckpointPath)
	assert.Equal(t, "sam2_hiera_l.yaml", cfg.ModelConfig)
	assert.Equal(t, "auto", cfg.Device)
	assert.Zero(t, cfg.NumThreads)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "sam2-embed", cfg.ServiceName)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SAM2_CHECKPOINT", "/models/enc.onnx")
	t.Setenv("SAM2_MODEL_CFG", "sam2_hiera_t.yaml")
	t.Setenv("SAM2_DEVICE", "cpu")
	t.Setenv("SAM2_NUM_THREADS", "4")
	t.Setenv("ONNXRUNTIME_LIB_PATH", "/usr/local/lib/libonnxruntime.so")
	t.Setenv("SAM2_LOG_LEVEL", "debug")
	t.Setenv("OTEL_SERVICE_NAME", "cvat-sam2")

	cfg := Load()
	assert.Equal(t, Config{
		CheckpointPath:     "/models/enc.onnx",
		ModelConfig:        "sam2_hiera_t.yaml",
		Device:             "cpu",
		NumThreads:         4,
		OnnxRuntimeLibPath: "/usr/local/lib/libonnxruntime.so",
		LogLevel:           slog.LevelDebug,
		ServiceName:        "cvat-sam2",
	}, cfg)

	hc, err := cfg.HandlerConfig()
	require.NoError(t, err)
	assert.Equal(t, vision.DeviceCPU, hc.RequestedDevice)
	assert.Equal(t, 4, hc.NumThreads)
	assert.Equal(t, "/models/enc.onnx", hc.CheckpointPath)
}

func TestLoadFallbacks(t *testing.T) {
	t.Setenv("SAM2_NUM_THREADS", "many")
	t.Setenv("SAM2_LOG_LEVEL", "loud")

	cfg := Load()
	assert.Zero(t, cfg.NumThreads)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestHandlerConfigBadDevice(t *testing.T) {
	t.Setenv("SAM2_DEVICE", "tpu")
	_, err := Load().HandlerConfig()
	assert.Error(t, err)
}
