package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/getcharzp/sam2-embed"
	"github.com/getcharzp/sam2-embed/sam2"
)

// Config sam2-embed 进程配置
type Config struct {
	CheckpointPath     string
	ModelConfig        string
	Device             string
	NumThreads         int
	OnnxRuntimeLibPath string
	LogLevel           slog.Level
	ServiceName        string
}

// Load 从环境变量读取配置, 未设置时使用 sam2.DefaultConfig
func Load() Config {
	def := sam2.DefaultConfig()
	return Config{
		CheckpointPath:     getEnv("SAM2_CHECKPOINT", def.CheckpointPath),
		ModelConfig:        getEnv("SAM2_MODEL_CFG", def.ModelConfig),
		Device:             getEnv("SAM2_DEVICE", string(def.RequestedDevice)),
		NumThreads:         getEnvInt("SAM2_NUM_THREADS", 0),
		OnnxRuntimeLibPath: getEnv("ONNXRUNTIME_LIB_PATH", def.OnnxRuntimeLibPath),
		LogLevel:           getEnvLevel("SAM2_LOG_LEVEL", slog.LevelInfo),
		ServiceName:        getEnv("OTEL_SERVICE_NAME", "sam2-embed"),
	}
}

// HandlerConfig 转换为 sam2.Handler 的配置
func (c Config) HandlerConfig() (sam2.Config, error) {
	device, err := vision.ParseDevice(c.Device)
	if err != nil {
		return sam2.Config{}, err
	}
	return sam2.Config{
		OnnxRuntimeLibPath: c.OnnxRuntimeLibPath,
		CheckpointPath:     c.CheckpointPath,
		ModelConfig:        c.ModelConfig,
		RequestedDevice:    device,
		NumThreads:         c.NumThreads,
	}, nil
}

func getEnv(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvLevel(key string, defaultVal slog.Level) slog.Level {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(strings.TrimSpace(v))); err == nil {
			return level
		}
	}
	return defaultVal
}
