package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/getcharzp/sam2-embed/internal/config"
	"github.com/getcharzp/sam2-embed/internal/telemetry"
	"github.com/spf13/cobra"
)

var cfg = config.Load()

var (
	previewDir string
	fontPath   string
)

var rootCmd = &cobra.Command{
	Use:   "sam2-embed <image>...",
	Short: "计算图片的 SAM2 embedding",
	Long: `加载一次 SAM2 图片 encoder (有 CUDA 用 CUDA, 否则 CPU),
逐个提取输入图片的 embedding 并输出统计信息.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.OutOrStdout(), args)
	},
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&cfg.CheckpointPath, "checkpoint", cfg.CheckpointPath, "encoder ONNX 模型文件 ($SAM2_CHECKPOINT)")
	f.StringVar(&cfg.ModelConfig, "config", cfg.ModelConfig, "内置模型配置名称或 YAML 文件路径 ($SAM2_MODEL_CFG)")
	f.StringVar(&cfg.Device, "device", cfg.Device, "计算设备: auto, cuda, cpu ($SAM2_DEVICE)")
	f.IntVar(&cfg.NumThreads, "threads", cfg.NumThreads, "ONNX 线程数, 0 为默认 ($SAM2_NUM_THREADS)")
	f.StringVar(&cfg.OnnxRuntimeLibPath, "lib", cfg.OnnxRuntimeLibPath, "onnxruntime 动态库路径 ($ONNXRUNTIME_LIB_PATH)")
	f.StringVar(&previewDir, "preview", "", "将每张图片的 embedding 热力图 (PNG) 写入该目录")
	f.StringVar(&fontPath, "font", "", "热力图标注使用的 TTF/OTF 字体")
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	shutdown := telemetry.Init(cfg.ServiceName)

	err := rootCmd.Execute()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if serr := shutdown(ctx); serr != nil {
		slog.Warn("关闭 telemetry 失败", "error", serr)
	}
	cancel()

	if err != nil {
		slog.Error("sam2-embed 执行失败", "error", err)
		os.Exit(1)
	}
}
