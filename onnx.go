package vision

import (
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// Device 推理使用的计算设备
type Device string

const (
	DeviceAuto Device = "auto" // 有 CUDA 用 CUDA, 否则退回 CPU
	DeviceCUDA Device = "cuda"
	DeviceCPU  Device = "cpu"
)

// ParseDevice 解析设备名称 (不区分大小写), 空字符串视为 auto
func ParseDevice(s string) (Device, error) {
	switch d := Device(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DeviceAuto, nil
	case DeviceAuto, DeviceCUDA, DeviceCPU:
		return d, nil
	default:
		return "", fmt.Errorf("未知设备 %q (可选 auto, cuda, cpu)", s)
	}
}

type OnnxConfig struct {
	SessionOptions *ort.SessionOptions
	Device         Device // New 之后实际绑定的设备, 不会是 auto

	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	// 可选参数
	RequestedDevice Device // (可选) auto/cuda/cpu, 默认 auto
	NumThreads      int    // (可选) ONNX 线程数, 默认由CPU核心数决定
}

var (
	initErr error
	once    sync.Once

	// 测试中替换
	appendCUDA = appendCUDAProvider
)

// InitRuntime 加载动态库并初始化 ONNX 环境, 进程内只执行一次
func InitRuntime(libPath string) error {
	if libPath == "" {
		return fmt.Errorf("OnnxRuntimeLibPath 不能为空")
	}
	once.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return fmt.Errorf("初始化 ONNX Runtime 环境失败: %w", initErr)
	}
	return nil
}

// New 初始化 ONNX 环境, 并创建绑定到最佳可用设备的会话选项
func (cfg *OnnxConfig) New() error {
	if err := InitRuntime(cfg.OnnxRuntimeLibPath); err != nil {
		return err
	}

	// 创建会话选项 (设置线程)
	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("创建 SessionOptions 失败: %w", err)
	}
	if cfg.NumThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.NumThreads); err != nil {
			options.Destroy()
			return fmt.Errorf("设置 ONNX 线程数失败: %w", err)
		}
	}

	device, err := selectDevice(options, cfg.RequestedDevice)
	if err != nil {
		options.Destroy()
		return err
	}
	cfg.SessionOptions = options
	cfg.Device = device

	return nil
}

// Destroy 释放会话选项, 进程级的 ONNX 环境保留
func (cfg *OnnxConfig) Destroy() error {
	if cfg.SessionOptions == nil {
		return nil
	}
	err := cfg.SessionOptions.Destroy()
	cfg.SessionOptions = nil
	return err
}

// selectDevice 选择计算设备.
// auto 在 CUDA 不可用时退回 CPU, 显式指定 cuda 时直接报错.
func selectDevice(options *ort.SessionOptions, requested Device) (Device, error) {
	if requested == "" {
		requested = DeviceAuto
	}
	switch requested {
	case DeviceCPU:
		return DeviceCPU, nil
	case DeviceCUDA:
		if err := appendCUDA(options); err != nil {
			return "", err
		}
		return DeviceCUDA, nil
	case DeviceAuto:
		if err := appendCUDA(options); err != nil {
			slog.Warn("CUDA 不可用, 使用 CPU", "error", err)
			return DeviceCPU, nil
		}
		return DeviceCUDA, nil
	default:
		return "", fmt.Errorf("未知设备 %q", requested)
	}
}

// appendCUDAProvider 启用CUDA
func appendCUDAProvider(options *ort.SessionOptions) error {
	cudaOptions, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("创建 CUDAProviderOptions 失败: %w", err)
	}
	defer cudaOptions.Destroy()
	if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
		return fmt.Errorf("添加 CUDA 执行提供者失败: %w", err)
	}
	return nil
}

// DefaultLibraryPath 根据运行时环境判断加载哪个库文件
func DefaultLibraryPath() string {
	baseDir := "./lib/"
	libName := "onnxruntime"

	// windows onnxruntime.dll
	if runtime.GOOS == "windows" {
		return baseDir + libName + ".dll"
	}

	// linux darwin ext
	var ext string
	switch runtime.GOOS {
	case "darwin":
		ext = "dylib"
	case "linux":
		ext = "so"
	default:
		return baseDir + libName + "_amd64.so" // 默认返回 linux amd64
	}

	// 拼接完整路径: ./lib/onnxruntime + _ + amd64/arm64 + . + so/dylib
	return fmt.Sprintf("%s%s_%s.%s", baseDir, libName, runtime.GOARCH, ext)
}
