package sam2

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"slices"

	"github.com/getcharzp/sam2-embed"
	"github.com/getcharzp/sam2-embed/internal/telemetry"
	"github.com/up-zero/gotool/convertutil"
	ort "github.com/yalue/onnxruntime_go"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// 测试中替换
	newSessionOptions = defaultSessionOptions
	newEncoderSession = defaultEncoderSession
)

// Handler 进程内只创建一次, 持有已加载的模型, 提供 Handle 一个操作.
// 不支持并发调用.
type Handler struct {
	checkpoint string
	modelCfg   string
	model      ModelConfig
	onnx       *vision.OnnxConfig
	predictor  *Predictor
}

// NewHandler 选择计算设备, 加载模型, 创建 Predictor
func NewHandler(cfg Config) (*Handler, error) {
	model, err := LoadModelConfig(cfg.ModelConfig)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.CheckpointPath); err != nil {
		return nil, fmt.Errorf("模型文件不可用: %w", err)
	}

	// 初始化 ONNX
	if err := vision.InitRuntime(cfg.OnnxRuntimeLibPath); err != nil {
		return nil, err
	}
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.CheckpointPath)
	if err != nil {
		return nil, fmt.Errorf("读取模型输入输出失败: %w", err)
	}
	if err := checkModelIO(model, inputs, outputs); err != nil {
		return nil, err
	}

	onnxConfig, session, err := openSession(cfg, model)
	if err != nil {
		return nil, err
	}

	slog.Info("sam2 模型已加载",
		"checkpoint", cfg.CheckpointPath,
		"model_config", model.Name,
		"device", onnxConfig.Device,
	)

	return &Handler{
		checkpoint: cfg.CheckpointPath,
		modelCfg:   cfg.ModelConfig,
		model:      model,
		onnx:       onnxConfig,
		predictor:  newPredictor(session, model, onnxConfig.Device),
	}, nil
}

// Handle 提取图片的 embedding
func (h *Handler) Handle(img image.Image) (*Features, error) {
	ctx, span := telemetry.StartSpan(context.Background(), "sam2.handle",
		attribute.String("sam2.model", h.model.Name),
	)
	defer span.End()

	features, err := h.handle(ctx, img)
	result := "ok"
	if err != nil {
		result = "error"
		span.RecordError(err)
	}
	telemetry.RecordHandle(ctx, h.model.Name, result)
	return features, err
}

func (h *Handler) handle(ctx context.Context, img image.Image) (*Features, error) {
	if err := h.predictor.setImage(ctx, img); err != nil {
		return nil, err
	}
	return h.predictor.GetImageEmbedding()
}

// Predictor 底层 Predictor, 可读取 embedding 以外的输出
func (h *Handler) Predictor() *Predictor {
	return h.predictor
}

// Device 实际使用的计算设备
func (h *Handler) Device() vision.Device {
	return h.onnx.Device
}

// Checkpoint 模型文件路径
func (h *Handler) Checkpoint() string {
	return h.checkpoint
}

// ModelConfigID 构造时传入的模型配置标识
func (h *Handler) ModelConfigID() string {
	return h.modelCfg
}

// ModelConfig 解析后的模型配置
func (h *Handler) ModelConfig() ModelConfig {
	return h.model
}

// Destroy 释放相关资源
func (h *Handler) Destroy() error {
	if err := h.predictor.Destroy(); err != nil {
		return err
	}
	return h.onnx.Destroy()
}

// openSession 创建会话选项和 encoder 会话.
// auto 模式下 CUDA provider 可以挂载但会话创建失败时 (如 GPU 版 onnxruntime 跑在无 GPU 的机器上), 退回 CPU 重试一次.
func openSession(cfg Config, model ModelConfig) (*vision.OnnxConfig, *ort.DynamicAdvancedSession, error) {
	oc, err := newSessionOptions(cfg)
	if err != nil {
		return nil, nil, err
	}

	session, err := newEncoderSession(cfg.CheckpointPath, model, oc)
	if err != nil && oc.Device == vision.DeviceCUDA &&
		(cfg.RequestedDevice == "" || cfg.RequestedDevice == vision.DeviceAuto) {
		slog.Warn("CUDA 会话创建失败, 使用 CPU 重试", "error", err)
		oc.Destroy()

		cfg.RequestedDevice = vision.DeviceCPU
		if oc, err = newSessionOptions(cfg); err != nil {
			return nil, nil, err
		}
		session, err = newEncoderSession(cfg.CheckpointPath, model, oc)
	}
	if err != nil {
		oc.Destroy()
		return nil, nil, fmt.Errorf("创建 Encoder ONNX 会话失败: %w", err)
	}
	return oc, session, nil
}

func defaultSessionOptions(cfg Config) (*vision.OnnxConfig, error) {
	oc := new(vision.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, oc); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	if err := oc.New(); err != nil {
		return nil, err
	}
	return oc, nil
}

func defaultEncoderSession(path string, model ModelConfig, oc *vision.OnnxConfig) (*ort.DynamicAdvancedSession, error) {
	return ort.NewDynamicAdvancedSession(path, []string{model.InputName}, model.OutputNames, oc.SessionOptions)
}

// checkModelIO 校验模型文件声明的输入输出与配置一致
func checkModelIO(model ModelConfig, inputs, outputs []ort.InputOutputInfo) error {
	idx := slices.IndexFunc(inputs, func(in ort.InputOutputInfo) bool { return in.Name == model.InputName })
	if idx < 0 {
		return fmt.Errorf("%w: 模型缺少输入 %s (实际 %v)", ErrIncompatibleModel, model.InputName, ioNames(inputs))
	}
	// 动态维度为 -1, 只校验静态维度
	if dims := inputs[idx].Dimensions; len(dims) == 4 {
		for _, i := range []int{2, 3} {
			if dims[i] > 0 && dims[i] != int64(model.ImageSize) {
				return fmt.Errorf("%w: 输入尺寸 %v, 配置 image_size %d", ErrIncompatibleModel, dims, model.ImageSize)
			}
		}
	} else if len(dims) != 0 {
		return fmt.Errorf("%w: 输入维度 %v 不是 4 维", ErrIncompatibleModel, dims)
	}

	names := ioNames(outputs)
	for _, want := range model.OutputNames {
		if !slices.Contains(names, want) {
			return fmt.Errorf("%w: 模型缺少输出 %s (实际 %v)", ErrIncompatibleModel, want, names)
		}
	}
	return nil
}

func ioNames(infos []ort.InputOutputInfo) []string {
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name)
	}
	return names
}
