package sam2

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/getcharzp/sam2-embed"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownModelConfig 既不是已有文件, 也不是内置配置
	ErrUnknownModelConfig = errors.New("未知模型配置")
	// ErrIncompatibleModel 模型文件的输入输出与配置不符
	ErrIncompatibleModel = errors.New("模型与配置不兼容")
)

//go:embed configs/*.yaml
var builtinConfigs embed.FS

// Config 配置项
type Config struct {
	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	CheckpointPath     string // 图片特征提取模型 (ONNX encoder)
	ModelConfig        string // 模型配置: 内置名称 (如 sam2_hiera_l.yaml) 或 YAML 文件路径

	// 可选参数
	RequestedDevice vision.Device // (可选) auto/cuda/cpu, 默认 auto
	NumThreads      int           // (可选) ONNX 线程数, 默认由CPU核心数决定
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: vision.DefaultLibraryPath(),
		CheckpointPath:     "./sam2_hiera_large_encoder.onnx",
		ModelConfig:        "sam2_hiera_l.yaml",
		RequestedDevice:    vision.DeviceAuto,
	}
}

// ModelConfig 描述 encoder 的输入输出和预处理参数
type ModelConfig struct {
	Name            string     `yaml:"name"`
	ImageSize       int        `yaml:"image_size"`       // 输入为 ImageSize x ImageSize
	InputName       string     `yaml:"input_name"`       // 图片输入名
	OutputNames     []string   `yaml:"output_names"`     // encoder 全部输出
	EmbeddingOutput string     `yaml:"embedding_output"` // 作为图片 embedding 返回的输出
	PixelMean       [3]float32 `yaml:"pixel_mean"`       // RGB 均值, 0-1
	PixelStd        [3]float32 `yaml:"pixel_std"`        // RGB 方差, 0-1
}

// Validate 校验配置
func (m ModelConfig) Validate() error {
	if m.ImageSize <= 0 {
		return fmt.Errorf("image_size 必须大于 0, 实际 %d", m.ImageSize)
	}
	if m.InputName == "" {
		return fmt.Errorf("input_name 不能为空")
	}
	if len(m.OutputNames) == 0 {
		return fmt.Errorf("output_names 不能为空")
	}
	if m.outputIndex(m.EmbeddingOutput) < 0 {
		return fmt.Errorf("embedding_output %q 不在 output_names 中", m.EmbeddingOutput)
	}
	for i, s := range m.PixelStd {
		if s <= 0 {
			return fmt.Errorf("pixel_std[%d] 必须大于 0", i)
		}
	}
	return nil
}

func (m ModelConfig) outputIndex(name string) int {
	for i, n := range m.OutputNames {
		if n == name {
			return i
		}
	}
	return -1
}

// BuiltinModelConfigs 内置配置名称
func BuiltinModelConfigs() []string {
	entries, _ := fs.ReadDir(builtinConfigs, "configs")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// LoadModelConfig 解析模型配置.
// id 为已存在的文件路径时读取该文件, 否则按名称查找内置配置 (.yaml 后缀可省略).
func LoadModelConfig(id string) (ModelConfig, error) {
	if id == "" {
		return ModelConfig{}, fmt.Errorf("%w: 名称为空", ErrUnknownModelConfig)
	}

	var data []byte
	if st, err := os.Stat(id); err == nil && !st.IsDir() {
		if data, err = os.ReadFile(id); err != nil {
			return ModelConfig{}, fmt.Errorf("读取模型配置 %s 失败: %w", id, err)
		}
	} else {
		name := path.Base(id)
		if !strings.HasSuffix(name, ".yaml") {
			name += ".yaml"
		}
		if data, err = builtinConfigs.ReadFile("configs/" + name); err != nil {
			return ModelConfig{}, fmt.Errorf("%w: %s", ErrUnknownModelConfig, id)
		}
	}

	return parseModelConfig(data)
}

func parseModelConfig(data []byte) (ModelConfig, error) {
	var m ModelConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return ModelConfig{}, fmt.Errorf("解析模型配置失败: %w", err)
	}
	if err := m.Validate(); err != nil {
		return ModelConfig{}, fmt.Errorf("模型配置 %s 无效: %w", m.Name, err)
	}
	return m, nil
}
