package sam2

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/getcharzp/sam2-embed"
	"github.com/getcharzp/sam2-embed/internal/telemetry"
	ort "github.com/yalue/onnxruntime_go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ErrNoImage 尚未调用 SetImage
var ErrNoImage = errors.New("尚未设置图片")

// Predictor 持有 encoder 会话和当前图片的特征缓存.
// 不支持并发调用.
type Predictor struct {
	session *ort.DynamicAdvancedSession
	model   ModelConfig
	device  vision.Device

	outputs      []ort.Value // 当前图片的 encoder 输出, 与 model.OutputNames 一一对应
	origW, origH int
	isDestroyed  bool
}

func newPredictor(session *ort.DynamicAdvancedSession, model ModelConfig, device vision.Device) *Predictor {
	return &Predictor{
		session: session,
		model:   model,
		device:  device,
	}
}

// SetImage 图像特征提取, 结果缓存到 Predictor 中, 替换上一张图片的特征
func (p *Predictor) SetImage(img image.Image) error {
	return p.setImage(context.Background(), img)
}

func (p *Predictor) setImage(ctx context.Context, img image.Image) (err error) {
	if err := vision.CheckImage(img); err != nil {
		return err
	}
	ctx, span := telemetry.StartSpan(ctx, "sam2.set_image",
		attribute.String("sam2.model", p.model.Name),
		attribute.String("sam2.device", string(p.device)),
		attribute.Int("image.width", img.Bounds().Dx()),
		attribute.Int("image.height", img.Bounds().Dy()),
	)
	defer span.End()
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		telemetry.ObserveEncoderLatency(ctx, p.model.Name, string(p.device), result, time.Since(start))
	}()

	if p.isDestroyed || p.session == nil {
		return fmt.Errorf("predictor 已销毁")
	}
	p.Reset()

	// 预处理
	size := int64(p.model.ImageSize)
	tensorData := preprocess(img, p.model)

	// 创建 Input Tensor
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 3, size, size), tensorData)
	if err != nil {
		return fmt.Errorf("创建图片 Input Tensor 失败: %w", err)
	}
	defer inputTensor.Destroy()

	// Encoder 推理, 输出由 onnxruntime 分配
	outputs := make([]ort.Value, len(p.model.OutputNames))
	if err := p.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		destroyValues(outputs)
		return fmt.Errorf("encoder 推理失败: %w", err)
	}

	p.outputs = outputs
	p.origW, p.origH = img.Bounds().Dx(), img.Bounds().Dy()
	return nil
}

// GetImageEmbedding 返回当前图片的 embedding
func (p *Predictor) GetImageEmbedding() (*Features, error) {
	return p.Features(p.model.EmbeddingOutput)
}

// Features 按输出名返回当前图片的特征
func (p *Predictor) Features(name string) (*Features, error) {
	if len(p.outputs) == 0 {
		return nil, ErrNoImage
	}
	idx := p.model.outputIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("未知输出 %q", name)
	}

	t, ok := p.outputs[idx].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("输出 %s 不是 float32 张量", name)
	}
	data := t.GetData()
	return &Features{
		Name:  name,
		Shape: t.GetShape().Clone(),
		Data:  append([]float32(nil), data...),
	}, nil
}

// OrigSize 当前图片的原始尺寸
func (p *Predictor) OrigSize() (w, h int) {
	return p.origW, p.origH
}

// Reset 释放当前图片的特征缓存
func (p *Predictor) Reset() {
	destroyValues(p.outputs)
	p.outputs = nil
	p.origW, p.origH = 0, 0
}

// Destroy 释放特征缓存和 encoder 会话
func (p *Predictor) Destroy() error {
	if p.isDestroyed {
		return nil
	}
	p.Reset()
	p.isDestroyed = true
	if p.session != nil {
		if err := p.session.Destroy(); err != nil {
			return fmt.Errorf("销毁 Encoder ONNX 会话失败: %w", err)
		}
	}
	return nil
}

func destroyValues(vs []ort.Value) {
	for _, v := range vs {
		if v != nil {
			v.Destroy()
		}
	}
}
