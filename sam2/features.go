package sam2

import (
	"fmt"
	"image"
	"math"
	"slices"
)

// Features encoder 输出的特征张量, 数据已从 ONNX 张量中复制出来
type Features struct {
	Name  string
	Shape []int64
	Data  []float32
}

// Len 元素个数
func (f *Features) Len() int {
	return len(f.Data)
}

// Equal 名称, 形状和数据完全一致
func (f *Features) Equal(o *Features) bool {
	if f == nil || o == nil {
		return f == o
	}
	return f.Name == o.Name && slices.Equal(f.Shape, o.Shape) && slices.Equal(f.Data, o.Data)
}

// Stats 特征统计
type Stats struct {
	Min, Max, Mean float32
	L2             float64
}

// Stats 计算最小值, 最大值, 均值和 L2 范数
func (f *Features) Stats() Stats {
	if len(f.Data) == 0 {
		return Stats{}
	}
	s := Stats{Min: f.Data[0], Max: f.Data[0]}
	var sum, sq float64
	for _, v := range f.Data {
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
		sum += float64(v)
		sq += float64(v) * float64(v)
	}
	s.Mean = float32(sum / float64(len(f.Data)))
	s.L2 = math.Sqrt(sq)
	return s
}

// Heatmap 按通道取均值, 归一化到 0-255 的灰度图. 仅支持 [1, C, H, W].
func (f *Features) Heatmap() (*image.Gray, error) {
	if len(f.Shape) != 4 || f.Shape[0] != 1 {
		return nil, fmt.Errorf("特征 %s 形状 %v 不是 [1, C, H, W]", f.Name, f.Shape)
	}
	c, h, w := int(f.Shape[1]), int(f.Shape[2]), int(f.Shape[3])
	plane := h * w
	if c <= 0 || plane <= 0 || len(f.Data) != c*plane {
		return nil, fmt.Errorf("特征 %s 数据长度 %d 与形状 %v 不符", f.Name, len(f.Data), f.Shape)
	}

	mean := make([]float32, plane)
	for ch := 0; ch < c; ch++ {
		for i, v := range f.Data[ch*plane : (ch+1)*plane] {
			mean[i] += v
		}
	}
	lo, hi := float32(math.Inf(1)), float32(math.Inf(-1))
	for i := range mean {
		mean[i] /= float32(c)
		lo = min(lo, mean[i])
		hi = max(hi, mean[i])
	}

	img := image.NewGray(image.Rect(0, 0, w, h))
	if hi > lo {
		scale := 255 / (hi - lo)
		for i, v := range mean {
			img.Pix[i] = uint8((v - lo) * scale)
		}
	}
	return img, nil
}
