package sam2

import (
	"image"
	"image/color"

	"github.com/up-zero/gotool/imageutil"
)

// preprocess 缩放到 size x size (不保持宽高比), 归一化, 输出 CHW
func preprocess(img image.Image, m ModelConfig) []float32 {
	size := m.ImageSize
	b := img.Bounds()
	if b.Dx() != size || b.Dy() != size {
		img = imageutil.Resize(img, size, size)
	}
	return normalize(img, m)
}

// normalize 归一化. 使用非预乘 alpha 的 RGB 值, 半透明像素不变暗.
func normalize(src image.Image, m ModelConfig) []float32 {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	plane := w * h
	data := make([]float32, 3*plane)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			idx := y*w + x
			data[idx] = (float32(c.R)/255.0 - m.PixelMean[0]) / m.PixelStd[0]
			data[plane+idx] = (float32(c.G)/255.0 - m.PixelMean[1]) / m.PixelStd[1]
			data[2*plane+idx] = (float32(c.B)/255.0 - m.PixelMean[2]) / m.PixelStd[2]
		}
	}
	return data
}
