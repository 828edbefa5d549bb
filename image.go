package vision

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/up-zero/gotool/imageutil"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrInvalidImage 图片为空或像素数据与尺寸不符
var ErrInvalidImage = errors.New("无效图片")

// OpenImage 打开图片文件, 支持 jpeg/png/gif/bmp/tiff/webp
func OpenImage(path string) (image.Image, error) {
	img, err := imageutil.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开图片 %s 失败: %w", path, err)
	}
	return img, nil
}

// ImageFromArray 将 HWC 排列的 uint8 像素数组转换为 image.Image
//
// # Params:
//
//	pix: 像素数据, 长度必须为 width*height*channels
//	width, height: 图片尺寸
//	channels: 1 (灰度), 3 (RGB) 或 4 (RGBA)
func ImageFromArray(pix []uint8, width, height, channels int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: 尺寸 %dx%d", ErrInvalidImage, width, height)
	}
	if want := width * height * channels; len(pix) != want {
		return nil, fmt.Errorf("%w: 需要 %d 个值, 实际 %d", ErrInvalidImage, want, len(pix))
	}

	rect := image.Rect(0, 0, width, height)
	switch channels {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, pix)
		return img, nil
	case 3:
		img := image.NewRGBA(rect)
		for i, j := 0, 0; i < len(pix); i, j = i+3, j+4 {
			img.Pix[j] = pix[i]
			img.Pix[j+1] = pix[i+1]
			img.Pix[j+2] = pix[i+2]
			img.Pix[j+3] = 0xff
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(rect)
		copy(img.Pix, pix)
		return img, nil
	default:
		return nil, fmt.Errorf("%w: 不支持的通道数 %d", ErrInvalidImage, channels)
	}
}

// CheckImage 校验图片非空
func CheckImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil", ErrInvalidImage)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return fmt.Errorf("%w: 尺寸 %dx%d", ErrInvalidImage, b.Dx(), b.Dy())
	}
	return nil
}
