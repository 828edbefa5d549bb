package vision

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TextDrawer 文本绘制工具, 用于在特征预览图上标注说明
type TextDrawer struct {
	font     *opentype.Font
	face     font.Face
	fontSize float64
}

// NewTextDrawer 从字体文件创建文本绘制工具
//
// # Params:
//
//	fontPath: 字体路径
func NewTextDrawer(fontPath string) (*TextDrawer, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("打开字体文件失败：%w", err)
	}
	return NewTextDrawerFromBytes(fontBytes)
}

// NewTextDrawerFromBytes 从字体数据创建文本绘制工具
func NewTextDrawerFromBytes(fontBytes []byte) (*TextDrawer, error) {
	ttFont, err := opentype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("解析字体文件失败：%w", err)
	}

	d := &TextDrawer{font: ttFont}
	if err := d.SetSize(12); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSize 动态调整字体大小
func (d *TextDrawer) SetSize(fontSize float64) error {
	if d.face != nil && d.fontSize == fontSize {
		return nil
	}

	nf, err := opentype.NewFace(d.font, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return fmt.Errorf("创建字体 Face 失败：%w", err)
	}

	// 释放旧 Face
	if d.face != nil {
		d.face.Close()
	}
	d.face = nf
	d.fontSize = fontSize
	return nil
}

// MeasureText 文本宽度和行高 (像素)
func (d *TextDrawer) MeasureText(text string) (width, height int) {
	adv := font.MeasureString(d.face, text)
	m := d.face.Metrics()
	return adv.Ceil(), (m.Ascent + m.Descent).Ceil()
}

// DrawText 以 (x, y) 为基线起点绘制文本
func (d *TextDrawer) DrawText(img draw.Image, text string, x, y int, c color.Color) {
	dr := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: d.face,
		Dot:  fixed.P(x, y),
	}
	dr.DrawString(text)
}

// DrawCaption 在图片顶部绘制带底色的说明文字
//
// # Params:
//
//	img: 被绘制的图像
//	text: 说明文字
//	fg, bg: 文字颜色和底色
func (d *TextDrawer) DrawCaption(img draw.Image, text string, fg, bg color.Color) {
	const pad = 4
	_, h := d.MeasureText(text)
	b := img.Bounds()
	band := image.Rect(b.Min.X, b.Min.Y, b.Max.X, min(b.Max.Y, b.Min.Y+h+2*pad))
	draw.Draw(img, band, image.NewUniform(bg), image.Point{}, draw.Over)

	ascent := d.face.Metrics().Ascent.Ceil()
	d.DrawText(img, text, b.Min.X+pad, b.Min.Y+pad+ascent, fg)
}

// Close 释放资源
func (d *TextDrawer) Close() {
	if d.face != nil {
		d.face.Close()
		d.face = nil
	}
}
