package main

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/getcharzp/sam2-embed"
	"github.com/getcharzp/sam2-embed/sam2"
	"github.com/olekukonko/tablewriter"
	"github.com/up-zero/gotool/imageutil"
)

func run(w io.Writer, paths []string) error {
	hc, err := cfg.HandlerConfig()
	if err != nil {
		return err
	}

	handler, err := sam2.NewHandler(hc)
	if err != nil {
		return fmt.Errorf("加载模型失败: %w", err)
	}
	defer handler.Destroy()

	var drawer *vision.TextDrawer
	if previewDir != "" {
		if err := os.MkdirAll(previewDir, 0o755); err != nil {
			return err
		}
		if fontPath != "" {
			if drawer, err = vision.NewTextDrawer(fontPath); err != nil {
				return err
			}
			defer drawer.Close()
		}
	}

	var rows [][]string
	for _, path := range paths {
		img, err := vision.OpenImage(path)
		if err != nil {
			return err
		}
		features, err := handler.Handle(img)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		slog.Debug("图片特征提取完成", "path", path, "shape", features.Shape, "device", handler.Device())

		rows = append(rows, summaryRow(path, features))

		if previewDir != "" {
			out, err := writePreview(path, img.Bounds(), features, drawer)
			if err != nil {
				return fmt.Errorf("%s: 生成热力图失败: %w", path, err)
			}
			slog.Info("热力图已保存", "path", out)
		}
	}

	renderSummary(w, rows)
	return nil
}

func summaryRow(path string, f *sam2.Features) []string {
	s := f.Stats()
	return []string{
		filepath.Base(path),
		f.Name,
		formatShape(f.Shape),
		fmt.Sprintf("%.4f", s.Min),
		fmt.Sprintf("%.4f", s.Max),
		fmt.Sprintf("%.4f", s.Mean),
		fmt.Sprintf("%.2f", s.L2),
	}
}

func renderSummary(w io.Writer, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"IMAGE", "OUTPUT", "SHAPE", "MIN", "MAX", "MEAN", "L2"})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(rows)
	table.Render()
}

func formatShape(shape []int64) string {
	parts := make([]string, len(shape))
	for i, d := range shape {
		parts[i] = fmt.Sprint(d)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// writePreview 将通道均值热力图缩放到原图尺寸并保存为 PNG
func writePreview(src string, bounds image.Rectangle, f *sam2.Features, drawer *vision.TextDrawer) (string, error) {
	heat, err := f.Heatmap()
	if err != nil {
		return "", err
	}

	scaled := imageutil.Resize(heat, bounds.Dx(), bounds.Dy())
	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), scaled, scaled.Bounds().Min, draw.Src)

	if drawer != nil {
		drawer.DrawCaption(canvas, fmt.Sprintf("%s %s", f.Name, formatShape(f.Shape)),
			color.White, color.RGBA{A: 160})
	}

	base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
	out := filepath.Join(previewDir, base+"_embed.png")
	if err := imageutil.Save(out, canvas, 100); err != nil {
		return "", err
	}
	return out, nil
}
