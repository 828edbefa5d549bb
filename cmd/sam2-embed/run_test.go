package main

import (
	"bytes"
	"image"
	"path/filepath"
	"testing"

	"github.com/getcharzp/sam2-embed"
	"github.com/getcharzp/sam2-embed/sam2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"
)

func testFeatures() *sam2.Features {
	return &sam2.Features{
		Name:  "image_embed",
		Shape: []int64{1, 2, 2, 2},
		Data:  []float32{0, 1, 2, 3, 4, 5, 6, 7},
	}
}

func TestFormatShape(t *testing.T) {
	assert.Equal(t, "[1 256 64 64]", formatShape([]int64{1, 256, 64, 64}))
	assert.Equal(t, "[]", formatShape(nil))
}

func TestSummary(t *testing.T) {
	row := summaryRow("/data/cat.jpg", testFeatures())
	assert.Equal(t, []string{"cat.jpg", "image_embed", "[1 2 2 2]", "0.0000", "7.0000", "3.5000", "11.83"}, row)

	var buf bytes.Buffer
	renderSummary(&buf, [][]string{row})
	out := buf.String()
	assert.Contains(t, out, "IMAGE")
	assert.Contains(t, out, "cat.jpg")
	assert.Contains(t, out, "[1 2 2 2]")
}

func TestWritePreview(t *testing.T) {
	previewDir = t.TempDir()
	t.Cleanup(func() { previewDir = "" })

	drawer, err := vision.NewTextDrawerFromBytes(goregular.TTF)
	require.NoError(t, err)
	defer drawer.Close()

	out, err := writePreview("/data/cat.jpg", image.Rect(0, 0, 64, 48), testFeatures(), drawer)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(previewDir, "cat_embed.png"), out)

	img, err := vision.OpenImage(out)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())

	_, err = writePreview("x.png", image.Rect(0, 0, 8, 8), &sam2.Features{Shape: []int64{4}, Data: make([]float32, 4)}, nil)
	assert.Error(t, err)
}

func TestRunRejectsBadDevice(t *testing.T) {
	orig := cfg
	t.Cleanup(func() { cfg = orig })
	cfg.Device = "tpu"

	assert.Error(t, run(&bytes.Buffer{}, []string{"a.png"}))
}
