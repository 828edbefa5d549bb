package vision

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageFromArrayRGB(t *testing.T) {
	pix := []uint8{
		255, 0, 0, 0, 255, 0,
		0, 0, 255, 10, 20, 30,
	}
	img, err := ImageFromArray(pix, 2, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 2, 2), img.Bounds())

	r, g, b, a := img.At(1, 1).RGBA()
	assert.Equal(t, []uint32{10, 20, 30, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})
	r, _, _, _ = img.At(0, 0).RGBA()
	assert.Equal(t, uint32(255), r>>8)
}

func TestImageFromArrayGrayAndRGBA(t *testing.T) {
	gray, err := ImageFromArray([]uint8{7, 8}, 2, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, color.Gray{Y: 8}, gray.At(1, 0))

	rgba, err := ImageFromArray([]uint8{1, 2, 3, 4}, 1, 1, 4)
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 1, G: 2, B: 3, A: 4}, rgba.At(0, 0))
}

func TestImageFromArrayRejectsMalformed(t *testing.T) {
	cases := []struct {
		name           string
		pix            []uint8
		w, h, channels int
	}{
		{"short buffer", make([]uint8, 5), 2, 1, 3},
		{"zero width", nil, 0, 1, 3},
		{"bad channels", make([]uint8, 2), 1, 1, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ImageFromArray(tc.pix, tc.w, tc.h, tc.channels)
			assert.ErrorIs(t, err, ErrInvalidImage)
		})
	}
}

func TestCheckImage(t *testing.T) {
	assert.ErrorIs(t, CheckImage(nil), ErrInvalidImage)
	assert.ErrorIs(t, CheckImage(image.NewRGBA(image.Rect(0, 0, 0, 4))), ErrInvalidImage)
	assert.NoError(t, CheckImage(image.NewRGBA(image.Rect(0, 0, 1, 1))))
}

func TestOpenImage(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 3, 2))))
	require.NoError(t, f.Close())

	img, err := OpenImage(path)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())

	_, err = OpenImage(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)

	junk := filepath.Join(dir, "junk.png")
	require.NoError(t, os.WriteFile(junk, []byte("not an image"), 0o644))
	_, err = OpenImage(junk)
	assert.Error(t, err)
}
