package sam2

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/getcharzp/sam2-embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "./sam2_hiera_large_encoder.onnx", cfg.CheckpointPath)
	assert.Equal(t, "sam2_hiera_l.yaml", cfg.ModelConfig)
	assert.Equal(t, vision.DeviceAuto, cfg.RequestedDevice)
	assert.Equal(t, vision.DefaultLibraryPath(), cfg.OnnxRuntimeLibPath)

	_, err := LoadModelConfig(cfg.ModelConfig)
	require.NoError(t, err)
}

func TestBuiltinModelConfigsValid(t *testing.T) {
	names := BuiltinModelConfigs()
	require.Contains(t, names, "sam2_hiera_l.yaml")
	require.Contains(t, names, "sam2_hiera_b+.yaml")

	for _, name := range names {
		m, err := LoadModelConfig(name)
		require.NoError(t, err, name)
		assert.Equal(t, 1024, m.ImageSize, name)
		assert.Equal(t, [3]float32{0.485, 0.456, 0.406}, m.PixelMean, name)
		assert.Equal(t, [3]float32{0.229, 0.224, 0.225}, m.PixelStd, name)
		assert.Contains(t, m.OutputNames, m.EmbeddingOutput, name)
	}
}

func TestLoadModelConfigLarge(t *testing.T) {
	m, err := LoadModelConfig("sam2_hiera_l")
	require.NoError(t, err)
	assert.Equal(t, "sam2_hiera_l", m.Name)
	assert.Equal(t, "image", m.InputName)
	assert.Equal(t, []string{"high_res_feats_0", "high_res_feats_1", "image_embed"}, m.OutputNames)
	assert.Equal(t, "image_embed", m.EmbeddingOutput)
}

func TestLoadModelConfigUnknown(t *testing.T) {
	_, err := LoadModelConfig("sam3_hiera_xl.yaml")
	assert.ErrorIs(t, err, ErrUnknownModelConfig)

	_, err = LoadModelConfig("")
	assert.ErrorIs(t, err, ErrUnknownModelConfig)
}

func TestLoadModelConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	body := `name: custom
image_size: 512
input_name: pixel_values
output_names: [embed]
embedding_output: embed
pixel_mean: [0.5, 0.5, 0.5]
pixel_std: [0.5, 0.5, 0.5]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	m, err := LoadModelConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 512, m.ImageSize)
	assert.Equal(t, "embed", m.EmbeddingOutput)
}

func TestLoadModelConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"embedding not an output": `name: x
image_size: 1024
input_name: image
output_names: [a]
embedding_output: b
pixel_mean: [0, 0, 0]
pixel_std: [1, 1, 1]
`,
		"zero std": `name: x
image_size: 1024
input_name: image
output_names: [a]
embedding_output: a
pixel_mean: [0, 0, 0]
pixel_std: [1, 0, 1]
`,
		"unknown field": `name: x
image_size: 1024
input_name: image
output_names: [a]
embedding_output: a
pixel_mean: [0, 0, 0]
pixel_std: [1, 1, 1]
resize: pad
`,
		"no image size": `name: x
input_name: image
output_names: [a]
embedding_output: a
pixel_std: [1, 1, 1]
`,
	}
	dir := t.TempDir()
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := LoadModelConfig(path)
			assert.Error(t, err)
		})
	}
}
