package service

import (
	"bytes"
	"image"
	_ "image/jpeg"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageProcessor_Prepare(t *testing.T) {
	p := NewImageProcessor()

	t.Run("small photo unchanged", func(t *testing.T) {
		in := pngBytes(t, 800, 600)
		out, contentType, err := p.Prepare(in, "image/png")
		require.NoError(t, err)
		assert.Equal(t, "image/png", contentType)
		assert.Equal(t, in, out)
	})

	t.Run("large photo fitted", func(t *testing.T) {
		out, contentType, err := p.Prepare(pngBytes(t, 4096, 1024), "image/png")
		require.NoError(t, err)
		assert.Equal(t, "image/jpeg", contentType)

		cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
		require.NoError(t, err)
		assert.Equal(t, "jpeg", format)
		assert.Equal(t, MaxPhotoDimension, cfg.Width)
		assert.Equal(t, 512, cfg.Height)
	})

	t.Run("unreadable", func(t *testing.T) {
		_, _, err := p.Prepare([]byte("not an image"), "image/webp")
		assert.Error(t, err)
	})
}
