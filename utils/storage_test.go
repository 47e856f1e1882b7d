package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestMakeThumbnailScalesToWidth(t *testing.T) {
	thumb, err := MakeThumbnail(samplePNG(t, 800, 400))
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	require.Equal(t, 200, img.Bounds().Dx())
	require.Equal(t, 100, img.Bounds().Dy())
}

func TestDetectAttachmentType(t *testing.T) {
	mt, err := DetectAttachmentType("screen.png", samplePNG(t, 10, 10))
	require.NoError(t, err)
	require.Equal(t, "image/png", mt)
	require.True(t, IsImageType(mt))

	_, err = DetectAttachmentType("tool.exe", []byte("MZ\x90\x00\x03\x00\x00\x00"))
	require.Error(t, err)

	_, err = DetectAttachmentType("big.txt", make([]byte, MaxAttachmentBytes+1))
	require.Error(t, err)
}

func TestThumbnailObjectKey(t *testing.T) {
	require.Equal(t, "biz/tickets/7/thumbnails/a.png", ThumbnailObjectKey("biz/tickets/7/a.png"))
}
