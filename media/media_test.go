package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), map[AssetType]string{
		AssetTypeUpload:   "uploads",
		AssetTypeSighting: "sightings",
	}, zap.NewNop())
	require.NoError(t, err)
	return store
}

func testImage(w, h int) image.Image {
	return imaging.New(w, h, color.NRGBA{R: 200, G: 120, B: 80, A: 255})
}

func testJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	data, err := EncodeJPEG(testImage(w, h), 90)
	require.NoError(t, err)
	return data
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(w, h)))
	return buf.Bytes()
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestLocalStorage_SaveGetDelete(t *testing.T) {
	store := newTestStore(t)

	name, err := store.Save(AssetTypeUpload, "a.jpg", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", name)

	data, err := ReadAll(store, AssetTypeUpload, name)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	require.NoError(t, store.Delete(AssetTypeUpload, name))
	_, _, err = store.Get(AssetTypeUpload, name)
	assert.ErrorIs(t, err, ErrAssetNotFound)

	// deleting twice is fine
	assert.NoError(t, store.Delete(AssetTypeUpload, name))
}

func TestLocalStorage_SaveRemovesPartialFile(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Save(AssetTypeUpload, "partial.jpg", failingReader{})
	require.Error(t, err)

	fullPath, err := store.GetFullPath(AssetTypeUpload, "partial.jpg")
	require.NoError(t, err)
	_, statErr := os.Stat(fullPath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetFullPath(AssetTypeUpload, "../sightings/x.jpg")
	assert.Error(t, err)

	_, err = store.Save(AssetTypeUpload, "../escape.jpg", strings.NewReader("x"))
	assert.Error(t, err)

	_, err = store.Save(AssetType("unknown"), "x.jpg", strings.NewReader("x"))
	assert.Error(t, err)
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage(testJPEG(t, 64, 32))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())

	_, err = DecodeImage([]byte("definitely not an image"))
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, err = DecodeImage(nil)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestImageExtension(t *testing.T) {
	assert.Equal(t, ".jpg", ImageExtension(testJPEG(t, 8, 8)))
	assert.Equal(t, ".png", ImageExtension(testPNG(t, 8, 8)))
	assert.Equal(t, ".jpg", ImageExtension([]byte("garbage")))
}

func TestFitLongestSide(t *testing.T) {
	tests := []struct {
		name          string
		w, h, maxSize int
		wantW, wantH  int
	}{
		{"landscape", 2000, 1000, 1000, 1000, 500},
		{"portrait", 1000, 2000, 500, 250, 500},
		{"already small", 300, 200, 1280, 300, 200},
		{"no cap", 4000, 3000, 0, 4000, 3000},
		{"thin", 5000, 1, 100, 100, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := FitLongestSide(tt.w, tt.h, tt.maxSize)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestProcessor_PrepareProbe(t *testing.T) {
	p := NewProcessor(newTestStore(t), zap.NewNop())
	opts := ProbeOptions{MaxWidth: 400, MaxHeight: 300, Quality: 70}

	data, err := p.PrepareProbe(testImage(1600, 1200), opts)
	require.NoError(t, err)
	img, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())

	data, err = p.PrepareProbe(testImage(200, 100), opts)
	require.NoError(t, err)
	img, err = DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())
}

func TestProcessor_ReferenceImageRoundTrip(t *testing.T) {
	store := newTestStore(t)
	p := NewProcessor(store, zap.NewNop())
	original := testPNG(t, 16, 16)

	name, err := p.SaveReferenceImage(original)
	require.NoError(t, err)
	assert.Equal(t, ".png", filepath.Ext(name))

	loaded, err := p.LoadReferenceImage(name)
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	require.NoError(t, p.DeleteReferenceImage(name))
	_, err = p.LoadReferenceImage(name)
	assert.ErrorIs(t, err, ErrAssetNotFound)
}

func TestProcessor_SaveSightingImageCapsSize(t *testing.T) {
	store := newTestStore(t)
	p := NewProcessor(store, zap.NewNop())

	name, err := p.SaveSightingImage(testImage(2560, 1440), 1280, 85)
	require.NoError(t, err)
	assert.Equal(t, SightingFileExtension, filepath.Ext(name))

	data, err := ReadAll(store, AssetTypeSighting, name)
	require.NoError(t, err)
	img, err := DecodeImage(data)
	require.NoError(t, err)
	assert.Equal(t, 1280, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())
}

func TestParseDataURL(t *testing.T) {
	jpeg := testJPEG(t, 10, 10)
	encoded := base64.StdEncoding.EncodeToString(jpeg)

	data, mediaType, err := ParseDataURL("data:image/jpeg;base64," + encoded)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mediaType)
	assert.Equal(t, jpeg, data)

	data, _, err = ParseDataURL("data:image/png;base64," + base64.RawStdEncoding.EncodeToString(jpeg))
	require.NoError(t, err)
	assert.Equal(t, jpeg, data)

	invalid := []string{
		"",
		"no comma here",
		"image/jpeg;base64," + encoded,
		"data:image/jpeg," + encoded,
		"data:text/plain;base64,aGVsbG8=",
		"data:image/jpeg;base64,!!!not-base64!!!",
		"data:image/jpeg;base64,",
	}
	for _, in := range invalid {
		_, _, err := ParseDataURL(in)
		assert.ErrorIs(t, err, ErrInvalidImage, "input %q", in)
	}
}

func TestExtractMetadata_NoEXIF(t *testing.T) {
	meta, err := ExtractMetadata(testPNG(t, 40, 20))
	require.NoError(t, err)
	require.NotNil(t, meta.Width)
	assert.Equal(t, 40, *meta.Width)
	assert.Equal(t, 20, *meta.Height)
	assert.Nil(t, meta.Latitude)
	assert.Nil(t, meta.Longitude)

	_, err = ExtractMetadata([]byte("nope"))
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestPrimaryEmbedding(t *testing.T) {
	_, ok := PrimaryEmbedding(nil)
	assert.False(t, ok)
}
