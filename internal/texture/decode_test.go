package texture

import (
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/bundlescope/internal/rip"
)

func TestDecode_RGBA32FlipsRows(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	// 1x2 texture: bottom row red, top row blue, stored bottom-up.
	obj := &rip.Object{Name: "t", Width: 1, Height: 2, Format: "RGBA32"}
	payload := []byte{
		0xFF, 0x00, 0x00, 0xFF, // row 0 (bottom)
		0x00, 0x00, 0xFF, 0xFF, // row 1 (top)
	}

	// --- Act ---
	img, err := Decode(obj, payload)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, color.NRGBA{B: 0xFF, A: 0xFF}, img.NRGBAAt(0, 0), "top row of the image is the last stored row")
	require.Equal(t, color.NRGBA{R: 0xFF, A: 0xFF}, img.NRGBAAt(0, 1))
}

func TestDecode_ChannelOrders(t *testing.T) {
	t.Parallel()

	cases := []struct {
		format  string
		texel   []byte
		want    color.NRGBA
	}{
		{"RGBA32", []byte{0x11, 0x22, 0x33, 0x44}, color.NRGBA{0x11, 0x22, 0x33, 0x44}},
		{"ARGB32", []byte{0x44, 0x11, 0x22, 0x33}, color.NRGBA{0x11, 0x22, 0x33, 0x44}},
		{"BGRA32", []byte{0x33, 0x22, 0x11, 0x44}, color.NRGBA{0x11, 0x22, 0x33, 0x44}},
		{"RGB24", []byte{0x11, 0x22, 0x33}, color.NRGBA{0x11, 0x22, 0x33, 0xFF}},
		{"Alpha8", []byte{0x44}, color.NRGBA{0xFF, 0xFF, 0xFF, 0x44}},
	}

	for _, tc := range cases {
		obj := &rip.Object{Name: "t", Width: 1, Height: 1, Format: tc.format}
		img, err := Decode(obj, tc.texel)
		require.NoError(t, err, tc.format)
		require.Equal(t, tc.want, img.NRGBAAt(0, 0), tc.format)
	}
}

func TestDecode_UnsupportedFormat(t *testing.T) {
	t.Parallel()

	obj := &rip.Object{Name: "t", Width: 2, Height: 2, Format: "DXT5"}

	_, err := Decode(obj, make([]byte, 16))

	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestDecode_ShortPayload(t *testing.T) {
	t.Parallel()

	obj := &rip.Object{Name: "t", Width: 4, Height: 4, Format: "RGBA32"}

	_, err := Decode(obj, make([]byte, 10))

	require.Error(t, err)
	require.Contains(t, err.Error(), "payload too short")
	require.False(t, errors.Is(err, ErrUnsupportedFormat), "a truncated payload is not a format skip")
}

func TestSliceRect_TranslatesBottomLeftOrigin(t *testing.T) {
	t.Parallel()

	// 2x4 atlas, bottom-up rows 0..3. After decoding, image row 0 is
	// stored row 3.
	obj := &rip.Object{Name: "t", Width: 2, Height: 4, Format: "Alpha8"}
	payload := []byte{
		0, 0, // stored row 0 (bottom)
		1, 1,
		2, 2,
		3, 3, // stored row 3 (top)
	}
	img, err := Decode(obj, payload)
	require.NoError(t, err)

	// A rect anchored at the bottom of the texture covers stored rows 0-1.
	frame, err := SliceRect(img, rip.Rect{X: 0, Y: 0, W: 2, H: 2})
	require.NoError(t, err)

	b := frame.Bounds()
	require.Equal(t, 2, b.Dx())
	require.Equal(t, 2, b.Dy())
	require.Equal(t, uint8(1), frame.NRGBAAt(b.Min.X, b.Min.Y).A)
	require.Equal(t, uint8(0), frame.NRGBAAt(b.Min.X, b.Min.Y+1).A)
}

func TestSliceRect_RejectsOutOfBounds(t *testing.T) {
	t.Parallel()

	obj := &rip.Object{Name: "t", Width: 2, Height: 2, Format: "Alpha8"}
	img, err := Decode(obj, make([]byte, 4))
	require.NoError(t, err)

	_, err = SliceRect(img, rip.Rect{X: 1, Y: 1, W: 2, H: 2})
	require.Error(t, err)

	_, err = SliceRect(img, rip.Rect{X: 0, Y: 0, W: 0, H: 2})
	require.Error(t, err)
}
