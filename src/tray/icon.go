package tray

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"runtime"
	"sync"
)

const iconSize = 22

var (
	iconOnce  sync.Once
	iconBytes []byte
)

// Icon returns the tray icon: a dashed selection frame around a shutter dot.
// Windows gets the PNG wrapped in an ICO container.
func Icon() []byte {
	iconOnce.Do(func() {
		data, err := encodeIcon(drawIcon(iconSize))
		if err != nil {
			return
		}
		if runtime.GOOS == "windows" {
			data = wrapICO(data, iconSize)
		}
		iconBytes = data
	})
	return iconBytes
}

func drawIcon(size int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	ink := color.NRGBA{R: 0x00, G: 0x78, B: 0xd4, A: 0xff}
	dark := color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}

	lo, hi := 2, size-3
	for i := lo; i <= hi; i++ {
		if (i/2)%2 != 0 {
			continue
		}
		img.SetNRGBA(i, lo, ink)
		img.SetNRGBA(i, hi, ink)
		img.SetNRGBA(lo, i, ink)
		img.SetNRGBA(hi, i, ink)
	}

	c := size / 2
	r := size / 5
	for y := c - r; y <= c+r; y++ {
		for x := c - r; x <= c+r; x++ {
			dx, dy := x-c, y-c
			if dx*dx+dy*dy <= r*r {
				img.SetNRGBA(x, y, dark)
			}
		}
	}
	return img
}

func encodeIcon(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapICO builds a single-entry ICO whose payload is the PNG stream.
func wrapICO(pngData []byte, size int) []byte {
	const headerLen = 6 + 16
	var buf bytes.Buffer
	le := binary.LittleEndian
	_ = binary.Write(&buf, le, [3]uint16{0, 1, 1})
	buf.WriteByte(byte(size))
	buf.WriteByte(byte(size))
	buf.WriteByte(0)
	buf.WriteByte(0)
	_ = binary.Write(&buf, le, [2]uint16{1, 32})
	_ = binary.Write(&buf, le, [2]uint32{uint32(len(pngData)), headerLen})
	buf.Write(pngData)
	return buf.Bytes()
}
