package clipboard

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/png"
)

// bitmapInfoHeader is the Win32 BITMAPINFOHEADER that starts a CF_DIB payload.
type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

// imageToDIB encodes img as a bottom-up 24-bit device independent bitmap.
func imageToDIB(img image.Image) []byte {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	rowSize := ((width*3 + 3) / 4) * 4
	imageSize := rowSize * height

	header := bitmapInfoHeader{
		Size:      40,
		Width:     int32(width),
		Height:    int32(height),
		Planes:    1,
		BitCount:  24,
		SizeImage: uint32(imageSize),
	}
	buf := bytes.NewBuffer(make([]byte, 0, 40+imageSize))
	_ = binary.Write(buf, binary.LittleEndian, header)

	pixels := make([]byte, imageSize)
	for y := 0; y < height; y++ {
		row := pixels[(height-1-y)*rowSize:]
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			row[x*3] = byte(b >> 8)
			row[x*3+1] = byte(g >> 8)
			row[x*3+2] = byte(r >> 8)
		}
	}
	buf.Write(pixels)
	return buf.Bytes()
}

// bitmapPayloads derives the lossless CF_DIB payload from the PNG and returns
// both. The PNG is decoded rather than the TIFF because both hold the same pixels.
func bitmapPayloads(pngData []byte) (dib, pngOut []byte, err error) {
	if len(pngData) == 0 {
		return nil, nil, ErrEmpty
	}
	img, err := png.Decode(bytes.NewReader(pngData))
	if err != nil {
		return nil, nil, fmt.Errorf("clipboard: decode png: %w", err)
	}
	return imageToDIB(img), pngData, nil
}
