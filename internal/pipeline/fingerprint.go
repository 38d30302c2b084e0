package pipeline

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint derives a stable cache key from an image's dimensions and
// pixel data. Equal fingerprints imply identical pipeline output within the
// cache TTL, so the hash covers every pixel rather than a sample.
func Fingerprint(img image.Image) string {
	d := xxhash.New()
	b := img.Bounds()

	var dims [16]byte
	binary.LittleEndian.PutUint64(dims[0:8], uint64(int64(b.Dx())))
	binary.LittleEndian.PutUint64(dims[8:16], uint64(int64(b.Dy())))
	_, _ = d.Write(dims[:])

	switch src := img.(type) {
	case *image.NRGBA:
		writeRows(d, src.Pix, src.Stride, b.Dx()*4, b.Dy())
	case *image.RGBA:
		writeRows(d, src.Pix, src.Stride, b.Dx()*4, b.Dy())
	case *image.Gray:
		writeRows(d, src.Pix, src.Stride, b.Dx(), b.Dy())
	default:
		var px [8]byte
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, g, bl, a := img.At(x, y).RGBA()
				binary.LittleEndian.PutUint16(px[0:2], uint16(r))
				binary.LittleEndian.PutUint16(px[2:4], uint16(g))
				binary.LittleEndian.PutUint16(px[4:6], uint16(bl))
				binary.LittleEndian.PutUint16(px[6:8], uint16(a))
				_, _ = d.Write(px[:])
			}
		}
	}
	return fmt.Sprintf("%016x", d.Sum64())
}

// writeRows hashes packed pixel rows, skipping any stride padding.
func writeRows(d *xxhash.Digest, pix []byte, stride, rowLen, rows int) {
	for y := range rows {
		off := y * stride
		_, _ = d.Write(pix[off : off+rowLen])
	}
}
