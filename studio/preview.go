package studio

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Decoders for the formats the picker accepts.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// supportedExts lists the extensions the image picker offers.
var supportedExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".bmp":  true,
}

// IsSupportedImage reports whether path has an extension the studio offers
// in its picker. Other files can still be selected explicitly.
func IsSupportedImage(path string) bool {
	return supportedExts[strings.ToLower(filepath.Ext(path))]
}

// LoadThumbnail decodes the image at path and fits it into a size×size box.
func LoadThumbnail(path string, size int) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	return Thumbnail(img, size, size), nil
}

// DecodeThumbnail decodes data and fits it into a size×size box.
func DecodeThumbnail(data []byte, size int) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return Thumbnail(img, size, size), nil
}

// Thumbnail scales img down to fit within maxW×maxH, keeping the aspect
// ratio. Images that already fit are returned unchanged.
func Thumbnail(img image.Image, maxW, maxH int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 || (w <= maxW && h <= maxH) {
		return img
	}

	nw, nh := w, h
	if nw > maxW {
		nh = nh * maxW / nw
		nw = maxW
	}
	if nh > maxH {
		nw = nw * maxH / nh
		nh = maxH
	}
	nw = max(nw, 1)
	nh = max(nh, 1)

	dst := image.NewRGBA(image.Rect(0, 0, nw, nh))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// RenderANSI draws img with 24-bit colour half blocks, two pixel rows per
// text line, scaled to at most cols columns.
func RenderANSI(w io.Writer, img image.Image, cols int) error {
	if cols > 0 {
		img = Thumbnail(img, cols, cols*4)
	}
	b := img.Bounds()
	bw := bufio.NewWriter(w)

	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		for x := b.Min.X; x < b.Max.X; x++ {
			tr, tg, tb := rgb8(img, x, y)
			if y+1 < b.Max.Y {
				br, bg, bb := rgb8(img, x, y+1)
				fmt.Fprintf(bw, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀", tr, tg, tb, br, bg, bb)
			} else {
				fmt.Fprintf(bw, "\x1b[38;2;%d;%d;%dm\x1b[49m▀", tr, tg, tb)
			}
		}
		bw.WriteString("\x1b[0m\n")
	}
	return bw.Flush()
}

func rgb8(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}
