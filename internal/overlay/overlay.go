// Package overlay draws detection boxes and labels onto images.
package overlay

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"yolodetect/internal/dto"
)

const (
	thickness    = 2
	labelPadding = 2
)

var (
	BoxColor  = color.RGBA{R: 255, A: 255}
	TextColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Draw returns a copy of img with every detection outlined and labelled
// "<class> <confidence>". The source image is not modified.
func Draw(img image.Image, result dto.DetectionResult) *image.RGBA {
	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(out, out.Bounds(), img, bounds.Min, draw.Src)

	for _, d := range result.Detections {
		x1, y1 := round(d.Box[0]), round(d.Box[1])
		x2, y2 := round(d.Box[2]), round(d.Box[3])
		drawRect(out, x1, y1, x2, y2, BoxColor)
		drawLabel(out, x1, y1, Caption(d))
	}
	return out
}

// Caption is the text shown next to a box, e.g. "person 0.87".
func Caption(d dto.Detection) string {
	return fmt.Sprintf("%s %.2f", d.ClassName, d.Confidence)
}

// EncodePNG draws result onto img and encodes the annotated image as PNG.
func EncodePNG(img image.Image, result dto.DetectionResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, Draw(img, result)); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}

func round(v float64) int {
	return int(math.Round(v))
}

func drawRect(img *image.RGBA, x1, y1, x2, y2 int, col color.Color) {
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.Set(x, y, col)
		}
	}

	for t := 0; t < thickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(x, y1+t)
			setPixel(x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setPixel(x1+t, y)
			setPixel(x2-t, y)
		}
	}
}

// drawLabel paints text on a filled background just above (x, y), or just
// inside the box when there is no room above it.
func drawLabel(img *image.RGBA, x, y int, text string) {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil() + 2*labelPadding
	height := face.Metrics().Height.Ceil() + 2*labelPadding

	top := y - height
	if top < img.Bounds().Min.Y {
		top = y
	}
	bg := image.Rect(x, top, x+width, top+height).Intersect(img.Bounds())
	draw.Draw(img, bg, image.NewUniform(BoxColor), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(TextColor),
		Face: face,
		Dot:  fixed.P(x+labelPadding, top+labelPadding+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
}
