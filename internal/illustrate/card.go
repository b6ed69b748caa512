package illustrate

import (
	"context"
	"hash/fnv"
	"image"
	"image/color"
	"image/draw"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Card colors shared by every palette.
var (
	cardInk    = color.NRGBA{R: 60, G: 60, B: 60, A: 255}
	cardBubble = color.NRGBA{R: 255, G: 255, B: 255, A: 230}
)

// palette is one pastel scheme for a card: the gradient endpoints, the
// frame, and the bubble outline.
type palette struct {
	name    string
	top     color.NRGBA
	bottom  color.NRGBA
	border  color.NRGBA
	outline color.NRGBA
}

var palettes = []palette{
	{"cream",
		color.NRGBA{255, 250, 240, 255}, color.NRGBA{235, 200, 180, 255},
		color.NRGBA{255, 230, 200, 255}, color.NRGBA{240, 220, 200, 255}},
	{"sky",
		color.NRGBA{240, 248, 255, 255}, color.NRGBA{190, 215, 245, 255},
		color.NRGBA{200, 225, 250, 255}, color.NRGBA{185, 210, 240, 255}},
	{"meadow",
		color.NRGBA{244, 252, 240, 255}, color.NRGBA{205, 235, 195, 255},
		color.NRGBA{215, 240, 205, 255}, color.NRGBA{200, 228, 190, 255}},
	{"blossom",
		color.NRGBA{255, 246, 248, 255}, color.NRGBA{245, 205, 215, 255},
		color.NRGBA{250, 220, 228, 255}, color.NRGBA{242, 208, 218, 255}},
	{"lavender",
		color.NRGBA{248, 246, 255, 255}, color.NRGBA{220, 210, 245, 255},
		color.NRGBA{230, 222, 248, 255}, color.NRGBA{218, 208, 240, 255}},
}

// paletteFor picks a palette from the prompt, so a scene keeps its
// palette across renders.
func paletteFor(prompt string) palette {
	h := fnv.New32a()
	h.Write([]byte(prompt)) //nolint:errcheck
	return palettes[int(h.Sum32())%len(palettes)]
}

// Card renders storybook-style placeholder art: a pastel gradient, a
// rounded frame, and the scene caption in a bubble. It needs nothing
// but the CPU, so it anchors every auto chain.
type Card struct{}

// NewCard returns the card renderer.
func NewCard() *Card { return &Card{} }

// Name returns the engine name.
func (c *Card) Name() string { return EngineCard }

// Available always reports true.
func (c *Card) Available(context.Context) bool { return true }

// Illustrate renders the card. Rendering is deterministic: the same
// prompt and dimensions produce the same pixels.
func (c *Card) Illustrate(ctx context.Context, prompt string, width, height int) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}

	pal := paletteFor(prompt)
	img := image.NewRGBA(image.Rect(0, 0, width, height))

	for y := 0; y < height; y++ {
		t := float64(y) / float64(height)
		row := color.NRGBA{
			R: lerp(pal.top.R, pal.bottom.R, t),
			G: lerp(pal.top.G, pal.bottom.G, t),
			B: lerp(pal.top.B, pal.bottom.B, t),
			A: 255,
		}
		draw.Draw(img, image.Rect(0, y, width, y+1), image.NewUniform(row), image.Point{}, draw.Src)
	}

	margin := int(float64(min(width, height)) * 0.03)
	if margin > 0 {
		frame := image.Rect(margin, margin, width-margin, height-margin)
		strokeRounded(img, frame, margin, 6, pal.border)
	}

	bubbleW := int(float64(width) * 0.86)
	bubbleH := int(float64(height) * 0.18)
	bx := (width - bubbleW) / 2
	by := int(float64(height) * 0.72)
	bubble := image.Rect(bx, by, bx+bubbleW, by+bubbleH)
	fillRounded(img, bubble, 24, cardBubble)
	strokeRounded(img, bubble, 24, 4, pal.outline)

	drawCaption(img, bubble, CaptionFor(prompt))
	return img, nil
}

// drawCaption writes the caption centered in the bubble. The bitmap
// face is rendered small and upscaled so the glyphs stay soft at video
// resolutions.
func drawCaption(img *image.RGBA, bubble image.Rectangle, caption string) {
	if caption == "" {
		return
	}

	lineH := int(float64(bubble.Dy()) * 0.28)
	if lineH < 4 {
		return
	}
	face := basicfont.Face7x13
	metrics := face.Metrics()
	glyphH := metrics.Height.Ceil()
	scale := float64(lineH) / float64(glyphH)

	usableW := int(float64(bubble.Dx()) * 0.9)
	maxChars := int(float64(usableW) / (7 * scale))
	if maxChars < 1 {
		maxChars = 1
	}
	lines := wrapCaption(caption, maxChars, 2)

	gap := lineH / 4
	total := len(lines)*lineH + (len(lines)-1)*gap
	y := bubble.Min.Y + (bubble.Dy()-total)/2

	for _, line := range lines {
		srcW := font.MeasureString(face, line).Ceil()
		if srcW <= 0 {
			y += lineH + gap
			continue
		}
		src := image.NewRGBA(image.Rect(0, 0, srcW, glyphH))
		drawer := font.Drawer{
			Dst:  src,
			Src:  image.NewUniform(cardInk),
			Face: face,
			Dot:  fixed.Point26_6{X: 0, Y: metrics.Ascent},
		}
		drawer.DrawString(line)

		dstW := int(float64(srcW) * scale)
		if dstW > usableW {
			dstW = usableW
		}
		x := bubble.Min.X + (bubble.Dx()-dstW)/2
		dst := image.Rect(x, y, x+dstW, y+lineH)
		xdraw.CatmullRom.Scale(img, dst, src, src.Bounds(), xdraw.Over, nil)
		y += lineH + gap
	}
}

// wrapCaption breaks text into at most maxLines lines of roughly
// maxChars characters on word boundaries, dropping any overflow.
func wrapCaption(text string, maxChars, maxLines int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	lines := make([]string, 0, maxLines)
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) <= maxChars {
			current += " " + word
			continue
		}
		lines = append(lines, current)
		if len(lines) == maxLines {
			return lines
		}
		current = word
	}
	return append(lines, current)
}

// fillRounded fills a rounded rectangle by horizontal spans.
func fillRounded(img *image.RGBA, r image.Rectangle, radius int, c color.Color) {
	src := image.NewUniform(c)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		if x0, x1, ok := roundedSpan(r, radius, y); ok {
			draw.Draw(img, image.Rect(x0, y, x1, y+1), src, image.Point{}, draw.Over)
		}
	}
}

// strokeRounded outlines a rounded rectangle with the given stroke
// width, again by spans: each row paints the outer span minus the
// matching span of the inset rectangle.
func strokeRounded(img *image.RGBA, r image.Rectangle, radius, width int, c color.Color) {
	src := image.NewUniform(c)
	inner := r.Inset(width)
	innerRadius := radius - width
	if innerRadius < 0 {
		innerRadius = 0
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		x0, x1, ok := roundedSpan(r, radius, y)
		if !ok {
			continue
		}
		ix0, ix1, iok := roundedSpan(inner, innerRadius, y)
		if !iok || ix0 >= x1 || ix1 <= x0 {
			draw.Draw(img, image.Rect(x0, y, x1, y+1), src, image.Point{}, draw.Over)
			continue
		}
		if ix0 > x0 {
			draw.Draw(img, image.Rect(x0, y, ix0, y+1), src, image.Point{}, draw.Over)
		}
		if x1 > ix1 {
			draw.Draw(img, image.Rect(ix1, y, x1, y+1), src, image.Point{}, draw.Over)
		}
	}
}

// roundedSpan returns the horizontal pixel span a rounded rectangle
// covers at row y.
func roundedSpan(r image.Rectangle, radius, y int) (x0, x1 int, ok bool) {
	if y < r.Min.Y || y >= r.Max.Y {
		return 0, 0, false
	}
	if limit := min(r.Dx(), r.Dy()) / 2; radius > limit {
		radius = limit
	}

	inset := 0
	if dy := r.Min.Y + radius - y; dy > 0 {
		inset = radius - int(math.Sqrt(float64(radius*radius-dy*dy)))
	} else if dy := y - (r.Max.Y - 1 - radius); dy > 0 {
		inset = radius - int(math.Sqrt(float64(radius*radius-dy*dy)))
	}

	x0 = r.Min.X + inset
	x1 = r.Max.X - inset
	return x0, x1, x0 < x1
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*t)
}
