package server

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"time"

	"golang.org/x/image/draw"
)

// Provider performs the AI work behind the API. The development backend
// ships StubProvider only.
type Provider interface {
	Analyze(ctx context.Context, img *ImageUpload, provider string) (*ImageAnalysis, error)
	Generate(ctx context.Context, prompt, provider string) ([]byte, error)
	Improve(ctx context.Context, base []byte, prompt string) ([]byte, error)
}

var (
	analyzeProviders    = map[string]bool{"openai": true, "anthropic": true}
	regenerateProviders = map[string]bool{"openai": true, "stabilityai": true}
)

// StubProvider answers deterministically from the image pixels and the prompt
// text, so the whole pipeline can run offline.
type StubProvider struct {
	// Size is the edge of generated images. Zero means 512.
	Size int
}

var _ Provider = StubProvider{}

func (p StubProvider) size() int {
	if p.Size > 0 {
		return p.Size
	}
	return 512
}

// Analyze summarizes the image palette and shape into a prompt.
func (p StubProvider) Analyze(ctx context.Context, upload *ImageUpload, provider string) (*ImageAnalysis, error) {
	start := time.Now()
	img, _, err := image.Decode(bytes.NewReader(upload.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	avg := averageColor(img)
	b := img.Bounds()
	orientation := "square"
	switch {
	case b.Dx() > b.Dy():
		orientation = "landscape"
	case b.Dx() < b.Dy():
		orientation = "portrait"
	}
	mood := "bright"
	if luminance(avg) < 0.5 {
		mood = "moody"
	}

	dominant := Color{Hex: hexOf(avg), RGB: [3]uint8{avg.R, avg.G, avg.B}, Percentage: 100}
	return &ImageAnalysis{
		ImageID:     upload.ID,
		LLMProvider: provider,
		GlobalAttributes: GlobalAttributes{
			Style:          "sketch",
			Mood:           mood,
			Lighting:       "flat",
			Perspective:    "frontal",
			DominantColors: []Color{dominant},
		},
		PromptDescription: fmt.Sprintf("A %s %s sketch in %s tones", mood, orientation, dominant.Hex),
		Metadata: AnalysisMetadata{
			ProcessingTimeMS: time.Since(start).Milliseconds(),
			ModelUsed:        "stub-" + provider,
			ConfidenceScore:  1,
		},
	}, nil
}

// Generate paints a PNG whose colors derive from the prompt.
func (p StubProvider) Generate(ctx context.Context, prompt, provider string) ([]byte, error) {
	n := p.size()
	bg, fg := promptColors(provider + "\x00" + prompt)
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)

	// Diagonal bands give the result some structure to improve on.
	band := max(n/8, 1)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if ((x+y)/band)%2 == 0 {
				img.SetRGBA(x, y, fg)
			}
		}
	}
	return encodePNG(img)
}

// Improve tints the base image towards the prompt color.
func (p StubProvider) Improve(ctx context.Context, base []byte, prompt string) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(base))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	out := image.NewRGBA(src.Bounds())
	draw.Draw(out, out.Bounds(), src, src.Bounds().Min, draw.Src)

	tint, _ := promptColors(prompt)
	draw.DrawMask(out, out.Bounds(), &image.Uniform{C: tint}, image.Point{}, &image.Uniform{C: color.Alpha{A: 64}}, image.Point{}, draw.Over)
	return encodePNG(out)
}

func promptColors(s string) (color.RGBA, color.RGBA) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	v := h.Sum64()
	bg := color.RGBA{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: 255}
	fg := color.RGBA{R: uint8(v >> 24), G: uint8(v >> 32), B: uint8(v >> 40), A: 255}
	return bg, fg
}

func averageColor(img image.Image) color.RGBA {
	b := img.Bounds()
	// Sample on a grid so large uploads stay cheap.
	step := max(1, max(b.Dx(), b.Dy())/64)
	var r, g, bl, n uint64
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r += uint64(cr >> 8)
			g += uint64(cg >> 8)
			bl += uint64(cb >> 8)
			n++
		}
	}
	if n == 0 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(bl / n), A: 255}
}

func luminance(c color.RGBA) float64 {
	return (0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)) / 255
}

func hexOf(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
