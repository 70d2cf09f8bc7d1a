package docs

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math/rand"

	"telegram-verification-bot/internal/domain/model"
)

// renderCardPNG draws a card-shaped badge image: colored header band, photo
// box, text-line placeholders derived from the identity, and a barcode strip.
// The provider only checks that a plausible image artifact is present; the
// visual content itself is deliberately simple.
func renderCardPNG(identity model.Identity, title string) ([]byte, error) {
	const w, h = 640, 400
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	white := color.RGBA{245, 245, 245, 255}
	band := color.RGBA{28, 78, 152, 255}
	dark := color.RGBA{40, 40, 40, 255}
	grey := color.RGBA{120, 120, 120, 255}

	draw.Draw(img, img.Bounds(), &image.Uniform{white}, image.Point{}, draw.Src)
	// Header band with the card title bar.
	draw.Draw(img, image.Rect(0, 0, w, 72), &image.Uniform{band}, image.Point{}, draw.Src)
	fillRect(img, 24, 26, 24+9*len(title), 46, white)

	// Photo box.
	fillRect(img, 24, 100, 184, 300, grey)
	fillRect(img, 32, 108, 176, 292, color.RGBA{200, 200, 205, 255})

	// Text-line placeholders sized from the actual field lengths.
	lines := []string{
		identity.FullName(),
		identity.Organization.Name,
		identity.BirthDate,
		identity.Email,
	}
	y := 120
	for _, line := range lines {
		width := 10 * len(line)
		if width > w-260 {
			width = w - 260
		}
		fillRect(img, 220, y, 220+width, y+16, dark)
		y += 44
	}

	// Barcode strip.
	x := 220
	for x < w-40 {
		bar := 2 + rand.Intn(5)
		if rand.Intn(2) == 0 {
			fillRect(img, x, 320, x+bar, 372, dark)
		}
		x += bar + 2
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fillRect(img *image.RGBA, x0, y0, x1, y1 int, c color.Color) {
	draw.Draw(img, image.Rect(x0, y0, x1, y1), &image.Uniform{c}, image.Point{}, draw.Src)
}
