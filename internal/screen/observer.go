package screen

import (
	"context"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/kbinani/screenshot"

	"elaine/internal/llm"
)

// Observer periodically captures the screen, reduces it to a short
// description and narrates a generated comment about it.
type Observer struct {
	interval time.Duration
	gen      llm.Generator
	prompt   llm.PromptBuilder
	say      func(ctx context.Context, text string)
	idle     func() bool // true when the user has been quiet long enough
	log      *slog.Logger
}

func NewObserver(interval time.Duration, gen llm.Generator, prompt llm.PromptBuilder, say func(context.Context, string), idle func() bool) *Observer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Observer{
		interval: interval,
		gen:      gen,
		prompt:   prompt,
		say:      say,
		idle:     idle,
		log:      slog.Default().With("component", "screen"),
	}
}

func (o *Observer) Run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if o.idle != nil && !o.idle() {
			continue
		}

		img, err := screenshot.CaptureDisplay(0)
		if err != nil {
			o.log.Warn("screen capture failed", "err", err)
			continue
		}
		desc := Describe(img)
		o.log.Info("screen", "description", desc)

		seed := "Сейчас на экране: " + desc + ". Прокомментируй коротко."
		comment, err := o.gen.Generate(ctx, o.prompt.Build(nil, seed))
		if err != nil {
			o.log.Warn("screen comment generation failed", "err", err)
			continue
		}
		comment = llm.DedupClauses(strings.TrimSpace(comment))
		if comment == "" {
			continue
		}
		o.say(ctx, comment)
	}
}

// Describe reduces an image to a short human-readable description from
// its mean brightness and dominant color channel.
func Describe(img image.Image) string {
	bounds := img.Bounds()
	if bounds.Empty() {
		return "пустой экран"
	}

	// Stride so even a 4K shot costs a few thousand samples.
	stepX := bounds.Dx() / 64
	stepY := bounds.Dy() / 64
	if stepX < 1 {
		stepX = 1
	}
	if stepY < 1 {
		stepY = 1
	}

	var rSum, gSum, bSum, n uint64
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += uint64(r >> 8)
			gSum += uint64(g >> 8)
			bSum += uint64(b >> 8)
			n++
		}
	}
	if n == 0 {
		return "пустой экран"
	}

	rMean := float64(rSum) / float64(n)
	gMean := float64(gSum) / float64(n)
	bMean := float64(bSum) / float64(n)
	brightness := (rMean + gMean + bMean) / 3.0

	var desc string
	switch {
	case brightness < 60:
		desc = "тёмный экран"
	case brightness < 150:
		desc = "экран средней яркости"
	default:
		desc = "светлый экран"
	}

	const margin = 15.0
	switch {
	case rMean > gMean+margin && rMean > bMean+margin:
		desc += " с преобладанием красного"
	case gMean > rMean+margin && gMean > bMean+margin:
		desc += " с преобладанием зелёного"
	case bMean > rMean+margin && bMean > gMean+margin:
		desc += " с преобладанием синего"
	}
	return desc
}
