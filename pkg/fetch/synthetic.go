package fetch

import (
	"bytes"
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	"image/png"
	"time"

	"github.com/lucasb-eyer/go-colorful"

	"tableflip.dev/tilegrid/pkg/imagecache"
)

// SyntheticTransport renders a PNG per key instead of going to the network.
// The hue is derived from the id, so a key always produces the same image.
type SyntheticTransport struct {
	// Latency is added to every call.
	Latency time.Duration
}

// Dimensions returns the pixel size generated for a size variant.
func Dimensions(size imagecache.Size) (int, int) {
	switch size {
	case imagecache.SizeSmall:
		return 25, 35
	case imagecache.SizeLarge:
		return 100, 140
	default:
		return 50, 70
	}
}

// BaseColor is the dominant color generated for key.
func BaseColor(key imagecache.Key) colorful.Color {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.ID))
	hue := float64(h.Sum32() % 360)
	c := colorful.Hcl(hue, 0.55, 0.7)
	if key.Face == imagecache.FaceBack {
		c = colorful.Hcl(hue, 0.25, 0.35)
	}
	return c.Clamped()
}

func (s SyntheticTransport) Fetch(ctx context.Context, key imagecache.Key) ([]byte, error) {
	if s.Latency > 0 {
		timer := time.NewTimer(s.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	key = key.Normalize()
	w, h := Dimensions(key.Size)
	base := BaseColor(key)
	frame := base.BlendLab(colorful.Color{R: 1, G: 1, B: 1}, 0.5).Clamped()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	border := max(1, w/12)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := base
			if x < border || y < border || x >= w-border || y >= h-border {
				c = frame
			}
			r, g, b := c.RGB255()
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 0xff})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("fetch: encode %s: %w", key, err)
	}
	return buf.Bytes(), nil
}
