package printing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"
	"testing"

	"github.com/jo-hoe/boothprint/internal/backend/database"
)

// fakeFetcher serves encoded images from memory and counts requests per URL
type fakeFetcher struct {
	mu     sync.Mutex
	images map[string][]byte
	calls  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{images: map[string][]byte{}, calls: map[string]int{}}
}

func (f *fakeFetcher) add(url string, data []byte) {
	f.images[url] = data
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	data, ok := f.images[url]
	if !ok {
		return nil, fmt.Errorf("failed to download image: status 404")
	}
	return data, nil
}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode error: %v", err)
	}
	return buf.Bytes()
}

func submissionsWithURLs(urls ...string) []*database.Submission {
	out := make([]*database.Submission, 0, len(urls))
	for i, u := range urls {
		out = append(out, &database.Submission{ID: fmt.Sprintf("id-%d", i), ImageURL: u})
	}
	return out
}

func sampleURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://images.example.com/%d.png", i)
	}
	return urls
}
