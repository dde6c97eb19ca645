package printing

import "image"

// BatchSize is the number of stickers on one sheet
const BatchSize = 6

// Letter at 300 DPI
const (
	SheetWidth  = 2550
	SheetHeight = 3300
	SheetDPI    = 300
)

// Slots are the upper-left corners of the sticker cut-outs in placement order:
// top left, top right, middle left, middle right, bottom left, bottom right.
var Slots = [BatchSize]image.Point{
	{X: 135, Y: 130},
	{X: 1460, Y: 130},
	{X: 142, Y: 1185},
	{X: 1461, Y: 1185},
	{X: 135, Y: 2235},
	{X: 1463, Y: 2235},
}

// NormalizeBatch returns exactly size URLs. Short batches are padded by repeating the
// first URL and long ones keep only the first size entries. An empty input stays empty.
func NormalizeBatch(urls []string, size int) []string {
	if len(urls) == 0 || size <= 0 {
		return nil
	}
	out := make([]string, 0, size)
	for i := 0; i < size; i++ {
		if i < len(urls) {
			out = append(out, urls[i])
		} else {
			out = append(out, urls[0])
		}
	}
	return out
}
