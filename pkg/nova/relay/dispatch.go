package relay

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// DefaultChunkSize is Discord's single-message character limit.
const DefaultChunkSize = 2000

// Chunk is one outbound piece of a response.
type Chunk struct {
	// Index is the send order, starting at 0.
	Index int
	Text  string
}

// SendFunc transmits one chunk and returns once the platform accepted it.
type SendFunc func(ctx context.Context, c Chunk) error

// SplitChunks cuts text into contiguous pieces of exactly size code points;
// the last piece may be shorter. No attempt is made to respect word or
// markup boundaries.
func SplitChunks(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if utf8.RuneCountInString(text) <= size {
		return []string{text}
	}

	var chunks []string
	count, start := 0, 0
	for i := range text {
		if count == size {
			chunks = append(chunks, text[start:i])
			start, count = i, 0
		}
		count++
	}
	return append(chunks, text[start:])
}

// Dispatcher sends responses in platform-sized chunks.
type Dispatcher struct {
	ChunkSize int
}

// Dispatch sends text chunk by chunk. Each send completes before the next
// begins; the first error stops the remaining chunks.
func (d Dispatcher) Dispatch(ctx context.Context, text string, send SendFunc) error {
	for i, part := range SplitChunks(text, d.ChunkSize) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := send(ctx, Chunk{Index: i, Text: part}); err != nil {
			return fmt.Errorf("sending chunk %d: %w", i, err)
		}
	}
	return nil
}
