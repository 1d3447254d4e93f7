// Package reveal emits text progressively, one rune per tick.
package reveal

import (
	"context"
	"time"
)

// DefaultDelay is the per-character pace of the analyst SQL box.
const DefaultDelay = 12 * time.Millisecond

type Revealer struct {
	// Delay between emitted prefixes. Zero emits the full text once.
	Delay time.Duration
}

// Reveal calls emit with growing prefixes of text until the whole text has
// been emitted or ctx is done. It returns ctx.Err() on cancellation.
func (r Revealer) Reveal(ctx context.Context, text string, emit func(partial string)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	runes := []rune(text)
	if r.Delay <= 0 || len(runes) == 0 {
		emit(text)
		return nil
	}

	ticker := time.NewTicker(r.Delay)
	defer ticker.Stop()
	for i := 1; i <= len(runes); i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		emit(string(runes[:i]))
	}
	return nil
}
