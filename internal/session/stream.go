package session

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/intelapi/internal/engine"
)

// Stream runs a streaming generation. It yields one chunk per engine
// snapshot followed by a single terminal chunk carrying the finish reason, or
// a single failure chunk if the engine fails. The channel is closed when the
// stream ends. Cancelling ctx stops the engine and closes the channel without
// a terminal chunk.
func (s *Session) Stream(ctx context.Context) <-chan Chunk {
	out := make(chan Chunk)
	go func() {
		defer close(out)
		s.run(ctx, out)
	}()
	return out
}

func (s *Session) run(ctx context.Context, out chan<- Chunk) {
	send := func(c Chunk) bool {
		select {
		case out <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if s.format != nil && s.format.missing {
		send(failureChunk(ErrMissingResponseSchema))
		return
	}

	snaps := make(chan engine.Generation)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(snaps)
		return s.model.Engine.Stream(gctx, s.engineRequest(), func(gen engine.Generation) error {
			select {
			case snaps <- gen:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
	})

	d := &differ{}
	g.Go(func() error {
		for gen := range snaps {
			chunk, err := d.next(s, gen)
			if err != nil {
				return err
			}
			if !send(chunk) {
				return ctx.Err()
			}
		}
		return nil
	})

	err := g.Wait()
	switch {
	case ctx.Err() != nil:
	case err != nil:
		send(failureChunk(err))
	default:
		if s.format != nil && d.lastDocument != nil {
			s.checkConformance(*d.lastDocument)
		}
		send(d.terminal())
	}
}

// differ turns cumulative snapshots into deltas.
type differ struct {
	previousTextLength   int
	accumulatedToolCalls int
	lastDocument         *string // structured output only
}

// next returns the delta between gen and the previous snapshot. Structured
// output is not diffed: every chunk carries the whole materialized document.
func (d *differ) next(s *Session, gen engine.Generation) (Chunk, error) {
	var c Chunk

	if s.format != nil {
		doc, err := s.render(gen)
		if err != nil {
			return Chunk{}, err
		}
		c.Content = &doc
		d.lastDocument = &doc
	} else if n := len(gen.Text); n > d.previousTextLength {
		delta := gen.Text[d.previousTextLength:]
		c.Content = &delta
		d.previousTextLength = n
	}

	if n := len(gen.ToolCalls); n > d.accumulatedToolCalls {
		c.ToolCalls = wireToolCalls(gen.ToolCalls[d.accumulatedToolCalls:], d.accumulatedToolCalls, true)
		d.accumulatedToolCalls = n
	}
	return c, nil
}

func (d *differ) terminal() Chunk {
	if d.accumulatedToolCalls > 0 {
		return Chunk{FinishReason: FinishToolCalls}
	}
	return Chunk{FinishReason: FinishStop}
}
