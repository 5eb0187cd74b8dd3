package guardrail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kalambet/intelapi/internal/engine"
	"github.com/kalambet/intelapi/internal/metrics"
)

// Policy selects which side of a generation is checked.
type Policy int

const (
	// Default checks both the input and the generated output.
	Default Policy = iota
	// Permissive checks only the input.
	Permissive
)

func (p Policy) String() string {
	if p == Permissive {
		return "permissive"
	}
	return "default"
}

// Guarded is an engine.Engine that enforces a guardrail policy around
// another engine.
type Guarded struct {
	next    engine.Engine
	matcher *Matcher
	policy  Policy
}

// Wrap returns next guarded by matcher under policy.
func Wrap(next engine.Engine, matcher *Matcher, policy Policy) *Guarded {
	return &Guarded{next: next, matcher: matcher, policy: policy}
}

func (g *Guarded) Respond(ctx context.Context, req engine.Request) (engine.Generation, error) {
	if err := g.checkInput(req); err != nil {
		return engine.Generation{}, err
	}
	gen, err := g.next.Respond(ctx, req)
	if err != nil {
		return engine.Generation{}, err
	}
	if g.policy == Default {
		if phrase, ok := g.matcher.Match(gen.Text); ok {
			return engine.Generation{}, g.violation("output", phrase)
		}
	}
	return gen, nil
}

func (g *Guarded) Stream(ctx context.Context, req engine.Request, onSnapshot func(engine.Generation) error) error {
	if err := g.checkInput(req); err != nil {
		return err
	}
	if g.policy != Default {
		return g.next.Stream(ctx, req, onSnapshot)
	}

	// The last word of a snapshot may still be growing, so it is rechecked.
	checked := 0
	return g.next.Stream(ctx, req, func(gen engine.Generation) error {
		words := tokenize(gen.Text)
		if phrase, ok := g.matcher.matchWords(words, checked-1); ok {
			return g.violation("output", phrase)
		}
		checked = len(words)
		return onSnapshot(gen)
	})
}

// checkInput scans the live prompt and every user and tool turn.
func (g *Guarded) checkInput(req engine.Request) error {
	texts := []string{req.Prompt}
	for _, entry := range req.Transcript.Entries {
		switch e := entry.(type) {
		case *engine.Prompt:
			texts = append(texts, engine.Text(e.Segments))
		case *engine.ToolResult:
			texts = append(texts, engine.Text(e.Segments))
		}
	}
	for _, t := range texts {
		if phrase, ok := g.matcher.Match(t); ok {
			return g.violation("input", phrase)
		}
	}
	return nil
}

func (g *Guarded) violation(stage, phrase string) error {
	metrics.GuardrailViolationsTotal.WithLabelValues(g.policy.String(), stage).Inc()
	slog.Debug("guardrail violation", "policy", g.policy, "stage", stage, "phrase", phrase)
	return fmt.Errorf("%w: %s matches blocked phrase %q", engine.ErrGuardrailViolation, stage, phrase)
}
