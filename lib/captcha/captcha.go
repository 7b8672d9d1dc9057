// Package captcha turns challenge images into text guesses. Solving
// is best-effort: an empty Solution is a valid outcome and the caller
// decides what to do with it.
package captcha

import (
	"context"
	"time"
)

// Image is one fetched challenge image. Images are single-use, the
// counterparty invalidates them after a submission.
type Image struct {
	Bytes      []byte
	CapturedAt time.Time
}

// Solution is the outcome of solving one Image. Text may be empty
// when no qualifying candidate was produced, with zero confidence.
type Solution struct {
	Text            string
	Confidence      float64
	Votes           int
	TotalCandidates int
}

// Solver is the capability interface the workflow depends on. The OCR
// ensemble, a human at a terminal, and a remote solving service all
// implement it.
type Solver interface {
	Solve(ctx context.Context, img Image) (Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, img Image) (Solution, error)

func (f SolverFunc) Solve(ctx context.Context, img Image) (Solution, error) {
	return f(ctx, img)
}
