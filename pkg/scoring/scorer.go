package scoring

import (
	"context"

	"github.com/shopguard/sentinel/pkg/types"
)

// Pattern labels one triggered heuristic inside a signal.
type Pattern struct {
	Type    string `json:"type"`
	Score   int    `json:"score"`
	Details string `json:"details,omitempty"`
}

// Result is the structured outcome of one signal. A failed scorer reports
// Err instead of scattering try/catch semantics across call sites; the
// engine logs and zeroes it centrally.
type Result struct {
	Signal   string
	Score    int
	Patterns []Pattern
	Err      error
}

// Scorer computes one 0-100 sub-score from the request and its history.
type Scorer interface {
	Name() string
	Score(ctx context.Context, meta types.RequestMeta) Result
}

// Failed builds an error result for a signal.
func Failed(signal string, err error) Result {
	return Result{Signal: signal, Err: err}
}

// CapScore clamps a raw heuristic sum to the 0-100 score range.
func CapScore(score int) int {
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
