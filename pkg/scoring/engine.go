package scoring

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/shopguard/sentinel/pkg/domain/actor"
	"github.com/shopguard/sentinel/pkg/infra/metrics"
	"github.com/shopguard/sentinel/pkg/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Weights maps signal names to their share of the composite score. The
// shares must sum to 1.0.
type Weights map[string]float64

// Evaluation is the outcome of one composite scoring pass.
type Evaluation struct {
	Score           int
	Recommendation  types.Recommendation
	ShouldBlock     bool
	ShouldChallenge bool
	AutoBlocked     bool
	Results         []Result
}

// Engine runs every registered scorer concurrently and folds the sub-scores
// into one weighted composite. A failed signal is logged and contributes
// zero; the request is never failed because a scorer was.
type Engine struct {
	scorers             []Scorer
	weights             Weights
	blockThreshold      int
	suspiciousThreshold int
	actors              actor.Store
	logger              logrus.FieldLogger
	now                 func() time.Time
}

func NewEngine(
	scorers []Scorer,
	weights Weights,
	blockThreshold, suspiciousThreshold int,
	actors actor.Store,
	logger logrus.FieldLogger,
) (*Engine, error) {
	if len(scorers) == 0 {
		return nil, fmt.Errorf("at least one scorer is required")
	}
	sum := 0.0
	for _, scorer := range scorers {
		w, ok := weights[scorer.Name()]
		if !ok {
			return nil, fmt.Errorf("no weight configured for signal %q", scorer.Name())
		}
		sum += w
	}
	if math.Abs(sum-1.0) > 0.001 {
		return nil, fmt.Errorf("signal weights must sum to 1.0, got %.3f", sum)
	}
	if blockThreshold <= suspiciousThreshold {
		return nil, fmt.Errorf("block threshold %d must exceed suspicious threshold %d",
			blockThreshold, suspiciousThreshold)
	}
	return &Engine{
		scorers:             scorers,
		weights:             weights,
		blockThreshold:      blockThreshold,
		suspiciousThreshold: suspiciousThreshold,
		actors:              actors,
		logger:              logger,
		now:                 time.Now,
	}, nil
}

func (e *Engine) Evaluate(ctx context.Context, meta types.RequestMeta) Evaluation {
	started := e.now()
	results := make([]Result, len(e.scorers))

	g, gctx := errgroup.WithContext(ctx)
	for i, scorer := range e.scorers {
		i, scorer := i, scorer
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Failed(scorer.Name(), fmt.Errorf("scorer panicked: %v", r))
				}
			}()
			results[i] = scorer.Score(gctx, meta)
			return nil
		})
	}
	// Goroutines only report via the results slice.
	_ = g.Wait()

	weighted := 0.0
	for i := range results {
		if results[i].Err != nil {
			e.logger.WithError(results[i].Err).
				WithField("signal", results[i].Signal).
				WithField("ip", meta.IP).
				Error("signal scorer failed, scoring it zero")
			metrics.ScorerErrorsTotal.WithLabelValues(results[i].Signal).Inc()
			results[i].Score = 0
			continue
		}
		weighted += float64(results[i].Score) * e.weights[results[i].Signal]
	}

	score := CapScore(int(math.Round(weighted)))
	eval := Evaluation{
		Score:          score,
		Recommendation: Recommend(score),
		ShouldBlock:    score >= e.blockThreshold,
		Results:        results,
	}
	eval.ShouldChallenge = !eval.ShouldBlock && score >= e.suspiciousThreshold

	if eval.ShouldBlock {
		eval.AutoBlocked = e.autoBlock(ctx, meta.IP, score)
	}

	metrics.DetectionsTotal.WithLabelValues(string(eval.Recommendation)).Inc()
	metrics.DetectionLatency.Observe(float64(e.now().Sub(started).Milliseconds()))
	return eval
}

// Recommend maps a composite score to its response tier.
func Recommend(score int) types.Recommendation {
	switch {
	case score >= 90:
		return types.BlockImmediately
	case score >= 70:
		return types.RequireCaptcha
	case score >= 50:
		return types.RateLimitStrict
	case score >= 30:
		return types.MonitorClosely
	default:
		return types.AllowNormal
	}
}

// autoBlock records the IP in the known-actor table. Insert-if-absent keeps
// concurrent detections for the same IP from clobbering an operator-placed
// record.
func (e *Engine) autoBlock(ctx context.Context, ip string, score int) bool {
	err := e.actors.Block(ctx, &actor.KnownActor{
		IPAddress:       ip,
		ProxyType:       actor.ProxyTypeBlocked,
		ConfidenceScore: score,
		IsBlocked:       true,
		AutoBlocked:     true,
		Reason:          fmt.Sprintf("auto-blocked: suspicion score %d", score),
		DetectedAt:      e.now(),
	})
	if err != nil {
		e.logger.WithError(err).WithField("ip", ip).Error("failed to auto-block IP")
		return false
	}
	metrics.AutoBlocksTotal.Inc()
	e.logger.WithField("ip", ip).WithField("score", score).Warn("IP auto-blocked")
	return true
}
