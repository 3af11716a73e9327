package scoring_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopguard/sentinel/pkg/domain/actor"
	"github.com/shopguard/sentinel/pkg/domain/actor/mocks"
	"github.com/shopguard/sentinel/pkg/scoring"
	"github.com/shopguard/sentinel/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubScorer struct {
	name   string
	result scoring.Result
	panics bool
}

func (s stubScorer) Name() string { return s.name }

func (s stubScorer) Score(context.Context, types.RequestMeta) scoring.Result {
	if s.panics {
		panic("boom")
	}
	return s.result
}

func fixed(name string, score int) stubScorer {
	return stubScorer{name: name, result: scoring.Result{Signal: name, Score: score}}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func defaultWeights() scoring.Weights {
	return scoring.Weights{
		"user_agent": 0.20,
		"proxy":      0.25,
		"behavior":   0.30,
		"honeypot":   0.15,
		"frequency":  0.10,
	}
}

func fiveScorers(ua, px, bh, hp, fq int) []scoring.Scorer {
	return []scoring.Scorer{
		fixed("user_agent", ua),
		fixed("proxy", px),
		fixed("behavior", bh),
		fixed("honeypot", hp),
		fixed("frequency", fq),
	}
}

func newEngine(t *testing.T, scorers []scoring.Scorer, actors actor.Store) *scoring.Engine {
	t.Helper()
	engine, err := scoring.NewEngine(scorers, defaultWeights(), 90, 70, actors, quietLogger())
	require.NoError(t, err)
	return engine
}

func TestNewEngineRejectsBadWeights(t *testing.T) {
	weights := defaultWeights()
	weights["behavior"] = 0.5

	_, err := scoring.NewEngine(fiveScorers(0, 0, 0, 0, 0), weights, 90, 70, new(mocks.Store), quietLogger())
	assert.Error(t, err)
}

func TestNewEngineRejectsMissingWeight(t *testing.T) {
	weights := defaultWeights()
	delete(weights, "honeypot")
	weights["behavior"] = 0.45

	_, err := scoring.NewEngine(fiveScorers(0, 0, 0, 0, 0), weights, 90, 70, new(mocks.Store), quietLogger())
	assert.Error(t, err)
}

func TestNewEngineRejectsInvertedThresholds(t *testing.T) {
	_, err := scoring.NewEngine(fiveScorers(0, 0, 0, 0, 0), defaultWeights(), 70, 90, new(mocks.Store), quietLogger())
	assert.Error(t, err)
}

func TestEvaluateWeightedComposite(t *testing.T) {
	engine := newEngine(t, fiveScorers(50, 40, 60, 0, 100), new(mocks.Store))
	eval := engine.Evaluate(context.Background(), types.RequestMeta{IP: "203.0.113.1"})

	// 50*0.20 + 40*0.25 + 60*0.30 + 0*0.15 + 100*0.10 = 48
	assert.Equal(t, 48, eval.Score)
	assert.Equal(t, types.MonitorClosely, eval.Recommendation)
	assert.False(t, eval.ShouldBlock)
	assert.False(t, eval.ShouldChallenge)
}

func TestEvaluateAllMaxStaysInRange(t *testing.T) {
	actors := new(mocks.Store)
	actors.On("Block", mock.Anything, mock.Anything).Return(nil)

	engine := newEngine(t, fiveScorers(100, 100, 100, 100, 100), actors)
	eval := engine.Evaluate(context.Background(), types.RequestMeta{IP: "203.0.113.1"})

	assert.Equal(t, 100, eval.Score)
	assert.Equal(t, types.BlockImmediately, eval.Recommendation)
	assert.True(t, eval.ShouldBlock)
	assert.False(t, eval.ShouldChallenge)
}

func TestRecommendationTiers(t *testing.T) {
	tests := []struct {
		score    int
		expected types.Recommendation
	}{
		{95, types.BlockImmediately},
		{90, types.BlockImmediately},
		{89, types.RequireCaptcha},
		{70, types.RequireCaptcha},
		{69, types.RateLimitStrict},
		{50, types.RateLimitStrict},
		{49, types.MonitorClosely},
		{30, types.MonitorClosely},
		{29, types.AllowNormal},
		{0, types.AllowNormal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, scoring.Recommend(tt.score), "score %d", tt.score)
	}
}

func TestEvaluateChallengeBand(t *testing.T) {
	// 75 on every signal gives a composite of 75
	engine := newEngine(t, fiveScorers(75, 75, 75, 75, 75), new(mocks.Store))
	eval := engine.Evaluate(context.Background(), types.RequestMeta{IP: "203.0.113.1"})

	assert.Equal(t, 75, eval.Score)
	assert.False(t, eval.ShouldBlock)
	assert.True(t, eval.ShouldChallenge)
	assert.Equal(t, types.RequireCaptcha, eval.Recommendation)
}

func TestEvaluateFailedSignalScoresZero(t *testing.T) {
	scorers := []scoring.Scorer{
		fixed("user_agent", 100),
		stubScorer{name: "proxy", result: scoring.Failed("proxy", errors.New("store down"))},
		fixed("behavior", 0),
		fixed("honeypot", 0),
		fixed("frequency", 0),
	}
	engine := newEngine(t, scorers, new(mocks.Store))
	eval := engine.Evaluate(context.Background(), types.RequestMeta{IP: "203.0.113.1"})

	// only user_agent contributes: 100*0.20
	assert.Equal(t, 20, eval.Score)
}

func TestEvaluateEverySignalFailedAllowsRequest(t *testing.T) {
	err := errors.New("store down")
	scorers := []scoring.Scorer{
		stubScorer{name: "user_agent", result: scoring.Failed("user_agent", err)},
		stubScorer{name: "proxy", result: scoring.Failed("proxy", err)},
		stubScorer{name: "behavior", result: scoring.Failed("behavior", err)},
		stubScorer{name: "honeypot", result: scoring.Failed("honeypot", err)},
		stubScorer{name: "frequency", result: scoring.Failed("frequency", err)},
	}
	actors := new(mocks.Store)
	engine := newEngine(t, scorers, actors)
	eval := engine.Evaluate(context.Background(), types.RequestMeta{IP: "203.0.113.1"})

	assert.Equal(t, 0, eval.Score)
	assert.False(t, eval.ShouldBlock)
	assert.Equal(t, types.AllowNormal, eval.Recommendation)
	actors.AssertNotCalled(t, "Block", mock.Anything, mock.Anything)
}

func TestEvaluatePanickingScorerIsIsolated(t *testing.T) {
	scorers := []scoring.Scorer{
		fixed("user_agent", 100),
		stubScorer{name: "proxy", panics: true},
		fixed("behavior", 100),
		fixed("honeypot", 0),
		fixed("frequency", 0),
	}
	engine := newEngine(t, scorers, new(mocks.Store))

	assert.NotPanics(t, func() {
		eval := engine.Evaluate(context.Background(), types.RequestMeta{IP: "203.0.113.1"})
		assert.Equal(t, 50, eval.Score)
	})
}

func TestEvaluateAutoBlocksAtThreshold(t *testing.T) {
	actors := new(mocks.Store)
	actors.On("Block", mock.Anything, mock.MatchedBy(func(r *actor.KnownActor) bool {
		return r.IPAddress == "203.0.113.1" &&
			r.IsBlocked && r.AutoBlocked &&
			r.ProxyType == actor.ProxyTypeBlocked
	})).Return(nil)

	engine := newEngine(t, fiveScorers(90, 90, 90, 90, 90), actors)
	eval := engine.Evaluate(context.Background(), types.RequestMeta{IP: "203.0.113.1"})

	assert.True(t, eval.ShouldBlock)
	assert.True(t, eval.AutoBlocked)
	actors.AssertExpectations(t)
}

func TestEvaluateAutoBlockFailureStillBlocksRequest(t *testing.T) {
	actors := new(mocks.Store)
	actors.On("Block", mock.Anything, mock.Anything).Return(errors.New("db down"))

	engine := newEngine(t, fiveScorers(100, 100, 100, 100, 100), actors)
	eval := engine.Evaluate(context.Background(), types.RequestMeta{IP: "203.0.113.1"})

	assert.True(t, eval.ShouldBlock)
	assert.False(t, eval.AutoBlocked)
}

func TestEvaluateBelowThresholdNeverBlocks(t *testing.T) {
	actors := new(mocks.Store)
	engine := newEngine(t, fiveScorers(80, 80, 80, 80, 80), actors)
	eval := engine.Evaluate(context.Background(), types.RequestMeta{IP: "203.0.113.1"})

	assert.Equal(t, 80, eval.Score)
	assert.False(t, eval.ShouldBlock)
	actors.AssertNotCalled(t, "Block", mock.Anything, mock.Anything)
}
