package detection_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/shopguard/sentinel/pkg/cache"
	"github.com/shopguard/sentinel/pkg/config"
	"github.com/shopguard/sentinel/pkg/detection"
	"github.com/shopguard/sentinel/pkg/domain/actor"
	actormocks "github.com/shopguard/sentinel/pkg/domain/actor/mocks"
	"github.com/shopguard/sentinel/pkg/domain/tracking"
	trackingmocks "github.com/shopguard/sentinel/pkg/domain/tracking/mocks"
	"github.com/shopguard/sentinel/pkg/infra/fingerprint"
	"github.com/shopguard/sentinel/pkg/ratelimit"
	"github.com/shopguard/sentinel/pkg/scoring"
	"github.com/shopguard/sentinel/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testIP = "203.0.113.99"

type stubScorer struct {
	score int
	err   error
}

func (s stubScorer) Name() string { return "stub" }

func (s stubScorer) Score(context.Context, types.RequestMeta) scoring.Result {
	if s.err != nil {
		return scoring.Failed("stub", s.err)
	}
	return scoring.Result{Signal: "stub", Score: s.score}
}

type fixture struct {
	detector  *detection.Detector
	repo      *trackingmocks.TrackingRepository
	actors    *actormocks.Store
	redisMock redismock.ClientMock
}

func newFixture(t *testing.T, score int, scoreErr error) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	repo := new(trackingmocks.TrackingRepository)
	actors := new(actormocks.Store)
	redisClient, redisMock := redismock.NewClientMock()
	redisCache := cache.NewCacheWithClient(redisClient)

	engine, err := scoring.NewEngine(
		[]scoring.Scorer{stubScorer{score: score, err: scoreErr}},
		scoring.Weights{"stub": 1.0},
		90, 70,
		actors,
		logger,
	)
	require.NoError(t, err)

	limiter := ratelimit.NewLimiter(repo, redisCache, logger, config.RateLimitConfig{})
	tracker := fingerprint.NewTracker(repo, logger)

	return &fixture{
		detector:  detection.NewDetector(engine, tracker, limiter, repo, actors, redisCache, nil, logger),
		repo:      repo,
		actors:    actors,
		redisMock: redisMock,
	}
}

func (f *fixture) expectNotBlockedInRedis() {
	f.redisMock.ExpectExists(fmt.Sprintf(cache.BlockedIPKeyPattern, testIP)).SetVal(0)
	f.redisMock.ExpectExists(fmt.Sprintf(cache.TempBlockKeyPattern, testIP)).SetVal(0)
}

func cleanMeta() types.RequestMeta {
	return types.RequestMeta{
		IP:        testIP,
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0",
		Endpoint:  "/products/42",
		Method:    "GET",
	}
}

func TestDetectCleanRequestAllowed(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.expectNotBlockedInRedis()
	f.actors.On("Get", mock.Anything, testIP).Return(nil, nil)
	f.repo.On("CountHighSeverity", mock.Anything, testIP, 80, mock.Anything).Return(int64(0), nil)
	f.repo.On("RecentFingerprints", mock.Anything, testIP, 20).Return(nil, nil)
	f.repo.On("CountByIPAndEndpoint", mock.Anything, testIP, mock.Anything, mock.Anything).Return(int64(0), nil)
	f.repo.On("CountByIP", mock.Anything, testIP, mock.Anything).Return(int64(0), nil)
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	outcome := f.detector.Detect(context.Background(), cleanMeta())

	assert.True(t, outcome.Decision.Allowed)
	assert.False(t, outcome.Decision.NeedsChallenge)
	assert.Equal(t, 0, outcome.Decision.Score)
	assert.Equal(t, types.AllowNormal, outcome.Decision.Recommendation)
	assert.NotEmpty(t, outcome.Decision.RequestID)
	f.repo.AssertCalled(t, "Insert", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "MarkBlocked", mock.Anything, mock.Anything, mock.Anything)
}

func TestDetectBlockListedIPDenied(t *testing.T) {
	f := newFixture(t, 0, nil)
	key := fmt.Sprintf(cache.BlockedIPKeyPattern, testIP)
	f.redisMock.ExpectExists(key).SetVal(0)
	f.redisMock.ExpectSet(key, "1", 5*time.Minute).SetVal("OK")
	f.actors.On("Get", mock.Anything, testIP).Return(&actor.KnownActor{
		IPAddress: testIP,
		IsBlocked: true,
	}, nil)
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("MarkBlocked", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	outcome := f.detector.Detect(context.Background(), cleanMeta())

	assert.False(t, outcome.Decision.Allowed)
	assert.Equal(t, types.BlockImmediately, outcome.Decision.Recommendation)
	f.repo.AssertCalled(t, "MarkBlocked", mock.Anything, mock.Anything, mock.Anything)
}

func TestDetectHighScoreBlocksAndAutoBlocks(t *testing.T) {
	f := newFixture(t, 95, nil)
	f.expectNotBlockedInRedis()
	f.actors.On("Get", mock.Anything, testIP).Return(nil, nil)
	f.actors.On("Block", mock.Anything, mock.MatchedBy(func(r *actor.KnownActor) bool {
		return r.IPAddress == testIP && r.AutoBlocked
	})).Return(nil)
	f.repo.On("CountHighSeverity", mock.Anything, testIP, 80, mock.Anything).Return(int64(0), nil)
	f.repo.On("RecentFingerprints", mock.Anything, testIP, 20).Return(nil, nil)
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("MarkBlocked", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	outcome := f.detector.Detect(context.Background(), cleanMeta())

	assert.False(t, outcome.Decision.Allowed)
	assert.Equal(t, 95, outcome.Decision.Score)
	assert.Equal(t, types.BlockImmediately, outcome.Decision.Recommendation)
	f.actors.AssertExpectations(t)
	f.repo.AssertCalled(t, "MarkBlocked", mock.Anything, mock.Anything, mock.Anything)
}

func TestDetectChallengeBand(t *testing.T) {
	f := newFixture(t, 75, nil)
	f.expectNotBlockedInRedis()
	f.actors.On("Get", mock.Anything, testIP).Return(nil, nil)
	f.repo.On("CountHighSeverity", mock.Anything, testIP, 80, mock.Anything).Return(int64(0), nil)
	f.repo.On("RecentFingerprints", mock.Anything, testIP, 20).Return(nil, nil)
	f.repo.On("CountByIPAndEndpoint", mock.Anything, testIP, mock.Anything, mock.Anything).Return(int64(0), nil)
	f.repo.On("CountByIP", mock.Anything, testIP, mock.Anything).Return(int64(0), nil)
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil)

	outcome := f.detector.Detect(context.Background(), cleanMeta())

	assert.True(t, outcome.Decision.Allowed)
	assert.True(t, outcome.Decision.NeedsChallenge)
	assert.Equal(t, types.RequireCaptcha, outcome.Decision.Recommendation)
}

func TestDetectRateLimitedRequestDenied(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.expectNotBlockedInRedis()
	f.actors.On("Get", mock.Anything, testIP).Return(nil, nil)
	f.repo.On("CountHighSeverity", mock.Anything, testIP, 80, mock.Anything).Return(int64(0), nil)
	f.repo.On("RecentFingerprints", mock.Anything, testIP, 20).Return(nil, nil)
	// burst budget for the unmatched endpoint is exhausted
	f.repo.On("CountByIPAndEndpoint", mock.Anything, testIP, mock.Anything, mock.Anything).Return(int64(500), nil)
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("MarkBlocked", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	outcome := f.detector.Detect(context.Background(), cleanMeta())

	assert.False(t, outcome.Decision.Allowed)
	assert.False(t, outcome.RateLimit.Allowed)
	assert.Equal(t, types.RateLimitStrict, outcome.Decision.Recommendation)
}

func TestDetectTempBlockedIPDenied(t *testing.T) {
	f := newFixture(t, 0, nil)
	f.redisMock.ExpectExists(fmt.Sprintf(cache.BlockedIPKeyPattern, testIP)).SetVal(0)
	f.redisMock.ExpectExists(fmt.Sprintf(cache.TempBlockKeyPattern, testIP)).SetVal(1)
	f.redisMock.ExpectTTL(fmt.Sprintf(cache.TempBlockKeyPattern, testIP)).SetVal(time.Hour)
	f.actors.On("Get", mock.Anything, testIP).Return(nil, nil)
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.repo.On("MarkBlocked", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	outcome := f.detector.Detect(context.Background(), cleanMeta())

	assert.False(t, outcome.Decision.Allowed)
	assert.False(t, outcome.RateLimit.Allowed)
	assert.Equal(t, "temp_block", outcome.RateLimit.Kind)
}

func TestDetectFailsOpenWhenEverythingIsDown(t *testing.T) {
	down := errors.New("connection refused")
	f := newFixture(t, 0, down)
	f.expectNotBlockedInRedis()
	f.actors.On("Get", mock.Anything, testIP).Return(nil, down)
	f.repo.On("CountHighSeverity", mock.Anything, testIP, 80, mock.Anything).Return(int64(0), down)
	f.repo.On("RecentFingerprints", mock.Anything, testIP, 20).Return(nil, down)
	f.repo.On("CountByIPAndEndpoint", mock.Anything, testIP, mock.Anything, mock.Anything).Return(int64(0), down)
	f.repo.On("CountByIP", mock.Anything, testIP, mock.Anything).Return(int64(0), down)
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(down)

	outcome := f.detector.Detect(context.Background(), cleanMeta())

	assert.True(t, outcome.Decision.Allowed)
	assert.Equal(t, 0, outcome.Decision.Score)
	assert.Equal(t, types.AllowNormal, outcome.Decision.Recommendation)
}

func TestDetectRecordsAuditRow(t *testing.T) {
	f := newFixture(t, 40, nil)
	f.expectNotBlockedInRedis()
	f.actors.On("Get", mock.Anything, testIP).Return(nil, nil)
	f.repo.On("CountHighSeverity", mock.Anything, testIP, 80, mock.Anything).Return(int64(0), nil)
	f.repo.On("RecentFingerprints", mock.Anything, testIP, 20).Return(nil, nil)
	f.repo.On("CountByIPAndEndpoint", mock.Anything, testIP, mock.Anything, mock.Anything).Return(int64(0), nil)
	f.repo.On("CountByIP", mock.Anything, testIP, mock.Anything).Return(int64(0), nil)
	f.repo.On("Insert", mock.Anything, mock.MatchedBy(func(r *tracking.TrackedRequest) bool {
		return r.IPAddress == testIP &&
			r.Endpoint == "/products/42" &&
			r.SuspiciousScore == 40 &&
			r.FingerprintHash != ""
	})).Return(nil)

	outcome := f.detector.Detect(context.Background(), cleanMeta())

	assert.True(t, outcome.Decision.Allowed)
	assert.Equal(t, types.MonitorClosely, outcome.Decision.Recommendation)
	assert.NotEmpty(t, outcome.Fingerprint)
	f.repo.AssertExpectations(t)
}
