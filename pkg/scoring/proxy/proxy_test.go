package proxy_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopguard/sentinel/pkg/domain/actor"
	actormocks "github.com/shopguard/sentinel/pkg/domain/actor/mocks"
	trackingmocks "github.com/shopguard/sentinel/pkg/domain/tracking/mocks"
	"github.com/shopguard/sentinel/pkg/scoring/proxy"
	"github.com/shopguard/sentinel/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newScorer(actors *actormocks.Store, repo *trackingmocks.TrackingRepository) *proxy.Scorer {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return proxy.New(actors, repo, logger, nil, nil)
}

func cleanMeta(ip string) types.RequestMeta {
	return types.RequestMeta{
		IP:        ip,
		UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0",
		Headers: map[string]string{
			"accept-language": "de-DE,de;q=0.9",
			"accept-encoding": "gzip, deflate, br",
		},
	}
}

func TestCleanResidentialRequest(t *testing.T) {
	actors := new(actormocks.Store)
	repo := new(trackingmocks.TrackingRepository)
	actors.On("Get", mock.Anything, "93.184.216.34").Return(nil, nil)
	repo.On("TopScoresByIP", mock.Anything, "93.184.216.34", mock.Anything, 10).Return(nil, nil)

	result := newScorer(actors, repo).Score(context.Background(), cleanMeta("93.184.216.34"))

	assert.NoError(t, result.Err)
	assert.Equal(t, 0, result.Score)
}

func TestKnownProxyAddsConfidence(t *testing.T) {
	actors := new(actormocks.Store)
	repo := new(trackingmocks.TrackingRepository)
	actors.On("Get", mock.Anything, "93.184.216.34").Return(&actor.KnownActor{
		IPAddress:       "93.184.216.34",
		ProxyType:       actor.ProxyTypeVPN,
		ConfidenceScore: 55,
	}, nil)
	repo.On("TopScoresByIP", mock.Anything, mock.Anything, mock.Anything, 10).Return(nil, nil)

	scorer := newScorer(actors, repo)
	result := scorer.Score(context.Background(), cleanMeta("93.184.216.34"))

	assert.Equal(t, 55, result.Score)
	verdict := scorer.Verdict(result)
	assert.True(t, verdict.IsProxy)
	assert.Equal(t, actor.ProxyTypeVPN, verdict.ProxyType)
}

func TestProxyHeadersScoreFifteenEach(t *testing.T) {
	actors := new(actormocks.Store)
	repo := new(trackingmocks.TrackingRepository)
	actors.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("TopScoresByIP", mock.Anything, mock.Anything, mock.Anything, 10).Return(nil, nil)

	meta := cleanMeta("93.184.216.34")
	meta.Headers["x-forwarded-for"] = "10.0.0.1"
	meta.Headers["via"] = "1.1 cache"

	result := newScorer(actors, repo).Score(context.Background(), meta)
	assert.Equal(t, 30, result.Score)
}

func TestMissingHeadersAndManipulation(t *testing.T) {
	actors := new(actormocks.Store)
	repo := new(trackingmocks.TrackingRepository)
	actors.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("TopScoresByIP", mock.Anything, mock.Anything, mock.Anything, 10).Return(nil, nil)

	meta := types.RequestMeta{IP: "93.184.216.34", UserAgent: "Mozilla/5.0"}

	// manipulation +25, missing accept-language +10, missing accept-encoding +10
	result := newScorer(actors, repo).Score(context.Background(), meta)
	assert.Equal(t, 45, result.Score)
}

func TestDatacenterIPDetectedAndRecorded(t *testing.T) {
	actors := new(actormocks.Store)
	repo := new(trackingmocks.TrackingRepository)
	actors.On("Get", mock.Anything, "104.21.5.9").Return(nil, nil)
	actors.On("Classify", mock.Anything, mock.MatchedBy(func(r *actor.KnownActor) bool {
		return r.IPAddress == "104.21.5.9" &&
			r.ProxyType == actor.ProxyTypeDatacenter &&
			r.ConfidenceScore == 60 &&
			!r.IsBlocked
	})).Return(nil)
	repo.On("TopScoresByIP", mock.Anything, mock.Anything, mock.Anything, 10).Return(nil, nil)

	scorer := newScorer(actors, repo)
	result := scorer.Score(context.Background(), cleanMeta("104.21.5.9"))

	assert.Equal(t, 60, result.Score)
	assert.True(t, scorer.Verdict(result).IsProxy)
	actors.AssertExpectations(t)
	// classification must never go through the full upsert, which would
	// overwrite the block columns
	actors.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestGeoInconsistency(t *testing.T) {
	actors := new(actormocks.Store)
	repo := new(trackingmocks.TrackingRepository)
	actors.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("TopScoresByIP", mock.Anything, mock.Anything, mock.Anything, 10).Return(nil, nil)

	meta := cleanMeta("93.184.216.34")
	meta.Headers["accept-language"] = "en-US,en;q=0.9"
	meta.Headers["x-timezone"] = "Asia/Shanghai"

	result := newScorer(actors, repo).Score(context.Background(), meta)
	assert.Equal(t, 40, result.Score)
}

func TestBadReputation(t *testing.T) {
	actors := new(actormocks.Store)
	repo := new(trackingmocks.TrackingRepository)
	actors.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("TopScoresByIP", mock.Anything, mock.Anything, mock.Anything, 10).
		Return([]int{95, 90, 88, 85, 80, 75, 72}, nil)

	result := newScorer(actors, repo).Score(context.Background(), cleanMeta("93.184.216.34"))

	// avg over 50 (+30) and more than five scores over 70 (+40)
	assert.Equal(t, 70, result.Score)
}

func TestReputationFailureDoesNotZeroSignal(t *testing.T) {
	actors := new(actormocks.Store)
	repo := new(trackingmocks.TrackingRepository)
	actors.On("Get", mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("TopScoresByIP", mock.Anything, mock.Anything, mock.Anything, 10).
		Return(nil, errors.New("timeout"))

	meta := cleanMeta("93.184.216.34")
	meta.Headers["via"] = "1.1 cache"

	result := newScorer(actors, repo).Score(context.Background(), meta)
	assert.NoError(t, result.Err)
	assert.Equal(t, 15, result.Score)
}

func TestActorLookupFailureFailsSignal(t *testing.T) {
	actors := new(actormocks.Store)
	repo := new(trackingmocks.TrackingRepository)
	actors.On("Get", mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	result := newScorer(actors, repo).Score(context.Background(), cleanMeta("93.184.216.34"))
	assert.Error(t, result.Err)
}
