package fingerprint_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopguard/sentinel/pkg/domain/tracking/mocks"
	"github.com/shopguard/sentinel/pkg/infra/fingerprint"
	"github.com/shopguard/sentinel/pkg/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func sampleMeta() types.RequestMeta {
	return types.RequestMeta{
		IP:        "198.51.100.7",
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) Firefox/121.0",
		Headers: map[string]string{
			"accept-language":    "en-GB,en;q=0.8",
			"accept-encoding":    "gzip, deflate, br",
			"sec-ch-ua-platform": "Linux",
			"x-timezone":         "Europe/London",
		},
	}
}

func TestHashIsDeterministic(t *testing.T) {
	signals := fingerprint.FromRequest(sampleMeta())
	first := signals.Hash()
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, fingerprint.FromRequest(sampleMeta()).Hash())
	}
	assert.NotEmpty(t, first)
}

func TestHashChangesWithSignals(t *testing.T) {
	base := fingerprint.FromRequest(sampleMeta()).Hash()

	changed := sampleMeta()
	changed.UserAgent = "Mozilla/5.0 (Windows NT 10.0) Chrome/120.0"
	assert.NotEqual(t, base, fingerprint.FromRequest(changed).Hash())

	changed = sampleMeta()
	changed.Headers["accept-language"] = "fr-FR,fr;q=0.9"
	assert.NotEqual(t, base, fingerprint.FromRequest(changed).Hash())
}

func TestHashNormalizesUserAgentCase(t *testing.T) {
	upper := sampleMeta()
	upper.UserAgent = "  MOZILLA/5.0 (X11; Linux x86_64) FIREFOX/121.0 "
	lower := sampleMeta()
	lower.UserAgent = "mozilla/5.0 (x11; linux x86_64) firefox/121.0"
	assert.Equal(t, fingerprint.FromRequest(lower).Hash(), fingerprint.FromRequest(upper).Hash())
}

func TestNonceIsThrowaway(t *testing.T) {
	signals := fingerprint.FromRequest(sampleMeta())
	assert.NotEqual(t, signals.Nonce(), signals.Nonce())
}

func newTracker(repo *mocks.TrackingRepository) *fingerprint.Tracker {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return fingerprint.NewTracker(repo, logger)
}

func TestTrackChangesFirstRequest(t *testing.T) {
	repo := new(mocks.TrackingRepository)
	repo.On("RecentFingerprints", mock.Anything, "198.51.100.7", 20).Return(nil, nil)

	result, err := newTracker(repo).TrackChanges(context.Background(), "198.51.100.7", "abc123")

	assert.NoError(t, err)
	assert.False(t, result.Suspicious)
	assert.Equal(t, 0, result.Score)
	assert.Contains(t, result.Reasons, "first request from IP")
}

func TestTrackChangesStableFingerprint(t *testing.T) {
	history := []string{"abc123", "abc123", "abc123", "abc123", "abc123",
		"abc123", "abc123", "abc123", "abc123", "abc123", "abc123", "abc123"}
	repo := new(mocks.TrackingRepository)
	repo.On("RecentFingerprints", mock.Anything, "198.51.100.7", 20).Return(history, nil)

	result, err := newTracker(repo).TrackChanges(context.Background(), "198.51.100.7", "abc123")

	assert.NoError(t, err)
	assert.False(t, result.Suspicious)
	assert.Equal(t, 0, result.Score)
	assert.False(t, result.NewFingerprint)
}

func TestTrackChangesNovelFingerprintAlone(t *testing.T) {
	history := []string{"aaa", "aaa", "aaa", "aaa", "aaa", "aaa",
		"aaa", "aaa", "aaa", "aaa", "aaa", "aaa"}
	repo := new(mocks.TrackingRepository)
	repo.On("RecentFingerprints", mock.Anything, "198.51.100.7", 20).Return(history, nil)

	result, err := newTracker(repo).TrackChanges(context.Background(), "198.51.100.7", "bbb")

	// novel alone is 15, under the suspicion bar
	assert.NoError(t, err)
	assert.True(t, result.NewFingerprint)
	assert.Equal(t, 15, result.Score)
	assert.False(t, result.Suspicious)
}

func TestTrackChangesRapidRotation(t *testing.T) {
	history := []string{"aaa", "bbb", "ccc", "aaa", "bbb"}
	repo := new(mocks.TrackingRepository)
	repo.On("RecentFingerprints", mock.Anything, "198.51.100.7", 20).Return(history, nil)

	result, err := newTracker(repo).TrackChanges(context.Background(), "198.51.100.7", "ddd")

	// rapid changes (+35) plus novel fingerprint (+15)
	assert.NoError(t, err)
	assert.Equal(t, 50, result.Score)
	assert.True(t, result.Suspicious)
}

func TestTrackChangesManyFingerprints(t *testing.T) {
	history := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"}
	repo := new(mocks.TrackingRepository)
	repo.On("RecentFingerprints", mock.Anything, "198.51.100.7", 20).Return(history, nil)

	result, err := newTracker(repo).TrackChanges(context.Background(), "198.51.100.7", "a")

	// many distinct fingerprints (+25) but history is long enough to avoid
	// the rapid-change bonus and the hash was seen before
	assert.NoError(t, err)
	assert.Equal(t, 25, result.Score)
	assert.False(t, result.Suspicious)
	assert.Equal(t, 12, result.UniqueFingerprints)
}

func TestTrackChangesStoreFailure(t *testing.T) {
	repo := new(mocks.TrackingRepository)
	repo.On("RecentFingerprints", mock.Anything, mock.Anything, 20).
		Return(nil, errors.New("connection reset"))

	_, err := newTracker(repo).TrackChanges(context.Background(), "198.51.100.7", "abc")
	assert.Error(t, err)
}
