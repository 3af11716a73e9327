package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopguard/sentinel/pkg/domain/tracking"
	"gorm.io/gorm"
)

type TrackingRepository struct {
	db *gorm.DB
}

func NewTrackingRepository(db *gorm.DB) tracking.Repository {
	return &TrackingRepository{db: db}
}

func (r *TrackingRepository) Insert(ctx context.Context, record *tracking.TrackedRequest) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *TrackingRepository) ListByIP(
	ctx context.Context,
	ip string,
	since time.Time,
	limit int,
) ([]tracking.TrackedRequest, error) {
	var records []tracking.TrackedRequest
	err := r.db.WithContext(ctx).
		Where("ip_address = ? AND timestamp >= ?", ip, since).
		Order("timestamp asc").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *TrackingRepository) RecentByIP(
	ctx context.Context,
	ip string,
	since time.Time,
	limit int,
) ([]tracking.TrackedRequest, error) {
	var records []tracking.TrackedRequest
	err := r.db.WithContext(ctx).
		Where("ip_address = ? AND timestamp >= ?", ip, since).
		Order("timestamp desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *TrackingRepository) CountByIP(ctx context.Context, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&tracking.TrackedRequest{}).
		Where("ip_address = ? AND timestamp >= ?", ip, since).
		Count(&count).Error
	return count, err
}

func (r *TrackingRepository) CountByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&tracking.TrackedRequest{}).
		Where("user_id = ? AND timestamp >= ?", userID, since).
		Count(&count).Error
	return count, err
}

func (r *TrackingRepository) CountByIPAndEndpoint(
	ctx context.Context,
	ip, endpoint string,
	since time.Time,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&tracking.TrackedRequest{}).
		Where("ip_address = ? AND endpoint = ? AND timestamp >= ?", ip, endpoint, since).
		Count(&count).Error
	return count, err
}

func (r *TrackingRepository) CountHighSeverity(
	ctx context.Context,
	ip string,
	minScore int,
	since time.Time,
) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&tracking.TrackedRequest{}).
		Where("ip_address = ? AND suspicious_score >= ? AND timestamp >= ?", ip, minScore, since).
		Count(&count).Error
	return count, err
}

func (r *TrackingRepository) TopScoresByIP(
	ctx context.Context,
	ip string,
	since time.Time,
	limit int,
) ([]int, error) {
	var scores []int
	err := r.db.WithContext(ctx).
		Model(&tracking.TrackedRequest{}).
		Where("ip_address = ? AND timestamp >= ?", ip, since).
		Order("suspicious_score desc").
		Limit(limit).
		Pluck("suspicious_score", &scores).Error
	return scores, err
}

func (r *TrackingRepository) RecentFingerprints(ctx context.Context, ip string, limit int) ([]string, error) {
	var hashes []string
	err := r.db.WithContext(ctx).
		Model(&tracking.TrackedRequest{}).
		Where("ip_address = ? AND fingerprint_hash <> ''", ip).
		Order("timestamp desc").
		Limit(limit).
		Pluck("fingerprint_hash", &hashes).Error
	return hashes, err
}

func (r *TrackingRepository) ListSince(
	ctx context.Context,
	since time.Time,
	limit int,
) ([]tracking.TrackedRequest, error) {
	var records []tracking.TrackedRequest
	err := r.db.WithContext(ctx).
		Where("timestamp >= ?", since).
		Order("timestamp desc").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *TrackingRepository) MarkBlocked(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&tracking.TrackedRequest{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"blocked": true, "blocked_at": at}).Error
}

func (r *TrackingRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&tracking.TrackedRequest{})
	return result.RowsAffected, result.Error
}
