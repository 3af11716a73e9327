package repository

import (
	"context"
	"errors"

	"github.com/shopguard/sentinel/pkg/domain/actor"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type KnownActorRepository struct {
	db *gorm.DB
}

func NewKnownActorRepository(db *gorm.DB) actor.Store {
	return &KnownActorRepository{db: db}
}

func (r *KnownActorRepository) Get(ctx context.Context, ip string) (*actor.KnownActor, error) {
	entity := new(actor.KnownActor)
	err := r.db.WithContext(ctx).
		Where("ip_address = ?", ip).
		First(entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entity, nil
}

func (r *KnownActorRepository) Upsert(ctx context.Context, record *actor.KnownActor) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "ip_address"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"proxy_type", "confidence_score", "is_blocked", "auto_blocked", "reason", "detected_at",
			}),
		}).
		Create(record).Error
}

// Classify leaves is_blocked, auto_blocked and reason untouched on conflict,
// so a concurrent operator block survives a scorer's classification write.
func (r *KnownActorRepository) Classify(ctx context.Context, record *actor.KnownActor) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "ip_address"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"proxy_type", "confidence_score", "detected_at",
			}),
		}).
		Create(record).Error
}

// Block inserts the record only when the IP has no row yet. Concurrent
// auto-blocks for the same IP land on the conflict clause instead of a
// duplicate-key error.
func (r *KnownActorRepository) Block(ctx context.Context, record *actor.KnownActor) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ip_address"}},
			DoNothing: true,
		}).
		Create(record).Error
}

func (r *KnownActorRepository) Unblock(ctx context.Context, ip string) error {
	return r.db.WithContext(ctx).
		Model(&actor.KnownActor{}).
		Where("ip_address = ?", ip).
		Updates(map[string]interface{}{"is_blocked": false, "auto_blocked": false}).Error
}
