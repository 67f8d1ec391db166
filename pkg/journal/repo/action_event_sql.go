package repo

import (
	"context"

	"github.com/joripage/makerbot/pkg/journal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ActionEventSQLRepo struct {
	db *gorm.DB
}

func NewActionEventSQLRepo(db *gorm.DB) *ActionEventSQLRepo {
	return &ActionEventSQLRepo{
		db: db,
	}
}

func (s *ActionEventSQLRepo) dbWithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// Create inserts record. Redelivered events are ignored.
func (r *ActionEventSQLRepo) Create(ctx context.Context, record *model.ActionEvent) (*model.ActionEvent, error) {
	return record, r.dbWithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(record).Error
}

func (r *ActionEventSQLRepo) BulkCreate(ctx context.Context, records []*model.ActionEvent) ([]*model.ActionEvent, error) {
	if len(records) == 0 {
		return records, nil
	}
	return records, r.dbWithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(records).Error
}

// ListByMarket returns the newest events of market first.
func (r *ActionEventSQLRepo) ListByMarket(ctx context.Context, market string, limit int) ([]*model.ActionEvent, error) {
	var out []*model.ActionEvent
	err := r.dbWithContext(ctx).
		Where("market = ?", market).
		Order("ts DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
