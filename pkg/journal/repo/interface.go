package repo

import (
	"context"

	"github.com/joripage/makerbot/pkg/journal/model"
)

type IActionEvent interface {
	Create(ctx context.Context, record *model.ActionEvent) (*model.ActionEvent, error)
	BulkCreate(ctx context.Context, records []*model.ActionEvent) ([]*model.ActionEvent, error)
	ListByMarket(ctx context.Context, market string, limit int) ([]*model.ActionEvent, error)
}
