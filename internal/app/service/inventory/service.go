package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nimbushost/provisioner/internal/models"
	"github.com/nimbushost/provisioner/pkg/apperr"
	"github.com/nimbushost/provisioner/pkg/types"
)

// ScanRequest is the shared filter/pagination envelope for admin listings.
type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse[T any] struct {
	Items []*T  `json:"items"`
	Total int64 `json:"total"`
}

// filtersAnd joins filters into a single AND expression.
type filtersAnd struct{ filters []*types.CommonFilter }

func (w filtersAnd) Build(builder clause.Builder) {
	if len(w.filters) == 0 {
		builder.WriteString("1=1")
		return
	}
	for i, f := range w.filters {
		if i > 0 {
			builder.WriteString(" AND ")
		}
		f.Build(builder)
	}
}

type Service struct {
	log *zap.SugaredLogger
	db  *gorm.DB
}

func NewService(log *zap.SugaredLogger, db *gorm.DB) *Service {
	return &Service{log: log, db: db}
}

func scan[T any](ctx context.Context, db *gorm.DB, req *ScanRequest, defaultSort string) (*ScanResponse[T], error) {
	if req == nil {
		req = &ScanRequest{}
	}
	if req.Size <= 0 || req.Size > 500 {
		req.Size = 50
	}
	if req.From < 0 {
		req.From = 0
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = defaultSort
	}

	var model T
	tx := db.WithContext(ctx).Model(&model)
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{filtersAnd{filters: req.Filters}}})
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}

	q := tx.Limit(req.Size)
	if req.From > 0 {
		q = q.Offset(req.From)
	}
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{
		Column: clause.Column{Name: sortBy},
		Desc:   req.SortOrder != "asc",
	}}})

	var rows []*T
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return &ScanResponse[T]{Items: rows, Total: total}, nil
}

// ServerByID loads one server row for admin control-plane actions.
func (s *Service) ServerByID(ctx context.Context, id string) (*models.Server, error) {
	var server models.Server
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&server).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(fmt.Sprintf("server %s not found", id))
		}
		return nil, fmt.Errorf("load server: %w", err)
	}
	return &server, nil
}

func (s *Service) ScanHostingAccounts(ctx context.Context, req *ScanRequest) (*ScanResponse[models.HostingAccount], error) {
	return scan[models.HostingAccount](ctx, s.db, req, "created_at")
}

func (s *Service) ScanDomains(ctx context.Context, req *ScanRequest) (*ScanResponse[models.Domain], error) {
	return scan[models.Domain](ctx, s.db, req, "expiry_date")
}

func (s *Service) ScanRenewals(ctx context.Context, req *ScanRequest) (*ScanResponse[models.DomainRenewal], error) {
	return scan[models.DomainRenewal](ctx, s.db, req, "created_at")
}

func (s *Service) ScanQueueItems(ctx context.Context, req *ScanRequest) (*ScanResponse[models.ProvisioningQueueItem], error) {
	return scan[models.ProvisioningQueueItem](ctx, s.db, req, "updated_at")
}

func (s *Service) ScanSyncLogs(ctx context.Context, req *ScanRequest) (*ScanResponse[models.DomainSyncLog], error) {
	return scan[models.DomainSyncLog](ctx, s.db, req, "created_at")
}
