package statistics

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/reconciler/internal/models"
	"github.com/fatflowers/reconciler/pkg/types"
)

type StatisticType string

const (
	// StatisticTypeStatusCount counts purchases per status.
	StatisticTypeStatusCount StatisticType = "status_count"
	// StatisticTypeProviderCount counts entitled purchases per store.
	StatisticTypeProviderCount StatisticType = "provider_count"
	// StatisticTypeTransactionTotal sums billed periods per product.
	StatisticTypeTransactionTotal StatisticType = "transaction_total"
	// StatisticTypeDailyTransitions counts ledger entries per day and status.
	StatisticTypeDailyTransitions StatisticType = "daily_transitions"
)

// filterFields are the purchase columns a filter may reference.
var filterFields = []string{"user_id", "product_id", "provider_id", "status", "created_at", "updated_at"}

type DataItem struct {
	ID StatisticType `json:"id"`
}

type Request struct {
	Filters   []*types.CommonFilter `json:"filters"`
	DataItems []*DataItem           `json:"data_items"`
}

func (r *Request) Validate() error {
	for _, f := range r.Filters {
		if !lo.Contains(filterFields, f.Field) {
			return fmt.Errorf("invalid filter field: %s", f.Field)
		}
		if f.Expression() == nil {
			return fmt.Errorf("invalid filter on %s: operator %q with %d values", f.Field, f.Operator, len(f.Values))
		}
	}
	return nil
}

func (r *Request) expressions() []clause.Expression {
	return lo.Map(r.Filters, func(f *types.CommonFilter, _ int) clause.Expression { return f.Expression() })
}

type ResponseDataItem struct {
	Date  string `json:"date,omitempty"`
	Label string `json:"label,omitempty"`
	Value int64  `json:"value"`
}

type Response struct {
	DataItems map[StatisticType][]ResponseDataItem `json:"data_items"`
}

// Service computes operator statistics from purchases and their ledger.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service { return &Service{db: db} }

func (s *Service) purchases(ctx context.Context, r *Request) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Purchase{})
	if exprs := r.expressions(); len(exprs) > 0 {
		q = q.Clauses(clause.Where{Exprs: exprs})
	}
	return q
}

func (s *Service) getStatusCount(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.purchases(ctx, r).
		Select("status as label, count(*) as value").
		Group("status").
		Order("status").
		Find(&results).Error
	return results, err
}

func (s *Service) getProviderCount(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.purchases(ctx, r).
		Select("provider_id as label, count(*) as value").
		Where("status = ?", types.PurchaseStatusCompleted).
		Group("provider_id").
		Order("provider_id").
		Find(&results).Error
	return results, err
}

func (s *Service) getTransactionTotal(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var results []ResponseDataItem
	err := s.purchases(ctx, r).
		Select("product_id as label, sum(total_transactions) as value").
		Group("product_id").
		Order("product_id").
		Find(&results).Error
	return results, err
}

// getDailyTransitions buckets in Go so the query stays dialect neutral.
func (s *Service) getDailyTransitions(ctx context.Context, r *Request) ([]ResponseDataItem, error) {
	var rows []struct {
		Status    types.PurchaseStatus
		CreatedAt time.Time
	}
	err := s.db.WithContext(ctx).Table((models.PurchaseHistory{}).TableName()).
		Select("status, created_at").
		Where("purchase_id IN (?)", s.purchases(ctx, r).Select("id")).
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	type key struct{ date, status string }
	counts := map[key]int64{}
	var order []key
	for _, row := range rows {
		k := key{row.CreatedAt.UTC().Format(time.DateOnly), string(row.Status)}
		if _, ok := counts[k]; !ok {
			order = append(order, k)
		}
		counts[k]++
	}
	return lo.Map(order, func(k key, _ int) ResponseDataItem {
		return ResponseDataItem{Date: k.date, Label: k.status, Value: counts[k]}
	}), nil
}

func (s *Service) getStatistic(ctx context.Context, r *Request, item *DataItem) ([]ResponseDataItem, error) {
	switch item.ID {
	case StatisticTypeStatusCount:
		return s.getStatusCount(ctx, r)
	case StatisticTypeProviderCount:
		return s.getProviderCount(ctx, r)
	case StatisticTypeTransactionTotal:
		return s.getTransactionTotal(ctx, r)
	case StatisticTypeDailyTransitions:
		return s.getDailyTransitions(ctx, r)
	default:
		return nil, fmt.Errorf("invalid data item id: %s", item.ID)
	}
}

// Get computes every requested data item concurrently.
func (s *Service) Get(ctx context.Context, r *Request) (*Response, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	g, gctx := errgroup.WithContext(ctx)
	entries := make([]lo.Entry[StatisticType, []ResponseDataItem], len(r.DataItems))
	for i, item := range r.DataItems {
		i, item := i, item
		g.Go(func() error {
			res, err := s.getStatistic(gctx, r, item)
			if err != nil {
				return fmt.Errorf("%s: %w", item.ID, err)
			}
			entries[i] = lo.Entry[StatisticType, []ResponseDataItem]{Key: item.ID, Value: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := lo.FromEntries(entries)
	return &Response{DataItems: results}, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
