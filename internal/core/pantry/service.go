package pantry

import (
	"context"
	"time"

	"souschef/internal/pkg/common"

	"go.uber.org/zap"
)

// Service 食材庫存操作
type Service struct {
	store      *Store
	estimator  *Estimator
	windowDays int
	now        func() time.Time
}

// NewService 創建 Service；estimator 可為 nil
func NewService(store *Store, estimator *Estimator, windowDays int) *Service {
	if windowDays < 0 {
		windowDays = 0
	}
	return &Service{store: store, estimator: estimator, windowDays: windowDays, now: time.Now}
}

// Store 底層持久層
func (s *Service) Store() *Store {
	return s.store
}

// ListItems 列出全部食材
func (s *Service) ListItems(ctx context.Context) ([]Item, error) {
	return s.store.ListItems(ctx)
}

// ListPantry 推薦流程使用的食材快照
func (s *Service) ListPantry(ctx context.Context) ([]common.PantryItem, error) {
	return s.store.ListPantry(ctx)
}

// AddItem 新增食材；要求估算且估算失敗時仍以無日期新增
func (s *Service) AddItem(ctx context.Context, in NewItem) (*Item, error) {
	if in.PurchaseDate == nil {
		today := common.DateOf(s.now())
		in.PurchaseDate = &today
	}

	source := BestBuySourceUser
	if in.BestBuyDate == nil && in.EstimateBestBy && s.estimator != nil {
		est, err := s.estimator.Estimate(ctx, in.Name, in.Category, *in.PurchaseDate)
		if err != nil {
			common.LogWarn("最佳賞味日估算失敗，不填日期",
				zap.String("name", in.Name),
				zap.Error(err),
			)
		} else {
			in.BestBuyDate = &est.BestBuyDate
			source = BestBuySourceAI
			common.LogDebug("已估算最佳賞味日",
				zap.String("name", in.Name),
				zap.String("best_buy_date", est.BestBuyDate.String()),
				zap.String("reason", common.Truncate(est.Reason, 200)),
			)
		}
	}
	return s.store.AddItem(ctx, in, source)
}

// DeleteItem 刪除食材
func (s *Service) DeleteItem(ctx context.Context, id uint) error {
	return s.store.DeleteItem(ctx, id)
}

// Expiring 過期與即將到期報表
func (s *Service) Expiring(ctx context.Context) (*ExpiryReport, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	report := BuildExpiryReport(items, common.DateOf(s.now()), s.windowDays)
	return &report, nil
}

// Cook 依食譜扣減庫存
func (s *Service) Cook(ctx context.Context, ingredients []common.Ingredient) (*CookReport, error) {
	return s.store.ApplyRecipe(ctx, ingredients)
}

// GroceryList 所選食譜的採買清單
func (s *Service) GroceryList(ctx context.Context, recipes []common.CandidateRecipe) ([]GroceryLine, error) {
	items, err := s.store.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	return GroceryList(recipes, items), nil
}
