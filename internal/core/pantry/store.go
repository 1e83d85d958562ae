package pantry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"souschef/internal/pkg/common"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store 食材庫存的持久層
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore 創建 Store
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate 建立資料表
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Item{}); err != nil {
		return fmt.Errorf("failed to migrate pantry items: %w", err)
	}
	return nil
}

// Ping 檢查資料庫連線
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// ListItems 依名稱排序列出全部食材
func (s *Store) ListItems(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := s.db.WithContext(ctx).Order("name ASC, id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list pantry items: %w", err)
	}
	return items, nil
}

// ListPantry 推薦流程使用的食材快照
func (s *Store) ListPantry(ctx context.Context) ([]common.PantryItem, error) {
	items, err := s.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]common.PantryItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.PantryItem())
	}
	return out, nil
}

// AddItem 新增食材；bestBuySource 為空時視為使用者輸入
func (s *Store) AddItem(ctx context.Context, in NewItem, bestBuySource string) (*Item, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, common.ErrInvalidRequest.WithErr(errors.New("item name is required"))
	}
	if in.Category == "" {
		in.Category = common.CategoryPantry
	}
	if !in.Category.Valid() {
		return nil, common.ErrInvalidRequest.WithErr(fmt.Errorf("invalid category %q", in.Category))
	}
	if in.Quantity < 0 || math.IsNaN(in.Quantity) {
		return nil, common.ErrInvalidRequest.WithErr(errors.New("quantity must be >= 0"))
	}
	if bestBuySource == "" {
		bestBuySource = BestBuySourceUser
	}

	item := &Item{
		Name:          name,
		Category:      in.Category,
		Quantity:      in.Quantity,
		Unit:          strings.TrimSpace(in.Unit),
		PurchaseDate:  dateTime(in.PurchaseDate),
		BestBuyDate:   dateTime(in.BestBuyDate),
		BestBuySource: bestBuySource,
		LastUpdated:   s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, fmt.Errorf("failed to add pantry item: %w", err)
	}
	common.LogInfo("已新增食材", zap.Uint("id", item.ID), zap.String("name", item.Name))
	return item, nil
}

// DeleteItem 刪除食材
func (s *Store) DeleteItem(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&Item{}, id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete pantry item: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.ErrNotFound
	}
	return nil
}

// CookChange 單一食材的扣減結果
type CookChange struct {
	ItemID uint    `json:"item_id"`
	Name   string  `json:"name"`
	Before float64 `json:"before"`
	After  float64 `json:"after"`
	Unit   string  `json:"unit"`
}

// SkippedIngredient 未扣減的食材與原因
type SkippedIngredient struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// CookReport 烹調後的庫存變化
type CookReport struct {
	Updated []CookChange        `json:"updated"`
	Skipped []SkippedIngredient `json:"skipped"`
}

// ApplyRecipe 依食譜扣減庫存：名稱不分大小寫比對，單位可換算才扣，數量最低為 0
func (s *Store) ApplyRecipe(ctx context.Context, ingredients []common.Ingredient) (*CookReport, error) {
	report := &CookReport{Updated: []CookChange{}, Skipped: []SkippedIngredient{}}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, ing := range ingredients {
			name := common.NormalizeName(ing.Name)
			amount := float64(ing.Amount)
			if name == "" {
				continue
			}
			if amount <= 0 {
				report.Skipped = append(report.Skipped, SkippedIngredient{Name: name, Reason: "no amount"})
				continue
			}

			var item Item
			err := tx.Where("LOWER(TRIM(name)) = ?", name).Order("id ASC").First(&item).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				report.Skipped = append(report.Skipped, SkippedIngredient{Name: name, Reason: "not in pantry"})
				continue
			}
			if err != nil {
				return err
			}

			subtract, ok := amountInItemUnit(amount, ing.Unit, item.Unit)
			if !ok {
				report.Skipped = append(report.Skipped, SkippedIngredient{
					Name:   name,
					Reason: fmt.Sprintf("cannot convert %q to %q", ing.Unit, item.Unit),
				})
				continue
			}

			before := item.Quantity
			after := math.Max(0, before-subtract)
			if err := tx.Model(&item).Updates(map[string]interface{}{
				"quantity":     after,
				"last_updated": s.now().UTC(),
			}).Error; err != nil {
				return err
			}
			report.Updated = append(report.Updated, CookChange{
				ItemID: item.ID,
				Name:   item.Name,
				Before: before,
				After:  after,
				Unit:   item.Unit,
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply recipe: %w", err)
	}
	return report, nil
}

// amountInItemUnit 把食譜用量換成庫存單位
func amountInItemUnit(amount float64, recipeUnit, itemUnit string) (float64, bool) {
	ru, iu := strings.TrimSpace(recipeUnit), strings.TrimSpace(itemUnit)
	switch {
	case ru != "" && iu != "":
		return ConvertAmount(amount, ru, iu)
	case ru == "" && iu != "":
		// 食譜沒寫單位時只扣以個計的庫存
		return amount, NormalizeUnit(iu) == "item"
	default:
		return amount, true
	}
}
