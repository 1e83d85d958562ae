package pantry

import (
	"time"

	"souschef/internal/pkg/common"
)

// 最佳賞味日的來源
const (
	BestBuySourceUser = "user"
	BestBuySourceAI   = "ai"
)

// Item 食材庫存資料列
type Item struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:255;index;not null" json:"name"`
	Category      common.Category `gorm:"size:20" json:"category"`
	Quantity      float64         `json:"quantity"`
	Unit          string          `gorm:"size:50" json:"unit"`
	PurchaseDate  *time.Time      `json:"purchase_date"`
	BestBuyDate   *time.Time      `json:"best_buy_date"`
	BestBuySource string          `gorm:"size:10;default:user" json:"best_buy_source"`
	LastUpdated   time.Time       `gorm:"autoUpdateTime" json:"last_updated"`
}

// TableName 沿用 items 表名
func (Item) TableName() string {
	return "items"
}

// PantryItem 轉為推薦流程使用的型別
func (i Item) PantryItem() common.PantryItem {
	out := common.PantryItem{
		Name:     i.Name,
		Category: i.Category,
		Quantity: i.Quantity,
		Unit:     i.Unit,
	}
	if i.BestBuyDate != nil {
		d := common.DateOf(*i.BestBuyDate)
		out.BestBuyDate = &d
	}
	return out
}

// NewItem 新增食材的輸入
type NewItem struct {
	Name         string          `json:"name" binding:"required"`
	Category     common.Category `json:"category"`
	Quantity     float64         `json:"quantity"`
	Unit         string          `json:"unit"`
	PurchaseDate *common.Date    `json:"purchase_date"`
	BestBuyDate  *common.Date    `json:"best_buy_date"`
	// EstimateBestBy 未給 best_buy_date 時由模型估算
	EstimateBestBy bool `json:"estimate_best_by"`
}

func dateTime(d *common.Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
