package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Category 食材存放位置
type Category string

const (
	CategoryPantry  Category = "pantry"
	CategoryFridge  Category = "fridge"
	CategoryFreezer Category = "freezer"
)

// Valid 檢查存放位置是否合法
func (c Category) Valid() bool {
	switch c {
	case CategoryPantry, CategoryFridge, CategoryFreezer:
		return true
	}
	return false
}

// DateLayout 日期格式 (YYYY-MM-DD)
const DateLayout = "2006-01-02"

// Date 只有日期部分的時間，JSON 以 YYYY-MM-DD 表示
type Date struct {
	time.Time
}

// NewDate 以年月日建立 Date
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf 截去時間部分
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate 解析 YYYY-MM-DD
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// PantryItem 食材庫存項目，由外部庫存服務提供，唯讀
type PantryItem struct {
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Quantity    float64  `json:"quantity"`
	Unit        string   `json:"unit"`
	BestBuyDate *Date    `json:"best_buy_date"`
}

// Amount 食材數量；接受數字或數字字串，無法解析的字串視為 0
type Amount float64

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*a = 0
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*a = Amount(num)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("invalid amount: %s", string(data))
	}
	if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
		*a = Amount(f)
		return nil
	}
	*a = 0
	return nil
}

// Ingredient 食譜內的食材
type Ingredient struct {
	Name   string `json:"name"`
	Amount Amount `json:"amount"`
	Unit   string `json:"unit"`
}

// Servings 份量，模型有時回數字有時回字串
type Servings struct {
	Value string
}

// NewServings 以數字建立份量
func NewServings(n int) *Servings {
	return &Servings{Value: strconv.Itoa(n)}
}

func (s Servings) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseFloat(s.Value, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(s.Value)
}

func (s *Servings) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		s.Value = strconv.FormatFloat(num, 'f', -1, 64)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Value = strings.TrimSpace(str)
		return nil
	}
	return fmt.Errorf("invalid servings format: %s", string(data))
}

// CandidateRecipe 由索引或網路來源取得的候選食譜，取得後不可變
type CandidateRecipe struct {
	ID            *int         `json:"id"`
	Title         string       `json:"title"`
	Ingredients   []Ingredient `json:"ingredients"`
	Steps         *string      `json:"steps"`
	Source        *string      `json:"source"`
	DetailedSteps *string      `json:"detailed_steps"`
	Servings      *Servings    `json:"servings"`
	PrepTime      *string      `json:"prep_time"`
	CookTime      *string      `json:"cook_time"`
	Tags          []string     `json:"tags"`
}

// Clone 深拷貝，避免呼叫端改動索引內的資料
func (c CandidateRecipe) Clone() CandidateRecipe {
	out := c
	out.ID = clonePtr(c.ID)
	out.Ingredients = CloneIngredients(c.Ingredients)
	out.Steps = clonePtr(c.Steps)
	out.Source = clonePtr(c.Source)
	out.DetailedSteps = clonePtr(c.DetailedSteps)
	out.Servings = clonePtr(c.Servings)
	out.PrepTime = clonePtr(c.PrepTime)
	out.CookTime = clonePtr(c.CookTime)
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	return out
}

// TitleKey 不分大小寫的標題比對鍵
func (c CandidateRecipe) TitleKey() string {
	return TitleKey(c.Title)
}

// RecommendedRecipe 模型選出並標註的食譜；序列化時所有欄位都存在
type RecommendedRecipe struct {
	CandidateRecipe
	UsedItems    []string `json:"used_items"`
	MissingItems []string `json:"missing_items"`
	Explanation  string   `json:"explanation"`
}

// RecommendationResult 推薦結果
type RecommendationResult struct {
	Recipes []RecommendedRecipe `json:"recipes"`
}

// TitleKey 標題正規化：去空白、轉小寫
func TitleKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// NormalizeName 食材名稱正規化：去頭尾空白、轉小寫、合併連續空白
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// NormalizeNames 正規化並去重，保留第一次出現的順序，丟棄空字串
func NormalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		norm := NormalizeName(n)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	return out
}

// CloneIngredients 複製食材列表
func CloneIngredients(in []Ingredient) []Ingredient {
	if in == nil {
		return nil
	}
	return append([]Ingredient(nil), in...)
}

// SameIngredients 比較兩個食材列表（名稱、數量、單位、順序）
func SameIngredients(a, b []Ingredient) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// StrPtr 取字串指標
func StrPtr(s string) *string {
	return &s
}

// IntPtr 取整數指標
func IntPtr(n int) *int {
	return &n
}

// IsBlank 指標為 nil 或內容為空白
func IsBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SourcedRecipe 外部來源的食譜，url 為 source 的別名
type SourcedRecipe struct {
	CandidateRecipe
	URL *string `json:"url,omitempty"`
}

// Resolve 轉為 CandidateRecipe：source 缺少時取 url，steps 缺少時取 detailed_steps
func (r SourcedRecipe) Resolve() CandidateRecipe {
	out := r.CandidateRecipe.Clone()
	if IsBlank(out.Source) && !IsBlank(r.URL) {
		out.Source = StrPtr(strings.TrimSpace(*r.URL))
	}
	if IsBlank(out.Steps) && !IsBlank(out.DetailedSteps) {
		out.Steps = StrPtr(*out.DetailedSteps)
	}
	out.Title = strings.TrimSpace(out.Title)
	return out
}
