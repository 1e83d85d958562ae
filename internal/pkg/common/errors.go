package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorResponse 定義 API 錯誤響應結構
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"` // 僅在 debug 模式顯示
}

// CustomError 定義自定義錯誤類型
type CustomError struct {
	Code    string
	Message string
	Err     error
	Status  int
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *CustomError) Unwrap() error {
	return e.Err
}

// WithErr 複製預定義錯誤並附上原始錯誤
func (e *CustomError) WithErr(err error) *CustomError {
	cp := *e
	cp.Err = err
	return &cp
}

// NewError 創建新的自定義錯誤
func NewError(code string, message string, status int, err error) *CustomError {
	return &CustomError{
		Code:    code,
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// 預定義錯誤代碼
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"    // 400
	ErrCodeNotFound         = "NOT_FOUND"          // 404
	ErrCodeRequestTimeout   = "REQUEST_TIMEOUT"    // 408
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"  // 429
	ErrCodeInternalError    = "INTERNAL_ERROR"     // 500
	ErrCodeNoRecommendation = "NO_RECOMMENDATIONS" // 502
	ErrCodeEmbeddingDown    = "EMBEDDING_UNAVAILABLE"
	ErrCodeServiceDown      = "SERVICE_UNAVAILABLE" // 503
	ErrCodeGatewayTimeout   = "GATEWAY_TIMEOUT"     // 504
)

// 預定義錯誤
var (
	ErrInvalidRequest     = NewError(ErrCodeInvalidRequest, "invalid request", http.StatusBadRequest, nil)
	ErrNotFound           = NewError(ErrCodeNotFound, "resource not found", http.StatusNotFound, nil)
	ErrTooManyRequests    = NewError(ErrCodeTooManyRequests, "too many requests", http.StatusTooManyRequests, nil)
	ErrInternalError      = NewError(ErrCodeInternalError, "internal server error", http.StatusInternalServerError, nil)
	ErrNoRecommendations  = NewError(ErrCodeNoRecommendation, "no recommendations available, try again", http.StatusBadGateway, nil)
	ErrEmbeddingDown      = NewError(ErrCodeEmbeddingDown, "embedding service unavailable", http.StatusServiceUnavailable, nil)
	ErrServiceUnavailable = NewError(ErrCodeServiceDown, "service temporarily unavailable", http.StatusServiceUnavailable, nil)
	ErrGatewayTimeout     = NewError(ErrCodeGatewayTimeout, "upstream timeout", http.StatusGatewayTimeout, nil)
	ErrRequestCanceled    = NewError(ErrCodeRequestTimeout, "request canceled", http.StatusRequestTimeout, nil)
)

// ErrIndexNotReady 索引尚未建立就被查詢；正常流程經 EnsureReady 不會發生
var ErrIndexNotReady = errors.New("similarity index not ready")

// ErrInvalidRecipe 食譜缺少必要欄位（標題）
var ErrInvalidRecipe = errors.New("recipe title is required")

// EmbeddingServiceError 向量服務傳輸或授權失敗，整批失敗，不重試
type EmbeddingServiceError struct {
	Status int
	Err    error
}

func (e *EmbeddingServiceError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("embedding service error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("embedding service error: %v", e.Err)
}

func (e *EmbeddingServiceError) Unwrap() error {
	return e.Err
}

// GenerationContractViolation 模型在重試上限內都未產出合規 JSON
type GenerationContractViolation struct {
	Attempts int
	Reason   string
	LastRaw  string
	Err      error
}

func (e *GenerationContractViolation) Error() string {
	return fmt.Sprintf("generation contract violated after %d attempts: %s", e.Attempts, e.Reason)
}

func (e *GenerationContractViolation) Unwrap() error {
	return e.Err
}

// IsEmbeddingServiceError 檢查錯誤鏈中是否有向量服務錯誤
func IsEmbeddingServiceError(err error) bool {
	var target *EmbeddingServiceError
	return errors.As(err, &target)
}

// IsContractViolation 檢查錯誤鏈中是否有生成契約錯誤
func IsContractViolation(err error) bool {
	var target *GenerationContractViolation
	return errors.As(err, &target)
}

// ToCustomError 把領域錯誤映射成 API 錯誤
func ToCustomError(err error) *CustomError {
	var ce *CustomError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, context.Canceled):
		// 呼叫端已離開，不算服務端錯誤
		return ErrRequestCanceled.WithErr(err)
	case IsEmbeddingServiceError(err):
		return ErrEmbeddingDown.WithErr(err)
	case IsContractViolation(err):
		return ErrNoRecommendations.WithErr(err)
	case errors.Is(err, context.DeadlineExceeded):
		return ErrGatewayTimeout.WithErr(err)
	case errors.Is(err, ErrInvalidRecipe):
		return ErrInvalidRequest.WithErr(err)
	default:
		return ErrInternalError.WithErr(err)
	}
}
