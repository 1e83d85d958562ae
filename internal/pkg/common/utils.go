package common

import (
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// GenerateUUID 生成 UUID
func GenerateUUID() string {
	return uuid.New().String()
}

// Truncate 截斷字串到 max 個位元組，保留完整 UTF-8 字元
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "...(truncated)"
}

// RespondError 將錯誤映射成 API 錯誤並寫入響應
func RespondError(c *gin.Context, err error) {
	ce := ToCustomError(err)
	resp := ErrorResponse{
		Code:    ce.Code,
		Message: ce.Message,
	}
	if gin.Mode() == gin.DebugMode && ce.Err != nil {
		resp.Details = ce.Err.Error()
	}
	if ce.Status >= 500 {
		LogError("請求處理失敗", zap.Error(err), zap.String("code", ce.Code))
	}
	c.AbortWithStatusJSON(ce.Status, resp)
}

// RespondInvalid 回傳 400 並附上原因
func RespondInvalid(c *gin.Context, message string) {
	c.AbortWithStatusJSON(ErrInvalidRequest.Status, ErrorResponse{
		Code:    ErrInvalidRequest.Code,
		Message: message,
	})
}
