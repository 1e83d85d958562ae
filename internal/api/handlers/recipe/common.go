package recipe

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const maxTopK = 50

// parseIngredients 支援逗號分隔與重複參數 (?ingredients=a,b&ingredients=c)
func parseIngredients(c *gin.Context) []string {
	var out []string
	for _, v := range c.QueryArray("ingredients") {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// parseTopK 未提供時回傳 def；非法值回傳 false
func parseTopK(c *gin.Context, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query("top_k"))
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxTopK {
		return 0, false
	}
	return n, true
}
