package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"souschef/internal/core/ai/provider"
	"souschef/internal/infrastructure/config"
	"souschef/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Client OpenAI 相容 API 客戶端，各呼叫形式共用
type Client struct {
	http   *resty.Client
	config config.OpenAIConfig
}

// APIError 非 2xx 響應
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openai api error (status %d): %s", e.Status, e.Message)
}

// errorBody OpenAI 錯誤格式
type errorBody struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// NewClient 創建新的 OpenAI 客戶端
func NewClient(cfg config.OpenAIConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey)).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)

	return &Client{
		http:   httpClient,
		config: cfg,
	}
}

// post 發送 JSON 請求並解析響應
func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", path, err)
	}

	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return &APIError{Status: resp.StatusCode(), Message: errorMessage(resp.Body())}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		common.LogDebug("無法解析 API 響應",
			zap.String("path", path),
			zap.String("body", string(resp.Body())),
		)
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

func errorMessage(body []byte) string {
	var e errorBody
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	return common.Truncate(strings.TrimSpace(string(body)), 200)
}

func (c *Client) maxTokens(req *provider.Request) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return c.config.MaxTokens
}

func (c *Client) temperature(req *provider.Request) float64 {
	if req.Temperature > 0 {
		return req.Temperature
	}
	return c.config.Temperature
}

// NewGenerators 依設定順序建立各呼叫形式
func NewGenerators(c *Client, shapes []string) ([]provider.Generator, error) {
	generators := make([]provider.Generator, 0, len(shapes))
	for _, shape := range shapes {
		switch shape {
		case config.ShapeResponses:
			generators = append(generators, &ResponsesGenerator{client: c})
		case config.ShapeChat:
			generators = append(generators, &ChatGenerator{client: c})
		case config.ShapeCompletions:
			generators = append(generators, &CompletionsGenerator{client: c})
		default:
			return nil, fmt.Errorf("unknown call shape %q", shape)
		}
	}
	return generators, nil
}
