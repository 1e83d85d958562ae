package openai

import (
	"context"
	"errors"
	"strings"
	"time"

	"souschef/internal/core/ai/provider"
	"souschef/internal/infrastructure/config"
	"souschef/internal/pkg/common"
)

// ErrEmptyOutput 模型沒有回傳任何文字
var ErrEmptyOutput = errors.New("empty model output")

type jsonFormat struct {
	Type string `json:"type"`
}

// ---- responses ----

type responsesRequest struct {
	Model       string             `json:"model"`
	Input       []provider.Message `json:"input"`
	Text        *responsesText     `json:"text,omitempty"`
	MaxTokens   int                `json:"max_output_tokens,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
}

type responsesText struct {
	Format jsonFormat `json:"format"`
}

type responsesResponse struct {
	OutputText string `json:"output_text"`
	Output     []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// text 優先取 output_text，否則串接 output[].content[].text
func (r *responsesResponse) text() string {
	if strings.TrimSpace(r.OutputText) != "" {
		return r.OutputText
	}
	var out strings.Builder
	for _, item := range r.Output {
		for _, c := range item.Content {
			if c.Text != "" {
				out.WriteString(c.Text)
			}
		}
	}
	return out.String()
}

// ResponsesGenerator 結構化 responses 呼叫
type ResponsesGenerator struct {
	client *Client
}

func (g *ResponsesGenerator) Name() string { return config.ShapeResponses }

func (g *ResponsesGenerator) Generate(ctx context.Context, req *provider.Request) (resp *provider.Response, err error) {
	model := g.client.config.ChatModel
	start := time.Now()
	defer func() { common.LogAICall(g.Name(), model, time.Since(start), err) }()

	body := responsesRequest{
		Model:       model,
		Input:       req.Messages(),
		MaxTokens:   g.client.maxTokens(req),
		Temperature: g.client.temperature(req),
	}
	if req.JSONMode {
		body.Text = &responsesText{Format: jsonFormat{Type: "json_object"}}
	}

	var out responsesResponse
	if err = g.client.post(ctx, "/responses", body, &out); err != nil {
		return nil, err
	}

	text := out.text()
	if strings.TrimSpace(text) == "" {
		err = ErrEmptyOutput
		return nil, err
	}
	return &provider.Response{
		Content: text,
		Shape:   g.Name(),
		Model:   model,
		Usage: provider.Usage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
			TotalTokens:      out.Usage.TotalTokens,
		},
	}, nil
}

// ---- chat ----

type chatRequest struct {
	Model          string             `json:"model"`
	Messages       []provider.Message `json:"messages"`
	ResponseFormat *jsonFormat        `json:"response_format,omitempty"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	Temperature    float64            `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage usageInfo `json:"usage"`
}

type usageInfo struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatGenerator chat completions 呼叫
type ChatGenerator struct {
	client *Client
}

func (g *ChatGenerator) Name() string { return config.ShapeChat }

func (g *ChatGenerator) Generate(ctx context.Context, req *provider.Request) (resp *provider.Response, err error) {
	model := g.client.config.ChatModel
	start := time.Now()
	defer func() { common.LogAICall(g.Name(), model, time.Since(start), err) }()

	body := chatRequest{
		Model:       model,
		Messages:    req.Messages(),
		MaxTokens:   g.client.maxTokens(req),
		Temperature: g.client.temperature(req),
	}
	if req.JSONMode {
		body.ResponseFormat = &jsonFormat{Type: "json_object"}
	}

	var out chatResponse
	if err = g.client.post(ctx, "/chat/completions", body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		err = ErrEmptyOutput
		return nil, err
	}
	return &provider.Response{
		Content: out.Choices[0].Message.Content,
		Shape:   g.Name(),
		Model:   model,
		Usage:   provider.Usage(out.Usage),
	}, nil
}

// ---- legacy completions ----

type completionRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Usage usageInfo `json:"usage"`
}

// CompletionsGenerator 舊版純文字 completions 呼叫，最後手段
type CompletionsGenerator struct {
	client *Client
}

func (g *CompletionsGenerator) Name() string { return config.ShapeCompletions }

func (g *CompletionsGenerator) Generate(ctx context.Context, req *provider.Request) (resp *provider.Response, err error) {
	model := g.client.config.CompletionModel
	start := time.Now()
	defer func() { common.LogAICall(g.Name(), model, time.Since(start), err) }()

	body := completionRequest{
		Model:       model,
		Prompt:      flattenPrompt(req),
		MaxTokens:   g.client.maxTokens(req),
		Temperature: g.client.temperature(req),
	}

	var out completionResponse
	if err = g.client.post(ctx, "/completions", body, &out); err != nil {
		return nil, err
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Text) == "" {
		err = ErrEmptyOutput
		return nil, err
	}
	return &provider.Response{
		Content: out.Choices[0].Text,
		Shape:   g.Name(),
		Model:   model,
		Usage:   provider.Usage(out.Usage),
	}, nil
}

// flattenPrompt 將 system / user 合併為單一 prompt
func flattenPrompt(req *provider.Request) string {
	var b strings.Builder
	if req.System != "" {
		b.WriteString(req.System)
		b.WriteString("\n")
	}
	b.WriteString(req.User)
	if req.JSONMode {
		b.WriteString("\nReturn ONLY JSON matching the example.")
	}
	return b.String()
}
