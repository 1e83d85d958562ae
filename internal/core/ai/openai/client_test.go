package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"souschef/internal/core/ai/provider"
	"souschef/internal/infrastructure/config"
	"souschef/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorded struct {
	path string
	body map[string]interface{}
}

type recorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *recorder) all() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.calls...)
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, body map[string]interface{})) (*Client, *recorder) {
	t.Helper()
	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		rec.mu.Lock()
		rec.calls = append(rec.calls, recorded{path: r.URL.Path, body: body})
		rec.mu.Unlock()
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		handler(w, r, body)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(config.OpenAIConfig{
		APIKey:          "sk-test",
		BaseURL:         srv.URL + "/v1/",
		ChatModel:       "chat-model",
		CompletionModel: "legacy-model",
		EmbeddingModel:  "embed-model",
		Timeout:         5 * time.Second,
		MaxTokens:       500,
	})
	return c, rec
}

func jsonRequest() *provider.Request {
	return &provider.Request{System: "sys", User: "usr", JSONMode: true}
}

func TestResponsesGenerator(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		_, _ = io.WriteString(w, `{"output":[{"type":"message","content":[{"type":"output_text","text":"{\"recipes\":[]}"}]}]}`)
	})

	resp, err := (&ResponsesGenerator{client: c}).Generate(context.Background(), jsonRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"recipes":[]}`, resp.Content)
	assert.Equal(t, config.ShapeResponses, resp.Shape)

	require.Len(t, calls.all(), 1)
	call := calls.all()[0]
	assert.Equal(t, "/v1/responses", call.path)
	assert.Equal(t, "chat-model", call.body["model"])
	input := call.body["input"].([]interface{})
	require.Len(t, input, 2)
	assert.Equal(t, "system", input[0].(map[string]interface{})["role"])
	format := call.body["text"].(map[string]interface{})["format"].(map[string]interface{})
	assert.Equal(t, "json_object", format["type"])
}

func TestResponsesGeneratorPrefersOutputText(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		_, _ = io.WriteString(w, `{"output_text":"hello","output":[{"content":[{"text":"ignored"}]}]}`)
	})
	resp, err := (&ResponsesGenerator{client: c}).Generate(context.Background(), jsonRequest())
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)
}

func TestChatGenerator(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"{\"ok\":true}"}}],"usage":{"total_tokens":12}}`)
	})

	resp, err := (&ChatGenerator{client: c}).Generate(context.Background(), jsonRequest())
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, 12, resp.Usage.TotalTokens)

	call := calls.all()[0]
	assert.Equal(t, "/v1/chat/completions", call.path)
	assert.Equal(t, "json_object", call.body["response_format"].(map[string]interface{})["type"])
	assert.EqualValues(t, 500, call.body["max_tokens"])
}

func TestCompletionsGenerator(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		_, _ = io.WriteString(w, `{"choices":[{"text":" {\"a\":1} "}]}`)
	})

	resp, err := (&CompletionsGenerator{client: c}).Generate(context.Background(), jsonRequest())
	require.NoError(t, err)
	assert.Equal(t, ` {"a":1} `, resp.Content)

	call := calls.all()[0]
	assert.Equal(t, "/v1/completions", call.path)
	assert.Equal(t, "legacy-model", call.body["model"])
	assert.Equal(t, "sys\nusr\nReturn ONLY JSON matching the example.", call.body["prompt"])
}

func TestGeneratorErrorStatus(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"no such route"}}`)
	})

	_, err := (&ResponsesGenerator{client: c}).Generate(context.Background(), jsonRequest())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "no such route", apiErr.Message)
}

func TestChainFallsBackInConfiguredOrder(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		if r.URL.Path == "/v1/responses" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"unsupported"}}`)
			return
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"from chat"}}]}`)
	})

	generators, err := NewGenerators(c, []string{config.ShapeResponses, config.ShapeChat, config.ShapeCompletions})
	require.NoError(t, err)
	chain := provider.NewChain(generators...)

	resp, err := chain.Generate(context.Background(), jsonRequest())
	require.NoError(t, err)
	assert.Equal(t, "from chat", resp.Content)
	assert.Equal(t, config.ShapeChat, resp.Shape)

	require.Len(t, calls.all(), 2)
	assert.Equal(t, "/v1/responses", calls.all()[0].path)
	assert.Equal(t, "/v1/chat/completions", calls.all()[1].path)
}

func TestNewGeneratorsRejectsUnknownShape(t *testing.T) {
	_, err := NewGenerators(NewClient(config.OpenAIConfig{}), []string{"chat", "telepathy"})
	assert.Error(t, err)
}

func TestEmbedPlacesVectorsByIndex(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		_, _ = io.WriteString(w, `{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`)
	})

	vecs, err := NewEmbedder(c).Embed(context.Background(), []string{"first", "  "})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)

	call := calls.all()[0]
	assert.Equal(t, "/v1/embeddings", call.path)
	assert.Equal(t, "embed-model", call.body["model"])
	assert.Equal(t, []interface{}{"first", " "}, call.body["input"])
}

func TestEmbedFailuresAreEmbeddingServiceErrors(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusUnauthorized)
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {
		if s := int(status.Load()); s != http.StatusOK {
			w.WriteHeader(s)
			_, _ = io.WriteString(w, `{"error":{"message":"bad key"}}`)
			return
		}
		// 少回一筆
		_, _ = io.WriteString(w, `{"data":[{"index":0,"embedding":[1]}]}`)
	})
	e := NewEmbedder(c)

	_, err := e.Embed(context.Background(), []string{"a", "b"})
	var embErr *common.EmbeddingServiceError
	require.ErrorAs(t, err, &embErr)
	assert.Equal(t, http.StatusUnauthorized, embErr.Status)

	status.Store(http.StatusOK)
	_, err = e.Embed(context.Background(), []string{"a", "b"})
	assert.True(t, common.IsEmbeddingServiceError(err))
}

func TestEmbedEmptyInput(t *testing.T) {
	c, calls := newTestServer(t, func(w http.ResponseWriter, r *http.Request, body map[string]interface{}) {})
	vecs, err := NewEmbedder(c).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
	assert.Empty(t, calls.all())
}
