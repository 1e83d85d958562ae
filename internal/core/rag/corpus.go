package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"souschef/internal/pkg/common"
)

// Corpus 食譜語料來源
type Corpus interface {
	Load(ctx context.Context) ([]common.CandidateRecipe, error)
}

// Appender 可追加食譜的語料
type Appender interface {
	Corpus
	Append(ctx context.Context, recipe common.CandidateRecipe) (common.CandidateRecipe, error)
}

// FileCorpus JSON 檔案語料，內容為食譜陣列
type FileCorpus struct {
	path string
	mu   sync.Mutex
}

// NewFileCorpus 創建檔案語料
func NewFileCorpus(path string) *FileCorpus {
	return &FileCorpus{path: path}
}

// Path 檔案路徑
func (c *FileCorpus) Path() string {
	return c.path
}

// Load 讀取全部食譜
func (c *FileCorpus) Load(ctx context.Context) ([]common.CandidateRecipe, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read()
}

func (c *FileCorpus) read() ([]common.CandidateRecipe, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus %s: %w", c.path, err)
	}
	var recipes []common.CandidateRecipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("failed to parse corpus %s: %w", c.path, err)
	}
	return recipes, nil
}

// Append 以下一個整數 ID 追加食譜，寫入暫存檔後原子替換
func (c *FileCorpus) Append(ctx context.Context, recipe common.CandidateRecipe) (common.CandidateRecipe, error) {
	if strings.TrimSpace(recipe.Title) == "" {
		return common.CandidateRecipe{}, common.ErrInvalidRecipe
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	recipes, err := c.read()
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return common.CandidateRecipe{}, err
		}
		recipes = nil
	}

	maxID := 0
	for _, r := range recipes {
		if r.ID != nil && *r.ID > maxID {
			maxID = *r.ID
		}
	}

	entry := recipe.Clone()
	entry.ID = common.IntPtr(maxID + 1)
	recipes = append(recipes, entry)

	data, err := json.MarshalIndent(recipes, "", "  ")
	if err != nil {
		return common.CandidateRecipe{}, fmt.Errorf("failed to encode corpus: %w", err)
	}
	if err := writeFileAtomic(c.path, data); err != nil {
		return common.CandidateRecipe{}, err
	}
	return entry.Clone(), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create corpus dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".corpus-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp corpus: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp corpus: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace corpus: %w", err)
	}
	return nil
}
