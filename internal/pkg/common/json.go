package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// ParseJSON 解析 JSON 字符串到結構體
func ParseJSON(data string, v interface{}) error {
	return decodeJSON(strings.NewReader(data), v, false)
}

// ParseJSONBytes 解析 JSON 位元組切片到結構體
func ParseJSONBytes(data []byte, v interface{}) error {
	return decodeJSON(bytes.NewReader(data), v, false)
}

// DecodeJSON 使用統一設定解析 JSON
func DecodeJSON(r io.Reader, v interface{}) error {
	return decodeJSON(r, v, false)
}

// DecodeJSONStrict 使用統一設定解析 JSON，禁止未知欄位
func DecodeJSONStrict(r io.Reader, v interface{}) error {
	return decodeJSON(r, v, true)
}

func decodeJSON(r io.Reader, v interface{}, disallowUnknown bool) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}

	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return err
		}
		return fmt.Errorf("unexpected extra JSON data")
	}
	return nil
}

// StripCodeFence 去除 markdown 程式碼區塊標記
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// 去掉語言標記，如 ```json
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ExtractJSON 從模型輸出中取出第一個括號平衡的 JSON 物件或陣列
func ExtractJSON(raw string) (string, bool) {
	s := StripCodeFence(raw)
	start := strings.IndexAny(s, "{[")
	for start >= 0 {
		if end, ok := balancedEnd(s, start); ok {
			return s[start : end+1], true
		}
		next := strings.IndexAny(s[start+1:], "{[")
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// balancedEnd 回傳從 start 開始的括號對應結尾，忽略字串內的括號
func balancedEnd(s string, start int) (int, bool) {
	stack := make([]byte, 0, 8)
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) == 0 || stack[len(stack)-1] != c {
				return 0, false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// ParseLooseJSON 先直接解析，失敗時依序嘗試每一段平衡 JSON，取第一段可解析者
func ParseLooseJSON(raw string) (interface{}, error) {
	var v interface{}
	directErr := ParseJSON(strings.TrimSpace(raw), &v)
	if directErr == nil {
		return v, nil
	}

	s := StripCodeFence(raw)
	var firstErr error
	for start := strings.IndexAny(s, "{["); start >= 0; {
		from := start + 1
		if end, ok := balancedEnd(s, start); ok {
			var span interface{}
			err := ParseJSON(s[start:end+1], &span)
			if err == nil {
				return span, nil
			}
			if firstErr == nil {
				firstErr = err
			}
			// 例如文字裡的 [see notes]，跳過整段，不取其內部片段
			from = end + 1
		}
		next := strings.IndexAny(s[from:], "{[")
		if next < 0 {
			break
		}
		start = from + next
	}

	if firstErr != nil {
		return nil, fmt.Errorf("extracted JSON is invalid: %w", firstErr)
	}
	return nil, fmt.Errorf("response is not valid JSON: %w", directErr)
}

// ToJSON 將結構體轉換為 JSON 字符串
func ToJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ToIndentedJSON 將結構體轉換為縮排 JSON
func ToIndentedJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
