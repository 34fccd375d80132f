package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"IntelRadar/internal/config"
	"IntelRadar/internal/domain"
	"IntelRadar/internal/ports"
)

// ErrMalformedResponse marks service output that is not a single JSON object.
var ErrMalformedResponse = errors.New("malformed extraction response")

const (
	defaultTimeout       = 30 * time.Second
	defaultMaxInputChars = 3000
)

const promptTemplate = `你是一個精準的半導體產業資料萃取系統。
閱讀以下文章，萃取三個欄位，只輸出一個 JSON 物件，不要使用 Markdown 或程式碼區塊：
{
  "Tech_Cluster": "1 到 2 個核心技術關鍵字，例如：矽光子、先進封裝、設備材料、永續ESG",
  "Target_Audience": "一個主要讀者層級，例如：C-Level決策者、研發工程師、供應鏈採購",
  "Industry_Trend": "一句話（20 字以內）總結文章透露的產業趨勢或痛點"
}

文章標題：%s

網頁內容：
%s`

// Extractor turns article text into the fixed three-field record.
type Extractor struct {
	model    ports.LanguageModel
	timeout  time.Duration
	maxChars int
}

var _ ports.FieldExtractor = (*Extractor)(nil)

// New wraps a language model with the extraction contract.
func New(model ports.LanguageModel, cfg config.ExtractorConfig) *Extractor {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxChars := cfg.MaxInputChars
	if maxChars <= 0 {
		maxChars = defaultMaxInputChars
	}
	return &Extractor{model: model, timeout: timeout, maxChars: maxChars}
}

// Extract calls the model under the response-time ceiling and parses its reply.
func (e *Extractor) Extract(ctx context.Context, title, text string) (domain.Extraction, error) {
	if e.model == nil {
		return domain.Extraction{}, fmt.Errorf("extractor has no language model")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	reply, err := e.model.Complete(callCtx, BuildPrompt(title, Truncate(text, e.maxChars)))
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return domain.Extraction{}, fmt.Errorf("extraction timed out after %s: %w", e.timeout, err)
		}
		return domain.Extraction{}, fmt.Errorf("extraction call: %w", err)
	}

	return Parse(reply)
}

// BuildPrompt renders the fixed-schema instruction.
func BuildPrompt(title, text string) string {
	return fmt.Sprintf(promptTemplate, title, text)
}

// Truncate keeps at most n characters (runes, not bytes).
func Truncate(text string, n int) string {
	if n <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}

// Parse unwraps formatting fences and decodes exactly one JSON object.
// Absent fields become domain.NotAvailable.
func Parse(reply string) (domain.Extraction, error) {
	body := Unwrap(reply)
	if !strings.HasPrefix(body, "{") {
		return domain.Extraction{}, fmt.Errorf("%w: expected a JSON object", ErrMalformedResponse)
	}

	var payload struct {
		TechCluster    fieldValue `json:"Tech_Cluster"`
		TargetAudience fieldValue `json:"Target_Audience"`
		IndustryTrend  fieldValue `json:"Industry_Trend"`
	}

	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&payload); err != nil {
		return domain.Extraction{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return domain.Extraction{}, fmt.Errorf("%w: trailing content after object", ErrMalformedResponse)
	}

	return domain.Extraction{
		TechCluster:    payload.TechCluster.orNA(),
		TargetAudience: payload.TargetAudience.orNA(),
		IndustryTrend:  payload.IndustryTrend.orNA(),
	}, nil
}

// Unwrap strips surrounding whitespace and a single ``` or ```json fence.
func Unwrap(reply string) string {
	s := strings.TrimSpace(reply)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		tag := strings.TrimSpace(s[:idx])
		if tag == "" || isLanguageTag(tag) {
			s = s[idx+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func isLanguageTag(tag string) bool {
	switch strings.ToLower(tag) {
	case "json", "javascript", "js":
		return true
	default:
		return false
	}
}

// fieldValue accepts a string or a list of strings.
type fieldValue struct {
	value string
}

func (f *fieldValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.value = s
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("field must be a string or list of strings")
	}
	parts := make([]string, 0, len(list))
	for _, item := range list {
		if item = strings.TrimSpace(item); item != "" {
			parts = append(parts, item)
		}
	}
	f.value = strings.Join(parts, "、")
	return nil
}

func (f fieldValue) orNA() string {
	if v := strings.TrimSpace(f.value); v != "" {
		return v
	}
	return domain.NotAvailable
}
