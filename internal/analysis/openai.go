package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yvh1223/antivirus-market-intelligence/internal/config"
	"github.com/yvh1223/antivirus-market-intelligence/internal/domain"
	"github.com/yvh1223/antivirus-market-intelligence/internal/ports"
)

const systemPrompt = "You are an expert business analyst. Respond only with valid JSON."

// maxReviewExcerpt bounds the review text sent per call to keep token usage
// predictable.
const maxReviewExcerpt = 300

// OpenAIClient implements ports.Analyzer backed by OpenAI-compatible chat
// APIs.
type OpenAIClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.Analyzer = (*OpenAIClient)(nil)

// NewOpenAIClient builds a client from configuration.
func NewOpenAIClient(cfg config.OpenAIConfig) *OpenAIClient {
	return &OpenAIClient{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// analysisPayload mirrors the JSON shape the prompt requests.
type analysisPayload struct {
	Sentiment struct {
		Score      float64 `json:"score"`
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"sentiment"`
	Topics               []string `json:"topics"`
	BusinessIntelligence struct {
		PriorityLevel string `json:"priority_level"`
	} `json:"business_intelligence"`
	Summary string `json:"summary"`
}

// Analyze sends one review for sentiment/topic extraction and decodes the
// structured response. Markdown-fenced JSON is tolerated.
func (c *OpenAIClient) Analyze(ctx context.Context, text, productContext string) (domain.AnalysisResult, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.AnalysisResult{}, fmt.Errorf("openai client misconfigured")
	}

	excerpt := text
	if len(excerpt) > maxReviewExcerpt {
		excerpt = excerpt[:maxReviewExcerpt]
	}

	prompt := fmt.Sprintf(`Analyze this review for %s. JSON only:

{"sentiment": {"score": 0.5, "label": "positive", "confidence": 0.8}, "topics": ["performance"], "business_intelligence": {"priority_level": "low"}, "summary": "Brief summary"}

Review: %q`, productContext, excerpt)

	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"max_tokens":  300,
		"temperature": 0.1,
	})
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("marshal analysis payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("send analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.AnalysisResult{}, fmt.Errorf("analysis api error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return domain.AnalysisResult{}, fmt.Errorf("decode chat response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return domain.AnalysisResult{}, fmt.Errorf("empty chat response")
	}

	payload, err := decodeAnalysis(chat.Choices[0].Message.Content)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	result := domain.AnalysisResult{
		SentimentScore:      payload.Sentiment.Score,
		SentimentLabel:      payload.Sentiment.Label,
		SentimentConfidence: payload.Sentiment.Confidence,
		Topics:              payload.Topics,
		PriorityLevel:       payload.BusinessIntelligence.PriorityLevel,
		Summary:             payload.Summary,
		ModelUsed:           c.model,
		ProcessedAt:         time.Now().UTC(),
	}
	if result.SentimentLabel == "" {
		result.SentimentLabel = "neutral"
	}
	if result.PriorityLevel == "" {
		result.PriorityLevel = "low"
	}

	return result, nil
}

// decodeAnalysis extracts the JSON object from a possibly fence-wrapped
// model response.
func decodeAnalysis(content string) (analysisPayload, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return analysisPayload{}, fmt.Errorf("parse analysis response: %w", err)
	}
	return payload, nil
}
