package domain

import "time"

// AnalysisResult carries the structured output of the AI analysis stage.
// The pipeline treats the provider's response as opaque beyond these fields.
type AnalysisResult struct {
	SentimentScore      float64   `json:"sentiment_score"`
	SentimentLabel      string    `json:"sentiment_label"`
	SentimentConfidence float64   `json:"sentiment_confidence"`
	Topics              []string  `json:"topics"`
	PriorityLevel       string    `json:"priority_level"`
	Summary             string    `json:"summary"`
	ModelUsed           string    `json:"ai_model_used"`
	ProcessedAt         time.Time `json:"processed_at"`
}
