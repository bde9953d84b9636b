package llm

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/fairyhunter13/brand-mention-worker/internal/domain"
	"github.com/fairyhunter13/brand-mention-worker/pkg/textx"
)

// Mock is a deterministic in-process provider used for tests and local
// development. Summaries echo the first mention line truncated to 160 chars;
// sentiment is a per-line vote over small positive/negative lexicons.
type Mock struct{}

var (
	mockPositiveWords = []string{"great", "good", "love", "awesome", "excellent", "improved", "success", "fast"}
	mockNegativeWords = []string{"bad", "hate", "poor", "slow", "issue", "problem", "bug", "error"}
)

// Invoke implements Invoker without any network round trip.
func (Mock) Invoke(_ context.Context, prompt string, _ time.Duration, _ domain.Labels, _ string) (string, error) {
	if strings.Contains(prompt, sentimentMarker) {
		return mockSentiment(textsBody(prompt)), nil
	}
	summary := textx.Truncate(textx.FirstLine(textsBody(prompt)), 160)
	if summary == "" {
		summary = "no summary available"
	}
	return summary, nil
}

func mockSentiment(body string) string {
	var positive, negative, neutral int
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(strings.ToLower(line))
		if line == "" {
			continue
		}
		var posHits, negHits int
		for _, w := range mockPositiveWords {
			if strings.Contains(line, w) {
				posHits++
			}
		}
		for _, w := range mockNegativeWords {
			if strings.Contains(line, w) {
				negHits++
			}
		}
		switch {
		case posHits > negHits:
			positive++
		case negHits > posHits:
			negative++
		default:
			neutral++
		}
	}
	total := positive + negative + neutral
	if total == 0 {
		total = 1
	}
	out, _ := json.Marshal(map[string]float64{
		"positive": float64(positive) / float64(total),
		"negative": float64(negative) / float64(total),
		"neutral":  float64(neutral) / float64(total),
	})
	return string(out)
}
