package llm

import (
	"fmt"
	"strings"
)

// Prompt families. Summary and sentiment drive the processing pipeline; the
// roadmap family is an auxiliary operation exposed by the executor.

const sentimentMarker = "Analyse the sentiment"

func summaryPrompt(texts []string, maxTokens int) string {
	return fmt.Sprintf(`You are an analyst summarizing brand mentions.
Summarize the following texts into a concise overview (max %d tokens).
Texts:
%s
`, maxTokens, strings.Join(texts, "\n"))
}

func sentimentPrompt(texts []string) string {
	return fmt.Sprintf(`You are a sentiment analysis assistant. %s of the texts below and return a JSON object with keys positive, negative, neutral whose values are floats between 0 and 1 summing to 1.
Texts:
%s
`, sentimentMarker, strings.Join(texts, "\n"))
}

func roadmapPrompt(vars map[string]string) string {
	get := func(key string) string {
		if v, ok := vars[key]; ok && strings.TrimSpace(v) != "" {
			return v
		}
		return "Not specified"
	}
	return fmt.Sprintf(`You are a career guidance expert. Generate a detailed 5-year roadmap based on the following student profile. Respond in roadmap.sh style bullet points only.
Student Profile:
Interests: %s
Skills: %s
Goal: %s
`, get("interests"), get("skills"), get("goal"))
}

// textsBody extracts the text block following the "Texts:" header of a
// prompt. Used by the mock provider.
func textsBody(prompt string) string {
	if i := strings.Index(prompt, "Texts:\n"); i >= 0 {
		return prompt[i+len("Texts:\n"):]
	}
	return prompt
}
