package index

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxPromptContent bounds how much of a file is sent to the scorer.
const maxPromptContent = 12 * 1024

const scorePrompt = `Review this source file. Rate its overall quality from 0 to 100 (readability, structure, naming, documentation) and summarize in 1-2 sentences what it defines and its role in the project. Be specific about the types, functions, or interfaces it provides. Do not speculate about things not shown in the code.

Respond with exactly one line of JSON and nothing else:
{"score": <integer 0-100>, "summary": "<summary>"}

File: %s
Language: %s
Heuristic metrics: %s

` + "```\n%s\n```"

// BuildPrompt renders the scoring prompt for one file.
func BuildPrompt(path, lang, content string, a Assessment) string {
	if len(content) > maxPromptContent {
		cut := maxPromptContent
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut] + "\n... (truncated)"
	}
	return fmt.Sprintf(scorePrompt, path, lang, a.JSON(), content)
}

type scoreResponse struct {
	Score   *json.Number `json:"score"`
	Summary string       `json:"summary"`
}

// ParseScore extracts the score and summary from a scorer response. It takes
// the first line holding a JSON object; anything malformed yields 0 and no
// summary.
func ParseScore(text string) (int, string) {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		start := strings.Index(line, "{")
		end := strings.LastIndex(line, "}")
		if start < 0 || end <= start {
			continue
		}
		var resp scoreResponse
		dec := json.NewDecoder(strings.NewReader(line[start : end+1]))
		dec.UseNumber()
		if err := dec.Decode(&resp); err != nil || resp.Score == nil {
			return 0, ""
		}
		score, err := resp.Score.Int64()
		if err != nil {
			return 0, ""
		}
		return clamp(int(score)), strings.TrimSpace(resp.Summary)
	}
	return 0, ""
}

func clamp(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
