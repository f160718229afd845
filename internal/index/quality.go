package index

import (
	"encoding/json"
	"math"
	"strings"
)

// Assessment is the heuristic scorer's output, stored as quality details.
type Assessment struct {
	Score         float64 `json:"score"`
	Lines         int     `json:"lines"`
	CodeLines     int     `json:"code_lines"`
	CommentRatio  float64 `json:"comment_ratio"`
	LongLines     int     `json:"long_lines"`
	TodoMarkers   int     `json:"todo_markers"`
	MaxIndent     int     `json:"max_indent"`
	AvgLineLength float64 `json:"avg_line_length"`
}

const (
	longLineLimit = 120
	tabWidth      = 4
)

// JSON returns the assessment serialized for the store.
func (a Assessment) JSON() string {
	b, _ := json.Marshal(a)
	return string(b)
}

func commentPrefixes(lang string) []string {
	switch lang {
	case "python", "shell", "ruby", "yaml", "toml":
		return []string{"#"}
	case "sql":
		return []string{"--"}
	case "markdown", "text", "json":
		return nil
	default:
		return []string{"//", "/*", "*", "*/"}
	}
}

// AssessQuality scores content deterministically from surface metrics.
// The score starts at 100 and loses points for very long files, long lines,
// deep nesting, TODO markers and a lack of comments.
func AssessQuality(content, lang string) Assessment {
	var a Assessment
	prefixes := commentPrefixes(lang)
	comments, totalLen := 0, 0
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r \t")
		a.Lines++
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		totalLen += len(line)
		if len(line) > longLineLimit {
			a.LongLines++
		}
		upper := strings.ToUpper(trimmed)
		if strings.Contains(upper, "TODO") || strings.Contains(upper, "FIXME") || strings.Contains(upper, "XXX") {
			a.TodoMarkers++
		}
		if indent := indentWidth(line); indent > a.MaxIndent {
			a.MaxIndent = indent
		}
		isComment := false
		for _, p := range prefixes {
			if strings.HasPrefix(trimmed, p) {
				isComment = true
				break
			}
		}
		if isComment {
			comments++
		} else {
			a.CodeLines++
		}
	}
	nonBlank := comments + a.CodeLines
	if nonBlank > 0 {
		a.CommentRatio = round2(float64(comments) / float64(nonBlank))
		a.AvgLineLength = round2(float64(totalLen) / float64(nonBlank))
	}

	score := 100.0
	if a.CodeLines > 500 {
		score -= math.Min(20, float64(a.CodeLines-500)/50)
	}
	score -= math.Min(15, float64(a.LongLines))
	if depth := a.MaxIndent / tabWidth; depth > 5 {
		score -= math.Min(15, float64(depth-5)*3)
	}
	score -= math.Min(10, float64(a.TodoMarkers)*2)
	if prefixes != nil && a.CodeLines > 20 && a.CommentRatio < 0.05 {
		score -= 10
	}
	a.Score = math.Max(0, math.Round(score))
	return a
}

func indentWidth(line string) int {
	w := 0
	for _, r := range line {
		switch r {
		case ' ':
			w++
		case '\t':
			w += tabWidth
		default:
			return w
		}
	}
	return w
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
