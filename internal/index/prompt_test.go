package index

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseScore(t *testing.T) {
	cases := []struct {
		in      string
		score   int
		summary string
	}{
		{`{"score": 82, "summary": "Parses config."}`, 82, "Parses config."},
		{"Sure!\n```json\n{\"score\": 55}\n```", 55, ""},
		{`{"score": -3, "summary": "x"}`, 0, "x"},
		{`{"score": 250}`, 100, ""},
		{`{"score": 7.5}`, 0, ""},
		{`{"summary": "no score"}`, 0, ""},
		{`not json at all`, 0, ""},
		{`{"score": "high"}`, 0, ""},
		{``, 0, ""},
	}
	for _, tc := range cases {
		score, summary := ParseScore(tc.in)
		assert.Equal(t, tc.score, score, tc.in)
		assert.Equal(t, tc.summary, summary, tc.in)
	}
}

func TestBuildPromptTruncates(t *testing.T) {
	big := strings.Repeat("é", maxPromptContent)
	p := BuildPrompt("/p/big.go", "go", big, Assessment{Lines: 1})
	assert.Contains(t, p, "File: /p/big.go")
	assert.Contains(t, p, "... (truncated)")
	assert.Less(t, len(p), maxPromptContent+2048)
}

func TestAssessQuality(t *testing.T) {
	clean := "package p\n\n// Sum adds.\nfunc Sum(a, b int) int {\n\treturn a + b\n}\n"
	a := AssessQuality(clean, "go")
	assert.Equal(t, 100.0, a.Score)
	assert.Equal(t, 7, a.Lines)
	assert.Equal(t, 4, a.CodeLines)
	assert.InDelta(t, 0.2, a.CommentRatio, 0.001)
	assert.Equal(t, 4, a.MaxIndent)

	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("x = 1  # TODO\n")
		b.WriteString(strings.Repeat("y", 130) + "\n")
	}
	messy := AssessQuality(b.String(), "python")
	assert.Equal(t, 30, messy.LongLines)
	assert.Equal(t, 30, messy.TodoMarkers)
	assert.Equal(t, 65.0, messy.Score)

	assert.Equal(t, a, AssessQuality(clean, "go"), "deterministic")
}
