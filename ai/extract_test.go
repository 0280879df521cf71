package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "top level text field",
			raw:  `{"text": "direct answer"}`,
			want: "direct answer",
		},
		{
			name: "output array",
			raw:  `{"output": [{"type": "output_text", "text": "from output"}]}`,
			want: "from output",
		},
		{
			name: "output array untyped segment",
			raw:  `{"output": [{"text": "untyped"}]}`,
			want: "untyped",
		},
		{
			name: "candidates content parts",
			raw:  `{"candidates": [{"content": {"parts": [{"text": "from candidates"}]}}]}`,
			want: "from candidates",
		},
		{
			name: "candidate output field",
			raw:  `{"candidates": [{"output": "candidate output"}]}`,
			want: "candidate output",
		},
		{
			name: "text field wins over candidates",
			raw:  `{"text": "primary", "candidates": [{"output": "secondary"}]}`,
			want: "primary",
		},
		{
			name: "empty text falls through to candidates",
			raw:  `{"text": "", "candidates": [{"content": {"parts": [{"text": "fallback"}]}}]}`,
			want: "fallback",
		},
		{
			name: "no known shape",
			raw:  `{"usageMetadata": {"totalTokenCount": 12}}`,
			want: "",
		},
		{
			name: "malformed json",
			raw:  `{"text": `,
			want: "",
		},
		{
			name: "empty candidates array",
			raw:  `{"candidates": []}`,
			want: "",
		},
		{
			name: "candidate parts skip non-text",
			raw:  `{"candidates": [{"content": {"parts": [{"inlineData": {}}, {"text": "second part"}]}}]}`,
			want: "second part",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText([]byte(tt.raw)))
		})
	}
}
