package llm

import (
	"testing"
)

func TestCleanHTMLBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "html code block",
			input:    "```html\n<h2>Intro</h2>\n<p>Hi</p>\n```",
			expected: "<h2>Intro</h2>\n<p>Hi</p>",
		},
		{
			name:     "generic code block",
			input:    "```\n<p>Hi</p>\n```",
			expected: "<p>Hi</p>",
		},
		{
			name:     "markup on the fence line is kept",
			input:    "```<p>Hi</p>```",
			expected: "<p>Hi</p>",
		},
		{
			name:     "plain HTML",
			input:    "  <p>Hi</p>\n",
			expected: "<p>Hi</p>",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanHTMLBlock(tt.input); got != tt.expected {
				t.Errorf("CleanHTMLBlock() = %q, want %q", got, tt.expected)
			}
		})
	}
}
