package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	mod, err := NewModerator([]string{"badger", "snake", " "}, DefaultReplacement)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Simple word",
			input:    "The badger is here",
			expected: "The ****** is here",
		},
		{
			name:     "Multiple occurrences keep spacing",
			input:    "badger badger",
			expected: "****** ******",
		},
		{
			name:     "Uppercase and punctuation inside the word",
			input:    "S-N-A-K-E is a B.A.D.G.E.R",
			expected: "********* is a ***********",
		},
		{
			name:     "Spaces inside a match are kept",
			input:    "a bad ger",
			expected: "a *** ***",
		},
		{
			name:     "Trailing punctuation is kept",
			input:    "snake!",
			expected: "*****!",
		},
		{
			name:     "Clean text is unchanged",
			input:    "Un été avec un blaireau",
			expected: "Un été avec un blaireau",
		},
		{
			name:     "Empty text",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, mod.Censor(tt.input))
		})
	}
}

func TestModerator_EmptyDictionary(t *testing.T) {
	req := require.New(t)
	mod, err := NewModerator(nil, '#')
	req.NoError(err)
	req.Equal("anything goes", mod.Censor("anything goes"))
}

func TestModerator_CustomReplacement(t *testing.T) {
	req := require.New(t)
	mod, err := NewModerator([]string{"darn"}, '#')
	req.NoError(err)
	req.Equal("oh ####", mod.Censor("oh DARN"))
}
