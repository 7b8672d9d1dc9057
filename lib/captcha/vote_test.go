package captcha

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPluralityVote(t *testing.T) {
	testCases := []struct {
		name       string
		candidates []string
		text       string
		votes      int
		total      int
		confidence float64
	}{
		{
			name:       "clear majority",
			candidates: []string{"8k3f", "8k3f", "8k3j"},
			text:       "8k3f",
			votes:      2,
			total:      3,
			confidence: 2.0 / 3.0,
		},
		{
			name:       "tie broken by first seen",
			candidates: []string{"abcd", "efgh", "efgh", "abcd"},
			text:       "abcd",
			votes:      2,
			total:      4,
			confidence: 0.5,
		},
		{
			name:       "single candidate",
			candidates: []string{"zzz9"},
			text:       "zzz9",
			votes:      1,
			total:      1,
			confidence: 1,
		},
		{
			name:       "no candidates",
			candidates: nil,
			text:       "",
			votes:      0,
			total:      0,
			confidence: 0,
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			got := PluralityVote(test.candidates)
			require.Equal(t, test.text, got.Text)
			require.Equal(t, test.votes, got.Votes)
			require.Equal(t, test.total, got.TotalCandidates)
			require.InDelta(t, test.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestPluralityVoteIsDeterministic(t *testing.T) {
	candidates := []string{"aaaa", "bbbb", "cccc", "bbbb", "aaaa"}
	first := PluralityVote(candidates)
	for i := 0; i < 100; i++ {
		require.Equal(t, first, PluralityVote(candidates))
	}
}
