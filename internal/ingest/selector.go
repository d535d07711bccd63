package ingest

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kurogo-live/kurogo/pkg/platform"
	"github.com/kurogo-live/kurogo/pkg/provider/llm"
	"github.com/kurogo-live/kurogo/pkg/types"
)

// promptVariants nudge the agent toward diverse candidates; the empty
// suffix keeps the first candidate faithful to the raw message.
var promptVariants = []string{
	"",
	" (respond briefly)",
	" (respond naturally)",
}

const generationTimeout = 30 * time.Second

// Selector generates several candidate responses per chat message and
// returns the one scoring highest on length, uniqueness, and naturalness.
type Selector struct {
	agent        llm.Provider
	systemPrompt string
}

// NewSelector creates a Selector generating candidates through agent.
func NewSelector(agent llm.Provider, systemPrompt string) *Selector {
	return &Selector{agent: agent, systemPrompt: systemPrompt}
}

// SelectBest generates one candidate per prompt variant in parallel and
// returns the best-scoring one. A failed or empty generation scores zero;
// when every candidate fails the empty string is returned and the caller
// must not dispatch it.
func (s *Selector) SelectBest(ctx context.Context, msg platform.ChatMessage) string {
	candidates := make([]string, len(promptVariants))

	g, gctx := errgroup.WithContext(ctx)
	for i, suffix := range promptVariants {
		g.Go(func() error {
			genCtx, cancel := context.WithTimeout(gctx, generationTimeout)
			defer cancel()

			resp, err := s.agent.Complete(genCtx, llm.CompletionRequest{
				SystemPrompt: s.systemPrompt,
				Messages: []types.Message{{
					Role:    types.RoleUser,
					Name:    msg.Username,
					Content: msg.Text + suffix,
				}},
			})
			if err != nil {
				slog.Warn("candidate generation failed",
					"variant", i, "user", msg.Username, "err", err)
				return nil
			}
			candidates[i] = strings.TrimSpace(resp.Content)
			return nil
		})
	}
	_ = g.Wait()

	return selectBest(candidates)
}

// selectBest scores each non-empty candidate and returns the argmax, ties
// going to the lowest index.
func selectBest(candidates []string) string {
	best, bestScore := "", -1.0
	for i, c := range candidates {
		if c == "" {
			continue
		}
		score := scoreCandidate(c, candidates, i)
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func scoreCandidate(text string, all []string, idx int) float64 {
	score := 0.0

	length := len([]rune(text))
	switch {
	case length >= 20 && length <= 150:
		score += 0.4
	case (length >= 10 && length < 20) || (length > 150 && length <= 200):
		score += 0.2
	default:
		score += 0.1
	}

	score += 0.3 * (1 - meanJaccard(text, all, idx))

	if !isRepetitive(text) {
		score += 0.3
	}

	return score
}

// meanJaccard averages the word-set Jaccard similarity between text and the
// other candidates.
func meanJaccard(text string, all []string, idx int) float64 {
	sum, n := 0.0, 0
	for i, other := range all {
		if i == idx || other == "" {
			continue
		}
		sum += jaccard(text, other)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func jaccard(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if wordsB[w] {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

// isRepetitive reports whether any word occurs three or more times within
// the first twenty words.
func isRepetitive(text string) bool {
	words := strings.Fields(strings.ToLower(text))
	if len(words) > 20 {
		words = words[:20]
	}
	counts := make(map[string]int)
	for _, w := range words {
		counts[w]++
		if counts[w] >= 3 {
			return true
		}
	}
	return false
}
