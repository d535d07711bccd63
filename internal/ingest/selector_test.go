package ingest

import (
	"context"
	"strings"
	"testing"

	llmmock "github.com/kurogo-live/kurogo/pkg/provider/llm/mock"
)

func TestSelectBestPicksHighestScore(t *testing.T) {
	t.Parallel()

	// The middle candidate sits in the preferred 20-150 length band and is
	// not repetitive; the first is too short, the third degenerate.
	candidates := []string{
		"hey",
		"that boss fight was rough, but the final phase made it worth it",
		"yes yes yes yes yes",
	}
	got := selectBest(candidates)
	if got != candidates[1] {
		t.Errorf("selectBest = %q, want %q", got, candidates[1])
	}
}

func TestSelectBestTieGoesToLowestIndex(t *testing.T) {
	t.Parallel()

	// Two word-disjoint candidates of equal length band and naturalness
	// score identically; the first must win.
	candidates := []string{
		"the stream tonight covers roguelike deckbuilders",
		"viewers asked about speedrun strats for tomorrow",
	}
	got := selectBest(candidates)
	if got != candidates[0] {
		t.Errorf("selectBest = %q, want first candidate on tie", got)
	}
}

func TestSelectBestSkipsFailedCandidates(t *testing.T) {
	t.Parallel()

	candidates := []string{"", "a fine answer that is long enough to score well", ""}
	if got := selectBest(candidates); got != candidates[1] {
		t.Errorf("selectBest = %q, want surviving candidate", got)
	}

	if got := selectBest([]string{"", "", ""}); got != "" {
		t.Errorf("selectBest with all failures = %q, want empty", got)
	}
}

func TestIsRepetitive(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{"hello hello hello there", true},
		{"hello there friend", false},
		{"", false},
		// The third repeat falls outside the first 20 words.
		{"w1 w2 w3 w4 w5 w6 w7 w8 w9 w10 echo w12 echo w14 w15 w16 w17 w18 w19 w20 echo", false},
	}
	for _, tt := range tests {
		if got := isRepetitive(tt.text); got != tt.want {
			t.Errorf("isRepetitive(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestJaccard(t *testing.T) {
	t.Parallel()

	if got := jaccard("a b c", "a b c"); got != 1 {
		t.Errorf("identical texts = %v, want 1", got)
	}
	if got := jaccard("a b", "c d"); got != 0 {
		t.Errorf("disjoint texts = %v, want 0", got)
	}
	// {a,b,c} vs {b,c,d}: intersection 2, union 4.
	if got := jaccard("a b c", "b c d"); got != 0.5 {
		t.Errorf("overlapping texts = %v, want 0.5", got)
	}
}

func TestSelectorUsesAgent(t *testing.T) {
	t.Parallel()

	agent := llmmock.New("a decent reply that lands inside the preferred band")
	sel := NewSelector(agent, "you are a streamer")

	got := sel.SelectBest(context.Background(), chatMsg("u1", "how was the raid?"))
	if got != "a decent reply that lands inside the preferred band" {
		t.Errorf("SelectBest = %q", got)
	}

	calls := agent.Calls()
	if len(calls) != len(promptVariants) {
		t.Fatalf("agent calls = %d, want %d", len(calls), len(promptVariants))
	}
	suffixed := 0
	for _, call := range calls {
		text := call.Messages[len(call.Messages)-1].Content
		if !strings.HasPrefix(text, "how was the raid?") {
			t.Errorf("prompt %q does not start with the original message", text)
		}
		if text != "how was the raid?" {
			suffixed++
		}
	}
	if suffixed != 2 {
		t.Errorf("suffixed variants = %d, want 2", suffixed)
	}
}

func TestSelectorAllGenerationsFail(t *testing.T) {
	t.Parallel()

	// An empty script fails every call.
	agent := llmmock.New()
	sel := NewSelector(agent, "")

	if got := sel.SelectBest(context.Background(), chatMsg("u1", "anyone there?")); got != "" {
		t.Errorf("SelectBest with failing agent = %q, want empty", got)
	}
}
