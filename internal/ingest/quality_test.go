package ingest

import (
	"math"
	"strings"
	"testing"
	"time"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestQualityScorerScoring(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		text      string
		character string
		wantScore float64
	}{
		{
			// length 1.0*0.1 + question 0 + mention 0 + engagement 0.5*0.2
			// + uniqueness 0.7*0.2
			name:      "plain statement",
			text:      "just hanging out here",
			wantScore: 0.1 + 0.1 + 0.14,
		},
		{
			// question mark adds the 0.3 feature
			name:      "question",
			text:      "what are you playing?",
			wantScore: 0.1 + 0.3 + 0.1 + 0.14,
		},
		{
			// mention + question + one exclamation
			name:      "mention with engagement",
			text:      "hey Kuro! what do you think?",
			character: "kuro",
			wantScore: 0.1 + 0.3 + 0.2 + 0.16 + 0.14,
		},
		{
			// excessive exclamations zero the engagement feature
			name:      "too many exclamations",
			text:      "this! is! so! cool! right",
			wantScore: 0.1 + 0.14,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := NewQualityScorer()
			_, score, _ := s.ShouldRespond(chatMsg("u1", tt.text), tt.character)
			if !almostEqual(score, tt.wantScore) {
				t.Errorf("score = %v, want %v", score, tt.wantScore)
			}
		})
	}
}

func TestQualityScorerLengthBoundary(t *testing.T) {
	t.Parallel()

	s := NewQualityScorer()

	// 10 runes: full length feature (0.1); no question, no mention,
	// zero exclamations (0.1), uniqueness 0.14.
	_, score10, _ := s.ShouldRespond(chatMsg("u1", strings.Repeat("ab", 5)), "")
	if !almostEqual(score10, 0.1+0.1+0.14) {
		t.Errorf("10-rune score = %v, want %v", score10, 0.34)
	}

	// 9 runes: half length feature (0.05).
	_, score9, _ := s.ShouldRespond(chatMsg("u2", "abcdbcdbc"), "")
	if !almostEqual(score9, 0.05+0.1+0.14) {
		t.Errorf("9-rune score = %v, want %v", score9, 0.29)
	}
}

func TestQualityScorerThreshold(t *testing.T) {
	t.Parallel()

	s := NewQualityScorer()

	respond, score, reason := s.ShouldRespond(chatMsg("u1", "how does that work?"), "")
	if !respond || reason != ReasonThresholdMet {
		t.Errorf("question: respond=%v score=%v reason=%q, want threshold met", respond, score, reason)
	}

	// 9 runes, no question: 0.29 < 0.3.
	respond, score, reason = s.ShouldRespond(chatMsg("u2", "abcdbcdbc"), "")
	if respond || reason != ReasonScoreTooLow {
		t.Errorf("weak message: respond=%v score=%v reason=%q, want score too low", respond, score, reason)
	}
}

func TestQualityScorerCooldown(t *testing.T) {
	t.Parallel()

	s := NewQualityScorer()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	msg := chatMsg("u1", "what is happening today?")

	if respond, _, _ := s.ShouldRespond(msg, ""); !respond {
		t.Fatal("first message should get a response")
	}

	base = base.Add(10 * time.Second)
	respond, score, reason := s.ShouldRespond(msg, "")
	if respond || score != 0 || reason != "cooldown" {
		t.Errorf("within cooldown: respond=%v score=%v reason=%q, want cooldown", respond, score, reason)
	}

	// A different user is not gated.
	if respond, _, _ := s.ShouldRespond(chatMsg("u2", "what is happening today?"), ""); !respond {
		t.Error("other user should not share the cooldown")
	}

	base = base.Add(25 * time.Second)
	if respond, _, _ := s.ShouldRespond(msg, ""); !respond {
		t.Error("after 30s cooldown the user should get responses again")
	}
}

func TestQualityScorerUniquenessOption(t *testing.T) {
	t.Parallel()

	s := NewQualityScorer(WithUniquenessScorer())

	// First sighting has an empty window: fully unique.
	_, first, _ := s.ShouldRespond(chatMsg("u1", "a perfectly ordinary chat line"), "")
	if !almostEqual(first, 0.1+0.1+0.2) {
		t.Errorf("first score = %v, want %v", first, 0.4)
	}

	// The identical text is now maximally similar: uniqueness drops to 0.
	_, second, _ := s.ShouldRespond(chatMsg("u2", "a perfectly ordinary chat line"), "")
	if !almostEqual(second, 0.1+0.1) {
		t.Errorf("repeat score = %v, want %v", second, 0.2)
	}
}
