package ingest

import (
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/kurogo-live/kurogo/pkg/platform"
)

// Quality verdict reasons.
const (
	ReasonCooldown     = "cooldown"
	ReasonThresholdMet = "quality_threshold_met"
	ReasonScoreTooLow  = "quality_score_too_low"
)

const (
	minQualityScore     = 0.3
	responseCooldown    = 30 * time.Second
	responseEntrySweep  = 5 * time.Minute
	uniquenessDefault   = 0.7
	uniquenessWindowCap = 20
)

// Feature weights of the quality score.
const (
	weightLength     = 0.1
	weightQuestion   = 0.3
	weightMention    = 0.2
	weightEngagement = 0.2
	weightUniqueness = 0.2
)

// QualityScorer decides which non-spam chat messages deserve a response:
// a per-user cooldown gate followed by a weighted feature score compared
// against a fixed threshold.
type QualityScorer struct {
	mu            sync.Mutex
	lastResponses map[string]time.Time
	window        []string // recent message texts for the similarity scorer

	useSimilarity bool
	now           func() time.Time
}

// QualityOption is a functional option for configuring a QualityScorer.
type QualityOption func(*QualityScorer)

// WithUniquenessScorer replaces the constant uniqueness feature with a
// Jaro-Winkler similarity score against a rolling window of recent messages.
func WithUniquenessScorer() QualityOption {
	return func(s *QualityScorer) { s.useSimilarity = true }
}

// NewQualityScorer creates a QualityScorer with no response history.
func NewQualityScorer(opts ...QualityOption) *QualityScorer {
	s := &QualityScorer{
		lastResponses: make(map[string]time.Time),
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ShouldRespond reports whether the message should receive a response, the
// quality score in [0,1], and the verdict reason. On a positive verdict the
// user's last-response timestamp is updated.
func (s *QualityScorer) ShouldRespond(msg platform.ChatMessage, characterName string) (bool, float64, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()

	if last, ok := s.lastResponses[msg.UserID]; ok && now.Sub(last) < responseCooldown {
		return false, 0, ReasonCooldown
	}

	score := s.scoreLocked(msg.Text, characterName)

	if score >= minQualityScore {
		s.lastResponses[msg.UserID] = now
		for user, t := range s.lastResponses {
			if now.Sub(t) > responseEntrySweep {
				delete(s.lastResponses, user)
			}
		}
		return true, score, ReasonThresholdMet
	}
	return false, score, ReasonScoreTooLow
}

func (s *QualityScorer) scoreLocked(text, characterName string) float64 {
	score := 0.0

	length := len([]rune(text))
	switch {
	case length >= 10 && length <= 200:
		score += weightLength * 1.0
	case (length >= 5 && length < 10) || (length > 200 && length <= 300):
		score += weightLength * 0.5
	default:
		score += weightLength * 0.1
	}

	if strings.Contains(text, "?") {
		score += weightQuestion
	}

	if characterName != "" &&
		strings.Contains(strings.ToLower(text), strings.ToLower(characterName)) {
		score += weightMention
	}

	switch n := strings.Count(text, "!"); {
	case n >= 1 && n <= 3:
		score += weightEngagement * 0.8
	case n == 0:
		score += weightEngagement * 0.5
	}

	score += weightUniqueness * s.uniquenessLocked(text)

	if score > 1 {
		score = 1
	}
	return score
}

// uniquenessLocked returns the uniqueness multiplier: a fixed 0.7 by
// default, or 1 minus the highest Jaro-Winkler similarity against the
// rolling window when the similarity scorer is enabled.
func (s *QualityScorer) uniquenessLocked(text string) float64 {
	if !s.useSimilarity {
		return uniquenessDefault
	}

	maxSim := 0.0
	lower := strings.ToLower(text)
	for _, prev := range s.window {
		if sim := matchr.JaroWinkler(lower, prev, false); sim > maxSim {
			maxSim = sim
		}
	}

	s.window = append(s.window, lower)
	if len(s.window) > uniquenessWindowCap {
		s.window = s.window[len(s.window)-uniquenessWindowCap:]
	}

	return 1 - maxSim
}
