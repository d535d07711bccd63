// Package ingest implements the chat ingest pipeline: spam filtering,
// quality scoring, and multi-candidate response selection for viewer
// messages arriving from chat platform sources.
package ingest

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kurogo-live/kurogo/pkg/platform"
)

// Spam reason codes returned by IsSpam.
const (
	ReasonTooShort          = "message_too_short"
	ReasonTooLong           = "message_too_long"
	ReasonContainsURL       = "contains_url"
	ReasonExcessiveEmoji    = "excessive_emoji"
	ReasonRateLimitExceeded = "rate_limit_exceeded"
	ReasonDuplicateMessage  = "duplicate_message"
)

const (
	maxMessagesPerMinute = 5
	maxSimilarMessages   = 3
	userWindowCap        = 10
	recentMessagesCap    = 50
	userIdleSweep        = 5 * time.Minute
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// spamPatterns are checked in order after the URL pattern; the raw pattern
// string becomes part of the reason code.
var spamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[A-Z]{5,}`),
	regexp.MustCompile(`[!@#$%^&*()]{3,}`),
}

// reasonRepeatedChars preserves the historical reason code for the
// repeated-character check, which RE2 cannot express as a regexp
// (backreferences are unsupported).
const reasonRepeatedChars = `matches_spam_pattern_(.)\1{4,}`

var spamKeywords = []string{
	"buy now", "click here", "free money", "guaranteed profit",
	"pump it", "to the moon", "scam", "hack", "cheat",
}

// SpamFilter rejects low-value chat messages with ordered heuristic checks.
// Per-user rate windows and the global duplicate window are bounded; user
// entries idle for more than five minutes are swept on access.
type SpamFilter struct {
	mu        sync.Mutex
	userTimes map[string][]time.Time
	recent    []string // normalized, newest last

	now func() time.Time
}

// NewSpamFilter creates a SpamFilter with empty windows.
func NewSpamFilter() *SpamFilter {
	return &SpamFilter{
		userTimes: make(map[string][]time.Time),
		now:       time.Now,
	}
}

// IsSpam evaluates the checks in order and returns the first matching reason.
// Non-spam messages return (false, "").
func (f *SpamFilter) IsSpam(msg platform.ChatMessage) (bool, string) {
	text := strings.TrimSpace(msg.Text)
	runes := []rune(text)

	if len(runes) < 2 {
		return true, ReasonTooShort
	}
	if len(runes) > 500 {
		return true, ReasonTooLong
	}

	if urlPattern.MatchString(msg.Text) {
		return true, ReasonContainsURL
	}
	for _, p := range spamPatterns {
		if p.MatchString(msg.Text) {
			return true, "matches_spam_pattern_" + p.String()
		}
	}
	if hasRepeatedRun(msg.Text, 5) {
		return true, reasonRepeatedChars
	}

	if countEmoji(text) >= 5 && len(runes) < 20 {
		return true, ReasonExcessiveEmoji
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.now()
	f.sweepLocked(now)

	// Rate limit: a user already at the per-minute cap does not extend
	// their own window.
	times := f.userTimes[msg.UserID]
	inWindow := 0
	for _, t := range times {
		if now.Sub(t) < time.Minute {
			inWindow++
		}
	}
	if inWindow >= maxMessagesPerMinute {
		return true, ReasonRateLimitExceeded
	}
	times = append(times, now)
	if len(times) > userWindowCap {
		times = times[len(times)-userWindowCap:]
	}
	f.userTimes[msg.UserID] = times

	// The current message counts toward the duplicate threshold: the third
	// identical message in the window is the first one flagged.
	normalized := normalizeText(text)
	dupes := 1
	for _, prev := range f.recent {
		if prev == normalized {
			dupes++
		}
	}
	if dupes >= maxSimilarMessages {
		return true, ReasonDuplicateMessage
	}
	f.recent = append(f.recent, normalized)
	if len(f.recent) > recentMessagesCap {
		f.recent = f.recent[len(f.recent)-recentMessagesCap:]
	}

	lower := strings.ToLower(text)
	for _, kw := range spamKeywords {
		if strings.Contains(lower, kw) {
			return true, "contains_spam_keyword_" + kw
		}
	}

	return false, ""
}

// sweepLocked drops users whose newest message is older than the idle cutoff.
func (f *SpamFilter) sweepLocked(now time.Time) {
	for user, times := range f.userTimes {
		if len(times) == 0 || now.Sub(times[len(times)-1]) > userIdleSweep {
			delete(f.userTimes, user)
		}
	}
}

// normalizeText lowercases and collapses all whitespace runs to one space.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// hasRepeatedRun reports whether any rune repeats n or more times in a row.
func hasRepeatedRun(s string, n int) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= n {
				return true
			}
		} else {
			prev, run = r, 1
		}
	}
	return false
}

// countEmoji counts runes in the U+1F300–U+1F9FF emoji block.
func countEmoji(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x1F300 && r <= 0x1F9FF {
			n++
		}
	}
	return n
}
