// Package booking implements the reservation dialogue: intent gating, slot
// extraction, date/time normalization, the step machine and the finalizer
// that hands confirmed reservations to the calendar and record sinks.
package booking

import (
	"regexp"
	"strings"
)

// Intent is the coarse purpose of a single utterance.
type Intent int

const (
	IntentInformation Intent = iota
	IntentBooking
	IntentCancel
)

func (i Intent) String() string {
	switch i {
	case IntentBooking:
		return "booking"
	case IntentCancel:
		return "cancel"
	default:
		return "information"
	}
}

var (
	cancelKeywords  = []string{"cancel", "stop", "quit", "never mind", "nevermind", "start over", "mistake"}
	bookingKeywords = []string{"book", "reserve", "reservation", "table"}
)

// intentRule maps a keyword set to the intent it signals. Rules are evaluated
// in order and the first match wins, so cancel must stay ahead of booking.
type intentRule struct {
	intent  Intent
	matcher *keywordMatcher
}

var intentRules = []intentRule{
	{intent: IntentCancel, matcher: newKeywordMatcher(cancelKeywords...)},
	{intent: IntentBooking, matcher: newKeywordMatcher(bookingKeywords...)},
}

// Classify returns the intent of an utterance. Cancel wins over booking and
// anything unmatched is an information request.
func Classify(utterance string) Intent {
	for _, rule := range intentRules {
		if rule.matcher.Match(utterance) {
			return rule.intent
		}
	}
	return IntentInformation
}

// HasBookingKeyword reports whether the utterance mentions reserving.
func HasBookingKeyword(utterance string) bool {
	return intentRules[1].matcher.Match(utterance)
}

// keywordMatcher does case-insensitive matching of keywords that must start
// at a word boundary ("tables" matches "table", "vegetable" does not).
type keywordMatcher struct {
	re *regexp.Regexp
}

func newKeywordMatcher(keywords ...string) *keywordMatcher {
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(kw)))
	}
	return &keywordMatcher{re: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)`)}
}

func (m *keywordMatcher) Match(text string) bool {
	return m.re.MatchString(strings.ToLower(text))
}
