package booking

import (
	"regexp"
	"strconv"
	"strings"
)

// MinPartySize and MaxPartySize bound the guests a single reservation covers.
const (
	MinPartySize = 1
	MaxPartySize = 8
)

const maxNameLength = 80

var (
	namePhraseRe = regexp.MustCompile(`(?i)\b(?:my name is|i'm|i am|im)\s+([a-z][a-z'\-]*(?:\s+[a-z][a-z'\-]*){0,3})`)
	emailRe      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	integerRe    = regexp.MustCompile(`\b(\d+)\b`)
	numberWordRe = regexp.MustCompile(`(?i)\b(one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)\b`)
	trailingRe   = regexp.MustCompile(`[\s.!?,;:]+$`)
	letterRe     = regexp.MustCompile(`[a-zA-Z]`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

// nameStopWords end a captured name ("I'm Ana and I'd like..." => "Ana").
var nameStopWords = map[string]struct{}{
	"and": {}, "but": {}, "i": {}, "id": {}, "i'd": {}, "would": {}, "want": {},
	"looking": {}, "here": {}, "calling": {}, "trying": {}, "from": {}, "with": {},
	"for": {}, "to": {}, "a": {}, "at": {}, "on": {},
}

// ExtractName looks for "my name is", "I'm" or "I am". Without one of those
// phrases the whole utterance is taken as the name, unless it talks about
// booking; this is only used while the flow is waiting for a name.
func ExtractName(utterance string) (string, bool) {
	if m := namePhraseRe.FindStringSubmatch(utterance); m != nil {
		if name := trimName(m[1]); name != "" {
			return name, true
		}
	}
	if HasBookingKeyword(utterance) {
		return "", false
	}
	name := strings.TrimSpace(trailingRe.ReplaceAllString(utterance, ""))
	if name == "" || !letterRe.MatchString(name) || len(name) > maxNameLength {
		return "", false
	}
	return name, true
}

func trimName(raw string) string {
	words := strings.Fields(raw)
	kept := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := nameStopWords[strings.ToLower(w)]; stop || HasBookingKeyword(w) {
			break
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}

// ExtractEmail returns the first address in the utterance, lower-cased.
func ExtractEmail(utterance string) (string, bool) {
	m := emailRe.FindString(utterance)
	if m == "" {
		return "", false
	}
	return strings.ToLower(m), true
}

// ValidEmail reports whether s is exactly one email address.
func ValidEmail(s string) bool {
	return emailRe.FindString(s) == s && s != ""
}

// ExtractPartySize takes the first standalone number (digits first, then
// spoken words) and accepts it only within the party size limits.
func ExtractPartySize(utterance string) (int, bool) {
	n, found := firstNumber(utterance)
	if !found || n < MinPartySize || n > MaxPartySize {
		return 0, false
	}
	return n, true
}

func firstNumber(utterance string) (int, bool) {
	if m := integerRe.FindStringSubmatch(utterance); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	if m := numberWordRe.FindStringSubmatch(utterance); m != nil {
		return numberWords[strings.ToLower(m[1])], true
	}
	return 0, false
}

// ExtractSpecialRequests keeps the utterance verbatim; "none" means no
// requests and is stored as an empty string.
func ExtractSpecialRequests(utterance string) (string, bool) {
	text := strings.TrimSpace(utterance)
	if text == "" {
		return "", false
	}
	if strings.EqualFold(text, "none") {
		return "", true
	}
	return text, true
}
