// ABOUTME: Text normalization, time bucketing, and keyword helpers shared by the learners
// ABOUTME: Keyword overlap follows the same case-insensitive matching used for topic routing
package core

import (
	"sort"
	"strings"
	"time"
	"unicode"
)

// Time-of-day buckets
const (
	BucketMorning   = "morning"
	BucketAfternoon = "afternoon"
	BucketEvening   = "evening"
	BucketNight     = "night"
)

// timeOfDay maps an hour to its bucket
func timeOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return BucketMorning
	case hour >= 12 && hour < 17:
		return BucketAfternoon
	case hour >= 17 && hour < 21:
		return BucketEvening
	default:
		return BucketNight
	}
}

// normalizeText lowercases s, strips punctuation, and collapses whitespace
func normalizeText(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// tokenize splits normalized text into words
func tokenize(s string) []string {
	return strings.Fields(normalizeText(s))
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "for": true, "of": true,
	"and": true, "or": true, "in": true, "on": true, "at": true, "my": true,
	"me": true, "is": true, "it": true, "be": true, "with": true, "from": true,
	"this": true, "that": true, "i": true, "you": true, "we": true, "please": true,
	"ko": true, "ka": true, "ki": true, "ke": true, "se": true, "hai": true,
}

// extractKeywords returns up to max content words ranked by frequency then
// alphabetically
func extractKeywords(texts []string, max int) []string {
	counts := map[string]int{}
	for _, t := range texts {
		for _, w := range tokenize(t) {
			if len(w) < 3 || stopWords[w] {
				continue
			}
			counts[w]++
		}
	}
	words := make([]string, 0, len(counts))
	for w := range counts {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > max {
		words = words[:max]
	}
	return words
}

// keywordOverlap returns the share of query keywords present in target
func keywordOverlap(query, target []string) float64 {
	if len(query) == 0 || len(target) == 0 {
		return 0
	}
	matches := 0
	for _, q := range query {
		for _, k := range target {
			if strings.EqualFold(q, k) {
				matches++
				break // count each query keyword once
			}
		}
	}
	return float64(matches) / float64(len(query))
}

// minuteOfDay returns minutes since local midnight
func minuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// circularMinutes is the distance between two minute-of-day values across midnight
func circularMinutes(a, b int) int {
	d := a - b
	if d < 0 {
		d = -d
	}
	if d > 720 {
		d = 1440 - d
	}
	return d
}

func weekdayKey(wd time.Weekday) string {
	return strings.ToLower(wd.String())
}

// joinWords renders "a", "a and b", "a, b and c"
func joinWords(words []string) string {
	switch len(words) {
	case 0:
		return ""
	case 1:
		return words[0]
	default:
		return strings.Join(words[:len(words)-1], ", ") + " and " + words[len(words)-1]
	}
}
