package speech

import (
	"strings"
	"time"
	"unicode"
)

// Speaking rate used for duration estimates, in words per minute.
const baseWordsPerMinute = 150.0

// abbreviations that end with a period without ending a sentence.
// Story prose mostly needs the honorifics.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"st": true, "jr": true, "sr": true, "etc": true, "vs": true,
	"e.g": true, "i.e": true,
}

// SplitSentences breaks narration text into sentences. Periods inside
// abbreviations, decimal numbers, and ellipses do not split.
func SplitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	last := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if !isSentenceEnd(runes, i) {
			continue
		}

		// Swallow trailing punctuation and closing quotes.
		end := i + 1
		for end < len(runes) && (runes[end] == '.' || runes[end] == '!' || runes[end] == '?') {
			end++
		}
		for end < len(runes) && (runes[end] == '"' || runes[end] == '\'' || runes[end] == ')') {
			end++
		}

		if s := strings.TrimSpace(string(runes[last:end])); s != "" {
			sentences = append(sentences, s)
		}
		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}
		last = end
		i = end - 1
	}

	if last < len(runes) {
		if s := strings.TrimSpace(string(runes[last:])); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// isSentenceEnd reports whether the punctuation at pos closes a
// sentence rather than an abbreviation, decimal, or ellipsis.
func isSentenceEnd(runes []rune, pos int) bool {
	punct := runes[pos]

	if punct == '.' {
		// Ellipsis.
		if pos+2 < len(runes) && runes[pos+1] == '.' && runes[pos+2] == '.' {
			return false
		}
		// Decimal number.
		if pos > 0 && pos+1 < len(runes) &&
			unicode.IsDigit(runes[pos-1]) && unicode.IsDigit(runes[pos+1]) {
			return false
		}
		// Abbreviation before the period.
		start := pos - 1
		for start >= 0 && !unicode.IsSpace(runes[start]) {
			start--
		}
		word := strings.ToLower(string(runes[start+1 : pos]))
		if abbreviations[word] || strings.Count(word, ".") > 0 {
			return false
		}
	}

	// End of text always closes.
	next := pos + 1
	for next < len(runes) && (runes[next] == '.' || runes[next] == '!' || runes[next] == '?' ||
		runes[next] == '"' || runes[next] == '\'' || runes[next] == ')') {
		next++
	}
	if next >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[next]) {
		return false
	}
	// A lowercase continuation keeps dialogue together, for any
	// closer: `"Hold on tight!" said the bunny.` is one sentence.
	for next < len(runes) && unicode.IsSpace(runes[next]) {
		next++
	}
	return next >= len(runes) || unicode.IsUpper(runes[next]) || unicode.IsDigit(runes[next]) ||
		runes[next] == '"' || runes[next] == '\''
}

// EstimateDuration predicts how long text takes to speak at the given
// speed multiplier.
func EstimateDuration(text string, speed float64) time.Duration {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	speed = ClampSpeed(speed)
	seconds := float64(words) * 60.0 / (baseWordsPerMinute * speed)
	return time.Duration(seconds * float64(time.Second))
}
