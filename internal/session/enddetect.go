package session

import (
	"regexp"
	"strings"
)

// endPhrases are the utterances a candidate can use to finish the
// interview on their own initiative.
var endPhrases = []string{
	"end the interview",
	"end this interview",
	"stop the interview",
	"finish the interview",
	"we can end now",
	"i am done",
	"i'm done",
	"that's all from me",
	"let's wrap up",
	"wrap it up",
	"can we end",
}

var nonWordRe = regexp.MustCompile(`[^a-z0-9' ]+`)

// normalizeUtterance lowercases and strips punctuation so spoken
// transcripts with trailing question marks or commas still match.
func normalizeUtterance(s string) string {
	s = strings.ToLower(s)
	s = nonWordRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// DetectEndPhrase reports whether the transcript contains a request to
// finish the interview. A phrase matches when it appears verbatim in the
// normalized text, or when at least 80% of its tokens do — tolerating
// transcription slips like "can we end the the interview now".
func DetectEndPhrase(transcript string) bool {
	text := normalizeUtterance(transcript)
	if text == "" {
		return false
	}
	words := map[string]bool{}
	for _, w := range strings.Fields(text) {
		words[w] = true
	}

	for _, phrase := range endPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
		tokens := strings.Fields(phrase)
		hits := 0
		for _, tok := range tokens {
			if words[nonWordRe.ReplaceAllString(tok, "")] || words[tok] {
				hits++
			}
		}
		if len(tokens) > 0 && float64(hits)/float64(len(tokens)) >= 0.8 {
			return true
		}
	}
	return false
}
