package insights

import (
	"math"
	"strings"
	"unicode"
)

var fillerWords = map[string]bool{
	"um": true, "uh": true, "like": true, "basically": true, "actually": true, "literally": true,
}

var fillerPhrases = [][2]string{
	{"you", "know"}, {"sort", "of"}, {"kind", "of"}, {"i", "mean"},
}

// Metrics are computed locally from a speaker's transcript.
type Metrics struct {
	WordCount       int     `json:"word_count"`
	FillerWordCount int     `json:"filler_words_count"`
	WordsPerMinute  float64 `json:"speaking_pace"`
}

// ComputeMetrics counts words and filler words in text and derives the
// speaking pace from speakingSeconds. Fillers match whole words or whole
// two-word phrases, case-insensitively.
func ComputeMetrics(text string, speakingSeconds float64) Metrics {
	words := tokenize(text)
	m := Metrics{WordCount: len(words)}
	for i, w := range words {
		if fillerWords[w] {
			m.FillerWordCount++
		}
		if i+1 < len(words) {
			for _, p := range fillerPhrases {
				if w == p[0] && words[i+1] == p[1] {
					m.FillerWordCount++
				}
			}
		}
	}
	if speakingSeconds > 0 {
		m.WordsPerMinute = math.Round(float64(len(words))/(speakingSeconds/60)*10) / 10
	}
	return m
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}
