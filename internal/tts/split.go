package tts

import "strings"

// sentence-terminal punctuation, covering Japanese and ASCII.
const terminators = "。．！？!?.\n"

// SplitSentences cuts reply text into playback units on sentence-
// terminal punctuation and newlines. Units are trimmed and empty units
// are dropped; the terminator itself is not part of the unit.
func SplitSentences(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		unit := strings.TrimSpace(b.String())
		if unit != "" {
			out = append(out, unit)
		}
		b.Reset()
	}
	for _, r := range text {
		if strings.ContainsRune(terminators, r) {
			flush()
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return out
}
