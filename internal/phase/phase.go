package phase

import "strings"

// Phase is the current facilitation stage of a session.
type Phase string

const (
	IntroStart      Phase = "intro_start"
	IntroReacting   Phase = "intro_reacting"
	IntroNextPerson Phase = "intro_next_person"
	IcebreakStart   Phase = "icebreak_start"
	RandomTheme     Phase = "random_theme"
	DeepDive        Phase = "deep_dive"
)

// Initial is the phase every session starts in.
const Initial = IntroStart

// ClosingKeywords are the phrases that mark the end of a participant's
// self-introduction. Matching is plain substring containment.
var ClosingKeywords = []string{
	"以上です",
	"以上になります",
	"終わりです",
	"よろしくお願いします",
	"ありがとうございました",
	"that's all",
	"finished",
	"thank you",
	"please",
}

// Valid reports whether p is one of the known phases.
func Valid(p Phase) bool {
	switch p {
	case IntroStart, IntroReacting, IntroNextPerson, IcebreakStart, RandomTheme, DeepDive:
		return true
	}
	return false
}

// Next returns the phase that follows current given the latest user
// utterance. Only intro_reacting looks at the utterance; every other
// phase advances one step along the facilitation script, with deep_dive
// as the fixed point.
func Next(current Phase, utterance string) Phase {
	switch current {
	case IntroStart:
		return IntroReacting
	case IntroReacting:
		if containsClosing(utterance) {
			return IntroNextPerson
		}
		return IntroReacting
	case IntroNextPerson:
		return IcebreakStart
	case IcebreakStart:
		return RandomTheme
	case RandomTheme:
		return DeepDive
	case DeepDive:
		return DeepDive
	default:
		return current
	}
}

func containsClosing(utterance string) bool {
	for _, kw := range ClosingKeywords {
		if strings.Contains(utterance, kw) {
			return true
		}
	}
	return false
}
