package roster

import (
	"errors"
	"fmt"
	"strings"
)

var ErrValidation = errors.New("invalid roster input")

// Participant is one member of the session, fixed at setup time.
type Participant struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation"`
}

// Roster is the ordered participant list with a turn cursor.
// SpeakerIndex is -1 before the session starts and only ever moves
// forward; an index past the end means introductions are complete.
type Roster struct {
	Participants []Participant `json:"participants"`
	SpeakerIndex int           `json:"speaker_index"`
}

// New validates participants and returns a roster with the cursor on
// the first speaker.
func New(participants []Participant) (*Roster, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("%w: participant list is empty", ErrValidation)
	}
	for i, p := range participants {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("%w: participant %d has empty name", ErrValidation, i)
		}
		if strings.TrimSpace(p.Affiliation) == "" {
			return nil, fmt.Errorf("%w: participant %d has empty affiliation", ErrValidation, i)
		}
	}
	return &Roster{Participants: participants, SpeakerIndex: 0}, nil
}

// CurrentSpeaker returns the participant whose turn it is. ok is false
// when the session has not started or the roster is exhausted.
func (r *Roster) CurrentSpeaker() (Participant, bool) {
	if r.SpeakerIndex < 0 || r.SpeakerIndex >= len(r.Participants) {
		return Participant{}, false
	}
	return r.Participants[r.SpeakerIndex], true
}

// Advance moves the cursor forward by one. The index is deliberately
// not clamped; Exhausted reports when callers should stop issuing
// per-speaker directives.
func (r *Roster) Advance() {
	r.SpeakerIndex++
}

// Exhausted reports whether every participant has had their turn.
func (r *Roster) Exhausted() bool {
	return r.SpeakerIndex >= len(r.Participants)
}

// Len returns the participant count.
func (r *Roster) Len() int {
	return len(r.Participants)
}
