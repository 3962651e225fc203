package satellite

import (
	"github.com/hearthd/hearth/domain/entities"
)

// MatchAnswer matches recognized speech against a caller-supplied set of
// answer candidates and extracts named slots.
//
// Matching is deterministic: candidates are tried in order, their sentence
// templates in order, and anchor positions left to right; the first full
// template match wins. A template may anchor anywhere in the utterance, so
// surrounding filler words do not prevent a match. No fuzzy scoring is
// involved.
func MatchAnswer(sentence string, candidates []entities.AnswerCandidate) entities.Answer {
	tokens := tokenize(sentence)

	for _, candidate := range candidates {
		for _, template := range candidate.Sentences {
			seq, err := parseTemplate(template)
			if err != nil {
				// Malformed templates never match.
				continue
			}

			slots, ok := matchAnywhere(seq, tokens)
			if !ok {
				continue
			}

			if candidate.ID == "" {
				// A match without an id to report is a programming
				// error, not a recoverable condition.
				panic("satellite: matched answer candidate has no id")
			}

			return entities.Answer{
				ID:       candidate.ID,
				Sentence: sentence,
				Slots:    slots,
			}
		}
	}

	return entities.Answer{Sentence: sentence, Slots: map[string]string{}}
}

// matchAnywhere tries the template at every anchor position and returns the
// slots of the first successful match
func matchAnywhere(seq templateSequence, tokens []token) (map[string]string, bool) {
	for anchor := 0; anchor <= len(tokens); anchor++ {
		states := seq.match(tokens, matchState{pos: anchor, slots: map[string]string{}})
		if len(states) > 0 {
			return states[0].slots, true
		}
	}
	return nil, false
}
