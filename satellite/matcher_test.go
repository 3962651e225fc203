package satellite

import (
	"testing"

	"github.com/hearthd/hearth/domain/entities"
)

func TestMatchAnswerOptionalWords(t *testing.T) {
	candidates := []entities.AnswerCandidate{
		{ID: "rock", Sentences: []string{"[some] rock [please]"}},
		{ID: "jazz", Sentences: []string{"[some] jazz [please]"}},
	}

	tests := []struct {
		sentence string
		wantID   string
	}{
		{"rock", "rock"},
		{"Some Rock, please.", "rock"},
		{"please play rock", "rock"},
		{"jazz", "jazz"},
		{"some jazz please", "jazz"},
	}

	for _, tt := range tests {
		t.Run(tt.sentence, func(t *testing.T) {
			answer := MatchAnswer(tt.sentence, candidates)
			if answer.ID != tt.wantID {
				t.Errorf("MatchAnswer(%q).ID = %q, want %q", tt.sentence, answer.ID, tt.wantID)
			}
			if answer.Sentence != tt.sentence {
				t.Errorf("Expected raw sentence to be preserved, got %q", answer.Sentence)
			}
		})
	}
}

func TestMatchAnswerCandidateOrder(t *testing.T) {
	// Both candidates match; the first one in order wins.
	candidates := []entities.AnswerCandidate{
		{ID: "first", Sentences: []string{"play music"}},
		{ID: "second", Sentences: []string{"play {anything}"}},
	}

	answer := MatchAnswer("play music", candidates)
	if answer.ID != "first" {
		t.Errorf("Expected first matching candidate, got %q", answer.ID)
	}
}

func TestMatchAnswerSlots(t *testing.T) {
	candidates := []entities.AnswerCandidate{
		{ID: "play", Sentences: []string{"play {artist}"}},
	}

	answer := MatchAnswer("please play Pink Floyd", candidates)
	if answer.ID != "play" {
		t.Fatalf("Expected candidate play, got %q", answer.ID)
	}
	if answer.Slots["artist"] != "Pink Floyd" {
		t.Errorf("Expected artist slot 'Pink Floyd', got %q", answer.Slots["artist"])
	}
}

func TestMatchAnswerAlternatives(t *testing.T) {
	candidates := []entities.AnswerCandidate{
		{ID: "yes", Sentences: []string{"(yes|yeah|sure)"}},
		{ID: "no", Sentences: []string{"(no|nope)"}},
	}

	if answer := MatchAnswer("yeah", candidates); answer.ID != "yes" {
		t.Errorf("Expected yes, got %q", answer.ID)
	}
	if answer := MatchAnswer("Nope!", candidates); answer.ID != "no" {
		t.Errorf("Expected no, got %q", answer.ID)
	}
}

func TestMatchAnswerNoMatch(t *testing.T) {
	candidates := []entities.AnswerCandidate{
		{ID: "rock", Sentences: []string{"rock"}},
	}

	answer := MatchAnswer("classical", candidates)
	if answer.ID != "" {
		t.Errorf("Expected no candidate to match, got %q", answer.ID)
	}
	if answer.Sentence != "classical" {
		t.Errorf("Expected raw sentence to be preserved, got %q", answer.Sentence)
	}
	if answer.Slots == nil {
		t.Error("Expected empty slots map, got nil")
	}
}

func TestMatchAnswerMalformedTemplate(t *testing.T) {
	candidates := []entities.AnswerCandidate{
		{ID: "broken", Sentences: []string{"[unclosed"}},
		{ID: "ok", Sentences: []string{"hello"}},
	}

	// The malformed template never matches; later candidates still do.
	if answer := MatchAnswer("hello", candidates); answer.ID != "ok" {
		t.Errorf("Expected ok, got %q", answer.ID)
	}
}

func TestMatchAnswerDeterministic(t *testing.T) {
	candidates := []entities.AnswerCandidate{
		{ID: "play", Sentences: []string{"play {genre} [music]"}},
	}

	first := MatchAnswer("play smooth jazz music", candidates)
	for i := 0; i < 10; i++ {
		again := MatchAnswer("play smooth jazz music", candidates)
		if again.ID != first.ID || again.Slots["genre"] != first.Slots["genre"] {
			t.Fatalf("Expected deterministic match, got %+v then %+v", first, again)
		}
	}
	// The wildcard prefers the longest capture.
	if first.Slots["genre"] != "smooth jazz music" {
		t.Errorf("Expected genre slot 'smooth jazz music', got %q", first.Slots["genre"])
	}
}
