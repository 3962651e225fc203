package satellite

import (
	"fmt"
	"strings"
	"unicode"
)

// Sentence templates use a small grammar: plain words match literally,
// "[...]" marks an optional part, "(a|b)" marks alternatives, and "{name}"
// is an open-vocabulary wildcard slot capturing one or more words. No
// predefined value lists exist, so every bracketed reference is a wildcard.

type templateExpr interface {
	// match returns every way the expression can consume tokens starting
	// at the given state, in preference order
	match(tokens []token, state matchState) []matchState
}

type token struct {
	normalized string
	original   string
}

type matchState struct {
	pos   int
	slots map[string]string
}

func (s matchState) withSlot(name, value string) matchState {
	slots := make(map[string]string, len(s.slots)+1)
	for k, v := range s.slots {
		slots[k] = v
	}
	slots[name] = value
	return matchState{pos: s.pos, slots: slots}
}

// templateWord matches one literal word
type templateWord string

func (w templateWord) match(tokens []token, state matchState) []matchState {
	if state.pos < len(tokens) && tokens[state.pos].normalized == string(w) {
		return []matchState{{pos: state.pos + 1, slots: state.slots}}
	}
	return nil
}

// templateWildcard matches one or more words, captured under the slot name.
// Longer captures are preferred; backtracking lets trailing literals claim
// words back.
type templateWildcard string

func (wc templateWildcard) match(tokens []token, state matchState) []matchState {
	var states []matchState
	for end := len(tokens); end > state.pos; end-- {
		words := make([]string, 0, end-state.pos)
		for _, t := range tokens[state.pos:end] {
			words = append(words, t.original)
		}
		next := matchState{pos: state.pos, slots: state.slots}.withSlot(string(wc), strings.Join(words, " "))
		next.pos = end
		states = append(states, next)
	}
	return states
}

// templateSequence matches its items in order
type templateSequence struct {
	items []templateExpr
}

func (seq templateSequence) match(tokens []token, state matchState) []matchState {
	states := []matchState{state}
	for _, item := range seq.items {
		var next []matchState
		for _, st := range states {
			next = append(next, item.match(tokens, st)...)
		}
		if len(next) == 0 {
			return nil
		}
		states = next
	}
	return states
}

// templateAlternatives matches exactly one of its options, tried in order.
// An optional part is alternatives whose last option is empty, so presence
// is preferred over absence.
type templateAlternatives struct {
	options []templateSequence
}

func (alt templateAlternatives) match(tokens []token, state matchState) []matchState {
	var states []matchState
	for _, option := range alt.options {
		states = append(states, option.match(tokens, state)...)
	}
	return states
}

// parseTemplate parses one sentence template into an expression tree
func parseTemplate(template string) (templateSequence, error) {
	parser := &templateParser{input: []rune(template)}
	seq, err := parser.parseSequence("")
	if err != nil {
		return templateSequence{}, err
	}
	if parser.pos < len(parser.input) {
		return templateSequence{}, fmt.Errorf("unexpected %q at offset %d in template %q",
			parser.input[parser.pos], parser.pos, template)
	}
	return seq, nil
}

type templateParser struct {
	input []rune
	pos   int
}

// parseSequence parses expressions until one of the terminator runes or end
// of input
func (p *templateParser) parseSequence(terminators string) (templateSequence, error) {
	var items []templateExpr

	for p.pos < len(p.input) {
		r := p.input[p.pos]

		if strings.ContainsRune(terminators, r) {
			break
		}

		switch {
		case unicode.IsSpace(r):
			p.pos++

		case r == '[':
			p.pos++
			inner, err := p.parseAlternatives("]")
			if err != nil {
				return templateSequence{}, err
			}
			if err := p.expect(']'); err != nil {
				return templateSequence{}, err
			}
			// Optional: the inner options plus an empty option.
			inner.options = append(inner.options, templateSequence{})
			items = append(items, inner)

		case r == '(':
			p.pos++
			inner, err := p.parseAlternatives(")")
			if err != nil {
				return templateSequence{}, err
			}
			if err := p.expect(')'); err != nil {
				return templateSequence{}, err
			}
			items = append(items, inner)

		case r == '{':
			p.pos++
			name := p.readUntil('}')
			if err := p.expect('}'); err != nil {
				return templateSequence{}, err
			}
			name = strings.TrimSpace(name)
			if name == "" {
				return templateSequence{}, fmt.Errorf("empty wildcard name at offset %d", p.pos)
			}
			items = append(items, templateWildcard(name))

		case r == ']' || r == ')' || r == '}':
			return templateSequence{}, fmt.Errorf("unbalanced %q at offset %d", r, p.pos)

		default:
			word := p.readWord(terminators)
			if normalized := normalizeWord(word); normalized != "" {
				items = append(items, templateWord(normalized))
			}
		}
	}

	return templateSequence{items: items}, nil
}

// parseAlternatives parses "|"-separated sequences up to the closing rune
func (p *templateParser) parseAlternatives(closing string) (templateAlternatives, error) {
	var alt templateAlternatives
	for {
		seq, err := p.parseSequence("|" + closing)
		if err != nil {
			return templateAlternatives{}, err
		}
		alt.options = append(alt.options, seq)

		if p.pos < len(p.input) && p.input[p.pos] == '|' {
			p.pos++
			continue
		}
		return alt, nil
	}
}

func (p *templateParser) expect(r rune) error {
	if p.pos >= len(p.input) || p.input[p.pos] != r {
		return fmt.Errorf("expected %q at offset %d", r, p.pos)
	}
	p.pos++
	return nil
}

func (p *templateParser) readUntil(r rune) string {
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != r {
		p.pos++
	}
	return string(p.input[start:p.pos])
}

func (p *templateParser) readWord(terminators string) string {
	start := p.pos
	for p.pos < len(p.input) {
		r := p.input[p.pos]
		if unicode.IsSpace(r) || strings.ContainsRune("[](){}|"+terminators, r) {
			break
		}
		p.pos++
	}
	return string(p.input[start:p.pos])
}

// tokenize splits an utterance into tokens, keeping the original casing for
// slot values alongside the normalized form used for matching
func tokenize(text string) []token {
	var tokens []token
	for _, field := range strings.Fields(text) {
		original := strings.TrimFunc(field, isTokenPunct)
		if original == "" {
			continue
		}
		tokens = append(tokens, token{
			normalized: strings.ToLower(original),
			original:   original,
		})
	}
	return tokens
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimFunc(word, isTokenPunct))
}

func isTokenPunct(r rune) bool {
	return unicode.IsPunct(r) && r != '\'' && r != '-'
}
