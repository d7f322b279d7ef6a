package reasoning

import "strings"

const (
	DefaultOpenTag  = "<think>"
	DefaultCloseTag = "</think>"
)

// State is the scanning mode of a Parser.
type State int

const (
	StateNormal State = iota
	StateInReasoning
	StatePartialTag
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateInReasoning:
		return "in_reasoning"
	case StatePartialTag:
		return "partial_tag"
	default:
		return "unknown"
	}
}

// Delta is the output of a single Parse call. A nil field means no content
// of that kind was produced, which is not the same as an empty string.
type Delta struct {
	Reasoning *string
	Visible   *string
}

type Option func(*Parser)

// WithTags overrides the reasoning marker literals.
func WithTags(open, close string) Option {
	return func(p *Parser) {
		p.openTag = open
		p.closeTag = close
	}
}

// Parser splits a token stream into reasoning and visible content. Markers
// may be split across chunks in any way. A Parser is not safe for concurrent
// use; keep one per logical stream.
type Parser struct {
	openTag  string
	closeTag string

	state State
	// resume is the state that was active before entering StatePartialTag.
	resume State
	buffer string
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		openTag:  DefaultOpenTag,
		closeTag: DefaultCloseTag,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Parser) State() State {
	return p.state
}

// Buffered returns the text held back and not yet emitted.
func (p *Parser) Buffered() string {
	return p.buffer
}

// Parse appends chunk to the buffer and emits everything that can be
// classified. A tail that could still turn into a marker is held back until
// a later call resolves it.
func (p *Parser) Parse(chunk string) Delta {
	if chunk == "" {
		return Delta{}
	}
	p.buffer += chunk

	var out emitter
	for p.buffer != "" {
		mode := p.state
		if mode == StatePartialTag {
			mode = p.resume
		}
		tag := p.openTag
		if mode == StateInReasoning {
			tag = p.closeTag
		}

		if idx := strings.Index(p.buffer, tag); idx >= 0 {
			out.emit(mode, p.buffer[:idx])
			p.buffer = p.buffer[idx+len(tag):]
			p.state = flip(mode)
			continue
		}

		if n := partialSuffix(p.buffer, tag); n > 0 {
			cut := len(p.buffer) - n
			out.emit(mode, p.buffer[:cut])
			p.buffer = p.buffer[cut:]
			p.resume = mode
			p.state = StatePartialTag
			break
		}

		out.emit(mode, p.buffer)
		p.buffer = ""
		p.state = mode
	}
	return out.delta()
}

// Reset returns the parser to StateNormal and discards buffered text.
func (p *Parser) Reset() {
	p.state = StateNormal
	p.resume = StateNormal
	p.buffer = ""
}

func flip(s State) State {
	if s == StateInReasoning {
		return StateNormal
	}
	return StateInReasoning
}

// partialSuffix returns the length of the longest non-empty suffix of s that
// is a strict prefix of tag, or 0.
func partialSuffix(s, tag string) int {
	n := len(tag) - 1
	if len(s) < n {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasPrefix(tag, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}

type emitter struct {
	reasoning strings.Builder
	visible   strings.Builder
}

func (e *emitter) emit(mode State, text string) {
	if text == "" {
		return
	}
	if mode == StateInReasoning {
		e.reasoning.WriteString(text)
	} else {
		e.visible.WriteString(text)
	}
}

func (e *emitter) delta() Delta {
	var d Delta
	if e.reasoning.Len() > 0 {
		s := e.reasoning.String()
		d.Reasoning = &s
	}
	if e.visible.Len() > 0 {
		s := e.visible.String()
		d.Visible = &s
	}
	return d
}
