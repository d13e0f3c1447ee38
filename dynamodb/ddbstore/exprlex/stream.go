package exprlex

// Stream is a cursor over a token slice for recursive descent parsers.
type Stream struct {
	toks []Token
	pos  int
}

func NewStream(toks []Token) *Stream {
	if len(toks) == 0 || toks[len(toks)-1].Kind != EOF {
		toks = append(toks, Token{Kind: EOF})
	}
	return &Stream{toks: toks}
}

func (s *Stream) Peek() Token {
	return s.PeekAt(0)
}

// PeekAt looks n tokens ahead without consuming. Past the end it returns EOF.
func (s *Stream) PeekAt(n int) Token {
	i := s.pos + n
	if i >= len(s.toks) {
		return s.toks[len(s.toks)-1]
	}
	return s.toks[i]
}

func (s *Stream) Next() Token {
	t := s.Peek()
	if s.pos < len(s.toks)-1 {
		s.pos++
	}
	return t
}

func (s *Stream) AtEnd() bool {
	return s.Peek().Kind == EOF
}
