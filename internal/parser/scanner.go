package parser

import (
	"fmt"
	"strings"

	"github.com/cznic/mathutil"
)

// TokenKind classifies a token. Keywords and punctuation carry their text
// and are compared by it.
type TokenKind int

const (
	EOF TokenKind = iota
	IDENT
	INT
	FLOAT
	STRING
	CHAR
	KEYWORD
	PUNCT
)

func (t TokenKind) String() string {
	switch t {
	case EOF:
		return "EOF"
	case IDENT:
		return "IDENT"
	case INT:
		return "INT"
	case FLOAT:
		return "FLOAT"
	case STRING:
		return "STRING"
	case CHAR:
		return "CHAR"
	case KEYWORD:
		return "KEYWORD"
	case PUNCT:
		return "PUNCT"
	}
	return "UNKNOWN"
}

var keywords = map[string]bool{
	"fn": true, "struct": true, "union": true, "enum": true, "interface": true,
	"type": true, "const": true, "pub": true, "mut": true, "module": true,
	"import": true, "as": true, "return": true, "if": true, "else": true,
	"for": true, "in": true, "is": true, "match": true, "or": true,
	"none": true, "true": true, "false": true, "break": true,
	"continue": true, "goto": true, "defer": true, "__global": true,
	"shared": true, "unsafe": true, "go": true, "spawn": true,
}

// punctuation ordered longest first so the scanner takes the longest match.
var punctuation = []string{
	"...", "<<=", ">>=",
	"..", ":=", "==", "!=", "<=", ">=", "&&", "||", "<<", ">>",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "++", "--",
	"#[", "<-", "=>",
	"+", "-", "*", "/", "%", "&", "|", "^", "!", "~", "<", ">", "=",
	"(", ")", "[", "]", "{", "}", ",", ".", ":", ";", "?", "@", "$", "#",
}

// Token is one lexical unit. Offsets are byte positions into the source.
type Token struct {
	Kind          TokenKind
	Text          string
	Offset        int
	End           int
	Line          int
	Col           int
	SpaceBefore   bool
	NewlineBefore bool
}

// Is reports whether the token is a keyword or punctuation with text s.
func (t Token) Is(s string) bool {
	return (t.Kind == KEYWORD || t.Kind == PUNCT) && t.Text == s
}

func (t Token) String() string {
	if t.Kind == EOF {
		return "EOF"
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}

// Scanner turns V source into tokens.
type Scanner struct {
	source []byte
	start  int
	end    int
	line   int
	col    int

	startLine int
	startCol  int
}

// NewScanner creates a scanner over source.
func NewScanner(source []byte) *Scanner {
	return &Scanner{source: source}
}

// ScanTokens scans all of source. Unknown characters are reported and
// skipped; the returned slice always ends with an EOF token.
func ScanTokens(source []byte) ([]Token, []error) {
	sc := NewScanner(source)
	var tokens []Token
	var errs []error
	for {
		tok, err := sc.Scan()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return tokens, errs
}

// Scan returns the next token.
func (s *Scanner) Scan() (Token, error) {
	space, newline := s.skipWhitespace()
	s.start = s.end
	s.startLine, s.startCol = s.line, s.col

	t, err := s.scan()
	t.SpaceBefore = space || newline
	t.NewlineBefore = newline
	return t, err
}

func (s *Scanner) scan() (Token, error) {
	c := s.next()
	switch {
	case c == 0 && s.end >= len(s.source):
		return s.token(EOF), nil
	case c == '\'' || c == '"':
		return s.str(c)
	case c == '`':
		return s.char()
	case (c == 'r' || c == 'c') && (s.peek(1) == '\'' || s.peek(1) == '"'):
		s.advance()
		return s.str(s.next())
	case isIdentStart(c):
		return s.ident(), nil
	case isDigit(c):
		return s.number(), nil
	case c == '!' && s.wordAt(1, "in"), c == '!' && s.wordAt(1, "is"):
		s.advance()
		s.advance()
		s.advance()
		return s.token(PUNCT), nil
	}
	for _, p := range punctuation {
		if s.hasPrefix(p) {
			for range len(p) {
				s.advance()
			}
			return s.token(PUNCT), nil
		}
	}
	s.advance()
	return Token{}, &Error{Pos: pointOf(s.startLine, s.startCol), Msg: fmt.Sprintf("unexpected character %q", c)}
}

func (s *Scanner) ident() Token {
	for isIdentStart(s.next()) || isDigit(s.next()) {
		s.advance()
	}
	t := s.token(IDENT)
	if keywords[t.Text] {
		t.Kind = KEYWORD
	}
	return t
}

func (s *Scanner) number() Token {
	if s.next() == '0' && (s.peek(1) == 'x' || s.peek(1) == 'b' || s.peek(1) == 'o') {
		s.advance()
		s.advance()
		for isHexDigit(s.next()) || s.next() == '_' {
			s.advance()
		}
		return s.token(INT)
	}
	for isDigit(s.next()) || s.next() == '_' {
		s.advance()
	}
	kind := INT
	// "1..5" is a range, not a float
	if s.next() == '.' && s.peek(1) != '.' && isDigit(s.peek(1)) {
		kind = FLOAT
		s.advance()
		for isDigit(s.next()) || s.next() == '_' {
			s.advance()
		}
	}
	if s.next() == 'e' || s.next() == 'E' {
		kind = FLOAT
		s.advance()
		if s.next() == '-' || s.next() == '+' {
			s.advance()
		}
		for isDigit(s.next()) {
			s.advance()
		}
	}
	return s.token(kind)
}

func (s *Scanner) str(quote byte) (Token, error) {
	s.advance()
	for {
		c := s.next()
		if s.end >= len(s.source) {
			return s.token(STRING), &Error{Pos: pointOf(s.startLine, s.startCol), Msg: "unterminated string literal"}
		}
		s.advance()
		if c == '\\' {
			s.advance()
			continue
		}
		if c == quote {
			return s.token(STRING), nil
		}
	}
}

func (s *Scanner) char() (Token, error) {
	s.advance()
	for {
		c := s.next()
		if s.end >= len(s.source) || c == '\n' {
			return s.token(CHAR), &Error{Pos: pointOf(s.startLine, s.startCol), Msg: "unterminated rune literal"}
		}
		s.advance()
		if c == '\\' {
			s.advance()
			continue
		}
		if c == '`' {
			return s.token(CHAR), nil
		}
	}
}

// skipWhitespace skips blanks and comments, reporting whether any space or
// newline was crossed.
func (s *Scanner) skipWhitespace() (space, newline bool) {
	for {
		switch c := s.next(); {
		case c == ' ' || c == '\t' || c == '\r':
			space = true
			s.advance()
		case c == '\n':
			newline = true
			s.advance()
		case c == '/' && s.peek(1) == '/':
			for s.end < len(s.source) && s.next() != '\n' {
				s.advance()
			}
		case c == '/' && s.peek(1) == '*':
			s.advance()
			s.advance()
			for s.end < len(s.source) && !(s.next() == '*' && s.peek(1) == '/') {
				if s.next() == '\n' {
					newline = true
				}
				s.advance()
			}
			s.advance()
			s.advance()
			space = true
		default:
			return space, newline
		}
	}
}

func (s *Scanner) wordAt(ahead int, word string) bool {
	if !strings.HasPrefix(string(s.source[mathutil.Min(s.end+ahead, len(s.source)):]), word) {
		return false
	}
	c := s.peek(ahead + len(word))
	return !isIdentStart(c) && !isDigit(c)
}

func (s *Scanner) hasPrefix(p string) bool {
	rest := s.source[mathutil.Min(s.end, len(s.source)):]
	return len(rest) >= len(p) && string(rest[:len(p)]) == p
}

func (s *Scanner) next() byte {
	return s.peek(0)
}

func (s *Scanner) peek(ahead int) byte {
	if s.end+ahead >= len(s.source) {
		return 0
	}
	return s.source[s.end+ahead]
}

func (s *Scanner) advance() byte {
	c := s.next()
	if s.end < len(s.source) {
		s.end++
		if c == '\n' {
			s.line++
			s.col = 0
		} else {
			s.col++
		}
	}
	return c
}

func (s *Scanner) token(kind TokenKind) Token {
	end := mathutil.Clamp(s.end, 0, len(s.source))
	start := mathutil.Clamp(s.start, 0, end)
	t := Token{
		Kind:   kind,
		Text:   string(s.source[start:end]),
		Offset: start,
		End:    end,
		Line:   s.startLine,
		Col:    s.startCol,
	}
	s.start = end
	return t
}

func isIdentStart(c byte) bool {
	return ('A' <= c && c <= 'Z') || ('a' <= c && c <= 'z') || c == '_'
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
