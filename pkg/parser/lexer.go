package parser

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/leapstack-labs/leapunits/pkg/token"
)

// Lexer tokenizes unit expressions.
type Lexer struct {
	input   string
	pos     int  // byte offset of ch
	readPos int  // byte offset after ch
	ch      rune // current rune, 0 at end of input
	col     int  // 1-based column of ch, counted in runes
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar advances to the next rune.
func (l *Lexer) readChar() {
	l.pos = l.readPos
	if l.readPos >= len(l.input) {
		l.ch = 0
	} else {
		r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
		l.ch = r
		l.readPos += size
	}
	l.col++
}

// peekChar returns the next rune without advancing.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// currentPos returns the current position. Expressions are single-line.
func (l *Lexer) currentPos() token.Position {
	return token.Position{Line: 1, Column: l.col, Offset: l.pos}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() token.Token {
	for unicode.IsSpace(l.ch) {
		l.readChar()
	}

	pos := l.currentPos()

	switch {
	case l.ch == 0 && l.pos >= len(l.input):
		return token.Token{Type: token.EOF, Pos: pos}
	case l.ch == '+':
		return l.single(token.PLUS, pos)
	case l.ch == '-':
		return l.single(token.MINUS, pos)
	case l.ch == '/':
		return l.single(token.SLASH, pos)
	case l.ch == '^':
		return l.single(token.POW, pos)
	case l.ch == '(':
		return l.single(token.LPAREN, pos)
	case l.ch == ')':
		return l.single(token.RPAREN, pos)
	case l.ch == '*':
		if l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			return token.Token{Type: token.POW, Literal: "**", Pos: pos}
		}
		return l.single(token.STAR, pos)
	case l.ch == '[':
		return l.readDimension(pos)
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		return l.readNumber(pos)
	case isNameStart(l.ch):
		return l.readName(pos)
	}

	tok := token.Token{Type: token.ILLEGAL, Literal: string(l.ch), Pos: pos}
	l.readChar()
	return tok
}

// Tokenize returns every token up to and including EOF.
func (l *Lexer) Tokenize() []token.Token {
	var out []token.Token
	for {
		tok := l.NextToken()
		out = append(out, tok)
		if tok.Type == token.EOF {
			return out
		}
	}
}

func (l *Lexer) single(typ token.TokenType, pos token.Position) token.Token {
	tok := token.Token{Type: typ, Literal: string(l.ch), Pos: pos}
	l.readChar()
	return tok
}

func (l *Lexer) readNumber(pos token.Position) token.Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	// Exponent only when digits follow, so "2em" stays 2 * em.
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		rest := l.input[l.readPos:]
		if isDigit(next) || ((next == '+' || next == '-') && len(rest) > 1 && isDigit(rune(rest[1]))) {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return token.Token{Type: token.NUMBER, Literal: l.input[start:l.pos], Pos: pos}
}

func (l *Lexer) readName(pos token.Position) token.Token {
	start := l.pos
	for isNameChar(l.ch) {
		l.readChar()
	}
	return token.Token{Type: token.NAME, Literal: l.input[start:l.pos], Pos: pos}
}

// readDimension reads a bracketed dimension name such as "[length]" or "[]".
func (l *Lexer) readDimension(pos token.Position) token.Token {
	start := l.pos
	l.readChar()
	for l.ch != ']' {
		if l.ch == 0 && l.pos >= len(l.input) {
			return token.Token{Type: token.ILLEGAL, Literal: l.input[start:], Pos: pos}
		}
		l.readChar()
	}
	l.readChar()
	lit := l.input[start:l.pos]
	if strings.ContainsAny(lit[1:len(lit)-1], " []") {
		return token.Token{Type: token.ILLEGAL, Literal: lit, Pos: pos}
	}
	return token.Token{Type: token.NAME, Literal: lit, Pos: pos}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isNameStart(r rune) bool {
	if r == '_' || unicode.IsLetter(r) {
		return true
	}
	// Symbols such as °, µ, Ω, Δ or ′ are valid inside unit names.
	return r > unicode.MaxASCII && !unicode.IsSpace(r)
}

func isNameChar(r rune) bool {
	return isNameStart(r) || isDigit(r)
}
