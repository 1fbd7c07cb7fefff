package scan

import (
	"strings"
)

type tokenKind int

const (
	tokIdent   tokenKind = iota // bare identifier or keyword
	tokQuoted                   // "ident" or `ident`, text holds the unquoted name
	tokString                   // 'text', E'text', $tag$text$tag$
	tokNumber                   // 42, 3.14
	tokParam                    // $1
	tokComment                  // -- line comment, text includes the dashes
	tokPunct                    // ( ) , ; .
	tokOther                    // operators and anything else, one byte each
)

type token struct {
	kind tokenKind
	text string
	line int // 1-based line of the first byte
	col  int // 0-based byte column of the first byte
}

func (t token) upper() string {
	if t.kind != tokIdent {
		return ""
	}
	return strings.ToUpper(t.text)
}

func (t token) isPunct(p string) bool {
	return t.kind == tokPunct && t.text == p
}

// isName reports whether t can name a relation: a bare or quoted identifier.
func (t token) isName() bool {
	return t.kind == tokIdent || t.kind == tokQuoted
}

// lexer tokenizes SQL text. Block comments are dropped; line comments are
// kept as tokens because query headers live in them.
type lexer struct {
	file      string
	src       string
	pos       int
	line      int
	lineStart int
	toks      []token
}

func lexSQL(file string, src []byte) ([]token, error) {
	l := &lexer{file: file, src: string(src), line: 1}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.toks, nil
}

func (l *lexer) peek(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

// advance moves one byte forward, keeping line bookkeeping current.
func (l *lexer) advance() {
	if l.src[l.pos] == '\n' {
		l.line++
		l.lineStart = l.pos + 1
	}
	l.pos++
}

func (l *lexer) emit(kind tokenKind, text string, line, col int) {
	l.toks = append(l.toks, token{kind: kind, text: text, line: line, col: col})
}

func (l *lexer) errorf(line int, reason string) error {
	return &ParseError{File: l.file, Line: line, Reason: reason}
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		line, col := l.line, l.pos-l.lineStart
		switch {
		case c == '\n' || c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v':
			l.advance()
		case c == '-' && l.peek(1) == '-':
			start := l.pos
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
			l.emit(tokComment, l.src[start:l.pos], line, col)
		case c == '/' && l.peek(1) == '*':
			if err := l.blockComment(line); err != nil {
				return err
			}
		case c == '\'':
			text, err := l.quoted('\'', false, line, "string literal")
			if err != nil {
				return err
			}
			l.emit(tokString, text, line, col)
		case c == '"' || c == '`':
			text, err := l.quoted(c, false, line, "quoted identifier")
			if err != nil {
				return err
			}
			l.emit(tokQuoted, text, line, col)
		case c == '$':
			if err := l.dollar(line, col); err != nil {
				return err
			}
		case isIdentStart(c):
			start := l.pos
			for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
				l.pos++
			}
			word := l.src[start:l.pos]
			// E'...' escape strings honour backslashes.
			if (word == "E" || word == "e") && l.peek(0) == '\'' {
				text, err := l.quoted('\'', true, line, "string literal")
				if err != nil {
					return err
				}
				l.emit(tokString, text, line, col)
				continue
			}
			l.emit(tokIdent, word, line, col)
		case c >= '0' && c <= '9':
			start := l.pos
			for l.pos < len(l.src) && (isIdentPart(l.src[l.pos]) || l.src[l.pos] == '.') {
				l.pos++
			}
			l.emit(tokNumber, l.src[start:l.pos], line, col)
		case c == '(' || c == ')' || c == ',' || c == ';' || c == '.':
			l.pos++
			l.emit(tokPunct, string(c), line, col)
		default:
			l.pos++
			l.emit(tokOther, string(c), line, col)
		}
	}
	return nil
}

// blockComment skips a /* */ comment. Comments nest, as in PostgreSQL.
func (l *lexer) blockComment(line int) error {
	depth := 0
	for l.pos < len(l.src) {
		switch {
		case l.src[l.pos] == '/' && l.peek(1) == '*':
			depth++
			l.pos += 2
		case l.src[l.pos] == '*' && l.peek(1) == '/':
			depth--
			l.pos += 2
			if depth == 0 {
				return nil
			}
		default:
			l.advance()
		}
	}
	return l.errorf(line, "unterminated block comment")
}

// quoted consumes a run delimited by q. A doubled delimiter is an escaped
// delimiter; with backslash set, '\' escapes the next byte. The returned text
// is the content with escapes still in place except doubled delimiters.
func (l *lexer) quoted(q byte, backslash bool, line int, what string) (string, error) {
	l.pos++ // opening delimiter
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case backslash && c == '\\' && l.pos+1 < len(l.src):
			b.WriteByte(c)
			l.advance()
			b.WriteByte(l.src[l.pos])
			l.advance()
		case c == q && l.peek(1) == q:
			b.WriteByte(q)
			l.pos += 2
		case c == q:
			l.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			l.advance()
		}
	}
	return "", l.errorf(line, "unterminated "+what)
}

// dollar handles $1 parameters and $tag$...$tag$ quoted bodies.
func (l *lexer) dollar(line, col int) error {
	start := l.pos
	if c := l.peek(1); c >= '0' && c <= '9' {
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] >= '0' && l.src[l.pos] <= '9' {
			l.pos++
		}
		l.emit(tokParam, l.src[start:l.pos], line, col)
		return nil
	}

	end := l.pos + 1
	for end < len(l.src) && isIdentPart(l.src[end]) && l.src[end] != '$' {
		end++
	}
	if end >= len(l.src) || l.src[end] != '$' || (end > l.pos+1 && !isIdentStart(l.src[l.pos+1])) {
		l.pos++
		l.emit(tokOther, "$", line, col)
		return nil
	}

	tag := l.src[l.pos : end+1]
	for l.pos <= end {
		l.advance()
	}
	bodyStart := l.pos
	for l.pos < len(l.src) {
		if strings.HasPrefix(l.src[l.pos:], tag) {
			body := l.src[bodyStart:l.pos]
			l.pos += len(tag)
			l.emit(tokString, body, line, col)
			return nil
		}
		l.advance()
	}
	return l.errorf(line, "unterminated dollar-quoted string "+tag)
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9') || c == '$'
}
