package scan

import "strings"

// TokenKind classifies a lexed SQL token.
type TokenKind int

const (
	TokenIdent   = TokenKind(tokIdent)
	TokenQuoted  = TokenKind(tokQuoted)
	TokenString  = TokenKind(tokString)
	TokenNumber  = TokenKind(tokNumber)
	TokenParam   = TokenKind(tokParam)
	TokenComment = TokenKind(tokComment)
	TokenPunct   = TokenKind(tokPunct)
	TokenOther   = TokenKind(tokOther)
)

// Token is one lexed SQL token. Quoted identifiers and strings carry their
// unquoted content; block comments never appear.
type Token struct {
	Kind TokenKind
	Text string
	Line int
}

// Upper returns the upper-cased text of a bare identifier, or "".
func (t Token) Upper() string {
	if t.Kind != TokenIdent {
		return ""
	}
	return strings.ToUpper(t.Text)
}

// IsPunct reports whether t is the punctuation p.
func (t Token) IsPunct(p string) bool {
	return t.Kind == TokenPunct && t.Text == p
}

// IsName reports whether t is a bare or quoted identifier.
func (t Token) IsName() bool {
	return t.Kind == TokenIdent || t.Kind == TokenQuoted
}

// Lex tokenizes SQL text with the same rules the schema and query scanners
// use. Line numbers are relative to src.
func Lex(file string, src []byte) ([]Token, error) {
	toks, err := lexSQL(file, src)
	if err != nil {
		return nil, err
	}
	out := make([]Token, len(toks))
	for i, t := range toks {
		out[i] = Token{Kind: TokenKind(t.kind), Text: t.text, Line: t.line}
	}
	return out, nil
}
