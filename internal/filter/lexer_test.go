package filter

import (
	"errors"
	"strings"
	"testing"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	lex := newLexer(src)
	var toks []Token
	for {
		tok, err := lex.next()
		if err != nil {
			t.Fatalf("lex %q: %v", src, err)
		}
		if tok.Type == TokenEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestLexSequences(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		types []TokenType
	}{
		{"empty", "", nil},
		{"whitespace", " \t\n ", nil},
		{"brackets", "() []", []TokenType{TokenLParen, TokenRParen, TokenLBracket, TokenRBracket}},
		{"logical", "&& || !", []TokenType{TokenAnd, TokenOr, TokenNot}},
		{"comparisons", "== != < > <= >=", []TokenType{TokenEq, TokenNotEq, TokenLess, TokenGreater, TokenLessEq, TokenGreaterEq}},
		{"keywords", "in contains startswith endswith true false null", []TokenType{TokenIn, TokenContains, TokenStartsWith, TokenEndsWith, TokenTrue, TokenFalse, TokenNull}},
		{"path", "repo.source-code", []TokenType{TokenIdent, TokenDot, TokenIdent}},
		{"mixed", `repo.name == "bar" && size != 12.5`, []TokenType{TokenIdent, TokenDot, TokenIdent, TokenEq, TokenString, TokenAnd, TokenIdent, TokenNotEq, TokenNumber}},
		{"negative number", "-12.5", []TokenType{TokenNumber}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks := lexAll(t, tt.src)
			if len(toks) != len(tt.types) {
				t.Fatalf("lex %q: got %d tokens, want %d", tt.src, len(toks), len(tt.types))
			}
			for i, tok := range toks {
				if tok.Type != tt.types[i] {
					t.Errorf("token %d of %q: got %s, want type %d", i, tt.src, tok, tt.types[i])
				}
			}
		})
	}
}

func TestLexStrings(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`"hello world"`, "hello world"},
		{`"hello \"world\""`, `hello "world"`},
		{`"a\\b"`, `a\b`},
		{`"line\nbreak\ttab\rret\/slash"`, "line\nbreak\ttab\rret/slash"},
	}

	for _, tt := range tests {
		toks := lexAll(t, tt.src)
		if len(toks) != 1 || toks[0].Type != TokenString {
			t.Fatalf("lex %q: expected a single string token", tt.src)
		}
		if toks[0].Lexeme != tt.want {
			t.Errorf("lex %q: got %q, want %q", tt.src, toks[0].Lexeme, tt.want)
		}
	}
}

func TestLexErrors(t *testing.T) {
	tests := []struct {
		src     string
		message string
		line    int
		column  int
	}{
		{"a & b", "orphaned '&'", 1, 3},
		{"a | b", "orphaned '|'", 1, 3},
		{"a = b", "orphaned '='", 1, 3},
		{`"unterminated`, "unterminated string", 1, 1},
		{`"bad \x escape"`, "invalid escape", 1, 1},
		{"a ==\n  #", "unexpected character", 2, 3},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			lex := newLexer(tt.src)
			var lastErr error
			for {
				tok, err := lex.next()
				if err != nil {
					lastErr = err
					break
				}
				if tok.Type == TokenEOF {
					break
				}
			}
			if lastErr == nil {
				t.Fatalf("lex %q: expected an error", tt.src)
			}
			var perr *ParseError
			if !errors.As(lastErr, &perr) {
				t.Fatalf("lex %q: error %v is not a ParseError", tt.src, lastErr)
			}
			if !strings.Contains(perr.Message, tt.message) {
				t.Errorf("lex %q: message %q does not mention %q", tt.src, perr.Message, tt.message)
			}
			if perr.Line != tt.line || perr.Column != tt.column {
				t.Errorf("lex %q: error at %d:%d, want %d:%d", tt.src, perr.Line, perr.Column, tt.line, tt.column)
			}
		})
	}
}
