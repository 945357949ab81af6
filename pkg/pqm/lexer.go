package pqm

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const eof rune = -1

// Tokenize splits src into tokens, trivia included. It never fails: input
// that cannot be classified becomes a TokenInvalid token describing the
// problem. The last token is always TokenEOF.
func Tokenize(src string) []Token {
	l := &lexer{src: src, line: 1, col: 1}
	var tokens []Token
	for {
		tok := l.next()
		tokens = append(tokens, tok)
		if tok.Kind == TokenEOF {
			return tokens
		}
	}
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int

	// start of the token being lexed
	start     int
	startLine int
	startCol  int
}

func (l *lexer) peek() rune {
	if l.pos >= len(l.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return r
}

func (l *lexer) peekNext() rune {
	if l.pos >= len(l.src) {
		return eof
	}
	_, size := utf8.DecodeRuneInString(l.src[l.pos:])
	if l.pos+size >= len(l.src) {
		return eof
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos+size:])
	return r
}

func (l *lexer) advance() rune {
	if l.pos >= len(l.src) {
		return eof
	}
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	switch {
	case r == '\n':
		l.line++
		l.col = 1
	case r == '\r' && l.peek() != '\n':
		l.line++
		l.col = 1
	default:
		l.col++
	}
	return r
}

// advanceRaw consumes one rune and returns its source bytes, so invalid
// UTF-8 passes through unchanged.
func (l *lexer) advanceRaw() string {
	from := l.pos
	l.advance()
	return l.src[from:l.pos]
}

func (l *lexer) advanceWhile(pred func(rune) bool) string {
	from := l.pos
	for r := l.peek(); r != eof && pred(r); r = l.peek() {
		l.advance()
	}
	return l.src[from:l.pos]
}

func (l *lexer) token(kind TokenKind) Token {
	return Token{
		Kind: kind,
		Span: Span{
			Start:  l.start,
			End:    l.pos,
			Line:   l.startLine,
			Column: l.startCol,
		},
	}
}

func (l *lexer) textToken(kind TokenKind, text string) Token {
	tok := l.token(kind)
	tok.Text = text
	return tok
}

func (l *lexer) invalid(msg string) Token {
	return l.textToken(TokenInvalid, msg)
}

func (l *lexer) next() Token {
	l.start, l.startLine, l.startCol = l.pos, l.line, l.col

	r := l.peek()
	switch {
	case r == eof:
		return l.token(TokenEOF)
	case r == '\n' || r == '\r':
		l.advance()
		if r == '\r' && l.peek() == '\n' {
			l.advance()
		}
		return l.token(TokenNewline)
	case isSpace(r):
		return l.textToken(TokenWhitespace, l.advanceWhile(isSpace))
	case r == '"':
		return l.lexText()
	case r == '#':
		return l.lexHash()
	case isDigit(r), r == '.' && isDigit(l.peekNext()):
		return l.lexNumber()
	case r == '/':
		return l.lexSlash()
	case isIdentStart(r):
		return l.lexIdentifier()
	}

	l.advance()
	switch r {
	case '+':
		return l.token(TokenPlus)
	case '-':
		return l.token(TokenMinus)
	case '*':
		return l.token(TokenStar)
	case '&':
		return l.token(TokenAmpersand)
	case ',':
		return l.token(TokenComma)
	case ';':
		return l.token(TokenSemicolon)
	case '(':
		return l.token(TokenLeftParen)
	case ')':
		return l.token(TokenRightParen)
	case '[':
		return l.token(TokenLeftBracket)
	case ']':
		return l.token(TokenRightBracket)
	case '{':
		return l.token(TokenLeftBrace)
	case '}':
		return l.token(TokenRightBrace)
	case '@':
		return l.token(TokenAt)
	case '!':
		return l.token(TokenBang)
	case '=':
		if l.peek() == '>' {
			l.advance()
			return l.token(TokenFatArrow)
		}
		return l.token(TokenEquals)
	case '<':
		switch l.peek() {
		case '=':
			l.advance()
			return l.token(TokenLessEquals)
		case '>':
			l.advance()
			return l.token(TokenNotEquals)
		}
		return l.token(TokenLess)
	case '>':
		if l.peek() == '=' {
			l.advance()
			return l.token(TokenGreaterEquals)
		}
		return l.token(TokenGreater)
	case '?':
		if l.peek() == '?' {
			l.advance()
			return l.token(TokenQuestionQuestion)
		}
		return l.token(TokenQuestion)
	case '.':
		if l.peek() == '.' {
			l.advance()
			if l.peek() == '.' {
				l.advance()
				return l.token(TokenEllipsis)
			}
			return l.token(TokenDotDot)
		}
		return l.token(TokenDot)
	}
	return l.invalid(string(r))
}

func (l *lexer) lexText() Token {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		switch r := l.peek(); {
		case r == eof:
			return l.invalid("Unterminated string")
		case r == '"':
			l.advance()
			if l.peek() != '"' {
				return l.textToken(TokenText, sb.String())
			}
			l.advance()
			sb.WriteByte('"')
		case r == '#':
			l.advance()
			if l.peek() != '(' {
				sb.WriteByte('#')
				continue
			}
			l.advance()
			if msg := l.lexEscapes(&sb); msg != "" {
				return l.invalid(msg)
			}
		default:
			sb.WriteString(l.advanceRaw())
		}
	}
}

// lexEscapes decodes the comma-separated codes of a #(...) escape. It
// returns a description of the problem if the escape is malformed.
func (l *lexer) lexEscapes(sb *strings.Builder) string {
	for {
		code := l.advanceWhile(func(r rune) bool { return r != ',' && r != ')' })
		switch code {
		case "cr":
			sb.WriteByte('\r')
		case "lf":
			sb.WriteByte('\n')
		case "tab":
			sb.WriteByte('\t')
		case "#":
			sb.WriteByte('#')
		default:
			if len(code) != 4 && len(code) != 8 {
				return "Unknown escape sequence: " + code
			}
			v, err := strconv.ParseUint(code, 16, 32)
			if err != nil {
				return "Invalid escape sequence: " + code
			}
			if !utf8.ValidRune(rune(v)) {
				return "Invalid unicode code point: " + code
			}
			sb.WriteRune(rune(v))
		}

		switch l.advance() {
		case ',':
		case ')':
			return ""
		default:
			return "Unterminated escape sequence"
		}
	}
}

func (l *lexer) lexHash() Token {
	l.advance() // #
	switch r := l.peek(); {
	case r == '"':
		l.advance()
		var sb strings.Builder
		for {
			switch l.peek() {
			case eof:
				return l.invalid("Unterminated quoted identifier")
			case '"':
				l.advance()
				if l.peek() != '"' {
					return l.textToken(TokenQuotedIdentifier, sb.String())
				}
				l.advance()
				sb.WriteByte('"')
			default:
				sb.WriteString(l.advanceRaw())
			}
		}
	case isIdentStart(r):
		word := l.advanceWhile(isIdentContinue)
		if kind, ok := hashKeywords[word]; ok {
			return l.textToken(kind, "#"+word)
		}
		return l.invalid("Unknown hash keyword: #" + word)
	}
	return l.invalid("#")
}

func (l *lexer) lexNumber() Token {
	if l.peek() == '0' && (l.peekNext() == 'x' || l.peekNext() == 'X') {
		l.advance()
		l.advance()
		digits := l.advanceWhile(isHexDigit)
		if digits == "" {
			return l.invalid("Invalid hex number")
		}
		v, err := strconv.ParseInt(digits, 16, 64)
		if err != nil {
			return l.invalid("Hex number out of range")
		}
		tok := l.textToken(TokenNumber, l.src[l.start:l.pos])
		tok.Number = float64(v)
		return tok
	}

	l.advanceWhile(isDigit)
	if l.peek() == '.' && isDigit(l.peekNext()) {
		l.advance()
		l.advanceWhile(isDigit)
	}
	if r := l.peek(); r == 'e' || r == 'E' {
		l.advance()
		if r := l.peek(); r == '+' || r == '-' {
			l.advance()
		}
		if l.advanceWhile(isDigit) == "" {
			return l.invalid("Invalid number: missing exponent")
		}
	}

	lexeme := l.src[l.start:l.pos]
	v, err := strconv.ParseFloat(lexeme, 64)
	if err != nil && !isRangeError(err) {
		return l.invalid("Invalid number: " + lexeme)
	}
	tok := l.textToken(TokenNumber, lexeme)
	tok.Number = v
	return tok
}

// isRangeError accepts overflowing literals, which parse to ±Inf or 0 the
// same way the language treats them.
func isRangeError(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}

func (l *lexer) lexSlash() Token {
	l.advance() // /
	switch l.peek() {
	case '/':
		l.advance()
		body := l.advanceWhile(func(r rune) bool { return r != '\n' && r != '\r' })
		return l.textToken(TokenLineComment, body)
	case '*':
		l.advance()
		var sb strings.Builder
		depth := 1
		for depth > 0 {
			switch r := l.advance(); r {
			case eof:
				return l.invalid("Unterminated block comment")
			case '*':
				if l.peek() == '/' {
					l.advance()
					depth--
					if depth > 0 {
						sb.WriteString("*/")
					}
				} else {
					sb.WriteByte('*')
				}
			case '/':
				if l.peek() == '*' {
					l.advance()
					depth++
					sb.WriteString("/*")
				} else {
					sb.WriteByte('/')
				}
			default:
				sb.WriteRune(r)
			}
		}
		return l.textToken(TokenBlockComment, sb.String())
	}
	return l.token(TokenSlash)
}

func (l *lexer) lexIdentifier() Token {
	l.advanceWhile(isIdentContinue)
	dotted := false
	for l.peek() == '.' && isIdentStart(l.peekNext()) {
		dotted = true
		l.advance()
		l.advanceWhile(isIdentContinue)
	}
	word := l.src[l.start:l.pos]
	if !dotted {
		if kind, ok := keywords[word]; ok {
			return l.textToken(kind, word)
		}
	}
	return l.textToken(TokenIdentifier, word)
}

func isSpace(r rune) bool {
	return r != '\n' && r != '\r' && r != eof && unicode.IsSpace(r)
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentContinue(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsNumber(r)
}
