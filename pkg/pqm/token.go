package pqm

import "fmt"

// TokenKind identifies the lexical class of a token.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenInvalid

	// Literals
	TokenNull
	TokenTrue
	TokenFalse
	TokenNumber
	TokenText

	// Identifiers
	TokenIdentifier
	TokenQuotedIdentifier

	// Keywords
	TokenAnd
	TokenAs
	TokenEach
	TokenElse
	TokenError
	TokenIf
	TokenIn
	TokenIs
	TokenLet
	TokenMeta
	TokenNot
	TokenOr
	TokenOtherwise
	TokenSection
	TokenShared
	TokenThen
	TokenTry
	TokenType

	// Hash keywords
	TokenHashBinary
	TokenHashDate
	TokenHashDateTime
	TokenHashDateTimeZone
	TokenHashDuration
	TokenHashInfinity
	TokenHashNan
	TokenHashSections
	TokenHashShared
	TokenHashTable
	TokenHashTime

	// Operators
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenAmpersand
	TokenEquals
	TokenNotEquals
	TokenLess
	TokenLessEquals
	TokenGreater
	TokenGreaterEquals
	TokenFatArrow
	TokenQuestionQuestion
	TokenDot
	TokenDotDot
	TokenEllipsis

	// Punctuation
	TokenComma
	TokenSemicolon
	TokenLeftParen
	TokenRightParen
	TokenLeftBracket
	TokenRightBracket
	TokenLeftBrace
	TokenRightBrace
	TokenAt
	TokenBang
	TokenQuestion

	// Trivia
	TokenLineComment
	TokenBlockComment
	TokenWhitespace
	TokenNewline
)

var keywords = map[string]TokenKind{
	"and":       TokenAnd,
	"as":        TokenAs,
	"each":      TokenEach,
	"else":      TokenElse,
	"error":     TokenError,
	"false":     TokenFalse,
	"if":        TokenIf,
	"in":        TokenIn,
	"is":        TokenIs,
	"let":       TokenLet,
	"meta":      TokenMeta,
	"not":       TokenNot,
	"null":      TokenNull,
	"or":        TokenOr,
	"otherwise": TokenOtherwise,
	"section":   TokenSection,
	"shared":    TokenShared,
	"then":      TokenThen,
	"true":      TokenTrue,
	"try":       TokenTry,
	"type":      TokenType,
}

var hashKeywords = map[string]TokenKind{
	"binary":       TokenHashBinary,
	"date":         TokenHashDate,
	"datetime":     TokenHashDateTime,
	"datetimezone": TokenHashDateTimeZone,
	"duration":     TokenHashDuration,
	"infinity":     TokenHashInfinity,
	"nan":          TokenHashNan,
	"sections":     TokenHashSections,
	"shared":       TokenHashShared,
	"table":        TokenHashTable,
	"time":         TokenHashTime,
}

var tokenNames = map[TokenKind]string{
	TokenEOF:              "end of input",
	TokenInvalid:          "invalid token",
	TokenNull:             `"null"`,
	TokenTrue:             `"true"`,
	TokenFalse:            `"false"`,
	TokenNumber:           "number",
	TokenText:             "text",
	TokenIdentifier:       "identifier",
	TokenQuotedIdentifier: "quoted identifier",
	TokenPlus:             `"+"`,
	TokenMinus:            `"-"`,
	TokenStar:             `"*"`,
	TokenSlash:            `"/"`,
	TokenAmpersand:        `"&"`,
	TokenEquals:           `"="`,
	TokenNotEquals:        `"<>"`,
	TokenLess:             `"<"`,
	TokenLessEquals:       `"<="`,
	TokenGreater:          `">"`,
	TokenGreaterEquals:    `">="`,
	TokenFatArrow:         `"=>"`,
	TokenQuestionQuestion: `"??"`,
	TokenDot:              `"."`,
	TokenDotDot:           `".."`,
	TokenEllipsis:         `"..."`,
	TokenComma:            `","`,
	TokenSemicolon:        `";"`,
	TokenLeftParen:        `"("`,
	TokenRightParen:       `")"`,
	TokenLeftBracket:      `"["`,
	TokenRightBracket:     `"]"`,
	TokenLeftBrace:        `"{"`,
	TokenRightBrace:       `"}"`,
	TokenAt:               `"@"`,
	TokenBang:             `"!"`,
	TokenQuestion:         `"?"`,
	TokenLineComment:      "line comment",
	TokenBlockComment:     "block comment",
	TokenWhitespace:       "whitespace",
	TokenNewline:          "newline",
}

var keywordSpellings = map[TokenKind]string{}

func init() {
	for word, kind := range keywords {
		keywordSpellings[kind] = word
		if _, ok := tokenNames[kind]; !ok {
			tokenNames[kind] = fmt.Sprintf("%q", word)
		}
	}
	for word, kind := range hashKeywords {
		tokenNames[kind] = fmt.Sprintf("%q", "#"+word)
	}
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// IsTrivia reports whether tokens of this kind carry no syntax.
func (k TokenKind) IsTrivia() bool {
	switch k {
	case TokenLineComment, TokenBlockComment, TokenWhitespace, TokenNewline:
		return true
	}
	return false
}

// IsKeyword reports whether k is a reserved word.
func (k TokenKind) IsKeyword() bool {
	return k >= TokenAnd && k <= TokenType ||
		k == TokenNull || k == TokenTrue || k == TokenFalse
}

// Token is a single lexical unit.
type Token struct {
	Kind TokenKind
	// Text is the identifier name, the decoded text value, the comment body,
	// the raw number lexeme, the whitespace run, or the description of an
	// invalid token.
	Text   string
	Number float64
	Span   Span
}

func (t Token) String() string {
	switch t.Kind {
	case TokenIdentifier:
		return fmt.Sprintf("identifier %q", t.Text)
	case TokenQuotedIdentifier:
		return fmt.Sprintf("quoted identifier %q", t.Text)
	case TokenNumber:
		return "number " + t.Text
	case TokenText:
		return fmt.Sprintf("text %q", t.Text)
	case TokenInvalid:
		return t.Text
	}
	return t.Kind.String()
}

// keywordText returns the source spelling of a keyword token.
func keywordText(k TokenKind) (string, bool) {
	word, ok := keywordSpellings[k]
	return word, ok
}
