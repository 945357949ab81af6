package pqm

import (
	"fmt"
	"math"
)

// DefaultMaxDepth is the default nesting limit enforced by the parser.
const DefaultMaxDepth = 500

// ParseOption configures the parser.
type ParseOption func(*parser)

// WithMaxDepth sets the maximum nesting depth. Deeper input fails with a
// diagnostic instead of growing the stack without bound.
func WithMaxDepth(depth int) ParseOption {
	return func(p *parser) {
		p.maxDepth = depth
	}
}

// Parse parses src into a Document. On failure the error is a Diagnostics
// holding the first problem found; no partial tree is returned.
func Parse(src string, opts ...ParseOption) (*Document, error) {
	p := &parser{
		tokens:   Tokenize(src),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	doc, err := p.parseDocument(len(src))
	if err != nil {
		if ds, ok := AsDiagnostics(err); ok {
			return nil, ds
		}
		return nil, err
	}
	return doc, nil
}

type parser struct {
	tokens   []Token
	pos      int
	depth    int
	maxDepth int
}

func (p *parser) current() Token {
	return p.tokens[p.pos]
}

func (p *parser) at(kind TokenKind) bool {
	return p.tokens[p.pos].Kind == kind
}

// advance consumes the current token. The cursor never moves past EOF.
func (p *parser) advance() Token {
	tok := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) skipTrivia() {
	for p.current().Kind.IsTrivia() {
		p.advance()
	}
}

// skipWhitespace skips whitespace and newlines but stops at comments.
func (p *parser) skipWhitespace() {
	for p.at(TokenWhitespace) || p.at(TokenNewline) {
		p.advance()
	}
}

// peekSignificant returns the next non-trivia token after the current one
// without moving the cursor.
func (p *parser) peekSignificant() Token {
	save := p.pos
	defer func() { p.pos = save }()
	p.advance()
	p.skipTrivia()
	return p.current()
}

func (p *parser) expect(kind TokenKind) (Token, error) {
	if !p.at(kind) {
		return Token{}, p.unexpected(kind.String())
	}
	return p.advance(), nil
}

func (p *parser) errorf(span Span, format string, args ...any) error {
	return &Diagnostic{
		Message: fmt.Sprintf(format, args...),
		Span:    span,
	}
}

// unexpected reports the current token where something else was expected.
// Invalid tokens report their own description.
func (p *parser) unexpected(expected string) error {
	tok := p.current()
	if tok.Kind == TokenInvalid {
		return p.errorf(tok.Span, "%s", tok.Text)
	}
	return p.errorf(tok.Span, "expected %s, found %s", expected, tok)
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > p.maxDepth {
		return p.errorf(p.current().Span, "maximum nesting depth exceeded (%d)", p.maxDepth)
	}
	return nil
}

func (p *parser) leave() {
	p.depth--
}

func (p *parser) parseDocument(size int) (*Document, error) {
	leading, _ := p.collectTrivia()
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	trailing, _ := p.collectTrivia()
	if !p.at(TokenEOF) {
		tok := p.current()
		if tok.Kind == TokenInvalid {
			return nil, p.unexpected("")
		}
		return nil, p.errorf(tok.Span, "unexpected %s after expression", tok)
	}
	expr.Leading = append(leading, expr.Leading...)
	expr.Trailing = append(expr.Trailing, trailing...)
	return &Document{
		Expr: expr,
		Span: Span{Start: 0, End: size, Line: 1, Column: 1},
	}, nil
}

// collectTrivia consumes a run of trivia and returns its comments. blank is
// the number of empty lines between the previous token and the first
// comment (or the next token when there is none).
func (p *parser) collectTrivia() (comments []Trivia, blank int) {
	newlines := 0
	sawNewline := false
	for {
		tok := p.current()
		switch tok.Kind {
		case TokenWhitespace:
		case TokenNewline:
			sawNewline = true
			if comments == nil {
				newlines++
			}
		case TokenLineComment, TokenBlockComment:
			comments = append(comments, newTrivia(tok, sawNewline))
			sawNewline = false
		default:
			return comments, max(0, newlines-1)
		}
		p.advance()
	}
}

// sameLineComments consumes comments on the rest of the current line,
// leaving the newline in place.
func (p *parser) sameLineComments() []Trivia {
	var comments []Trivia
	for {
		tok := p.current()
		switch tok.Kind {
		case TokenWhitespace:
		case TokenLineComment, TokenBlockComment:
			comments = append(comments, newTrivia(tok, false))
		default:
			return comments
		}
		p.advance()
	}
}

func newTrivia(tok Token, ownLine bool) Trivia {
	kind := LineComment
	if tok.Kind == TokenBlockComment {
		kind = BlockComment
	}
	return Trivia{Kind: kind, Text: tok.Text, OwnLine: ownLine, Span: tok.Span}
}

func (p *parser) parseExpression() (*Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()
	return p.parseBinary(1)
}

// parseBinary is a precedence climber. Operands of equal precedence
// associate to the left because the right operand only accepts strictly
// higher precedence.
func (p *parser) parseBinary(minPrec int) (*Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		save := p.pos
		p.skipWhitespace()
		op, ok := binaryOps[p.current().Kind]
		if !ok || op.Precedence() < minPrec {
			p.pos = save
			return left, nil
		}
		p.advance()
		p.skipTrivia()

		var right *Expr
		if op == OpIs || op == OpAs {
			right, err = p.parseTypeOperand()
		} else {
			right, err = p.parseBinary(op.Precedence() + 1)
		}
		if err != nil {
			return nil, err
		}

		span := left.Span.Merge(right.Span)
		if op == OpMeta {
			left = &Expr{Kind: &Metadata{Value: left, Meta: right}, Span: span}
		} else {
			left = &Expr{Kind: &Binary{Op: op, Left: left, Right: right}, Span: span}
		}
	}
}

// parseTypeOperand parses the right side of is/as, where a type is expected
// and the type keyword is optional.
func (p *parser) parseTypeOperand() (*Expr, error) {
	start := p.current().Span
	if p.at(TokenType) {
		p.advance()
		p.skipTrivia()
	}
	ty, err := p.parseType()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: &TypeExpr{Type: ty}, Span: start.Merge(ty.Span)}, nil
}

func (p *parser) parseUnary() (*Expr, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	tok := p.current()
	var op UnaryOp
	switch tok.Kind {
	case TokenNot:
		op = OpNot
	case TokenMinus:
		op = OpNegate
	case TokenPlus:
		op = OpPositive
	default:
		return p.parsePostfix()
	}
	p.advance()
	p.skipTrivia()
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	return &Expr{
		Kind: &Unary{Op: op, Operand: operand},
		Span: tok.Span.Merge(operand.Span),
	}, nil
}

func (p *parser) parsePostfix() (*Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		save := p.pos
		p.skipWhitespace()
		switch p.current().Kind {
		case TokenLeftBracket:
			expr, err = p.parseSelector(expr)
		case TokenLeftBrace:
			expr, err = p.parseItemAccess(expr)
		case TokenLeftParen:
			expr, err = p.parseCall(expr)
		default:
			p.pos = save
			return expr, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// optionalMarker consumes a ? directly after an access.
func (p *parser) optionalMarker(span *Span) bool {
	if !p.at(TokenQuestion) {
		return false
	}
	*span = span.Merge(p.advance().Span)
	return true
}

// parseSelector parses target[field] or target[[a], [b]].
func (p *parser) parseSelector(target *Expr) (*Expr, error) {
	p.advance() // [
	p.skipTrivia()

	if p.at(TokenLeftBracket) {
		fields, err := p.parseProjectionFields()
		if err != nil {
			return nil, err
		}
		closing, err := p.expect(TokenRightBracket)
		if err != nil {
			return nil, err
		}
		span := target.Span.Merge(closing.Span)
		proj := &FieldProjection{Target: target, Fields: fields}
		proj.Optional = p.optionalMarker(&span)
		return &Expr{Kind: proj, Span: span}, nil
	}

	name, err := p.parseGeneralizedIdentifier()
	if err != nil {
		return nil, err
	}
	p.skipTrivia()
	closing, err := p.expect(TokenRightBracket)
	if err != nil {
		return nil, err
	}
	span := target.Span.Merge(closing.Span)
	access := &FieldAccess{Target: target, Field: name}
	access.Optional = p.optionalMarker(&span)
	return &Expr{Kind: access, Span: span}, nil
}

// parseProjectionFields parses the [a], [b] list inside a projection, up to
// but not including the closing bracket.
func (p *parser) parseProjectionFields() ([]Identifier, error) {
	var fields []Identifier
	for {
		if _, err := p.expect(TokenLeftBracket); err != nil {
			return nil, err
		}
		p.skipTrivia()
		name, err := p.parseGeneralizedIdentifier()
		if err != nil {
			return nil, err
		}
		p.skipTrivia()
		if _, err := p.expect(TokenRightBracket); err != nil {
			return nil, err
		}
		fields = append(fields, name)
		p.skipTrivia()
		if !p.at(TokenComma) {
			return fields, nil
		}
		p.advance()
		p.skipTrivia()
	}
}

func (p *parser) parseItemAccess(target *Expr) (*Expr, error) {
	p.advance() // {
	p.skipTrivia()
	index, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.skipTrivia()
	closing, err := p.expect(TokenRightBrace)
	if err != nil {
		return nil, err
	}
	span := target.Span.Merge(closing.Span)
	access := &ItemAccess{Target: target, Index: index}
	access.Optional = p.optionalMarker(&span)
	return &Expr{Kind: access, Span: span}, nil
}

func (p *parser) parseCall(callee *Expr) (*Expr, error) {
	p.advance() // (
	p.skipTrivia()
	var args []*Expr
	for !p.at(TokenRightParen) {
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		p.skipTrivia()
		if !p.at(TokenComma) {
			break
		}
		p.advance()
		p.skipTrivia()
	}
	closing, err := p.expect(TokenRightParen)
	if err != nil {
		return nil, err
	}
	return &Expr{
		Kind: &Call{Callee: callee, Args: args},
		Span: callee.Span.Merge(closing.Span),
	}, nil
}

func (p *parser) parsePrimary() (*Expr, error) {
	tok := p.current()
	leaf := func(kind ExprKind) (*Expr, error) {
		p.advance()
		return &Expr{Kind: kind, Span: tok.Span}, nil
	}

	switch tok.Kind {
	case TokenNull:
		return leaf(&NullLit{})
	case TokenTrue:
		return leaf(&LogicalLit{Value: true})
	case TokenFalse:
		return leaf(&LogicalLit{Value: false})
	case TokenNumber:
		return leaf(&NumberLit{Value: tok.Number})
	case TokenHashInfinity:
		return leaf(&NumberLit{Value: math.Inf(1)})
	case TokenHashNan:
		return leaf(&NumberLit{Value: math.NaN()})
	case TokenText:
		return leaf(&TextLit{Value: tok.Text})
	case TokenIdentifier:
		if tok.Text == "_" {
			return leaf(&Underscore{})
		}
		return leaf(&Ident{Name: tok.Text})
	case TokenQuotedIdentifier:
		return leaf(&QuotedIdent{Name: tok.Text})
	case TokenHashBinary, TokenHashSections, TokenHashShared:
		return leaf(&Ident{Name: tok.Text})
	case TokenAt:
		p.advance()
		name, err := p.expect(TokenIdentifier)
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: &Ident{Name: "@" + name.Text}, Span: tok.Span.Merge(name.Span)}, nil
	case TokenLet:
		return p.parseLet()
	case TokenIf:
		return p.parseIf()
	case TokenTry:
		return p.parseTry()
	case TokenError:
		return p.parsePrefix(func(e *Expr) ExprKind { return &ErrorExpr{Value: e} })
	case TokenEach:
		return p.parsePrefix(func(e *Expr) ExprKind { return &Each{Body: e} })
	case TokenLeftParen:
		return p.parseParenOrFunction()
	case TokenLeftBracket:
		return p.parseBracket()
	case TokenLeftBrace:
		return p.parseList()
	case TokenType:
		p.advance()
		p.skipTrivia()
		ty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &Expr{Kind: &TypeExpr{Type: ty}, Span: tok.Span.Merge(ty.Span)}, nil
	case TokenHashTable, TokenHashDate, TokenHashTime, TokenHashDateTime,
		TokenHashDateTimeZone, TokenHashDuration:
		return p.parseConstructor()
	}
	return nil, p.unexpected("expression")
}

// parsePrefix parses keyword forms that wrap a single expression.
func (p *parser) parsePrefix(build func(*Expr) ExprKind) (*Expr, error) {
	kw := p.advance()
	p.skipTrivia()
	operand, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: build(operand), Span: kw.Span.Merge(operand.Span)}, nil
}

func (p *parser) parseLet() (*Expr, error) {
	kw := p.advance() // let
	members, rest, err := p.parseMembers(TokenIn, p.parseIdentifier)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenIn); err != nil {
		return nil, err
	}
	leading, _ := p.collectTrivia()
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body.Leading = append(append(rest, leading...), body.Leading...)

	bindings := make([]*Binding, len(members))
	for i, m := range members {
		bindings[i] = &Binding{
			Name:             m.name,
			Value:            m.value,
			Span:             m.span,
			Leading:          m.leading,
			Trailing:         m.trailing,
			BlankLinesBefore: m.blank,
		}
	}
	return &Expr{
		Kind: &Let{Bindings: bindings, Body: body},
		Span: kw.Span.Merge(body.Span),
	}, nil
}

// member is a parsed name = value pair shared by let bindings and record
// fields.
type member struct {
	name     Identifier
	value    *Expr
	span     Span
	leading  []Trivia
	trailing []Trivia
	blank    int
}

// parseMembers parses comma-separated name = value pairs up to closer,
// which is left unconsumed. Comments before a name lead that member;
// comments after a value, and on the same line after its comma, trail it.
// Comments left over before the closer with no member to lead are attached
// to the last member, or returned when there is none.
func (p *parser) parseMembers(closer TokenKind, parseName func() (Identifier, error)) ([]member, []Trivia, error) {
	var members []member
	for {
		leading, blank := p.collectTrivia()
		if p.at(closer) {
			if len(members) == 0 {
				return nil, leading, nil
			}
			last := &members[len(members)-1]
			last.trailing = append(last.trailing, leading...)
			return members, nil, nil
		}

		name, err := parseName()
		if err != nil {
			return nil, nil, err
		}
		p.skipTrivia()
		if _, err := p.expect(TokenEquals); err != nil {
			return nil, nil, err
		}
		p.skipTrivia()
		value, err := p.parseExpression()
		if err != nil {
			return nil, nil, err
		}

		m := member{
			name:    name,
			value:   value,
			span:    name.Span.Merge(value.Span),
			leading: leading,
			blank:   blank,
		}
		if len(members) == 0 {
			m.blank = 0
		}
		m.trailing, _ = p.collectTrivia()
		if !p.at(TokenComma) {
			members = append(members, m)
			return members, nil, nil
		}
		p.advance()
		m.trailing = append(m.trailing, p.sameLineComments()...)
		members = append(members, m)
	}
}

func (p *parser) parseIdentifier() (Identifier, error) {
	tok := p.current()
	switch tok.Kind {
	case TokenIdentifier:
		p.advance()
		return Identifier{Name: tok.Text, Span: tok.Span}, nil
	case TokenQuotedIdentifier:
		p.advance()
		return Identifier{Name: tok.Text, Quoted: true, Span: tok.Span}, nil
	}
	return Identifier{}, p.unexpected("identifier")
}

func (p *parser) parseIf() (*Expr, error) {
	kw := p.advance() // if
	p.skipTrivia()
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.skipTrivia()
	if _, err := p.expect(TokenThen); err != nil {
		return nil, err
	}
	p.skipTrivia()
	then, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.skipTrivia()
	if _, err := p.expect(TokenElse); err != nil {
		return nil, err
	}
	p.skipTrivia()
	els, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Expr{
		Kind: &If{Cond: cond, Then: then, Else: els},
		Span: kw.Span.Merge(els.Span),
	}, nil
}

func (p *parser) parseTry() (*Expr, error) {
	kw := p.advance() // try
	p.skipTrivia()
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	try := &Try{Body: body}
	span := kw.Span.Merge(body.Span)

	save := p.pos
	p.skipTrivia()
	if !p.at(TokenOtherwise) {
		p.pos = save
		return &Expr{Kind: try, Span: span}, nil
	}
	p.advance()
	p.skipTrivia()
	try.Otherwise, err = p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: try, Span: span.Merge(try.Otherwise.Span)}, nil
}

// parseParenOrFunction resolves ( by scanning ahead for => and then
// re-parsing from the saved position as whichever form it is.
func (p *parser) parseParenOrFunction() (*Expr, error) {
	open := p.advance() // (
	save := p.pos
	isFunc := p.isFunctionDefinition()
	p.pos = save

	if isFunc {
		return p.parseFunction(open)
	}

	p.skipTrivia()
	inner, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	p.skipTrivia()
	closing, err := p.expect(TokenRightParen)
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: &Paren{Inner: inner}, Span: open.Span.Merge(closing.Span)}, nil
}

func (p *parser) parseFunction(open Token) (*Expr, error) {
	p.skipTrivia()
	params, err := p.parseParams()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	p.skipTrivia()

	fn := &Function{Params: params}
	if p.at(TokenAs) {
		p.advance()
		p.skipTrivia()
		if fn.ReturnType, err = p.parseType(); err != nil {
			return nil, err
		}
		p.skipTrivia()
	}
	if _, err := p.expect(TokenFatArrow); err != nil {
		return nil, err
	}
	p.skipTrivia()
	if fn.Body, err = p.parseExpression(); err != nil {
		return nil, err
	}
	return &Expr{Kind: fn, Span: open.Span.Merge(fn.Body.Span)}, nil
}

// parseParams parses a parameter list up to the closing paren.
func (p *parser) parseParams() ([]*Param, error) {
	var params []*Param
	for !p.at(TokenRightParen) {
		param, err := p.parseParam()
		if err != nil {
			return nil, err
		}
		params = append(params, param)
		p.skipTrivia()
		if !p.at(TokenComma) {
			break
		}
		p.advance()
		p.skipTrivia()
	}
	return params, nil
}

func (p *parser) parseParam() (*Param, error) {
	start := p.current().Span
	param := &Param{}
	if p.atOptionalKeyword() {
		param.Optional = true
		p.advance()
		p.skipTrivia()
	}
	name, err := p.parseIdentifier()
	if err != nil {
		return nil, err
	}
	param.Name = name
	param.Span = start.Merge(name.Span)

	save := p.pos
	p.skipTrivia()
	if !p.at(TokenAs) {
		p.pos = save
		return param, nil
	}
	p.advance()
	p.skipTrivia()
	if param.Type, err = p.parseType(); err != nil {
		return nil, err
	}
	param.Span = param.Span.Merge(param.Type.Span)
	return param, nil
}

// atOptionalKeyword reports whether the current token is the contextual
// optional keyword rather than a name that happens to be spelled optional.
func (p *parser) atOptionalKeyword() bool {
	tok := p.current()
	if tok.Kind != TokenIdentifier || tok.Text != "optional" {
		return false
	}
	next := p.peekSignificant()
	return next.Kind == TokenIdentifier || next.Kind == TokenQuotedIdentifier || next.Kind.IsKeyword()
}

func (p *parser) parseList() (*Expr, error) {
	open := p.advance() // {
	p.skipTrivia()
	var items []*Expr
	for !p.at(TokenRightBrace) {
		item, err := p.parseListItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		p.skipTrivia()
		if !p.at(TokenComma) {
			break
		}
		p.advance()
		p.skipTrivia()
	}
	closing, err := p.expect(TokenRightBrace)
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: &List{Items: items}, Span: open.Span.Merge(closing.Span)}, nil
}

// parseListItem parses a list element, which may be a from..to range.
func (p *parser) parseListItem() (*Expr, error) {
	from, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	save := p.pos
	p.skipTrivia()
	if !p.at(TokenDotDot) {
		p.pos = save
		return from, nil
	}
	p.advance()
	p.skipTrivia()
	to, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &Expr{Kind: &Range{From: from, To: to}, Span: from.Span.Merge(to.Span)}, nil
}

var constructorArity = map[TokenKind]int{
	TokenHashTable:        2,
	TokenHashDate:         3,
	TokenHashTime:         3,
	TokenHashDateTime:     6,
	TokenHashDateTimeZone: 8,
	TokenHashDuration:     4,
}

// parseConstructor parses the fixed-arity #table, #date, #time, #datetime,
// #datetimezone and #duration forms.
func (p *parser) parseConstructor() (*Expr, error) {
	kw := p.advance()
	p.skipTrivia()
	if _, err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	arity := constructorArity[kw.Kind]
	args := make([]*Expr, arity)
	for i := range args {
		p.skipTrivia()
		arg, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		args[i] = arg
		p.skipTrivia()
		if i < arity-1 {
			if _, err := p.expect(TokenComma); err != nil {
				return nil, err
			}
		}
	}
	closing, err := p.expect(TokenRightParen)
	if err != nil {
		return nil, err
	}

	var kind ExprKind
	switch kw.Kind {
	case TokenHashTable:
		kind = &HashTable{Columns: args[0], Rows: args[1]}
	case TokenHashDate:
		kind = &HashDate{Year: args[0], Month: args[1], Day: args[2]}
	case TokenHashTime:
		kind = &HashTime{Hour: args[0], Minute: args[1], Second: args[2]}
	case TokenHashDateTime:
		kind = &HashDateTime{
			Year: args[0], Month: args[1], Day: args[2],
			Hour: args[3], Minute: args[4], Second: args[5],
		}
	case TokenHashDateTimeZone:
		kind = &HashDateTimeZone{
			Year: args[0], Month: args[1], Day: args[2],
			Hour: args[3], Minute: args[4], Second: args[5],
			OffsetHours: args[6], OffsetMinutes: args[7],
		}
	case TokenHashDuration:
		kind = &HashDuration{Days: args[0], Hours: args[1], Minutes: args[2], Seconds: args[3]}
	}
	return &Expr{Kind: kind, Span: kw.Span.Merge(closing.Span)}, nil
}
