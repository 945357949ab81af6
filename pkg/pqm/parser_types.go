package pqm

import "strings"

// parseType parses a type in annotation position.
func (p *parser) parseType() (*TypeAnnotation, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	tok := p.current()
	switch tok.Kind {
	case TokenIdentifier:
		return p.parseNamedType()
	case TokenNull:
		p.advance()
		return &TypeAnnotation{Kind: &PrimitiveType{Name: TypeNull}, Span: tok.Span}, nil
	case TokenType:
		p.advance()
		return &TypeAnnotation{Kind: &PrimitiveType{Name: TypeType}, Span: tok.Span}, nil
	case TokenLeftBrace:
		return p.parseListType(tok.Span)
	case TokenLeftBracket:
		fields, open, closing, err := p.parseFieldTypes()
		if err != nil {
			return nil, err
		}
		return &TypeAnnotation{
			Kind: &RecordType{Fields: fields, Open: open},
			Span: tok.Span.Merge(closing),
		}, nil
	}
	return nil, p.unexpected("type")
}

func (p *parser) parseNamedType() (*TypeAnnotation, error) {
	tok := p.advance()
	span := tok.Span

	// followedBy skips trivia when the next token is kind, and otherwise
	// leaves the cursor where it was.
	followedBy := func(kind TokenKind) bool {
		save := p.pos
		p.skipTrivia()
		if p.at(kind) {
			return true
		}
		p.pos = save
		return false
	}

	switch tok.Text {
	case "list":
		if !followedBy(TokenLeftBrace) {
			return &TypeAnnotation{Kind: &ListType{}, Span: span}, nil
		}
		return p.parseListType(span)

	case "record", "table":
		if !followedBy(TokenLeftBracket) {
			if tok.Text == "record" {
				return &TypeAnnotation{Kind: &RecordType{Bare: true}, Span: span}, nil
			}
			return &TypeAnnotation{Kind: &TableType{Bare: true}, Span: span}, nil
		}
		fields, open, closing, err := p.parseFieldTypes()
		if err != nil {
			return nil, err
		}
		span = span.Merge(closing)
		if tok.Text == "record" {
			return &TypeAnnotation{Kind: &RecordType{Fields: fields, Open: open}, Span: span}, nil
		}
		return &TypeAnnotation{Kind: &TableType{Fields: fields, Open: open}, Span: span}, nil

	case "function":
		if !followedBy(TokenLeftParen) {
			return &TypeAnnotation{Kind: &FunctionType{Bare: true}, Span: span}, nil
		}
		p.advance() // (
		p.skipTrivia()
		params, err := p.parseParams()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokenRightParen); err != nil {
			return nil, err
		}
		p.skipTrivia()
		if _, err := p.expect(TokenAs); err != nil {
			return nil, err
		}
		p.skipTrivia()
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &TypeAnnotation{
			Kind: &FunctionType{Params: params, Return: ret},
			Span: span.Merge(ret.Span),
		}, nil

	case "nullable":
		p.skipTrivia()
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &TypeAnnotation{Kind: &NullableType{Inner: inner}, Span: span.Merge(inner.Span)}, nil
	}

	if prim, ok := primitivesByName[tok.Text]; ok {
		return &TypeAnnotation{Kind: &PrimitiveType{Name: prim}, Span: span}, nil
	}
	return &TypeAnnotation{Kind: &CustomType{Name: tok.Text}, Span: span}, nil
}

// parseListType parses {T} with the cursor on the opening brace.
func (p *parser) parseListType(start Span) (*TypeAnnotation, error) {
	p.advance() // {
	p.skipTrivia()
	item, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipTrivia()
	closing, err := p.expect(TokenRightBrace)
	if err != nil {
		return nil, err
	}
	return &TypeAnnotation{Kind: &ListType{Item: item}, Span: start.Merge(closing.Span)}, nil
}

// parseFieldTypes parses [optional a = T, b, ...] with the cursor on the
// opening bracket. Fields without a type are any.
func (p *parser) parseFieldTypes() (fields []*FieldType, open bool, closing Span, err error) {
	p.advance() // [
	for {
		p.skipTrivia()
		if p.at(TokenRightBracket) {
			break
		}
		if p.at(TokenEllipsis) {
			p.advance()
			p.skipTrivia()
			open = true
			break
		}

		field := &FieldType{}
		start := p.current().Span
		if p.atOptionalKeyword() {
			field.Optional = true
			p.advance()
			p.skipTrivia()
		}
		if field.Name, err = p.parseGeneralizedIdentifier(); err != nil {
			return nil, false, Span{}, err
		}
		p.skipTrivia()
		if p.at(TokenEquals) {
			p.advance()
			p.skipTrivia()
			if field.Type, err = p.parseType(); err != nil {
				return nil, false, Span{}, err
			}
			p.skipTrivia()
		} else {
			field.Type = &TypeAnnotation{Kind: &PrimitiveType{Name: TypeAny}, Span: field.Name.Span}
		}
		field.Span = start.Merge(field.Type.Span)
		fields = append(fields, field)

		if !p.at(TokenComma) {
			break
		}
		p.advance()
	}
	tok, err := p.expect(TokenRightBracket)
	if err != nil {
		return nil, false, Span{}, err
	}
	return fields, open, tok.Span, nil
}

// parseGeneralizedIdentifier parses a name in field position. Keywords are
// accepted, and several words on one line separated by spaces form a single
// name (Date accessed, Column 1).
func (p *parser) parseGeneralizedIdentifier() (Identifier, error) {
	tok := p.current()
	if tok.Kind == TokenQuotedIdentifier {
		p.advance()
		return Identifier{Name: tok.Text, Quoted: true, Span: tok.Span}, nil
	}
	if !isNamePart(tok, true) {
		return Identifier{}, p.unexpected("identifier")
	}
	p.advance()

	parts := []string{tok.Text}
	span := tok.Span
	for p.at(TokenWhitespace) {
		save := p.pos
		p.advance()
		next := p.current()
		if !isNamePart(next, false) {
			p.pos = save
			break
		}
		p.advance()
		parts = append(parts, next.Text)
		span = span.Merge(next.Span)
	}
	return Identifier{Name: strings.Join(parts, " "), Span: span}, nil
}

func isNamePart(tok Token, first bool) bool {
	switch {
	case tok.Kind == TokenIdentifier, tok.Kind.IsKeyword():
		return true
	case tok.Kind == TokenNumber && !first:
		return strings.Trim(tok.Text, "0123456789") == ""
	}
	return false
}

// parseBracket parses a [ in expression position: a record literal when
// the content starts with name =, otherwise an implicit field access or
// projection on _.
func (p *parser) parseBracket() (*Expr, error) {
	open := p.advance() // [
	afterOpen := p.pos

	p.skipTrivia()
	if p.at(TokenRightBracket) {
		closing := p.advance()
		return &Expr{Kind: &Record{}, Span: open.Span.Merge(closing.Span)}, nil
	}
	if p.isRecordLiteral() {
		p.pos = afterOpen
		return p.parseRecord(open)
	}

	target := &Expr{Kind: &Underscore{}, Span: open.Span}

	if p.at(TokenLeftBracket) {
		fields, err := p.parseProjectionFields()
		if err != nil {
			return nil, err
		}
		closing, err := p.expect(TokenRightBracket)
		if err != nil {
			return nil, err
		}
		span := open.Span.Merge(closing.Span)
		proj := &FieldProjection{Target: target, Fields: fields, Implicit: true}
		proj.Optional = p.optionalMarker(&span)
		return &Expr{Kind: proj, Span: span}, nil
	}

	var names []Identifier
	for {
		name, err := p.parseGeneralizedIdentifier()
		if err != nil {
			return nil, err
		}
		names = append(names, name)
		p.skipTrivia()
		if !p.at(TokenComma) {
			break
		}
		p.advance()
		p.skipTrivia()
	}
	closing, err := p.expect(TokenRightBracket)
	if err != nil {
		return nil, err
	}
	span := open.Span.Merge(closing.Span)
	optional := p.optionalMarker(&span)

	if len(names) == 1 {
		return &Expr{
			Kind: &FieldAccess{Target: target, Field: names[0], Optional: optional, Implicit: true},
			Span: span,
		}, nil
	}

	// [a, b] selects several fields into a new record.
	fields := make([]*RecordField, len(names))
	for i, name := range names {
		fields[i] = &RecordField{
			Name: name,
			Value: &Expr{
				Kind: &FieldAccess{
					Target:   &Expr{Kind: &Underscore{}, Span: open.Span},
					Field:    name,
					Optional: optional,
				},
				Span: name.Span,
			},
			Span: name.Span,
		}
	}
	return &Expr{Kind: &Record{Fields: fields}, Span: span}, nil
}

func (p *parser) parseRecord(open Token) (*Expr, error) {
	members, _, err := p.parseMembers(TokenRightBracket, p.parseGeneralizedIdentifier)
	if err != nil {
		return nil, err
	}
	closing, err := p.expect(TokenRightBracket)
	if err != nil {
		return nil, err
	}
	fields := make([]*RecordField, len(members))
	for i, m := range members {
		fields[i] = &RecordField{
			Name:             m.name,
			Value:            m.value,
			Span:             m.span,
			Leading:          m.leading,
			Trailing:         m.trailing,
			BlankLinesBefore: m.blank,
		}
	}
	return &Expr{Kind: &Record{Fields: fields}, Span: open.Span.Merge(closing.Span)}, nil
}

// isRecordLiteral looks for name = after a [. The cursor is restored.
func (p *parser) isRecordLiteral() bool {
	save := p.pos
	defer func() { p.pos = save }()
	if _, err := p.parseGeneralizedIdentifier(); err != nil {
		return false
	}
	p.skipTrivia()
	return p.at(TokenEquals)
}

// isFunctionDefinition scans from just after a ( to its matching ) and
// reports whether => follows, directly or after an as type annotation. The
// caller restores the cursor.
func (p *parser) isFunctionDefinition() bool {
	for depth := 1; depth > 0; p.advance() {
		switch p.current().Kind {
		case TokenEOF:
			return false
		case TokenLeftParen:
			depth++
		case TokenRightParen:
			depth--
		}
	}
	p.skipTrivia()
	switch p.current().Kind {
	case TokenFatArrow:
		return true
	case TokenAs:
		p.advance()
		return p.skipTypeForLookahead()
	}
	return false
}

// skipTypeForLookahead skips the tokens of a return type and reports
// whether => follows it.
func (p *parser) skipTypeForLookahead() bool {
	depth := 0
	for ; ; p.advance() {
		p.skipTrivia()
		switch p.current().Kind {
		case TokenEOF:
			return false
		case TokenFatArrow:
			if depth == 0 {
				return true
			}
		case TokenLeftParen, TokenLeftBracket, TokenLeftBrace:
			depth++
		case TokenRightParen, TokenRightBracket, TokenRightBrace:
			if depth == 0 {
				return false
			}
			depth--
		case TokenIdentifier, TokenNull, TokenType, TokenAs:
		default:
			if depth == 0 {
				return false
			}
		}
	}
}
