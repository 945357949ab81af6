package pqm

import (
	"strings"
)

const (
	// largeEstimate is the width reported for let, if, try and function
	// nodes so that anything containing one expands.
	largeEstimate = 200
	// defaultEstimate covers nodes the estimator does not measure.
	defaultEstimate = 50
	// complexWidth is the child width above which a collection counts as
	// complex.
	complexWidth = 30
)

// estimate approximates the single-line width of e.
func (f *Formatter) estimate(e *Expr) int {
	switch k := e.Kind.(type) {
	case *NullLit:
		return 4
	case *LogicalLit:
		if k.Value {
			return 4
		}
		return 5
	case *NumberLit:
		return len(formatNumber(k.Value))
	case *TextLit:
		return displayWidth(quoteText(k.Value))
	case *Ident:
		return displayWidth(k.Name)
	case *QuotedIdent:
		return displayWidth(quoteIdentifier(k.Name))
	case *Underscore:
		return 1
	case *Let, *If, *Try, *Function:
		return largeEstimate
	case *Each:
		return 5 + f.estimate(k.Body)
	case *ErrorExpr:
		return 6 + f.estimate(k.Value)
	case *Call:
		return f.estimate(k.Callee) + 2 + f.estimateSeq(k.Args)
	case *Record:
		return 2 + f.estimateFields(k.Fields)
	case *List:
		return 2 + f.estimateSeq(k.Items)
	case *FieldAccess:
		n := displayWidth(identName(k.Field)) + 2
		if !k.Implicit {
			n += f.estimate(k.Target)
		}
		if k.Optional {
			n++
		}
		return n
	case *FieldProjection:
		n := displayWidth(projectionText(k.Fields))
		if !k.Implicit {
			n += f.estimate(k.Target)
		}
		if k.Optional {
			n++
		}
		return n
	case *ItemAccess:
		n := f.estimate(k.Target) + f.estimate(k.Index) + 2
		if k.Optional {
			n++
		}
		return n
	case *Range:
		return f.estimate(k.From) + 2 + f.estimate(k.To)
	case *Binary:
		prec := k.Op.Precedence()
		var right int
		if te, ok := k.Right.Kind.(*TypeExpr); ok && (k.Op == OpIs || k.Op == OpAs) {
			right = displayWidth(typeText(te.Type))
		} else {
			right = f.estimateOperand(k.Right, prec, true)
		}
		return f.estimateOperand(k.Left, prec, false) + len(k.Op.String()) + 2 + right
	case *Metadata:
		prec := OpMeta.Precedence()
		return f.estimateOperand(k.Value, prec, false) + 6 + f.estimateOperand(k.Meta, prec, true)
	case *Unary:
		if k.Op == OpNot {
			return 4 + f.estimate(k.Operand)
		}
		return 1 + f.estimate(k.Operand)
	case *Paren:
		return f.parensWidth() + f.estimate(k.Inner)
	case *TypeExpr:
		return 5 + displayWidth(typeText(k.Type))
	case *HashTable:
		return 8 + f.estimateSeq([]*Expr{k.Columns, k.Rows})
	case *HashDate:
		return 7 + f.estimateSeq([]*Expr{k.Year, k.Month, k.Day})
	case *HashTime:
		return 7 + f.estimateSeq([]*Expr{k.Hour, k.Minute, k.Second})
	case *HashDateTime:
		return 11 + f.estimateSeq([]*Expr{k.Year, k.Month, k.Day, k.Hour, k.Minute, k.Second})
	case *HashDateTimeZone:
		return 15 + f.estimateSeq([]*Expr{k.Year, k.Month, k.Day, k.Hour, k.Minute, k.Second,
			k.OffsetHours, k.OffsetMinutes})
	case *HashDuration:
		return 11 + f.estimateSeq([]*Expr{k.Days, k.Hours, k.Minutes, k.Seconds})
	}
	return defaultEstimate
}

// estimateOperand is the width of an operator child, counting the
// parentheses formatOperand adds.
func (f *Formatter) estimateOperand(e *Expr, parentPrec int, right bool) int {
	if needsParens(e, parentPrec, right) {
		return f.parensWidth() + f.estimate(e)
	}
	return f.estimate(e)
}

func (f *Formatter) parensWidth() int {
	if f.cfg.SpaceInParens {
		return 4
	}
	return 2
}

// estimateSeq is the width of items joined by ", ".
func (f *Formatter) estimateSeq(items []*Expr) int {
	n := 0
	for i, item := range items {
		if i > 0 {
			n += 2
		}
		n += f.estimate(item)
	}
	return n
}

// estimateFields is the width of name = value pairs joined by ", ".
func (f *Formatter) estimateFields(fields []*RecordField) int {
	n := 0
	for i, fld := range fields {
		if i > 0 {
			n += 2
		}
		n += displayWidth(identName(fld.Name)) + 3 + f.estimate(fld.Value)
	}
	if f.cfg.SpaceInBrackets {
		n += 2
	}
	return n
}

// estimateLet is the width of l rendered on one line.
func (f *Formatter) estimateLet(l *Let) int {
	n := 8 // "let " and " in "
	for _, b := range l.Bindings {
		n += displayWidth(identName(b.Name)) + 3 + f.estimate(b.Value) + 2
	}
	return n + f.estimate(l.Body)
}

// estimateIf is the width of i rendered on one line.
func (f *Formatter) estimateIf(i *If) int {
	return 15 + f.estimate(i.Cond) + f.estimate(i.Then) + f.estimate(i.Else)
}

// isComplex reports whether e should be laid out over several lines
// regardless of the space left on the current one.
func (f *Formatter) isComplex(e *Expr) bool {
	switch k := e.Kind.(type) {
	case *Let, *If, *Try, *Function:
		return true
	case *Record:
		values := make([]*Expr, len(k.Fields))
		for i, fld := range k.Fields {
			values[i] = fld.Value
		}
		return f.isComplexCollection(values)
	case *List:
		return f.isComplexCollection(k.Items)
	case *Call:
		return f.isComplexCollection(k.Args)
	}
	return false
}

func (f *Formatter) isComplexCollection(items []*Expr) bool {
	if len(items) > f.cfg.MultilineThreshold {
		return true
	}
	for _, item := range items {
		if f.isComplex(item) || f.estimate(item) > complexWidth {
			return true
		}
	}
	return false
}

func (f *Formatter) anyComplex(items []*Expr) bool {
	for _, item := range items {
		if f.isComplex(item) {
			return true
		}
	}
	return false
}

func (f *Formatter) allSimple(items []*Expr) bool {
	for _, item := range items {
		if !isSimple(item) {
			return false
		}
	}
	return true
}

// isSimple reports whether e is a literal, a name, or an access chain on
// one.
func isSimple(e *Expr) bool {
	switch k := e.Kind.(type) {
	case *NullLit, *LogicalLit, *NumberLit, *TextLit, *Ident, *QuotedIdent,
		*Underscore, *TypeExpr:
		return true
	case *FieldAccess:
		return isSimple(k.Target)
	case *FieldProjection:
		return isSimple(k.Target)
	case *ItemAccess:
		return isSimple(k.Target) && isSimple(k.Index)
	}
	return false
}

// typeText renders a type without the type keyword.
func typeText(t *TypeAnnotation) string {
	if t == nil {
		return "any"
	}
	switch k := t.Kind.(type) {
	case *PrimitiveType:
		return k.Name.String()
	case *ListType:
		if k.Item == nil {
			return "list"
		}
		return "{" + typeText(k.Item) + "}"
	case *RecordType:
		if k.Bare {
			return "record"
		}
		return fieldTypesText(k.Fields, k.Open)
	case *TableType:
		if k.Bare {
			return "table"
		}
		return "table " + fieldTypesText(k.Fields, k.Open)
	case *FunctionType:
		if k.Bare {
			return "function"
		}
		return "function " + functionHeader(k.Params, k.Return)
	case *NullableType:
		return "nullable " + typeText(k.Inner)
	case *CustomType:
		return k.Name
	}
	return "any"
}

// fieldTypesText renders [a = T, optional b, ...]. Fields of type any omit
// the = any.
func fieldTypesText(fields []*FieldType, open bool) string {
	parts := make([]string, 0, len(fields)+1)
	for _, fld := range fields {
		var sb strings.Builder
		if fld.Optional {
			sb.WriteString("optional ")
		}
		sb.WriteString(identName(fld.Name))
		if !isAnyType(fld.Type) {
			sb.WriteString(" = ")
			sb.WriteString(typeText(fld.Type))
		}
		parts = append(parts, sb.String())
	}
	if open {
		parts = append(parts, "...")
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// functionHeader renders (params) as R, shared by function values and
// function types.
func functionHeader(params []*Param, ret *TypeAnnotation) string {
	parts := make([]string, len(params))
	for i, param := range params {
		var sb strings.Builder
		if param.Optional {
			sb.WriteString("optional ")
		}
		sb.WriteString(identName(param.Name))
		if param.Type != nil {
			sb.WriteString(" as ")
			sb.WriteString(typeText(param.Type))
		}
		parts[i] = sb.String()
	}
	header := "(" + strings.Join(parts, ", ") + ")"
	if ret != nil {
		header += " as " + typeText(ret)
	}
	return header
}
