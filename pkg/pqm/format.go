package pqm

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Formatter renders a parsed Document as canonical source.
type Formatter struct {
	buf    bytes.Buffer
	indent int
	col    int // display width written since the last newline
	cfg    Config
}

// NewFormatter creates a Formatter for one document.
func NewFormatter(cfg Config) *Formatter {
	return &Formatter{cfg: cfg}
}

// FormatDocument renders doc. The result always ends with a newline.
func (f *Formatter) FormatDocument(doc *Document) string {
	f.formatExpr(doc.Expr)
	out := trimTrailingWhitespace(f.buf.String())
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

// trimTrailingWhitespace strips spaces and tabs from the end of every line.
func trimTrailingWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

func (f *Formatter) write(s string) {
	f.buf.WriteString(s)
	if idx := strings.LastIndex(s, "\n"); idx >= 0 {
		f.col = displayWidth(s[idx+1:])
	} else {
		f.col += displayWidth(s)
	}
}

func (f *Formatter) newline() {
	f.buf.WriteByte('\n')
	f.col = 0
}

func (f *Formatter) writeIndent() {
	indent := f.cfg.IndentAt(f.indent)
	f.buf.WriteString(indent)
	f.col = len(indent)
}

func (f *Formatter) indented(fn func()) {
	f.indent++
	fn()
	f.indent--
}

// fits reports whether width more columns fit on the current line.
func (f *Formatter) fits(width int) bool {
	return f.col+width <= f.cfg.MaxLineLength
}

func displayWidth(s string) int {
	return runewidth.StringWidth(s)
}

func (f *Formatter) formatExpr(e *Expr) {
	f.writeLeading(e.Leading)
	f.formatKind(e)
	f.writeTrailing(e.Trailing)
}

// writeLeading flushes comments before a node. A line comment ends its
// line; a block comment stays inline.
func (f *Formatter) writeLeading(comments []Trivia) {
	for _, c := range comments {
		f.write(commentText(c))
		if c.Kind == LineComment {
			f.newline()
			f.writeIndent()
		} else {
			f.write(" ")
		}
	}
}

// writeTrailing flushes comments after a node. Comments that sat on their
// own line in the source, or follow a line comment, start a new line.
func (f *Formatter) writeTrailing(comments []Trivia) {
	afterLine := false
	for _, c := range comments {
		if c.OwnLine || afterLine {
			f.newline()
			f.writeIndent()
		} else {
			f.write(" ")
		}
		f.write(commentText(c))
		afterLine = c.Kind == LineComment
	}
}

func commentText(c Trivia) string {
	if c.Kind == BlockComment {
		return "/*" + c.Text + "*/"
	}
	text := strings.TrimRight(c.Text, " \t")
	if text == "" || strings.HasPrefix(text, " ") || strings.HasPrefix(text, "/") {
		return "//" + text
	}
	return "// " + text
}

func (f *Formatter) formatKind(e *Expr) {
	switch k := e.Kind.(type) {
	case *NullLit:
		f.write("null")
	case *LogicalLit:
		f.write(strconv.FormatBool(k.Value))
	case *NumberLit:
		f.write(formatNumber(k.Value))
	case *TextLit:
		f.write(quoteText(k.Value))
	case *Ident:
		f.write(k.Name)
	case *QuotedIdent:
		f.write(quoteIdentifier(k.Name))
	case *Underscore:
		f.write("_")
	case *Let:
		f.formatLet(k)
	case *If:
		f.formatIf(k)
	case *Try:
		f.write("try ")
		f.formatExpr(k.Body)
		if k.Otherwise != nil {
			f.write(" otherwise ")
			f.formatExpr(k.Otherwise)
		}
	case *ErrorExpr:
		f.write("error ")
		f.formatExpr(k.Value)
	case *Each:
		f.write("each ")
		f.formatExpr(k.Body)
	case *Function:
		f.formatFunction(k)
	case *Call:
		f.formatCall(k)
	case *Record:
		f.formatRecord(k)
	case *List:
		f.formatList(k)
	case *FieldAccess:
		if !k.Implicit {
			f.formatExpr(k.Target)
		}
		f.write("[" + identName(k.Field) + "]")
		f.writeOptional(k.Optional)
	case *FieldProjection:
		if !k.Implicit {
			f.formatExpr(k.Target)
		}
		f.write(projectionText(k.Fields))
		f.writeOptional(k.Optional)
	case *ItemAccess:
		f.formatExpr(k.Target)
		f.write("{")
		f.formatExpr(k.Index)
		f.write("}")
		f.writeOptional(k.Optional)
	case *Range:
		f.formatExpr(k.From)
		f.write("..")
		f.formatExpr(k.To)
	case *Binary:
		f.formatBinary(k)
	case *Metadata:
		f.formatOperand(k.Value, OpMeta.Precedence(), false)
		f.write(" meta ")
		f.formatOperand(k.Meta, OpMeta.Precedence(), true)
	case *Unary:
		f.write(k.Op.String())
		if k.Op == OpNot {
			f.write(" ")
		}
		f.formatExpr(k.Operand)
	case *Paren:
		f.writeParens(k.Inner)
	case *TypeExpr:
		f.write("type ")
		f.write(typeText(k.Type))
	case *HashTable:
		f.formatConstructor("#table", k.Columns, k.Rows)
	case *HashDate:
		f.formatConstructor("#date", k.Year, k.Month, k.Day)
	case *HashTime:
		f.formatConstructor("#time", k.Hour, k.Minute, k.Second)
	case *HashDateTime:
		f.formatConstructor("#datetime", k.Year, k.Month, k.Day, k.Hour, k.Minute, k.Second)
	case *HashDateTimeZone:
		f.formatConstructor("#datetimezone", k.Year, k.Month, k.Day, k.Hour, k.Minute, k.Second,
			k.OffsetHours, k.OffsetMinutes)
	case *HashDuration:
		f.formatConstructor("#duration", k.Days, k.Hours, k.Minutes, k.Seconds)
	}
}

// writeParens wraps e in parentheses, written the same way whether they came
// from the source or were added for precedence.
func (f *Formatter) writeParens(e *Expr) {
	f.write("(")
	if f.cfg.SpaceInParens {
		f.write(" ")
	}
	f.formatExpr(e)
	if f.cfg.SpaceInParens {
		f.write(" ")
	}
	f.write(")")
}

func (f *Formatter) writeOptional(optional bool) {
	if optional {
		f.write("?")
	}
}

func (f *Formatter) formatConstructor(name string, args ...*Expr) {
	f.write(name + "(")
	for i, arg := range args {
		if i > 0 {
			f.write(", ")
		}
		f.formatExpr(arg)
	}
	f.write(")")
}

func (f *Formatter) formatLet(l *Let) {
	if f.letFitsOnLine(l) {
		f.write("let")
		for i, b := range l.Bindings {
			if i == 0 {
				f.write(" ")
			} else {
				f.write(", ")
			}
			f.write(identName(b.Name) + " = ")
			f.formatExpr(b.Value)
		}
		f.write(" in ")
		f.formatExpr(l.Body)
		return
	}

	f.write("let")
	f.newline()
	f.indented(func() {
		f.formatEntries(bindingEntries(l.Bindings), true, false)
	})
	f.writeIndent()
	f.write("in")
	f.newline()
	f.indented(func() {
		f.writeIndent()
		f.formatExpr(l.Body)
	})
}

func (f *Formatter) letFitsOnLine(l *Let) bool {
	if f.cfg.AlwaysExpandLet || len(l.Body.Leading) > 0 {
		return false
	}
	for _, b := range l.Bindings {
		if len(b.Leading) > 0 || len(b.Trailing) > 0 || f.isComplex(b.Value) {
			return false
		}
	}
	return f.fits(f.estimateLet(l))
}

// entry is a name = value line of a multi-line let or record.
type entry struct {
	name     string
	value    *Expr
	leading  []Trivia
	trailing []Trivia
	blank    int
}

func bindingEntries(bindings []*Binding) []entry {
	entries := make([]entry, len(bindings))
	for i, b := range bindings {
		entries[i] = entry{identName(b.Name), b.Value, b.Leading, b.Trailing, b.BlankLinesBefore}
	}
	return entries
}

func fieldEntries(fields []*RecordField) []entry {
	entries := make([]entry, len(fields))
	for i, fld := range fields {
		entries[i] = entry{identName(fld.Name), fld.Value, fld.Leading, fld.Trailing, fld.BlankLinesBefore}
	}
	return entries
}

// formatEntries writes one entry per line at the current indentation.
// inlineFunctions keeps function values on the name's line.
func (f *Formatter) formatEntries(entries []entry, inlineFunctions, trailingComma bool) {
	nameWidth := 0
	if f.cfg.AlignEquals {
		for _, e := range entries {
			nameWidth = max(nameWidth, displayWidth(e.name))
		}
	}

	for i, e := range entries {
		if i > 0 && f.cfg.PreserveBlankLines {
			for range min(e.blank, f.cfg.MaxBlankLines) {
				f.newline()
			}
		}
		for _, c := range e.leading {
			f.writeIndent()
			f.write(commentText(c))
			f.newline()
		}

		f.writeIndent()
		f.write(e.name)
		if pad := nameWidth - displayWidth(e.name); pad > 0 {
			f.write(strings.Repeat(" ", pad))
		}
		f.write(" = ")
		f.formatEntryValue(e.value, inlineFunctions)

		if i < len(entries)-1 || trailingComma {
			f.write(",")
		}
		f.writeTrailing(e.trailing)
		f.newline()
	}
}

// formatEntryValue writes the value after name =, moving it to a
// continuation line when it is complex or would overflow.
func (f *Formatter) formatEntryValue(value *Expr, inlineFunctions bool) {
	if _, ok := value.Kind.(*Function); ok && inlineFunctions {
		f.formatExpr(value)
		return
	}
	if f.isComplex(value) || !f.fits(f.estimate(value)) {
		f.indented(func() {
			f.newline()
			f.writeIndent()
			f.formatExpr(value)
		})
		return
	}
	f.formatExpr(value)
}

func (f *Formatter) formatIf(i *If) {
	if !f.isComplex(i.Cond) && !f.isComplex(i.Then) && !f.isComplex(i.Else) &&
		f.fits(f.estimateIf(i)) {
		f.write("if ")
		f.formatExpr(i.Cond)
		f.write(" then ")
		f.formatExpr(i.Then)
		f.write(" else ")
		f.formatExpr(i.Else)
		return
	}

	f.write("if ")
	f.formatExpr(i.Cond)
	f.write(" then")
	f.indented(func() {
		f.newline()
		f.writeIndent()
		f.formatExpr(i.Then)
	})
	f.newline()
	f.writeIndent()

	if _, ok := i.Else.Kind.(*If); ok && len(i.Else.Leading) == 0 {
		f.write("else ")
		f.formatExpr(i.Else)
		return
	}
	f.write("else")
	f.indented(func() {
		f.newline()
		f.writeIndent()
		f.formatExpr(i.Else)
	})
}

func (f *Formatter) formatFunction(fn *Function) {
	f.write(functionHeader(fn.Params, fn.ReturnType) + " =>")

	if let, ok := fn.Body.Kind.(*Let); ok {
		if f.letInlinesAfterArrow(fn.Body, let) {
			f.write(" ")
			f.formatExpr(fn.Body)
			return
		}
		f.newline()
		if f.indent == 0 {
			f.formatExpr(fn.Body)
			return
		}
		f.indented(func() {
			f.writeIndent()
			f.formatExpr(fn.Body)
		})
		return
	}

	if f.isComplex(fn.Body) {
		f.indented(func() {
			f.newline()
			f.writeIndent()
			f.formatExpr(fn.Body)
		})
		return
	}
	f.write(" ")
	f.formatExpr(fn.Body)
}

func (f *Formatter) letInlinesAfterArrow(body *Expr, let *Let) bool {
	if f.cfg.AlwaysExpandLet || len(body.Leading) > 0 || len(let.Body.Leading) > 0 {
		return false
	}
	for _, b := range let.Bindings {
		if len(b.Leading) > 0 || len(b.Trailing) > 0 || f.isComplex(b.Value) {
			return false
		}
	}
	return f.fits(1 + f.estimateLet(let))
}

func (f *Formatter) formatCall(c *Call) {
	f.formatExpr(c.Callee)
	f.write("(")
	if len(c.Args) == 0 {
		f.write(")")
		return
	}

	multiline := f.anyComplex(c.Args) ||
		(!f.allSimple(c.Args) && len(c.Args) > f.cfg.MultilineThreshold) ||
		!f.fits(f.estimateSeq(c.Args)+1)
	if !multiline {
		f.formatInline(c.Args)
		f.write(")")
		return
	}
	f.formatItemLines(c.Args)
	f.write(")")
}

func (f *Formatter) formatRecord(r *Record) {
	if len(r.Fields) == 0 {
		f.write("[]")
		return
	}
	if !f.recordIsMultiline(r) {
		f.write("[")
		if f.cfg.SpaceInBrackets {
			f.write(" ")
		}
		for i, fld := range r.Fields {
			if i > 0 {
				f.write(", ")
			}
			f.write(identName(fld.Name) + " = ")
			f.formatExpr(fld.Value)
		}
		if f.cfg.SpaceInBrackets {
			f.write(" ")
		}
		f.write("]")
		return
	}

	f.write("[")
	f.newline()
	f.indented(func() {
		f.formatEntries(fieldEntries(r.Fields), false, f.cfg.TrailingComma)
	})
	f.writeIndent()
	f.write("]")
}

func (f *Formatter) recordIsMultiline(r *Record) bool {
	if f.cfg.AlwaysExpandRecords || len(r.Fields) > f.cfg.MultilineThreshold {
		return true
	}
	for _, fld := range r.Fields {
		if len(fld.Leading) > 0 || len(fld.Trailing) > 0 || f.isComplex(fld.Value) {
			return true
		}
	}
	return !f.fits(f.estimateFields(r.Fields) + 2)
}

func (f *Formatter) formatList(l *List) {
	if len(l.Items) == 0 {
		f.write("{}")
		return
	}

	multiline := f.cfg.AlwaysExpandLists ||
		f.anyComplex(l.Items) ||
		(!f.allSimple(l.Items) && len(l.Items) > f.cfg.MultilineThreshold) ||
		!f.fits(f.estimateSeq(l.Items)+2)
	if !multiline {
		f.write("{")
		if f.cfg.SpaceInBraces {
			f.write(" ")
		}
		f.formatInline(l.Items)
		if f.cfg.SpaceInBraces {
			f.write(" ")
		}
		f.write("}")
		return
	}

	f.write("{")
	f.formatItemLines(l.Items)
	f.write("}")
}

func (f *Formatter) formatInline(items []*Expr) {
	for i, item := range items {
		if i > 0 {
			f.write(", ")
		}
		f.formatExpr(item)
	}
}

// formatItemLines writes one item per line, one level in, and leaves the
// cursor indented for the closing delimiter.
func (f *Formatter) formatItemLines(items []*Expr) {
	f.newline()
	f.indented(func() {
		for i, item := range items {
			f.writeIndent()
			f.formatExpr(item)
			if i < len(items)-1 || f.cfg.TrailingComma {
				f.write(",")
			}
			f.newline()
		}
	})
	f.writeIndent()
}

func (f *Formatter) formatBinary(b *Binary) {
	prec := b.Op.Precedence()
	f.formatOperand(b.Left, prec, false)
	f.write(" " + b.Op.String() + " ")
	if te, ok := b.Right.Kind.(*TypeExpr); ok && (b.Op == OpIs || b.Op == OpAs) {
		f.writeLeading(b.Right.Leading)
		f.write(typeText(te.Type))
		f.writeTrailing(b.Right.Trailing)
		return
	}
	f.formatOperand(b.Right, prec, true)
}

// formatOperand parenthesizes an operator child only when the tree could
// not otherwise be read back: lower precedence, or equal precedence on the
// right of a left-associative operator.
func (f *Formatter) formatOperand(e *Expr, parentPrec int, right bool) {
	if needsParens(e, parentPrec, right) {
		f.writeParens(e)
		return
	}
	f.formatExpr(e)
}

func needsParens(e *Expr, parentPrec int, right bool) bool {
	prec, ok := operatorPrecedence(e)
	return ok && (prec < parentPrec || right && prec == parentPrec)
}

func operatorPrecedence(e *Expr) (int, bool) {
	switch k := e.Kind.(type) {
	case *Binary:
		return k.Op.Precedence(), true
	case *Metadata:
		return OpMeta.Precedence(), true
	}
	return 0, false
}

func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "#nan"
	case math.IsInf(v, 1):
		return "#infinity"
	case math.IsInf(v, -1):
		return "-#infinity"
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var textEscaper = strings.NewReplacer(
	`"`, `""`,
	"#(", "#(#)(",
	"\r", "#(cr)",
	"\n", "#(lf)",
	"\t", "#(tab)",
)

func quoteText(s string) string {
	return `"` + textEscaper.Replace(s) + `"`
}

func quoteIdentifier(name string) string {
	return `#"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func identName(id Identifier) string {
	if id.Quoted {
		return quoteIdentifier(id.Name)
	}
	return id.Name
}

func projectionText(fields []Identifier) string {
	parts := make([]string, len(fields))
	for i, fld := range fields {
		parts[i] = "[" + identName(fld) + "]"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
