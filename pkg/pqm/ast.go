package pqm

// Document is the root of a parsed program: exactly one expression.
type Document struct {
	Expr *Expr
	Span Span
}

// TriviaKind distinguishes the comment forms kept on the tree.
type TriviaKind int

const (
	LineComment TriviaKind = iota
	BlockComment
)

// Trivia is a comment attached to a node.
type Trivia struct {
	Kind TriviaKind
	Text string
	// OwnLine is set when a newline separated the comment from whatever came
	// before it.
	OwnLine bool
	Span    Span
}

// Expr is an expression node. Whitespace is not retained; the formatter
// recomputes it.
type Expr struct {
	Kind     ExprKind
	Span     Span
	Leading  []Trivia
	Trailing []Trivia
}

// ExprKind is implemented by every expression variant.
type ExprKind interface {
	exprKind()
}

type NullLit struct{}

type LogicalLit struct {
	Value bool
}

type NumberLit struct {
	Value float64
}

type TextLit struct {
	Value string
}

// Ident is a plain identifier. Dotted names (Table.SelectRows) and inclusive
// references (@Fib) keep their full spelling in Name.
type Ident struct {
	Name string
}

type QuotedIdent struct {
	Name string
}

type Let struct {
	Bindings []*Binding
	Body     *Expr
}

type If struct {
	Cond *Expr
	Then *Expr
	Else *Expr
}

type Try struct {
	Body      *Expr
	Otherwise *Expr // nil without an otherwise clause
}

type ErrorExpr struct {
	Value *Expr
}

// Each is sugar for a one-parameter function whose parameter is _.
type Each struct {
	Body *Expr
}

type Function struct {
	Params     []*Param
	ReturnType *TypeAnnotation
	Body       *Expr
}

type Call struct {
	Callee *Expr
	Args   []*Expr
}

type Record struct {
	Fields []*RecordField
}

type List struct {
	Items []*Expr
}

// FieldAccess is target[Field]. Implicit accesses ([Field] with no
// receiver) use an Underscore target and render without it.
type FieldAccess struct {
	Target   *Expr
	Field    Identifier
	Optional bool
	Implicit bool
}

// FieldProjection is target[[a], [b]].
type FieldProjection struct {
	Target   *Expr
	Fields   []Identifier
	Optional bool
	Implicit bool
}

type ItemAccess struct {
	Target   *Expr
	Index    *Expr
	Optional bool
}

// Range is a from..to element of a list.
type Range struct {
	From *Expr
	To   *Expr
}

type Binary struct {
	Op    BinaryOp
	Left  *Expr
	Right *Expr
}

type Unary struct {
	Op      UnaryOp
	Operand *Expr
}

type Paren struct {
	Inner *Expr
}

type TypeExpr struct {
	Type *TypeAnnotation
}

// Metadata is value meta record.
type Metadata struct {
	Value *Expr
	Meta  *Expr
}

// Underscore is the implicit parameter of each expressions.
type Underscore struct{}

type HashTable struct {
	Columns *Expr
	Rows    *Expr
}

type HashDate struct {
	Year, Month, Day *Expr
}

type HashTime struct {
	Hour, Minute, Second *Expr
}

type HashDateTime struct {
	Year, Month, Day, Hour, Minute, Second *Expr
}

type HashDateTimeZone struct {
	Year, Month, Day, Hour, Minute, Second, OffsetHours, OffsetMinutes *Expr
}

type HashDuration struct {
	Days, Hours, Minutes, Seconds *Expr
}

func (*NullLit) exprKind()          {}
func (*LogicalLit) exprKind()       {}
func (*NumberLit) exprKind()        {}
func (*TextLit) exprKind()          {}
func (*Ident) exprKind()            {}
func (*QuotedIdent) exprKind()      {}
func (*Let) exprKind()              {}
func (*If) exprKind()               {}
func (*Try) exprKind()              {}
func (*ErrorExpr) exprKind()        {}
func (*Each) exprKind()             {}
func (*Function) exprKind()         {}
func (*Call) exprKind()             {}
func (*Record) exprKind()           {}
func (*List) exprKind()             {}
func (*FieldAccess) exprKind()      {}
func (*FieldProjection) exprKind()  {}
func (*ItemAccess) exprKind()       {}
func (*Range) exprKind()            {}
func (*Binary) exprKind()           {}
func (*Unary) exprKind()            {}
func (*Paren) exprKind()            {}
func (*TypeExpr) exprKind()         {}
func (*Metadata) exprKind()         {}
func (*Underscore) exprKind()       {}
func (*HashTable) exprKind()        {}
func (*HashDate) exprKind()         {}
func (*HashTime) exprKind()         {}
func (*HashDateTime) exprKind()     {}
func (*HashDateTimeZone) exprKind() {}
func (*HashDuration) exprKind()     {}

// Identifier is a name in binding, field or parameter position.
type Identifier struct {
	Name   string
	Quoted bool
	Span   Span
}

// Binding is one name = value pair of a let expression.
type Binding struct {
	Name     Identifier
	Value    *Expr
	Span     Span
	Leading  []Trivia
	Trailing []Trivia
	// BlankLinesBefore counts empty source lines directly above the binding.
	BlankLinesBefore int
}

// RecordField is one name = value pair of a record literal.
type RecordField struct {
	Name             Identifier
	Value            *Expr
	Span             Span
	Leading          []Trivia
	Trailing         []Trivia
	BlankLinesBefore int
}

// Param is a function parameter.
type Param struct {
	Name     Identifier
	Type     *TypeAnnotation // nil when unannotated
	Optional bool
	Span     Span
}

// BinaryOp is a binary operator.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSubtract
	OpMultiply
	OpDivide
	OpConcat
	OpEqual
	OpNotEqual
	OpLess
	OpLessEqual
	OpGreater
	OpGreaterEqual
	OpAnd
	OpOr
	OpIs
	OpAs
	OpCoalesce
	OpMeta
)

var binaryOps = map[TokenKind]BinaryOp{
	TokenPlus:             OpAdd,
	TokenMinus:            OpSubtract,
	TokenStar:             OpMultiply,
	TokenSlash:            OpDivide,
	TokenAmpersand:        OpConcat,
	TokenEquals:           OpEqual,
	TokenNotEquals:        OpNotEqual,
	TokenLess:             OpLess,
	TokenLessEquals:       OpLessEqual,
	TokenGreater:          OpGreater,
	TokenGreaterEquals:    OpGreaterEqual,
	TokenAnd:              OpAnd,
	TokenOr:               OpOr,
	TokenIs:               OpIs,
	TokenAs:               OpAs,
	TokenQuestionQuestion: OpCoalesce,
	TokenMeta:             OpMeta,
}

func (op BinaryOp) String() string {
	switch op {
	case OpAdd:
		return "+"
	case OpSubtract:
		return "-"
	case OpMultiply:
		return "*"
	case OpDivide:
		return "/"
	case OpConcat:
		return "&"
	case OpEqual:
		return "="
	case OpNotEqual:
		return "<>"
	case OpLess:
		return "<"
	case OpLessEqual:
		return "<="
	case OpGreater:
		return ">"
	case OpGreaterEqual:
		return ">="
	case OpAnd:
		return "and"
	case OpOr:
		return "or"
	case OpIs:
		return "is"
	case OpAs:
		return "as"
	case OpCoalesce:
		return "??"
	case OpMeta:
		return "meta"
	}
	return "?"
}

// Precedence returns the binding strength of op, 1 (meta) through 8 (* and /).
func (op BinaryOp) Precedence() int {
	switch op {
	case OpMeta:
		return 1
	case OpCoalesce:
		return 2
	case OpOr:
		return 3
	case OpAnd:
		return 4
	case OpEqual, OpNotEqual, OpLess, OpLessEqual, OpGreater, OpGreaterEqual, OpIs, OpAs:
		return 5
	case OpConcat:
		return 6
	case OpAdd, OpSubtract:
		return 7
	case OpMultiply, OpDivide:
		return 8
	}
	return 0
}

// UnaryOp is a prefix operator.
type UnaryOp int

const (
	OpNegate UnaryOp = iota
	OpPositive
	OpNot
)

func (op UnaryOp) String() string {
	switch op {
	case OpNegate:
		return "-"
	case OpPositive:
		return "+"
	}
	return "not"
}

// Walk calls fn for e and every expression below it in source order. It
// stops descending into a subtree when fn returns false.
func Walk(e *Expr, fn func(*Expr) bool) {
	if e == nil || !fn(e) {
		return
	}
	for _, child := range children(e) {
		Walk(child, fn)
	}
}

func children(e *Expr) []*Expr {
	switch k := e.Kind.(type) {
	case *Let:
		var out []*Expr
		for _, b := range k.Bindings {
			out = append(out, b.Value)
		}
		return append(out, k.Body)
	case *If:
		return []*Expr{k.Cond, k.Then, k.Else}
	case *Try:
		if k.Otherwise == nil {
			return []*Expr{k.Body}
		}
		return []*Expr{k.Body, k.Otherwise}
	case *ErrorExpr:
		return []*Expr{k.Value}
	case *Each:
		return []*Expr{k.Body}
	case *Function:
		return []*Expr{k.Body}
	case *Call:
		return append([]*Expr{k.Callee}, k.Args...)
	case *Record:
		out := make([]*Expr, 0, len(k.Fields))
		for _, f := range k.Fields {
			out = append(out, f.Value)
		}
		return out
	case *List:
		return k.Items
	case *FieldAccess:
		return []*Expr{k.Target}
	case *FieldProjection:
		return []*Expr{k.Target}
	case *ItemAccess:
		return []*Expr{k.Target, k.Index}
	case *Range:
		return []*Expr{k.From, k.To}
	case *Binary:
		return []*Expr{k.Left, k.Right}
	case *Unary:
		return []*Expr{k.Operand}
	case *Paren:
		return []*Expr{k.Inner}
	case *Metadata:
		return []*Expr{k.Value, k.Meta}
	case *HashTable:
		return []*Expr{k.Columns, k.Rows}
	case *HashDate:
		return []*Expr{k.Year, k.Month, k.Day}
	case *HashTime:
		return []*Expr{k.Hour, k.Minute, k.Second}
	case *HashDateTime:
		return []*Expr{k.Year, k.Month, k.Day, k.Hour, k.Minute, k.Second}
	case *HashDateTimeZone:
		return []*Expr{k.Year, k.Month, k.Day, k.Hour, k.Minute, k.Second, k.OffsetHours, k.OffsetMinutes}
	case *HashDuration:
		return []*Expr{k.Days, k.Hours, k.Minutes, k.Seconds}
	}
	return nil
}
