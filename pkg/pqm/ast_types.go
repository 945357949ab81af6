package pqm

// TypeAnnotation is a type as written in a type expression, a parameter or
// return annotation, or the right operand of is/as.
type TypeAnnotation struct {
	Kind TypeKind
	Span Span
}

// TypeKind is implemented by every type variant.
type TypeKind interface {
	typeKind()
}

// PrimitiveType is one of the built-in type names.
type PrimitiveType struct {
	Name Primitive
}

// ListType is {Item}, or the bare list keyword when Item is nil.
type ListType struct {
	Item *TypeAnnotation
}

// RecordType is [fields], or the bare record keyword when Bare is set.
type RecordType struct {
	Fields []*FieldType
	Open   bool
	Bare   bool
}

// TableType is table [fields], or the bare table keyword when Bare is set.
type TableType struct {
	Fields []*FieldType
	Open   bool
	Bare   bool
}

// FunctionType is function (params) as Return, or the bare function keyword
// when Bare is set.
type FunctionType struct {
	Params []*Param
	Return *TypeAnnotation
	Bare   bool
}

type NullableType struct {
	Inner *TypeAnnotation
}

// CustomType is a type name that is not a primitive, e.g. Int64.Type.
type CustomType struct {
	Name string
}

func (*PrimitiveType) typeKind() {}
func (*ListType) typeKind()      {}
func (*RecordType) typeKind()    {}
func (*TableType) typeKind()     {}
func (*FunctionType) typeKind()  {}
func (*NullableType) typeKind()  {}
func (*CustomType) typeKind()    {}

// FieldType is one field of a record or table type.
type FieldType struct {
	Name     Identifier
	Type     *TypeAnnotation
	Optional bool
	Span     Span
}

// Primitive is a built-in type name.
type Primitive int

const (
	TypeAny Primitive = iota
	TypeAnyNonNull
	TypeNone
	TypeNull
	TypeLogical
	TypeNumber
	TypeTime
	TypeDate
	TypeDateTime
	TypeDateTimeZone
	TypeDuration
	TypeText
	TypeBinary
	TypeType
	TypeAction
)

var primitiveNames = map[Primitive]string{
	TypeAny:          "any",
	TypeAnyNonNull:   "anynonnull",
	TypeNone:         "none",
	TypeNull:         "null",
	TypeLogical:      "logical",
	TypeNumber:       "number",
	TypeTime:         "time",
	TypeDate:         "date",
	TypeDateTime:     "datetime",
	TypeDateTimeZone: "datetimezone",
	TypeDuration:     "duration",
	TypeText:         "text",
	TypeBinary:       "binary",
	TypeType:         "type",
	TypeAction:       "action",
}

var primitivesByName = map[string]Primitive{}

func init() {
	for p, name := range primitiveNames {
		primitivesByName[name] = p
	}
}

func (p Primitive) String() string {
	return primitiveNames[p]
}

// isAnyType reports whether t is the universal any type.
func isAnyType(t *TypeAnnotation) bool {
	if t == nil {
		return true
	}
	prim, ok := t.Kind.(*PrimitiveType)
	return ok && prim.Name == TypeAny
}
