package pqm

import (
	"context"
	"os"
	"testing"

	"github.com/dagger/testctx"
	"github.com/dagger/testctx/oteltest"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Exit(oteltest.Main(m))
}

type FormatSuite struct{}

func TestFormat(tT *testing.T) {
	testctx.New(tT,
		oteltest.WithTracing[*testing.T](),
		oteltest.WithLogging[*testing.T](),
	).RunTests(FormatSuite{})
}

type formatCase struct {
	name     string
	input    string
	expected string
}

func runFormatCases(t *testctx.T, cfg Config, tests []formatCase) {
	for _, tt := range tests {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			result, err := Format(tt.input, cfg)
			require.NoError(t, err)
			require.Equal(t, tt.expected, result)
		})
	}
}

func (FormatSuite) TestDefaultLayout(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultConfig(), []formatCase{
		{
			name:  "let always expands",
			input: `let x=1,y=2 in x+y`,
			expected: `let
    x = 1,
    y = 2
in
    x + y
`,
		},
		{
			name:  "record above threshold expands",
			input: `[A=1,B=2]`,
			expected: `[
    A = 1,
    B = 2
]
`,
		},
		{
			name:     "single field record stays inline",
			input:    `[A=1]`,
			expected: "[A = 1]\n",
		},
		{
			name:     "list of simple items stays inline",
			input:    `{1,2,3}`,
			expected: "{1, 2, 3}\n",
		},
		{
			name:     "empty collections",
			input:    `{ }`,
			expected: "{}\n",
		},
		{
			name:     "empty record",
			input:    `[ ]`,
			expected: "[]\n",
		},
		{
			name:     "call with simple arguments",
			input:    `f(a,b)`,
			expected: "f(a, b)\n",
		},
		{
			name:  "call with compound arguments expands",
			input: `f(a+1,b)`,
			expected: `f(
    a + 1,
    b
)
`,
		},
		{
			name:  "each argument expands the call",
			input: `Table.SelectRows(Source, each [A] > 1)`,
			expected: `Table.SelectRows(
    Source,
    each [A] > 1
)
`,
		},
		{
			name:     "simple if stays inline",
			input:    `if a then b else c`,
			expected: "if a then b else c\n",
		},
		{
			name:  "else if chains without extra indent",
			input: `if a then 1 else if b then 2 else 3`,
			expected: `if a then
    1
else if b then 2 else 3
`,
		},
		{
			name:     "function with simple body",
			input:    `(x)=>x+1`,
			expected: "(x) => x + 1\n",
		},
		{
			name:     "typed parameters and return type",
			input:    `(x as number, optional y as text) as number => x`,
			expected: "(x as number, optional y as text) as number => x\n",
		},
		{
			name:  "top level function body let is not indented",
			input: `(x) => let y = x in y`,
			expected: `(x) =>
let
    y = x
in
    y
`,
		},
		{
			name:  "function binding stays on its line",
			input: `let f = (x) => x * 2 in f(1)`,
			expected: `let
    f = (x) => x * 2
in
    f(1)
`,
		},
		{
			name:  "complex field value moves to a continuation line",
			input: `[a = let x = 1 in x]`,
			expected: `[
    a =
        let
            x = 1
        in
            x
]
`,
		},
		{
			name:     "try otherwise",
			input:    `try x otherwise 0`,
			expected: "try x otherwise 0\n",
		},
		{
			name:     "metadata",
			input:    `1 meta [a=1]`,
			expected: "1 meta [a = 1]\n",
		},
		{
			name:     "date constructor",
			input:    `#date(2020,1,2)`,
			expected: "#date(2020, 1, 2)\n",
		},
		{
			name:     "range",
			input:    `{1..10}`,
			expected: "{1..10}\n",
		},
		{
			name:     "implicit projection",
			input:    `each [[A],[B]]`,
			expected: "each [[A], [B]]\n",
		},
		{
			name:     "optional field access",
			input:    `r[A]?`,
			expected: "r[A]?\n",
		},
		{
			name:     "item access chain",
			input:    `Source{0}[Data]`,
			expected: "Source{0}[Data]\n",
		},
		{
			name:     "not operator",
			input:    `not  x`,
			expected: "not x\n",
		},
		{
			name:     "inclusive identifier",
			input:    `@Fib(n-1)`,
			expected: "@Fib(n - 1)\n",
		},
	})
}

func (FormatSuite) TestParentheses(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultConfig(), []formatCase{
		{
			name:     "higher precedence on the right needs none",
			input:    `1+2*3`,
			expected: "1 + 2 * 3\n",
		},
		{
			name:     "source parentheses are kept",
			input:    `(1+2)*3`,
			expected: "(1 + 2) * 3\n",
		},
		{
			name:     "right nested subtraction",
			input:    `1-(2-3)`,
			expected: "1 - (2 - 3)\n",
		},
	})

	num := func(v float64) *Expr { return &Expr{Kind: &NumberLit{Value: v}} }
	ident := func(name string) *Expr { return &Expr{Kind: &Ident{Name: name}} }
	bin := func(op BinaryOp, l, r *Expr) *Expr { return &Expr{Kind: &Binary{Op: op, Left: l, Right: r}} }

	trees := []struct {
		name     string
		expr     *Expr
		expected string
	}{
		{"lower precedence left child", bin(OpMultiply, bin(OpAdd, num(1), num(2)), num(3)), "(1 + 2) * 3\n"},
		{"higher precedence right child", bin(OpAdd, num(1), bin(OpMultiply, num(2), num(3))), "1 + 2 * 3\n"},
		{"equal precedence left child", bin(OpSubtract, bin(OpSubtract, num(1), num(2)), num(3)), "1 - 2 - 3\n"},
		{"equal precedence right child", bin(OpSubtract, num(1), bin(OpSubtract, num(2), num(3))), "1 - (2 - 3)\n"},
		{"logical operators", bin(OpAnd, bin(OpOr, ident("a"), ident("b")), ident("c")), "(a or b) and c\n"},
		{"coalesce under or", bin(OpOr, bin(OpCoalesce, ident("a"), ident("b")), ident("c")), "(a ?? b) or c\n"},
	}
	for _, tt := range trees {
		t.Run(tt.name, func(ctx context.Context, t *testctx.T) {
			out := NewFormatter(DefaultConfig()).FormatDocument(&Document{Expr: tt.expr})
			require.Equal(t, tt.expected, out)
		})
	}

	t.Run("added parentheses follow space_in_parens", func(ctx context.Context, t *testctx.T) {
		cfg := DefaultConfig()
		cfg.SpaceInParens = true

		meta := func(v, m *Expr) *Expr { return &Expr{Kind: &Metadata{Value: v, Meta: m}} }
		for _, tt := range []struct {
			expr     *Expr
			expected string
		}{
			{bin(OpMultiply, bin(OpAdd, num(1), num(2)), num(3)), "( 1 + 2 ) * 3\n"},
			{meta(ident("a"), meta(ident("b"), ident("c"))), "a meta ( b meta c )\n"},
		} {
			out := NewFormatter(cfg).FormatDocument(&Document{Expr: tt.expr})
			require.Equal(t, tt.expected, out)

			again, err := Format(out, cfg)
			require.NoError(t, err)
			require.Equal(t, out, again)
		}
	})
}

func (FormatSuite) TestLiterals(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultConfig(), []formatCase{
		{"hex number", `0x10`, "16\n"},
		{"trailing zeros", `1.50`, "1.5\n"},
		{"leading dot", `.5`, "0.5\n"},
		{"exponent", `1e3`, "1000\n"},
		{"large integral", `1e20`, "100000000000000000000\n"},
		{"infinity", `#infinity`, "#infinity\n"},
		{"negative infinity", `-#infinity`, "-#infinity\n"},
		{"nan", `#nan`, "#nan\n"},
		{"escaped quote", `"a""b"`, "\"a\"\"b\"\n"},
		{"control escapes", `"a#(cr,lf)b#(tab)"`, "\"a#(cr)#(lf)b#(tab)\"\n"},
		{"literal escape opener", `"#(#)(x"`, "\"#(#)(x\"\n"},
		{"unicode escape", `"#(00E9)"`, "\"é\"\n"},
		{"quoted identifier", `#"My Column"`, "#\"My Column\"\n"},
		{"quoted identifier with quote", `#"a""b"`, "#\"a\"\"b\"\n"},
		{"logical and null", `{true,false,null}`, "{true, false, null}\n"},
	})
}

func (FormatSuite) TestTypes(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultConfig(), []formatCase{
		{"is drops the type keyword", `x is type number`, "x is number\n"},
		{"as nullable", `x as nullable text`, "x as nullable text\n"},
		{"table type omits any", `type table [A = number, B = any]`, "type table [A = number, B]\n"},
		{"open record type", `type [optional A = text, ...]`, "type [optional A = text, ...]\n"},
		{"list type", `type {number}`, "type {number}\n"},
		{"function type", `type function (x as text) as number`, "type function (x as text) as number\n"},
		{"bare kinds", `{type list, type record, type table, type function}`, "{type list, type record, type table, type function}\n"},
		{"custom type", `Table.AddColumn(t, "n", each 1, Int64.Type)`, `Table.AddColumn(
    t,
    "n",
    each 1,
    Int64.Type
)
`},
	})
}

func (FormatSuite) TestComments(ctx context.Context, t *testctx.T) {
	runFormatCases(t, DefaultConfig(), []formatCase{
		{
			name: "binding comments",
			input: `// header
let
    a = 1, // one
    // before b
    b = 2
in
    a + b`,
			expected: `// header
let
    a = 1, // one
    // before b
    b = 2
in
    a + b
`,
		},
		{
			name:     "line comment gets a space",
			input:    "//note\nx",
			expected: "// note\nx\n",
		},
		{
			name:     "block comments stay inline",
			input:    "/* a */ x /* b */",
			expected: "/* a */ x /* b */\n",
		},
		{
			name:     "nested block comment",
			input:    "/* a /* b */ c */ x",
			expected: "/* a /* b */ c */ x\n",
		},
		{
			name:  "comment before body",
			input: "let a = 1 in\n// result\na",
			expected: `let
    a = 1
in
    // result
    a
`,
		},
	})

	runFormatCases(t, CompactConfig(), []formatCase{
		{
			name: "field comment forces expansion",
			input: `[
    A = 1, // first
    B = 2
]`,
			expected: `[
    A = 1, // first
    B = 2
]
`,
		},
	})
}

func (FormatSuite) TestPresets(ctx context.Context, t *testctx.T) {
	t.Run("compact", func(ctx context.Context, t *testctx.T) {
		runFormatCases(t, CompactConfig(), []formatCase{
			{"let stays inline", `let x = 1, y = 2 in x + y`, "let x = 1, y = 2 in x + y\n"},
			{"record stays inline", `[A=1,B=2]`, "[A = 1, B = 2]\n"},
			{"call stays inline", `f(a+1,b)`, "f(a + 1, b)\n"},
			{"function let body inline", `(x) => let y = x in y`, "(x) => let y = x in y\n"},
			{"empty let", `let in 1`, "let in 1\n"},
		})
	})

	t.Run("expanded", func(ctx context.Context, t *testctx.T) {
		runFormatCases(t, ExpandedConfig(), []formatCase{
			{"single field record", `[A=1]`, "[\n    A = 1\n]\n"},
			{"list", `{1,2}`, "{\n    1,\n    2\n}\n"},
		})
	})
}

func (FormatSuite) TestOptions(ctx context.Context, t *testctx.T) {
	t.Run("tabs", func(ctx context.Context, t *testctx.T) {
		cfg := DefaultConfig()
		cfg.UseTabs = true
		runFormatCases(t, cfg, []formatCase{
			{"let", `let a = 1 in a`, "let\n\ta = 1\nin\n\ta\n"},
		})
	})

	t.Run("indent size", func(ctx context.Context, t *testctx.T) {
		cfg := DefaultConfig()
		cfg.IndentSize = 2
		runFormatCases(t, cfg, []formatCase{
			{"let", `let a = 1 in a`, "let\n  a = 1\nin\n  a\n"},
		})
	})

	t.Run("trailing comma", func(ctx context.Context, t *testctx.T) {
		cfg := ExpandedConfig()
		cfg.TrailingComma = true
		runFormatCases(t, cfg, []formatCase{
			{"record", `[A=1]`, "[\n    A = 1,\n]\n"},
			{"call", `f(a+1,b)`, "f(\n    a + 1,\n    b,\n)\n"},
			{"let has none", `let a = 1 in a`, "let\n    a = 1\nin\n    a\n"},
		})
	})

	t.Run("spacing", func(ctx context.Context, t *testctx.T) {
		cfg := CompactConfig()
		cfg.SpaceInBrackets = true
		cfg.SpaceInBraces = true
		cfg.SpaceInParens = true
		runFormatCases(t, cfg, []formatCase{
			{"brackets", `[A=1]`, "[ A = 1 ]\n"},
			{"braces", `{1,2}`, "{ 1, 2 }\n"},
			{"parens", `(1+2)*3`, "( 1 + 2 ) * 3\n"},
			{"precedence parens", `x as number + 1`, "( x as number ) + 1\n"},
			{"precedence parens already spaced", `( x as number ) + 1`, "( x as number ) + 1\n"},
			{"meta operand", `(a meta [b = 1]) meta [c = 2]`, "( a meta [ b = 1 ] ) meta [ c = 2 ]\n"},
		})
	})

	t.Run("align equals", func(ctx context.Context, t *testctx.T) {
		cfg := DefaultConfig()
		cfg.AlignEquals = true
		runFormatCases(t, cfg, []formatCase{
			{"let", `let a = 1, bbb = 2 in a`, "let\n    a   = 1,\n    bbb = 2\nin\n    a\n"},
		})
	})

	t.Run("blank lines", func(ctx context.Context, t *testctx.T) {
		input := "let\n    a = 1,\n\n\n\n    b = 2\nin\n    a"

		runFormatCases(t, DefaultConfig(), []formatCase{
			{"capped at max", input, "let\n    a = 1,\n\n\n    b = 2\nin\n    a\n"},
		})

		cfg := DefaultConfig()
		cfg.MaxBlankLines = 1
		runFormatCases(t, cfg, []formatCase{
			{"custom max", input, "let\n    a = 1,\n\n    b = 2\nin\n    a\n"},
		})

		cfg = DefaultConfig()
		cfg.PreserveBlankLines = false
		runFormatCases(t, cfg, []formatCase{
			{"dropped", input, "let\n    a = 1,\n    b = 2\nin\n    a\n"},
		})
	})

	t.Run("line length", func(ctx context.Context, t *testctx.T) {
		cfg := DefaultConfig()
		cfg.MaxLineLength = 20
		runFormatCases(t, cfg, []formatCase{
			{"list wraps", `{"alpha", "beta", "gamma"}`, "{\n    \"alpha\",\n    \"beta\",\n    \"gamma\"\n}\n"},
		})
	})
}

var corpus = map[string]string{
	"query": `let
    Source = Csv.Document(File.Contents("C:\data.csv"), [Delimiter = ",", Encoding = 65001]),
    #"Promoted Headers" = Table.PromoteHeaders(Source, [PromoteAllScalars = true]),
    Filtered = Table.SelectRows(#"Promoted Headers", each [Amount] > 100 and [Region] <> null),
    Typed = Table.TransformColumnTypes(Filtered, {{"Amount", type number}, {"Date", type date}}),
    Added = Table.AddColumn(Typed, "Double", each [Amount] * 2, Int64.Type)
in
    Added`,
	"functions": `let
    Fib = (n as number) as number => if n < 2 then n else @Fib(n - 1) + @Fib(n - 2),
    Greet = (optional name as nullable text) => "Hello, " & (name ?? "world"),
    Apply = (f as function, x) => let y = f(x) in y * 2
in
    [First = Fib(10), Second = Greet(), Third = Apply(each _ + 1, 3)]`,
	"comments": `// Load the data
let
    /* source */ Source = #table({"A", "B"}, {{1, 2}, {3, 4}}), // inline
    // filter
    Rows = Table.SelectRows(Source, each [A] > 1)
in
    Rows // done`,
	"errors": `try Number.FromText(x) otherwise error [Reason = "Bad", Message = "Not a number: " & x]`,
	"dates": `{#date(2020, 1, 1), #datetime(2020, 1, 1, 0, 0, 0), #datetimezone(2020, 1, 1, 0, 0, 0, -8, 0), #duration(1, 2, 3, 4), #time(12, 30, 0)}`,
	"types": `type table [Name = text, optional Age = nullable number, Tags = {text}, ...] meta [Documentation.Name = "People"]`,
	"access": `Source{[Name = "Sheet1"]}[Data]{0}?[[A], [B]]`,
	"nested": `let
    Result = List.Transform({1..10}, (i) => [Index = i, Square = i * i, Label = if i > 5 then "big" else "small"])
in
    Result`,
	"generalized": `[Date accessed = 1, type = 2, #"with ""quotes""" = 3][Date accessed]`,
	"precedence": `{x as number + 1, x is text & y, (a + b) * c, a - (b - c), (v meta [A = 1]) meta [B = 2]}`,
}

// idempotenceConfigs covers the presets and option combinations whose
// output must reparse and reformat to itself.
func idempotenceConfigs() map[string]Config {
	spaced := DefaultConfig()
	spaced.SpaceInParens = true
	spaced.SpaceInBrackets = true
	spaced.SpaceInBraces = true

	compactSpaced := CompactConfig()
	compactSpaced.SpaceInParens = true
	compactSpaced.SpaceInBrackets = true
	compactSpaced.SpaceInBraces = true

	tabs := DefaultConfig()
	tabs.UseTabs = true

	aligned := ExpandedConfig()
	aligned.AlignEquals = true
	aligned.TrailingComma = true

	narrow := DefaultConfig()
	narrow.MaxLineLength = 40

	eager := DefaultConfig()
	eager.MultilineThreshold = 0

	return map[string]Config{
		"default":        DefaultConfig(),
		"compact":        CompactConfig(),
		"expanded":       ExpandedConfig(),
		"spaced":         spaced,
		"compact-spaced": compactSpaced,
		"tabs":           tabs,
		"aligned":        aligned,
		"narrow":         narrow,
		"eager":          eager,
	}
}

func (FormatSuite) TestIdempotent(ctx context.Context, t *testctx.T) {
	for cfgName, cfg := range idempotenceConfigs() {
		for name, src := range corpus {
			t.Run(cfgName+"/"+name, func(ctx context.Context, t *testctx.T) {
				once, err := Format(src, cfg)
				require.NoError(t, err)
				require.NoError(t, Validate(once))

				twice, err := Format(once, cfg)
				require.NoError(t, err)
				require.Equal(t, once, twice)
			})
		}
	}
}

func (FormatSuite) TestDeterministic(ctx context.Context, t *testctx.T) {
	for name, src := range corpus {
		t.Run(name, func(ctx context.Context, t *testctx.T) {
			first, err := Format(src, DefaultConfig())
			require.NoError(t, err)
			for range 5 {
				again, err := Format(src, DefaultConfig())
				require.NoError(t, err)
				require.Equal(t, first, again)
			}
		})
	}
}

func (FormatSuite) TestErrors(ctx context.Context, t *testctx.T) {
	_, err := Format(`[A = 1`, DefaultConfig())
	require.Error(t, err)

	ds, ok := AsDiagnostics(err)
	require.True(t, ok)
	require.Len(t, ds, 1)
	require.Equal(t, `expected "]", found end of input`, ds[0].Message)
	require.Equal(t, 1, ds[0].Span.Line)
	require.Equal(t, 7, ds[0].Span.Column)
	require.Equal(t, `Line 1: expected "]", found end of input`, err.Error())
}
