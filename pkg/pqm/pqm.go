// Package pqm parses and formats Power Query M source.
//
// Source flows through Tokenize, Parse and a Formatter:
//
//	out, err := pqm.Format(src, pqm.DefaultConfig())
//
// Errors from Format and Validate are Diagnostics; use AsDiagnostics to get
// at their positions.
package pqm

// Format parses src and renders it with cfg. The output always ends with a
// single newline.
func Format(src string, cfg Config) (string, error) {
	doc, err := Parse(src)
	if err != nil {
		return "", err
	}
	return NewFormatter(cfg).FormatDocument(doc), nil
}

// Validate reports whether src parses.
func Validate(src string) error {
	_, err := Parse(src)
	return err
}
