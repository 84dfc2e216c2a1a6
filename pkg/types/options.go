package types

// ModuleOptions is the session-wide option set attached to a writer and
// re-emitted in the control block.
type ModuleOptions struct {
	// SwiftInferImportAsMember enables inferring import-as-member for the
	// whole module.
	SwiftInferImportAsMember bool
}

// IsDefault reports whether every option has its default value; default
// options are not written to the control block.
func (o ModuleOptions) IsDefault() bool {
	return !o.SwiftInferImportAsMember
}

// SelectorRef names an Objective-C method by its selector pieces.
//
// NumPieces is the number of colon-delimited pieces; a zero-argument
// selector has NumPieces 0 and exactly one entry in Pieces. Two selectors
// with the same pieces but different piece counts are distinct keys.
type SelectorRef struct {
	NumPieces int
	Pieces    []string
}

// String renders the selector in the conventional form, with a trailing
// colon per piece for selectors that take arguments.
func (s SelectorRef) String() string {
	if s.NumPieces == 0 {
		if len(s.Pieces) == 0 {
			return ""
		}
		return s.Pieces[0]
	}
	out := ""
	for _, p := range s.Pieces {
		out += p + ":"
	}
	return out
}
