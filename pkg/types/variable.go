package types

// VariableInfo describes annotation data for a variable-like entity: an
// Objective-C property or a global variable.
type VariableInfo struct {
	CommonEntityInfo

	// Nullability, if set, records the audited nullability of the
	// variable's type.
	Nullability *NullabilityKind
}

// SetNullability marks the variable audited with the given nullability.
func (v *VariableInfo) SetNullability(kind NullabilityKind) {
	v.Nullability = &kind
}
