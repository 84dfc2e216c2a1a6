package types

// nullabilityKindSize is the number of payload bits per nullability slot.
const nullabilityKindSize = 2

const nullabilityKindMask = 0x3

// MaxNullabilityIndex is the highest slot index representable in the
// nullability payload (slot 0 is the return type).
const MaxNullabilityIndex = 64/nullabilityKindSize - 1

// ParamInfo describes annotation data for a single function or method
// parameter.
type ParamInfo struct {
	// NoEscapeSpecified records whether the noescape attribute was
	// written at all; NoEscape is only meaningful when it was.
	NoEscapeSpecified bool
	NoEscape          bool
}

// SetNoEscape records an explicit noescape attribute.
func (p *ParamInfo) SetNoEscape(noEscape bool) {
	p.NoEscapeSpecified = true
	p.NoEscape = noEscape
}

// FunctionInfo describes annotation data for a function-like entity: a
// global function or the base payload of an Objective-C method.
//
// Per-type nullability is packed into NullabilityPayload, two bits per
// slot, with the return type at slot 0 followed by the parameters.
type FunctionInfo struct {
	CommonEntityInfo

	// NullabilityAudited records whether the signature was audited for
	// nullability. When set, unlisted types default to NonNull.
	NullabilityAudited bool

	// NumAdjustedNullable is the number of slots encoded in
	// NullabilityPayload.
	NumAdjustedNullable uint8

	// NullabilityPayload packs the per-slot nullability kinds.
	NullabilityPayload uint64

	// Params holds per-parameter flags, in declaration order.
	Params []ParamInfo
}

// AddTypeInfo records the nullability of the slot at the given index and
// marks the signature audited.
func (f *FunctionInfo) AddTypeInfo(index int, kind NullabilityKind) {
	if index > MaxNullabilityIndex {
		return
	}
	f.NullabilityAudited = true
	if int(f.NumAdjustedNullable) < index+1 {
		f.NumAdjustedNullable = uint8(index + 1)
	}
	shift := uint(index) * nullabilityKindSize
	f.NullabilityPayload &^= nullabilityKindMask << shift
	f.NullabilityPayload |= uint64(kind&nullabilityKindMask) << shift
}

// AddReturnTypeInfo records the nullability of the return type.
func (f *FunctionInfo) AddReturnTypeInfo(kind NullabilityKind) {
	f.AddTypeInfo(0, kind)
}

// AddParamTypeInfo records the nullability of the parameter at the given
// zero-based index.
func (f *FunctionInfo) AddParamTypeInfo(index int, kind NullabilityKind) {
	f.AddTypeInfo(index+1, kind)
}

// TypeInfo returns the recorded nullability for the slot at the given
// index. Slots beyond the adjusted count default to NonNull on audited
// signatures.
func (f *FunctionInfo) TypeInfo(index int) NullabilityKind {
	if index >= int(f.NumAdjustedNullable) {
		return NonNull
	}
	shift := uint(index) * nullabilityKindSize
	return NullabilityKind((f.NullabilityPayload >> shift) & nullabilityKindMask)
}

// ReturnTypeInfo returns the recorded nullability of the return type.
func (f *FunctionInfo) ReturnTypeInfo() NullabilityKind {
	return f.TypeInfo(0)
}

// ParamTypeInfo returns the recorded nullability of the parameter at the
// given zero-based index.
func (f *FunctionInfo) ParamTypeInfo(index int) NullabilityKind {
	return f.TypeInfo(index + 1)
}

// MethodInfo describes annotation data for an Objective-C method.
type MethodInfo struct {
	FunctionInfo

	// DesignatedInit marks the method a designated initializer of its
	// class. Recording one retroactively flips HasDesignatedInits on the
	// owning context.
	DesignatedInit bool

	// FactoryAsInit requests importing a factory method as an
	// initializer.
	FactoryAsInit bool

	// Required marks a required initializer.
	Required bool
}
