// Package types defines the annotation payloads recorded for each entity
// kind: availability and naming data shared by every entity, plus the
// specialized extensions for types, variables, functions, and methods.
package types

// NullabilityKind describes the nullability of a pointer-like type.
// The numeric values are part of the binary format and must not change.
type NullabilityKind uint8

const (
	// NonNull means the value is never null.
	NonNull NullabilityKind = 0
	// Nullable means the value may be null.
	Nullable NullabilityKind = 1
	// Unspecified means nullability was not audited for this type.
	Unspecified NullabilityKind = 2
)

// CommonEntityInfo holds the annotation data shared by every entity kind:
// availability and the preferred Swift name.
type CommonEntityInfo struct {
	// UnavailableMsg is the message to show when the entity is unavailable.
	UnavailableMsg string

	// Unavailable marks the entity unavailable everywhere.
	Unavailable bool

	// UnavailableInSwift marks the entity unavailable in Swift only.
	UnavailableInSwift bool

	// SwiftPrivate marks the entity private to a Swift overlay.
	SwiftPrivate bool

	// SwiftName is the preferred Swift name, empty if none.
	SwiftName string
}

// MergeFrom folds another record for the same entity into this one.
// Boolean flags accumulate; strings fill in only when currently empty,
// so the result is independent of merge order for the fields involved.
func (c *CommonEntityInfo) MergeFrom(o *CommonEntityInfo) {
	if o.Unavailable {
		c.Unavailable = true
		if o.UnavailableMsg != "" && c.UnavailableMsg == "" {
			c.UnavailableMsg = o.UnavailableMsg
		}
	}
	if o.UnavailableInSwift {
		c.UnavailableInSwift = true
		if o.UnavailableMsg != "" && c.UnavailableMsg == "" {
			c.UnavailableMsg = o.UnavailableMsg
		}
	}
	if o.SwiftPrivate {
		c.SwiftPrivate = true
	}
	if o.SwiftName != "" && c.SwiftName == "" {
		c.SwiftName = o.SwiftName
	}
}

// CommonTypeInfo extends CommonEntityInfo with the fields shared by
// type-like entities (contexts, tags, typedefs).
type CommonTypeInfo struct {
	CommonEntityInfo

	// SwiftBridge is the Swift type this type bridges to. Nil means
	// unspecified; a pointer to "" removes any bridging.
	SwiftBridge *string

	// NSErrorDomain is the error domain associated with this type.
	// Nil means unspecified.
	NSErrorDomain *string
}

// MergeFrom folds another type record into this one. Optional strings fill
// in only when currently unset.
func (c *CommonTypeInfo) MergeFrom(o *CommonTypeInfo) {
	c.CommonEntityInfo.MergeFrom(&o.CommonEntityInfo)
	if c.SwiftBridge == nil && o.SwiftBridge != nil {
		s := *o.SwiftBridge
		c.SwiftBridge = &s
	}
	if c.NSErrorDomain == nil && o.NSErrorDomain != nil {
		s := *o.NSErrorDomain
		c.NSErrorDomain = &s
	}
}

// EnumConstantInfo describes annotation data for a single enumerator.
type EnumConstantInfo struct {
	CommonEntityInfo
}

// TagInfo describes annotation data for a struct/union/enum tag.
type TagInfo struct {
	CommonTypeInfo
}

// TypedefInfo describes annotation data for a typedef.
type TypedefInfo struct {
	CommonTypeInfo
}

// OptionalString returns a pointer to a copy of s, for filling the
// optional string fields of CommonTypeInfo.
func OptionalString(s string) *string {
	return &s
}
