package types

// ContextID is the stable integer handle assigned to an Objective-C class
// or protocol by a writer session. Properties and methods are addressed
// relative to it. Zero is never a valid handle.
type ContextID uint32

// ContextInfo describes annotation data for an Objective-C class or
// protocol.
type ContextInfo struct {
	CommonTypeInfo

	// DefaultNullability, if set, applies to properties and methods of
	// this context that were not individually audited.
	DefaultNullability *NullabilityKind

	// HasDesignatedInits records whether any designated initializer was
	// registered for this context.
	HasDesignatedInits bool
}

// SetDefaultNullability sets the context-wide default nullability.
func (c *ContextInfo) SetDefaultNullability(kind NullabilityKind) {
	c.DefaultNullability = &kind
}

// MergeFrom folds a duplicate definition of the same context into this
// one. A context may legitimately be declared more than once (class plus
// category/extension split across inputs), so presence-flags accumulate
// and unset fields fill in.
func (c *ContextInfo) MergeFrom(o *ContextInfo) {
	c.CommonTypeInfo.MergeFrom(&o.CommonTypeInfo)
	if c.DefaultNullability == nil && o.DefaultNullability != nil {
		k := *o.DefaultNullability
		c.DefaultNullability = &k
	}
	c.HasDesignatedInits = c.HasDesignatedInits || o.HasDesignatedInits
}
