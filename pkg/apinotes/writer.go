// Package apinotes serializes API annotation data to a compact binary
// container and resolves point lookups against it without deserializing
// the whole file. A Writer accumulates entity records in memory and emits
// the container once; a Reader borrows the resulting bytes and answers
// lookups per entity kind directly from the on-disk hash tables.
package apinotes

import (
	"fmt"
	"io"
	"sort"

	"github.com/annostore/annostore/internal/disktable"
	"github.com/annostore/annostore/internal/errors"
	"github.com/annostore/annostore/internal/format"
	"github.com/annostore/annostore/internal/intern"
	"github.com/annostore/annostore/pkg/types"
)

// contextKey identifies a class or protocol: the interned name plus the
// kind tag.
type contextKey struct {
	nameID     uint32
	isProtocol bool
}

// memberKey identifies a property or method relative to its context.
type memberKey struct {
	ctx        types.ContextID
	id         uint32 // name ID for properties, selector ID for methods
	isInstance bool
}

// contextRecord pairs a context's stable handle with its accumulated
// annotation payload.
type contextRecord struct {
	id   types.ContextID
	info types.ContextInfo
}

// Writer accumulates annotation records for one module and serializes
// them into the binary container. It is single-threaded by contract: all
// Add calls and the one WriteTo call belong to one session.
type Writer struct {
	moduleName string
	options    types.ModuleOptions

	identifiers *intern.IdentifierTable
	selectors   *intern.SelectorTable

	contexts    map[contextKey]*contextRecord
	contextKeys map[types.ContextID]contextKey // back-reference; contexts owns the data

	properties      map[memberKey]types.VariableInfo
	methods         map[memberKey]types.MethodInfo
	globalVariables map[uint32]types.VariableInfo
	globalFunctions map[uint32]types.FunctionInfo
	enumConstants   map[uint32]types.EnumConstantInfo
	tags            map[uint32]types.TagInfo
	typedefs        map[uint32]types.TypedefInfo

	finalized bool
}

// NewWriter creates a writer session for the named module.
func NewWriter(moduleName string) *Writer {
	return &Writer{
		moduleName:      moduleName,
		identifiers:     intern.NewIdentifierTable(),
		selectors:       intern.NewSelectorTable(),
		contexts:        make(map[contextKey]*contextRecord),
		contextKeys:     make(map[types.ContextID]contextKey),
		properties:      make(map[memberKey]types.VariableInfo),
		methods:         make(map[memberKey]types.MethodInfo),
		globalVariables: make(map[uint32]types.VariableInfo),
		globalFunctions: make(map[uint32]types.FunctionInfo),
		enumConstants:   make(map[uint32]types.EnumConstantInfo),
		tags:            make(map[uint32]types.TagInfo),
		typedefs:        make(map[uint32]types.TypedefInfo),
	}
}

// SetModuleOptions attaches the session-wide option set, re-emitted in
// the control block when non-default.
func (w *Writer) SetModuleOptions(opts types.ModuleOptions) {
	w.options = opts
}

func (w *Writer) checkMutable() error {
	if w.finalized {
		return errors.NewValidationError(errors.CodeWriterFinalized,
			"writer has already been serialized")
	}
	return nil
}

// AddObjCClass records annotation data for a class and returns its stable
// handle. Re-adding the same class merges the payloads instead of
// creating a new entity, because one class may be described repeatedly
// across categories and split inputs.
func (w *Writer) AddObjCClass(name string, info *types.ContextInfo) (types.ContextID, error) {
	return w.addContext(name, false, info)
}

// AddObjCProtocol records annotation data for a protocol; same merge
// semantics as AddObjCClass.
func (w *Writer) AddObjCProtocol(name string, info *types.ContextInfo) (types.ContextID, error) {
	return w.addContext(name, true, info)
}

func (w *Writer) addContext(name string, isProtocol bool, info *types.ContextInfo) (types.ContextID, error) {
	if err := w.checkMutable(); err != nil {
		return 0, err
	}
	key := contextKey{nameID: w.identifiers.Intern(name), isProtocol: isProtocol}
	rec, ok := w.contexts[key]
	if !ok {
		rec = &contextRecord{id: types.ContextID(len(w.contexts) + 1)}
		w.contexts[key] = rec
		w.contextKeys[rec.id] = key
	}
	rec.info.MergeFrom(info)
	return rec.id, nil
}

// AddObjCProperty records annotation data for a property of the given
// context. Each (context, name, instance) key may be added at most once.
func (w *Writer) AddObjCProperty(ctx types.ContextID, name string, isInstance bool, info *types.VariableInfo) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	if _, ok := w.contextKeys[ctx]; !ok {
		return errors.NewValidationError(errors.CodeUnknownContext,
			fmt.Sprintf("context %d was never added", ctx))
	}
	key := memberKey{ctx: ctx, id: w.identifiers.Intern(name), isInstance: isInstance}
	if _, dup := w.properties[key]; dup {
		return errors.NewValidationError(errors.CodeDuplicateEntity,
			fmt.Sprintf("property %q already defined for context %d", name, ctx))
	}
	w.properties[key] = *info
	return nil
}

// AddObjCMethod records annotation data for a method of the given
// context, keyed by its selector. Each (context, selector, instance) key
// may be added at most once. Recording a designated initializer flips the
// owning context's HasDesignatedInits flag.
func (w *Writer) AddObjCMethod(ctx types.ContextID, sel types.SelectorRef, isInstance bool, info *types.MethodInfo) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	ctxKey, ok := w.contextKeys[ctx]
	if !ok {
		return errors.NewValidationError(errors.CodeUnknownContext,
			fmt.Sprintf("context %d was never added", ctx))
	}
	key := memberKey{ctx: ctx, id: w.internSelector(sel), isInstance: isInstance}
	if _, dup := w.methods[key]; dup {
		return errors.NewValidationError(errors.CodeDuplicateEntity,
			fmt.Sprintf("method %q already defined for context %d", sel.String(), ctx))
	}
	w.methods[key] = *info

	if info.DesignatedInit {
		w.contexts[ctxKey].info.HasDesignatedInits = true
	}
	return nil
}

// AddGlobalVariable records annotation data for a global variable. Each
// name may be added at most once.
func (w *Writer) AddGlobalVariable(name string, info *types.VariableInfo) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	id := w.identifiers.Intern(name)
	if _, dup := w.globalVariables[id]; dup {
		return duplicateName("global variable", name)
	}
	w.globalVariables[id] = *info
	return nil
}

// AddGlobalFunction records annotation data for a global function. Each
// name may be added at most once.
func (w *Writer) AddGlobalFunction(name string, info *types.FunctionInfo) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	id := w.identifiers.Intern(name)
	if _, dup := w.globalFunctions[id]; dup {
		return duplicateName("global function", name)
	}
	w.globalFunctions[id] = *info
	return nil
}

// AddEnumConstant records annotation data for an enumerator. Each name
// may be added at most once.
func (w *Writer) AddEnumConstant(name string, info *types.EnumConstantInfo) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	id := w.identifiers.Intern(name)
	if _, dup := w.enumConstants[id]; dup {
		return duplicateName("enum constant", name)
	}
	w.enumConstants[id] = *info
	return nil
}

// AddTag records annotation data for a struct/union/enum tag. Each name
// may be added at most once.
func (w *Writer) AddTag(name string, info *types.TagInfo) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	id := w.identifiers.Intern(name)
	if _, dup := w.tags[id]; dup {
		return duplicateName("tag", name)
	}
	w.tags[id] = *info
	return nil
}

// AddTypedef records annotation data for a typedef. Each name may be
// added at most once.
func (w *Writer) AddTypedef(name string, info *types.TypedefInfo) error {
	if err := w.checkMutable(); err != nil {
		return err
	}
	id := w.identifiers.Intern(name)
	if _, dup := w.typedefs[id]; dup {
		return duplicateName("typedef", name)
	}
	w.typedefs[id] = *info
	return nil
}

func duplicateName(kind, name string) error {
	return errors.NewValidationError(errors.CodeDuplicateEntity,
		fmt.Sprintf("%s %q already defined", kind, name))
}

// internSelector interns the selector's pieces and then the selector
// itself, normalizing a zero piece count to one.
func (w *Writer) internSelector(sel types.SelectorRef) uint32 {
	pieceIDs := make([]uint32, len(sel.Pieces))
	for i, piece := range sel.Pieces {
		pieceIDs[i] = w.identifiers.Intern(piece)
	}
	return w.selectors.Intern(uint16(sel.NumPieces), pieceIDs)
}

// WriteTo serializes the accumulated state into the container format and
// writes it to out. It runs exactly once per writer: the writer is
// finalized afterwards and rejects further mutation, and the output is
// deterministic for a given accumulated state.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	if err := w.checkMutable(); err != nil {
		return 0, err
	}
	w.finalized = true

	buf := append([]byte(nil), format.Signature[:]...)
	buf = format.AppendBlock(buf, format.BlockInfoBlockID, format.AppendBlockInfo(nil))
	buf = format.AppendBlock(buf, format.ControlBlockID,
		format.AppendControlBlock(nil, w.moduleName, w.options))
	buf = format.AppendBlock(buf, format.IdentifierBlockID, w.identifierPayload())
	buf = format.AppendBlock(buf, format.ContextBlockID, w.contextPayload())
	buf = format.AppendBlock(buf, format.PropertyBlockID, w.propertyPayload())
	buf = format.AppendBlock(buf, format.MethodBlockID, w.methodPayload())
	buf = format.AppendBlock(buf, format.SelectorBlockID, w.selectorPayload())
	buf = format.AppendBlock(buf, format.GlobalVariableBlockID,
		namePayload(w.globalVariables, func(b []byte, info types.VariableInfo) []byte {
			return format.AppendVariableInfo(b, &info)
		}))
	buf = format.AppendBlock(buf, format.GlobalFunctionBlockID,
		namePayload(w.globalFunctions, func(b []byte, info types.FunctionInfo) []byte {
			return format.AppendFunctionInfo(b, &info)
		}))
	buf = format.AppendBlock(buf, format.EnumConstantBlockID,
		namePayload(w.enumConstants, func(b []byte, info types.EnumConstantInfo) []byte {
			return format.AppendCommonEntityInfo(b, &info.CommonEntityInfo)
		}))
	buf = format.AppendBlock(buf, format.TagBlockID,
		namePayload(w.tags, func(b []byte, info types.TagInfo) []byte {
			return format.AppendCommonTypeInfo(b, &info.CommonTypeInfo)
		}))
	buf = format.AppendBlock(buf, format.TypedefBlockID,
		namePayload(w.typedefs, func(b []byte, info types.TypedefInfo) []byte {
			return format.AppendCommonTypeInfo(b, &info.CommonTypeInfo)
		}))

	n, err := out.Write(buf)
	if err != nil {
		return int64(n), fmt.Errorf("failed to write notes container: %w", err)
	}
	return int64(n), nil
}

// identifierPayload serializes the identifier table, or nothing when no
// identifiers were interned.
func (w *Writer) identifierPayload() []byte {
	if w.identifiers.Len() == 0 {
		return nil
	}
	builder := disktable.NewBuilder()
	w.identifiers.ForEachSorted(func(name string, id uint32) {
		builder.Insert([]byte(name), format.AppendID(nil, id))
	})
	return builder.Emit()
}

func (w *Writer) contextPayload() []byte {
	if len(w.contexts) == 0 {
		return nil
	}
	keys := make([]contextKey, 0, len(w.contexts))
	for key := range w.contexts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].nameID != keys[j].nameID {
			return keys[i].nameID < keys[j].nameID
		}
		return !keys[i].isProtocol && keys[j].isProtocol
	})
	builder := disktable.NewBuilder()
	for _, key := range keys {
		rec := w.contexts[key]
		builder.Insert(
			format.AppendContextKey(nil, key.nameID, key.isProtocol),
			format.AppendContextValue(nil, rec.id, &rec.info))
	}
	return builder.Emit()
}

// sortedMemberKeys orders member keys for byte-stable output.
func sortedMemberKeys[V any](m map[memberKey]V) []memberKey {
	keys := make([]memberKey, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ctx != keys[j].ctx {
			return keys[i].ctx < keys[j].ctx
		}
		if keys[i].id != keys[j].id {
			return keys[i].id < keys[j].id
		}
		return !keys[i].isInstance && keys[j].isInstance
	})
	return keys
}

func (w *Writer) propertyPayload() []byte {
	if len(w.properties) == 0 {
		return nil
	}
	builder := disktable.NewBuilder()
	for _, key := range sortedMemberKeys(w.properties) {
		info := w.properties[key]
		builder.Insert(
			format.AppendMemberKey(nil, key.ctx, key.id, key.isInstance),
			format.AppendVariableInfo(nil, &info))
	}
	return builder.Emit()
}

func (w *Writer) methodPayload() []byte {
	if len(w.methods) == 0 {
		return nil
	}
	builder := disktable.NewBuilder()
	for _, key := range sortedMemberKeys(w.methods) {
		info := w.methods[key]
		builder.Insert(
			format.AppendMemberKey(nil, key.ctx, key.id, key.isInstance),
			format.AppendMethodInfo(nil, &info))
	}
	return builder.Emit()
}

func (w *Writer) selectorPayload() []byte {
	if w.selectors.Len() == 0 {
		return nil
	}
	builder := disktable.NewBuilder()
	w.selectors.ForEach(func(sel intern.StoredSelector, id uint32) {
		builder.Insert(
			format.AppendSelectorKey(nil, sel.NumPieces, sel.PieceIDs),
			format.AppendID(nil, id))
	})
	return builder.Emit()
}

// namePayload serializes one of the single-identifier-keyed tables in
// ascending name-ID order.
func namePayload[V any](m map[uint32]V, encode func([]byte, V) []byte) []byte {
	if len(m) == 0 {
		return nil
	}
	ids := make([]uint32, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	builder := disktable.NewBuilder()
	for _, id := range ids {
		builder.Insert(format.AppendNameKey(nil, id), encode(nil, m[id]))
	}
	return builder.Emit()
}
