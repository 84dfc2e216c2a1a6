package apinotes

import (
	"fmt"

	"github.com/annostore/annostore/internal/disktable"
	"github.com/annostore/annostore/internal/errors"
	"github.com/annostore/annostore/internal/format"
	"github.com/annostore/annostore/pkg/types"
)

// Reader answers point lookups against a serialized notes container.
//
// Construction validates the signature and version and locates each
// block's table root; it decodes no entries. The reader borrows buf for
// its whole lifetime and holds no mutable state after construction, so
// lookups may run concurrently from any number of goroutines.
type Reader struct {
	buf        []byte
	moduleName string
	options    types.ModuleOptions

	identifiers     *disktable.Table
	contexts        *disktable.Table
	properties      *disktable.Table
	methods         *disktable.Table
	selectors       *disktable.Table
	globalVariables *disktable.Table
	globalFunctions *disktable.Table
	enumConstants   *disktable.Table
	tags            *disktable.Table
	typedefs        *disktable.Table
}

// NewReader opens a serialized notes container. It fails on a bad
// signature or an unsupported major version; a missing entity block is
// not an error and simply reads as an empty table.
func NewReader(buf []byte) (*Reader, error) {
	blockData, err := format.CheckSignature(buf)
	if err != nil {
		return nil, err
	}
	blocks, err := format.ParseBlocks(blockData)
	if err != nil {
		return nil, err
	}

	control, ok := blocks[format.ControlBlockID]
	if !ok {
		return nil, errors.NewFormatError(errors.CodeMalformedBlock,
			"control block missing")
	}
	major, _, moduleName, opts, err := format.DecodeControlBlock(control)
	if err != nil {
		return nil, err
	}
	if major != format.VersionMajor {
		return nil, errors.NewFormatError(errors.CodeUnsupportedVersion,
			fmt.Sprintf("major version %d, this library reads %d", major, format.VersionMajor))
	}

	r := &Reader{buf: buf, moduleName: moduleName, options: opts}
	for _, entry := range []struct {
		id    uint32
		table **disktable.Table
	}{
		{format.IdentifierBlockID, &r.identifiers},
		{format.ContextBlockID, &r.contexts},
		{format.PropertyBlockID, &r.properties},
		{format.MethodBlockID, &r.methods},
		{format.SelectorBlockID, &r.selectors},
		{format.GlobalVariableBlockID, &r.globalVariables},
		{format.GlobalFunctionBlockID, &r.globalFunctions},
		{format.EnumConstantBlockID, &r.enumConstants},
		{format.TagBlockID, &r.tags},
		{format.TypedefBlockID, &r.typedefs},
	} {
		table, err := disktable.Open(blocks[entry.id])
		if err != nil {
			return nil, fmt.Errorf("failed to open %s table: %w", format.BlockName(entry.id), err)
		}
		*entry.table = table
	}
	return r, nil
}

// ModuleName returns the module name from the control block.
func (r *Reader) ModuleName() string {
	return r.moduleName
}

// ModuleOptions returns the module options from the control block;
// defaults if no options record was written.
func (r *Reader) ModuleOptions() types.ModuleOptions {
	return r.options
}

// identifierID resolves a string to its file-local identifier ID. The
// empty string is always ID 0. A string never interned by the writer
// resolves to (0, false), which makes every dependent lookup absent.
func (r *Reader) identifierID(name string) (uint32, bool, error) {
	if name == "" {
		return 0, true, nil
	}
	data, ok, err := r.identifiers.Lookup([]byte(name))
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := format.DecodeID(data)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// selectorID resolves a selector reference to its file-local selector ID.
func (r *Reader) selectorID(sel types.SelectorRef) (uint32, bool, error) {
	numPieces := uint16(sel.NumPieces)
	if numPieces == 0 {
		numPieces = 1
	}
	pieceIDs := make([]uint32, len(sel.Pieces))
	for i, piece := range sel.Pieces {
		id, ok, err := r.identifierID(piece)
		if err != nil || !ok {
			return 0, false, err
		}
		pieceIDs[i] = id
	}
	data, ok, err := r.selectors.Lookup(format.AppendSelectorKey(nil, numPieces, pieceIDs))
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := format.DecodeID(data)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// LookupObjCClass returns the stable handle and annotation data for a
// class. Absence is (0, nil, nil), not an error.
func (r *Reader) LookupObjCClass(name string) (types.ContextID, *types.ContextInfo, error) {
	return r.lookupContext(name, false)
}

// LookupObjCProtocol returns the stable handle and annotation data for a
// protocol. Absence is (0, nil, nil), not an error.
func (r *Reader) LookupObjCProtocol(name string) (types.ContextID, *types.ContextInfo, error) {
	return r.lookupContext(name, true)
}

func (r *Reader) lookupContext(name string, isProtocol bool) (types.ContextID, *types.ContextInfo, error) {
	nameID, ok, err := r.identifierID(name)
	if err != nil || !ok {
		return 0, nil, err
	}
	data, ok, err := r.contexts.Lookup(format.AppendContextKey(nil, nameID, isProtocol))
	if err != nil || !ok {
		return 0, nil, err
	}
	return format.DecodeContextValue(format.NewCursor(data))
}

// LookupObjCProperty returns the annotation data for a property of the
// given context. Absence is (nil, nil).
func (r *Reader) LookupObjCProperty(ctx types.ContextID, name string, isInstance bool) (*types.VariableInfo, error) {
	nameID, ok, err := r.identifierID(name)
	if err != nil || !ok {
		return nil, err
	}
	data, ok, err := r.properties.Lookup(format.AppendMemberKey(nil, ctx, nameID, isInstance))
	if err != nil || !ok {
		return nil, err
	}
	return format.DecodeVariableInfo(format.NewCursor(data))
}

// LookupObjCMethod returns the annotation data for a method of the given
// context, keyed by selector. Absence is (nil, nil).
func (r *Reader) LookupObjCMethod(ctx types.ContextID, sel types.SelectorRef, isInstance bool) (*types.MethodInfo, error) {
	selID, ok, err := r.selectorID(sel)
	if err != nil || !ok {
		return nil, err
	}
	data, ok, err := r.methods.Lookup(format.AppendMemberKey(nil, ctx, selID, isInstance))
	if err != nil || !ok {
		return nil, err
	}
	return format.DecodeMethodInfo(format.NewCursor(data))
}

// LookupGlobalVariable returns the annotation data for a global variable.
func (r *Reader) LookupGlobalVariable(name string) (*types.VariableInfo, error) {
	data, err := r.lookupByName(r.globalVariables, name)
	if err != nil || data == nil {
		return nil, err
	}
	return format.DecodeVariableInfo(format.NewCursor(data))
}

// LookupGlobalFunction returns the annotation data for a global function.
func (r *Reader) LookupGlobalFunction(name string) (*types.FunctionInfo, error) {
	data, err := r.lookupByName(r.globalFunctions, name)
	if err != nil || data == nil {
		return nil, err
	}
	return format.DecodeFunctionInfo(format.NewCursor(data))
}

// LookupEnumConstant returns the annotation data for an enumerator.
func (r *Reader) LookupEnumConstant(name string) (*types.EnumConstantInfo, error) {
	data, err := r.lookupByName(r.enumConstants, name)
	if err != nil || data == nil {
		return nil, err
	}
	info := &types.EnumConstantInfo{}
	if err := format.DecodeCommonEntityInfo(format.NewCursor(data), &info.CommonEntityInfo); err != nil {
		return nil, err
	}
	return info, nil
}

// LookupTag returns the annotation data for a struct/union/enum tag.
func (r *Reader) LookupTag(name string) (*types.TagInfo, error) {
	data, err := r.lookupByName(r.tags, name)
	if err != nil || data == nil {
		return nil, err
	}
	info := &types.TagInfo{}
	if err := format.DecodeCommonTypeInfo(format.NewCursor(data), &info.CommonTypeInfo); err != nil {
		return nil, err
	}
	return info, nil
}

// LookupTypedef returns the annotation data for a typedef.
func (r *Reader) LookupTypedef(name string) (*types.TypedefInfo, error) {
	data, err := r.lookupByName(r.typedefs, name)
	if err != nil || data == nil {
		return nil, err
	}
	info := &types.TypedefInfo{}
	if err := format.DecodeCommonTypeInfo(format.NewCursor(data), &info.CommonTypeInfo); err != nil {
		return nil, err
	}
	return info, nil
}

// lookupByName resolves a name against one of the single-identifier
// tables and returns the raw value bytes, or nil when absent.
func (r *Reader) lookupByName(table *disktable.Table, name string) ([]byte, error) {
	nameID, ok, err := r.identifierID(name)
	if err != nil || !ok {
		return nil, err
	}
	data, ok, err := table.Lookup(format.AppendNameKey(nil, nameID))
	if err != nil || !ok {
		return nil, err
	}
	return data, nil
}
