package apinotes

import (
	"github.com/annostore/annostore/internal/disktable"
	"github.com/annostore/annostore/internal/format"
	"github.com/annostore/annostore/pkg/types"
)

// Visitor receives one callback per stored entry during a full traversal.
// Nil callbacks are skipped. Intended for tooling and dump scenarios, not
// the lookup hot path.
type Visitor struct {
	ObjCClass      func(id types.ContextID, name string, info *types.ContextInfo)
	ObjCProtocol   func(id types.ContextID, name string, info *types.ContextInfo)
	ObjCProperty   func(ctx types.ContextID, name string, isInstance bool, info *types.VariableInfo)
	ObjCMethod     func(ctx types.ContextID, sel types.SelectorRef, isInstance bool, info *types.MethodInfo)
	GlobalVariable func(name string, info *types.VariableInfo)
	GlobalFunction func(name string, info *types.FunctionInfo)
	EnumConstant   func(name string, info *types.EnumConstantInfo)
	Tag            func(name string, info *types.TagInfo)
	Typedef        func(name string, info *types.TypedefInfo)
}

// Visit walks every table fully, decoding each entry exactly once and
// invoking the matching callback. Entries are visited in bucket order,
// which is stable for a given file but otherwise unspecified.
func (r *Reader) Visit(v Visitor) error {
	names, err := r.identifierNames()
	if err != nil {
		return err
	}
	selectors, err := r.selectorRefs(names)
	if err != nil {
		return err
	}

	if v.ObjCClass != nil || v.ObjCProtocol != nil {
		err := r.contexts.Walk(func(key, data []byte) error {
			nameID, isProtocol, err := format.DecodeContextKey(key)
			if err != nil {
				return err
			}
			id, info, err := format.DecodeContextValue(format.NewCursor(data))
			if err != nil {
				return err
			}
			if isProtocol {
				if v.ObjCProtocol != nil {
					v.ObjCProtocol(id, names[nameID], info)
				}
			} else if v.ObjCClass != nil {
				v.ObjCClass(id, names[nameID], info)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if v.ObjCProperty != nil {
		err := r.properties.Walk(func(key, data []byte) error {
			ctx, nameID, isInstance, err := format.DecodeMemberKey(key)
			if err != nil {
				return err
			}
			info, err := format.DecodeVariableInfo(format.NewCursor(data))
			if err != nil {
				return err
			}
			v.ObjCProperty(ctx, names[nameID], isInstance, info)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if v.ObjCMethod != nil {
		err := r.methods.Walk(func(key, data []byte) error {
			ctx, selID, isInstance, err := format.DecodeMemberKey(key)
			if err != nil {
				return err
			}
			info, err := format.DecodeMethodInfo(format.NewCursor(data))
			if err != nil {
				return err
			}
			v.ObjCMethod(ctx, selectors[selID], isInstance, info)
			return nil
		})
		if err != nil {
			return err
		}
	}

	if err := walkByName(r.globalVariables, names, format.DecodeVariableInfo, v.GlobalVariable); err != nil {
		return err
	}
	if err := walkByName(r.globalFunctions, names, format.DecodeFunctionInfo, v.GlobalFunction); err != nil {
		return err
	}
	if err := walkByName(r.enumConstants, names, decodeEnumConstant, v.EnumConstant); err != nil {
		return err
	}
	if err := walkByName(r.tags, names, decodeTag, v.Tag); err != nil {
		return err
	}
	return walkByName(r.typedefs, names, decodeTypedef, v.Typedef)
}

// identifierNames builds the reverse identifier mapping by walking the
// identifier table once.
func (r *Reader) identifierNames() (map[uint32]string, error) {
	names := make(map[uint32]string)
	err := r.identifiers.Walk(func(key, data []byte) error {
		id, err := format.DecodeID(data)
		if err != nil {
			return err
		}
		names[id] = string(key)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// selectorRefs builds the reverse selector mapping, resolving each piece
// back through the identifier names.
func (r *Reader) selectorRefs(names map[uint32]string) (map[uint32]types.SelectorRef, error) {
	selectors := make(map[uint32]types.SelectorRef)
	err := r.selectors.Walk(func(key, data []byte) error {
		numPieces, pieceIDs, err := format.DecodeSelectorKey(key)
		if err != nil {
			return err
		}
		id, err := format.DecodeID(data)
		if err != nil {
			return err
		}
		sel := types.SelectorRef{NumPieces: int(numPieces)}
		for _, pieceID := range pieceIDs {
			sel.Pieces = append(sel.Pieces, names[pieceID])
		}
		selectors[id] = sel
		return nil
	})
	if err != nil {
		return nil, err
	}
	return selectors, nil
}

func decodeEnumConstant(c *format.Cursor) (*types.EnumConstantInfo, error) {
	info := &types.EnumConstantInfo{}
	if err := format.DecodeCommonEntityInfo(c, &info.CommonEntityInfo); err != nil {
		return nil, err
	}
	return info, nil
}

func decodeTag(c *format.Cursor) (*types.TagInfo, error) {
	info := &types.TagInfo{}
	if err := format.DecodeCommonTypeInfo(c, &info.CommonTypeInfo); err != nil {
		return nil, err
	}
	return info, nil
}

func decodeTypedef(c *format.Cursor) (*types.TypedefInfo, error) {
	info := &types.TypedefInfo{}
	if err := format.DecodeCommonTypeInfo(c, &info.CommonTypeInfo); err != nil {
		return nil, err
	}
	return info, nil
}

// walkByName traverses one of the single-identifier tables.
func walkByName[T any](table *disktable.Table, names map[uint32]string, decode func(*format.Cursor) (*T, error), fn func(string, *T)) error {
	if fn == nil {
		return nil
	}
	return table.Walk(func(key, data []byte) error {
		nameID, err := format.DecodeNameKey(key)
		if err != nil {
			return err
		}
		info, err := decode(format.NewCursor(data))
		if err != nil {
			return err
		}
		fn(names[nameID], info)
		return nil
	})
}
