package format

import (
	"encoding/binary"
	"fmt"

	"github.com/annostore/annostore/internal/errors"
	"github.com/annostore/annostore/pkg/types"
)

// Key encodings. Each entity kind's table hashes and compares these
// encoded bytes directly, so the encodings double as equality.

// AppendContextKey encodes a context table key.
func AppendContextKey(buf []byte, nameID uint32, isProtocol bool) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, nameID)
	return append(buf, boolByte(isProtocol))
}

// DecodeContextKey decodes a context table key.
func DecodeContextKey(key []byte) (nameID uint32, isProtocol bool, err error) {
	c := NewCursor(key)
	if nameID, err = c.U32(); err != nil {
		return 0, false, err
	}
	isProtocol, err = c.Bool()
	return nameID, isProtocol, err
}

// AppendMemberKey encodes a property or method table key: the owning
// context, the name or selector ID, and the instance flag.
func AppendMemberKey(buf []byte, ctx types.ContextID, id uint32, isInstance bool) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ctx))
	buf = binary.LittleEndian.AppendUint32(buf, id)
	return append(buf, boolByte(isInstance))
}

// DecodeMemberKey decodes a property or method table key.
func DecodeMemberKey(key []byte) (ctx types.ContextID, id uint32, isInstance bool, err error) {
	c := NewCursor(key)
	raw, err := c.U32()
	if err != nil {
		return 0, 0, false, err
	}
	if id, err = c.U32(); err != nil {
		return 0, 0, false, err
	}
	isInstance, err = c.Bool()
	return types.ContextID(raw), id, isInstance, err
}

// AppendNameKey encodes a single-identifier table key.
func AppendNameKey(buf []byte, nameID uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, nameID)
}

// DecodeNameKey decodes a single-identifier table key.
func DecodeNameKey(key []byte) (uint32, error) {
	c := NewCursor(key)
	return c.U32()
}

// AppendID encodes a bare uint32 ID value, the payload of the identifier
// and selector tables.
func AppendID(buf []byte, id uint32) []byte {
	return binary.LittleEndian.AppendUint32(buf, id)
}

// DecodeID decodes a bare uint32 ID value.
func DecodeID(data []byte) (uint32, error) {
	c := NewCursor(data)
	return c.U32()
}

// AppendSelectorKey encodes a selector table key: the explicit piece
// count followed by the piece identifier IDs.
func AppendSelectorKey(buf []byte, numPieces uint16, pieceIDs []uint32) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, numPieces)
	for _, id := range pieceIDs {
		buf = binary.LittleEndian.AppendUint32(buf, id)
	}
	return buf
}

// DecodeSelectorKey decodes a selector table key.
func DecodeSelectorKey(key []byte) (numPieces uint16, pieceIDs []uint32, err error) {
	c := NewCursor(key)
	if numPieces, err = c.U16(); err != nil {
		return 0, nil, err
	}
	for c.Remaining() >= 4 {
		id, err := c.U32()
		if err != nil {
			return 0, nil, err
		}
		pieceIDs = append(pieceIDs, id)
	}
	if c.Remaining() != 0 {
		return 0, nil, errors.NewDecodeError(errors.CodeMalformedTable,
			fmt.Sprintf("selector key has %d trailing bytes", c.Remaining()))
	}
	return numPieces, pieceIDs, nil
}

// Payload encodings.

// AppendCommonEntityInfo encodes the payload fields shared by every
// entity kind: one flag byte, then the unavailable message and Swift name
// as length-prefixed strings.
func AppendCommonEntityInfo(buf []byte, info *types.CommonEntityInfo) []byte {
	var flags uint8
	if info.UnavailableInSwift {
		flags |= 0x01
	}
	if info.Unavailable {
		flags |= 0x02
	}
	if info.SwiftPrivate {
		flags |= 0x04
	}
	buf = append(buf, flags)
	buf = appendString16(buf, info.UnavailableMsg)
	return appendString16(buf, info.SwiftName)
}

// DecodeCommonEntityInfo decodes into info.
func DecodeCommonEntityInfo(c *Cursor, info *types.CommonEntityInfo) error {
	flags, err := c.U8()
	if err != nil {
		return err
	}
	info.UnavailableInSwift = flags&0x01 != 0
	info.Unavailable = flags&0x02 != 0
	info.SwiftPrivate = flags&0x04 != 0
	if info.UnavailableMsg, err = c.String16(); err != nil {
		return err
	}
	info.SwiftName, err = c.String16()
	return err
}

// AppendCommonTypeInfo encodes the common entity payload plus the bridged
// type name and error domain as optional strings.
func AppendCommonTypeInfo(buf []byte, info *types.CommonTypeInfo) []byte {
	buf = AppendCommonEntityInfo(buf, &info.CommonEntityInfo)
	buf = appendOptionalString16(buf, info.SwiftBridge)
	return appendOptionalString16(buf, info.NSErrorDomain)
}

// DecodeCommonTypeInfo decodes into info.
func DecodeCommonTypeInfo(c *Cursor, info *types.CommonTypeInfo) error {
	if err := DecodeCommonEntityInfo(c, &info.CommonEntityInfo); err != nil {
		return err
	}
	var err error
	if info.SwiftBridge, err = c.OptionalString16(); err != nil {
		return err
	}
	info.NSErrorDomain, err = c.OptionalString16()
	return err
}

// AppendContextValue encodes a context table value: the stable context
// handle, the common type payload, and three trailing bytes for the
// default-nullability presence and value and the designated-inits flag.
func AppendContextValue(buf []byte, ctx types.ContextID, info *types.ContextInfo) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, uint32(ctx))
	buf = AppendCommonTypeInfo(buf, &info.CommonTypeInfo)
	if info.DefaultNullability != nil {
		buf = append(buf, 1, uint8(*info.DefaultNullability))
	} else {
		buf = append(buf, 0, 0)
	}
	return append(buf, boolByte(info.HasDesignatedInits))
}

// DecodeContextValue decodes a context table value.
func DecodeContextValue(c *Cursor) (types.ContextID, *types.ContextInfo, error) {
	raw, err := c.U32()
	if err != nil {
		return 0, nil, err
	}
	info := &types.ContextInfo{}
	if err := DecodeCommonTypeInfo(c, &info.CommonTypeInfo); err != nil {
		return 0, nil, err
	}
	hasDefault, err := c.Bool()
	if err != nil {
		return 0, nil, err
	}
	kind, err := c.U8()
	if err != nil {
		return 0, nil, err
	}
	if hasDefault {
		info.SetDefaultNullability(types.NullabilityKind(kind))
	}
	if info.HasDesignatedInits, err = c.Bool(); err != nil {
		return 0, nil, err
	}
	return types.ContextID(raw), info, nil
}

// AppendVariableInfo encodes a variable payload: the common entity
// payload plus two bytes for the nullability presence and value.
func AppendVariableInfo(buf []byte, info *types.VariableInfo) []byte {
	buf = AppendCommonEntityInfo(buf, &info.CommonEntityInfo)
	if info.Nullability != nil {
		return append(buf, 1, uint8(*info.Nullability))
	}
	return append(buf, 0, 0)
}

// DecodeVariableInfo decodes a variable payload.
func DecodeVariableInfo(c *Cursor) (*types.VariableInfo, error) {
	info := &types.VariableInfo{}
	if err := DecodeCommonEntityInfo(c, &info.CommonEntityInfo); err != nil {
		return nil, err
	}
	audited, err := c.Bool()
	if err != nil {
		return nil, err
	}
	kind, err := c.U8()
	if err != nil {
		return nil, err
	}
	if audited {
		info.SetNullability(types.NullabilityKind(kind))
	}
	return info, nil
}

// AppendFunctionInfo encodes a function payload: the common entity
// payload, the audited flag, the adjusted slot count, the packed
// nullability payload, and one flag byte per parameter.
func AppendFunctionInfo(buf []byte, info *types.FunctionInfo) []byte {
	buf = AppendCommonEntityInfo(buf, &info.CommonEntityInfo)
	buf = append(buf, boolByte(info.NullabilityAudited))
	buf = append(buf, info.NumAdjustedNullable)
	buf = binary.LittleEndian.AppendUint64(buf, info.NullabilityPayload)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(info.Params)))
	for _, p := range info.Params {
		var flags uint8
		if p.NoEscapeSpecified {
			flags |= 0x01
		}
		if p.NoEscape {
			flags |= 0x02
		}
		buf = append(buf, flags)
	}
	return buf
}

// DecodeFunctionInfo decodes a function payload.
func DecodeFunctionInfo(c *Cursor) (*types.FunctionInfo, error) {
	info := &types.FunctionInfo{}
	if err := DecodeCommonEntityInfo(c, &info.CommonEntityInfo); err != nil {
		return nil, err
	}
	var err error
	if info.NullabilityAudited, err = c.Bool(); err != nil {
		return nil, err
	}
	if info.NumAdjustedNullable, err = c.U8(); err != nil {
		return nil, err
	}
	if info.NullabilityPayload, err = c.U64(); err != nil {
		return nil, err
	}
	paramCount, err := c.U16()
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(paramCount); i++ {
		flags, err := c.U8()
		if err != nil {
			return nil, err
		}
		info.Params = append(info.Params, types.ParamInfo{
			NoEscapeSpecified: flags&0x01 != 0,
			NoEscape:          flags&0x02 != 0,
		})
	}
	return info, nil
}

// AppendMethodInfo encodes a method payload: the function payload plus
// three trailing flag bytes.
func AppendMethodInfo(buf []byte, info *types.MethodInfo) []byte {
	buf = AppendFunctionInfo(buf, &info.FunctionInfo)
	buf = append(buf, boolByte(info.DesignatedInit))
	buf = append(buf, boolByte(info.FactoryAsInit))
	return append(buf, boolByte(info.Required))
}

// DecodeMethodInfo decodes a method payload.
func DecodeMethodInfo(c *Cursor) (*types.MethodInfo, error) {
	fn, err := DecodeFunctionInfo(c)
	if err != nil {
		return nil, err
	}
	info := &types.MethodInfo{FunctionInfo: *fn}
	if info.DesignatedInit, err = c.Bool(); err != nil {
		return nil, err
	}
	if info.FactoryAsInit, err = c.Bool(); err != nil {
		return nil, err
	}
	info.Required, err = c.Bool()
	return info, err
}

// AppendControlBlock encodes the control block payload: version pair,
// module name, and the module options record when non-default.
func AppendControlBlock(buf []byte, moduleName string, opts types.ModuleOptions) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, VersionMajor)
	buf = binary.LittleEndian.AppendUint16(buf, VersionMinor)
	buf = appendString16(buf, moduleName)
	if opts.IsDefault() {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	var optionsByte uint8
	if opts.SwiftInferImportAsMember {
		optionsByte |= 0x01
	}
	return append(buf, optionsByte)
}

// DecodeControlBlock decodes the control block payload.
func DecodeControlBlock(payload []byte) (major, minor uint16, moduleName string, opts types.ModuleOptions, err error) {
	c := NewCursor(payload)
	if major, err = c.U16(); err != nil {
		return
	}
	if minor, err = c.U16(); err != nil {
		return
	}
	if moduleName, err = c.String16(); err != nil {
		return
	}
	present, err := c.Bool()
	if err != nil || !present {
		return
	}
	optionsByte, err := c.U8()
	if err != nil {
		return
	}
	opts.SwiftInferImportAsMember = optionsByte&0x01 != 0
	return
}

func appendString16(buf []byte, s string) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// appendOptionalString16 writes the optional-string encoding: length 0
// for absent, length n+1 for a present n-byte string, so a present empty
// string stays distinguishable from an absent one.
func appendOptionalString16(buf []byte, s *string) []byte {
	if s == nil {
		return binary.LittleEndian.AppendUint16(buf, 0)
	}
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(*s)+1))
	return append(buf, *s...)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
