package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annostore/annostore/internal/errors"
	"github.com/annostore/annostore/pkg/types"
)

func TestContextKeyRoundTrip(t *testing.T) {
	key := AppendContextKey(nil, 42, true)
	nameID, isProtocol, err := DecodeContextKey(key)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), nameID)
	assert.True(t, isProtocol)

	// Class and protocol keys for the same name must differ.
	classKey := AppendContextKey(nil, 42, false)
	assert.NotEqual(t, key, classKey)
}

func TestMemberKeyRoundTrip(t *testing.T) {
	key := AppendMemberKey(nil, types.ContextID(7), 99, true)
	ctx, id, isInstance, err := DecodeMemberKey(key)
	require.NoError(t, err)
	assert.Equal(t, types.ContextID(7), ctx)
	assert.Equal(t, uint32(99), id)
	assert.True(t, isInstance)
}

func TestSelectorKeyRoundTrip(t *testing.T) {
	key := AppendSelectorKey(nil, 2, []uint32{3, 4})
	numPieces, pieceIDs, err := DecodeSelectorKey(key)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), numPieces)
	assert.Equal(t, []uint32{3, 4}, pieceIDs)
}

func TestSelectorKeyRejectsTrailingBytes(t *testing.T) {
	key := AppendSelectorKey(nil, 1, []uint32{5})
	key = append(key, 0xFF)
	_, _, err := DecodeSelectorKey(key)
	assert.Equal(t, errors.CodeMalformedTable, errors.GetCode(err))
}

func TestCommonEntityInfoRoundTrip(t *testing.T) {
	info := &types.CommonEntityInfo{
		UnavailableMsg:     "use the new API",
		Unavailable:        true,
		UnavailableInSwift: false,
		SwiftPrivate:       true,
		SwiftName:          "newAPI()",
	}
	buf := AppendCommonEntityInfo(nil, info)
	var got types.CommonEntityInfo
	require.NoError(t, DecodeCommonEntityInfo(NewCursor(buf), &got))
	assert.Equal(t, *info, got)
}

func TestCommonTypeInfoOptionalStrings(t *testing.T) {
	empty := ""
	bridge := "Swift.Array"

	tests := []struct {
		name string
		info types.CommonTypeInfo
	}{
		{"both absent", types.CommonTypeInfo{}},
		{"bridge present", types.CommonTypeInfo{SwiftBridge: &bridge}},
		{"present empty string", types.CommonTypeInfo{SwiftBridge: &empty}},
		{"error domain present", types.CommonTypeInfo{NSErrorDomain: &bridge}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := AppendCommonTypeInfo(nil, &tt.info)
			var got types.CommonTypeInfo
			require.NoError(t, DecodeCommonTypeInfo(NewCursor(buf), &got))
			assert.Equal(t, tt.info, got)
		})
	}
}

func TestPresentEmptyStringDiffersFromAbsent(t *testing.T) {
	empty := ""
	present := AppendCommonTypeInfo(nil, &types.CommonTypeInfo{SwiftBridge: &empty})
	absent := AppendCommonTypeInfo(nil, &types.CommonTypeInfo{})
	assert.NotEqual(t, present, absent)
}

func TestContextValueRoundTrip(t *testing.T) {
	info := &types.ContextInfo{HasDesignatedInits: true}
	info.SetDefaultNullability(types.Nullable)
	info.SwiftName = "Renamed"

	buf := AppendContextValue(nil, types.ContextID(9), info)
	ctx, got, err := DecodeContextValue(NewCursor(buf))
	require.NoError(t, err)
	assert.Equal(t, types.ContextID(9), ctx)
	assert.Equal(t, info, got)
}

func TestContextValueWithoutNullability(t *testing.T) {
	buf := AppendContextValue(nil, 1, &types.ContextInfo{})
	_, got, err := DecodeContextValue(NewCursor(buf))
	require.NoError(t, err)
	assert.Nil(t, got.DefaultNullability)
}

func TestVariableInfoRoundTrip(t *testing.T) {
	info := &types.VariableInfo{}
	info.SetNullability(types.NonNull)
	info.SwiftPrivate = true

	buf := AppendVariableInfo(nil, info)
	got, err := DecodeVariableInfo(NewCursor(buf))
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestFunctionInfoRoundTrip(t *testing.T) {
	info := &types.FunctionInfo{}
	info.AddReturnTypeInfo(types.Nullable)
	info.AddParamTypeInfo(0, types.NonNull)
	info.Params = []types.ParamInfo{
		{NoEscapeSpecified: true, NoEscape: true},
		{},
	}

	buf := AppendFunctionInfo(nil, info)
	got, err := DecodeFunctionInfo(NewCursor(buf))
	require.NoError(t, err)
	assert.Equal(t, info, got)
	assert.True(t, got.NullabilityAudited)
	assert.Equal(t, types.Nullable, got.ReturnTypeInfo())
	assert.Equal(t, types.NonNull, got.ParamTypeInfo(0))
}

func TestMethodInfoRoundTrip(t *testing.T) {
	info := &types.MethodInfo{DesignatedInit: true, Required: true}
	info.SwiftName = "init(frame:)"

	buf := AppendMethodInfo(nil, info)
	got, err := DecodeMethodInfo(NewCursor(buf))
	require.NoError(t, err)
	assert.Equal(t, info, got)
}

func TestControlBlockDefaultOptionsOmitted(t *testing.T) {
	withDefaults := AppendControlBlock(nil, "M", types.ModuleOptions{})
	withOptions := AppendControlBlock(nil, "M", types.ModuleOptions{SwiftInferImportAsMember: true})

	// The options record is only written when non-default.
	assert.Equal(t, len(withDefaults)+1, len(withOptions))

	major, minor, name, opts, err := DecodeControlBlock(withDefaults)
	require.NoError(t, err)
	assert.Equal(t, uint16(VersionMajor), major)
	assert.Equal(t, uint16(VersionMinor), minor)
	assert.Equal(t, "M", name)
	assert.True(t, opts.IsDefault())

	_, _, _, opts, err = DecodeControlBlock(withOptions)
	require.NoError(t, err)
	assert.True(t, opts.SwiftInferImportAsMember)
}

func TestDecodeControlBlockTruncated(t *testing.T) {
	full := AppendControlBlock(nil, "Module", types.ModuleOptions{})
	_, _, _, _, err := DecodeControlBlock(full[:3])
	assert.Equal(t, errors.CodeTruncated, errors.GetCode(err))
}
