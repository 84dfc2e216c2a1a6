// Package format defines the binary container layout: the file
// signature, version pair, block framing, and the key and payload
// encodings for every entity kind. Encoders and decoders are paired pure
// functions over fixed-width little-endian fields; changing any width
// breaks compatibility with existing files.
package format

import (
	"encoding/binary"
	"fmt"

	"github.com/annostore/annostore/internal/errors"
)

// Signature identifies a compiled notes file.
var Signature = [4]byte{0xE2, 0x9C, 0xA8, 0x01}

// Format version. The major version gates readers entirely; the minor
// version is incremented on any compatible format change.
const (
	VersionMajor = 0
	VersionMinor = 14
)

// Block IDs. These must not be renumbered or reordered without
// incrementing VersionMajor.
const (
	BlockInfoBlockID uint32 = 8 + iota
	ControlBlockID
	IdentifierBlockID
	ContextBlockID
	PropertyBlockID
	MethodBlockID
	SelectorBlockID
	GlobalVariableBlockID
	GlobalFunctionBlockID
	EnumConstantBlockID
	TagBlockID
	TypedefBlockID
)

// BlockOrder is the deterministic emission order of all blocks.
var BlockOrder = []uint32{
	BlockInfoBlockID,
	ControlBlockID,
	IdentifierBlockID,
	ContextBlockID,
	PropertyBlockID,
	MethodBlockID,
	SelectorBlockID,
	GlobalVariableBlockID,
	GlobalFunctionBlockID,
	EnumConstantBlockID,
	TagBlockID,
	TypedefBlockID,
}

var blockNames = map[uint32]string{
	BlockInfoBlockID:      "blockinfo",
	ControlBlockID:        "control",
	IdentifierBlockID:     "identifier",
	ContextBlockID:        "objc_context",
	PropertyBlockID:       "objc_property",
	MethodBlockID:         "objc_method",
	SelectorBlockID:       "objc_selector",
	GlobalVariableBlockID: "global_variable",
	GlobalFunctionBlockID: "global_function",
	EnumConstantBlockID:   "enum_constant",
	TagBlockID:            "tag",
	TypedefBlockID:        "typedef",
}

// BlockName returns the diagnostic name for a block ID.
func BlockName(id uint32) string {
	if name, ok := blockNames[id]; ok {
		return name
	}
	return fmt.Sprintf("block_%d", id)
}

// AppendBlock frames one block: uint32 ID, uint32 payload length, payload.
func AppendBlock(buf []byte, id uint32, payload []byte) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, id)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(payload)))
	return append(buf, payload...)
}

// CheckSignature verifies the leading signature and returns the block
// area that follows it.
func CheckSignature(data []byte) ([]byte, error) {
	if len(data) < len(Signature) {
		return nil, errors.NewFormatError(errors.CodeBadSignature,
			"buffer shorter than file signature")
	}
	for i, b := range Signature {
		if data[i] != b {
			return nil, errors.NewFormatError(errors.CodeBadSignature,
				"file signature mismatch")
		}
	}
	return data[len(Signature):], nil
}

// ParseBlocks walks the framed block sequence once and returns each
// block's payload slice. Unknown block IDs are retained so newer files
// with extra blocks still open; missing blocks are simply absent from the
// result.
func ParseBlocks(data []byte) (map[uint32][]byte, error) {
	blocks := make(map[uint32][]byte)
	for off := 0; off < len(data); {
		if off+8 > len(data) {
			return nil, errors.NewFormatError(errors.CodeMalformedBlock,
				fmt.Sprintf("truncated block header at offset %d", off))
		}
		id := binary.LittleEndian.Uint32(data[off:])
		length := int(binary.LittleEndian.Uint32(data[off+4:]))
		off += 8
		if off+length > len(data) {
			return nil, errors.NewFormatError(errors.CodeMalformedBlock,
				fmt.Sprintf("block %s length %d overruns buffer", BlockName(id), length))
		}
		if _, dup := blocks[id]; dup {
			return nil, errors.NewFormatError(errors.CodeMalformedBlock,
				fmt.Sprintf("duplicate block %s", BlockName(id)))
		}
		blocks[id] = data[off : off+length]
		off += length
	}
	return blocks, nil
}

// AppendBlockInfo encodes the block-metadata directory: every block ID
// with its human-readable name. Tools use it for diagnostics; readers may
// skip it entirely.
func AppendBlockInfo(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(BlockOrder)))
	for _, id := range BlockOrder {
		buf = binary.LittleEndian.AppendUint32(buf, id)
		name := BlockName(id)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(name)))
		buf = append(buf, name...)
	}
	return buf
}
