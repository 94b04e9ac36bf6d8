package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the program hashing format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every cached compilation keyed by a content hash.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// Node type tags. Each tag uniquely identifies a node kind in the
// serialized byte stream.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	// Literals
	TagIntLiteral    byte = 0x01
	TagBoolLiteral   byte = 0x02
	TagCharLiteral   byte = 0x03
	TagStringLiteral byte = 0x04

	// Names and operators
	TagIdent  byte = 0x08
	TagUnary  byte = 0x09
	TagBinary byte = 0x0A
	TagCond   byte = 0x0B
	TagCall   byte = 0x0C
	TagIndex  byte = 0x0D
	TagDeref  byte = 0x0E
	TagRef    byte = 0x0F

	// Modes
	TagModeName  byte = 0x10
	TagRangeMode byte = 0x11
	TagRefMode   byte = 0x12
	TagCharsMode byte = 0x13
	TagArrayMode byte = 0x14

	// Declarations
	TagDecl    byte = 0x18
	TagSyn     byte = 0x19
	TagType    byte = 0x1A
	TagProc    byte = 0x1B
	TagParam   byte = 0x1C
	TagResult  byte = 0x1D
	TagProgram byte = 0x1E

	// Actions
	TagAssign       byte = 0x20
	TagIf           byte = 0x21
	TagDo           byte = 0x22
	TagFor          byte = 0x23
	TagCallAction   byte = 0x24
	TagReturnAction byte = 0x25
	TagResultAction byte = 0x26

	// Placeholder for an absent optional child
	TagAbsent byte = 0x3F

	// Reserved 0xFE-0xFF
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagIntLiteral, TagBoolLiteral, TagCharLiteral, TagStringLiteral,
	TagIdent, TagUnary, TagBinary, TagCond, TagCall, TagIndex, TagDeref, TagRef,
	TagModeName, TagRangeMode, TagRefMode, TagCharsMode, TagArrayMode,
	TagDecl, TagSyn, TagType, TagProc, TagParam, TagResult, TagProgram,
	TagAssign, TagIf, TagDo, TagFor, TagCallAction, TagReturnAction, TagResultAction,
	TagAbsent,
}
