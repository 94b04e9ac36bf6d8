package hash

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/chazu/lya/compiler"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of an LYA program.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Integers: big-endian fixed-width (int64=8B)
//   - Strings: uint32 big-endian length + UTF-8 bytes
//   - Names: lower-cased, since LYA names are case-insensitive
//   - Booleans: single byte (0/1)
//   - Lists: uint32 count followed by the elements
//   - Absent optional children: TagAbsent
//
// Source positions, comments and layout are not part of the stream.
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of a program.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(prog *compiler.Program) []byte {
	s := &serializer{buf: make([]byte, 0, 256)}
	s.writeByte(HashVersion)
	s.node(prog)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeInt64(v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	s.buf = append(s.buf, b[:]...)
}

func (s *serializer) writeString(v string) {
	s.writeUint32(uint32(len(v)))
	s.buf = append(s.buf, v...)
}

func (s *serializer) writeBool(v bool) {
	if v {
		s.writeByte(1)
	} else {
		s.writeByte(0)
	}
}

func (s *serializer) names(ids []*compiler.Ident) {
	s.writeUint32(uint32(len(ids)))
	for _, id := range ids {
		s.writeString(strings.ToLower(id.Name))
	}
}

func (s *serializer) stmts(list []compiler.Stmt) {
	s.writeUint32(uint32(len(list)))
	for _, st := range list {
		s.node(st)
	}
}

func (s *serializer) exprs(list []compiler.Expr) {
	s.writeUint32(uint32(len(list)))
	for _, e := range list {
		s.node(e)
	}
}

// optional writes n, or TagAbsent when the child is missing.
func (s *serializer) optional(n compiler.Node, present bool) {
	if !present {
		s.writeByte(TagAbsent)
		return
	}
	s.node(n)
}

func (s *serializer) node(node compiler.Node) {
	switch n := node.(type) {
	case *compiler.Program:
		s.writeByte(TagProgram)
		s.stmts(n.Stmts)

	// Declarations
	case *compiler.DeclStmt:
		s.writeByte(TagDecl)
		s.writeUint32(uint32(len(n.Decls)))
		for _, d := range n.Decls {
			s.names(d.Names)
			s.node(d.Mode)
			s.writeBool(d.Loc)
			s.optional(d.Init, d.Init != nil)
		}

	case *compiler.SynStmt:
		s.writeByte(TagSyn)
		s.writeUint32(uint32(len(n.Syns)))
		for _, d := range n.Syns {
			s.names(d.Names)
			s.optional(d.Mode, d.Mode != nil)
			s.node(d.Value)
		}

	case *compiler.TypeStmt:
		s.writeByte(TagType)
		s.writeUint32(uint32(len(n.Defs)))
		for _, d := range n.Defs {
			s.names(d.Names)
			s.node(d.Mode)
		}

	case *compiler.ProcStmt:
		s.writeByte(TagProc)
		s.writeString(strings.ToLower(n.Name.Name))
		s.writeUint32(uint32(len(n.Params)))
		for _, p := range n.Params {
			s.writeByte(TagParam)
			s.names(p.Names)
			s.node(p.Mode)
			s.writeBool(p.Loc)
		}
		if n.Result != nil {
			s.writeByte(TagResult)
			s.node(n.Result.Mode)
			s.writeBool(n.Result.Loc)
		} else {
			s.writeByte(TagAbsent)
		}
		s.stmts(n.Body)

	// Actions
	case *compiler.AssignAction:
		s.writeByte(TagAssign)
		s.writeString(n.Op)
		s.node(n.Target)
		s.node(n.Value)

	case *compiler.IfAction:
		s.writeByte(TagIf)
		s.writeUint32(uint32(len(n.Branches)))
		for _, b := range n.Branches {
			s.node(b.Cond)
			s.stmts(b.Body)
		}
		s.writeBool(n.Else != nil)
		s.stmts(n.Else)

	case *compiler.DoAction:
		s.writeByte(TagDo)
		if fc := n.For; fc != nil {
			s.writeByte(TagFor)
			s.writeString(strings.ToLower(fc.Counter.Name))
			s.node(fc.Start)
			s.optional(fc.Step, fc.Step != nil)
			s.writeBool(fc.Down)
			s.node(fc.End)
		} else {
			s.writeByte(TagAbsent)
		}
		s.optional(n.While, n.While != nil)
		s.stmts(n.Body)

	case *compiler.CallAction:
		s.writeByte(TagCallAction)
		s.node(n.Call)

	case *compiler.ReturnAction:
		s.writeByte(TagReturnAction)
		s.optional(n.Value, n.Value != nil)

	case *compiler.ResultAction:
		s.writeByte(TagResultAction)
		s.node(n.Value)

	// Modes
	case *compiler.ModeName:
		s.writeByte(TagModeName)
		s.writeString(strings.ToLower(n.Name.Name))

	case *compiler.RangeMode:
		s.writeByte(TagRangeMode)
		s.optional(n.Base, n.Base != nil)
		s.node(n.Lo)
		s.node(n.Hi)

	case *compiler.RefMode:
		s.writeByte(TagRefMode)
		s.node(n.Elem)

	case *compiler.CharsMode:
		s.writeByte(TagCharsMode)
		s.node(n.Len)

	case *compiler.ArrayMode:
		s.writeByte(TagArrayMode)
		s.writeUint32(uint32(len(n.Indexes)))
		for _, m := range n.Indexes {
			s.node(m)
		}
		s.node(n.Elem)

	// Expressions
	case *compiler.IntLiteral:
		s.writeByte(TagIntLiteral)
		s.writeInt64(n.Value)

	case *compiler.BoolLiteral:
		s.writeByte(TagBoolLiteral)
		s.writeBool(n.Value)

	case *compiler.CharLiteral:
		s.writeByte(TagCharLiteral)
		s.writeUint32(uint32(n.Value))

	case *compiler.StringLiteral:
		s.writeByte(TagStringLiteral)
		s.writeString(n.Value)

	case *compiler.Ident:
		s.writeByte(TagIdent)
		s.writeString(strings.ToLower(n.Name))

	case *compiler.UnaryExpr:
		s.writeByte(TagUnary)
		s.writeString(n.Op)
		s.node(n.X)

	case *compiler.BinaryExpr:
		s.writeByte(TagBinary)
		s.writeString(n.Op)
		s.node(n.X)
		s.node(n.Y)

	case *compiler.CondExpr:
		s.writeByte(TagCond)
		s.writeUint32(uint32(len(n.Branches)))
		for _, b := range n.Branches {
			s.node(b.Cond)
			s.node(b.Value)
		}
		s.node(n.Else)

	case *compiler.CallExpr:
		s.writeByte(TagCall)
		s.writeString(strings.ToLower(n.Callee.Name))
		s.exprs(n.Args)

	case *compiler.IndexExpr:
		s.writeByte(TagIndex)
		s.node(n.X)
		s.exprs(n.Indexes)

	case *compiler.DerefExpr:
		s.writeByte(TagDeref)
		s.node(n.X)

	case *compiler.RefExpr:
		s.writeByte(TagRef)
		s.node(n.X)

	default:
		panic(fmt.Sprintf("hash: unexpected node %T", n))
	}
}
