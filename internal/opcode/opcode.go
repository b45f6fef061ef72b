// Package opcode defines the stable-index tables the rest of the compiler
// core operates on: Rule, UDT, and the tagged-variant Opcode (spec §3.1).
//
// Rules, UDTs, and opcodes never hold pointers to each other. Every
// cross-reference — an ALT/CAT child, an RNM target, a BKR target — is a
// plain int index into one of the session's tables. This mirrors the
// stable-index discipline spec §9 calls out explicitly: cyclic referencing
// between rules is the dominant cross-cutting pattern here, so rules live
// in a slice and refer to each other by position, never by owning pointer.
package opcode

// Kind tags which opcode variant a record holds. The payload fields an
// Opcode actually uses depend on Kind — the same "Type field plus union of
// payload fields" shape as a parser action record, just applied to grammar
// operators instead of shift/reduce/accept decisions.
type Kind int

const (
	ALT Kind = iota
	CAT
	REP
	RNM
	TLS
	TBS
	TRG
	UDT
	BKR
	AND
	NOT
	BKA
	BKN
	ABG
	AEN
)

func (k Kind) String() string {
	switch k {
	case ALT:
		return "ALT"
	case CAT:
		return "CAT"
	case REP:
		return "REP"
	case RNM:
		return "RNM"
	case TLS:
		return "TLS"
	case TBS:
		return "TBS"
	case TRG:
		return "TRG"
	case UDT:
		return "UDT"
	case BKR:
		return "BKR"
	case AND:
		return "AND"
	case NOT:
		return "NOT"
	case BKA:
		return "BKA"
	case BKN:
		return "BKN"
	case ABG:
		return "ABG"
	case AEN:
		return "AEN"
	default:
		return "UNKNOWN"
	}
}

// HasMap reports whether opcodes of this kind carry their own PPPT map
// (spec §4.4 "which opcodes carry maps"). RNM, UDT, BKR, BKA, BKN, ABG, AEN
// inherit their parent's decision at runtime instead.
func (k Kind) HasMap() bool {
	switch k {
	case ALT, CAT, REP, TRG, TLS, TBS, AND, NOT:
		return true
	default:
		return false
	}
}

// BkrCase and BkrMode are the two small enums a BKR opcode carries.
type BkrCase int

const (
	BkrCaseSensitive BkrCase = iota
	BkrCaseInsensitive
)

type BkrMode int

const (
	BkrModeUniversal BkrMode = iota
	BkrModeParentFrame
)

// Unbounded is the sentinel REP/TRG max meaning "no upper bound".
const Unbounded int64 = -1

// Op is one opcode record. Only the fields relevant to Kind are meaningful;
// see the per-tag comments. Child index lists (ALT/CAT) are stored as a
// slice into the session's shared child-index table, referenced here by
// offset and count so the table itself can be packed contiguously by the
// emitter (spec §3.1, §6.2).
type Op struct {
	Kind Kind

	// ALT, CAT: children are child-index-table entries [ChildOffset,
	// ChildOffset+ChildCount), each entry an absolute index into the
	// session's Op slice.
	ChildOffset int
	ChildCount  int

	// REP: repetition bounds. Min==0 denotes optional; Max==Unbounded
	// denotes no upper bound.
	Min int64
	Max int64

	// RNM: target rule. BKR: target rule or UDT, selected via IsUDT.
	RefIndex int
	IsUDT    bool

	// TLS, TBS: slice into the session's alphabet-character table.
	AcharOffset int
	AcharLength int

	// UDT: target UDT and whether it may match empty (also mirrored onto
	// the UDT table entry).
	UdtIndex   int
	MayBeEmpty bool

	// TRG: inclusive alphabet-character range. Reuses Min/Max.

	// BKR:
	Case BkrCase
	Mode BkrMode

	// REP, AND, NOT, BKA, BKN: the single wrapped operand needs no explicit
	// field. The translator builds every opcode tree bottom-up (a child is
	// always emitted before the parent that wraps it), so by construction
	// the operand is always the immediately preceding Op — Child() below
	// returns it.

	// PpptIndex is the index into the PPPT table's Maps of this opcode's
	// prediction map (for RNM, the target rule's map), assigned by the PPPT
	// builder. Zero until
	// BuildPPPT runs; only meaningful when Kind.HasMap().
	PpptIndex int
}

// Child returns the absolute Ops index of op's single wrapped operand (REP,
// AND, NOT, BKA, BKN), given op's own absolute index. The operand always
// immediately precedes its wrapping opcode (see the REP/AND/NOT/BKA/BKN
// field-group comment in Op above).
func Child(opIndex int) int {
	return opIndex - 1
}

// Rule is one grammar rule: a stable index, a case-preserved display name,
// and the contiguous span of the session's Op slice that holds its body.
type Rule struct {
	Index      int
	Name       string
	NameOffset int // Name's position in the session's string table
	OpOffset   int
	OpCount    int
	Protected  bool
	PpptIndex  int // assigned by the PPPT builder
	MayBeEmpty bool
}

// UDT is one user-defined terminal: a stable index, name, and whether it
// may match the empty phrase, derived from its name's "e_"/"u_" prefix
// (spec §3.1).
type UDT struct {
	Index      int
	Name       string
	NameOffset int // Name's position in the session's string table
	MayBeEmpty bool
}

// MayBeEmptyFromName implements the naming convention: names beginning with
// "e_" may match empty, names beginning with "u_" may not.
func MayBeEmptyFromName(name string) bool {
	return len(name) >= 2 && (name[0] == 'e' || name[0] == 'E') && name[1] == '_'
}
