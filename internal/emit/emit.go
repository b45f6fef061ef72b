// Package emit lays out the compiled artifacts of a session — rules, UDTs,
// opcodes, and the PPPT — into the binary initialization image a runtime
// loads directly (spec §4.5, §6.1, §6.2). The layout and per-field encoding
// mirror the fixed-width record approach of the teacher's own binary codec
// (internal/tunascript/binary.go): every field is written at a uniform,
// pre-computed integer width via encoding/binary rather than a
// self-describing or varint scheme, since the image is meant to be mapped
// by a minimal runtime with no decoder beyond "read N bytes at this width".
package emit

import (
	"encoding/binary"
	"math"

	"github.com/ldthomas/apg-go/internal/errs"
	"github.com/ldthomas/apg-go/internal/opcode"
	"github.com/ldthomas/apg-go/internal/pppt"
	"github.com/ldthomas/apg-go/internal/version"
)

// Header is the fixed field sequence of spec §6.1, in declared order, plus
// two fields the literal 22-field sequence never provides: the spec lays
// the string table and alphabet-character table out sequentially after the
// opcode records (items 6 and 7 of the §4.5 layout list) but gives no way
// to derive either table's byte length from the other 22 fields alone,
// which leaves the image non-self-describing for those two trailing
// sections. StringTableLength and AcharTableLength close that gap; they
// are appended immediately after OpcodesLength and are a deliberate
// extension beyond the spec's literal header, not part of it.
type Header struct {
	SizeInUnits uint64
	AcharMin    uint64
	AcharMax    uint64
	SizeofAchar uint64
	UintMax     uint64
	SizeofUint  uint64

	RuleCount    uint64
	UdtCount     uint64
	OpcodeCount  uint64
	PpptMapCount uint64
	PpptMapSize  uint64

	VersionOffset   uint64
	CopyrightOffset uint64
	LicenseOffset   uint64

	ChildListOffset uint64
	ChildListLength uint64

	RulesOffset uint64
	RulesLength uint64

	UdtsOffset uint64
	UdtsLength uint64

	OpcodesOffset uint64
	OpcodesLength uint64

	// Extension fields; see the doc comment above.
	StringTableLength uint64
	AcharTableLength  uint64
}

// headerFieldCount is the number of sizeof_uint-width words the header
// occupies: the spec's 22 plus the two extension fields above.
const headerFieldCount = 24

// widthPrefixBytes is a single byte holding SizeofUint, written immediately
// before the header. The header itself is a sequence of sizeof_uint-width
// words, which makes SizeofUint (one of those words) unreadable without
// already knowing the width it describes; this one-byte prefix is a third
// deliberate extension (alongside the two header fields above) that breaks
// the bootstrap problem so a reader can decode the image with no out-of-band
// information.
const widthPrefixBytes = 1

// Image is the complete initialization image: the decoded header alongside
// the raw bytes a runtime loads as-is.
type Image struct {
	Header Header
	Bytes  []byte
}

// bkrCaseWord folds BkrCase and the rule-vs-UDT target kind into a single
// word (spec §6.2 lists a BKR record as `target_index, case, mode` with no
// separate is-UDT flag): case-sensitive/insensitive occupy 0/1 for a rule
// target and 2/3 for a UDT target.
func bkrCaseWord(op *opcode.Op) uint64 {
	v := uint64(op.Case)
	if op.IsUDT {
		v += 2
	}
	return v
}

func payloadWords(k opcode.Kind) int {
	switch k {
	case opcode.ALT, opcode.CAT:
		return 3
	case opcode.REP, opcode.TRG:
		return 3
	case opcode.RNM:
		return 2
	case opcode.TLS, opcode.TBS:
		return 3
	case opcode.UDT:
		return 2
	case opcode.BKR:
		return 3
	case opcode.AND, opcode.NOT:
		return 1
	default: // BKA, BKN, ABG, AEN
		return 0
	}
}

// word is one not-yet-width-assigned output value. unbounded marks a
// REP/TRG Max of opcode.Unbounded, which is substituted with the chosen
// width's all-ones value at write time instead of contributing its literal
// -1 to the width scan.
type word struct {
	v         uint64
	unbounded bool
}

func plain(v uint64) word { return word{v: v} }

// Build lays out prog and table into a complete initialization image. ok is
// false iff an overflow was detected, in which case an EmitError was added
// to log and Build returns a nil Image.
func Build(prog *opcode.Program, table *pppt.Table, log *errs.Log) (*Image, bool) {
	mark := log.Len()

	versionOff, _ := prog.InternString(version.Current)
	copyrightOff, _ := prog.InternString(version.Copyright)
	licenseOff, _ := prog.InternString(version.License)

	opRecordWords := make([]int, len(prog.Ops))
	opUnitOffset := make([]uint64, len(prog.Ops))

	childListOffset := uint64(headerFieldCount)
	childListLength := uint64(len(prog.ChildIndexTable))

	rulesOffset := childListOffset + childListLength
	rulesLength := uint64(len(prog.Rules)) * 6

	udtsOffset := rulesOffset + rulesLength
	udtsLength := uint64(len(prog.Udts)) * 3

	opcodesOffset := udtsOffset + udtsLength
	var cursor uint64 = opcodesOffset
	for i := range prog.Ops {
		opRecordWords[i] = 1 + payloadWords(prog.Ops[i].Kind)
		opUnitOffset[i] = cursor
		cursor += uint64(opRecordWords[i])
	}
	opcodesLength := cursor - opcodesOffset

	ppptWord := func(mapIndex int) uint64 {
		if mapIndex < 0 {
			return 0
		}
		return uint64(mapIndex) * uint64(table.MapSize)
	}

	childListWords := make([]word, len(prog.ChildIndexTable))
	for i, opsIndex := range prog.ChildIndexTable {
		childListWords[i] = plain(opUnitOffset[opsIndex])
	}

	ruleWords := make([]word, 0, rulesLength)
	for i := range prog.Rules {
		r := &prog.Rules[i]
		ruleWords = append(ruleWords,
			plain(uint64(r.Index)),
			plain(ppptWord(r.PpptIndex)),
			plain(uint64(r.NameOffset)),
			plain(opUnitOffset[r.OpOffset]),
			plain(uint64(r.OpCount)),
			plain(boolWord(r.MayBeEmpty)),
		)
	}

	udtWords := make([]word, 0, udtsLength)
	for i := range prog.Udts {
		u := &prog.Udts[i]
		udtWords = append(udtWords,
			plain(uint64(u.Index)),
			plain(uint64(u.NameOffset)),
			plain(boolWord(u.MayBeEmpty)),
		)
	}

	opWords := make([]word, 0, opcodesLength)
	for i := range prog.Ops {
		op := &prog.Ops[i]
		opWords = append(opWords, plain(uint64(op.Kind)))
		switch op.Kind {
		case opcode.ALT, opcode.CAT:
			opWords = append(opWords,
				plain(ppptWord(op.PpptIndex)),
				plain(childListOffset+uint64(op.ChildOffset)),
				plain(uint64(op.ChildCount)),
			)
		case opcode.REP, opcode.TRG:
			opWords = append(opWords,
				plain(ppptWord(op.PpptIndex)),
				plain(uint64(op.Min)),
				repMaxWord(op.Max),
			)
		case opcode.RNM:
			opWords = append(opWords,
				plain(ppptWord(op.PpptIndex)),
				plain(uint64(op.RefIndex)),
			)
		case opcode.TLS, opcode.TBS:
			opWords = append(opWords,
				plain(ppptWord(op.PpptIndex)),
				plain(uint64(op.AcharOffset)),
				plain(uint64(op.AcharLength)),
			)
		case opcode.UDT:
			opWords = append(opWords,
				plain(uint64(op.UdtIndex)),
				plain(boolWord(op.MayBeEmpty)),
			)
		case opcode.BKR:
			opWords = append(opWords,
				plain(uint64(op.RefIndex)),
				plain(bkrCaseWord(op)),
				plain(uint64(op.Mode)),
			)
		case opcode.AND, opcode.NOT:
			opWords = append(opWords, plain(ppptWord(op.PpptIndex)))
		}
	}

	stringTableLength := uint64(len(prog.StringTable))
	acharTableLength64 := int64(len(prog.AcharTable))

	var acharMax uint64
	if table.AcharMax > 0 {
		acharMax = uint64(table.AcharMax)
	}
	sizeofAchar := widthFor(acharMax)
	acharTableLength := uint64(acharTableLength64) * uint64(sizeofAchar)

	var maxVal uint64
	consider := func(w word) {
		if w.unbounded {
			return
		}
		if w.v > maxVal {
			maxVal = w.v
		}
	}
	for _, w := range childListWords {
		consider(w)
	}
	for _, w := range ruleWords {
		consider(w)
	}
	for _, w := range udtWords {
		consider(w)
	}
	for _, w := range opWords {
		consider(w)
	}
	for _, v := range []uint64{
		uint64(table.AcharMin), acharMax, uint64(sizeofAchar),
		uint64(len(prog.Rules)), uint64(len(prog.Udts)), uint64(len(prog.Ops)),
		uint64(len(table.Maps)), uint64(table.MapSize),
		uint64(versionOff), uint64(copyrightOff), uint64(licenseOff),
		childListOffset, childListLength,
		rulesOffset, rulesLength,
		udtsOffset, udtsLength,
		opcodesOffset, opcodesLength,
		stringTableLength, acharTableLength,
	} {
		if v > maxVal {
			maxVal = v
		}
	}

	sizeofUint := widthFor(maxVal)
	uintMax := allOnes(sizeofUint)

	ppptBytesLength := uint64(len(table.Maps)) * uint64(table.MapSize)

	headerBytes := uint64(widthPrefixBytes) + uint64(headerFieldCount)*uint64(sizeofUint)
	bodyBytes := (childListLength + rulesLength + udtsLength + opcodesLength) * uint64(sizeofUint)
	totalBytes := headerBytes + bodyBytes + stringTableLength + acharTableLength + ppptBytesLength
	if totalBytes > math.MaxInt64/2 {
		log.Add(errs.New(errs.EmitError, "initialization image size overflows addressable range"))
		return nil, false
	}
	sizeInUnits := (totalBytes + uint64(sizeofUint) - 1) / uint64(sizeofUint)

	h := Header{
		SizeInUnits: sizeInUnits,
		AcharMin:    uint64(table.AcharMin),
		AcharMax:    acharMax,
		SizeofAchar: uint64(sizeofAchar),
		UintMax:     uintMax,
		SizeofUint:  uint64(sizeofUint),

		RuleCount:    uint64(len(prog.Rules)),
		UdtCount:     uint64(len(prog.Udts)),
		OpcodeCount:  uint64(len(prog.Ops)),
		PpptMapCount: uint64(len(table.Maps)),
		PpptMapSize:  uint64(table.MapSize),

		VersionOffset:   uint64(versionOff),
		CopyrightOffset: uint64(copyrightOff),
		LicenseOffset:   uint64(licenseOff),

		ChildListOffset: childListOffset,
		ChildListLength: childListLength,

		RulesOffset: rulesOffset,
		RulesLength: rulesLength,

		UdtsOffset: udtsOffset,
		UdtsLength: udtsLength,

		OpcodesOffset: opcodesOffset,
		OpcodesLength: opcodesLength,

		StringTableLength: stringTableLength,
		AcharTableLength:  acharTableLength,
	}

	buf := make([]byte, 0, totalBytes)
	buf = append(buf, byte(sizeofUint))
	buf = appendHeader(buf, h, sizeofUint)
	buf = appendWords(buf, childListWords, sizeofUint, uintMax)
	buf = appendWords(buf, ruleWords, sizeofUint, uintMax)
	buf = appendWords(buf, udtWords, sizeofUint, uintMax)
	buf = appendWords(buf, opWords, sizeofUint, uintMax)
	buf = append(buf, prog.StringTable...)
	for _, c := range prog.AcharTable {
		buf = appendUint(buf, sizeofAchar, uint64(c))
	}
	for _, m := range table.Maps {
		for _, cell := range m {
			buf = append(buf, byte(cell))
		}
	}

	return &Image{Header: h, Bytes: buf}, log.Since(mark) == nil
}

func boolWord(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func repMaxWord(max int64) word {
	if max == opcode.Unbounded {
		return word{unbounded: true}
	}
	return plain(uint64(max))
}

// widthFor returns the narrowest width in {1, 2, 4, 8} bytes that can hold
// max as an unsigned integer (spec §4.5 item 1).
func widthFor(max uint64) int {
	switch {
	case max <= 0xFF:
		return 1
	case max <= 0xFFFF:
		return 2
	case max <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

func allOnes(width int) uint64 {
	if width >= 8 {
		return math.MaxUint64
	}
	return (uint64(1) << (uint(width) * 8)) - 1
}

func appendUint(buf []byte, width int, v uint64) []byte {
	var tmp [8]byte
	switch width {
	case 1:
		tmp[0] = byte(v)
		return append(buf, tmp[:1]...)
	case 2:
		binary.LittleEndian.PutUint16(tmp[:2], uint16(v))
		return append(buf, tmp[:2]...)
	case 4:
		binary.LittleEndian.PutUint32(tmp[:4], uint32(v))
		return append(buf, tmp[:4]...)
	default:
		binary.LittleEndian.PutUint64(tmp[:8], v)
		return append(buf, tmp[:8]...)
	}
}

func appendWords(buf []byte, words []word, width int, uintMax uint64) []byte {
	for _, w := range words {
		v := w.v
		if w.unbounded {
			v = uintMax
		}
		buf = appendUint(buf, width, v)
	}
	return buf
}

func appendHeader(buf []byte, h Header, width int) []byte {
	fields := []uint64{
		h.SizeInUnits, h.AcharMin, h.AcharMax, h.SizeofAchar, h.UintMax, h.SizeofUint,
		h.RuleCount, h.UdtCount, h.OpcodeCount, h.PpptMapCount, h.PpptMapSize,
		h.VersionOffset, h.CopyrightOffset, h.LicenseOffset,
		h.ChildListOffset, h.ChildListLength,
		h.RulesOffset, h.RulesLength,
		h.UdtsOffset, h.UdtsLength,
		h.OpcodesOffset, h.OpcodesLength,
		h.StringTableLength, h.AcharTableLength,
	}
	for _, f := range fields {
		buf = appendUint(buf, width, f)
	}
	return buf
}
