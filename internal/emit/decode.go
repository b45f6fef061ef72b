package emit

import (
	"encoding/binary"
	"fmt"

	"github.com/ldthomas/apg-go/internal/opcode"
)

// DecodedRule, DecodedUDT, and DecodedOp are the plain, width-independent
// views Decode produces, used to check a re-emitted image against the one
// it came from (spec §8 invariant 7, "re-emitting an image and re-parsing
// it produces structurally identical rule, UDT, and opcode records").
type DecodedRule struct {
	Index                      uint64
	PpptIndex, NameOffset      uint64
	OpcodeOffset, OpcodeCount  uint64
	MayEmpty                   bool
}

type DecodedUDT struct {
	Index, NameOffset uint64
	MayEmpty          bool
}

// DecodedOp is the tag plus however many of its payload words apply; unused
// fields are zero, same as the zero value of Header's unused fields.
type DecodedOp struct {
	Tag       uint64
	PpptIndex uint64
	A, B      uint64
}

// Decoded is everything Decode reads back out of an image.
type Decoded struct {
	Header Header
	Rules  []DecodedRule
	Udts   []DecodedUDT
	Ops    []DecodedOp
}

// Decode parses an image produced by Build back into its header and
// records. It is the read side of the round-trip invariant tests exercise;
// it does not reconstruct a *opcode.Program (that would require re-resolving
// child-index-table unit offsets back into Ops-array indices, which no
// consumer of the image needs to do — a runtime walks the image directly).
func Decode(buf []byte) (*Decoded, error) {
	if len(buf) < widthPrefixBytes+1 {
		return nil, fmt.Errorf("emit: image too short to hold a width prefix")
	}
	width := int(buf[0])
	switch width {
	case 1, 2, 4, 8:
	default:
		return nil, fmt.Errorf("emit: invalid sizeof_uint prefix %d", width)
	}
	pos := widthPrefixBytes
	readWord := func() (uint64, error) {
		if pos+width > len(buf) {
			return 0, fmt.Errorf("emit: unexpected end of image at byte %d", pos)
		}
		v := readUint(buf[pos:pos+width], width)
		pos += width
		return v, nil
	}

	fields := make([]uint64, headerFieldCount)
	for i := range fields {
		v, err := readWord()
		if err != nil {
			return nil, err
		}
		fields[i] = v
	}
	h := Header{
		SizeInUnits: fields[0], AcharMin: fields[1], AcharMax: fields[2],
		SizeofAchar: fields[3], UintMax: fields[4], SizeofUint: fields[5],
		RuleCount: fields[6], UdtCount: fields[7], OpcodeCount: fields[8],
		PpptMapCount: fields[9], PpptMapSize: fields[10],
		VersionOffset: fields[11], CopyrightOffset: fields[12], LicenseOffset: fields[13],
		ChildListOffset: fields[14], ChildListLength: fields[15],
		RulesOffset: fields[16], RulesLength: fields[17],
		UdtsOffset: fields[18], UdtsLength: fields[19],
		OpcodesOffset: fields[20], OpcodesLength: fields[21],
		StringTableLength: fields[22], AcharTableLength: fields[23],
	}
	if int(h.SizeofUint) != width {
		return nil, fmt.Errorf("emit: width prefix %d disagrees with header SizeofUint %d", width, h.SizeofUint)
	}

	pos = widthPrefixBytes + int(h.RulesOffset)*width
	rules := make([]DecodedRule, h.RuleCount)
	for i := range rules {
		idx, _ := readWordAt(buf, &pos, width)
		ppi, _ := readWordAt(buf, &pos, width)
		noff, _ := readWordAt(buf, &pos, width)
		ooff, _ := readWordAt(buf, &pos, width)
		ocnt, _ := readWordAt(buf, &pos, width)
		empty, _ := readWordAt(buf, &pos, width)
		rules[i] = DecodedRule{idx, ppi, noff, ooff, ocnt, empty != 0}
	}

	pos = widthPrefixBytes + int(h.UdtsOffset)*width
	udts := make([]DecodedUDT, h.UdtCount)
	for i := range udts {
		idx, _ := readWordAt(buf, &pos, width)
		noff, _ := readWordAt(buf, &pos, width)
		empty, _ := readWordAt(buf, &pos, width)
		udts[i] = DecodedUDT{idx, noff, empty != 0}
	}

	pos = widthPrefixBytes + int(h.OpcodesOffset)*width
	opEnd := widthPrefixBytes + int(h.OpcodesOffset+h.OpcodesLength)*width
	var ops []DecodedOp
	for pos < opEnd {
		tag, err := readWordAt(buf, &pos, width)
		if err != nil {
			return nil, err
		}
		n := payloadWords(opcode.Kind(tag))
		var words [3]uint64
		for i := 0; i < n; i++ {
			words[i], err = readWordAt(buf, &pos, width)
			if err != nil {
				return nil, err
			}
		}
		ops = append(ops, DecodedOp{Tag: tag, PpptIndex: words[0], A: words[1], B: words[2]})
	}

	return &Decoded{Header: h, Rules: rules, Udts: udts, Ops: ops}, nil
}

func readWordAt(buf []byte, pos *int, width int) (uint64, error) {
	if *pos+width > len(buf) {
		return 0, fmt.Errorf("emit: unexpected end of image at byte %d", *pos)
	}
	v := readUint(buf[*pos:*pos+width], width)
	*pos += width
	return v, nil
}

func readUint(b []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 4:
		return uint64(binary.LittleEndian.Uint32(b))
	default:
		return binary.LittleEndian.Uint64(b)
	}
}

