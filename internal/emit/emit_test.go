package emit

import (
	"testing"

	"github.com/ldthomas/apg-go/internal/attrs"
	"github.com/ldthomas/apg-go/internal/errs"
	"github.com/ldthomas/apg-go/internal/opcode"
	"github.com/ldthomas/apg-go/internal/pppt"
	"github.com/ldthomas/apg-go/internal/syntax"
	"github.com/ldthomas/apg-go/internal/translator"
	"github.com/stretchr/testify/assert"
)

func compile(t *testing.T, configure func(b *syntax.Builder)) (*opcode.Program, *pppt.Table) {
	t.Helper()
	b := syntax.NewBuilder()
	configure(b)

	log := errs.NewLog()
	prog, ok := translator.Translate(b.Build(), nil, log)
	if !ok {
		t.Fatalf("translate failed: %v", log.Entries())
	}

	_, ok = attrs.Analyze(prog, log)
	if !ok {
		t.Fatalf("analyze failed: %v", log.Entries())
	}

	table, ok := pppt.Build(prog, nil, log)
	if !ok {
		t.Fatalf("pppt build failed: %v", log.Entries())
	}

	return prog, table
}

func Test_Build_headerCountsMatchProgram(t *testing.T) {
	assert := assert.New(t)

	prog, table := compile(t, func(b *syntax.Builder) {
		b.RuleOpen("alpha").
			AltOpen().TrgOp(65, 90).TrgOp(97, 122).AltClose().
			RuleClose()
		b.RuleOpen("digit").TrgOp(48, 57).RuleClose()
	})

	log := errs.NewLog()
	img, ok := Build(prog, table, log)

	assert.True(ok)
	assert.True(log.Empty())
	assert.Equal(uint64(len(prog.Rules)), img.Header.RuleCount)
	assert.Equal(uint64(len(prog.Udts)), img.Header.UdtCount)
	assert.Equal(uint64(len(prog.Ops)), img.Header.OpcodeCount)
	assert.Equal(uint64(len(table.Maps)), img.Header.PpptMapCount)
	assert.NotEmpty(img.Bytes)
}

func Test_Build_roundTripsThroughDecode(t *testing.T) {
	assert := assert.New(t)

	prog, table := compile(t, func(b *syntax.Builder) {
		b.RuleOpen("identifier").
			CatOpen().
			TrgOp(97, 122).
			RepOp(0, opcode.Unbounded).
			TrgOp(97, 122).
			RepClose().
			CatClose().
			RuleClose()
	})

	log := errs.NewLog()
	img, ok := Build(prog, table, log)
	assert.True(ok)

	decoded, err := Decode(img.Bytes)
	assert.NoError(err)

	assert.Equal(img.Header, decoded.Header)
	assert.Len(decoded.Rules, len(prog.Rules))
	assert.Len(decoded.Ops, len(prog.Ops))

	for i := range prog.Rules {
		assert.Equal(uint64(prog.Rules[i].Index), decoded.Rules[i].Index)
		assert.Equal(uint64(prog.Rules[i].NameOffset), decoded.Rules[i].NameOffset)
		assert.Equal(uint64(prog.Rules[i].OpCount), decoded.Rules[i].OpcodeCount)
		assert.Equal(prog.Rules[i].MayBeEmpty, decoded.Rules[i].MayEmpty)
	}
	for i := range prog.Ops {
		assert.Equal(uint64(prog.Ops[i].Kind), decoded.Ops[i].Tag)
	}
}

func Test_Build_unboundedRepUsesAllOnes(t *testing.T) {
	assert := assert.New(t)

	prog, table := compile(t, func(b *syntax.Builder) {
		b.RuleOpen("star").
			RepOp(0, opcode.Unbounded).
			TrgOp(97, 122).
			RepClose().
			RuleClose()
	})

	log := errs.NewLog()
	img, ok := Build(prog, table, log)
	assert.True(ok)

	decoded, err := Decode(img.Bytes)
	assert.NoError(err)

	// the REP op's max payload word (decoded as "B") must equal UintMax.
	var repOp *DecodedOp
	for i := range decoded.Ops {
		if opcode.Kind(decoded.Ops[i].Tag) == opcode.REP {
			repOp = &decoded.Ops[i]
		}
	}
	assert.NotNil(repOp)
	assert.Equal(img.Header.UintMax, repOp.B)
}

func Test_widthFor(t *testing.T) {
	testCases := []struct {
		max      uint64
		expected int
	}{
		{0, 1},
		{0xFF, 1},
		{0x100, 2},
		{0xFFFF, 2},
		{0x10000, 4},
		{0xFFFFFFFF, 4},
		{0x100000000, 8},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, widthFor(tc.max))
	}
}

func Test_allOnes(t *testing.T) {
	assert.Equal(t, uint64(0xFF), allOnes(1))
	assert.Equal(t, uint64(0xFFFF), allOnes(2))
	assert.Equal(t, uint64(0xFFFFFFFF), allOnes(4))
	assert.Equal(t, uint64(0xFFFFFFFFFFFFFFFF), allOnes(8))
}

func Test_bkrCaseWord(t *testing.T) {
	testCases := []struct {
		name     string
		op       opcode.Op
		expected uint64
	}{
		{"case-sensitive rule", opcode.Op{Case: opcode.BkrCaseSensitive, IsUDT: false}, 0},
		{"case-insensitive rule", opcode.Op{Case: opcode.BkrCaseInsensitive, IsUDT: false}, 1},
		{"case-sensitive udt", opcode.Op{Case: opcode.BkrCaseSensitive, IsUDT: true}, 2},
		{"case-insensitive udt", opcode.Op{Case: opcode.BkrCaseInsensitive, IsUDT: true}, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, bkrCaseWord(&tc.op))
		})
	}
}
