package opcode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Kind_HasMap(t *testing.T) {
	testCases := []struct {
		kind     Kind
		expected bool
	}{
		{ALT, true},
		{CAT, true},
		{REP, true},
		{TRG, true},
		{TLS, true},
		{TBS, true},
		{AND, true},
		{NOT, true},
		{RNM, false},
		{UDT, false},
		{BKR, false},
		{BKA, false},
		{BKN, false},
		{ABG, false},
		{AEN, false},
	}

	for _, tc := range testCases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.kind.HasMap())
		})
	}
}

func Test_Child(t *testing.T) {
	assert.Equal(t, 4, Child(5))
	assert.Equal(t, 0, Child(1))
}

func Test_MayBeEmptyFromName(t *testing.T) {
	testCases := []struct {
		name     string
		expected bool
	}{
		{"e_rawtext", true},
		{"E_RawText", true},
		{"u_rawtext", false},
		{"U_RawText", false},
		{"x", false},
		{"", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, MayBeEmptyFromName(tc.name))
		})
	}
}

func Test_EqualFold(t *testing.T) {
	assert.True(t, EqualFold("Identifier", "identifier"))
	assert.True(t, EqualFold("ALPHA", "alpha"))
	assert.False(t, EqualFold("alpha", "beta"))
	assert.False(t, EqualFold("alpha", "alphabet"))
}

func Test_Program_RuleByNameAndUdtByName(t *testing.T) {
	assert := assert.New(t)

	p := &Program{
		Rules: []Rule{{Index: 0, Name: "Alpha"}, {Index: 1, Name: "Digit"}},
		Udts:  []UDT{{Index: 0, Name: "u_rawtext"}},
	}

	assert.Equal(0, p.RuleByName("alpha"))
	assert.Equal(1, p.RuleByName("DIGIT"))
	assert.Equal(-1, p.RuleByName("missing"))

	assert.Equal(0, p.UdtByName("U_RAWTEXT"))
	assert.Equal(-1, p.UdtByName("u_other"))
}

func Test_Program_InternStringAndString(t *testing.T) {
	assert := assert.New(t)

	p := &Program{}
	off1, len1 := p.InternString("alpha")
	off2, len2 := p.InternString("digit")

	assert.Equal(0, off1)
	assert.Equal(5, len1)
	assert.Equal("alpha", p.String(off1, len1))
	assert.Equal("digit", p.String(off2, len2))
	assert.NotEqual(off1, off2)
}

func Test_Program_ChildrenAndAchars(t *testing.T) {
	assert := assert.New(t)

	p := &Program{
		ChildIndexTable: []int{3, 4, 5},
		AcharTable:      []int64{'a', 'b', 'c'},
	}
	op := &Op{ChildOffset: 1, ChildCount: 2, AcharOffset: 0, AcharLength: 2}

	assert.Equal([]int{4, 5}, p.Children(op))
	assert.Equal([]int64{'a', 'b'}, p.Achars(op))
}
