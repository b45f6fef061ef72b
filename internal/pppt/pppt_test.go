package pppt

import (
	"testing"

	"github.com/ldthomas/apg-go/internal/errs"
	"github.com/ldthomas/apg-go/internal/syntax"
	"github.com/ldthomas/apg-go/internal/translator"
	"github.com/stretchr/testify/assert"
)

func buildTable(t *testing.T, protected []string, configure func(b *syntax.Builder)) (*Table, bool) {
	t.Helper()
	b := syntax.NewBuilder()
	configure(b)

	tlog := errs.NewLog()
	prog, ok := translator.Translate(b.Build(), nil, tlog)
	if !ok {
		t.Fatalf("translate failed: %v", tlog.Entries())
	}

	plog := errs.NewLog()
	return Build(prog, protected, plog)
}

func Test_Build_singleCharacterRange(t *testing.T) {
	assert := assert.New(t)

	table, ok := buildTable(t, nil, func(b *syntax.Builder) {
		b.RuleOpen("digit").TrgOp(48, 57).RuleClose()
	})

	assert.True(ok)
	assert.Equal(int64(48), table.AcharMin)
	assert.Equal(int64(57), table.AcharMax)
	assert.Equal(57-48+2, table.MapSize)

	m := table.Maps[table.RuleMapIndex[0]]
	assert.Equal(Match, m[cellPos(table, 48)])
	assert.Equal(Match, m[cellPos(table, 57)])
	assert.Equal(NoMatch, m[table.EndOfInput()])
}

func Test_Build_altUnionsChildren(t *testing.T) {
	assert := assert.New(t)

	table, ok := buildTable(t, nil, func(b *syntax.Builder) {
		b.RuleOpen("alpha").
			AltOpen().
			TrgOp(65, 90).
			TrgOp(97, 122).
			AltClose().
			RuleClose()
	})

	assert.True(ok)
	m := table.Maps[table.RuleMapIndex[0]]
	assert.Equal(Match, m[cellPos(table, 65)])
	assert.Equal(Match, m[cellPos(table, 97)])
	assert.Equal(NoMatch, m[cellPos(table, 91)])
}

func Test_Build_protectedRuleGetsAllActiveMap(t *testing.T) {
	assert := assert.New(t)

	table, ok := buildTable(t, []string{"digit"}, func(b *syntax.Builder) {
		b.RuleOpen("digit").TrgOp(48, 57).RuleClose()
	})

	assert.True(ok)
	m := table.Maps[table.RuleMapIndex[0]]
	for _, c := range m {
		assert.Equal(Active, c)
	}
}

func Test_Build_unknownProtectedRuleIsLoggedButDoesNotBlockTable(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("digit").TrgOp(48, 57).RuleClose()

	tlog := errs.NewLog()
	prog, ok := translator.Translate(b.Build(), nil, tlog)
	assert.True(ok)

	plog := errs.NewLog()
	table, built := Build(prog, []string{"missing"}, plog)

	assert.False(built)
	assert.NotNil(table)
	assert.NotNil(plog.FirstOfKind(errs.PpptError))
}

func cellPos(table *Table, c int64) int {
	return int(c - table.AcharMin)
}
