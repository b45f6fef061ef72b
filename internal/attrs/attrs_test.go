package attrs

import (
	"testing"

	"github.com/ldthomas/apg-go/internal/errs"
	"github.com/ldthomas/apg-go/internal/syntax"
	"github.com/ldthomas/apg-go/internal/translator"
	"github.com/stretchr/testify/assert"
)

func build(t *testing.T, configure func(b *syntax.Builder)) (*errs.Log, []RuleInfo, bool) {
	t.Helper()
	b := syntax.NewBuilder()
	configure(b)

	tlog := errs.NewLog()
	prog, translated := translator.Translate(b.Build(), nil, tlog)
	if !translated {
		return tlog, nil, false
	}

	alog := errs.NewLog()
	infos, ok := Analyze(prog, alog)
	return alog, infos, ok
}

func Test_Analyze_nonRecursiveRuleIsSafe(t *testing.T) {
	assert := assert.New(t)

	log, infos, ok := build(t, func(b *syntax.Builder) {
		b.RuleOpen("simple").Tls("x").RuleClose()
	})

	assert.True(ok)
	assert.True(log.Empty())
	assert.Equal(N, infos[0].RecursiveType)
	assert.False(infos[0].Fatal)
}

func Test_Analyze_leftRecursionIsFatal(t *testing.T) {
	assert := assert.New(t)

	_, infos, ok := build(t, func(b *syntax.Builder) {
		b.RuleOpen("bad").
			CatOpen().
			RnmRef("bad").
			Tls("x").
			CatClose().
			RuleClose()
	})

	assert.False(ok)
	assert.True(infos[0].Fatal)
	assert.True(infos[0].Attrs.Left)
}

func Test_Analyze_rightRecursionWithBaseCaseIsNotFatal(t *testing.T) {
	assert := assert.New(t)

	log, infos, ok := build(t, func(b *syntax.Builder) {
		b.RuleOpen("tail").
			AltOpen().
			Tls("x").
			CatOpen().
			Tls("x").
			RnmRef("tail").
			CatClose().
			AltClose().
			RuleClose()
	})

	assert.True(ok)
	assert.True(log.Empty())
	assert.False(infos[0].Fatal)
	assert.True(infos[0].Attrs.Right)
	assert.False(infos[0].Attrs.Left)
	assert.Equal(R, infos[0].RecursiveType)
}

func Test_Analyze_mutualRecursionGroupsTogether(t *testing.T) {
	assert := assert.New(t)

	_, infos, _ := build(t, func(b *syntax.Builder) {
		b.RuleOpen("a").RnmRef("b").RuleClose()
		b.RuleOpen("b").RnmRef("a").RuleClose()
	})

	assert.Equal(MR, infos[0].RecursiveType)
	assert.Equal(MR, infos[1].RecursiveType)
	assert.Equal(infos[0].MRGroup, infos[1].MRGroup)
}

func Test_Analyze_refersToCrossesRules(t *testing.T) {
	assert := assert.New(t)

	_, infos, ok := build(t, func(b *syntax.Builder) {
		b.RuleOpen("leaf").Tls("x").RuleClose()
		b.RuleOpen("root").RnmRef("leaf").RuleClose()
	})

	assert.True(ok)
	rootIdx := 1
	leafIdx := 0
	assert.True(infos[rootIdx].RefersTo.Has(leafIdx))
	assert.True(infos[leafIdx].ReferencedBy.Has(rootIdx))
}
