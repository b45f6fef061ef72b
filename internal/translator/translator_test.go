package translator

import (
	"testing"

	"github.com/ldthomas/apg-go/internal/errs"
	"github.com/ldthomas/apg-go/internal/opcode"
	"github.com/ldthomas/apg-go/internal/syntax"
	"github.com/stretchr/testify/assert"
)

func Test_Translate_simpleRule(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("digit").TrgOp(48, 57).RuleClose()

	log := errs.NewLog()
	prog, ok := Translate(b.Build(), nil, log)

	assert.True(ok)
	assert.True(log.Empty())
	assert.Len(prog.Rules, 1)
	assert.Equal("digit", prog.Rules[0].Name)

	root := prog.Ops[prog.Rules[0].OpOffset]
	assert.Equal(opcode.TRG, root.Kind)
	assert.Equal(int64(48), root.Min)
	assert.Equal(int64(57), root.Max)
}

func Test_Translate_altElidesSingleChild(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("digit").AltOpen().TrgOp(48, 57).AltClose().RuleClose()

	log := errs.NewLog()
	prog, ok := Translate(b.Build(), nil, log)

	assert.True(ok)
	root := prog.Ops[prog.Rules[0].OpOffset]
	assert.Equal(opcode.TRG, root.Kind, "a single-child ALT should be elided entirely")
}

func Test_Translate_undefinedRuleReference(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("start").RnmRef("missing").RuleClose()

	log := errs.NewLog()
	_, ok := Translate(b.Build(), nil, log)

	assert.False(ok)
	found := log.FirstOfKind(errs.SemanticError)
	assert.NotNil(found)
}

func Test_Translate_incrementalAlt(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("keyword").Tls("if").RuleClose()
	b.RuleOpen("keyword").IncrementalAlt().Tls("else").RuleClose()

	log := errs.NewLog()
	prog, ok := Translate(b.Build(), nil, log)

	assert.True(ok)
	assert.Len(prog.Rules, 1)
	root := prog.Ops[prog.Rules[0].OpOffset]
	assert.Equal(opcode.ALT, root.Kind)
	assert.Len(prog.Children(&root), 2)
}

func Test_Translate_redefinitionWithoutIncrementalAltIsError(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("keyword").Tls("if").RuleClose()
	b.RuleOpen("keyword").Tls("else").RuleClose()

	log := errs.NewLog()
	_, ok := Translate(b.Build(), nil, log)

	assert.False(ok)
}

func Test_Translate_repOneOneElided(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("one-digit").RepOp(1, 1).TrgOp(48, 57).RepClose().RuleClose()

	log := errs.NewLog()
	prog, ok := Translate(b.Build(), nil, log)

	assert.True(ok)
	root := prog.Ops[prog.Rules[0].OpOffset]
	assert.Equal(opcode.TRG, root.Kind, "REP(1,1) must be elided")
}

func Test_Translate_invertedRepBoundsIsError(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("bad").RepOp(5, 2).TrgOp(48, 57).RepClose().RuleClose()

	log := errs.NewLog()
	_, ok := Translate(b.Build(), nil, log)

	assert.False(ok)
}

func Test_Translate_emptyTbsLiteralIsError(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("bad").Tbs(nil).RuleClose()

	log := errs.NewLog()
	_, ok := Translate(b.Build(), nil, log)

	assert.False(ok)
}

func Test_Translate_bkrResolvesToRuleOrUdt(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("word").Tls("x").RuleClose()
	b.RuleOpen("repeat").
		CatOpen().
		RnmRef("word").
		BkrRef("word", syntax.BkrCaseInsensitive, syntax.BkrModeUniversal).
		CatClose().
		RuleClose()

	log := errs.NewLog()
	prog, ok := Translate(b.Build(), nil, log)

	assert.True(ok)
	repeatRule := prog.Rules[prog.RuleByName("repeat")]
	root := prog.Ops[repeatRule.OpOffset]
	children := prog.Children(&root)
	bkrOp := prog.Ops[children[1]]
	assert.Equal(opcode.BKR, bkrOp.Kind)
	assert.False(bkrOp.IsUDT)
	assert.Equal(prog.RuleByName("word"), bkrOp.RefIndex)
}

func Test_Translate_nameOffsetsAreInterned(t *testing.T) {
	assert := assert.New(t)

	b := syntax.NewBuilder()
	b.RuleOpen("alpha").TrgOp(65, 90).RuleClose()

	log := errs.NewLog()
	prog, ok := Translate(b.Build(), nil, log)

	assert.True(ok)
	off := prog.Rules[0].NameOffset
	assert.Equal("alpha", prog.String(off, len("alpha")))
}
