package demogrammar

import (
	"testing"

	"github.com/ldthomas/apg-go/internal/attrs"
	"github.com/ldthomas/apg-go/internal/errs"
	"github.com/ldthomas/apg-go/internal/lines"
	"github.com/ldthomas/apg-go/internal/pppt"
	"github.com/ldthomas/apg-go/internal/translator"
	"github.com/stretchr/testify/assert"
)

func Test_Build_translatesCleanly(t *testing.T) {
	assert := assert.New(t)

	log := errs.NewLog()
	prog, ok := translator.Translate(Build(), nil, log)

	assert.True(ok)
	assert.True(log.Empty())
	assert.NotEmpty(prog.Rules)
	assert.NotEmpty(prog.Udts, "quoted rule references u_rawtext")
}

func Test_Build_analyzesWithNoFatalRules(t *testing.T) {
	assert := assert.New(t)

	log := errs.NewLog()
	prog, ok := translator.Translate(Build(), nil, log)
	assert.True(ok)

	infos, ok := attrs.Analyze(prog, log)
	assert.True(ok)
	for i, info := range infos {
		assert.False(info.Fatal, "rule %q should not be fatally defective", prog.Rules[i].Name)
	}
}

func Test_Build_ppptBuildsWithProtectedRules(t *testing.T) {
	assert := assert.New(t)

	log := errs.NewLog()
	prog, ok := translator.Translate(Build(), nil, log)
	assert.True(ok)

	_, ok = attrs.Analyze(prog, log)
	assert.True(ok)

	table, ok := pppt.Build(prog, ProtectedRules(), log)
	assert.True(ok)
	assert.NotEmpty(table.Maps)
}

func Test_Source_validatesCleanly(t *testing.T) {
	assert := assert.New(t)

	log := errs.NewLog()
	idx, ok := lines.Validate(Source(), false, log)

	assert.True(ok)
	assert.True(log.Empty())
	assert.Greater(idx.LineCount(), 0)
}

func Test_ProtectedRules_namesExistingRule(t *testing.T) {
	assert := assert.New(t)

	log := errs.NewLog()
	prog, ok := translator.Translate(Build(), nil, log)
	assert.True(ok)

	for _, name := range ProtectedRules() {
		assert.GreaterOrEqual(prog.RuleByName(name), 0, "protected rule %q must exist in the grammar", name)
	}
}
