// Package demogrammar builds a small, fixed SABNF grammar entirely through
// syntax.Builder, standing in for the real parser front end apg's command
// line would otherwise read a .apg file through (spec §1 treats that front
// end as an external collaborator outside this module's scope). cmd/apg
// compiles it on every run so the pipeline has something to exercise
// end-to-end without requiring a grammar file on disk.
package demogrammar

import (
	"github.com/ldthomas/apg-go/internal/opcode"
	"github.com/ldthomas/apg-go/internal/syntax"
)

// Build returns a Producer for a small identifier/keyword tokenizer
// grammar, exercising ALT, CAT, REP, RNM, TLS, TRG, UDT, BKR, AND, NOT, and
// the anchor opcodes.
func Build() syntax.Producer {
	b := syntax.NewBuilder()

	b.RuleOpen("alpha").
		AltOpen().
		TrgOp(65, 90).
		TrgOp(97, 122).
		AltClose().
		RuleClose()

	b.RuleOpen("digit").
		TrgOp(48, 57).
		RuleClose()

	b.RuleOpen("identifier").
		CatOpen().
		RnmRef("alpha").
		RepOp(0, opcode.Unbounded).
		AltOpen().
		RnmRef("alpha").
		RnmRef("digit").
		Tls("_").
		AltClose().
		RepClose().
		CatClose().
		RuleClose()

	b.RuleOpen("keyword").
		AltOpen().
		Tls("if").
		Tls("else").
		Tls("while").
		AltClose().
		RuleClose()

	b.RuleOpen("token").
		AltOpen().
		CatOpen().
		AndOpen().
		RnmRef("keyword").
		AndClose().
		RnmRef("keyword").
		CatClose().
		CatOpen().
		NotOpen().
		RnmRef("keyword").
		NotClose().
		RnmRef("identifier").
		CatClose().
		AltClose().
		RuleClose()

	b.RuleOpen("quoted").
		CatOpen().
		Tls("\"").
		UdtRef("u_rawtext", false).
		Tls("\"").
		CatClose().
		RuleClose()

	b.RuleOpen("repeated-word").
		CatOpen().
		RnmRef("identifier").
		Tls(" ").
		BkrRef("identifier", syntax.BkrCaseInsensitive, syntax.BkrModeUniversal).
		CatClose().
		RuleClose()

	b.RuleOpen("anchored-line").
		CatOpen().
		AnchorBeginOp().
		RnmRef("identifier").
		AnchorEndOp().
		CatClose().
		RuleClose()

	return b.Build()
}

// Source returns a human-readable SABNF rendition of the grammar Build
// constructs, for the input validator to run over: spec §4.1 validates raw
// grammar bytes independently of §4.2's already-parsed event stream, and
// cmd/apg needs well-formed bytes to hand it since it has no file on disk.
func Source() []byte {
	return []byte(`alpha = %d65-90 / %d97-122
digit = %d48-57
identifier = alpha *(alpha / digit / "_")
keyword = "if" / "else" / "while"
token = &keyword keyword / !keyword identifier
quoted = %x22 u_rawtext %x22
repeated-word = identifier " " \identifier
anchored-line = <!> identifier <!>
`)
}

// ProtectedRules names the rules whose PPPT map the demo always protects
// (spec §4.4 "Recursive rule handling"), demonstrating the option even
// though none of this grammar's rules are actually recursive.
func ProtectedRules() []string {
	return []string{"identifier"}
}
