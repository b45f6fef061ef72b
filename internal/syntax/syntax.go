// Package syntax defines the contract between the compiler core and the
// external grammar parser (spec §6.4): a stream of callback events
// mirroring the grammar's abstract shape, each carrying the source offset
// of its triggering phrase. It also provides a reference in-memory Tree
// implementation, used by tests and by cmd/apg's bundled demo grammar,
// standing in for the real SABNF lexer/parser that spec §1 treats as an
// external collaborator.
package syntax

// EventKind tags the shape of one callback event emitted by the grammar's
// syntax stage.
type EventKind int

const (
	RuleOpen EventKind = iota
	RuleClose
	IncrementalAlt
	AltOpen
	AltClose
	CatOpen
	CatClose
	Rep
	RepClose
	Option
	OptionClose
	Rnm
	Udt
	Bkr
	TlsString
	TbsString
	Trg
	AndOpen
	AndClose
	NotOpen
	NotClose
	BkaOpen
	BkaClose
	BknOpen
	BknClose
	AnchorBegin
	AnchorEnd
)

// BkrCase and BkrMode mirror the opcode-level enums (spec §3.1) at the
// event level, since the grammar parser must already have resolved them by
// the time it emits a Bkr event.
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

// Event is one callback from the external grammar parser. Only the fields
// relevant to Kind are meaningful; this mirrors api_op's "tagged struct
// with a union of payload fields" shape (spec §3.1) one level up, at the
// event-stream layer rather than the opcode layer.
type Event struct {
	Kind   EventKind
	Offset int // source byte offset of the triggering phrase

	Name string // RuleOpen, Rnm, Udt, Bkr (target)
	Min  int64  // Rep, Trg
	Max  int64  // Rep, Trg; -1 means unbounded
	Text []byte // TlsString, TbsString

	MayBeEmpty bool    // Udt
	Case       BkrCase // Bkr
	Mode       BkrMode // Bkr
}

// Producer is anything that can replay a grammar's syntax tree as a stream
// of Events. The translator (internal/translator) only depends on this
// interface; spec §1 treats the actual grammar lexer/parser that implements
// it as an external collaborator.
type Producer interface {
	Events() []Event
}

// Tree is a reference in-memory Producer: a literal slice of Events,
// typically built with a Builder. It exists so the rest of the core can be
// tested and demonstrated without a real SABNF front end.
type Tree struct {
	events []Event
}

// Events implements Producer.
func (t *Tree) Events() []Event {
	return t.events
}

// Builder assembles a Tree one event at a time, tracking source offsets so
// tests and the demo grammar in internal/demogrammar don't have to compute
// them by hand.
type Builder struct {
	tree   Tree
	offset int
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// at advances the synthetic offset counter and returns its prior value,
// giving every event a distinct, increasing offset even though this
// reference builder has no real source text to point into.
func (b *Builder) at() int {
	o := b.offset
	b.offset++
	return o
}

func (b *Builder) push(e Event) *Builder {
	e.Offset = b.at()
	b.tree.events = append(b.tree.events, e)
	return b
}

func (b *Builder) RuleOpen(name string) *Builder { return b.push(Event{Kind: RuleOpen, Name: name}) }
func (b *Builder) RuleClose() *Builder           { return b.push(Event{Kind: RuleClose}) }
func (b *Builder) IncrementalAlt() *Builder      { return b.push(Event{Kind: IncrementalAlt}) }
func (b *Builder) AltOpen() *Builder             { return b.push(Event{Kind: AltOpen}) }
func (b *Builder) AltClose() *Builder            { return b.push(Event{Kind: AltClose}) }
func (b *Builder) CatOpen() *Builder             { return b.push(Event{Kind: CatOpen}) }
func (b *Builder) CatClose() *Builder            { return b.push(Event{Kind: CatClose}) }
func (b *Builder) RepOp(min, max int64) *Builder { return b.push(Event{Kind: Rep, Min: min, Max: max}) }
func (b *Builder) RepClose() *Builder            { return b.push(Event{Kind: RepClose}) }
func (b *Builder) OptionOpen() *Builder          { return b.push(Event{Kind: Option}) }
func (b *Builder) OptionClose() *Builder         { return b.push(Event{Kind: OptionClose}) }
func (b *Builder) RnmRef(name string) *Builder   { return b.push(Event{Kind: Rnm, Name: name}) }
func (b *Builder) UdtRef(name string, mayBeEmpty bool) *Builder {
	return b.push(Event{Kind: Udt, Name: name, MayBeEmpty: mayBeEmpty})
}
func (b *Builder) BkrRef(target string, c BkrCase, m BkrMode) *Builder {
	return b.push(Event{Kind: Bkr, Name: target, Case: c, Mode: m})
}
func (b *Builder) Tls(text string) *Builder      { return b.push(Event{Kind: TlsString, Text: []byte(text)}) }
func (b *Builder) Tbs(text []byte) *Builder      { return b.push(Event{Kind: TbsString, Text: text}) }
func (b *Builder) TrgOp(min, max int64) *Builder { return b.push(Event{Kind: Trg, Min: min, Max: max}) }
func (b *Builder) AndOpen() *Builder             { return b.push(Event{Kind: AndOpen}) }
func (b *Builder) AndClose() *Builder            { return b.push(Event{Kind: AndClose}) }
func (b *Builder) NotOpen() *Builder             { return b.push(Event{Kind: NotOpen}) }
func (b *Builder) NotClose() *Builder            { return b.push(Event{Kind: NotClose}) }
func (b *Builder) BkaOpen() *Builder             { return b.push(Event{Kind: BkaOpen}) }
func (b *Builder) BkaClose() *Builder            { return b.push(Event{Kind: BkaClose}) }
func (b *Builder) BknOpen() *Builder             { return b.push(Event{Kind: BknOpen}) }
func (b *Builder) BknClose() *Builder            { return b.push(Event{Kind: BknClose}) }
func (b *Builder) AnchorBeginOp() *Builder       { return b.push(Event{Kind: AnchorBegin}) }
func (b *Builder) AnchorEndOp() *Builder         { return b.push(Event{Kind: AnchorEnd}) }

// Build finalizes the Tree.
func (b *Builder) Build() *Tree {
	return &b.tree
}
