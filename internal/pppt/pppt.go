// Package pppt implements the Partially-Predictive Parsing Table builder
// (spec §4.4): per-opcode and per-rule four-valued character-prediction
// maps, built bottom-up with an open/complete cache that breaks recursive
// cycles by returning a conservative all-ACTIVE approximation.
package pppt

import (
	"math"
	"sort"

	"github.com/ldthomas/apg-go/internal/errs"
	"github.com/ldthomas/apg-go/internal/opcode"
	"github.com/ldthomas/apg-go/internal/util"
)

// Cell is one four-valued PPPT prediction.
type Cell byte

const (
	NoMatch Cell = iota
	Match
	Empty
	Active
)

func (c Cell) String() string {
	switch c {
	case Match:
		return "MATCH"
	case Empty:
		return "EMPTY"
	case Active:
		return "ACTIVE"
	default:
		return "NOMATCH"
	}
}

// Table is the full PPPT: every stored map, keyed by the indices the
// builder assigns into Maps, plus the achar range the maps are indexed
// over.
type Table struct {
	AcharMin, AcharMax int64
	MapSize            int // achar_max - achar_min + 2; last cell is end-of-input
	Maps               [][]Cell
	RuleMapIndex       []int // per-rule index into Maps
}

// EndOfInput is the index, within any map, of the end-of-input cell.
func (t *Table) EndOfInput() int {
	return t.MapSize - 1
}

type builder struct {
	prog  *opcode.Program
	table *Table
	log   *errs.Log

	protected []bool // per-rule
	open      []bool
	complete  []bool
	emptyMap  []Cell
}

// Build constructs the PPPT for prog. protectedNames are rule names whose
// maps must never be used to elide a call (spec §4.4 "Recursive rule
// handling"); an unknown name is logged as a PpptError but does not stop
// the rest of the table from being built. ok is false iff any diagnostic
// was recorded.
func Build(prog *opcode.Program, protectedNames []string, log *errs.Log) (*Table, bool) {
	mark := log.Len()

	acharMin, acharMax, found := acharRange(prog)
	if !found {
		acharMin, acharMax = 0, 0
	}
	mapSize := int(acharMax-acharMin) + 2

	mapCount := int64(len(prog.Rules))
	for i := range prog.Ops {
		if prog.Ops[i].Kind.HasMap() {
			mapCount++
		}
	}
	if mapCount > 0 && int64(mapSize) > 0 && mapCount > math.MaxInt64/int64(mapSize) {
		log.Add(errs.New(errs.PpptError, "PPPT table size (%d maps x %d cells) overflows the platform word", mapCount, mapSize))
		return nil, false
	}

	table := &Table{
		AcharMin:     acharMin,
		AcharMax:     acharMax,
		MapSize:      mapSize,
		RuleMapIndex: make([]int, len(prog.Rules)),
	}
	for i := range table.RuleMapIndex {
		table.RuleMapIndex[i] = -1
	}

	b := &builder{
		prog:      prog,
		table:     table,
		log:       log,
		protected: make([]bool, len(prog.Rules)),
		open:      make([]bool, len(prog.Rules)),
		complete:  make([]bool, len(prog.Rules)),
	}
	for _, name := range util.StringSetOf(protectedNames).Elements() {
		idx := prog.RuleByName(name)
		if idx < 0 {
			log.Add(errs.New(errs.PpptError, "protected rule %q does not exist", name))
			continue
		}
		b.protected[idx] = true
	}

	b.emptyMap = b.buildEmptyMap()

	order := make([]int, len(prog.Rules))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		ri, rj := order[i], order[j]
		if prog.Rules[ri].OpCount != prog.Rules[rj].OpCount {
			return prog.Rules[ri].OpCount < prog.Rules[rj].OpCount
		}
		return foldLess(prog.Rules[ri].Name, prog.Rules[rj].Name)
	})
	for _, r := range order {
		b.ruleMap(r)
	}

	return table, log.Since(mark) == nil
}

func foldLess(a, b string) bool {
	la, lb := toLowerASCII(a), toLowerASCII(b)
	return la < lb
}

func toLowerASCII(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'A' && c <= 'Z' {
			out[i] = c + ('a' - 'A')
		}
	}
	return string(out)
}

// acharRange scans every TLS, TBS, and TRG opcode for the characters it can
// match and returns the smallest and largest (spec §4.4 "Sizing"). TLS text
// is already lowercase-folded by the translator; its uppercase letters
// widen the range too, since a case-insensitive literal matches either case.
func acharRange(prog *opcode.Program) (min, max int64, found bool) {
	consider := func(c int64) {
		if !found {
			min, max, found = c, c, true
			return
		}
		if c < min {
			min = c
		}
		if c > max {
			max = c
		}
	}
	for i := range prog.Ops {
		op := &prog.Ops[i]
		switch op.Kind {
		case opcode.TLS:
			for _, c := range prog.Achars(op) {
				consider(c)
				if c >= 'a' && c <= 'z' {
					consider(c - ('a' - 'A'))
				}
			}
		case opcode.TBS:
			for _, c := range prog.Achars(op) {
				consider(c)
			}
		case opcode.TRG:
			consider(op.Min)
			consider(op.Max)
		}
	}
	return min, max, found
}

// buildEmptyMap precomputes the map a zero-length TLS uses (spec §4.4
// "Terminals... TLS length 0"): EMPTY for every character that starts some
// terminal anywhere in the grammar, plus the end-of-input cell.
func (b *builder) buildEmptyMap() []Cell {
	m := b.newMap(NoMatch)
	mark := func(c int64) {
		if idx := b.pos(c); idx >= 0 {
			m[idx] = Empty
		}
		if c >= 'a' && c <= 'z' {
			if idx := b.pos(c - ('a' - 'A')); idx >= 0 {
				m[idx] = Empty
			}
		}
	}
	for i := range b.prog.Ops {
		op := &b.prog.Ops[i]
		switch op.Kind {
		case opcode.TLS, opcode.TBS:
			achars := b.prog.Achars(op)
			if len(achars) > 0 {
				mark(achars[0])
			}
		case opcode.TRG:
			mark(op.Min)
		}
	}
	m[b.table.EndOfInput()] = Empty
	return m
}

func (b *builder) newMap(fill Cell) []Cell {
	m := make([]Cell, b.table.MapSize)
	if fill != NoMatch {
		for i := range m {
			m[i] = fill
		}
	}
	return m
}

// pos returns c's cell index, or -1 if c falls outside [AcharMin, AcharMax].
func (b *builder) pos(c int64) int {
	if c < b.table.AcharMin || c > b.table.AcharMax {
		return -1
	}
	return int(c - b.table.AcharMin)
}

func (b *builder) store(opIndex int, m []Cell) []Cell {
	b.table.Maps = append(b.table.Maps, m)
	b.prog.Ops[opIndex].PpptIndex = len(b.table.Maps) - 1
	return m
}

// ruleMap implements the open/complete cache (spec §4.4 "Recursive rule
// handling"). An open rule hit on a back edge returns an all-ACTIVE leaf
// approximation without being marked complete, so a later, non-recursive
// path to the same rule still computes and caches its real map.
func (b *builder) ruleMap(r int) []Cell {
	if b.complete[r] {
		return b.table.Maps[b.table.RuleMapIndex[r]]
	}
	if b.open[r] {
		return b.newMap(Active)
	}
	b.open[r] = true
	m := b.visit(b.prog.Rules[r].OpOffset)
	if b.protected[r] {
		m = b.newMap(Active)
	}
	b.table.Maps = append(b.table.Maps, m)
	b.table.RuleMapIndex[r] = len(b.table.Maps) - 1
	b.prog.Rules[r].PpptIndex = b.table.RuleMapIndex[r]
	b.complete[r] = true
	b.open[r] = false
	return m
}

// visit computes and stores the map for opIndex if its kind carries one,
// and returns the value a parent should use when combining this opcode as
// a child (spec §4.4 "Which opcodes carry maps" and "Cell algebra").
func (b *builder) visit(opIndex int) []Cell {
	op := &b.prog.Ops[opIndex]
	switch op.Kind {
	case opcode.TLS:
		return b.store(opIndex, b.tlsMap(op))
	case opcode.TBS:
		return b.store(opIndex, b.tbsMap(op))
	case opcode.TRG:
		return b.store(opIndex, b.trgMap(op))

	case opcode.ALT:
		children := b.prog.Children(op)
		childMaps := make([][]Cell, len(children))
		for i, c := range children {
			childMaps[i] = b.visit(c)
		}
		return b.store(opIndex, b.combineAlt(childMaps))

	case opcode.CAT:
		children := b.prog.Children(op)
		first := b.visit(children[0])
		for i := 1; i < len(children); i++ {
			b.visit(children[i])
		}
		return b.store(opIndex, b.combineCat(first))

	case opcode.REP:
		child := b.visit(opcode.Child(opIndex))
		return b.store(opIndex, b.combineRep(child, op.Min))

	case opcode.AND:
		child := b.visit(opcode.Child(opIndex))
		return b.store(opIndex, b.combineAnd(child))

	case opcode.NOT:
		child := b.visit(opcode.Child(opIndex))
		return b.store(opIndex, b.combineNot(child))

	case opcode.BKA, opcode.BKN:
		b.visit(opcode.Child(opIndex))
		return b.newMap(Active)

	case opcode.RNM:
		m := b.ruleMap(op.RefIndex)
		op.PpptIndex = b.table.RuleMapIndex[op.RefIndex]
		return m

	default: // UDT, BKR, ABG, AEN
		return b.newMap(Active)
	}
}

func (b *builder) tlsMap(op *opcode.Op) []Cell {
	achars := b.prog.Achars(op)
	if len(achars) == 0 {
		cp := make([]Cell, len(b.emptyMap))
		copy(cp, b.emptyMap)
		return cp
	}
	value := Match
	if len(achars) > 1 {
		value = Active
	}
	m := b.newMap(NoMatch)
	for _, c := range achars {
		if idx := b.pos(c); idx >= 0 {
			m[idx] = value
		}
		if c >= 'a' && c <= 'z' {
			if idx := b.pos(c - ('a' - 'A')); idx >= 0 {
				m[idx] = value
			}
		}
	}
	return m
}

func (b *builder) tbsMap(op *opcode.Op) []Cell {
	achars := b.prog.Achars(op)
	value := Match
	if len(achars) > 1 {
		value = Active
	}
	m := b.newMap(NoMatch)
	for _, c := range achars {
		if idx := b.pos(c); idx >= 0 {
			m[idx] = value
		}
	}
	return m
}

func (b *builder) trgMap(op *opcode.Op) []Cell {
	m := b.newMap(NoMatch)
	for c := op.Min; c <= op.Max; c++ {
		if idx := b.pos(c); idx >= 0 {
			m[idx] = Match
		}
	}
	return m
}

func (b *builder) combineAlt(children [][]Cell) []Cell {
	out := b.newMap(NoMatch)
	for idx := range out {
		for _, cm := range children {
			if cm[idx] != NoMatch {
				out[idx] = cm[idx]
				break
			}
		}
	}
	return out
}

func (b *builder) combineCat(first []Cell) []Cell {
	out := b.newMap(NoMatch)
	for idx, v := range first {
		if v != NoMatch {
			out[idx] = Active
		}
	}
	return out
}

func (b *builder) combineRep(child []Cell, min int64) []Cell {
	out := b.newMap(NoMatch)
	for idx, v := range child {
		switch v {
		case Empty:
			out[idx] = Empty
		case NoMatch:
			if min == 0 {
				out[idx] = Empty
			}
		default:
			out[idx] = Active
		}
	}
	return out
}

func (b *builder) combineAnd(child []Cell) []Cell {
	out := make([]Cell, len(child))
	copy(out, child)
	for idx, v := range out {
		if v == Match {
			out[idx] = Empty
		}
	}
	return out
}

func (b *builder) combineNot(child []Cell) []Cell {
	out := make([]Cell, len(child))
	copy(out, child)
	for idx, v := range out {
		switch v {
		case Match:
			out[idx] = NoMatch
		case NoMatch:
			out[idx] = Empty
		}
	}
	return out
}
