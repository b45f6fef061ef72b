// Package translator implements the semantic translator (spec §4.2): it
// walks the external grammar parser's event stream (internal/syntax),
// resolves rule and UDT references, interns terminal strings into a shared
// alphabet-character table, normalizes the opcode tree, and emits the
// flattened opcode stream plus auxiliary tables that every later stage
// consumes.
package translator

import (
	"strings"

	"github.com/ldthomas/apg-go/internal/errs"
	"github.com/ldthomas/apg-go/internal/lines"
	"github.com/ldthomas/apg-go/internal/opcode"
	"github.com/ldthomas/apg-go/internal/syntax"
	"github.com/ldthomas/apg-go/internal/util"
)

// frameKind identifies what a stack frame is waiting to close into.
type frameKind int

const (
	frameAlt frameKind = iota
	frameCat
	frameRep
	frameOption
	frameAnd
	frameNot
	frameBka
	frameBkn
	frameRuleRoot
)

type frame struct {
	kind        frameKind
	children    []int
	repMin      int64
	repMax      int64
	ruleIndex   int
	incremental bool
	openOffset  int
}

// pendingRef is an RNM or BKR opcode awaiting post-pass resolution against
// the final rule/UDT tables (spec §4.2.4: "After the tree walk, RNM and BKR
// operators are re-scanned").
type pendingRef struct {
	opIndex int
	name    string
	isBkr   bool // BKR may resolve to either a rule or a UDT; RNM only a rule
	offset  int
}

type translator struct {
	prog *opcode.Program
	li   *lines.Index
	log  *errs.Log

	stack util.Stack[frame]

	ruleIndexByFoldedName map[string]int
	pendingRoots          map[int][]int // ruleIndex -> list of top-level alternative op indices, in definition order
	pendingRefs           []pendingRef
	udtIndexByFoldedName  map[string]int
}

// Translate walks producer's event stream and returns the resulting
// Program. ok is false iff any diagnostic was recorded (spec §4.2 "Failure
// model"); diagnostics are appended to log in source order.
func Translate(producer syntax.Producer, li *lines.Index, log *errs.Log) (*opcode.Program, bool) {
	mark := log.Len()
	t := &translator{
		prog:                  &opcode.Program{},
		li:                    li,
		log:                   log,
		ruleIndexByFoldedName: map[string]int{},
		pendingRoots:          map[int][]int{},
		udtIndexByFoldedName:  map[string]int{},
	}

	for _, ev := range producer.Events() {
		t.handle(ev)
	}

	t.resolveReferences()
	t.finalizeRules()

	return t.prog, log.Since(mark) == nil
}

func (t *translator) loc(offset int) errs.Location {
	if t.li == nil {
		return errs.Location{Line: 1, Column: offset + 1}
	}
	return t.li.Locate(offset)
}

func (t *translator) rendered(offset int) string {
	if t.li == nil {
		return ""
	}
	return t.li.RenderedLine(offset)
}

func (t *translator) errorAt(offset int, format string, a ...interface{}) {
	t.log.Add(errs.NewAt(errs.SemanticError, t.loc(offset), t.rendered(offset), format, a...))
}

// top returns a pointer to the frame on top of the stack, so callers can
// mutate it in place (IncrementalAlt marks the enclosing rule root frame).
func (t *translator) top() *frame {
	return &t.stack.Of[t.stack.Len()-1]
}

func (t *translator) push(f frame) {
	t.stack.Push(f)
}

func (t *translator) pop() frame {
	f := t.top()
	popped := *f
	t.stack.Pop()
	return popped
}

// appendChild attaches opIndex as a child of whatever frame is currently on
// top of the stack (or, if the stack is empty, it is dropped — that only
// happens for malformed event streams already diagnosed elsewhere).
func (t *translator) appendChild(opIndex int) {
	if t.stack.Empty() {
		return
	}
	f := t.top()
	f.children = append(f.children, opIndex)
}

func (t *translator) handle(ev syntax.Event) {
	switch ev.Kind {
	case syntax.RuleOpen:
		t.openRule(ev)
	case syntax.IncrementalAlt:
		if !t.stack.Empty() && t.top().kind == frameRuleRoot {
			t.top().incremental = true
		}
	case syntax.RuleClose:
		t.closeRule()
	case syntax.AltOpen:
		t.push(frame{kind: frameAlt, openOffset: ev.Offset})
	case syntax.AltClose:
		t.closeMulti(opcode.ALT)
	case syntax.CatOpen:
		t.push(frame{kind: frameCat, openOffset: ev.Offset})
	case syntax.CatClose:
		t.closeMulti(opcode.CAT)
	case syntax.Rep:
		if ev.Min > ev.Max && ev.Max != opcode.Unbounded {
			t.errorAt(ev.Offset, "inverted repetition bounds: min (%d) > max (%d)", ev.Min, ev.Max)
		}
		t.push(frame{kind: frameRep, repMin: ev.Min, repMax: ev.Max, openOffset: ev.Offset})
	case syntax.RepClose:
		t.closeRep()
	case syntax.Option:
		t.push(frame{kind: frameOption, openOffset: ev.Offset})
	case syntax.OptionClose:
		t.closeOption()
	case syntax.AndOpen:
		t.push(frame{kind: frameAnd, openOffset: ev.Offset})
	case syntax.AndClose:
		t.closeUnary(opcode.AND)
	case syntax.NotOpen:
		t.push(frame{kind: frameNot, openOffset: ev.Offset})
	case syntax.NotClose:
		t.closeUnary(opcode.NOT)
	case syntax.BkaOpen:
		t.push(frame{kind: frameBka, openOffset: ev.Offset})
	case syntax.BkaClose:
		t.closeUnary(opcode.BKA)
	case syntax.BknOpen:
		t.push(frame{kind: frameBkn, openOffset: ev.Offset})
	case syntax.BknClose:
		t.closeUnary(opcode.BKN)
	case syntax.Rnm:
		t.leafRnm(ev)
	case syntax.Udt:
		t.leafUdt(ev)
	case syntax.Bkr:
		t.leafBkr(ev)
	case syntax.TlsString:
		t.leafTls(ev)
	case syntax.TbsString:
		t.leafTbs(ev)
	case syntax.Trg:
		t.leafTrg(ev)
	case syntax.AnchorBegin:
		t.appendChild(t.newOp(opcode.Op{Kind: opcode.ABG}))
	case syntax.AnchorEnd:
		t.appendChild(t.newOp(opcode.Op{Kind: opcode.AEN}))
	}
}

func (t *translator) newOp(op opcode.Op) int {
	t.prog.Ops = append(t.prog.Ops, op)
	return len(t.prog.Ops) - 1
}

func (t *translator) openRule(ev syntax.Event) {
	folded := strings.ToLower(ev.Name)
	idx, exists := t.ruleIndexByFoldedName[folded]
	if !exists {
		idx = len(t.prog.Rules)
		t.prog.Rules = append(t.prog.Rules, opcode.Rule{Index: idx, Name: ev.Name})
		t.ruleIndexByFoldedName[folded] = idx
	}
	t.push(frame{kind: frameRuleRoot, ruleIndex: idx, openOffset: ev.Offset})
}

func (t *translator) closeRule() {
	f := t.pop()
	if f.kind != frameRuleRoot {
		return
	}
	priorDefs, exists := t.pendingRoots[f.ruleIndex]
	if exists && !f.incremental {
		t.errorAt(f.openOffset, "rule %q redefined without incremental alternative (=/)", t.prog.Rules[f.ruleIndex].Name)
	}
	if len(f.children) != 1 {
		// malformed stream (e.g. empty rule body); already the grammar
		// parser's responsibility to have prevented, but guard here too.
		t.errorAt(f.openOffset, "rule %q has no body", t.prog.Rules[f.ruleIndex].Name)
		return
	}
	t.pendingRoots[f.ruleIndex] = append(priorDefs, f.children[0])
}

// closeMulti closes an ALT or CAT frame, eliding it when it has exactly one
// child (spec §4.2.6 normalization).
func (t *translator) closeMulti(kind opcode.Kind) {
	f := t.pop()
	if len(f.children) == 0 {
		t.errorAt(f.openOffset, "%s has no children", kind)
		t.appendChild(0)
		return
	}
	if len(f.children) == 1 {
		t.appendChild(f.children[0])
		return
	}
	off := len(t.prog.ChildIndexTable)
	t.prog.ChildIndexTable = append(t.prog.ChildIndexTable, f.children...)
	idx := t.newOp(opcode.Op{Kind: kind, ChildOffset: off, ChildCount: len(f.children)})
	t.appendChild(idx)
}

func (t *translator) closeUnary(kind opcode.Kind) {
	f := t.pop()
	if len(f.children) != 1 {
		t.errorAt(f.openOffset, "%s must wrap exactly one element", kind)
		return
	}
	idx := t.newOp(opcode.Op{Kind: kind})
	t.appendChild(idx)
}

func (t *translator) closeRep() {
	f := t.pop()
	if len(f.children) != 1 {
		t.errorAt(f.openOffset, "repetition must wrap exactly one element")
		return
	}
	if f.repMin == 1 && f.repMax == 1 {
		// spec §4.2.6: REP(1,1) is elided, not an optimization but a
		// required normalization the runtime depends on.
		t.appendChild(f.children[0])
		return
	}
	idx := t.newOp(opcode.Op{Kind: opcode.REP, Min: f.repMin, Max: f.repMax})
	t.appendChild(idx)
}

func (t *translator) closeOption() {
	f := t.pop()
	if len(f.children) != 1 {
		t.errorAt(f.openOffset, "option must wrap exactly one element")
		return
	}
	idx := t.newOp(opcode.Op{Kind: opcode.REP, Min: 0, Max: 1})
	t.appendChild(idx)
}

func (t *translator) leafRnm(ev syntax.Event) {
	idx := t.newOp(opcode.Op{Kind: opcode.RNM})
	t.pendingRefs = append(t.pendingRefs, pendingRef{opIndex: idx, name: ev.Name, offset: ev.Offset})
	t.appendChild(idx)
	// ensure a rule slot exists for forward references so later passes
	// always have something to point RefIndex at.
	t.ensureRuleExists(ev.Name)
}

func (t *translator) leafBkr(ev syntax.Event) {
	idx := t.newOp(opcode.Op{
		Kind: opcode.BKR,
		Case: opcode.BkrCase(ev.Case),
		Mode: opcode.BkrMode(ev.Mode),
	})
	t.pendingRefs = append(t.pendingRefs, pendingRef{opIndex: idx, name: ev.Name, offset: ev.Offset, isBkr: true})
	t.appendChild(idx)
}

func (t *translator) leafUdt(ev syntax.Event) {
	folded := strings.ToLower(ev.Name)
	idx, exists := t.udtIndexByFoldedName[folded]
	if !exists {
		idx = len(t.prog.Udts)
		t.prog.Udts = append(t.prog.Udts, opcode.UDT{Index: idx, Name: ev.Name, MayBeEmpty: opcode.MayBeEmptyFromName(ev.Name)})
		t.udtIndexByFoldedName[folded] = idx
	}
	opIdx := t.newOp(opcode.Op{Kind: opcode.UDT, UdtIndex: idx, MayBeEmpty: t.prog.Udts[idx].MayBeEmpty})
	t.appendChild(opIdx)
}

func (t *translator) leafTrg(ev syntax.Event) {
	if ev.Min > ev.Max {
		t.errorAt(ev.Offset, "inverted character range: min (%d) > max (%d)", ev.Min, ev.Max)
	}
	idx := t.newOp(opcode.Op{Kind: opcode.TRG, Min: ev.Min, Max: ev.Max})
	t.appendChild(idx)
}

func (t *translator) leafTls(ev syntax.Event) {
	if containsTab(ev.Text) {
		t.errorAt(ev.Offset, "TAB is forbidden inside a TLS string literal")
	}
	lower := strings.ToLower(string(ev.Text))
	off := len(t.prog.AcharTable)
	for _, r := range lower {
		t.prog.AcharTable = append(t.prog.AcharTable, int64(r))
	}
	idx := t.newOp(opcode.Op{Kind: opcode.TLS, AcharOffset: off, AcharLength: len(lower)})
	t.appendChild(idx)
}

func (t *translator) leafTbs(ev syntax.Event) {
	if containsTab(ev.Text) {
		t.errorAt(ev.Offset, "TAB is forbidden inside a TBS string literal")
	}
	if len(ev.Text) == 0 {
		t.errorAt(ev.Offset, "empty case-sensitive (TBS) string literal is not allowed")
	}
	off := len(t.prog.AcharTable)
	for _, b := range ev.Text {
		t.prog.AcharTable = append(t.prog.AcharTable, int64(b))
	}
	idx := t.newOp(opcode.Op{Kind: opcode.TBS, AcharOffset: off, AcharLength: len(ev.Text)})
	t.appendChild(idx)
}

func containsTab(b []byte) bool {
	for _, c := range b {
		if c == 0x09 {
			return true
		}
	}
	return false
}

func (t *translator) ensureRuleExists(name string) int {
	folded := strings.ToLower(name)
	if idx, ok := t.ruleIndexByFoldedName[folded]; ok {
		return idx
	}
	idx := len(t.prog.Rules)
	t.prog.Rules = append(t.prog.Rules, opcode.Rule{Index: idx, Name: name})
	t.ruleIndexByFoldedName[folded] = idx
	return idx
}

// resolveReferences re-scans every RNM and BKR opcode against the final
// rule/UDT tables (spec §4.2.4).
func (t *translator) resolveReferences() {
	for _, ref := range t.pendingRefs {
		folded := strings.ToLower(ref.name)
		if ref.isBkr {
			if ruleIdx, ok := t.ruleIndexByFoldedName[folded]; ok {
				t.prog.Ops[ref.opIndex].RefIndex = ruleIdx
				t.prog.Ops[ref.opIndex].IsUDT = false
				continue
			}
			if udtIdx, ok := t.udtIndexByFoldedName[folded]; ok {
				t.prog.Ops[ref.opIndex].RefIndex = udtIdx
				t.prog.Ops[ref.opIndex].IsUDT = true
				continue
			}
			t.errorAt(ref.offset, "back-reference to undefined rule or UDT %q", ref.name)
			continue
		}
		ruleIdx, ok := t.ruleIndexByFoldedName[folded]
		if !ok {
			t.errorAt(ref.offset, "reference to undefined rule %q", ref.name)
			continue
		}
		t.prog.Ops[ref.opIndex].RefIndex = ruleIdx
		// a rule created only to satisfy a forward RNM and never actually
		// defined is still "undefined" in the sense that matters: it has
		// no body. Catch that once all rules have been closed.
	}

	for i := range t.prog.Rules {
		if _, defined := t.pendingRoots[i]; !defined {
			t.errorAt(0, "reference to undefined rule %q", t.prog.Rules[i].Name)
		}
	}
}

// finalizeRules assigns each rule its root opcode, wrapping multiple
// incremental-alternative definitions in a single top-level ALT (spec
// §4.2.1), and interns every rule and UDT name into the string table.
func (t *translator) finalizeRules() {
	for i := range t.prog.Rules {
		roots, ok := t.pendingRoots[i]
		if !ok || len(roots) == 0 {
			continue
		}
		var root int
		if len(roots) == 1 {
			root = roots[0]
		} else {
			off := len(t.prog.ChildIndexTable)
			t.prog.ChildIndexTable = append(t.prog.ChildIndexTable, roots...)
			root = t.newOp(opcode.Op{Kind: opcode.ALT, ChildOffset: off, ChildCount: len(roots)})
		}
		t.prog.Rules[i].OpOffset = root
		t.prog.Rules[i].OpCount = countSubtree(t.prog, root)

		off, _ := t.prog.InternString(t.prog.Rules[i].Name)
		t.prog.Rules[i].NameOffset = off
	}
	for i := range t.prog.Udts {
		off, _ := t.prog.InternString(t.prog.Udts[i].Name)
		t.prog.Udts[i].NameOffset = off
	}
}

// countSubtree counts the opcodes reachable from root, used only for the
// informational Rule.OpCount field (spec §3.1); it is not load-bearing for
// correctness since every cross-reference is an explicit absolute index.
func countSubtree(p *opcode.Program, root int) int {
	seen := map[int]bool{}
	var walk func(i int)
	count := 0
	walk = func(i int) {
		if seen[i] {
			return
		}
		seen[i] = true
		count++
		op := &p.Ops[i]
		switch op.Kind {
		case opcode.ALT, opcode.CAT:
			for _, c := range p.Children(op) {
				walk(c)
			}
		case opcode.REP, opcode.AND, opcode.NOT, opcode.BKA, opcode.BKN:
			if i > 0 {
				walk(opcode.Child(i))
			}
		}
	}
	walk(root)
	return count
}
