// Package attrs implements the dependency and attribute analyzer (spec
// §4.3): reachability sets between rules and UDTs, N/R/MR recursive-type
// classification, and the six-attribute Single-Expansion Syntax Tree walk
// that flags fatally defective rules.
package attrs

import (
	"github.com/ldthomas/apg-go/internal/errs"
	"github.com/ldthomas/apg-go/internal/opcode"
	"github.com/ldthomas/apg-go/internal/util"
)

// Attrs holds the six per-rule attributes the SEST walk computes.
type Attrs struct {
	Left   bool
	Nested bool
	Right  bool
	Cyclic bool
	Empty  bool
	Finite bool
}

// RecursiveType classifies a rule's recursion shape.
type RecursiveType int

const (
	N RecursiveType = iota
	R
	MR
)

func (t RecursiveType) String() string {
	switch t {
	case R:
		return "R"
	case MR:
		return "MR"
	default:
		return "N"
	}
}

// RuleInfo is everything the analyzer produces for one rule.
type RuleInfo struct {
	RefersTo     util.KeySet[int]
	RefersToUDT  util.KeySet[int]
	ReferencedBy util.KeySet[int]

	RecursiveType RecursiveType
	MRGroup       int // valid only when RecursiveType == MR

	Attrs Attrs
	Fatal bool // left || cyclic || !finite
}

// Analyze runs the full dependency and attribute analysis over prog. ok is
// false iff at least one rule is fatally defective (spec §4.3 "Error set");
// the analyzer always completes for every rule regardless.
func Analyze(prog *opcode.Program, log *errs.Log) ([]RuleInfo, bool) {
	mark := log.Len()
	n := len(prog.Rules)
	infos := make([]RuleInfo, n)

	for i := 0; i < n; i++ {
		rules, udts := closure(prog, i)
		infos[i].RefersTo = rules
		infos[i].RefersToUDT = udts
	}
	for i := 0; i < n; i++ {
		infos[i].ReferencedBy = util.KeySet[int]{}
	}
	for i := 0; i < n; i++ {
		for s := range infos[i].RefersTo {
			infos[s].ReferencedBy.Add(i)
		}
	}

	classifyRecursion(infos)

	cache := make([]*Attrs, n)
	inProgress := make([]bool, n)
	for i := 0; i < n; i++ {
		a := analyzeRule(prog, i, cache, inProgress)
		infos[i].Attrs = a
		infos[i].Fatal = a.Left || a.Cyclic || !a.Finite
		prog.Rules[i].MayBeEmpty = a.Empty
		if infos[i].Fatal {
			log.Add(errs.New(errs.AttributeError,
				"rule %q is fatally defective (left=%v cyclic=%v finite=%v)",
				prog.Rules[i].Name, a.Left, a.Cyclic, a.Finite))
		}
	}

	return infos, log.Since(mark) == nil
}

// directRefs collects the rules and UDTs directly named by an RNM, BKR, or
// UDT opcode anywhere in ruleIndex's own opcode tree, without descending
// into any referenced rule's body.
func directRefs(prog *opcode.Program, ruleIndex int) (util.KeySet[int], util.KeySet[int]) {
	rules := util.KeySet[int]{}
	udts := util.KeySet[int]{}
	var walk func(i int)
	walk = func(i int) {
		op := &prog.Ops[i]
		switch op.Kind {
		case opcode.ALT, opcode.CAT:
			for _, c := range prog.Children(op) {
				walk(c)
			}
		case opcode.REP, opcode.AND, opcode.NOT, opcode.BKA, opcode.BKN:
			if i > 0 {
				walk(opcode.Child(i))
			}
		case opcode.RNM:
			rules.Add(op.RefIndex)
		case opcode.UDT:
			udts.Add(op.UdtIndex)
		case opcode.BKR:
			if op.IsUDT {
				udts.Add(op.RefIndex)
			} else {
				rules.Add(op.RefIndex)
			}
		}
	}
	walk(prog.Rules[ruleIndex].OpOffset)
	return rules, udts
}

// closure computes refers_to[start] and refers_to_udt[start] (spec §4.3):
// the transitive closure of directRefs reached by following rule references
// outward, terminating on rules already visited.
func closure(prog *opcode.Program, start int) (util.KeySet[int], util.KeySet[int]) {
	rules := util.KeySet[int]{}
	udts := util.KeySet[int]{}
	visited := map[int]bool{start: true}
	queue := []int{start}
	for len(queue) > 0 {
		r := queue[0]
		queue = queue[1:]
		dr, du := directRefs(prog, r)
		for s := range dr {
			rules.Add(s)
			if !visited[s] {
				visited[s] = true
				queue = append(queue, s)
			}
		}
		for u := range du {
			udts.Add(u)
		}
	}
	return rules, udts
}

// classifyRecursion assigns RecursiveType and MRGroup (spec §4.3 "Recursive
// type classification"): mutual recursion forms connected components under
// the "each refers to the other" relation, numbered in ascending order of
// first appearance.
func classifyRecursion(infos []RuleInfo) {
	n := len(infos)
	group := make([]int, n)
	for i := range group {
		group[i] = -1
	}
	nextGroup := 0
	for i := 0; i < n; i++ {
		if !infos[i].RefersTo.Has(i) {
			infos[i].RecursiveType = N
			infos[i].MRGroup = -1
			continue
		}
		if group[i] != -1 {
			continue
		}
		// BFS over the mutual-recursion relation starting at i.
		members := []int{i}
		group[i] = -2 // provisional marker meaning "assigned this pass"
		queue := []int{i}
		for len(queue) > 0 {
			r := queue[0]
			queue = queue[1:]
			for s := range infos[r].RefersTo {
				if s == r || group[s] != -1 || !mutual(infos, r, s) {
					continue
				}
				group[s] = -2
				members = append(members, s)
				queue = append(queue, s)
			}
		}
		if len(members) == 1 {
			infos[i].RecursiveType = R
			infos[i].MRGroup = -1
			group[i] = -1
		} else {
			g := nextGroup
			nextGroup++
			for _, m := range members {
				infos[m].RecursiveType = MR
				infos[m].MRGroup = g
				group[m] = g
			}
		}
	}
}

func mutual(infos []RuleInfo, r, s int) bool {
	return infos[r].RefersTo.Has(s) && infos[s].RefersTo.Has(r)
}

// analyzeRule computes the six attributes for ruleIndex via its SEST (spec
// §4.3 "Six-attribute computation"), memoizing finished results in cache.
// inProgress breaks BKR cycles: a back-reference to a rule whose own
// analysis is still running is treated like a repeat SEST visit.
func analyzeRule(prog *opcode.Program, ruleIndex int, cache []*Attrs, inProgress []bool) Attrs {
	if cache[ruleIndex] != nil {
		return *cache[ruleIndex]
	}
	inProgress[ruleIndex] = true
	visited := map[int]bool{ruleIndex: true}
	a := walkSEST(prog, prog.Rules[ruleIndex].OpOffset, ruleIndex, visited, cache, inProgress)
	inProgress[ruleIndex] = false
	cache[ruleIndex] = &a
	return a
}

func walkSEST(prog *opcode.Program, opIndex, rootRule int, visited map[int]bool, cache []*Attrs, inProgress []bool) Attrs {
	op := &prog.Ops[opIndex]
	switch op.Kind {
	case opcode.TLS:
		return Attrs{Empty: op.AcharLength == 0, Finite: true}
	case opcode.TBS, opcode.TRG:
		return Attrs{Finite: true}
	case opcode.UDT:
		return Attrs{Empty: prog.Udts[op.UdtIndex].MayBeEmpty, Finite: true}
	case opcode.ABG, opcode.AEN:
		return Attrs{Empty: true, Finite: true}

	case opcode.RNM:
		target := op.RefIndex
		if target == rootRule {
			return Attrs{Left: true, Right: true, Cyclic: true}
		}
		if visited[target] {
			return Attrs{Finite: true}
		}
		visited[target] = true
		return walkSEST(prog, prog.Rules[target].OpOffset, rootRule, visited, cache, inProgress)

	case opcode.BKR:
		if op.IsUDT {
			return Attrs{Empty: prog.Udts[op.RefIndex].MayBeEmpty, Finite: true}
		}
		target := op.RefIndex
		var t Attrs
		if target == rootRule || inProgress[target] {
			t = Attrs{Finite: true}
		} else {
			t = analyzeRule(prog, target, cache, inProgress)
		}
		return Attrs{Empty: t.Empty, Finite: t.Finite}

	case opcode.REP:
		child := walkSEST(prog, opcode.Child(opIndex), rootRule, visited, cache, inProgress)
		if op.Min == 0 {
			child.Empty = true
			child.Finite = true
		}
		return child

	case opcode.AND, opcode.NOT, opcode.BKA, opcode.BKN:
		child := walkSEST(prog, opcode.Child(opIndex), rootRule, visited, cache, inProgress)
		child.Empty = true
		return child

	case opcode.ALT:
		var out Attrs
		first := true
		for _, c := range prog.Children(op) {
			ca := walkSEST(prog, c, rootRule, visited, cache, inProgress)
			if first {
				out = ca
				first = false
				continue
			}
			out.Left = out.Left || ca.Left
			out.Nested = out.Nested || ca.Nested
			out.Right = out.Right || ca.Right
			out.Cyclic = out.Cyclic || ca.Cyclic
			out.Empty = out.Empty || ca.Empty
			out.Finite = out.Finite || ca.Finite
		}
		return out

	case opcode.CAT:
		children := prog.Children(op)
		childAttrs := make([]Attrs, len(children))
		for i, c := range children {
			childAttrs[i] = walkSEST(prog, c, rootRule, visited, cache, inProgress)
		}
		return combineCat(childAttrs)
	}
	return Attrs{}
}

func isEmptyOnly(a Attrs) bool {
	return a.Empty && !a.Left && !a.Nested && !a.Right && !a.Cyclic
}

func isRecursive(a Attrs) bool {
	return a.Left || a.Right || a.Cyclic
}

// combineCat implements the CAT attribute rules (spec §4.3), the hardest of
// the combinators: empty/finite/cyclic are conjunctions over all children,
// left and right come from the first and last non-empty-only children, and
// nested is set by any of four independent conditions.
func combineCat(children []Attrs) Attrs {
	var out Attrs
	out.Empty, out.Finite, out.Cyclic = true, true, true
	for _, c := range children {
		out.Empty = out.Empty && c.Empty
		out.Finite = out.Finite && c.Finite
		out.Cyclic = out.Cyclic && c.Cyclic
	}

	for _, c := range children {
		if !isEmptyOnly(c) {
			out.Left = c.Left
			break
		}
	}
	for i := len(children) - 1; i >= 0; i-- {
		if !isEmptyOnly(children[i]) {
			out.Right = children[i].Right
			break
		}
	}

	nested := false
	for _, c := range children {
		if c.Nested {
			nested = true
		}
	}
	for i, c := range children {
		if c.Right {
			for j := i + 1; j < len(children); j++ {
				if !isEmptyOnly(children[j]) {
					nested = true
				}
			}
			break
		}
	}
	for i := len(children) - 1; i >= 0; i-- {
		if children[i].Left {
			for j := 0; j < i; j++ {
				if !isEmptyOnly(children[j]) {
					nested = true
				}
			}
			break
		}
	}
	for i, c := range children {
		if !isRecursive(c) {
			continue
		}
		before, after := false, false
		for j := 0; j < i; j++ {
			if !isRecursive(children[j]) && !children[j].Empty {
				before = true
			}
		}
		for j := i + 1; j < len(children); j++ {
			if !isRecursive(children[j]) && !children[j].Empty {
				after = true
			}
		}
		if before && after {
			nested = true
		}
	}
	out.Nested = nested
	return out
}
