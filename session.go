// Package apg is the compilation core for the ABNF-with-SABNF-extensions
// grammar compiler: a Session carries one grammar through validation,
// translation, attribute analysis, PPPT construction, and emission, and
// owns the arena its stages scratch-allocate from (spec §2, §5).
package apg

import (
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/ldthomas/apg-go/internal/arena"
	"github.com/ldthomas/apg-go/internal/attrs"
	"github.com/ldthomas/apg-go/internal/emit"
	"github.com/ldthomas/apg-go/internal/errs"
	"github.com/ldthomas/apg-go/internal/lines"
	"github.com/ldthomas/apg-go/internal/opcode"
	"github.com/ldthomas/apg-go/internal/pppt"
	"github.com/ldthomas/apg-go/internal/syntax"
	"github.com/ldthomas/apg-go/internal/translator"
)

// firstCause returns diagnostics[0] as an error, or nil if diagnostics is
// empty (spec §7 "the caller receives one exception carrying the first
// fatal cause, and may inspect the error log for the complete set").
func firstCause(diagnostics []*errs.Error) error {
	if len(diagnostics) == 0 {
		return nil
	}
	return diagnostics[0]
}

// Session runs exactly one grammar through the pipeline at a time. Its
// stage-validity flags advance monotonically; calling a stage out of order
// returns a StateError instead of running (spec §5 "single-threaded
// cooperative", §7 StateError).
type Session struct {
	id uuid.UUID

	arena  *arena.Arena
	logger *log.Logger
	log    *errs.Log

	strict    bool
	protected []string

	inputValid      bool
	syntaxValid     bool
	semanticsValid  bool
	attributesValid bool

	lineIndex *lines.Index
	prog      *opcode.Program
	infos     []attrs.RuleInfo
	ppptTable *pppt.Table
}

// Option configures a Session at construction time.
type Option func(*Session)

// WithLogger attaches a *log.Logger that receives one line at session start
// and one summary line as each stage finishes. Diagnostics themselves are
// not written to it. Nil (the default) means no logging.
func WithLogger(l *log.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithStrict enables the input validator's strict line-ending mode (spec
// §4.1).
func WithStrict(strict bool) Option {
	return func(s *Session) { s.strict = strict }
}

// WithProtectedRules names rules whose PPPT map BuildPPPT must never elide
// a call to, by name (spec §4.4 "Recursive rule handling").
func WithProtectedRules(names ...string) Option {
	return func(s *Session) { s.protected = append(s.protected, names...) }
}

// New returns a fresh Session ready for Validate.
func New(opts ...Option) (*Session, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("apg: generating session id: %w", err)
	}
	s := &Session{
		id:    id,
		arena: arena.New(),
		log:   errs.NewLog(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logf("session %s started", s.id)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Log returns the session's accumulated diagnostics, in source order.
func (s *Session) Log() *errs.Log {
	return s.log
}

// Program returns the compiled program Translate produced, or nil before
// Translate has run. Exposed read-only for tools built on top of a Session,
// such as apgrepl, that need to inspect rules and UDTs by name.
func (s *Session) Program() *opcode.Program {
	return s.prog
}

func (s *Session) logf(format string, a ...interface{}) {
	if s.logger != nil {
		s.logger.Printf(format, a...)
	}
}

// stateErr reports that a stage was invoked before its prerequisite
// completed.
func (s *Session) stateErr(stage, requires string) error {
	err := errs.New(errs.StateError, "%s requires %s to complete first", stage, requires)
	s.log.Add(err)
	return err
}

// Validate runs the input validator over src (spec §4.1). It must complete
// before Translate.
func (s *Session) Validate(src []byte) (*lines.Index, bool, error) {
	mark := s.log.Len()
	idx, ok := lines.Validate(src, s.strict, s.log)
	s.lineIndex = idx
	s.inputValid = ok
	s.logf("validate: %d line(s), ok=%v", idx.LineCount(), ok)
	if !ok {
		return idx, ok, firstCause(s.log.Since(mark))
	}
	return idx, ok, nil
}

// Translate runs the semantic translator over producer's event stream
// (spec §4.2). Validate must have completed successfully first.
func (s *Session) Translate(producer syntax.Producer) (*opcode.Program, bool, error) {
	if !s.inputValid {
		return nil, false, s.stateErr("translate", "validate")
	}
	mark := s.log.Len()
	prog, ok := translator.Translate(producer, s.lineIndex, s.log)
	s.prog = prog
	s.syntaxValid = ok
	s.arena.Register(func() { s.prog = nil })
	s.logf("translate: %d rule(s), %d udt(s), ok=%v", len(prog.Rules), len(prog.Udts), ok)
	if !ok {
		return prog, ok, firstCause(s.log.Since(mark))
	}
	return prog, ok, nil
}

// Analyze runs the dependency and attribute analyzer (spec §4.3). Translate
// must have completed successfully first.
func (s *Session) Analyze() ([]attrs.RuleInfo, bool, error) {
	if !s.syntaxValid {
		return nil, false, s.stateErr("analyze", "translate")
	}
	mark := s.log.Len()
	infos, ok := attrs.Analyze(s.prog, s.log)
	s.infos = infos
	s.semanticsValid = ok
	s.arena.Register(func() { s.infos = nil })
	s.logf("analyze: ok=%v", ok)
	if !ok {
		return infos, ok, firstCause(s.log.Since(mark))
	}
	return infos, ok, nil
}

// BuildPPPT constructs the Partially-Predictive Parsing Table (spec §4.4).
// Analyze must have completed successfully first.
func (s *Session) BuildPPPT() (*pppt.Table, bool, error) {
	if !s.semanticsValid {
		return nil, false, s.stateErr("build PPPT", "analyze")
	}
	mark := s.log.Len()
	table, ok := pppt.Build(s.prog, s.protected, s.log)
	s.ppptTable = table
	s.attributesValid = ok
	s.arena.Register(func() { s.ppptTable = nil })
	if table != nil {
		s.logf("build pppt: %d map(s) of size %d, ok=%v", len(table.Maps), table.MapSize, ok)
	} else {
		s.logf("build pppt: ok=%v", ok)
	}
	if !ok {
		return table, ok, firstCause(s.log.Since(mark))
	}
	return table, ok, nil
}

// Emit lays out the session's compiled artifacts into a binary
// initialization image (spec §4.5). BuildPPPT must have completed
// successfully first.
func (s *Session) Emit() (*emit.Image, error) {
	if !s.attributesValid {
		return nil, s.stateErr("emit", "build PPPT")
	}
	mark := s.log.Len()
	img, ok := emit.Build(s.prog, s.ppptTable, s.log)
	s.logf("emit: ok=%v", ok)
	if !ok {
		return img, firstCause(s.log.Since(mark))
	}
	return img, nil
}

// Close releases every arena-backed allocation the session made, along
// every exit path including failure (spec §5).
func (s *Session) Close() error {
	return s.arena.Close()
}

// Reset clears the session's compiled state and diagnostics so the same
// Session can be reused for a new grammar (spec §5 "release ... including
// ... re-input"), without generating a new ID.
func (s *Session) Reset() {
	s.arena.Reset()
	s.log = errs.NewLog()
	s.inputValid = false
	s.syntaxValid = false
	s.semanticsValid = false
	s.attributesValid = false
	s.lineIndex = nil
	s.prog = nil
	s.infos = nil
	s.ppptTable = nil
}
