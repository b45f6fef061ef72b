/*
Apgrepl is an interactive shell for exploring a compiled grammar's rules,
attributes, and PPPT predictions without rebuilding the whole pipeline by
hand. It compiles the same bundled demo grammar cmd/apg does, once, at
startup, then answers queries against the result until the user quits.

Usage:

	apgrepl

Once started, type HELP for the list of commands. To exit, type QUIT.
*/
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"

	apg "github.com/ldthomas/apg-go"
	"github.com/ldthomas/apg-go/internal/attrs"
	"github.com/ldthomas/apg-go/internal/demogrammar"
	"github.com/ldthomas/apg-go/internal/pppt"
	"github.com/ldthomas/apg-go/internal/util"
)

const (
	ExitSuccess = iota
	ExitInitError
)

var returnCode = ExitSuccess

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panic(fmt.Sprintf("unrecoverable panic occured: %v", panicErr))
		} else {
			os.Exit(returnCode)
		}
	}()

	shell, shellErr := newShell()
	if shellErr != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", shellErr.Error())
		returnCode = ExitInitError
		return
	}
	defer shell.Close()

	if err := shell.run(); err != nil && err != io.EOF {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err.Error())
		returnCode = ExitInitError
	}
}

// shell holds the one compiled session apgrepl queries for the lifetime of
// the program (mirrors the teacher's InteractiveCommandReader, which also
// wraps one long-lived readline.Instance; internal/input/input.go).
type shell struct {
	rl      *readline.Instance
	session *apg.Session
	infos   []attrs.RuleInfo
	table   *pppt.Table
}

func newShell() (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt: "apg> ",
	})
	if err != nil {
		return nil, fmt.Errorf("create readline config: %w", err)
	}

	session, err := apg.New(apg.WithProtectedRules(demogrammar.ProtectedRules()...))
	if err != nil {
		rl.Close()
		return nil, fmt.Errorf("create session: %w", err)
	}

	s := &shell{rl: rl, session: session}
	if err := s.compile(); err != nil {
		rl.Close()
		session.Close()
		return nil, err
	}
	return s, nil
}

func (s *shell) compile() error {
	if _, ok, err := s.session.Validate(demogrammar.Source()); !ok {
		return err
	}
	if _, ok, err := s.session.Translate(demogrammar.Build()); !ok {
		return err
	}
	infos, ok, err := s.session.Analyze()
	if !ok {
		return err
	}
	s.infos = infos
	table, ok, err := s.session.BuildPPPT()
	if !ok {
		return err
	}
	s.table = table
	return nil
}

// Close cleans up readline and session resources.
func (s *shell) Close() error {
	s.session.Close()
	return s.rl.Close()
}

func (s *shell) run() error {
	fmt.Println("apgrepl ready: grammar compiled. Type HELP for commands.")
	for {
		line, err := s.rl.Readline()
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		cmd := strings.ToUpper(fields[0])
		args := fields[1:]
		switch cmd {
		case "QUIT", "EXIT":
			return io.EOF
		case "HELP":
			s.printHelp()
		case "RULES":
			s.printRules()
		case "SHOW":
			s.printRule(args)
		case "PPPT":
			s.printPppt(args)
		default:
			fmt.Printf("unrecognized command %q; type HELP for the list\n", fields[0])
		}
	}
}

func (s *shell) printHelp() {
	fmt.Println(`commands:
  RULES            list every rule in the compiled grammar
  SHOW <rule>      show a rule's attributes and recursive type
  PPPT <rule>      show a rule's PPPT map as a run of cell values
  HELP             show this message
  QUIT             exit apgrepl`)
}

func (s *shell) ruleIndex(name string) (int, error) {
	idx := ruleByName(s.session, name)
	if idx < 0 {
		names := ruleNames(s.session)
		if len(names) == 0 {
			return -1, fmt.Errorf("no such rule %q", name)
		}
		return -1, fmt.Errorf("no such rule %q; known rules are %s", name, util.MakeTextList(names))
	}
	return idx, nil
}

func (s *shell) printRules() {
	names := ruleNames(s.session)
	for i, n := range names {
		info := s.infos[i]
		fmt.Printf("%3d  %-16s %s\n", i, n, info.RecursiveType)
	}
}

func (s *shell) printRule(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: SHOW <rule>")
		return
	}
	idx, err := s.ruleIndex(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	info := s.infos[idx]
	a := info.Attrs
	fmt.Printf("%s: type=%s left=%v nested=%v right=%v cyclic=%v empty=%v finite=%v fatal=%v\n",
		args[0], info.RecursiveType, a.Left, a.Nested, a.Right, a.Cyclic, a.Empty, a.Finite, info.Fatal)
}

func (s *shell) printPppt(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: PPPT <rule>")
		return
	}
	idx, err := s.ruleIndex(args[0])
	if err != nil {
		fmt.Println(err)
		return
	}
	mapIdx := ruleMapIndex(s.session, idx)
	if mapIdx < 0 || s.table == nil || mapIdx >= len(s.table.Maps) {
		fmt.Printf("%s has no PPPT map\n", args[0])
		return
	}
	m := s.table.Maps[mapIdx]
	var b strings.Builder
	for _, c := range m {
		b.WriteByte(cellLetter(c))
	}
	fmt.Println(b.String())
}

func cellLetter(c pppt.Cell) byte {
	switch c {
	case pppt.Match:
		return 'M'
	case pppt.Empty:
		return 'E'
	case pppt.Active:
		return 'A'
	default:
		return '.'
	}
}

// ruleByName, ruleNames, and ruleMapIndex reach into the session's compiled
// program through the small amount of read access apg.Session exposes for
// exactly this purpose (see session.go's Program accessor).
func ruleByName(session *apg.Session, name string) int {
	return session.Program().RuleByName(name)
}

func ruleNames(session *apg.Session) []string {
	rules := session.Program().Rules
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names
}

func ruleMapIndex(session *apg.Session, ruleIndex int) int {
	return session.Program().Rules[ruleIndex].PpptIndex
}
