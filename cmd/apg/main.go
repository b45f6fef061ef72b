/*
Apg compiles a SABNF grammar into a binary initialization image.

It drives the full compilation core — input validation, semantic
translation, dependency and attribute analysis, PPPT construction, and
emission — over a bundled demo grammar and writes the resulting image to
disk, reporting any diagnostic the core's error log accumulates along the
way.

Usage:

	apg [flags]

The flags are:

	-v, --version
		Give the current version of apg-go and then exit.

	-o, --out FILE
		Write the emitted initialization image to FILE. Defaults to the
		"out_file" entry of the config file, or "out.apg" if neither is set.

	-c, --config FILE
		Read command-line defaults from the given TOML config file. Defaults
		to "apg.toml" in the current working directory; a missing file is not
		an error.

	-s, --strict
		Accept only CRLF line endings; a bare LF or CR is an error. A missing
		final line terminator is an error with or without this flag.

Once compilation finishes, apg prints a summary of the rules, UDTs, and
opcodes produced, or, if compilation failed, every diagnostic recorded in
the error log followed by the error that stopped compilation.
*/
package main

import (
	"fmt"
	"os"

	"github.com/dekarrin/rosed"
	"github.com/spf13/pflag"

	apg "github.com/ldthomas/apg-go"
	"github.com/ldthomas/apg-go/internal/cliconfig"
	"github.com/ldthomas/apg-go/internal/demogrammar"
	"github.com/ldthomas/apg-go/internal/emit"
	"github.com/ldthomas/apg-go/internal/version"
)

const (
	// ExitSuccess indicates a successful program execution.
	ExitSuccess = iota

	// ExitCompileError indicates the grammar failed to compile.
	ExitCompileError

	// ExitInitError indicates an unsuccessful program execution due to an
	// issue initializing the session or writing the output image.
	ExitInitError
)

const diagnosticWrapWidth = 78

var (
	returnCode  int     = ExitSuccess
	flagVersion *bool   = pflag.BoolP("version", "v", false, "Gives the version info")
	outFile     *string = pflag.StringP("out", "o", "", "Write the emitted initialization image to this file")
	configFile  *string = pflag.StringP("config", "c", "apg.toml", "TOML config file to read defaults from")
	forceStrict *bool   = pflag.BoolP("strict", "s", false, "Accept only CRLF line endings")
)

func main() {
	defer func() {
		if panicErr := recover(); panicErr != nil {
			panic(fmt.Sprintf("unrecoverable panic occured: %v", panicErr))
		} else {
			os.Exit(returnCode)
		}
	}()

	pflag.Parse()

	if *flagVersion {
		fmt.Printf("%s\n", version.Current)
		return
	}

	cfg, cfgErr := cliconfig.Load(*configFile)
	if cfgErr != nil {
		fmt.Fprintf(os.Stderr, "ERROR: reading config: %s\n", cfgErr.Error())
		returnCode = ExitInitError
		return
	}
	if *outFile == "" {
		*outFile = cfg.OutFile
	}
	strict := *forceStrict || cfg.Strict

	session, sessErr := apg.New(
		apg.WithStrict(strict),
		apg.WithProtectedRules(append(demogrammar.ProtectedRules(), cfg.Protected...)...),
	)
	if sessErr != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", sessErr.Error())
		returnCode = ExitInitError
		return
	}
	defer session.Close()

	img, compileErr := compile(session)
	if compileErr != nil {
		reportDiagnostics(session)
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", wrapDiagnostic(compileErr.Error()))
		returnCode = ExitCompileError
		return
	}

	if err := os.WriteFile(*outFile, img.Bytes, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: writing %s: %s\n", *outFile, err.Error())
		returnCode = ExitInitError
		return
	}

	fmt.Printf("wrote %s: %d rule(s), %d udt(s), %d opcode(s), %d byte(s)\n",
		*outFile, img.Header.RuleCount, img.Header.UdtCount, img.Header.OpcodeCount, len(img.Bytes))
}

// compile runs session through every pipeline stage over the bundled demo
// grammar (spec §2 "Validate -> Translate -> Analyze -> BuildPPPT -> Emit").
func compile(session *apg.Session) (*emit.Image, error) {
	producer := demogrammar.Build()

	if _, ok, err := session.Validate(demogrammar.Source()); !ok {
		return nil, err
	}
	if _, ok, err := session.Translate(producer); !ok {
		return nil, err
	}
	if _, ok, err := session.Analyze(); !ok {
		return nil, err
	}
	if _, ok, err := session.BuildPPPT(); !ok {
		return nil, err
	}
	return session.Emit()
}

func reportDiagnostics(session *apg.Session) {
	for _, e := range session.Log().Entries() {
		fmt.Fprintln(os.Stderr, wrapDiagnostic(e.FullMessage()))
	}
}

func wrapDiagnostic(s string) string {
	return rosed.Edit(s).Wrap(diagnosticWrapWidth).String()
}
