package cli

import (
	"fmt"
	"io"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Inspect *InspectCommand
	Run     *RunCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string, out io.Writer) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.HelpFlag|goflags.PassDoubleDash)
	parser.Name = "dashcli"
	parser.LongDescription = "Offline filter, aggregate and export of CSV and XLSX dashboard data."

	env := &environment{globals: &globals, version: version, out: out}
	cmds := &commands{
		Inspect: &InspectCommand{env: env},
		Run:     &RunCommand{env: env},
	}

	parser.AddCommand("inspect", "Describe a data file", "Load a data file and print its profile, columns and filter controls as JSON.", cmds.Inspect)
	parser.AddCommand("run", "Filter and aggregate a data file", "Apply filters to a data file, print the resulting view as JSON and optionally write the narrowed table.", cmds.Run)

	return parser, &globals, cmds
}

// Run is the main entry point for the dashcli CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, os.Args[1:], os.Stdout)
}

// RunWithArgs parses args and executes the matched subcommand, writing
// results to out.
func RunWithArgs(version string, args []string, out io.Writer) error {
	// go-flags requires a subcommand, --version is valid without one.
	for _, arg := range args {
		if arg == "--version" {
			fmt.Fprintf(out, "dashcli %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version, out)
	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok && flagsErr.Type == goflags.ErrHelp {
			fmt.Fprintln(out, flagsErr.Message)
			return nil
		}
		return err
	}
	return nil
}
