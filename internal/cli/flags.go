package cli

import "io"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	LogLevel string `long:"log-level" description:"Log level written to stderr" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"warn"`
	Version  bool   `long:"version" description:"Show version and exit"`
}

// environment is shared by every subcommand.
type environment struct {
	globals *GlobalFlags
	version string
	out     io.Writer
}

// InputFlags select the file to load and how to interpret it.
type InputFlags struct {
	File    string `long:"file" short:"f" description:"CSV or XLSX file to load" required:"true"`
	Profile string `long:"profile" short:"p" description:"Dataset profile, detected from the columns when empty"`
}

// InspectCommand prints the description of a file.
type InspectCommand struct {
	InputFlags

	env *environment
}

// RunCommand evaluates filters against a file.
type RunCommand struct {
	InputFlags
	Ranges     []string `long:"range" description:"Inclusive range filter column=lo:hi, either bound may be empty (repeatable)"`
	Categories []string `long:"in" description:"Category filter column=a,b with values trimmed; column= keeps nothing (repeatable)"`
	Values     []string `long:"is" description:"Category value column=value taken verbatim, commas and spaces included (repeatable)"`
	Selections []string `long:"select" description:"Single-select choice section=value (repeatable)"`
	TopN       int      `long:"top" description:"Top-N size for ranked sections, 0 uses the default"`
	Offset     int      `long:"offset" description:"First row of the printed row page"`
	Limit      int      `long:"limit" description:"Rows in the printed row page, 0 uses the default"`
	Out        string   `long:"out" short:"o" description:"Write the narrowed table to this path"`
	Format     string   `long:"format" description:"Export format" choice:"csv" choice:"parquet" default:"csv"`
	Gzip       bool     `long:"gzip" description:"Gzip the export"`

	env *environment
}
