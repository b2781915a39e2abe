// Package cmdline dispatches subcommands of a multi-command binary, with
// per-command flag parsing via go-arg.
package cmdline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	arg "github.com/alexflint/go-arg"
)

// Command is one subcommand of the binary.
type Command struct {
	Name     string
	Synopsis string
	Args     Handler
}

// Handler is the action invoked after the command's flags are parsed into
// its Args struct.
type Handler interface {
	Handle() error
}

// Validator may be implemented by an Args struct to reject bad flag
// combinations before Handle runs.
type Validator interface {
	Validate() error
}

func prog() string {
	if len(os.Args) > 0 {
		return filepath.Base(os.Args[0])
	}
	return "program"
}

func usage(w io.Writer, cmds []Command) {
	fmt.Fprintf(w, "Usage: %s COMMAND [ARGS]\n\nCommands:\n", prog())
	for _, cmd := range cmds {
		fmt.Fprintf(w, "  %-16s %s\n", cmd.Name, cmd.Synopsis)
	}
	fmt.Fprintf(w, "  %-16s %s\n", "help [COMMAND]", "show help and exit")
}

func find(name string, cmds []Command) *Command {
	for i := range cmds {
		if cmds[i].Name == name {
			return &cmds[i]
		}
	}
	return nil
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

// MustDispatch parses os.Args, selects the matching command, parses its
// flags, and runs its handler. It exits the process on any error.
func MustDispatch(cmds ...Command) {
	if len(os.Args) < 2 {
		usage(os.Stderr, cmds)
		fail("\nno command provided")
	}

	name := os.Args[1]
	rest := os.Args[2:]

	var helpOnly bool
	if name == "help" {
		if len(rest) == 0 {
			usage(os.Stdout, cmds)
			os.Exit(0)
		}
		helpOnly = true
		name = rest[0]
	}

	cmd := find(name, cmds)
	if cmd == nil {
		usage(os.Stderr, cmds)
		fail("\nunknown command %q", name)
	}

	parser, err := arg.NewParser(arg.Config{Program: prog() + " " + cmd.Name}, cmd.Args)
	if err != nil {
		fail("%v", err)
	}

	if helpOnly {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}

	if err := parser.Parse(rest); err != nil {
		parser.Fail(err.Error())
	}
	if v, ok := cmd.Args.(Validator); ok {
		if err := v.Validate(); err != nil {
			parser.Fail(err.Error())
		}
	}

	if err := cmd.Args.Handle(); err != nil {
		fail("%s: %v", cmd.Name, err)
	}
}
