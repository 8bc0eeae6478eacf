package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/common-nighthawk/go-figure"
	"github.com/jessevdk/go-flags"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stdin); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args and executes the selected command.
func run(args []string, out io.Writer, in io.Reader) error {
	opts := &Options{}
	opts.Init(commandName(args))

	cliMu.Lock()
	cliOpt, cliOut, cliIn = opts, out, in
	cliMu.Unlock()

	parser := flags.NewParser(opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "adminctl"
	if len(args) == 0 {
		displayAppname(out, "adminctl")
		parser.WriteHelp(out)
		return nil
	}
	_, err := parser.ParseArgs(args)
	if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
		fmt.Fprintln(out, flagsErr.Message)
	}
	return err
}

// commandName returns the first argument that is neither a flag nor the value of -f.
func commandName(args []string) string {
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "-f" || arg == "--config":
			i++
		case strings.HasPrefix(arg, "-"):
		default:
			return arg
		}
	}
	return ""
}

func displayAppname(out io.Writer, appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	fmt.Fprintln(out, myFigure.String())
}
