package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "build":
		err = runBuild(os.Args[2:])
	case "mv":
		err = runMv(os.Args[2:])
	case "process":
		err = runProcess(os.Args[2:])
	case "all":
		err = runAll(os.Args[2:])
	case "watch":
		err = runWatch(os.Args[2:])
	case "stats":
		err = runStats(os.Args[2:])
	case "--version":
		printVersion(os.Stdout)
		return
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion(w io.Writer) {
	v := version
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v = info.Main.Version
		}
	}
	fmt.Fprintf(w, "vattach version %s\n", v)
}

func printUsage() {
	fmt.Fprint(os.Stderr, `Usage: vattach <command> [options]

Commands:
  build      Build the vault index
  mv         Rename/move a note, rewriting links, then rename its attachments
  process    Rename the attachments of one note now
  all        Rename the attachments of every in-scope note
  watch      Watch the vault and rename attachments after note renames
  stats      Show index statistics

Run 'vattach <command> --help' for command-specific help.
Use 'vattach --version' for version information.
`)
}
