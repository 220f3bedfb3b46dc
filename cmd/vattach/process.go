package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Vetrenar/v-Attachments/internal/core"
)

func runProcess(args []string) error {
	fs := flag.NewFlagSet("process", flag.ContinueOnError)
	vault := fs.String("vault", ".", "vault root directory")
	format := fs.String("format", "text", "output format (json or text)")
	note := fs.String("note", "", "note path (vault-relative)")
	oldName := fs.String("old-name", "", "previous note basename to strip from attachment names")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validateFormat(*format); err != nil {
		return err
	}
	if *note == "" {
		return fmt.Errorf("--note is required")
	}

	cfg, err := core.LoadConfig(*vault)
	if err != nil {
		return err
	}
	if !core.InScope(cfg, *note) {
		return fmt.Errorf("note is out of scope: %s", *note)
	}

	host := core.NewVault(*vault)
	renamed := core.NewEngine(host, cfg).ProcessNote(*note, *oldName)

	if *format == "json" {
		return printJSON(os.Stdout, map[string]any{"note": core.NormalizePath(*note), "renamed": renamed})
	}
	fmt.Printf("renamed %d attachment(s)\n", renamed)
	return nil
}
