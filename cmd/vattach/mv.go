package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Vetrenar/v-Attachments/internal/core"
)

// nameOf returns the basename without extension.
func nameOf(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// mv renames a note, rewriting every link that points at it, then runs one
// reconciliation pass so the note's attachments follow the new name.
func runMv(args []string) error {
	fs := flag.NewFlagSet("mv", flag.ContinueOnError)
	vault := fs.String("vault", ".", "vault root directory")
	format := fs.String("format", "text", "output format (json or text)")
	from := fs.String("from", "", "source note path (vault-relative)")
	to := fs.String("to", "", "destination note path (vault-relative)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validateFormat(*format); err != nil {
		return err
	}
	if *from == "" {
		return fmt.Errorf("--from is required")
	}
	if *to == "" {
		return fmt.Errorf("--to is required")
	}

	moved, err := core.MoveFile(*vault, *from, *to)
	if err != nil {
		return err
	}

	cfg, err := core.LoadConfig(*vault)
	if err != nil {
		return err
	}
	normTo := core.NormalizePath(*to)
	normFrom := core.NormalizePath(*from)
	renamed := 0
	if core.InScope(cfg, normTo) {
		host := core.NewVault(*vault)
		oldName := ""
		if nameOf(normFrom) != nameOf(normTo) {
			oldName = nameOf(normFrom)
		}
		renamed = core.NewEngine(host, cfg).ProcessNote(normTo, oldName)
	}

	if *format == "json" {
		return printJSON(os.Stdout, map[string]any{
			"from":      normFrom,
			"to":        normTo,
			"rewritten": moved.Rewritten,
			"renamed":   renamed,
		})
	}
	fmt.Printf("moved %s -> %s\n", normFrom, normTo)
	for _, rw := range moved.Rewritten {
		fmt.Printf("  %s: %s -> %s\n", rw.File, rw.OldLink, rw.NewLink)
	}
	fmt.Printf("renamed %d attachment(s)\n", renamed)
	return nil
}
