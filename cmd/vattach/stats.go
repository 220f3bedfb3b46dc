package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Vetrenar/v-Attachments/internal/core"
)

func runStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	vault := fs.String("vault", ".", "vault root directory")
	format := fs.String("format", "text", "output format (json or text)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validateFormat(*format); err != nil {
		return err
	}
	stats, err := core.Stats(*vault)
	if err != nil {
		return err
	}
	if *format == "json" {
		return printJSON(os.Stdout, stats)
	}
	fmt.Printf("notes: %d\nassets: %d\nrefs: %d\n", stats.Notes, stats.Assets, stats.Refs)
	return nil
}
