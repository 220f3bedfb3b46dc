package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Vetrenar/v-Attachments/internal/core"
)

func runAll(args []string) error {
	fs := flag.NewFlagSet("all", flag.ContinueOnError)
	vault := fs.String("vault", ".", "vault root directory")
	format := fs.String("format", "text", "output format (json or text)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := validateFormat(*format); err != nil {
		return err
	}

	cfg, err := core.LoadConfig(*vault)
	if err != nil {
		return err
	}
	host := core.NewVault(*vault)
	res, err := core.ProcessAll(core.NewEngine(host, cfg), cfg, host)
	if err != nil {
		return err
	}

	if *format == "json" {
		return printJSON(os.Stdout, res)
	}
	if res.Notes == 0 {
		fmt.Println("no notes in scope")
		return nil
	}
	fmt.Printf("processed %d note(s), renamed %d attachment(s)\n", res.Notes, res.Renamed)
	return nil
}
