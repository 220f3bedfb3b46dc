package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Vetrenar/v-Attachments/internal/core"
)

// watch runs the daemon: filesystem events feed the debounce scheduler,
// which drives reconciliation passes. Per-file diagnostics go to a
// rotating log under .vattach/ so batch noise never reaches the terminal.
func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	vault := fs.String("vault", ".", "vault root directory")
	quiet := fs.Bool("quiet", false, "suppress startup output")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := core.LoadConfig(*vault)
	if err != nil {
		return err
	}
	if _, err := core.Stats(*vault); err != nil {
		return err // index missing
	}

	logger := log.New(&lumberjack.Logger{
		Filename:   filepath.Join(*vault, ".vattach", "vattach.log"),
		MaxSize:    5, // MB
		MaxBackups: 2,
	}, "", log.LstdFlags)

	host := core.NewVault(*vault)
	engine := core.NewEngine(host, cfg)
	engine.SetLogger(logger.Printf)
	sched := core.NewScheduler(engine, cfg)
	sched.SetLogger(logger.Printf)

	watcher, err := core.NewWatcher(*vault, sched)
	if err != nil {
		return err
	}
	watcher.SetLogger(logger.Printf)
	if err := watcher.Start(); err != nil {
		return err
	}

	if !*quiet {
		fmt.Printf("watching %s (auto_rename=%v, debounce=%dms)\n", *vault, *cfg.AutoRename, *cfg.DebounceDelayMs)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	sched.Close()
	return watcher.Stop()
}
