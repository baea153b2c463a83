/*************************************************************************
 * Copyright 2024 tacd authors. All rights reserved.
 * Contact: <oss@tacplusng.example>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command tacd wires a loaded configuration into the realm tree, the
// log-destination set, and the MAVIS orchestrator, and runs until signaled.
//
// The TACACS+ wire codec, the AAA decision engine, and the MAVIS transport
// itself are all explicitly out of scope (spec.md §1); this entry point
// assembles everything that IS in scope and leaves Orchestrator.Backend /
// .Parser nil, ready for a transport layer to supply later. Grounded on
// ingesters/SimpleRelay/main.go's mainInit shape (flag parsing, logger
// construction, config validation, signal-driven shutdown).
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tacplusng/tacd/config"
	"github.com/tacplusng/tacd/internal/mavis"
	"github.com/tacplusng/tacd/oplog"
)

const defaultConfigLoc = `/opt/tacd/etc/tacd.conf`

var (
	confLoc = flag.String("config-file", defaultConfigLoc, "Location for configuration file")
	logFile = flag.String("log-file", "", "Operational log file (default stderr)")
	ver     = flag.Bool("version", false, "Print the version information and exit")
)

const appVersion = "0.1.0-dev"

func main() {
	flag.Parse()
	if *ver {
		fmt.Println("tacd", appVersion)
		os.Exit(0)
	}

	f, err := config.LoadFile(*confLoc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load %q: %v\n", *confLoc, err)
		os.Exit(1)
	}

	override := *logFile
	if override == "" {
		override = f.Daemon.Log_File
	}

	lg, err := oplog.NewStderrLogger(override)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start operational logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Close()
	lg.SetAppname("tacd")
	if f.Daemon.Log_Level != "" {
		if err := lg.SetLevelString(f.Daemon.Log_Level); err != nil {
			lg.Warnf("invalid log-level %q, leaving default: %v", f.Daemon.Log_Level, err)
		}
	}

	oplog.PrintOSInfo(lg)

	tree, err := config.Build(f)
	if err != nil {
		lg.Fatal("failed to build configuration tree", oplog.KVErr(err))
	}
	lg.Info("configuration loaded",
		oplog.KV("realms", len(tree.Realms)),
		oplog.KV("destinations", len(tree.Destinations)),
		oplog.KV("path", *confLoc))

	// Every MAVIS diagnostic carries component=mavis so operators can grep
	// one field out of the shared operational log instead of the message
	// text.
	mavisLog := oplog.NewLoggerWithKV(lg, oplog.KV("component", "mavis"))

	// Backend and Parser are left nil: the MAVIS transport and the profile
	// parser/tokenizer are out-of-scope capability interfaces (spec.md §1)
	// that a caller-supplied transport layer wires in.
	_ = mavis.New(nil, nil, mavisLogger{mavisLog})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	sig := <-sigCh
	lg.Infof("received signal %v, shutting down", sig)
}

// mavisLogger adapts oplog.KVLogger's structured Error (which takes
// SDParams and returns an error) to mavis.Logger's printf-style, no-return
// signature.
type mavisLogger struct {
	l *oplog.KVLogger
}

func (m mavisLogger) Errorf(format string, args ...any) {
	_ = m.l.Error(fmt.Sprintf(format, args...))
}
