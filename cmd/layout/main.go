// main.go: layout command entry point
//
// Global settings flags come before the command:
//
//	layout --definitions ./layouts --audit --audit-file audit.db discover data.txt
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"strings"

	layout "github.com/imsweb/layout-sub000"
	"github.com/imsweb/layout-sub000/cmd/cli"
	"go.uber.org/zap"
)

var commands = map[string]bool{
	"layout": true, "discover": true, "record": true, "audit": true, "info": true,
	"help": true, "--help": true, "-h": true, "--version": true, "version": true,
}

// splitArgs separates the leading settings flags from the command line.
func splitArgs(args []string) (global, command []string) {
	for i, arg := range args {
		if commands[arg] || !strings.HasPrefix(arg, "-") && (i == 0 || !expectsValue(args[i-1])) {
			return args[:i], args[i:]
		}
	}
	return args, nil
}

// expectsValue reports whether flag takes a separate value argument.
func expectsValue(flag string) bool {
	if strings.Contains(flag, "=") {
		return false
	}
	switch strings.TrimLeft(flag, "-") {
	case layout.FlagDefinitions, layout.FlagAuditFile, layout.FlagAuditFlushInterval, layout.FlagLogLevel:
		return true
	}
	return false
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	global, command := splitArgs(args)

	settings, err := layout.LoadSettings(global)
	if err != nil {
		layout.NewSettingsFlagSet("layout").PrintHelp()
		return err
	}

	logger, err := layout.NewLogger(settings.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	opts := []layout.Option{layout.WithLogger(logger)}
	var auditLogger *layout.AuditLogger
	if settings.AuditEnabled {
		auditLogger, err = layout.NewAuditLogger(settings.AuditConfig())
		if err != nil {
			return err
		}
		defer func() {
			if err := auditLogger.Close(); err != nil {
				logger.Warn("failed to close audit trail", zap.Error(err))
			}
		}()
		opts = append(opts, layout.WithAudit(auditLogger))
	}

	registry := layout.NewRegistry(opts...)
	if settings.DefinitionsDir != "" {
		ids, err := registry.LoadDefinitionsDir(settings.DefinitionsDir)
		if err != nil {
			return err
		}
		logger.Info("layout definitions loaded",
			zap.String("dir", settings.DefinitionsDir), zap.Strings("layouts", ids))
	}

	manager := cli.NewManager().
		WithRegistry(registry).
		WithAudit(auditLogger).
		WithSettings(settings)
	return manager.Run(command)
}
