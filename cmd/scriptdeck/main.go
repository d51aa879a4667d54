/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"

	"scriptdeck/internal/crash"
	"scriptdeck/internal/deck"
	"scriptdeck/internal/llm"
)

func main() {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	target := &crash.Target{}
	defer crash.Recover(target)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(target).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", describe(err))
		stop()
		os.Exit(1)
	}
}

// describe puts the actionable hint of an upstream failure first.
func describe(err error) string {
	var ue *llm.UpstreamError
	if errors.As(err, &ue) {
		return fmt.Sprintf("%s [%s]", ue.Error(), ue.Kind)
	}
	if deck.IsStructureError(err) {
		return "slide outline rejected, no deck written: " + err.Error()
	}
	return err.Error()
}

func newApp(target *crash.Target) *cli.Command {
	return &cli.Command{
		Name:  "scriptdeck",
		Usage: "Turn stories into video scripts and slide decks",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "config file (default: user config dir)"},
			&cli.StringFlag{Name: "lang", Usage: "script language: zh or en (overrides deck.language)"},
			&cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics on this address, e.g. :9090"},
		},
		Commands: []*cli.Command{
			generateCmd(target),
			parseCmd(),
			formatCmd(),
			exportCmd(target),
			editCmd(target),
			projectCmd(target),
			historyCmd(target),
			configCmd(),
			versionCmd(),
		},
	}
}
