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
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	cli "github.com/urfave/cli/v3"

	"scriptdeck/internal/config"
	"scriptdeck/internal/crash"
	"scriptdeck/internal/deck"
	"scriptdeck/internal/llm"
	applog "scriptdeck/internal/log"
	"scriptdeck/internal/script"
	"scriptdeck/internal/session"
	"scriptdeck/internal/storage"
	"scriptdeck/internal/telemetry"
)

// app holds what every command needs once config is loaded.
type app struct {
	cfg     config.AppConfig
	apiKey  string
	schema  *script.Schema
	log     *slog.Logger
	tel     *telemetry.Client
	closers []func() error
}

// loadApp reads config, initializes logging and starts the optional metrics listener.
func loadApp(cmd *cli.Command) (*app, error) {
	var (
		cfg    config.AppConfig
		apiKey string
		err    error
	)
	if p := cmd.String("config"); p != "" {
		cfg, apiKey, err = config.LoadFrom(p)
	} else {
		cfg, apiKey, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	a := &app{
		cfg:    cfg,
		apiKey: apiKey,
		log:    applog.WithComponent("cli"),
		tel:    telemetry.Default(),
	}
	lang := cfg.Deck.Language
	if l := cmd.String("lang"); l != "" {
		lang = l
	}
	a.schema = schemaFor(lang)

	addr := cmd.String("metrics-addr")
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		a.serveMetrics(addr)
	}
	return a, nil
}

func schemaFor(lang string) *script.Schema {
	if strings.EqualFold(strings.TrimSpace(lang), "en") {
		return script.English
	}
	return script.Default
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("metrics listener failed", slog.String("addr", addr), slog.Any("err", err))
		}
	}()
	a.log.Info("serving metrics", slog.String("addr", addr))
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	})
}

// close releases stores and listeners and gives telemetry a moment to drain.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", slog.Any("err", err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	a.tel.Flush(ctx)
}

// store opens the configured project store.
func (a *app) store(ctx context.Context) (storage.Store, error) {
	switch strings.ToLower(a.cfg.Storage.Driver) {
	case "", "file":
		return storage.NewFileStore(a.cfg.Storage.DataDir, a.cfg.Storage.MaxBackups)
	case "postgres":
		pg, err := storage.OpenPG(ctx, a.cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pg.Close)
		return pg, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}
}

func (a *app) history() (*storage.History, error) {
	h, err := storage.OpenHistory(a.cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, h.Close)
	return h, nil
}

func (a *app) writer() deck.Writer { return deck.PDFWriter{FontFile: a.cfg.Deck.FontFile} }

// sessionOptions wires storage, history and the deck writer. gen may be nil.
func (a *app) sessionOptions(ctx context.Context, gen session.Generator) (session.Options, error) {
	st, err := a.store(ctx)
	if err != nil {
		return session.Options{}, err
	}
	h, err := a.history()
	if err != nil {
		// History is derived data; work without it.
		a.log.Warn("history unavailable", slog.Any("err", err))
		h = nil
	}
	return session.Options{
		Schema:      a.schema,
		Generator:   gen,
		Store:       st,
		History:     h,
		HistoryKeep: a.cfg.Storage.HistoryKeep,
		Writer:      a.writer(),
	}, nil
}

func (a *app) generator() (*llm.Client, error) {
	return llm.New(llm.FromAppConfig(a.cfg.LLM, a.apiKey), nil, llm.WithSchema(a.schema))
}

// guard points the crash handler at s.
func (a *app) guard(target *crash.Target, s *session.Session) {
	target.DataDir = a.cfg.Storage.DataDir
	target.Project = s.Project
}

func (a *app) outDir(flag string) string {
	if flag != "" {
		return flag
	}
	return a.cfg.Deck.OutputDir
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cli.Command, path string) (string, error) {
	if path == "-" {
		r := cmd.Root().Reader
		if r == nil {
			r = os.Stdin
		}
		b, err := io.ReadAll(r)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func out(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}
