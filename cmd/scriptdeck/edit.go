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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	cli "github.com/urfave/cli/v3"

	"scriptdeck/internal/crash"
	"scriptdeck/internal/deck"
	"scriptdeck/internal/script"
	"scriptdeck/internal/session"
)

const editorHelp = `commands:
  show                      print the script
  scenes                    list scenes
  scene N FIELD VALUE       set one field of scene N (\n in VALUE breaks the line)
  text                      replace the script, read until a line with a single "."
  title TEXT                rename the project
  story TEXT                replace the story
  generate                  regenerate the script from the story and save
  undo | redo               step through changes
  status                    scene count, undo depth and unsaved state
  save                      save the project
  reload                    discard unsaved changes and reread the project
  export [DIR]              write the deck
  quit                      leave, unsaved changes are discarded
`

func editCmd(target *crash.Target) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit a saved project interactively; commands are read from stdin ('help' lists them)",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "deck output directory for export (default: deck.output_dir)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return errors.New("project id is required")
			}
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			var gen session.Generator
			if g, err := a.generator(); err == nil {
				gen = g
			} else {
				a.log.Debug("generation unavailable in editor", slog.Any("err", err))
			}
			opts, err := a.sessionOptions(ctx, gen)
			if err != nil {
				return err
			}
			s, err := session.Open(ctx, id, opts)
			if err != nil {
				return err
			}
			a.guard(target, s)

			r := cmd.Root().Reader
			if r == nil {
				r = os.Stdin
			}
			in := bufio.NewScanner(r)
			in.Buffer(make([]byte, 64*1024), 4*1024*1024)
			e := &editor{a: a, s: s, in: in, w: out(cmd), outDir: a.outDir(cmd.String("out"))}
			return e.run(ctx)
		},
	}
}

// editor runs line commands against one session.
type editor struct {
	a      *app
	s      *session.Session
	in     *bufio.Scanner
	w      io.Writer
	outDir string
}

func (e *editor) run(ctx context.Context) error {
	p := e.s.Project()
	fmt.Fprintf(e.w, "editing %s %q (%d scenes)\n", p.ID, p.Title, len(p.Scenes))
	for e.in.Scan() {
		line := strings.TrimSpace(e.in.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		verb, rest, _ := strings.Cut(line, " ")
		quit, err := e.exec(ctx, strings.ToLower(verb), strings.TrimSpace(rest))
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Fprintf(e.w, "error: %s\n", describe(err))
			continue
		}
		if quit {
			return nil
		}
	}
	if err := e.in.Err(); err != nil {
		return err
	}
	e.leave()
	return nil
}

func (e *editor) exec(ctx context.Context, verb, rest string) (quit bool, err error) {
	switch verb {
	case "help", "?":
		fmt.Fprint(e.w, editorHelp)
	case "show":
		if t := e.s.Text(); t != "" {
			fmt.Fprint(e.w, t)
		} else {
			fmt.Fprintln(e.w, "(empty script)")
		}
	case "scenes":
		for _, sc := range e.s.Scenes() {
			fmt.Fprintf(e.w, "%d. %s | %s\n", sc.Number, deck.Truncate(firstLine(sc.Description), 30), deck.Truncate(firstLine(sc.Dialogue), 30))
		}
	case "scene":
		if err := e.setField(rest); err != nil {
			return false, err
		}
		e.status()
	case "text":
		e.s.EditText(e.readBlock())
		e.status()
	case "title", "story":
		if rest == "" {
			return false, fmt.Errorf("%s needs a value", verb)
		}
		if verb == "title" {
			e.s.SetTitle(rest)
		} else {
			e.s.SetStory(rest)
		}
		e.status()
	case "generate":
		if err := e.s.Generate(ctx); err != nil {
			return false, err
		}
		e.a.tel.Track("script_generated", map[string]any{"scenes": len(e.s.Scenes()), "provider": e.a.cfg.LLM.Provider})
		e.status()
	case "undo":
		if !e.s.Undo() {
			fmt.Fprintln(e.w, "nothing to undo")
			return false, nil
		}
		e.status()
	case "redo":
		if !e.s.Redo() {
			fmt.Fprintln(e.w, "nothing to redo")
			return false, nil
		}
		e.status()
	case "status":
		e.status()
	case "save":
		if err := e.s.Save(ctx); err != nil {
			return false, err
		}
		fmt.Fprintf(e.w, "saved %s\n", e.s.Project().ID)
	case "reload":
		if err := e.s.Reload(ctx); err != nil {
			return false, err
		}
		e.status()
	case "export":
		dir := e.outDir
		if rest != "" {
			dir = rest
		}
		path, err := e.s.ExportDeck(dir, time.Now())
		if err != nil {
			return false, err
		}
		e.a.tel.Track("deck_exported", map[string]any{"scenes": len(e.s.Scenes())})
		fmt.Fprintln(e.w, path)
	case "quit", "exit", "q":
		e.leave()
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q (try help)", verb)
	}
	return false, nil
}

// setField handles "N FIELD VALUE". FIELD is a scene key or a label of the active schema.
func (e *editor) setField(args string) error {
	parts := strings.SplitN(args, " ", 3)
	if len(parts) < 3 {
		return errors.New("usage: scene N FIELD VALUE")
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return fmt.Errorf("scene number %q: %w", parts[0], err)
	}
	scenes := e.s.Scenes()
	if n < 1 || n > len(scenes) {
		return fmt.Errorf("%w: %d of %d", session.ErrSceneIndex, n, len(scenes))
	}
	f, ok := fieldByName(e.a.schema, parts[1])
	if !ok {
		return fmt.Errorf("unknown field %q", parts[1])
	}
	sc := scenes[n-1]
	sc.Set(f, strings.ReplaceAll(strings.TrimSpace(parts[2]), `\n`, "\n"))
	return e.s.ReplaceScene(n-1, sc)
}

// readBlock collects lines up to a lone "." or end of input.
func (e *editor) readBlock() string {
	var b strings.Builder
	for e.in.Scan() {
		line := e.in.Text()
		if strings.TrimSpace(line) == "." {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (e *editor) status() {
	u, r := e.s.UndoDepth()
	state := ""
	if e.s.Dirty() {
		state = ", unsaved"
	}
	fmt.Fprintf(e.w, "%d scenes, undo %d, redo %d%s\n", len(e.s.Scenes()), u, r, state)
}

func (e *editor) leave() {
	if e.s.Dirty() {
		fmt.Fprintln(e.w, "unsaved changes discarded")
	}
}

func fieldByName(schema *script.Schema, name string) (script.Field, bool) {
	for _, f := range script.Fields {
		if strings.EqualFold(f.String(), name) {
			return f, true
		}
	}
	return schema.Lookup(name)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
