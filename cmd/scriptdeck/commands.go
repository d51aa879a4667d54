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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	cli "github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"scriptdeck/internal/bundle"
	"scriptdeck/internal/config"
	"scriptdeck/internal/crash"
	"scriptdeck/internal/deck"
	"scriptdeck/internal/script"
	"scriptdeck/internal/session"
	"scriptdeck/internal/storage"
	"scriptdeck/internal/version"
)

func generateCmd(target *crash.Target) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a video script for a story and save it as a project",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "project title"},
			&cli.StringFlag{Name: "story", Usage: "story text"},
			&cli.StringFlag{Name: "story-file", Aliases: []string{"f"}, Usage: "read the story from a file, '-' for stdin"},
			&cli.BoolFlag{Name: "export", Usage: "also export the deck"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "deck output directory (default: deck.output_dir)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			title := strings.TrimSpace(cmd.String("title"))
			story := cmd.String("story")
			if f := cmd.String("story-file"); f != "" {
				s, err := readInput(cmd, f)
				if err != nil {
					return fmt.Errorf("read story: %w", err)
				}
				story = s
			}
			if title == "" {
				return session.ErrMissingTitle
			}
			if strings.TrimSpace(story) == "" {
				return session.ErrMissingStory
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			gen, err := a.generator()
			if err != nil {
				return err
			}
			opts, err := a.sessionOptions(ctx, gen)
			if err != nil {
				return err
			}
			s := session.New(title, story, opts)
			a.guard(target, s)
			if err := s.Generate(ctx); err != nil {
				return err
			}
			p := s.Project()
			fmt.Fprint(out(cmd), s.Text())
			fmt.Fprintf(os.Stderr, "saved project %s (%d scenes)\n", p.ID, len(p.Scenes))
			a.tel.Track("script_generated", map[string]any{"scenes": len(p.Scenes), "provider": a.cfg.LLM.Provider})

			if cmd.Bool("export") {
				path, err := s.ExportDeck(a.outDir(cmd.String("out")), time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "deck written to %s\n", path)
				a.tel.Track("deck_exported", map[string]any{"scenes": len(p.Scenes)})
			}
			return nil
		},
	}
}

func parseCmd() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse raw script text into scenes (JSON)",
		ArgsUsage: "<file|->",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "text", Usage: "print the canonical script text instead of JSON"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			src := cmd.Args().First()
			if src == "" {
				src = "-"
			}
			text, err := readInput(cmd, src)
			if err != nil {
				return fmt.Errorf("read script: %w", err)
			}
			doc := a.schema.Parse(text)
			if cmd.Bool("text") {
				fmt.Fprint(out(cmd), a.schema.Format(doc.Scenes))
				return nil
			}
			enc := json.NewEncoder(out(cmd))
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(doc.Scenes)
		},
	}
}

func formatCmd() *cli.Command {
	return &cli.Command{
		Name:      "format",
		Usage:     "Format a JSON scene list as script text",
		ArgsUsage: "<file|->",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			src := cmd.Args().First()
			if src == "" {
				src = "-"
			}
			data, err := readInput(cmd, src)
			if err != nil {
				return fmt.Errorf("read scenes: %w", err)
			}
			var scenes []script.Scene
			if err := json.Unmarshal([]byte(data), &scenes); err != nil {
				return fmt.Errorf("decode scenes: %w", err)
			}
			for i := range scenes {
				scenes[i] = a.schema.Normalize(scenes[i])
			}
			fmt.Fprint(out(cmd), a.schema.Format(script.Renumber(scenes)))
			return nil
		},
	}
}

func exportCmd(target *crash.Target) *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Export a deck from a saved project, a script file or a slide outline",
		ArgsUsage: "[project-id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "script", Usage: "script text file, '-' for stdin"},
			&cli.StringFlag{Name: "structure", Usage: "JSON slide outline file"},
			&cli.StringFlag{Name: "title", Usage: "deck title for --script"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output directory (default: deck.output_dir)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			dir := a.outDir(cmd.String("out"))
			m := deck.NewMapper(deck.LabelsFor(a.schema))
			now := time.Now()

			var path string
			switch id := cmd.Args().First(); {
			case cmd.String("structure") != "":
				data, err := os.ReadFile(cmd.String("structure"))
				if err != nil {
					return fmt.Errorf("read outline: %w", err)
				}
				st, err := deck.ParseStructure(data)
				if err != nil {
					return err
				}
				path, err = deck.ExportStructure(a.writer(), m, dir, st, now)
				if err != nil {
					return err
				}
			case cmd.String("script") != "":
				text, err := readInput(cmd, cmd.String("script"))
				if err != nil {
					return fmt.Errorf("read script: %w", err)
				}
				doc := a.schema.Parse(text)
				path, err = deck.ExportScenes(a.writer(), m, dir, cmd.String("title"), doc.Scenes, now)
				if err != nil {
					return err
				}
			case id != "":
				opts, err := a.sessionOptions(ctx, nil)
				if err != nil {
					return err
				}
				s, err := session.Open(ctx, id, opts)
				if err != nil {
					return err
				}
				a.guard(target, s)
				path, err = s.ExportDeck(dir, now)
				if err != nil {
					return err
				}
			default:
				return errors.New("export needs a project id, --script or --structure")
			}
			fmt.Fprintln(out(cmd), path)
			a.tel.Track("deck_exported", nil)
			return nil
		},
	}
}

func projectCmd(target *crash.Target) *cli.Command {
	return &cli.Command{
		Name:  "project",
		Usage: "Manage saved projects",
		Commands: []*cli.Command{
			projectEditCmd(target),
			projectGenerateCmd(target),
			{
				Name:  "list",
				Usage: "List projects, most recent first",
				Action: withStore(func(ctx context.Context, cmd *cli.Command, a *app, st storage.Store) error {
					ps, err := st.List(ctx)
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tMODIFIED\tSCENES\tTITLE")
					for _, p := range ps {
						fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", p.ID, p.LastModified.Local().Format("2006-01-02 15:04"), len(p.Scenes), p.Title)
					}
					return tw.Flush()
				}),
			},
			{
				Name:      "show",
				Usage:     "Print a project and its script",
				ArgsUsage: "<id>",
				Action: withStore(func(ctx context.Context, cmd *cli.Command, a *app, st storage.Store) error {
					p, err := st.Get(ctx, cmd.Args().First())
					if err != nil {
						return err
					}
					w := out(cmd)
					fmt.Fprintf(w, "ID:       %s\nTitle:    %s\nModified: %s\nScenes:   %d\n\n", p.ID, p.Title, p.LastModified.Local().Format(time.RFC3339), len(p.Scenes))
					fmt.Fprint(w, p.Script)
					return nil
				}),
			},
			{
				Name:      "delete",
				Usage:     "Delete a project and its history",
				ArgsUsage: "<id>",
				Action: withStore(func(ctx context.Context, cmd *cli.Command, a *app, st storage.Store) error {
					id := cmd.Args().First()
					if err := st.Delete(ctx, id); err != nil {
						return err
					}
					if h, err := a.history(); err == nil {
						_ = h.Forget(ctx, id)
					}
					fmt.Fprintf(out(cmd), "deleted %s\n", id)
					return nil
				}),
			},
			{
				Name:      "export",
				Usage:     "Write all projects to a zip bundle",
				ArgsUsage: "<file.zip>",
				Action: withStore(func(ctx context.Context, cmd *cli.Command, a *app, st storage.Store) error {
					dest := cmd.Args().First()
					if dest == "" {
						return errors.New("bundle path is required")
					}
					f, err := os.Create(dest)
					if err != nil {
						return err
					}
					n, err := bundle.Export(ctx, st, f)
					if cerr := f.Close(); err == nil {
						err = cerr
					}
					if err != nil {
						_ = os.Remove(dest)
						return err
					}
					fmt.Fprintf(out(cmd), "exported %d projects to %s\n", n, dest)
					return nil
				}),
			},
			{
				Name:      "import",
				Usage:     "Install projects from a zip bundle, skipping ids that already exist",
				ArgsUsage: "<file.zip>",
				Action: withStore(func(ctx context.Context, cmd *cli.Command, a *app, st storage.Store) error {
					f, err := os.Open(cmd.Args().First())
					if err != nil {
						return err
					}
					defer func() { _ = f.Close() }()
					fi, err := f.Stat()
					if err != nil {
						return err
					}
					n, err := bundle.Install(ctx, st, f, fi.Size(), a.schema)
					if err != nil {
						return err
					}
					fmt.Fprintf(out(cmd), "installed %d projects\n", n)
					return nil
				}),
			},
		},
	}
}

func projectEditCmd(target *crash.Target) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Replace the script, title or story of a project and save it",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "script", Usage: "new script text file, '-' for stdin"},
			&cli.StringFlag{Name: "title", Usage: "new title"},
			&cli.StringFlag{Name: "story", Usage: "new story text"},
			&cli.StringFlag{Name: "story-file", Usage: "read the new story from a file"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return errors.New("project id is required")
			}
			title := strings.TrimSpace(cmd.String("title"))
			if cmd.IsSet("title") && title == "" {
				return session.ErrMissingTitle
			}
			story := cmd.String("story")
			if f := cmd.String("story-file"); f != "" {
				s, err := readInput(cmd, f)
				if err != nil {
					return fmt.Errorf("read story: %w", err)
				}
				story = s
			}
			text, hasText := "", cmd.String("script") != ""
			if hasText {
				t, err := readInput(cmd, cmd.String("script"))
				if err != nil {
					return fmt.Errorf("read script: %w", err)
				}
				text = t
			}
			if title == "" && story == "" && !hasText {
				return errors.New("nothing to change: pass --script, --title, --story or --story-file")
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			opts, err := a.sessionOptions(ctx, nil)
			if err != nil {
				return err
			}
			s, err := session.Open(ctx, id, opts)
			if err != nil {
				return err
			}
			a.guard(target, s)
			if title != "" {
				s.SetTitle(title)
			}
			if strings.TrimSpace(story) != "" {
				s.SetStory(story)
			}
			if hasText {
				s.EditText(text)
			}
			if err := s.Save(ctx); err != nil {
				return err
			}
			p := s.Project()
			fmt.Fprintf(out(cmd), "saved %s %q (%d scenes)\n", p.ID, p.Title, len(p.Scenes))
			return nil
		},
	}
}

func projectGenerateCmd(target *crash.Target) *cli.Command {
	return &cli.Command{
		Name:      "generate",
		Usage:     "Regenerate the script of a project from its story and save it",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "export", Usage: "also export the deck"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "deck output directory (default: deck.output_dir)"},
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
			gen, err := a.generator()
			if err != nil {
				return err
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
			if err := s.Generate(ctx); err != nil {
				return err
			}
			p := s.Project()
			fmt.Fprint(out(cmd), s.Text())
			fmt.Fprintf(os.Stderr, "saved project %s (%d scenes)\n", p.ID, len(p.Scenes))
			a.tel.Track("script_generated", map[string]any{"scenes": len(p.Scenes), "provider": a.cfg.LLM.Provider})
			if cmd.Bool("export") {
				path, err := s.ExportDeck(a.outDir(cmd.String("out")), time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(os.Stderr, "deck written to %s\n", path)
				a.tel.Track("deck_exported", map[string]any{"scenes": len(p.Scenes)})
			}
			return nil
		},
	}
}

// withStore loads the app, opens the store and runs fn.
func withStore(fn func(ctx context.Context, cmd *cli.Command, a *app, st storage.Store) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		st, err := a.store(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, cmd, a, st)
	}
}

func historyCmd(target *crash.Target) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List recorded script revisions of a project",
		ArgsUsage: "<project-id>",
		Commands:  []*cli.Command{historyRestoreCmd(target)},
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 20, Usage: "maximum revisions to list"},
			&cli.IntFlag{Name: "show", Usage: "print the text of the Nth newest revision (1 = latest)"},
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
			h, err := a.history()
			if err != nil {
				return err
			}
			limit := int(cmd.Int("limit"))
			show := int(cmd.Int("show"))
			if show > limit {
				limit = show
			}
			revs, err := h.List(ctx, id, limit)
			if err != nil {
				return err
			}
			if show > 0 {
				if show > len(revs) {
					return fmt.Errorf("revision %d not found (%d recorded)", show, len(revs))
				}
				fmt.Fprint(out(cmd), revs[show-1].Text)
				return nil
			}
			tw := tabwriter.NewWriter(out(cmd), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tRECORDED\tSOURCE\tCHARS")
			for i, r := range revs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", i+1, r.At.Local().Format("2006-01-02 15:04:05"), r.Source, len([]rune(r.Text)))
			}
			return tw.Flush()
		},
	}
}

func historyRestoreCmd(target *crash.Target) *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Make a recorded revision the current script and save the project",
		ArgsUsage: "<project-id>",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "rev", Value: 1, Usage: "revision to restore, counted from the newest (1 = latest)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.Args().First()
			if id == "" {
				return errors.New("project id is required")
			}
			n := int(cmd.Int("rev"))
			if n < 1 {
				return fmt.Errorf("revision must be 1 or more, got %d", n)
			}
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			h, err := a.history()
			if err != nil {
				return err
			}
			var rev storage.Revision
			if n == 1 {
				rev, err = h.Latest(ctx, id)
				if err != nil {
					return err
				}
			} else {
				revs, err := h.List(ctx, id, n)
				if err != nil {
					return err
				}
				if n > len(revs) {
					return fmt.Errorf("revision %d not found (%d recorded)", n, len(revs))
				}
				rev = revs[n-1]
			}

			opts, err := a.sessionOptions(ctx, nil)
			if err != nil {
				return err
			}
			s, err := session.Open(ctx, id, opts)
			if err != nil {
				return err
			}
			a.guard(target, s)
			if err := s.Restore(ctx, rev); err != nil {
				return err
			}
			fmt.Fprintf(out(cmd), "restored revision %d of %s recorded %s (%d scenes)\n",
				n, id, rev.At.Local().Format("2006-01-02 15:04:05"), len(s.Scenes()))
			return nil
		},
	}
}

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect configuration and store the API key",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					a, err := loadApp(cmd)
					if err != nil {
						return err
					}
					defer a.close()
					b, err := yaml.Marshal(a.cfg)
					if err != nil {
						return err
					}
					w := out(cmd)
					if p, err := config.ConfigPath(); err == nil && cmd.String("config") == "" {
						fmt.Fprintf(w, "# %s\n", p)
					}
					_, _ = w.Write(b)
					state := "not set"
					if a.apiKey != "" {
						state = "set"
					}
					fmt.Fprintf(w, "# api key: %s\n", state)
					return nil
				},
			},
			{
				Name:      "set-key",
				Usage:     "Store the API key in the OS keyring (reads stdin when no argument is given; empty removes it)",
				ArgsUsage: "[key]",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					key := cmd.Args().First()
					if key == "" {
						r := cmd.Root().Reader
						if r == nil {
							r = os.Stdin
						}
						line, err := bufio.NewReader(r).ReadString('\n')
						if err != nil && !errors.Is(err, io.EOF) {
							return err
						}
						key = line
					}
					if err := config.SetAPIKey(key); err != nil {
						return fmt.Errorf("store api key: %w", err)
					}
					fmt.Fprintln(out(cmd), "api key updated")
					return nil
				},
			},
		},
	}
}

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Fprintf(out(cmd), "scriptdeck %s\n", version.String())
			return nil
		},
	}
}
