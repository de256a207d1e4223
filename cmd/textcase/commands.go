package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/coreseekdev/textcase/internal"
	"github.com/coreseekdev/textcase/internal/docservice"
	"github.com/coreseekdev/textcase/internal/project"
	pkgconfig "github.com/coreseekdev/textcase/pkg/config"
)

type appAction func(ctx context.Context, cmd *cli.Command, app *internal.App) error

// withApp opens the application from the global flags before running fn.
func withApp(fn appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg := internal.NewDefaultConfig()
		if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
			return fmt.Errorf("failed to parse config: %w", err)
		}
		if cmd.IsSet("editor") {
			cfg.Editor = cmd.String("editor")
		}
		if cmd.IsSet("direct-edit") {
			cfg.DirectEdit = cmd.Bool("direct-edit")
		}

		app, err := internal.Open(ctx,
			internal.WithConfig(cfg),
			internal.WithRoot(cmd.String("root")),
			internal.WithVerbose(cmd.Bool("verbose")),
		)
		if err != nil {
			return err
		}
		defer app.Close()
		return fn(ctx, cmd, app)
	}
}

// requireArgs returns the first n positional arguments or a usage error.
func requireArgs(cmd *cli.Command, n int) ([]string, error) {
	if cmd.NArg() < n {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d (usage: %s %s)",
			cmd.Name, n, cmd.NArg(), cmd.Name, cmd.ArgsUsage)
	}
	return cmd.Args().Slice()[:n], nil
}

func out(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}

func printJSON(cmd *cli.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out(cmd), string(data))
	return err
}

func newApp() *cli.Command {
	// -v is taken by --verbose.
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Usage: "print the version"}

	return &cli.Command{
		Name:    "textcase",
		Usage:   "Manage numbered Markdown requirements and test cases with links and tags",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"C"},
				Usage:   "Directory to search for the project root from",
				Value:   ".",
				Sources: cli.EnvVars("TEXTCASE_ROOT"),
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the application config file",
				Sources: cli.EnvVars("TEXTCASE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "editor",
				Usage:   "Editor command used by add and edit",
				Sources: cli.EnvVars("EDITOR"),
			},
			&cli.BoolFlag{
				Name:    "direct-edit",
				Usage:   "Edit files in place instead of through a temporary copy",
				Sources: cli.EnvVars("USE_DIRECT_EDIT"),
			},
		},
		Commands: []*cli.Command{
			createCommand(),
			addCommand(),
			editCommand(),
			linkCommand(),
			unlinkCommand(),
			clearCommand(),
			showCommand(),
			listCommand(),
			modulesCommand(),
			tagCommand(),
			backlinksCommand(),
			checkCommand(),
			mcpCommand(),
		},
	}
}

func createCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a module, or the project root when PATH is \".\"",
		ArgsUsage: "<PREFIX> <PATH>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "parent", Usage: "Parent module prefix (default: root)"},
			&cli.StringFlag{Name: "sep", Usage: "Separator between prefix and number"},
			&cli.IntFlag{Name: "digits", Usage: "Zero padding of document numbers", Value: project.DefaultDigits},
			&cli.StringFlag{Name: "tag", Usage: "Default tags for documents in the module (comma separated)"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			args, err := requireArgs(cmd, 2)
			if err != nil {
				return err
			}
			digits := int(cmd.Int("digits"))
			m, err := app.Service.CreateModule(project.Spec{
				Prefix:     args[0],
				Path:       args[1],
				Parent:     cmd.String("parent"),
				Sep:        cmd.String("sep"),
				Digits:     &digits,
				DefaultTag: project.SplitTags(cmd.String("tag")),
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(out(cmd), "created module %s at %s\n", m.Prefix, m.Dir())
			return err
		}),
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a document to a module",
		ArgsUsage: "<PREFIX>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Custom number or name instead of the next number"},
			&cli.StringFlag{Name: "message", Aliases: []string{"m"}, Usage: "Heading text written after the ID"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Do not open the editor"},
		},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			args, err := requireArgs(cmd, 1)
			if err != nil {
				return err
			}
			opts := docservice.AddOptions{Name: cmd.String("name"), Message: cmd.String("message")}
			if cmd.Bool("quiet") {
				doc, err := app.Service.AddDocument(args[0], opts)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(out(cmd), doc.Path)
				return err
			}
			doc, kept, err := app.Service.AddInteractive(ctx, app.Editor, args[0], opts)
			if err != nil {
				return err
			}
			if !kept {
				_, err = fmt.Fprintf(out(cmd), "%s discarded, no changes\n", doc.ID)
				return err
			}
			_, err = fmt.Fprintln(out(cmd), doc.Path)
			return err
		}),
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Open a document in the editor",
		ArgsUsage: "<DOC_ID>",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			args, err := requireArgs(cmd, 1)
			if err != nil {
				return err
			}
			changed, err := app.Service.Edit(ctx, app.Editor, args[0])
			if err != nil {
				return err
			}
			if !changed {
				app.Logger.Info("no changes", "id", args[0])
			}
			return nil
		}),
	}
}

func labelFlag() cli.Flag {
	return &cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "Link label"}
}

func linkCommand() *cli.Command {
	return &cli.Command{
		Name:      "link",
		Usage:     "Link a source document to a target document",
		ArgsUsage: "<SOURCE> <TARGET>",
		Flags:     []cli.Flag{labelFlag()},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			args, err := requireArgs(cmd, 2)
			if err != nil {
				return err
			}
			return app.Service.Link(args[0], args[1], cmd.String("label"))
		}),
	}
}

func unlinkCommand() *cli.Command {
	return &cli.Command{
		Name:      "unlink",
		Usage:     "Remove a link label, or the whole link without --label",
		ArgsUsage: "<SOURCE> <TARGET>",
		Flags:     []cli.Flag{labelFlag()},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			args, err := requireArgs(cmd, 2)
			if err != nil {
				return err
			}
			return app.Service.Unlink(args[0], args[1], cmd.String("label"))
		}),
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:      "clear",
		Usage:     "Remove every outgoing link of a document",
		ArgsUsage: "<DOC_ID>",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			args, err := requireArgs(cmd, 1)
			if err != nil {
				return err
			}
			return app.Service.Clear(args[0])
		}),
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Print JSON"}
}

func showCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show a document with its links, tags and backlinks",
		ArgsUsage: "<DOC_ID>",
		Flags:     []cli.Flag{jsonFlag()},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			args, err := requireArgs(cmd, 1)
			if err != nil {
				return err
			}
			d, err := app.Service.Show(args[0])
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(cmd, d)
			}
			w := out(cmd)
			fmt.Fprintf(w, "%s\t%s\n", d.ID, d.Path)
			if d.Title != "" {
				fmt.Fprintf(w, "title:\t%s\n", d.Title)
			}
			for _, l := range d.Links {
				fmt.Fprintf(w, "-> %s\t%s\n", l.Target, strings.Join(l.Labels, ","))
			}
			for _, b := range d.Backlinks {
				fmt.Fprintf(w, "<- %s\t%s\n", b.Source, b.Label)
			}
			if len(d.Tags) > 0 {
				fmt.Fprintf(w, "tags:\t%s\n", strings.Join(d.Tags, ","))
			}
			return nil
		}),
	}
}

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List documents in display order",
		ArgsUsage: "[PREFIX]",
		Flags:     []cli.Flag{jsonFlag()},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			entries, err := app.Service.List(cmd.Args().First())
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(cmd, entries)
			}
			w := out(cmd)
			for _, e := range entries {
				fmt.Fprintf(w, "%s%s\t%s\n", strings.Repeat("  ", e.Depth), e.ID, e.Title)
			}
			return nil
		}),
	}
}

func modulesCommand() *cli.Command {
	return &cli.Command{
		Name:      "modules",
		Usage:     "List every module, or the submodules of PREFIX",
		ArgsUsage: "[PREFIX]",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			var (
				mods []*project.Module
				err  error
			)
			if prefix := cmd.Args().First(); prefix != "" {
				mods, err = app.Service.Children(prefix)
			} else {
				mods, err = app.Service.Modules()
			}
			if err != nil {
				return err
			}
			w := out(cmd)
			for _, m := range mods {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.Prefix, m.Dir(), m.Parent)
			}
			return nil
		}),
	}
}

func tagCommand() *cli.Command {
	return &cli.Command{
		Name:  "tag",
		Usage: "Manage document tags",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Tag a document or directory",
				ArgsUsage: "<VERB[:NAME]> <TARGET>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "Define the verb when it is unknown"},
				},
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					args, err := requireArgs(cmd, 2)
					if err != nil {
						return err
					}
					return app.Service.Tag(args[0], args[1], cmd.Bool("force"))
				}),
			},
			{
				Name:      "remove",
				Usage:     "Remove a tag from a document or directory",
				ArgsUsage: "<VERB[:NAME]> <TARGET>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					args, err := requireArgs(cmd, 2)
					if err != nil {
						return err
					}
					return app.Service.Untag(args[0], args[1])
				}),
			},
			{
				Name:      "list",
				Usage:     "List the tags of a document, or every tag",
				ArgsUsage: "[TARGET]",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					w := out(cmd)
					if target := cmd.Args().First(); target != "" {
						refs, err := app.Service.TagsFor(target)
						if err != nil {
							return err
						}
						for _, r := range refs {
							fmt.Fprintln(w, r)
						}
						return nil
					}
					entries, err := app.Service.ListTags()
					if err != nil {
						return err
					}
					for _, e := range entries {
						fmt.Fprintf(w, "%s\t%s\n", e.Ref, strings.Join(e.Paths, " "))
					}
					return nil
				}),
			},
			{
				Name:      "docs",
				Usage:     "List the documents carrying a tag",
				ArgsUsage: "<VERB[:NAME]>",
				Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
					args, err := requireArgs(cmd, 1)
					if err != nil {
						return err
					}
					docs, err := app.Service.DocumentsForTag(args[0])
					if err != nil {
						return err
					}
					for _, d := range docs {
						fmt.Fprintf(out(cmd), "%s\t%s\n", d.ID, d.Path)
					}
					return nil
				}),
			},
		},
	}
}

func backlinksCommand() *cli.Command {
	return &cli.Command{
		Name:      "backlinks",
		Usage:     "List the documents linking to a document",
		ArgsUsage: "<DOC_ID>",
		Flags:     []cli.Flag{jsonFlag()},
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			args, err := requireArgs(cmd, 1)
			if err != nil {
				return err
			}
			rows, err := app.Service.Backlinks(args[0])
			if err != nil {
				return err
			}
			if cmd.Bool("json") {
				return printJSON(cmd, rows)
			}
			for _, r := range rows {
				fmt.Fprintf(out(cmd), "%s\t%s\n", r.Source, r.Label)
			}
			return nil
		}),
	}
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report links whose target document does not exist",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			rows, err := app.Service.Check()
			if err != nil {
				return err
			}
			for _, r := range rows {
				fmt.Fprintf(out(cmd), "%s -> %s\t%s\n", r.Source, r.Target, r.SourcePath)
			}
			if len(rows) > 0 {
				return fmt.Errorf("%d dangling link(s)", len(rows))
			}
			return nil
		}),
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the project over the Model Context Protocol on stdio",
		Action: withApp(func(ctx context.Context, cmd *cli.Command, app *internal.App) error {
			return app.ServeMCP(ctx, version)
		}),
	}
}
