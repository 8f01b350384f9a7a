package main

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/cdtdelta/4n6timeliner/internal/config"
	"github.com/cdtdelta/4n6timeliner/internal/database"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	envFile    string
	logLevel   string
	logFormat  string
	override   string
}

func (g *globalFlags) loadOptions() config.LoadOptions {
	return config.LoadOptions{File: g.configFile, EnvFile: g.envFile}
}

// apply writes only the flags the user set, so unset flags leave file and
// environment values alone.
func (g *globalFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = g.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = g.logFormat
	}
	if flags.Changed("override") {
		cfg.OverridePath = g.override
	}
}

func newRootCommand(app *App) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "4n6timeliner",
		Short:         "Fuse forensic tool CSV exports into one timeline",
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&g.configFile, "config", "", "YAML or TOML configuration file")
	pf.StringVar(&g.envFile, "env-file", ".env", "dotenv file with TIMELINER_* variables")
	pf.StringVar(&g.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.StringVar(&g.logFormat, "log-format", "text", "log format: text, json, logfmt")
	pf.StringVar(&g.override, "override", "", "signature override document (YAML, JSON or TOML)")

	root.AddCommand(
		runCommand(app, g),
		previewCommand(app, g),
		dedupCommand(app, g),
		signaturesCommand(app, g),
		queryCommand(app, g),
		runsCommand(app, g),
	)
	return root
}

func runCommand(app *App, g *globalFlags) *cobra.Command {
	var (
		input, output, format, dbURL string
		start, end                   string
		batchSize                    int
		noDedup, postExport          bool
		dedupKeys, tools, artifacts  []string
		mftExt, mftPaths             []string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Discover, normalize and export a timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.Configure(g.loadOptions(), func(cfg *config.Config) {
				g.apply(cmd, cfg)
				f := cmd.Flags()
				setString(f.Changed("input"), &cfg.InputDir, input)
				setString(f.Changed("output"), &cfg.Output.Path, output)
				setString(f.Changed("format"), &cfg.Output.Format, format)
				setString(f.Changed("database-url"), &cfg.Output.DatabaseURL, dbURL)
				setString(f.Changed("start"), &cfg.StartDate, start)
				setString(f.Changed("end"), &cfg.EndDate, end)
				if f.Changed("batch-size") {
					cfg.BatchSize = batchSize
				}
				if f.Changed("no-dedup") {
					cfg.Dedup.Disabled = noDedup
				}
				if f.Changed("post-export-dedup") {
					cfg.Dedup.PostExport = postExport
				}
				setList(f.Changed("dedup-keys"), &cfg.Dedup.Keys, dedupKeys)
				setList(f.Changed("tools"), &cfg.Tools, tools)
				setList(f.Changed("artifacts"), &cfg.Artifacts, artifacts)
				setList(f.Changed("mft-extensions"), &cfg.MFT.Extensions, mftExt)
				setList(f.Changed("mft-paths"), &cfg.MFT.Paths, mftPaths)
			})
			if err != nil {
				return err
			}
			_, err = app.Run(cmd.Context())
			return err
		},
	}
	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "", "scan root holding the tool exports")
	f.StringVarP(&output, "output", "o", "", "output file, or a directory for a timestamped file")
	f.StringVarP(&format, "format", "f", "", "csv, jsonl, tln, l2ttln, sqlite or postgres")
	f.StringVar(&dbURL, "database-url", "", "PostgreSQL connection string for --format postgres")
	f.StringVar(&start, "start", "", "drop rows before this date (YYYY-MM-DD or ISO-8601)")
	f.StringVar(&end, "end", "", "drop rows after this date; a bare date covers the whole day")
	f.IntVar(&batchSize, "batch-size", 0, "rows per batch for large files")
	f.BoolVar(&noDedup, "no-dedup", false, "keep duplicate rows")
	f.BoolVar(&postExport, "post-export-dedup", false, "dedup the written file in place")
	f.StringSliceVar(&dedupKeys, "dedup-keys", nil, "columns compared by dedup (default: whole row)")
	f.StringSliceVar(&tools, "tools", nil, "tool groups: ez, axiom, hayabusa, chainsaw, nirsoft, custom, all")
	f.StringSliceVar(&artifacts, "artifacts", nil, "only process these artifacts")
	f.StringSliceVar(&mftExt, "mft-extensions", nil, "keep MFT entries with these extensions")
	f.StringSliceVar(&mftPaths, "mft-paths", nil, "keep MFT entries whose path contains one of these")
	return cmd
}

func previewCommand(app *App, g *globalFlags) *cobra.Command {
	var input string
	var tools []string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show which artifacts a scan root would yield without parsing rows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := app.Configure(g.loadOptions(), func(cfg *config.Config) {
				g.apply(cmd, cfg)
				setString(cmd.Flags().Changed("input"), &cfg.InputDir, input)
				setList(cmd.Flags().Changed("tools"), &cfg.Tools, tools)
			})
			if err != nil {
				return err
			}
			if app.cfg.InputDir == "" {
				return errors.New("requires --input")
			}
			return app.Preview(app.cfg.InputDir)
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "scan root holding the tool exports")
	cmd.Flags().StringSliceVar(&tools, "tools", nil, "tool groups to preview (default: all)")
	return cmd
}

func dedupCommand(app *App, g *globalFlags) *cobra.Command {
	var format string
	var keys []string
	cmd := &cobra.Command{
		Use:   "dedup FILE",
		Short: "Remove duplicate rows from an exported timeline file in place",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Configure(g.loadOptions(), func(cfg *config.Config) { g.apply(cmd, cfg) }); err != nil {
				return err
			}
			_, err := app.Dedup(args[0], format, keys)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "csv, jsonl, tln or l2ttln (default: from the file extension)")
	cmd.Flags().StringSliceVar(&keys, "keys", nil, "columns compared (default: whole row)")
	return cmd
}

func signaturesCommand(app *App, g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "signatures",
		Short: "Print the artifact signatures, with any override applied, as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Configure(g.loadOptions(), func(cfg *config.Config) { g.apply(cmd, cfg) }); err != nil {
				return err
			}
			return app.Signatures()
		},
	}
}

func queryCommand(app *App, g *globalFlags) *cobra.Command {
	opts := QueryOptions{}
	cmd := &cobra.Command{
		Use:   "query DB",
		Short: "Print rows of a timeline store as csv or jsonl",
		Args:  requireStore(&opts.Driver),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Configure(g.loadOptions(), func(cfg *config.Config) { g.apply(cmd, cfg) }); err != nil {
				return err
			}
			return app.Query(args[0], opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.Driver, "driver", database.DriverSQLite, "sqlite or postgres")
	f.StringArrayVarP(&opts.Where, "where", "w", nil, "filter as Field=value, Field!=value, Field~text, Field>=value")
	f.BoolVar(&opts.Any, "any", false, "match any --where filter instead of all")
	f.StringVar(&opts.From, "from", "", "earliest DateTime (ISO-8601)")
	f.StringVar(&opts.To, "to", "", "latest DateTime (ISO-8601)")
	f.StringVar(&opts.RunID, "run", "", "only rows of this run id")
	f.StringVar(&opts.Order, "order", "DateTime", "sort column")
	f.BoolVar(&opts.Desc, "desc", false, "sort descending")
	f.IntVar(&opts.Limit, "limit", 0, "page size (0: all rows)")
	f.IntVar(&opts.Page, "page", 1, "page number when --limit is set")
	f.BoolVar(&opts.Count, "count", false, "print the number of matching rows only")
	f.StringVar(&opts.Format, "format", "csv", "csv or jsonl")
	return cmd
}

func runsCommand(app *App, g *globalFlags) *cobra.Command {
	var driver, deleteRun string
	cmd := &cobra.Command{
		Use:   "runs DB",
		Short: "List or delete the runs stored in a timeline store",
		Args:  requireStore(&driver),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Configure(g.loadOptions(), func(cfg *config.Config) { g.apply(cmd, cfg) }); err != nil {
				return err
			}
			if deleteRun != "" {
				return app.DeleteRun(driver, args[0], deleteRun)
			}
			return app.Runs(driver, args[0])
		},
	}
	cmd.Flags().StringVar(&driver, "driver", database.DriverSQLite, "sqlite or postgres")
	cmd.Flags().StringVar(&deleteRun, "delete", "", "delete the rows of this run id")
	return cmd
}

// requireOneFile checks for one file argument on the OS filesystem, where
// the SQLite driver opens it.
func requireOneFile(_ *cobra.Command, args []string) error {
	if len(args) != 1 {
		return errors.New("requires exactly one file")
	}
	if _, err := os.Stat(args[0]); os.IsNotExist(err) {
		return errors.Wrap(os.ErrNotExist, args[0])
	}
	return nil
}

// requireStore checks for one store argument; SQLite stores must exist.
func requireStore(driver *string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("requires exactly one store")
		}
		if *driver == database.DriverSQLite {
			return requireOneFile(cmd, args)
		}
		return nil
	}
}

func setString(changed bool, dst *string, v string) {
	if changed {
		*dst = v
	}
}

func setList(changed bool, dst *[]string, v []string) {
	if changed {
		*dst = config.SplitList(strings.Join(v, ","))
	}
}
