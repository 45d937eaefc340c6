package main

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gilchrisn/publication-classification/pkg/dbio"
	"github.com/gilchrisn/publication-classification/pkg/pipeline"
)

func newRootCmd() *cobra.Command {
	opts := &options{v: pipeline.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "pubclass",
		Short: "Create multi-level publication classifications",
		Long: `pubclass clusters a citation network with the Leiden algorithm at a
sequence of decreasing resolutions. Each level clusters the network reduced by
the levels below it, and clusters below a minimum publication weight are merged
into their most strongly linked neighbour.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to a configuration file (yaml, json or toml)")
	flags.Bool("largest-component", false, "Only classify the largest connected component")
	flags.Int("n-iterations", pipeline.DefaultConfig().NIterations, "Number of iterations of the Leiden algorithm")
	flags.Float64("randomness", pipeline.DefaultConfig().Randomness, "Randomness of the Leiden refinement phase")
	flags.Int64("seed", 0, "Random seed")
	flags.StringArrayVar(&opts.levels, "level", nil, "Level as name:resolution:threshold, from fine to coarse (repeatable)")
	flags.Bool("progress", false, "Log the number of clusters while adding each level")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.Bool("quiet", false, "Only log warnings and errors")

	opts.v.BindPFlag("largest_component", flags.Lookup("largest-component"))
	opts.v.BindPFlag("n_iterations", flags.Lookup("n-iterations"))
	opts.v.BindPFlag("randomness", flags.Lookup("randomness"))
	opts.v.BindPFlag("seed", flags.Lookup("seed"))
	opts.v.BindPFlag("progress", flags.Lookup("progress"))
	opts.v.BindPFlag("logging.level", flags.Lookup("log-level"))
	opts.v.BindPFlag("logging.quiet", flags.Lookup("quiet"))

	rootCmd.AddCommand(newFilesCmd(opts), newDBCmd(opts), newServeCmd(opts))
	return rootCmd
}

func newFilesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "files <pub_file> <cit_link_file> <classification_file>",
		Short: "Classify a citation network stored in tab-separated files",
		Long: `Classify a citation network stored in tab-separated files.

The publications file has two columns: the publication number, starting at
zero and equal to the line index, and a core flag (1 or true for core
publications). The citation links file has three columns: the two publication
numbers and the link weight, sorted by the first and then the second column.

The classification file gets one line per publication: the publication number
followed by its cluster at each level.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			_, err = pipeline.Run(cmd.Context(), cfg,
				pipeline.FileSource{PubFile: args[0], CitLinkFile: args[1]},
				pipeline.FileSink{Path: args[2]},
				logger)
			return err
		},
	}
}

func newDBCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db <pub_table> <cit_link_table> <classification_table>",
		Short: "Classify a citation network stored in database tables",
		Long: `Classify a citation network stored in database tables.

The publications table needs columns pub_no and core_pub, the citation links
table columns pub_no1, pub_no2 and cit_weight. The classification table is
dropped and recreated with a pub_no column and a <level>_cluster_no column per
level.

Supported drivers are sqlite and postgres. Without --driver, postgres:// DSNs
use postgres and anything else is opened as a SQLite file.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			dsn := opts.v.GetString("database.dsn")
			if dsn == "" {
				return fmt.Errorf("a database DSN is required (--dsn or PUBCLASS_DATABASE_DSN)")
			}
			db, err := dbio.Open(opts.v.GetString("database.driver"), dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			_, err = pipeline.Run(cmd.Context(), cfg,
				pipeline.DatabaseSource{DB: db, PubTable: args[0], CitLinkTable: args[1]},
				pipeline.DatabaseSink{DB: db, Table: args[2]},
				logger)
			return err
		},
	}

	cmd.Flags().String("driver", "", "Database driver (sqlite or postgres)")
	cmd.Flags().String("dsn", "", "Database DSN: a SQLite path or a postgres:// URL")
	opts.v.BindPFlag("database.driver", cmd.Flags().Lookup("driver"))
	opts.v.BindPFlag("database.dsn", cmd.Flags().Lookup("dsn"))
	return cmd
}

// load resolves the configuration and creates the logger
func (opts *options) load(out io.Writer) (*pipeline.Config, zerolog.Logger, error) {
	if len(opts.levels) > 0 {
		levels := make([]map[string]any, len(opts.levels))
		for i, s := range opts.levels {
			level, err := pipeline.ParseLevel(s)
			if err != nil {
				return nil, zerolog.Nop(), err
			}
			levels[i] = map[string]any{
				"name":       level.Name,
				"resolution": level.Resolution,
				"threshold":  level.Threshold,
			}
		}
		opts.v.Set("levels", levels)
	}

	cfg, err := pipeline.FromViper(opts.v, opts.configFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, opts.logger(out), nil
}

// logger creates a console logger honouring the log level and quiet flags
func (opts *options) logger(out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(opts.v.GetString("logging.level"))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if opts.v.GetBool("logging.quiet") && level < zerolog.WarnLevel {
		level = zerolog.WarnLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.TimeOnly,
	}).Level(level).With().Timestamp().Str("service", "pubclass").Logger()
}
