package main

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/pcj/mobyprogress"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stackb/jvm-transformer/pkg/config"
	terrors "github.com/stackb/jvm-transformer/pkg/errors"
	"github.com/stackb/jvm-transformer/pkg/logger"
	"github.com/stackb/jvm-transformer/pkg/progress"
	"github.com/stackb/jvm-transformer/pkg/rules"
	"github.com/stackb/jvm-transformer/pkg/transform"
)

// inputFlag binds an input kind to its flag.
type inputFlag struct {
	kind      transform.Kind
	name      string
	shorthand string
	usage     string
}

var inputFlags = []inputFlag{
	{transform.Class, "class", "c", "Input class"},
	{transform.Zip, "zip", "z", "Input zip archive"},
	{transform.Jar, "jar", "j", "Input java archive"},
	{transform.War, "war", "w", "Input web application archive"},
	{transform.Rar, "rar", "r", "Input resource archive"},
	{transform.Ear, "ear", "e", "Input enterprise application archive"},
}

type options struct {
	inputs  map[string]*string
	output  string
	rules   string
	invert  bool
	terse   bool
	verbose bool
	dryRun  bool
}

func newRootCmd() *cobra.Command {
	opts := &options{inputs: make(map[string]*string)}

	cmd := &cobra.Command{
		Use:           "transformer",
		Short:         "Rename the packages referenced by Java classes and archives",
		Long:          "transformer rewrites the package references of a Java class, or of the classes and service configurations in an archive, according to a set of package rename rules.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := runTransform(cmd, opts)
			if err != nil && !categorized(err) {
				return fmt.Errorf("%w: %w", terrors.ErrTransform, err)
			}
			return err
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", terrors.ErrArgument, err)
	})

	flags := cmd.Flags()
	var names []string
	for _, in := range inputFlags {
		opts.inputs[in.name] = flags.StringP(in.name, in.shorthand, "", in.usage)
		names = append(names, in.name)
	}
	flags.StringVarP(&opts.output, "output", "o", "", "Output file")
	flags.StringVarP(&opts.rules, "transform", "x", "", "Explicit transformation rules URL (env: TRANSFORMER_RULES)")
	flags.BoolVarP(&opts.invert, "invert", "i", false, "Invert transformation rules")
	flags.BoolVarP(&opts.terse, "terse", "t", false, "Display terse output")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Display verbose output")
	flags.BoolVarP(&opts.dryRun, "dryrun", "d", false, "Transform without writing the output")

	cmd.MarkFlagsMutuallyExclusive(names...)
	cmd.MarkFlagsOneRequired(names...)
	cmd.MarkFlagsMutuallyExclusive("terse", "verbose")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

func (o *options) verbosity() logger.Verbosity {
	switch {
	case o.terse:
		return logger.Terse
	case o.verbose:
		return logger.Verbose
	default:
		return logger.Normal
	}
}

// input returns the kind and name of the single input given.
func (o *options) input() (transform.Kind, string, error) {
	for _, in := range inputFlags {
		if name := *o.inputs[in.name]; name != "" {
			return in.kind, name, nil
		}
	}
	return 0, "", fmt.Errorf("%w: no input specified", terrors.ErrArgument)
}

func runTransform(cmd *cobra.Command, opts *options) error {
	cfg, err := config.Load(config.EnvFile)
	if err != nil {
		return err
	}

	log, err := logger.New(cmd.ErrOrStderr(), logger.Options{
		Format:    cfg.Logging.Format,
		Verbosity: opts.verbosity(),
		NoColor:   cfg.Logging.NoColor,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", terrors.ErrArgument, err)
	}
	switch {
	case opts.terse:
		log.Info().Msg("Terse output requested")
	case opts.verbose:
		log.Info().Msg("Verbose output requested")
	}

	rs, err := loadRules(cmd, cfg, opts, log)
	if err != nil {
		return err
	}

	kind, input, err := opts.input()
	if err != nil {
		return err
	}
	log.Info().Msgf("Input from %s [ %s ]", kind.Description(), input)
	log.Info().Msgf("Transformation output to [ %s ]", opts.output)

	t, err := transform.New(kind, rs, transform.Options{
		TempDir:  cfg.TempDir,
		DryRun:   opts.dryRun,
		Logger:   log,
		Progress: progressOutput(cmd.ErrOrStderr(), cfg, opts),
	})
	if err != nil {
		return err
	}
	changes, err := t.TransformFile(input, opts.output)
	if err != nil {
		for _, link := range terrors.Chain(err) {
			log.Debug().Msgf("Failed in [ %s ]", link)
		}
		return err
	}
	transform.Report(log, changes)
	return nil
}

// progressOutput returns a terminal progress display for default verbosity
// console runs on a terminal, and nil otherwise.
func progressOutput(w io.Writer, cfg *config.Config, opts *options) mobyprogress.Output {
	if opts.verbosity() != logger.Normal || cfg.Logging.Format != logger.FormatConsole || !isTerminal(w) {
		return nil
	}
	return progress.NewProgressOutput(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func loadRules(cmd *cobra.Command, cfg *config.Config, opts *options, log zerolog.Logger) (*rules.RuleSet, error) {
	ref := opts.rules
	if ref == "" {
		ref = cfg.Rules
	}
	if ref != "" {
		log.Info().Msgf("Using explicit rules at [ %s ]", ref)
	} else {
		log.Info().Msgf("Using internal rules at [ %s ]", rules.DefaultRulesReference)
	}

	loader := rules.NewLoader(&http.Client{Timeout: cfg.RulesTimeout})
	rs, err := loader.Load(cmd.Context(), ref)
	if err != nil {
		return nil, err
	}
	if opts.invert {
		log.Info().Msg("Inverting transformation rules")
		if rs, err = rs.Invert(); err != nil {
			return nil, err
		}
	}
	log.Debug().Msg(rs.String())
	return rs, nil
}
