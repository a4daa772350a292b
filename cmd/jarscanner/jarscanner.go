// Command jarscanner reports which classes of a set of jars reference
// packages renamed by the transformation rules, without writing any
// transformed output.
package main

import (
	"archive/zip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stackb/jvm-transformer/pkg/action"
	"github.com/stackb/jvm-transformer/pkg/java"
	"github.com/stackb/jvm-transformer/pkg/logger"
	"github.com/stackb/jvm-transformer/pkg/rename"
	"github.com/stackb/jvm-transformer/pkg/rules"
)

type config struct {
	rulesRef   string
	invert     bool
	outputFile string
	verbose    bool
}

// Output is the scan report.
type Output struct {
	Rules string       `json:"rules"`
	Jars  []*JarReport `json:"jars,omitempty"`
}

// JarReport lists the classes of one jar that the rules would change.
type JarReport struct {
	Jar    string `json:"jar"`
	Sha256 string `json:"sha256"`
	// Classes counts every non synthetic class scanned.
	Classes int            `json:"classes"`
	Changed []*ClassReport `json:"changed,omitempty"`
}

// ClassReport describes the changes the rules would make to a class.
type ClassReport struct {
	Name      string   `json:"name"`
	RenamedTo string   `json:"renamedTo,omitempty"`
	Rewrites  int      `json:"rewrites"`
	Constants []string `json:"constants,omitempty"`
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jarscanner:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	conf := &config{}
	cmd := &cobra.Command{
		Use:           "jarscanner [flags] JAR...",
		Short:         "Report the classes of jars that reference renamed packages",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(cmd.ErrOrStderr(), logger.Options{Verbosity: verbosity(conf.verbose)})
			if err != nil {
				return err
			}
			out, err := run(cmd.Context(), conf, args, log)
			if err != nil {
				return err
			}
			if conf.outputFile == "" {
				return writeOutput(cmd.OutOrStdout(), out)
			}
			f, err := os.Create(conf.outputFile)
			if err != nil {
				return err
			}
			if err := writeOutput(f, out); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}
	cmd.Flags().StringVarP(&conf.rulesRef, "transform", "x", "", "Transformation rules URL, default the bundled rules")
	cmd.Flags().BoolVarP(&conf.invert, "invert", "i", false, "Invert transformation rules")
	cmd.Flags().StringVarP(&conf.outputFile, "output", "o", "", "The output file to write, default stdout")
	cmd.Flags().BoolVarP(&conf.verbose, "verbose", "v", false, "Log every class visited")
	return cmd
}

func verbosity(verbose bool) logger.Verbosity {
	if verbose {
		return logger.Verbose
	}
	return logger.Normal
}

func run(ctx context.Context, conf *config, jars []string, log zerolog.Logger) (*Output, error) {
	rs, err := rules.Load(ctx, conf.rulesRef)
	if err != nil {
		return nil, err
	}
	if conf.invert {
		if rs, err = rs.Invert(); err != nil {
			return nil, err
		}
	}
	renames, err := rs.PackageRenames()
	if err != nil {
		return nil, err
	}

	out := &Output{Rules: rs.Source}
	for _, jar := range jars {
		report, err := scanJar(jar, renames, log)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", jar, err)
		}
		out.Jars = append(out.Jars, report)
	}
	return out, nil
}

func scanJar(filename string, renames *rename.PackageRenames, log zerolog.Logger) (*JarReport, error) {
	log.Info().Str("jar", filename).Msg("Scanning jar file")
	sum, err := fileSha256(filename)
	if err != nil {
		return nil, err
	}
	report := &JarReport{Jar: filename, Sha256: sum}

	classAction := action.NewClassAction(action.Options{Renames: renames, Logger: log})
	err = java.NewJar(filename).Visit(func(f *zip.File, c *java.ClassFile, bytecode []byte) error {
		if c.IsSynthetic() {
			log.Debug().Msgf("Skipping synthetic class [ %s ]", f.Name)
			return nil
		}
		report.Classes++
		_, changes, err := classAction.Apply(f.Name, bytecode)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Name, err)
		}
		log.Debug().Msgf("Visiting class [ %s ] Changes [ %t ]", f.Name, changes.HasChanges())
		if !changes.HasChanges() {
			return nil
		}
		cr := &ClassReport{
			Name:     changes.Class.InputClassName,
			Rewrites: changes.Class.RewrittenEntries,
		}
		if changes.Class.HasClassNameChange() {
			cr.RenamedTo = changes.Class.OutputClassName
		}
		for _, c := range changes.Class.ModifiedConstants {
			cr.Constants = append(cr.Constants, c.String())
		}
		report.Changed = append(report.Changed, cr)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

func fileSha256(filename string) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeOutput(w io.Writer, out *Output) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
