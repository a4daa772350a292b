// Package transform drives the transformation of a single input file.
package transform

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pcj/mobyprogress"
	"github.com/rs/zerolog"

	"github.com/stackb/jvm-transformer/pkg/action"
	terrors "github.com/stackb/jvm-transformer/pkg/errors"
	"github.com/stackb/jvm-transformer/pkg/rules"
)

// Kind is the type of the input being transformed.
type Kind int

const (
	Class Kind = iota
	Zip
	Jar
	War
	Rar
	Ear
)

var kindNames = [...]string{"class", "zip", "jar", "war", "rar", "ear"}

var kindDescriptions = [...]string{
	"class",
	"zip file",
	"jar file",
	"web application archive",
	"resource archive",
	"enterprise application archive",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// Description names the kind the way it is shown to users.
func (k Kind) Description() string {
	if k < 0 || int(k) >= len(kindDescriptions) {
		return k.String()
	}
	return kindDescriptions[k]
}

// ParseKind parses a kind name such as "jar".
func ParseKind(s string) (Kind, error) {
	for i, name := range kindNames {
		if strings.EqualFold(s, name) {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown input kind %q", terrors.ErrArgument, s)
}

// containerKind maps an archive kind to its action kind.
func (k Kind) containerKind() (action.ContainerKind, bool) {
	var name string
	switch k {
	case Zip:
		name = action.ZipActionName
	case Jar:
		name = action.JarActionName
	case War:
		name = action.WarActionName
	case Rar:
		name = action.RarActionName
	case Ear:
		name = action.EarActionName
	default:
		return action.ContainerKind{}, false
	}
	for _, ck := range action.ContainerKinds {
		if ck.Name == name {
			return ck, true
		}
	}
	return action.ContainerKind{}, false
}

// NewRootAction creates the action applied to an input of the given kind.
// Archive actions share one registry holding every archive action, outermost
// first, followed by the class and service configuration actions.
func NewRootAction(kind Kind, opts action.Options) (action.Action, error) {
	if kind == Class {
		return action.NewClassAction(opts), nil
	}
	want, ok := kind.containerKind()
	if !ok {
		return nil, fmt.Errorf("%w: unsupported input kind %s", terrors.ErrArgument, kind)
	}

	composite := action.NewComposite()
	var root action.Action
	for _, ck := range action.ContainerKinds {
		a := action.NewContainerAction(ck, composite, opts)
		if ck == want {
			root = a
		}
		composite.Add(a)
	}
	composite.Add(action.NewClassAction(opts), action.NewServiceConfigAction(opts))
	return root, nil
}

// Options configures a Transformer.
type Options struct {
	// TempDir is where non seekable archives are spooled.
	TempDir string
	// DryRun transforms without writing the output.
	DryRun bool
	Logger zerolog.Logger
	// Progress, when set, receives per entry archive progress.
	Progress mobyprogress.Output
}

// Transformer applies a rule set to inputs of one kind.
type Transformer struct {
	kind   Kind
	root   action.Action
	dryRun bool
	logger zerolog.Logger
}

// New creates a Transformer for inputs of the given kind.
func New(kind Kind, rs *rules.RuleSet, opts Options) (*Transformer, error) {
	renames, err := rs.PackageRenames()
	if err != nil {
		return nil, err
	}
	sel, err := rs.Selection()
	if err != nil {
		return nil, err
	}
	root, err := NewRootAction(kind, action.Options{
		Renames:   renames,
		Selection: sel,
		TempDir:   opts.TempDir,
		Logger:    opts.Logger,
		Progress:  opts.Progress,
	})
	if err != nil {
		return nil, err
	}
	return &Transformer{
		kind:   kind,
		root:   root,
		dryRun: opts.DryRun,
		logger: opts.Logger,
	}, nil
}

// Kind returns the kind of input the transformer accepts.
func (t *Transformer) Kind() Kind {
	return t.kind
}

// TransformFile transforms the input file into the output file. The input
// must be an existing regular file and the output must not exist. A failed
// transform removes the partial output. In dry run mode the output is never
// created.
func (t *Transformer) TransformFile(input, output string) (*action.Changes, error) {
	inputPath, err := filepath.Abs(input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", terrors.ErrArgument, err)
	}
	t.logger.Info().Msgf("Input path [ %s ]", inputPath)
	outputPath, err := filepath.Abs(output)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", terrors.ErrArgument, err)
	}
	t.logger.Info().Msgf("Output path [ %s ]", outputPath)

	info, err := os.Stat(inputPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("%w: Input does not exist [ %s ]", terrors.ErrTransform, inputPath)
	case err != nil:
		return nil, fmt.Errorf("%w: %w: %w", terrors.ErrTransform, terrors.ErrIO, err)
	case info.IsDir():
		return nil, fmt.Errorf("%w: Input directories are not supported [ %s ]", terrors.ErrTransform, inputPath)
	}
	if _, err := os.Lstat(outputPath); err == nil {
		return nil, fmt.Errorf("%w: Output already exists [ %s ]", terrors.ErrTransform, outputPath)
	}

	in, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: Failed to open input [ %s ]: %w", terrors.ErrTransform, inputPath, err)
	}
	defer in.Close()

	if t.dryRun {
		t.logger.Info().Msg("Dry run: output will not be written")
		changes, err := t.Transform(inputPath, in, info.Size(), io.Discard)
		if err != nil {
			return nil, transformError(err)
		}
		return changes, nil
	}

	out, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: Failed to open output [ %s ]: %w", terrors.ErrTransform, outputPath, err)
	}
	fail := func(err error) (*action.Changes, error) {
		out.Close()
		if rmErr := os.Remove(outputPath); rmErr != nil {
			t.logger.Warn().Err(rmErr).Msgf("Failed to remove output [ %s ]", outputPath)
		}
		return nil, transformError(err)
	}

	bw := bufio.NewWriter(out)
	changes, err := t.Transform(inputPath, in, info.Size(), bw)
	if err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(fmt.Errorf("%w: %w", terrors.ErrIO, err))
	}
	if err := out.Close(); err != nil {
		return fail(fmt.Errorf("%w: %w", terrors.ErrIO, err))
	}
	return changes, nil
}

// Transform applies the root action to an input read from r and writes the
// result to w. size is the input length, or -1 when unknown.
func (t *Transformer) Transform(name string, r io.Reader, size int64, w io.Writer) (*action.Changes, error) {
	switch h := t.root.Handler().(type) {
	case action.StreamedFunc:
		return h(name, r, size, w)
	case action.BufferedFunc:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("%w: reading %s: %w", terrors.ErrIO, name, err)
		}
		out, changes, err := h(name, data)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(out); err != nil {
			return nil, fmt.Errorf("%w: writing %s: %w", terrors.ErrIO, name, err)
		}
		return changes, nil
	default:
		return nil, fmt.Errorf("action %s: unsupported handler %T", t.root.Name(), h)
	}
}

func transformError(err error) error {
	if errors.Is(err, terrors.ErrTransform) {
		return err
	}
	return fmt.Errorf("%w: %w", terrors.ErrTransform, err)
}
