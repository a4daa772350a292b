package action

import (
	"archive/zip"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"strings"

	"github.com/pcj/mobyprogress"
	"github.com/rs/zerolog"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
	"github.com/stackb/jvm-transformer/pkg/selection"
)

// Archive action names.
const (
	ZipActionName = "Zip Action"
	JarActionName = "Jar Action"
	WarActionName = "War Action"
	RarActionName = "Rar Action"
	EarActionName = "Ear Action"
)

// ContainerKind describes an archive type.
type ContainerKind struct {
	Name      string
	Extension string
}

// ContainerKinds lists the archive types, outermost first. Registering
// actions in this order makes a war inside an ear, or a jar inside a war,
// recurse.
var ContainerKinds = []ContainerKind{
	{EarActionName, ".ear"},
	{WarActionName, ".war"},
	{RarActionName, ".rar"},
	{JarActionName, ".jar"},
	{ZipActionName, ".zip"},
}

// ContainerAction transforms a zip based archive entry by entry, handing
// each entry to the action of a shared Composite that accepts it.
type ContainerAction struct {
	kind      ContainerKind
	composite *Composite
	selection *selection.Rule
	tempDir   string
	logger    zerolog.Logger
	progress  mobyprogress.Output
}

// NewContainerAction creates a ContainerAction for the given kind that
// dispatches entries through composite.
func NewContainerAction(kind ContainerKind, composite *Composite, opts Options) *ContainerAction {
	return &ContainerAction{
		kind:      kind,
		composite: composite,
		selection: opts.Selection,
		tempDir:   opts.TempDir,
		logger:    opts.Logger.With().Str("action", kind.Name).Logger(),
		progress:  opts.Progress,
	}
}

// Name implements Action.
func (a *ContainerAction) Name() string {
	return a.kind.Name
}

// Accepts implements Action.
func (a *ContainerAction) Accepts(resourceName string) bool {
	return strings.HasSuffix(strings.ToLower(resourceName), a.kind.Extension)
}

// Handler implements Action.
func (a *ContainerAction) Handler() Handler {
	return StreamedFunc(a.Apply)
}

// Composite returns the registry entries are dispatched through.
func (a *ContainerAction) Composite() *Composite {
	return a.composite
}

// Apply transforms the archive read from r into w. Inputs that implement
// io.ReaderAt are read in place; anything else is first spooled to a
// temporary file. Entries are written in input order. A failure is reported
// as an *errors.ContainerError.
func (a *ContainerAction) Apply(name string, r io.Reader, size int64, w io.Writer) (*Changes, error) {
	ra, size, cleanup, err := a.readerAt(r, size)
	if err != nil {
		return nil, &terrors.ContainerError{Container: name, Cause: err}
	}
	defer cleanup()

	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, &terrors.ContainerError{Container: name, Cause: fmt.Errorf("%w: %w", terrors.ErrMalformedInput, err)}
	}

	a.logger.Debug().Str("container", name).Int("entries", len(zr.File)).Msg("Processing archive")

	zw := zip.NewWriter(w)
	cc := &ContainerChanges{}
	seen := make(map[string]bool, len(zr.File))
	var prev string
	for i, f := range zr.File {
		entry, err := a.entry(f, ra, zw, seen)
		if err != nil {
			return nil, &terrors.ContainerError{Container: name, Entry: f.Name, Previous: prev, Cause: err}
		}
		cc.Entries = append(cc.Entries, entry)
		prev = f.Name
		a.writeProgress(name, i+1, len(zr.File))
	}
	if err := zw.SetComment(zr.Comment); err != nil {
		return nil, &terrors.ContainerError{Container: name, Previous: prev, Cause: err}
	}
	if err := zw.Close(); err != nil {
		return nil, &terrors.ContainerError{Container: name, Previous: prev, Cause: fmt.Errorf("%w: %w", terrors.ErrIO, err)}
	}

	return &Changes{
		Action:         a.kind.Name,
		InputResource:  name,
		OutputResource: name,
		Container:      cc,
	}, nil
}

func (a *ContainerAction) writeProgress(name string, current, total int) {
	if a.progress == nil {
		return
	}
	if err := a.progress.WriteProgress(mobyprogress.Progress{
		ID:         name,
		Action:     "transforming",
		Current:    int64(current),
		Total:      int64(total),
		Units:      "entries",
		LastUpdate: current == total,
	}); err != nil {
		a.logger.Debug().Err(err).Msg("Progress update failed")
	}
}

func (a *ContainerAction) readerAt(r io.Reader, size int64) (io.ReaderAt, int64, func(), error) {
	if ra, ok := r.(io.ReaderAt); ok && size >= 0 {
		return ra, size, func() {}, nil
	}
	tmp, err := os.CreateTemp(a.tempDir, "transformer-*.zip")
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%w: %w", terrors.ErrIO, err)
	}
	cleanup := func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}
	n, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return nil, 0, nil, fmt.Errorf("%w: spooling archive: %w", terrors.ErrIO, err)
	}
	return tmp, n, cleanup, nil
}

func (a *ContainerAction) entry(f *zip.File, ra io.ReaderAt, zw *zip.Writer, seen map[string]bool) (Entry, error) {
	e := Entry{Name: f.Name, OutputName: f.Name}

	action := a.composite.AcceptAction(f.Name)
	if action == nil || !a.selection.Select(f.Name) {
		if action == nil {
			e.Disposition = Unaccepted
			a.logger.Debug().Msgf("Resource [ %s ]: Not accepted", f.Name)
		} else {
			e.Disposition = Unselected
			e.Action = action.Name()
			a.logger.Debug().Msgf("Resource [ %s ] Action [ %s ]: Accepted but not selected", f.Name, action.Name())
		}
		if a.duplicate(&e, seen) {
			return e, nil
		}
		return e, copyEntry(zw, f)
	}

	e.Action = action.Name()
	switch h := action.Handler().(type) {
	case StreamedFunc:
		if a.duplicate(&e, seen) {
			return e, nil
		}
		changes, err := a.streamEntry(h, f, ra, zw)
		if err != nil {
			return e, err
		}
		e.Changes = changes
	case BufferedFunc:
		if err := a.bufferEntry(h, f, zw, &e, seen); err != nil {
			return e, err
		}
		if e.Disposition == Duplicate {
			return e, nil
		}
	default:
		return e, fmt.Errorf("action %s: unsupported handler %T", action.Name(), h)
	}

	if e.Changes.HasChanges() {
		e.Disposition = Changed
	} else {
		e.Disposition = Unchanged
	}
	a.logger.Debug().Msgf("Resource [ %s ] Action [ %s ]: Changes [ %t ]", f.Name, e.Action, e.Disposition == Changed)
	return e, nil
}

// duplicate records e as a duplicate when its output name was already
// written. Otherwise the name is claimed.
func (a *ContainerAction) duplicate(e *Entry, seen map[string]bool) bool {
	if seen[e.OutputName] {
		a.logger.Warn().Msgf("Resource [ %s ]: Duplicate entry [ %s ] dropped", e.Name, e.OutputName)
		e.Disposition = Duplicate
		e.Changes = nil
		return true
	}
	seen[e.OutputName] = true
	return false
}

func (a *ContainerAction) streamEntry(h StreamedFunc, f *zip.File, ra io.ReaderAt, zw *zip.Writer) (*Changes, error) {
	var src io.Reader
	if f.Method == zip.Store {
		offset, err := f.DataOffset()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", terrors.ErrIO, err)
		}
		src = io.NewSectionReader(ra, offset, int64(f.CompressedSize64))
	} else {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", terrors.ErrIO, err)
		}
		defer rc.Close()
		src = rc
	}

	w, err := zw.CreateHeader(outputHeader(f, f.Name, zip.Deflate))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", terrors.ErrIO, err)
	}
	return h(f.Name, src, int64(f.UncompressedSize64), w)
}

func (a *ContainerAction) bufferEntry(h BufferedFunc, f *zip.File, zw *zip.Writer, e *Entry, seen map[string]bool) error {
	data, err := readEntry(f)
	if err != nil {
		return err
	}
	out, changes, err := h(f.Name, data)
	if err != nil {
		return err
	}

	e.OutputName = changes.OutputResource
	if a.duplicate(e, seen) {
		return nil
	}
	e.Changes = changes
	if !changes.HasChanges() {
		return copyEntry(zw, f)
	}
	if f.Method == zip.Store {
		return writeStored(zw, f, changes.OutputResource, out)
	}
	w, err := zw.CreateHeader(outputHeader(f, changes.OutputResource, f.Method))
	if err != nil {
		return fmt.Errorf("%w: %w", terrors.ErrIO, err)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("%w: %w", terrors.ErrIO, err)
	}
	return nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", terrors.ErrIO, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", terrors.ErrIO, err)
	}
	return data, nil
}

// copyEntry copies an entry without decompressing it, keeping its method,
// data, CRC and sizes.
func copyEntry(zw *zip.Writer, f *zip.File) error {
	if err := zw.Copy(f); err != nil {
		return fmt.Errorf("%w: %w", terrors.ErrIO, err)
	}
	return nil
}

// writeStored writes an uncompressed entry with its sizes and CRC in the
// local header, since stored entries followed by a data descriptor cannot
// be read by every zip reader.
func writeStored(zw *zip.Writer, f *zip.File, name string, data []byte) error {
	fh := f.FileHeader
	fh.Name = name
	fh.Flags &^= 0x8
	fh.CRC32 = crc32.ChecksumIEEE(data)
	fh.CompressedSize64 = uint64(len(data))
	fh.UncompressedSize64 = uint64(len(data))
	w, err := zw.CreateRaw(&fh)
	if err != nil {
		return fmt.Errorf("%w: %w", terrors.ErrIO, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: %w", terrors.ErrIO, err)
	}
	return nil
}

func outputHeader(f *zip.File, name string, method uint16) *zip.FileHeader {
	return &zip.FileHeader{
		Name:           name,
		Comment:        f.Comment,
		NonUTF8:        f.NonUTF8,
		Method:         method,
		Modified:       f.Modified,
		ExternalAttrs:  f.ExternalAttrs,
		CreatorVersion: f.CreatorVersion,
	}
}
