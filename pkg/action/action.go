// Package action implements the transformations applied to resources: class
// files, service configuration files and the archives that contain them.
package action

import (
	"io"

	"github.com/pcj/mobyprogress"
	"github.com/rs/zerolog"

	"github.com/stackb/jvm-transformer/pkg/rename"
	"github.com/stackb/jvm-transformer/pkg/selection"
)

// Action transforms resources of one type.
type Action interface {
	// Name identifies the action in change records and logs.
	Name() string
	// Accepts reports whether the action handles the named resource.
	Accepts(resourceName string) bool
	// Handler returns how the action consumes its input.
	Handler() Handler
}

// Handler is how an action consumes its input. It is either a BufferedFunc
// or a StreamedFunc.
type Handler interface {
	isHandler()
}

// BufferedFunc transforms a resource that is read fully into memory. The
// output resource name is reported in the returned changes.
type BufferedFunc func(name string, data []byte) ([]byte, *Changes, error)

// StreamedFunc transforms a resource read from r and written to w without
// holding it in memory. size is the input length, or -1 when unknown. The
// output resource keeps the input name.
type StreamedFunc func(name string, r io.Reader, size int64, w io.Writer) (*Changes, error)

func (BufferedFunc) isHandler() {}
func (StreamedFunc) isHandler() {}

// Options holds the inputs shared by every action of a transform.
type Options struct {
	// Renames is the set of package renames to apply.
	Renames *rename.PackageRenames
	// Selection decides which archive entries are transformed. Nil selects
	// everything.
	Selection *selection.Rule
	// TempDir is where archives that cannot be read in place are spooled.
	// Empty means the default temporary directory.
	TempDir string
	// Logger receives progress and change messages.
	Logger zerolog.Logger
	// Progress, when set, receives a per entry progress update for every
	// archive.
	Progress mobyprogress.Output
}
