// Command transformer renames the packages referenced by Java class files
// and the archives that contain them.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	terrors "github.com/stackb/jvm-transformer/pkg/errors"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command and returns its exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return execute(cmd, stderr)
}

// execute runs cmd and maps its outcome to an exit code. Errors cobra
// returns before the command runs, such as a missing required flag, are
// argument errors. A panic is a transform failure.
func execute(cmd *cobra.Command, stderr io.Writer) (code int) {
	defer func() {
		if r := recover(); r != nil {
			code = ExitTransformError
			fmt.Fprintf(stderr, "%s: %v\n", exitMessage(code), r)
		}
	}()

	err := cmd.Execute()
	if err != nil && !categorized(err) {
		err = fmt.Errorf("%w: %w", terrors.ErrArgument, err)
	}
	code = ExitCodeFromError(err)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", exitMessage(code), err)
		if code == ExitArgumentError {
			fmt.Fprint(stderr, cmd.UsageString())
		}
	}
	return code
}
