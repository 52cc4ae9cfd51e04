// Package main provides the entry point for the trellis CLI.
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"

	"github.com/mrz1836/trellis/internal/cli"
	"github.com/mrz1836/trellis/internal/errors"
)

// Set via ldflags at build time.
//
//nolint:gochecknoglobals // build metadata
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	err := cli.Execute(context.Background(), cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	cli.CloseLogFile()

	if err != nil {
		if !stderrors.Is(err, errors.ErrJSONErrorOutput) {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			if _, action := errors.Actionable(err); action != "" {
				_, _ = fmt.Fprintf(os.Stderr, "Hint: %s\n", action)
			}
		}
		os.Exit(cli.ExitCodeForError(err))
	}
}
