// Command 4n6timeliner fuses the CSV exports of forensic tools (EZ Tools,
// Magnet AXIOM, Hayabusa, Chainsaw, Nirsoft) into one normalized timeline.
//
// Usage
//
// Build a timeline from a case folder
//
//	4n6timeliner run --input /cases/host1 --output /cases/host1/out
//
// Preview which exports would be picked up
//
//	4n6timeliner preview --input /cases/host1
//
// Store the timeline in SQLite and query it
//
//	4n6timeliner run --input /cases/host1 --format sqlite --output host1.db
//	4n6timeliner query host1.db --where ArtifactName=Prefetch --where "DataPath~powershell"
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
)

// Version is the application version, overridden at build time.
var Version = "0.1.0"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}

// execute runs the CLI and maps the outcome to an exit code: 0 when the
// command succeeded, 1 otherwise, including a run that exported no rows.
func execute(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := newRootCommand(NewApp(stdout, stderr))
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errNoRows) {
			fmt.Fprintln(stderr, "Error:", err)
		}
		return 1
	}
	return 0
}
