package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/nonibytes/dbkeeper/internal/cli/commands"
	"github.com/nonibytes/dbkeeper/internal/cliopt"
	"github.com/nonibytes/dbkeeper/internal/cliutil"
)

// Execute runs the CLI and returns an exit code.
func Execute(argv []string) int {
	return run(argv, os.Stdout, os.Stderr, os.LookupEnv)
}

func run(argv []string, out, errOut io.Writer, lookup func(string) (string, bool)) int {
	globalFS := pflag.NewFlagSet("dbkeeper", pflag.ContinueOnError)
	globalFS.SetOutput(errOut)
	globalFS.SetInterspersed(false)
	globalFS.Usage = func() { PrintRootHelp(errOut) }
	flags := cliopt.DefaultGlobalOptions()
	cliopt.BindGlobalFlags(globalFS, &flags)

	if err := globalFS.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		// pflag already printed the error
		return 2
	}

	g, err := cliopt.Resolve(globalFS, flags, lookup)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	logger, err := cliutil.NewLogger(errOut, g.LogLevel)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	args := globalFS.Args()
	if len(args) == 0 {
		PrintRootHelp(out)
		return 0
	}

	s := commands.NewSession(g, out, errOut, logger, openService)
	defer s.Close()
	if args[0] == "shell" {
		return runShell(s, args[1:])
	}
	return dispatch(s, args)
}

// dispatch routes one command line. It serves both the process arguments
// and every shell line.
func dispatch(s *commands.Session, args []string) int {
	verb := args[0]
	rest := args[1:]

	switch verb {
	case "--help", "-h", "help":
		PrintRootHelp(s.Out)
		return 0
	case "service":
		return commands.RunService(s, rest)
	case "status":
		return commands.RunStatus(s, rest)
	case "metadata":
		return commands.RunMetadata(s, rest)
	case "db":
		return commands.RunDataBase(s, rest)
	case "collection", "coll":
		return commands.RunCollection(s, rest)
	case "find":
		return commands.RunFind(s, rest)
	case "find-all":
		return commands.RunFindAll(s, rest)
	case "get":
		return commands.RunGet(s, rest)
	case "insert":
		return commands.RunInsert(s, rest)
	case "update":
		return commands.RunUpdate(s, rest)
	case "delete":
		return commands.RunDelete(s, rest)
	case "filter-schema":
		return commands.RunFilterSchema(s, rest)
	case "doc-schema":
		return commands.RunDocumentSchema(s, rest)
	case "explain":
		return commands.RunExplain(s, rest)
	default:
		fmt.Fprintf(s.Err, "unknown command: %s\n\n", verb)
		PrintRootHelp(s.Err)
		return 2
	}
}
