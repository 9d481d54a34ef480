package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/chzyer/readline"
	"github.com/google/shlex"

	"github.com/nonibytes/dbkeeper/internal/cli/commands"
)

func prompt(s *commands.Session) string {
	switch {
	case s.Opts.Service != "":
		return s.Opts.Service + "> "
	case s.Opts.URI != "":
		return s.Opts.Backend + "> "
	default:
		return "dbkeeper> "
	}
}

func runShell(s *commands.Session, argv []string) int {
	fs := s.FlagSet("shell")
	var history string
	if s.Opts.KeepServices {
		history = filepath.Join(s.Opts.CacheDir, "history")
	}
	fs.StringVar(&history, "history", history, "history file")
	if err := fs.Parse(argv); err != nil {
		return 2
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt(s),
		HistoryFile:     history,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          s.Out,
		Stderr:          s.Err,
	})
	if err != nil {
		return s.Fail(err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				fmt.Fprintln(s.Err, "Use 'exit' or 'quit' to leave the shell.")
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return 0
		}
		if err != nil {
			return s.Fail(err)
		}
		if runLine(s, line) {
			return 0
		}
		rl.SetPrompt(prompt(s))
	}
}

// runLine executes one shell line and reports whether the shell should stop.
// Errors are printed and the shell continues.
func runLine(s *commands.Session, line string) bool {
	args, err := shlex.Split(line)
	if err != nil {
		fmt.Fprintln(s.Err, err)
		return false
	}
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "exit", "quit":
		return true
	case "help":
		PrintShellHelp(s.Out)
		PrintRootHelp(s.Out)
	case "shell":
		fmt.Fprintln(s.Err, "already in a shell")
	case "use":
		if len(args) < 2 || len(args) > 3 {
			fmt.Fprintln(s.Err, "usage: use <service> [password]")
			return false
		}
		s.Reset(context.Background())
		s.Opts.Service = args[1]
		s.Opts.Password = ""
		if len(args) == 3 {
			s.Opts.Password = args[2]
		}
	case "connect":
		if len(args) != 3 {
			fmt.Fprintln(s.Err, "usage: connect <backend> <uri>")
			return false
		}
		s.Reset(context.Background())
		s.Opts.Service = ""
		s.Opts.Backend = args[1]
		s.Opts.URI = args[2]
	default:
		dispatch(s, args)
	}
	return false
}
