package commands

import (
	"fmt"

	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/internal/cliutil"
)

// RunDataBase: list, exists, create, drop, metadata.
func RunDataBase(s *Session, argv []string) int {
	if len(argv) == 0 {
		return s.Usage("usage: db list|exists|create|drop|metadata [name]")
	}
	sub, rest := argv[0], argv[1:]
	switch sub {
	case "list", "ls", "exists", "create", "drop", "metadata":
	default:
		return s.Usage("unknown db subcommand: %s", sub)
	}

	fs := s.FlagSet("db " + sub)
	want := 1
	if sub == "list" || sub == "ls" {
		want = 0
	}
	args, code, ok := s.parse(fs, rest, want, "db "+sub+" <name>")
	if !ok {
		return code
	}

	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}

	switch sub {
	case "list", "ls":
		names, err := svc.DataBaseFindAll(ctx)
		if err != nil {
			return s.Fail(err)
		}
		s.printList(names)
	case "exists":
		exists, err := svc.DataBaseExists(ctx, storage.DataBaseQuery{DataBase: args[0]})
		if err != nil {
			return s.Fail(err)
		}
		if s.Format() == cliutil.FormatJSON {
			cliutil.PrintJSON(s.Out, map[string]bool{"exists": exists})
		} else {
			fmt.Fprintln(s.Out, exists)
		}
		if !exists {
			return 1
		}
	case "create":
		msg, err := svc.DataBaseCreate(ctx, storage.GenerateDataBaseQuery{DataBase: args[0]})
		if err != nil {
			return s.Fail(err)
		}
		s.Message(msg)
	case "drop":
		msg, err := svc.DataBaseDrop(ctx, storage.GenerateDataBaseQuery{DataBase: args[0]})
		if err != nil {
			return s.Fail(err)
		}
		s.Message(msg)
	case "metadata":
		groups, err := svc.DataBaseMetadata(ctx, storage.DataBaseQuery{DataBase: args[0]})
		if err != nil {
			return s.Fail(err)
		}
		s.printGroups(groups)
	}
	return 0
}
