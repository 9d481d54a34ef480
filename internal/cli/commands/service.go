package commands

import (
	"fmt"
	"time"

	"github.com/nonibytes/dbkeeper/dbkeeper"
	"github.com/nonibytes/dbkeeper/internal/cliutil"
)

// RunService manages the service catalog: add, list, remove.
func RunService(s *Session, argv []string) int {
	if len(argv) == 0 {
		return s.Usage("usage: service add|list|remove ...")
	}
	switch argv[0] {
	case "add":
		return runServiceAdd(s, argv[1:])
	case "list", "ls":
		return runServiceList(s, argv[1:])
	case "remove", "rm":
		return runServiceRemove(s, argv[1:])
	default:
		return s.Usage("unknown service subcommand: %s", argv[0])
	}
}

func runServiceAdd(s *Session, argv []string) int {
	fs := s.FlagSet("service add")
	var owner, password, backend, uri string
	fs.StringVar(&owner, "owner", "", "owner of the service")
	fs.StringVarP(&password, "password", "p", "", "password guarding the service")
	fs.StringVarP(&backend, "backend", "b", s.Opts.Backend, "backend: mongodb|sqlite|postgres")
	fs.StringVarP(&uri, "uri", "u", "", "connection uri")
	args, code, ok := s.parse(fs, argv, 1, "service add <name> --password pw --backend b --uri uri")
	if !ok {
		return code
	}
	if uri == "" {
		return s.Usage("missing --uri")
	}
	b, err := dbkeeper.ParseBackend(backend)
	if err != nil {
		return s.Fail(err)
	}
	reg, err := s.Catalog()
	if err != nil {
		return s.Fail(err)
	}
	e, err := reg.Add(args[0], owner, password, b, uri)
	if err != nil {
		return s.Fail(err)
	}
	s.Logger.Info("service added", "name", e.Name, "backend", e.Backend, "persisted", reg.Path() != "")
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, e.Lite())
		return 0
	}
	fmt.Fprintf(s.Out, "service %s added (%s)\n", e.Name, e.Backend)
	return 0
}

func runServiceList(s *Session, argv []string) int {
	fs := s.FlagSet("service list")
	if _, code, ok := s.parse(fs, argv, 0, "service list"); !ok {
		return code
	}
	reg, err := s.Catalog()
	if err != nil {
		return s.Fail(err)
	}
	services := reg.List()
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, services)
		return 0
	}
	if len(services) == 0 {
		fmt.Fprintln(s.Out, "(none)")
		return 0
	}
	for _, l := range services {
		e, _ := reg.Get(l.Name)
		fmt.Fprintf(s.Out, "- %s\t%s\t%s\n", l.Name, l.Backend, e.Created.Local().Format(time.DateTime))
	}
	return 0
}

func runServiceRemove(s *Session, argv []string) int {
	fs := s.FlagSet("service remove")
	var password string
	fs.StringVarP(&password, "password", "p", "", "service password")
	args, code, ok := s.parse(fs, argv, 1, "service remove <name> --password pw")
	if !ok {
		return code
	}
	reg, err := s.Catalog()
	if err != nil {
		return s.Fail(err)
	}
	e, err := reg.Remove(args[0], password)
	if err != nil {
		return s.Fail(err)
	}
	if s.Opts.Service == e.Name {
		ctx, cancel := s.Context()
		defer cancel()
		s.Reset(ctx)
	}
	s.Message(fmt.Sprintf("service %s removed", e.Name))
	return 0
}
