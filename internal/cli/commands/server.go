package commands

import (
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/internal/cliutil"
)

// RunStatus checks that the backend answers.
func RunStatus(s *Session, argv []string) int {
	fs := s.FlagSet("status")
	if _, code, ok := s.parse(fs, argv, 0, "status"); !ok {
		return code
	}
	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}
	if err := svc.Status(ctx); err != nil {
		return s.Fail(err)
	}
	s.Message("ok (" + string(svc.Backend()) + ")")
	return 0
}

// RunMetadata prints server metadata groups.
func RunMetadata(s *Session, argv []string) int {
	fs := s.FlagSet("metadata")
	if _, code, ok := s.parse(fs, argv, 0, "metadata"); !ok {
		return code
	}
	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}
	groups, err := svc.Metadata(ctx)
	if err != nil {
		return s.Fail(err)
	}
	s.printGroups(groups)
	return 0
}

func (s *Session) printGroups(groups []storage.TableDataGroup) {
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, groups)
		return
	}
	cliutil.PrintGroups(s.Out, groups)
}

func (s *Session) printList(items []string) {
	if s.Format() == cliutil.FormatJSON {
		if items == nil {
			items = []string{}
		}
		cliutil.PrintJSON(s.Out, items)
		return
	}
	cliutil.PrintList(s.Out, items)
}
