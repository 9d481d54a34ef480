package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/nonibytes/dbkeeper/dbkeeper"
	"github.com/nonibytes/dbkeeper/dbkeeper/catalog"
	"github.com/nonibytes/dbkeeper/internal/cliopt"
	"github.com/nonibytes/dbkeeper/internal/cliutil"
)

const requestTimeout = 2 * time.Minute

// OpenFunc connects the service selected by the global options.
type OpenFunc func(ctx context.Context, g cliopt.GlobalOptions, reg *catalog.Registry, logger *slog.Logger) (*dbkeeper.Service, error)

// Session is shared by every command of one process or shell.
type Session struct {
	Opts   cliopt.GlobalOptions
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Logger *slog.Logger

	open    OpenFunc
	svc     *dbkeeper.Service
	catalog *catalog.Registry
}

func NewSession(g cliopt.GlobalOptions, out, errOut io.Writer, logger *slog.Logger, open OpenFunc) *Session {
	return &Session{Opts: g, In: os.Stdin, Out: out, Err: errOut, Logger: logger, open: open}
}

// Catalog returns the service registry, loading it from the cache directory
// when services are kept.
func (s *Session) Catalog() (*catalog.Registry, error) {
	if s.catalog != nil {
		return s.catalog, nil
	}
	if !s.Opts.KeepServices {
		s.catalog = catalog.New()
		return s.catalog, nil
	}
	reg, err := catalog.Load(s.Opts.CacheDir)
	if err != nil {
		return nil, err
	}
	s.catalog = reg
	return reg, nil
}

// Service connects on first use and reuses the connection afterwards.
func (s *Session) Service(ctx context.Context) (*dbkeeper.Service, error) {
	if s.svc != nil {
		return s.svc, nil
	}
	reg, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	svc, err := s.open(ctx, s.Opts, reg, s.Logger)
	if err != nil {
		return nil, err
	}
	s.svc = svc
	return svc, nil
}

// Reset drops the current connection so the next command reconnects with
// the current options.
func (s *Session) Reset(ctx context.Context) {
	if s.svc == nil {
		return
	}
	if err := s.svc.Close(ctx); err != nil {
		s.Logger.Warn("close connection", "err", err)
	}
	s.svc = nil
}

func (s *Session) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Reset(ctx)
}

func (s *Session) Context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

func (s *Session) Format() cliutil.OutputFormat {
	return cliutil.ParseOutputFormat(s.Opts.Format, s.Out)
}

// Fail prints err and returns the exit code for runtime failures.
func (s *Session) Fail(err error) int {
	fmt.Fprintln(s.Err, err)
	return 1
}

// Usage prints a usage problem and returns the exit code for bad arguments.
func (s *Session) Usage(format string, args ...any) int {
	fmt.Fprintf(s.Err, format+"\n", args...)
	return 2
}

func (s *Session) FlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(s.Err)
	return fs
}

// Message prints a backend message, or {"message": ...} as json.
func (s *Session) Message(msg string) {
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, map[string]string{"message": msg})
		return
	}
	fmt.Fprintln(s.Out, msg)
}

// parse parses argv and checks the positional count.
func (s *Session) parse(fs *pflag.FlagSet, argv []string, want int, usage string) ([]string, int, bool) {
	if err := fs.Parse(argv); err != nil {
		if err == pflag.ErrHelp {
			return nil, 0, false
		}
		return nil, 2, false
	}
	args := fs.Args()
	if len(args) != want {
		return nil, s.Usage("usage: %s", usage), false
	}
	return args, 0, true
}
