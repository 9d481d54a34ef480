package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/nonibytes/dbkeeper/dbkeeper"
	"github.com/nonibytes/dbkeeper/dbkeeper/planner"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/internal/cliutil"
)

// filterFlags are shared by every command that selects documents.
type filterFlags struct {
	where  string
	chains []string
	stages []string
	skip   uint64
	limit  uint64
}

func (f *filterFlags) bind(fs *pflag.FlagSet, paging bool) {
	fs.StringVarP(&f.where, "where", "w", "", `where expression, e.g. 'age:30 OR name~"^bo"'`)
	fs.StringArrayVarP(&f.chains, "chain", "c", nil, "identifier chain k=v#k=v (repeatable, OR)")
	fs.StringArrayVarP(&f.stages, "query", "q", nil, "raw pipeline stage as JSON (repeatable)")
	if paging {
		fs.Uint64Var(&f.skip, "skip", 0, "documents to skip")
		fs.Uint64VarP(&f.limit, "limit", "l", 0, "maximum documents")
	}
}

func (f *filterFlags) empty() bool {
	return strings.TrimSpace(f.where) == "" && len(f.chains) == 0 && len(f.stages) == 0
}

func (f *filterFlags) query(fs *pflag.FlagSet, db, coll string) (storage.DocumentQuery, error) {
	q := storage.NewDocumentQuery(db, coll)
	el, err := dbkeeper.BuildFilter(f.where, f.chains, f.stages)
	if err != nil {
		return q, err
	}
	q = q.WithFilter(el)
	if fs.Lookup("skip") != nil && fs.Changed("skip") {
		q = q.WithSkip(f.skip)
	}
	if fs.Lookup("limit") != nil && fs.Changed("limit") {
		q = q.WithLimit(f.limit)
	}
	return q, nil
}

func (s *Session) printCollection(data storage.CollectionData, elapsed time.Duration) {
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, data)
		return
	}
	cliutil.PrintCollection(s.Out, data)
	s.Logger.Debug("query finished", "elapsed", elapsed)
}

func (s *Session) printDocuments(docs []storage.DocumentData) {
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, docs)
		return
	}
	fmt.Fprintf(s.Out, "%d documents\n", len(docs))
	cliutil.PrintDocuments(s.Out, docs)
}

// RunFind runs a filtered query.
func RunFind(s *Session, argv []string) int {
	fs := s.FlagSet("find")
	var f filterFlags
	var lite bool
	f.bind(fs, true)
	fs.BoolVar(&lite, "lite", false, "omit document bodies")
	args, code, ok := s.parse(fs, argv, 2, "find <database> <collection> [--where expr] [--chain k=v] [--query stage] [--skip n] [--limit n]")
	if !ok {
		return code
	}
	q, err := f.query(fs, args[0], args[1])
	if err != nil {
		return s.Fail(err)
	}

	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}
	start := time.Now()
	data, err := svc.FindQuery(ctx, q)
	if err != nil {
		return s.Fail(err)
	}
	if lite {
		data = data.Lite()
	}
	s.printCollection(data, time.Since(start))
	return 0
}

// RunFindAll lists a collection page by page, ignoring filters.
func RunFindAll(s *Session, argv []string) int {
	fs := s.FlagSet("find-all")
	var skip, limit uint64
	var lite bool
	fs.Uint64Var(&skip, "skip", 0, "documents to skip")
	fs.Uint64VarP(&limit, "limit", "l", 20, "maximum documents")
	fs.BoolVar(&lite, "lite", false, "omit document bodies")
	args, code, ok := s.parse(fs, argv, 2, "find-all <database> <collection> [--skip n] [--limit n]")
	if !ok {
		return code
	}

	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}
	start := time.Now()
	data, err := svc.FindAll(ctx, storage.NewDocumentQuery(args[0], args[1]).WithPage(skip, limit))
	if err != nil {
		return s.Fail(err)
	}
	if lite {
		data = data.Lite()
	}
	s.printCollection(data, time.Since(start))
	return 0
}

// RunGet prints the document addressed by an identifier chain.
func RunGet(s *Session, argv []string) int {
	fs := s.FlagSet("get")
	args, code, ok := s.parse(fs, argv, 3, "get <database> <collection> <k=v#k=v>")
	if !ok {
		return code
	}

	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}
	doc, err := svc.FindByChain(ctx, storage.CollectionQuery{DataBase: args[0], Collection: args[1]}, args[2])
	if err != nil {
		return s.Fail(err)
	}
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, doc)
		return 0
	}
	fmt.Fprintln(s.Out, doc.Document)
	return 0
}

// readBody returns the inline argument, or the file contents ("-" is stdin).
func readBody(inline []string, file string, stdin io.Reader) (string, error) {
	if file == "" {
		if len(inline) == 0 {
			return "", dbkeeper.NewError(dbkeeper.ErrValidation, "document body is required (argument or --file)")
		}
		return strings.Join(inline, " "), nil
	}
	var (
		b   []byte
		err error
	)
	if file == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(file)
	}
	if err != nil {
		return "", dbkeeper.Wrap(dbkeeper.ErrValidation, "read document", err)
	}
	return string(b), nil
}

// RunInsert stores one document.
func RunInsert(s *Session, argv []string) int {
	fs := s.FlagSet("insert")
	var file string
	fs.StringVarP(&file, "file", "i", "", "read the document from a file (- for stdin)")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	args := fs.Args()
	if len(args) < 2 {
		return s.Usage("usage: insert <database> <collection> [json | --file path]")
	}
	body, err := readBody(args[2:], file, s.In)
	if err != nil {
		return s.Fail(err)
	}

	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}
	doc, err := svc.Insert(ctx, storage.CollectionQuery{DataBase: args[0], Collection: args[1]}, body)
	if err != nil {
		return s.Fail(err)
	}
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, doc)
		return 0
	}
	fmt.Fprintf(s.Out, "inserted %s\n", doc.Chain())
	return 0
}

// RunUpdate replaces every selected document.
func RunUpdate(s *Session, argv []string) int {
	fs := s.FlagSet("update")
	var f filterFlags
	var file string
	f.bind(fs, false)
	fs.StringVarP(&file, "file", "i", "", "read the replacement from a file (- for stdin)")
	if err := fs.Parse(argv); err != nil {
		return 2
	}
	args := fs.Args()
	if len(args) < 2 {
		return s.Usage("usage: update <database> <collection> (--chain k=v | --where expr) [json | --file path]")
	}
	if f.empty() {
		return s.Usage("update needs --chain, --where or --query")
	}
	body, err := readBody(args[2:], file, s.In)
	if err != nil {
		return s.Fail(err)
	}
	q, err := f.query(fs, args[0], args[1])
	if err != nil {
		return s.Fail(err)
	}

	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}
	docs, err := svc.Update(ctx, q, body)
	if err != nil {
		return s.Fail(err)
	}
	s.printDocuments(docs)
	return 0
}

// RunDelete removes every selected document.
func RunDelete(s *Session, argv []string) int {
	fs := s.FlagSet("delete")
	var f filterFlags
	f.bind(fs, false)
	args, code, ok := s.parse(fs, argv, 2, "delete <database> <collection> (--chain k=v | --where expr)")
	if !ok {
		return code
	}
	if f.empty() {
		return s.Usage("delete needs --chain, --where or --query")
	}
	q, err := f.query(fs, args[0], args[1])
	if err != nil {
		return s.Fail(err)
	}

	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}
	docs, err := svc.Delete(ctx, q)
	if err != nil {
		return s.Fail(err)
	}
	for i := range docs {
		docs[i] = docs[i].Lite()
	}
	s.printDocuments(docs)
	return 0
}

// RunFilterSchema prints the leaf attributes the backend understands.
func RunFilterSchema(s *Session, argv []string) int {
	fs := s.FlagSet("filter-schema")
	if _, code, ok := s.parse(fs, argv, 0, "filter-schema"); !ok {
		return code
	}
	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}
	def, err := svc.FilterSchema(ctx)
	if err != nil {
		return s.Fail(err)
	}
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, def)
		return 0
	}
	for _, a := range def.Attributes {
		applies := make([]string, 0, len(a.Applies))
		for _, c := range a.Applies {
			applies = append(applies, c.String())
		}
		fmt.Fprintf(s.Out, "%s\t%s (%s)\n", a.Code, a.Description, strings.Join(applies, ", "))
	}
	return 0
}

// RunDocumentSchema prints the comments and fields of new documents.
func RunDocumentSchema(s *Session, argv []string) int {
	fs := s.FlagSet("doc-schema")
	args, code, ok := s.parse(fs, argv, 2, "doc-schema <database> <collection>")
	if !ok {
		return code
	}
	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}
	schema, err := svc.Schema(ctx, storage.CollectionQuery{DataBase: args[0], Collection: args[1]})
	if err != nil {
		return s.Fail(err)
	}
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, schema)
		return 0
	}
	for _, c := range schema.Comments {
		fmt.Fprintln(s.Out, c)
	}
	return 0
}

// RunExplain compiles a filter without connecting and prints the pipeline.
func RunExplain(s *Session, argv []string) int {
	fs := s.FlagSet("explain")
	var f filterFlags
	f.bind(fs, false)
	if _, code, ok := s.parse(fs, argv, 0, "explain [--where expr] [--chain k=v] [--query stage]"); !ok {
		return code
	}
	el, err := dbkeeper.BuildFilter(f.where, f.chains, f.stages)
	if err != nil {
		return s.Fail(err)
	}
	out, err := planner.CompileExplain(el)
	if err != nil {
		return s.Fail(err)
	}
	stages, err := planner.StagesJSON(out.Stages)
	if err != nil {
		return s.Fail(err)
	}
	if s.Format() == cliutil.FormatJSON {
		cliutil.PrintJSON(s.Out, map[string]any{"steps": out.ExplainSteps, "stages": stages})
		return 0
	}
	fmt.Fprintln(s.Out, "Steps:")
	for _, step := range out.ExplainSteps {
		fmt.Fprintf(s.Out, "  %s\n", step)
	}
	fmt.Fprintln(s.Out, "Pipeline:")
	for _, st := range stages {
		fmt.Fprintf(s.Out, "  %s\n", st)
	}
	return 0
}
