package commands

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nonibytes/dbkeeper/dbkeeper"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
	"github.com/nonibytes/dbkeeper/internal/cliutil"
)

var collectionArity = map[string]int{
	"list":     1,
	"ls":       1,
	"exists":   2,
	"create":   2,
	"drop":     2,
	"rename":   3,
	"info":     2,
	"metadata": 2,
	"export":   2,
	"import":   2,
	"actions":  2,
	"action":   3,
	"exec":     3,
	"schema":   0,
}

// RunCollection covers collection lifecycle, import/export and actions.
func RunCollection(s *Session, argv []string) int {
	if len(argv) == 0 {
		return s.Usage("usage: collection list|exists|create|drop|rename|info|metadata|export|import|actions|action|exec|schema ...")
	}
	sub, rest := argv[0], argv[1:]
	want, known := collectionArity[sub]
	if !known {
		return s.Usage("unknown collection subcommand: %s", sub)
	}

	fs := s.FlagSet("collection " + sub)
	var (
		indexes []string
		file    string
		rows    []string
		raw     string
	)
	switch sub {
	case "create":
		fs.StringArrayVarP(&indexes, "index", "x", nil, "index field[:asc|:desc][:unique] (repeatable)")
	case "export":
		fs.StringVarP(&file, "output", "o", "", "write to a file instead of stdout")
	case "import":
		fs.StringVarP(&file, "file", "i", "-", "JSON array or one document per line (- for stdin)")
	case "exec":
		fs.StringArrayVar(&rows, "row", nil, "form row FORM:CODE=value,CODE=value (repeatable)")
		fs.StringVar(&raw, "json", "", "full action as JSON")
	}
	args, code, ok := s.parse(fs, rest, want, "collection "+sub+" <database> <collection> ...")
	if !ok {
		return code
	}

	ctx, cancel := s.Context()
	defer cancel()
	svc, err := s.Service(ctx)
	if err != nil {
		return s.Fail(err)
	}

	if sub == "list" || sub == "ls" {
		names, err := svc.CollectionFindAll(ctx, storage.DataBaseQuery{DataBase: args[0]})
		if err != nil {
			return s.Fail(err)
		}
		s.printList(names)
		return 0
	}
	if sub == "schema" {
		def, err := svc.CollectionAcceptSchema(ctx)
		if err != nil {
			return s.Fail(err)
		}
		cliutil.PrintJSON(s.Out, def)
		return 0
	}

	cq := storage.CollectionQuery{DataBase: args[0], Collection: args[1]}
	switch sub {
	case "exists":
		exists, err := svc.CollectionExists(ctx, cq)
		if err != nil {
			return s.Fail(err)
		}
		fmt.Fprintln(s.Out, exists)
		if !exists {
			return 1
		}
	case "create":
		fields, err := ParseIndexSpecs(indexes)
		if err != nil {
			return s.Fail(err)
		}
		q := cq.Generate()
		q.Fields = fields
		msg, err := svc.CollectionCreate(ctx, q)
		if err != nil {
			return s.Fail(err)
		}
		s.Message(msg)
	case "drop":
		msg, err := svc.CollectionDrop(ctx, cq.Generate())
		if err != nil {
			return s.Fail(err)
		}
		s.Message(msg)
	case "rename":
		msg, err := svc.CollectionRename(ctx, cq, args[2])
		if err != nil {
			return s.Fail(err)
		}
		s.Message(msg)
	case "info":
		tables, err := svc.CollectionInformation(ctx, cq)
		if err != nil {
			return s.Fail(err)
		}
		if s.Format() == cliutil.FormatJSON {
			cliutil.PrintJSON(s.Out, tables)
		} else {
			cliutil.PrintTables(s.Out, tables)
		}
	case "metadata":
		groups, err := svc.CollectionMetadata(ctx, cq)
		if err != nil {
			return s.Fail(err)
		}
		s.printGroups(groups)
	case "export":
		docs, err := svc.CollectionExport(ctx, cq)
		if err != nil {
			return s.Fail(err)
		}
		if err := s.export(docs, file); err != nil {
			return s.Fail(err)
		}
	case "import":
		docs, err := s.readDocuments(file)
		if err != nil {
			return s.Fail(err)
		}
		msg, err := svc.CollectionImport(ctx, cq, docs)
		if err != nil {
			return s.Fail(err)
		}
		s.Message(msg)
	case "actions":
		defs, err := svc.CollectionActions(ctx, cq)
		if err != nil {
			return s.Fail(err)
		}
		if s.Format() == cliutil.FormatJSON {
			cliutil.PrintJSON(s.Out, defs)
			return 0
		}
		for _, d := range defs {
			fmt.Fprintf(s.Out, "- %s\t%s\n", d.Action, d.Title)
		}
	case "action":
		def, err := svc.CollectionAction(ctx, cq, args[2])
		if err != nil {
			return s.Fail(err)
		}
		if def == nil {
			return s.Fail(dbkeeper.NewError(dbkeeper.ErrNotFound, storage.MsgActionUnknown))
		}
		cliutil.PrintJSON(s.Out, def)
	case "exec":
		action, err := ParseAction(args[2], rows, raw)
		if err != nil {
			return s.Fail(err)
		}
		msg, err := svc.CollectionExecuteAction(ctx, cq, action)
		if err != nil {
			return s.Fail(err)
		}
		s.Message(msg)
	}
	return 0
}

// ParseIndexSpecs turns field[:asc|:desc][:unique] specs into INDEXED
// fields. Indexes are not unique unless asked for.
func ParseIndexSpecs(specs []string) ([]storage.FieldData, error) {
	fields := make([]storage.FieldData, 0, len(specs))
	for i, spec := range specs {
		parts := strings.Split(spec, ":")
		name := strings.TrimSpace(parts[0])
		if name == "" {
			return nil, dbkeeper.NewError(dbkeeper.ErrValidation, fmt.Sprintf("index spec %q has no field", spec))
		}
		direction, unique := "1", "false"
		for _, opt := range parts[1:] {
			switch strings.ToLower(strings.TrimSpace(opt)) {
			case "asc", "1":
				direction = "1"
			case "desc", "-1":
				direction = "-1"
			case "unique":
				unique = "true"
			default:
				return nil, dbkeeper.NewError(dbkeeper.ErrValidation, fmt.Sprintf("index spec %q: unknown option %q", spec, opt))
			}
		}
		fields = append(fields, storage.FieldData{
			Order: i,
			Code:  storage.FieldIndexed,
			Value: name,
			Attributes: []storage.FieldAttribute{
				{Key: storage.FieldUnique, Value: unique},
				{Key: storage.FieldDirection, Value: direction},
			},
		})
	}
	return fields, nil
}

// ParseAction builds an action from --row specs, or decodes raw when set.
// Every row spec is FORM:CODE=value[,CODE=value...]; rows of the same form
// accumulate in order.
func ParseAction(code string, rows []string, raw string) (storage.Action, error) {
	if raw != "" {
		var a storage.Action
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return storage.Action{}, dbkeeper.Wrap(dbkeeper.ErrInvalidJSON, "invalid action", err)
		}
		if a.Action == "" {
			a.Action = code
		}
		return a, nil
	}

	a := storage.Action{Action: code}
	index := make(map[string]int)
	for _, spec := range rows {
		form, body, ok := strings.Cut(spec, ":")
		if !ok || form == "" {
			return storage.Action{}, dbkeeper.NewError(dbkeeper.ErrValidation, fmt.Sprintf("row %q must look like FORM:CODE=value", spec))
		}
		var row []storage.FormField
		for _, pair := range strings.Split(body, ",") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok || k == "" {
				return storage.Action{}, dbkeeper.NewError(dbkeeper.ErrValidation, fmt.Sprintf("row %q: %q is not CODE=value", spec, pair))
			}
			row = append(row, storage.FormField{Code: strings.TrimSpace(k), Value: v})
		}
		i, seen := index[form]
		if !seen {
			i = len(a.Forms)
			index[form] = i
			a.Forms = append(a.Forms, storage.ActionForm{Code: form})
		}
		a.Forms[i].Fields = append(a.Forms[i].Fields, row)
	}
	return a, nil
}

// export writes the documents as one JSON array.
func (s *Session) export(docs []storage.DocumentData, file string) error {
	bodies := make([]json.RawMessage, 0, len(docs))
	for _, d := range docs {
		bodies = append(bodies, json.RawMessage(d.Document))
	}
	b, err := json.MarshalIndent(bodies, "", "  ")
	if err != nil {
		return dbkeeper.Wrap(dbkeeper.ErrInvalidJSON, "encode export", err)
	}
	if file == "" {
		fmt.Fprintln(s.Out, string(b))
		return nil
	}
	if err := os.WriteFile(file, append(b, '\n'), 0o644); err != nil {
		return dbkeeper.Wrap(dbkeeper.ErrValidation, "write export", err)
	}
	s.Logger.Info("collection exported", "file", file, "documents", len(docs))
	return nil
}

func (s *Session) readDocuments(file string) ([]string, error) {
	var r io.Reader = s.In
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return nil, dbkeeper.Wrap(dbkeeper.ErrValidation, "open import file", err)
		}
		defer f.Close()
		r = f
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, dbkeeper.Wrap(dbkeeper.ErrValidation, "read import file", err)
	}
	return SplitDocuments(b)
}

// SplitDocuments accepts a JSON array of documents or one document per line.
func SplitDocuments(b []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var raws []json.RawMessage
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, dbkeeper.Wrap(dbkeeper.ErrInvalidJSON, "invalid JSON format", err)
		}
		out := make([]string, 0, len(raws))
		for _, r := range raws {
			out = append(out, string(r))
		}
		return out, nil
	}

	var out []string
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			out = append(out, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, dbkeeper.Wrap(dbkeeper.ErrValidation, "read import file", err)
	}
	return out, nil
}
