// Package dbkeeper browses and edits document databases through one
// repository contract, whatever the backend.
package dbkeeper

import (
	"context"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nonibytes/dbkeeper/dbkeeper/filter"
	"github.com/nonibytes/dbkeeper/dbkeeper/query"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

// Service is a repository plus the conveniences front-ends share: field
// validation, where expressions and identifier chains.
type Service struct {
	storage.Repository
	logger *slog.Logger
}

var _ storage.Repository = (*Service)(nil)

func NewService(repo storage.Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Repository: repo, logger: logger.With("backend", string(repo.Backend()))}
}

// CollectionCreate validates the requested fields against the backend's
// accepted definition before creating anything.
func (s *Service) CollectionCreate(ctx context.Context, q storage.GenerateCollectionQuery) (string, error) {
	def, err := s.CollectionAcceptSchema(ctx)
	if err != nil {
		return "", err
	}
	if err := storage.ValidateFields(def, q.Fields); err != nil {
		return "", err
	}
	return s.Repository.CollectionCreate(ctx, q)
}

// WhereFilter parses a where expression.
func WhereFilter(where string) (filter.Element, error) {
	el, err := query.Parse(where)
	if err != nil {
		return filter.Element{}, Wrap(ErrCompile, "invalid where expression", err)
	}
	return el, nil
}

// ChainFilter addresses one document by its identifier chain.
func ChainFilter(chain string) (filter.Element, error) {
	if strings.TrimSpace(chain) == "" {
		return filter.Element{}, NewError(ErrValidation, "identifier chain is empty")
	}
	return filter.Root().Push(idChain(chain)), nil
}

// idChain is FromIDChain with 24-hex _id fragments matching either an
// ObjectId or the same text, as chains print ObjectIds as bare hex.
func idChain(chain string) filter.Element {
	el := filter.FromIDChain(chain)
	children := el.Children()
	for i, c := range children {
		if c.Key != storage.IdentifierField || !primitive.IsValidObjectID(c.Value.Literal) {
			continue
		}
		children[i] = filter.Element{
			Key: c.Key,
			Value: filter.Value{Category: filter.CategoryCollection, Children: []filter.Element{
				filter.IDString(c.Key, c.Value.Literal, filter.OID()).AsOr(),
				filter.IDString(c.Key, c.Value.Literal).AsOr(),
			}},
		}
	}
	el.Value.Children = children
	return el
}

// BuildFilter combines a where expression, alternative identifier chains
// and raw pipeline stages under one ROOT. Empty inputs add nothing.
func BuildFilter(where string, chains, stages []string) (filter.Element, error) {
	root := filter.Root()
	if strings.TrimSpace(where) != "" {
		el, err := WhereFilter(where)
		if err != nil {
			return filter.Element{}, err
		}
		root = root.Push(el)
	}
	for _, chain := range chains {
		root = root.Push(idChain(chain).AsOr())
	}
	for _, raw := range stages {
		root = root.Push(filter.Query(raw))
	}
	return root, nil
}

// FindWhere runs FindQuery with the parsed where expression as filter.
func (s *Service) FindWhere(ctx context.Context, q storage.DocumentQuery, where string) (storage.CollectionData, error) {
	el, err := WhereFilter(where)
	if err != nil {
		return storage.CollectionData{}, err
	}
	s.logger.Debug("find where", "database", q.DataBase, "collection", q.Collection, "where", where)
	return s.FindQuery(ctx, q.WithFilter(el))
}

// FindByChain returns the document addressed by chain. A missing document
// is a not-found error.
func (s *Service) FindByChain(ctx context.Context, q storage.CollectionQuery, chain string) (storage.DocumentData, error) {
	el, err := ChainFilter(chain)
	if err != nil {
		return storage.DocumentData{}, err
	}
	doc, err := s.Find(ctx, documentQuery(q).WithFilter(el))
	if err != nil {
		return storage.DocumentData{}, err
	}
	if doc == nil {
		return storage.DocumentData{}, NewError(ErrNotFound, "Document not found.")
	}
	return *doc, nil
}

func (s *Service) UpdateByChain(ctx context.Context, q storage.CollectionQuery, chain, document string) ([]storage.DocumentData, error) {
	el, err := ChainFilter(chain)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, documentQuery(q).WithFilter(el), document)
}

func (s *Service) DeleteByChain(ctx context.Context, q storage.CollectionQuery, chain string) ([]storage.DocumentData, error) {
	el, err := ChainFilter(chain)
	if err != nil {
		return nil, err
	}
	return s.Delete(ctx, documentQuery(q).WithFilter(el))
}

// FindLite is FindQuery without document bodies.
func (s *Service) FindLite(ctx context.Context, q storage.DocumentQuery) (storage.CollectionData, error) {
	data, err := s.FindQuery(ctx, q)
	if err != nil {
		return storage.CollectionData{}, err
	}
	return data.Lite(), nil
}

func documentQuery(q storage.CollectionQuery) storage.DocumentQuery {
	return storage.NewDocumentQuery(q.DataBase, q.Collection)
}
