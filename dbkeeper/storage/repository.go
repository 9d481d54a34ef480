package storage

import "context"

// Connectivity covers server health.
type Connectivity interface {
	Status(ctx context.Context) error
	Metadata(ctx context.Context) ([]TableDataGroup, error)
	Close(ctx context.Context) error
}

type DataBases interface {
	DataBaseExists(ctx context.Context, q DataBaseQuery) (bool, error)
	DataBaseCreate(ctx context.Context, q GenerateDataBaseQuery) (string, error)
	DataBaseDrop(ctx context.Context, q GenerateDataBaseQuery) (string, error)
	DataBaseFindAll(ctx context.Context) ([]string, error)
	DataBaseMetadata(ctx context.Context, q DataBaseQuery) ([]TableDataGroup, error)
}

type Collections interface {
	CollectionExists(ctx context.Context, q CollectionQuery) (bool, error)
	CollectionCreate(ctx context.Context, q GenerateCollectionQuery) (string, error)
	CollectionDrop(ctx context.Context, q GenerateCollectionQuery) (string, error)
	CollectionRename(ctx context.Context, q CollectionQuery, name string) (string, error)
	CollectionFindAll(ctx context.Context, q DataBaseQuery) ([]string, error)
	CollectionMetadata(ctx context.Context, q CollectionQuery) ([]TableDataGroup, error)
	CollectionInformation(ctx context.Context, q CollectionQuery) ([]TableDefinition, error)
	CollectionAcceptSchema(ctx context.Context) (CollectionDefinition, error)
	CollectionExport(ctx context.Context, q CollectionQuery) ([]DocumentData, error)
	CollectionImport(ctx context.Context, q CollectionQuery, documents []string) (string, error)
	CollectionActions(ctx context.Context, q CollectionQuery) ([]ActionDefinition, error)
	CollectionAction(ctx context.Context, q CollectionQuery, code string) (*ActionDefinition, error)
	CollectionExecuteAction(ctx context.Context, q CollectionQuery, action Action) (string, error)
}

type Documents interface {
	FilterSchema(ctx context.Context) (FilterDefinition, error)
	// Find returns the first document matching the filter, or nil.
	Find(ctx context.Context, q DocumentQuery) (*DocumentData, error)
	// FindAll ignores the filter and keeps paging.
	FindAll(ctx context.Context, q DocumentQuery) (CollectionData, error)
	FindQuery(ctx context.Context, q DocumentQuery) (CollectionData, error)
	Schema(ctx context.Context, q CollectionQuery) (DocumentSchema, error)
	Insert(ctx context.Context, q CollectionQuery, document string) (DocumentData, error)
	// Update replaces every matching document with document.
	Update(ctx context.Context, q DocumentQuery, document string) ([]DocumentData, error)
	Delete(ctx context.Context, q DocumentQuery) ([]DocumentData, error)
}

// Repository is the uniform contract every backend binding implements.
// Implementations are safe for concurrent use.
type Repository interface {
	Backend() Backend
	Connectivity
	DataBases
	Collections
	Documents
}
