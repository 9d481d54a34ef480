package storage

import "github.com/nonibytes/dbkeeper/dbkeeper/filter"

type DataBaseQuery struct {
	DataBase string
}

type CollectionQuery struct {
	DataBase   string
	Collection string
}

func (q CollectionQuery) DataBaseQuery() DataBaseQuery {
	return DataBaseQuery{DataBase: q.DataBase}
}

func (q CollectionQuery) Generate() GenerateCollectionQuery {
	return GenerateCollectionQuery{DataBase: q.DataBase, Collection: q.Collection}
}

type GenerateDataBaseQuery struct {
	DataBase string
}

type GenerateCollectionQuery struct {
	DataBase   string
	Collection string
	Fields     []FieldData
}

func (q GenerateCollectionQuery) CollectionQuery() CollectionQuery {
	return CollectionQuery{DataBase: q.DataBase, Collection: q.Collection}
}

// DocumentQuery addresses documents of one collection. Skip and Limit are
// optional; a nil Filter matches every document.
type DocumentQuery struct {
	DataBase   string
	Collection string
	Skip       *uint64
	Limit      *uint64
	Filter     *filter.Element
}

func NewDocumentQuery(dataBase, collection string) DocumentQuery {
	return DocumentQuery{DataBase: dataBase, Collection: collection}
}

func (q DocumentQuery) CollectionQuery() CollectionQuery {
	return CollectionQuery{DataBase: q.DataBase, Collection: q.Collection}
}

func (q DocumentQuery) WithFilter(f filter.Element) DocumentQuery {
	q.Filter = &f
	return q
}

func (q DocumentQuery) WithoutFilter() DocumentQuery {
	q.Filter = nil
	return q
}

func (q DocumentQuery) WithPage(skip, limit uint64) DocumentQuery {
	q.Skip = &skip
	q.Limit = &limit
	return q
}

func (q DocumentQuery) WithSkip(skip uint64) DocumentQuery {
	q.Skip = &skip
	return q
}

func (q DocumentQuery) WithLimit(limit uint64) DocumentQuery {
	q.Limit = &limit
	return q
}

func (q DocumentQuery) WithoutPage() DocumentQuery {
	q.Skip = nil
	q.Limit = nil
	return q
}
