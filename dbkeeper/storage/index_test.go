package storage

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
)

func TestIndexFromFieldDefaults(t *testing.T) {
	req, err := IndexFromField(FieldData{Code: FieldIndexed, Value: "name"})
	require.NoError(t, err)
	assert.Equal(t, []IndexKey{{Field: "name", Direction: 1}}, req.Keys)
	assert.True(t, req.Unique)
}

func TestIndexFromFieldAttributes(t *testing.T) {
	req, err := IndexFromField(FieldData{
		Code:  FieldIndexed,
		Value: "age",
		Attributes: []FieldAttribute{
			{Key: FieldDirection, Value: "-1"},
			{Key: FieldUnique, Value: "false"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, -1, req.Keys[0].Direction)
	assert.False(t, req.Unique)
}

func TestIndexFromFieldIdentifierIsNeverUnique(t *testing.T) {
	req, err := IndexFromField(FieldData{
		Code:       FieldIndexed,
		Value:      IdentifierField,
		Attributes: []FieldAttribute{{Key: FieldUnique, Value: "true"}},
	})
	require.NoError(t, err)
	assert.False(t, req.Unique)
}

func TestIndexFromFieldRejectsOtherCodes(t *testing.T) {
	_, err := IndexFromField(FieldData{Code: "TEXT", Value: "name"})
	require.Error(t, err)
	assert.True(t, dkerrors.IsKind(err, dkerrors.ErrUnsupported))
	assert.Contains(t, err.Error(), MsgFieldNotSupported)

	_, err = IndexesFromFields([]FieldData{{Code: FieldIndexed, Value: "a"}, {Code: "TEXT"}})
	assert.Error(t, err)
}

func TestParseIndexRequest(t *testing.T) {
	a := Action{
		Action: ActionIndexesNew,
		Forms: []ActionForm{
			{Code: FormFields, Fields: [][]FormField{
				{{Code: FieldField, Value: "name"}, {Code: FieldDirection, Value: "-1"}},
				{{Code: FieldDirection, Value: "1"}},
				{{Code: FieldField, Value: "age"}},
			}},
			{Code: FormAttributes, Fields: [][]FormField{
				{{Code: FieldName, Value: "by_name"}, {Code: FieldUnique, Value: "false"}},
			}},
		},
	}
	req, err := ParseIndexRequest(a)
	require.NoError(t, err)
	assert.Equal(t, []IndexKey{{Field: "name", Direction: -1}, {Field: "age", Direction: 1}}, req.Keys)
	assert.Equal(t, "by_name", req.Name)
	assert.False(t, req.Unique)
}

func TestParseIndexRequestMissingForm(t *testing.T) {
	_, err := ParseIndexRequest(Action{Action: ActionIndexesNew})
	require.Error(t, err)
	assert.True(t, dkerrors.IsKind(err, dkerrors.ErrAction))
	assert.Contains(t, err.Error(), MsgFormDataNotFound)
}

func TestParseIndexDrop(t *testing.T) {
	names, err := ParseIndexDrop(Action{
		Action: ActionIndexesDelete,
		Forms: []ActionForm{{Code: FormIndexed, Fields: [][]FormField{
			{{Code: FieldIndexedName, Value: "a_1"}},
			{{Code: FieldIndexedName, Value: "b_-1"}},
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a_1", "b_-1"}, names)

	_, err = ParseIndexDrop(Action{Action: ActionIndexesDelete})
	assert.True(t, dkerrors.IsKind(err, dkerrors.ErrAction))
}

func TestDropMessage(t *testing.T) {
	assert.Equal(t, MsgNoIndexesRemoved, DropMessage(0, nil))
	assert.Equal(t, MsgIndexesRemoved, DropMessage(2, nil))
	assert.Equal(t, MsgIndexesRemoved, DropMessage(2, &multierror.Error{}))

	var failed *multierror.Error
	failed = multierror.Append(failed, errors.New("a_1: not found"), errors.New("b_1: not found"))
	assert.Equal(t, MsgIndexesPartial+"a_1: not found\nb_1: not found", DropMessage(2, failed))
}
