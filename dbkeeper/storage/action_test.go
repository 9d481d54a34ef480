package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexActionDefinitions(t *testing.T) {
	defs := IndexActionDefinitions([]string{"_id_", "name_1"})
	require.Len(t, defs, 2)

	create := FindAction(defs, ActionIndexesNew)
	require.NotNil(t, create)
	require.NotNil(t, create.Form)
	require.Len(t, create.Form.Forms, 2)
	assert.Equal(t, FormFields, create.Form.Forms[0].Code)
	assert.True(t, create.Form.Forms[0].Vector)
	assert.Equal(t, FormAttributes, create.Form.Forms[1].Code)

	drop := FindAction(defs, ActionIndexesDelete)
	require.NotNil(t, drop)
	values := drop.Form.Forms[0].Fields[0].Values
	assert.Equal(t, []FormDefault{{Key: "_id_", Value: "_id_"}, {Key: "name_1", Value: "name_1"}}, values)

	assert.Nil(t, FindAction(defs, "UNKNOWN"))
}

func TestFindActionReturnsCopy(t *testing.T) {
	defs := IndexActionDefinitions(nil)
	found := FindAction(defs, ActionIndexesNew)
	found.Title = "changed"
	assert.Equal(t, "New index", defs[0].Title)
}

func TestActionDecodesFromJSON(t *testing.T) {
	raw := `{"action":"INDEXES_DELETE","form":[{"code":"INDEXED","fields":[[{"code":"INDEXED","value":"a_1"}]]}]}`
	var a Action
	require.NoError(t, json.Unmarshal([]byte(raw), &a))

	form, ok := a.FindForm(FormIndexed)
	require.True(t, ok)
	assert.Equal(t, []FormField{{Code: FieldIndexedName, Value: "a_1"}}, form.FindFields(FieldIndexedName))

	_, ok = a.FindForm(FormFields)
	assert.False(t, ok)
}
