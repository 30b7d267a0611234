package instance

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestUnmarshal_List(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{"instance_ids": ["i-1", "i-2"]}`), &req)

	require.NoError(t, err)
	assert.Equal(t, StringList{"i-1", "i-2"}, req.InstanceIDs)
	assert.Empty(t, req.InstanceID)
}

func TestRequestUnmarshal_ScalarList(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{"instance_ids": "i-1"}`), &req)

	require.NoError(t, err)
	assert.Equal(t, StringList{"i-1"}, req.InstanceIDs)
}

func TestRequestUnmarshal_NullAndEmpty(t *testing.T) {
	var req Request
	require.NoError(t, json.Unmarshal([]byte(`{"instance_ids": null}`), &req))
	assert.Nil(t, req.InstanceIDs)

	req = Request{}
	require.NoError(t, json.Unmarshal([]byte(`{"instance_ids": ""}`), &req))
	assert.Nil(t, req.InstanceIDs)
}

func TestRequestUnmarshal_InvalidType(t *testing.T) {
	var req Request
	err := json.Unmarshal([]byte(`{"instance_ids": 42}`), &req)
	require.Error(t, err)
}

func TestRequestIDs(t *testing.T) {
	req := Request{
		InstanceID:  "i-single",
		InstanceIDs: StringList{"i-1", "", "i-single"},
	}

	// Order is preserved; dedup happens later.
	assert.Equal(t, []ID{"i-single", "i-1", "i-single"}, req.IDs())
	assert.Empty(t, Request{}.IDs())
}
