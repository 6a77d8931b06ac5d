package users

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
)

func TestDecodeGrantsCamelCase(t *testing.T) {
	g, err := DecodeGrants([]byte(`{"projectIds":["p1","p2"],"taskIds":["t1"],"calendarAccess":true,"trackingAccess":false}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, g.ProjectIDs)
	assert.Equal(t, []string{"t1"}, g.TaskIDs)
	assert.True(t, g.CalendarAccess)
	assert.False(t, g.TrackingAccess)
}

func TestDecodeGrantsSnakeCase(t *testing.T) {
	g, err := DecodeGrants([]byte(`{"project_ids":["p9"],"tracking_access":true}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"p9"}, g.ProjectIDs)
	assert.Nil(t, g.TaskIDs)
	assert.True(t, g.TrackingAccess)
}

func TestDecodeGrantsMergesBothSpellings(t *testing.T) {
	g, err := DecodeGrants([]byte(`{
		"projectIds": ["p1", "p2"],
		"project_ids": ["p2", "p3", ""],
		"calendarAccess": false,
		"calendar_access": true
	}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, g.ProjectIDs)
	assert.True(t, g.CalendarAccess)
}

func TestDecodeGrantsEmptyInput(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "{}", `{"projectIds":null}`} {
		g, err := DecodeGrants([]byte(raw))
		require.NoError(t, err, raw)
		assert.Equal(t, access.Grants{}, g, raw)
	}
}

func TestDecodeGrantsRejectsMalformed(t *testing.T) {
	_, err := DecodeGrants([]byte(`[1,2]`))
	assert.ErrorIs(t, err, ErrInvalidGrants)

	_, err = DecodeGrants([]byte(`{"projectIds":"p1"}`))
	assert.ErrorIs(t, err, ErrInvalidGrants)

	_, err = DecodeGrants([]byte(`{"calendar_access":"yes"}`))
	assert.ErrorIs(t, err, ErrInvalidGrants)
}

func TestEncodeGrantsWritesCamelCase(t *testing.T) {
	raw, err := EncodeGrants(access.Grants{ProjectIDs: []string{"p1"}, TrackingAccess: true})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "projectIds")
	assert.Contains(t, fields, "taskIds")
	assert.NotContains(t, fields, "project_ids")
	assert.Equal(t, true, fields["trackingAccess"])

	back, err := DecodeGrants(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, back.ProjectIDs)
	assert.True(t, back.TrackingAccess)
}
