package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateSQL(t *testing.T) {
	sql, args := UpdateSQL("tasks", "t1", map[string]any{"title": "Ship", "status": "done"})
	assert.Equal(t, "UPDATE tasks SET status = $2, title = $3, updated_at = NOW() WHERE id = $1", sql)
	assert.Equal(t, []any{"t1", "done", "Ship"}, args)

	sql, args = UpdateSQL("tasks", "t1", nil)
	assert.Empty(t, sql)
	assert.Nil(t, args)
}
