package db

import (
	"fmt"
	"sort"
	"strings"
)

// UpdateSQL builds "UPDATE table SET a = $2, b = $3, updated_at = NOW() WHERE id = $1"
// from a column map. Columns are emitted in sorted order so statements are
// stable. It returns an empty statement when updates is empty.
func UpdateSQL(table string, id any, updates map[string]any) (string, []any) {
	if len(updates) == 0 {
		return "", nil
	}
	cols := make([]string, 0, len(updates))
	for col := range updates {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	args := []any{id}
	sets := make([]string, 0, len(cols)+1)
	for _, col := range cols {
		args = append(args, updates[col])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	sets = append(sets, "updated_at = NOW()")
	return fmt.Sprintf("UPDATE %s SET %s WHERE id = $1", table, strings.Join(sets, ", ")), args
}
