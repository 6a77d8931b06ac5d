package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
)

func TestRenderMatrixListsEveryModule(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, renderMatrix(&buf, access.DefaultRegistry(), access.RoleAdmin))
	out := buf.String()
	for _, module := range access.Modules() {
		assert.Contains(t, out, string(module))
	}
	assert.Contains(t, out, "Admin")
}

func TestRenderMatrixUnknownRole(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, renderMatrix(&buf, access.DefaultRegistry(), access.Role("intern")))
}

func TestPrintDecisions(t *testing.T) {
	r := access.NewResolver(nil)
	dev := &access.Principal{
		ID:   "dev",
		Role: access.RoleDeveloper,
		Tasks: []access.TaskRef{
			{ID: "t1", ProjectID: "p1", AssigneeID: "dev"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, printDecisions(&buf, r, dev, checkQuery{module: "team", action: "edit", task: "t1", edit: true}))
	out := buf.String()
	assert.Contains(t, out, "team.edit")
	assert.Regexp(t, `team\.edit\s+deny`, out)
	assert.Regexp(t, `view task t1\s+allow`, out)
	assert.Regexp(t, `edit task t1\s+allow`, out)

	buf.Reset()
	assert.Error(t, printDecisions(&buf, r, dev, checkQuery{module: "team"}))
}
