package shared

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	p := Paginate(items, 2, 2)
	assert.Equal(t, []int{3, 4}, p.Items)
	assert.Equal(t, Pagination{Page: 2, PerPage: 2, Total: 5, TotalPages: 3}, p.Pagination)

	p = Paginate(items, 9, 2)
	assert.Empty(t, p.Items)
	assert.NotNil(t, p.Items)

	p = Paginate([]int(nil), 0, 0)
	assert.Equal(t, 1, p.Pagination.Page)
	assert.Equal(t, 20, p.Pagination.PerPage)
	assert.NotNil(t, p.Items)
}

func TestPageParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/projects?page=3&per_page=15", nil)
	page, perPage := PageParams(r)
	assert.Equal(t, 3, page)
	assert.Equal(t, 15, perPage)

	r = httptest.NewRequest("GET", "/projects?page=x", nil)
	page, perPage = PageParams(r)
	assert.Zero(t, page)
	assert.Zero(t, perPage)
}
