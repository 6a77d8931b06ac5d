package tasks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-pm/odyssey-pm/internal/access"
	"github.com/odyssey-pm/odyssey-pm/internal/membership"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
)

const projectID = "5e4d3c2b-1a09-4877-8665-544332211000"

type stubRepo struct {
	tasks   map[string]Task
	order   []string
	deleted []string
}

func newStubRepo(tasks ...Task) *stubRepo {
	repo := &stubRepo{tasks: make(map[string]Task)}
	for _, t := range tasks {
		repo.tasks[t.ID] = t
		repo.order = append(repo.order, t.ID)
	}
	return repo
}

func (s *stubRepo) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	var out []Task
	for _, id := range s.order {
		t, ok := s.tasks[id]
		if !ok {
			continue
		}
		if projectID != "" && t.ProjectID != projectID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *stubRepo) GetTask(ctx context.Context, id string) (Task, error) {
	t, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return t, nil
}

func (s *stubRepo) CreateTask(ctx context.Context, t Task) (Task, error) {
	t.ID = "new"
	s.tasks[t.ID] = t
	s.order = append(s.order, t.ID)
	return t, nil
}

func (s *stubRepo) UpdateTask(ctx context.Context, id string, updates map[string]any) error {
	t, ok := s.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if status, ok := updates["status"].(string); ok {
		t.Status = Status(status)
	}
	s.tasks[id] = t
	return nil
}

func (s *stubRepo) DeleteTask(ctx context.Context, actorID, id string) error {
	if _, ok := s.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(s.tasks, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type recordingCache struct {
	invalidated []string
}

func (c *recordingCache) Invalidate(ctx context.Context, userID string) error {
	c.invalidated = append(c.invalidated, userID)
	return nil
}

type stubMembers map[string][]membership.ProjectMembership

func (m stubMembers) ListProjectMembers(ctx context.Context, projectID string) ([]membership.ProjectMembership, error) {
	return m[projectID], nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fixtureTasks() []Task {
	return []Task{
		{ID: "t1", ProjectID: "p1", AssigneeID: "u1", Title: "one", Status: StatusTodo},
		{ID: "t2", ProjectID: "p2", AssigneeID: "u2", Title: "two", Status: StatusTodo},
		{ID: "t3", ProjectID: "p1", AssigneeID: "u1", Title: "three", Status: StatusTodo},
	}
}

func refs(tasks []Task) []access.TaskRef {
	out := make([]access.TaskRef, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.Ref())
	}
	return out
}

func TestDeveloperSeesOnlyOwnTasks(t *testing.T) {
	svc := NewService(newStubRepo(fixtureTasks()...), nil, nil, testLogger())
	u1 := &access.Principal{ID: "u1", Role: access.RoleDeveloper}

	items, err := svc.List(context.Background(), u1, "")
	require.NoError(t, err)
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	assert.Equal(t, []string{"t1", "t3"}, ids)
}

func TestTeamLeadSeesMemberProjectTasks(t *testing.T) {
	svc := NewService(newStubRepo(fixtureTasks()...), nil, nil, testLogger())
	lead := &access.Principal{ID: "lead", Role: access.RoleTeamLead, ProjectIDs: []string{"p2"}}

	items, err := svc.List(context.Background(), lead, "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "t2", items[0].ID)
}

func TestGetAndUpdateUseKnownTaskSet(t *testing.T) {
	tasks := fixtureTasks()
	svc := NewService(newStubRepo(tasks...), nil, nil, testLogger())
	u1 := &access.Principal{ID: "u1", Role: access.RoleDeveloper, Tasks: refs(tasks)}

	got, err := svc.Get(context.Background(), u1, "t1")
	require.NoError(t, err)
	assert.Equal(t, "one", got.Title)

	_, err = svc.Get(context.Background(), u1, "t2")
	assert.ErrorIs(t, err, ErrNotFound)

	done := StatusDone
	updated, err := svc.Update(context.Background(), u1, "t1", UpdateTaskRequest{Status: &done})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, updated.Status)

	_, err = svc.Update(context.Background(), u1, "t2", UpdateTaskRequest{Status: &done})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateRequiresMembership(t *testing.T) {
	repo := newStubRepo()
	cache := &recordingCache{}
	svc := NewService(repo, nil, cache, testLogger())

	pm := &access.Principal{ID: "pm", Role: access.RoleProjectManager, ProjectIDs: []string{projectID}}
	created, err := svc.Create(context.Background(), pm, CreateTaskRequest{ProjectID: projectID, Title: "Write docs"})
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, created.Priority)
	assert.Equal(t, StatusTodo, created.Status)
	assert.Equal(t, []string{"pm"}, cache.invalidated)

	outsider := &access.Principal{ID: "pm2", Role: access.RoleProjectManager}
	_, err = svc.Create(context.Background(), outsider, CreateTaskRequest{ProjectID: projectID, Title: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	dev := &access.Principal{ID: "dev", Role: access.RoleDeveloper}
	_, err = svc.Create(context.Background(), dev, CreateTaskRequest{ProjectID: projectID, Title: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCreateRefreshesEveryProjectMember(t *testing.T) {
	cache := &recordingCache{}
	members := stubMembers{projectID: {
		{UserID: "pm", ProjectID: projectID, Role: membership.MemberRoleManager},
		{UserID: "lead", ProjectID: projectID, Role: membership.MemberRoleMember},
	}}
	repo := newStubRepo()
	svc := NewService(repo, nil, cache, testLogger()).WithMembers(members)

	pm := &access.Principal{ID: "pm", Role: access.RoleProjectManager, ProjectIDs: []string{projectID}}
	created, err := svc.Create(context.Background(), pm, CreateTaskRequest{ProjectID: projectID, Title: "Plan sprint"})
	require.NoError(t, err)
	assert.Equal(t, []string{"pm", "lead"}, cache.invalidated)

	// With the refreshed task set the other member can open the new task.
	lead := &access.Principal{ID: "lead", Role: access.RoleTeamLead, ProjectIDs: []string{projectID}, Tasks: refs([]Task{created})}
	got, err := svc.Get(context.Background(), lead, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plan sprint", got.Title)
}

func TestDeleteRequiresDeleteCapability(t *testing.T) {
	tasks := fixtureTasks()
	repo := newStubRepo(tasks...)
	cache := &recordingCache{}
	svc := NewService(repo, nil, cache, testLogger())

	lead := &access.Principal{ID: "lead", Role: access.RoleTeamLead, ProjectIDs: []string{"p1"}, Tasks: refs(tasks)}
	assert.ErrorIs(t, svc.Delete(context.Background(), lead, "t1"), ErrForbidden)

	pm := &access.Principal{ID: "pm", Role: access.RoleProjectManager, ProjectIDs: []string{"p1"}, Tasks: refs(tasks)}
	require.NoError(t, svc.Delete(context.Background(), pm, "t1"))
	assert.Equal(t, []string{"t1"}, repo.deleted)
	assert.Equal(t, []string{"u1"}, cache.invalidated)
}

func TestHandlerFiltersList(t *testing.T) {
	svc := NewService(newStubRepo(fixtureTasks()...), nil, nil, testLogger())
	h := NewHandler(testLogger(), svc, access.Middleware{})
	router := chi.NewRouter()
	h.MountRoutes(router)

	u2 := &access.Principal{ID: "u2", Role: access.RoleDeveloper}
	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req = req.WithContext(access.ContextWithPrincipal(req.Context(), u2))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	var page shared.Page[Task]
	require.NoError(t, json.NewDecoder(res.Body).Decode(&page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "t2", page.Items[0].ID)
}

func TestHandlerUnknownTaskIs404(t *testing.T) {
	svc := NewService(newStubRepo(fixtureTasks()...), nil, nil, testLogger())
	h := NewHandler(testLogger(), svc, access.Middleware{})
	router := chi.NewRouter()
	h.MountRoutes(router)

	u2 := &access.Principal{ID: "u2", Role: access.RoleDeveloper}
	req := httptest.NewRequest(http.MethodGet, "/tasks/t1", nil)
	req = req.WithContext(access.ContextWithPrincipal(req.Context(), u2))
	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	assert.Equal(t, http.StatusNotFound, res.Code)
}
