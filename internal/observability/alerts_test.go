package observability

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	jobmetrics "github.com/odyssey-pm/odyssey-pm/internal/jobs"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

var metricRef = regexp.MustCompile(`odyssey_[a-z_]+`)

func loadAccessGroup(t *testing.T) alertGroup {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "deploy", "prometheus", "alerts", "access.yml"))
	require.NoError(t, err)

	var spec alertSpec
	require.NoError(t, yaml.Unmarshal(data, &spec))
	for _, g := range spec.Groups {
		if g.Name == "access" {
			return g
		}
	}
	t.Fatal("access alert group missing")
	return alertGroup{}
}

// exportedMetricNames exercises every collector once so that vectors appear
// in the gathered output.
func exportedMetricNames(t *testing.T) map[string]bool {
	t.Helper()
	m := NewMetrics()
	m.ObserveDecision("canViewTask", false)
	m.ObserveCache("error")
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	jobs := jobmetrics.NewMetrics(m.Registerer())
	_ = jobs.Track("access:refresh").End(nil)
	_ = jobs.Track("access:refresh").End(assert.AnError)
	jobs.Skip("access:refresh", "payload")

	families, err := m.registry.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestAccessAlertRules(t *testing.T) {
	group := loadAccessGroup(t)
	expected := map[string]struct {
		severity string
		runbook  string
	}{
		"HighErrorRate":     {"critical", "docs/runbook-access.md#high-error-rate"},
		"AccessCacheErrors": {"warning", "docs/runbook-access.md#cache-errors"},
		"DenialSpike":       {"warning", "docs/runbook-access.md#denial-spike"},
		"RefreshJobFailing": {"warning", "docs/runbook-access.md#refresh-job-failing"},
		"SessionPurgeStale": {"warning", "docs/runbook-access.md#session-purge-stale"},
	}
	require.Len(t, group.Rules, len(expected))

	for _, rule := range group.Rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		assert.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		assert.Equal(t, want.runbook, rule.Annotations["runbook"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		assert.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		assert.NotEmpty(t, rule.Expr, rule.Alert)
		assert.NotEmpty(t, rule.For, rule.Alert)
	}
}

func TestAlertExpressionsReferenceExportedMetrics(t *testing.T) {
	names := exportedMetricNames(t)
	for _, rule := range loadAccessGroup(t).Rules {
		refs := metricRef.FindAllString(rule.Expr, -1)
		require.NotEmpty(t, refs, rule.Alert)
		for _, ref := range refs {
			assert.True(t, names[ref], "%s references unknown metric %s", rule.Alert, ref)
		}
	}
}

func TestRunbookHasAnchorForEveryRule(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "docs", "runbook-access.md"))
	require.NoError(t, err)
	headings := map[string]string{
		"high-error-rate":     "## High error rate",
		"cache-errors":        "## Cache errors",
		"denial-spike":        "## Denial spike",
		"refresh-job-failing": "## Refresh job failing",
		"session-purge-stale": "## Session purge stale",
	}
	for _, rule := range loadAccessGroup(t).Rules {
		anchor := regexp.MustCompile(`#(.+)$`).FindStringSubmatch(rule.Annotations["runbook"])
		require.Len(t, anchor, 2, rule.Alert)
		heading, ok := headings[anchor[1]]
		require.True(t, ok, rule.Alert)
		assert.Contains(t, string(data), heading)
	}
}
