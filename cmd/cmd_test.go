package cmd

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/site-analyzer/internal/app"
	"github.com/JakeFAU/site-analyzer/internal/browser"
	"github.com/JakeFAU/site-analyzer/internal/config"
)

var startedRe = regexp.MustCompile(`analysis (\S+) started`)

func testFactory(ctx context.Context, cfg config.Config, _ *zap.Logger) (App, error) {
	return app.New(ctx, cfg, zap.NewNop(), app.Options{
		Registerer: prometheus.NewRegistry(),
		Launcher:   browser.NewHTTPLauncher(browser.HTTPConfig{}, zap.NewNop()),
	})
}

func writeConfig(t *testing.T) string {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANALYZER_LLM_API_KEY", "")

	dir := t.TempDir()
	body := fmt.Sprintf(`
storage:
  backend: local
  base_dir: %s
index:
  backend: none
browser:
  backend: http
analyzer:
  poll_interval: 10ms
logging:
  development: false
  level: error
`, filepath.Join(dir, "websites"))
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Bakery</title>
<meta name="description" content="Fresh bread daily"></head>
<body><nav><a href="/menu">Menu</a></nav></body></html>`)
	})
	mux.HandleFunc("/menu", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Menu</title></head><body></body></html>`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(testFactory)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzeThenInspect(t *testing.T) {
	cfgPath := writeConfig(t)
	site := newSite(t)

	out, err := run(t, "--config", cfgPath, "analyze", site.URL)
	require.NoError(t, err, out)
	m := startedRe.FindStringSubmatch(out)
	require.Len(t, m, 2, out)
	id := m[1]
	assert.Contains(t, out, "[100%] completed")
	assert.Contains(t, out, "links saved to 127.json")

	out, err = run(t, "--config", cfgPath, "status", id)
	require.NoError(t, err)
	assert.Contains(t, out, id+"  completed  100%")
	assert.Contains(t, out, "Analysis complete. Data saved to 127.json")

	out, err = run(t, "--config", cfgPath, "status", id, "-o", "yaml")
	require.NoError(t, err)
	var view statusView
	require.NoError(t, yaml.Unmarshal([]byte(out), &view))
	assert.Equal(t, "completed", view.Status)
	assert.Equal(t, "127", view.Domain)

	out, err = run(t, "--config", cfgPath, "search", "127", "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "[direct]")
	assert.Contains(t, out, site.URL+"/menu")

	out, err = run(t, "--config", cfgPath, "export", "127", "--format", "markdown")
	require.NoError(t, err)
	assert.Contains(t, out, "# Bakery")
	assert.Contains(t, out, site.URL+"/menu")

	xlsx := filepath.Join(t.TempDir(), "site.xlsx")
	out, err = run(t, "--config", cfgPath, "export", "127", "-f", "xlsx", "-o", xlsx)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+xlsx)
	f, err := excelize.OpenFile(xlsx)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Links")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(rows), 2)
	assert.Equal(t, []string{"Title", "Description", "URL"}, rows[0])
}

func TestAnalyzeRejectsBadURL(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, "--config", cfgPath, "analyze", "   ")
	require.Error(t, err)
}

func TestStatusUnknownID(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, "--config", cfgPath, "status", "does-not-exist")
	require.Error(t, err)
}

func TestStatusRejectsUnknownOutput(t *testing.T) {
	cfgPath := writeConfig(t)
	site := newSite(t)

	out, err := run(t, "--config", cfgPath, "analyze", site.URL)
	require.NoError(t, err)
	id := startedRe.FindStringSubmatch(out)[1]

	_, err = run(t, "--config", cfgPath, "status", id, "-o", "xml")
	require.ErrorContains(t, err, "unknown output format")
}

func TestSearchMissingDomain(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, "--config", cfgPath, "search", "nowhere", "pricing")
	require.Error(t, err)
}

func TestExportRejectsFormat(t *testing.T) {
	cfgPath := writeConfig(t)

	_, err := run(t, "--config", cfgPath, "export", "127", "--format", "pdf")
	require.Error(t, err)
}

func TestBadConfigFile(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "status", "x")
	require.ErrorContains(t, err, "read config")
}

func TestResolveAppWithoutInit(t *testing.T) {
	_, err := resolveApp(context.Background())
	require.Error(t, err)
}
