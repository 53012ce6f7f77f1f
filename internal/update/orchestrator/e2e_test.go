package orchestrator_test

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftware/stampkit/internal/config"
	"github.com/draftware/stampkit/internal/constants"
	"github.com/draftware/stampkit/internal/update/deploy"
	"github.com/draftware/stampkit/internal/update/download"
	"github.com/draftware/stampkit/internal/update/hostproc"
	"github.com/draftware/stampkit/internal/update/orchestrator"
	"github.com/draftware/stampkit/internal/update/resolver"
)

// Full flow against real components: check a feed advertising 9.9.9 while
// running 1.0.0, confirm, download the zip, deploy to two targets of which
// only one is installed. The missing target is a skip, not a failure, so the
// pass ends Completed.
func TestUpdateFlow_EndToEnd(t *testing.T) {
	var pkg bytes.Buffer
	zw := zip.NewWriter(&pkg)
	w, err := zw.Create("stampkit.dll")
	require.NoError(t, err)
	_, err = w.Write([]byte("payload 9.9.9"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"tag_name": "9.9.9",
			"assets": [{"name": "stampkit-9.9.9.zip", "browser_download_url": "%s/pkg.zip"}]
		}`, srv.URL)
	})
	mux.HandleFunc("/pkg.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write(pkg.Bytes())
	})

	installedRoot := t.TempDir()
	missingRoot := filepath.Join(t.TempDir(), "vektra-2025-not-installed")

	settings := config.UpdateSettings{
		CopyAttempts:    6,
		CopyRetryDelay:  time.Millisecond,
		HostExitTimeout: time.Second,
		PollInterval:    10 * time.Millisecond,
		ScratchDir:      t.TempDir(),
	}

	targets := []deploy.Target{
		{ID: "vektra-2024", RootPath: installedRoot, RequiredFiles: []string{"stampkit.dll"}},
		{ID: "vektra-2025", RootPath: missingRoot, RequiredFiles: []string{"stampkit.dll"}},
	}

	res := resolver.New(config.FeedSettings{
		URL:     srv.URL + "/releases/latest",
		Timeout: 5 * time.Second,
	}).WithCurrentVersion("1.0.0")

	orch := orchestrator.New(
		res,
		download.New(settings.ScratchDir),
		hostproc.New(settings),
		deploy.NewEngine(settings),
		targets,
		settings,
	)

	desc, err := orch.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, "9.9.9", desc.Version)
	assert.Equal(t, orchestrator.AwaitingConfirmation, orch.State())

	state, err := orch.Proceed(context.Background(), orchestrator.RunOptions{})
	require.NoError(t, err)
	assert.Equal(t, orchestrator.Completed, state)

	session := orch.Session()
	require.Len(t, session.Results, 2)
	assert.Equal(t, deploy.Succeeded, session.Results[0].Outcome)
	assert.Equal(t, deploy.Skipped, session.Results[1].Outcome)

	deployed, err := os.ReadFile(filepath.Join(installedRoot, constants.PluginDirName, "stampkit.dll"))
	require.NoError(t, err)
	assert.Equal(t, "payload 9.9.9", string(deployed))
}
