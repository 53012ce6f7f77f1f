package deploy

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/draftware/stampkit/internal/config"
	"github.com/draftware/stampkit/internal/constants"
)

var errLocked = errors.New("the process cannot access the file because it is being used by another process")

func testEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(config.UpdateSettings{
		CopyAttempts:   6,
		CopyRetryDelay: time.Millisecond,
		ScratchDir:     t.TempDir(),
	})
}

// writePackage lays out an extracted release tree: files at the root plus
// optional per-compatibility-tag subfolders.
func writePackage(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func installedRoot(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

func basicTarget(id, root string) Target {
	return Target{
		ID:            id,
		RootPath:      root,
		RequiredFiles: []string{"stampkit.dll"},
	}
}

func TestDeployDir_MissingRootIsSkipped(t *testing.T) {
	pkg := writePackage(t, map[string]string{"stampkit.dll": "v2"})
	existing := installedRoot(t)

	results, err := testEngine(t).DeployDir(pkg, []Target{
		basicTarget("vektra-2023", filepath.Join(existing, "not-installed")),
		basicTarget("vektra-2024", existing),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, Skipped, results[0].Outcome)
	assert.Equal(t, Succeeded, results[1].Outcome)
	assert.Equal(t, []string{"stampkit.dll"}, results[1].FilesCopied)

	deployed, err := os.ReadFile(filepath.Join(existing, constants.PluginDirName, "stampkit.dll"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(deployed))
}

func TestDeployDir_OverwritesExistingFiles(t *testing.T) {
	pkg := writePackage(t, map[string]string{"stampkit.dll": "new"})
	root := installedRoot(t)
	appDir := filepath.Join(root, constants.PluginDirName)
	require.NoError(t, os.MkdirAll(appDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(appDir, "stampkit.dll"), []byte("old"), 0o644))

	_, err := testEngine(t).DeployDir(pkg, []Target{basicTarget("vektra-2024", root)})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(appDir, "stampkit.dll"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestDeployDir_CompatibilityTagSubfolder(t *testing.T) {
	pkg := writePackage(t, map[string]string{
		"stampkit.dll":      "generic",
		"2024/stampkit.dll": "for-2024",
	})

	taggedRoot := installedRoot(t)
	plainRoot := installedRoot(t)

	tagged := basicTarget("vektra-2024", taggedRoot)
	tagged.CompatibilityTag = "2024"
	plain := basicTarget("vektra-2023", plainRoot)
	plain.CompatibilityTag = "2023" // no such subfolder in package

	_, err := testEngine(t).DeployDir(pkg, []Target{tagged, plain})
	require.NoError(t, err)

	got, _ := os.ReadFile(filepath.Join(taggedRoot, constants.PluginDirName, "stampkit.dll"))
	assert.Equal(t, "for-2024", string(got))
	got, _ = os.ReadFile(filepath.Join(plainRoot, constants.PluginDirName, "stampkit.dll"))
	assert.Equal(t, "generic", string(got))
}

func TestDeployDir_LockedFileUnlocksOnThirdAttempt(t *testing.T) {
	pkg := writePackage(t, map[string]string{"stampkit.dll": "v2"})
	root := installedRoot(t)

	e := testEngine(t)
	attempts := 0
	e.copyFn = func(src, dst string) error {
		attempts++
		if attempts < 3 {
			return errLocked
		}
		return copyFile(src, dst)
	}

	results, err := e.DeployDir(pkg, []Target{basicTarget("vektra-2024", root)})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, results[0].Outcome)
	assert.Equal(t, 3, attempts)
}

func TestDeployDir_LockedFileExhaustsRetries(t *testing.T) {
	pkg := writePackage(t, map[string]string{"stampkit.dll": "v2"})
	root := installedRoot(t)

	e := testEngine(t)
	attempts := 0
	e.copyFn = func(src, dst string) error {
		attempts++
		return errLocked
	}

	results, err := e.DeployDir(pkg, []Target{basicTarget("vektra-2024", root)})
	assert.ErrorIs(t, err, ErrAllTargetsFailed)
	require.Len(t, results, 1)
	assert.Equal(t, Failed, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, errLocked)
	assert.Equal(t, 6, attempts, "attempt budget is six")
}

func TestDeployDir_FailureIsolatedPerTarget(t *testing.T) {
	pkg := writePackage(t, map[string]string{"stampkit.dll": "v2"})
	badRoot := installedRoot(t)
	goodRoot := installedRoot(t)

	e := testEngine(t)
	e.copyFn = func(src, dst string) error {
		if strings.HasPrefix(dst, badRoot) {
			return errLocked
		}
		return copyFile(src, dst)
	}

	results, err := e.DeployDir(pkg, []Target{
		basicTarget("vektra-2023", badRoot),
		basicTarget("vektra-2024", goodRoot),
	})
	require.NoError(t, err, "one success keeps the pass non-fatal")
	assert.Equal(t, Failed, results[0].Outcome)
	assert.Equal(t, Succeeded, results[1].Outcome)
}

func TestDeployDir_AllSkippedIsFatal(t *testing.T) {
	pkg := writePackage(t, map[string]string{"stampkit.dll": "v2"})
	results, err := testEngine(t).DeployDir(pkg, []Target{
		basicTarget("vektra-2023", filepath.Join(t.TempDir(), "a")),
		basicTarget("vektra-2024", filepath.Join(t.TempDir(), "b")),
	})
	assert.ErrorIs(t, err, ErrAllTargetsFailed)
	assert.Equal(t, Skipped, results[0].Outcome)
	assert.Equal(t, Skipped, results[1].Outcome)
}

func TestDeployDir_WritesManifestAtTargetRoot(t *testing.T) {
	pkg := writePackage(t, map[string]string{
		"stampkit.dll":        "v2",
		"stampkit.addin.tmpl": "<Addin><Assembly>" + constants.ManifestPlaceholder + "/stampkit.dll</Assembly></Addin>",
	})
	root := installedRoot(t)

	target := basicTarget("vektra-2024", root)
	target.ManifestTemplatePath = "stampkit.addin.tmpl"

	_, err := testEngine(t).DeployDir(pkg, []Target{target})
	require.NoError(t, err)

	manifest, err := os.ReadFile(filepath.Join(root, constants.ManifestFileName))
	require.NoError(t, err)
	appDir := filepath.Join(root, constants.PluginDirName)
	assert.Equal(t, "<Addin><Assembly>"+appDir+"/stampkit.dll</Assembly></Addin>", string(manifest))
	assert.NotContains(t, string(manifest), constants.ManifestPlaceholder)
}

func TestRenderManifest_Idempotent(t *testing.T) {
	tmpl := "path=" + constants.ManifestPlaceholder
	first := RenderManifest(tmpl, "/opt/vektra/Addins/stampkit")
	second := RenderManifest(first, "/opt/vektra/Addins/stampkit")
	assert.Equal(t, first, second)
}

func TestDeploy_ExtractsZipPackage(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "stampkit-1.3.0.zip")
	out, err := os.Create(zipPath)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, content := range map[string]string{
		"stampkit.dll":      "generic",
		"2024/stampkit.dll": "for-2024",
	} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())

	root := installedRoot(t)
	target := basicTarget("vektra-2024", root)
	target.CompatibilityTag = "2024"

	results, err := testEngine(t).Deploy(zipPath, []Target{target})
	require.NoError(t, err)
	assert.Equal(t, Succeeded, results[0].Outcome)

	got, err := os.ReadFile(filepath.Join(root, constants.PluginDirName, "stampkit.dll"))
	require.NoError(t, err)
	assert.Equal(t, "for-2024", string(got))
}
