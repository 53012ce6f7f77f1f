package deploy

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"

	"github.com/draftware/stampkit/internal/config"
	"github.com/draftware/stampkit/internal/constants"
)

// ErrAllTargetsFailed is the fatal aggregate: every non-skipped target
// failed, or there was nothing to deploy into at all.
var ErrAllTargetsFailed = errors.New("deployment failed for all targets")

// Engine copies a release package's files into each configured target. A
// failure on one target never stops the others; partial success across
// targets is expected and acceptable.
type Engine struct {
	copyAttempts int
	settings     config.UpdateSettings

	// copyFn is swapped out in tests to simulate locked destinations.
	copyFn func(src, dst string) error
}

func NewEngine(settings config.UpdateSettings) *Engine {
	attempts := settings.CopyAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Engine{
		copyAttempts: attempts,
		settings:     settings,
		copyFn:       copyFile,
	}
}

// Deploy extracts the package zip and runs one deployment pass over targets,
// in table order. The returned slice holds exactly one Result per target.
// The error is non-nil only for the fatal aggregate outcome (every
// non-skipped target failed) or an unreadable package.
func (e *Engine) Deploy(packagePath string, targets []Target) ([]Result, error) {
	stageDir, err := os.MkdirTemp(e.settings.ScratchDir, constants.ScratchPrefix+"pkg-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging dir: %w", err)
	}
	defer os.RemoveAll(stageDir)

	if err := ExtractPackage(packagePath, stageDir); err != nil {
		return nil, err
	}

	return e.DeployDir(stageDir, targets)
}

// DeployDir runs a deployment pass from an already-extracted package tree.
func (e *Engine) DeployDir(packageDir string, targets []Target) ([]Result, error) {
	results := make([]Result, 0, len(targets))
	for _, target := range targets {
		result := e.deployTarget(packageDir, target)
		log.Infof("deploy %s", result)
		results = append(results, result)
	}

	succeeded, failed := Summarize(results)
	if succeeded == 0 && failed > 0 {
		return results, fmt.Errorf("%w: %d targets", ErrAllTargetsFailed, failed)
	}
	if succeeded == 0 && failed == 0 {
		return results, fmt.Errorf("%w: no target roots exist on this machine", ErrAllTargetsFailed)
	}
	return results, nil
}

func (e *Engine) deployTarget(packageDir string, target Target) Result {
	result := Result{TargetID: target.ID}

	// Re-check the filesystem every pass; an uninstalled Vektra release is
	// a skip, not a failure.
	if _, err := os.Stat(target.RootPath); err != nil {
		result.Outcome = Skipped
		return result
	}

	appDir := filepath.Join(target.RootPath, constants.PluginDirName)
	if err := os.MkdirAll(appDir, 0o755); err != nil {
		result.Outcome = Failed
		result.Err = err
		return result
	}

	srcDir := sourceDir(packageDir, target.CompatibilityTag)

	for _, name := range target.RequiredFiles {
		src := filepath.Join(srcDir, name)
		dst := filepath.Join(appDir, name)
		if err := e.copyWithRetry(src, dst); err != nil {
			result.Outcome = Failed
			result.Err = fmt.Errorf("copying %s: %w", name, err)
			return result
		}
		result.FilesCopied = append(result.FilesCopied, name)
	}

	if err := e.writeManifest(packageDir, srcDir, target, appDir); err != nil {
		result.Outcome = Failed
		result.Err = err
		return result
	}

	result.Outcome = Succeeded
	return result
}

// sourceDir picks the package subfolder matching the target's compatibility
// tag when the release ships per-host-version builds, else the package root.
func sourceDir(packageDir, compatibilityTag string) string {
	tagged := filepath.Join(packageDir, compatibilityTag)
	if info, err := os.Stat(tagged); err == nil && info.IsDir() {
		return tagged
	}
	return packageDir
}

// copyWithRetry copies one file, retrying on failure with a fixed delay. The
// host process may still be releasing its lock on the old plugin binary when
// the first attempts run; after the attempt budget is spent the last error
// propagates as the target's failure.
func (e *Engine) copyWithRetry(src, dst string) error {
	attempt := 0
	op := func() error {
		attempt++
		err := e.copyFn(src, dst)
		if err != nil {
			log.Debugf("copy attempt %d/%d for %s failed: %v", attempt, e.copyAttempts, dst, err)
		}
		return err
	}

	b := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(e.settings.CopyRetryDelay),
		uint64(e.copyAttempts-1),
	)
	return backoff.Retry(op, b)
}

// writeManifest renders the target's manifest template, substituting the
// placeholder token with the resolved plugin directory, and writes it at the
// target root under the fixed manifest filename. No template in the package
// means no manifest to refresh; that is not an error.
func (e *Engine) writeManifest(packageDir, srcDir string, target Target, appDir string) error {
	if target.ManifestTemplatePath == "" {
		return nil
	}

	tmplPath := target.ManifestTemplatePath
	if !filepath.IsAbs(tmplPath) {
		tmplPath = filepath.Join(srcDir, target.ManifestTemplatePath)
		if _, err := os.Stat(tmplPath); err != nil {
			tmplPath = filepath.Join(packageDir, target.ManifestTemplatePath)
		}
	}

	tmpl, err := os.ReadFile(tmplPath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Debugf("no manifest template for target %s", target.ID)
			return nil
		}
		return fmt.Errorf("reading manifest template: %w", err)
	}

	rendered := RenderManifest(string(tmpl), appDir)
	manifestPath := filepath.Join(target.RootPath, constants.ManifestFileName)
	if err := e.copyWithRetryBytes([]byte(rendered), manifestPath); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// RenderManifest substitutes the single placeholder token with the plugin
// directory path. Literal substitution, so rendering twice against the same
// directory is byte-identical.
func RenderManifest(template, pluginDir string) string {
	return strings.ReplaceAll(template, constants.ManifestPlaceholder, pluginDir)
}

// copyWithRetryBytes writes content with the same bounded retry as file
// copies; the manifest at the target root can be lock-held by the host too.
func (e *Engine) copyWithRetryBytes(content []byte, dst string) error {
	b := backoff.WithMaxRetries(
		backoff.NewConstantBackOff(e.settings.CopyRetryDelay),
		uint64(e.copyAttempts-1),
	)
	return backoff.Retry(func() error {
		return os.WriteFile(dst, content, 0o644)
	}, b)
}

// copyFile overwrites dst with src's content.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
