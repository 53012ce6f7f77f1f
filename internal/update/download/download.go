package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/draftware/stampkit/internal/constants"
	"github.com/draftware/stampkit/internal/update/resolver"
)

// ErrDownload wraps any transport failure while fetching a release package.
// There is no automatic retry here; retrying is the caller's decision.
var ErrDownload = errors.New("release package download failed")

// ProgressFunc receives download progress as a percentage, 0 to 100,
// monotonically non-decreasing.
type ProgressFunc func(percent int)

// Downloader fetches release packages into a scratch location. It never
// touches an installation target.
type Downloader struct {
	client     *http.Client
	scratchDir string
}

func New(scratchDir string) *Downloader {
	return &Downloader{
		client:     &http.Client{},
		scratchDir: scratchDir,
	}
}

// Download retrieves the release package for desc and returns the path of
// the written zip file. onProgress may be nil.
func (d *Downloader) Download(ctx context.Context, desc *resolver.ReleaseDescriptor, onProgress ProgressFunc) (string, error) {
	asset, err := PickAsset(desc.Assets)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	log.Infof("downloading %s", asset.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, asset.URL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing download response body: %v", cerr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: unexpected status %s", ErrDownload, resp.Status)
	}

	out, err := os.CreateTemp(d.scratchDir, constants.ScratchPrefix+"*.zip")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	if onProgress != nil {
		onProgress(0)
	}

	counter := &progressWriter{total: resp.ContentLength, onProgress: onProgress}
	if _, err := io.Copy(out, io.TeeReader(resp.Body, counter)); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	if onProgress != nil {
		onProgress(100)
	}

	log.Infof("downloaded release package to %s", out.Name())
	return out.Name(), nil
}

// PickAsset selects the release package for this platform. Release assets are
// named stampkit-<os>-<arch>-<version>.zip; when no platform-specific asset
// exists the first zip asset is used, so single-asset releases keep working.
func PickAsset(assets []resolver.AssetRef) (resolver.AssetRef, error) {
	prefix := fmt.Sprintf("%s-%s-%s-", constants.PluginName, runtime.GOOS, runtime.GOARCH)

	var fallback *resolver.AssetRef
	for i, asset := range assets {
		name := strings.ToLower(asset.Name)
		if !strings.HasSuffix(name, ".zip") {
			continue
		}
		if strings.HasPrefix(name, prefix) {
			return asset, nil
		}
		if fallback == nil {
			fallback = &assets[i]
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return resolver.AssetRef{}, fmt.Errorf("release has no usable zip asset for %s/%s", runtime.GOOS, runtime.GOARCH)
}

// progressWriter tracks bytes copied and reports percent complete. Reported
// values never decrease; with an unknown content length it stays at 0 until
// the final 100 is reported by the caller.
type progressWriter struct {
	total      int64
	written    int64
	last       int
	onProgress ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.onProgress != nil && p.total > 0 {
		percent := int(p.written * 100 / p.total)
		if percent > 100 {
			percent = 100
		}
		if percent > p.last {
			p.last = percent
			p.onProgress(percent)
		}
	}
	return len(b), nil
}
