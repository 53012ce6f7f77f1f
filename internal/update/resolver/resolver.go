package resolver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/draftware/stampkit/internal/config"
	"github.com/draftware/stampkit/internal/version"
)

// Typed check failures. Callers branch on these with errors.Is; user-facing
// messaging treats both as "try again later" but they are logged distinctly.
var (
	ErrNetwork = errors.New("release feed unreachable")
	ErrParse   = errors.New("release feed response malformed")
)

// AssetRef is one downloadable file attached to a release.
type AssetRef struct {
	Name string `json:"name"`
	URL  string `json:"browser_download_url"`
}

// ReleaseDescriptor describes the latest published release. Immutable once
// fetched.
type ReleaseDescriptor struct {
	Version string
	Assets  []AssetRef
	Notes   string
}

// latestRelease mirrors the feed's latest-release JSON document.
type latestRelease struct {
	TagName    string     `json:"tag_name"`
	Body       string     `json:"body"`
	Draft      bool       `json:"draft"`
	Prerelease bool       `json:"prerelease"`
	Assets     []AssetRef `json:"assets"`
}

// Resolver determines the locally running version and queries the release
// feed for the latest published one.
type Resolver struct {
	feedURL         string
	allowPrerelease bool
	client          *http.Client

	// currentVersion is resolved once at construction from the embedded
	// build metadata.
	currentVersion string
}

func New(settings config.FeedSettings) *Resolver {
	return &Resolver{
		feedURL:         settings.URL,
		allowPrerelease: settings.AllowPrerelease,
		client:          &http.Client{Timeout: settings.Timeout},
		currentVersion:  version.Current(),
	}
}

// WithCurrentVersion overrides the embedded version, mainly for tests and
// for the deploy-only launcher path where the plugin's version is passed in.
func (r *Resolver) WithCurrentVersion(v string) *Resolver {
	r.currentVersion = v
	return r
}

// CurrentVersion returns the locally running version. Never fails; source
// builds without embedded metadata report version.FallbackVersion.
func (r *Resolver) CurrentVersion() string {
	return r.currentVersion
}

// CheckForUpdate issues one request to the release feed and returns a
// descriptor for the latest release when it is strictly newer than the
// running version. A nil descriptor with a nil error means up to date; it is
// not an error. Draft and prerelease entries are ignored unless prereleases
// are enabled in configuration.
func (r *Resolver) CheckForUpdate(ctx context.Context) (*ReleaseDescriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			log.Warnf("error closing feed response body: %v", cerr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: feed returned status %s", ErrNetwork, resp.Status)
	}

	var release latestRelease
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if release.TagName == "" {
		return nil, fmt.Errorf("%w: missing version tag", ErrParse)
	}

	if release.Draft || (release.Prerelease && !r.allowPrerelease) {
		log.Debugf("latest release %s is draft/prerelease, ignoring", release.TagName)
		return nil, nil
	}

	if !version.IsNewer(release.TagName, r.currentVersion) {
		log.Debugf("up to date: current=%s latest=%s", r.currentVersion, release.TagName)
		return nil, nil
	}

	log.Infof("update available: %s -> %s", r.currentVersion, release.TagName)
	return &ReleaseDescriptor{
		Version: release.TagName,
		Assets:  release.Assets,
		Notes:   release.Body,
	}, nil
}
