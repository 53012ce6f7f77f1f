package version

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Change this for new packages
	RepoUser = "draftware"
	RepoName = "stampkit"
	RepoUrl  = "https://github.com/draftware/stampkit"
	Package  = "stampkit"
)

// FallbackVersion is reported when the embedded version metadata is unusable.
const FallbackVersion = "0.0.0"

type PackageInfo struct {
	PackageName        string
	RepoUrl            string
	RepoUser           string
	RepoName           string
	PackageVersion     string
	PackageCommit      string
	PackageReleaseDate string
}

// GetPackageInfo returns a struct with information about the current package
func GetPackageInfo() PackageInfo {
	return PackageInfo{
		PackageName:        Package,
		RepoUrl:            RepoUrl,
		RepoUser:           RepoUser,
		RepoName:           RepoName,
		PackageVersion:     Version,
		PackageCommit:      Commit,
		PackageReleaseDate: Date,
	}
}

// Current returns the version embedded at build time. It never fails: when
// the build carries no usable version metadata (source builds report "dev"),
// FallbackVersion is returned instead.
func Current() string {
	if Version == "" || Version == "dev" || Version == "unknown" {
		return FallbackVersion
	}
	return Version
}
