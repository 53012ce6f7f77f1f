package constants

// Identity of the stampkit plugin package and its release feed.
const (
	// PluginName is the name of the plugin binary deployed into each host
	// installation, without extension.
	PluginName = "stampkit"

	// PluginDirName is the subdirectory created under each deployment
	// target root that receives the plugin files.
	PluginDirName = "stampkit"

	// ManifestFileName is the descriptor the Vektra host reads at startup
	// to locate the plugin binary. It is written at the target root,
	// sibling to PluginDirName.
	ManifestFileName = "stampkit.addin"

	// ManifestPlaceholder is the single token substituted in the manifest
	// template with the resolved plugin directory path.
	ManifestPlaceholder = "{{PLUGIN_DIR}}"

	// EnvPrefix is the prefix for environment variable configuration,
	// e.g. STAMPKIT_FEED_URL -> feed.url.
	EnvPrefix = "STAMPKIT_"

	// ScratchPrefix names the temp files created while downloading and
	// extracting a release package.
	ScratchPrefix = "stampkit-update-"
)

// DefaultFeedURL is the latest-release metadata endpoint queried when no
// feed.url is configured.
const DefaultFeedURL = "https://api.github.com/repos/draftware/stampkit/releases/latest"
