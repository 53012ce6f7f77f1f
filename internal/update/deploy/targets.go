package deploy

import "github.com/draftware/stampkit/internal/config"

// TargetsFromConfig maps the configured compatibility table onto deployment
// targets, keeping table order so passes stay deterministic.
func TargetsFromConfig(entries []config.TargetSettings) []Target {
	targets := make([]Target, 0, len(entries))
	for _, e := range entries {
		targets = append(targets, Target{
			ID:                   e.ID,
			RootPath:             e.RootPath,
			CompatibilityTag:     e.CompatibilityTag,
			RequiredFiles:        e.RequiredFiles,
			ManifestTemplatePath: e.ManifestTemplatePath,
		})
	}
	return targets
}
