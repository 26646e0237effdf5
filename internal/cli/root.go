package cli

import "github.com/matzehuels/layerstack/pkg/buildinfo"

// SetVersion overrides the build information shown by --version, for
// builds that inject it into main rather than into buildinfo. Empty values
// keep the current ones.
func SetVersion(version, commit, date string) {
	if version != "" {
		buildinfo.Version = version
	}
	if commit != "" {
		buildinfo.Commit = commit
	}
	if date != "" {
		buildinfo.Date = date
	}
}
