package appinfo

// Name is the user-facing application name.
const Name = "Overkill"

// Version is the user-facing semantic version.
//
// Keep this as a var so it can be overridden at build time via:
//
//	-ldflags "-X overkill/internal/appinfo.Version=0.2.0"
var Version = "0.1.0"

// Tagline is shown under the header of the interactive surface.
const Tagline = "feature request → SPEC.md"

func Display() string {
	v := Version
	if v == "" {
		v = "dev"
	}
	return Name + " v" + v
}
