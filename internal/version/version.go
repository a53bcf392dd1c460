package version

// Version is set at build time.
// Example: go build -ldflags "-X github.com/myelectricaldata/importer/internal/version.Version=v1.2.0"
var Version = "dev"
