package version

// Version is the current version of the meetmesh CLI.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/meetmesh/meetmesh/internal/version.Version=v1.0.0'"
var Version = "dev"
