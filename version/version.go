// Package version holds the host build version and the extension API
// version modules declare compatibility against. Both can be overridden
// at link time:
//
//	go build -ldflags "-X github.com/leeforge/bot/version.Version=1.4.0"
package version

var (
	// Version is the host build version.
	Version = "0.9.0-dev"

	// API is the extension API version every module's required range must satisfy.
	API = "2.4.0"

	// APIPackage is the dependency key modules use to declare the API range.
	APIPackage = "github.com/leeforge/bot"
)
