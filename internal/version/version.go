package version

// Version is overridden at build time with -ldflags "-X github.com/bnema/numsel/internal/version.Version=...".
var Version = "dev"
