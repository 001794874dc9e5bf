package version

// Version is the version of the dw CLI and the User-Agent suffix of the
// client. It is overridden at build time with -ldflags.
var Version = "0.1.0-dev"
