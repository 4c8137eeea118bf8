// Package buildinfo holds version metadata stamped in by the build,
// following the teacher's cmd/ployzd pattern of a tiny version package
// referenced from the root command's --version output.
package buildinfo

// Version is overridden at build time via -ldflags.
var Version = "dev"
