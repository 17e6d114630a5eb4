package internal

// Version is the build version. It is overridden at build time with
// -ldflags "-X github.com/verivote/dreip-backend/internal.Version=...".
var Version = "dev"
