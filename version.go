package sketchy

// Version is set at build time with -ldflags "-X github.com/aretw0/sketchy.Version=...".
var Version = "dev"
