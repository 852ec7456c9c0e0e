package config

// Version is stamped at build time via -ldflags "-X .../config.Version=...".
var Version string
