package types

// Version is the canonical project version.
// The CLI, the bridge globals, and the plugin naming contract share it.
const Version = "0.3.0"
