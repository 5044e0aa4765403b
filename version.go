package relay

// Version is the relay release, overridden at build time with
// -ldflags "-X github.com/aretw0/relay.Version=...".
var Version = "0.4.0"
