package main

// Injected at build time:
//
//	go build -ldflags "-X main.Version=v1.2.0 -X main.BuildTime=... -X main.GitCommit=..."
var (
	Version   = "v0.0.0-dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
