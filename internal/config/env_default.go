//go:build !dev

package config

// .env loading is a dev convenience; production deployments configure the
// process environment directly.
func loadDotEnv() error { return nil }
