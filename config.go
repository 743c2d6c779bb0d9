package orca

import (
	"fmt"
	"os"
	"strconv"
)

// Environment variables read by ConfigFromEnv.
const (
	EnvCoreAddress = "ORCA_SERVER"
	EnvHost        = "ORCA_HOST"
	EnvPort        = "ORCA_PORT"
)

// Defaults used when the environment leaves a value unset.
const (
	DefaultCoreAddress = "127.0.0.1:50051"
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 50052
)

// Config carries the addresses a processor needs: where Orca Core lives, and
// the host and port the processor itself serves on.
type Config struct {
	// CoreAddress is the host:port of the Orca Core service.
	CoreAddress string

	// Host is the address the processor advertises to Orca Core. Core dials
	// back on it, so it must be reachable from Core's network.
	Host string

	// Port is the port the processor listens and advertises on.
	Port int
}

// ConfigFromEnv reads configuration from ORCA_SERVER, ORCA_HOST, and
// ORCA_PORT, falling back to local defaults. An unparseable or out-of-range
// ORCA_PORT is an error.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		CoreAddress: DefaultCoreAddress,
		Host:        DefaultHost,
		Port:        DefaultPort,
	}
	if v := os.Getenv(EnvCoreAddress); v != "" {
		cfg.CoreAddress = v
	}
	if v := os.Getenv(EnvHost); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port >= 65536 {
			return Config{}, fmt.Errorf("invalid %s value %q: must be a port number", EnvPort, v)
		}
		cfg.Port = port
	}
	return cfg, nil
}

// ListenAddress returns the address the processor binds, listening on all
// interfaces so Core can dial in.
func (c Config) ListenAddress() string {
	return fmt.Sprintf("0.0.0.0:%d", c.Port)
}

// AdvertiseAddress returns the host:port the processor reports to Orca Core.
func (c Config) AdvertiseAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
