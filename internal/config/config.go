package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/playontable/backend/internal/relay"
)

// Config is the service configuration, loaded from the environment.
// The relay policy knobs cover the behaviors that varied across
// deployments; their defaults match the reference protocol.
type Config struct {
	Port      string
	RedisAddr string
	Policy    relay.Policy
}

func Load() (*Config, error) {
	policy := relay.DefaultPolicy()

	var err error
	if policy.MinStartMembers, err = getEnvInt("RELAY_MIN_START_MEMBERS", policy.MinStartMembers); err != nil {
		return nil, err
	}
	if policy.AllowHostRejoin, err = getEnvBool("RELAY_ALLOW_HOST_REJOIN", policy.AllowHostRejoin); err != nil {
		return nil, err
	}
	if policy.HostOnlyStart, err = getEnvBool("RELAY_HOST_ONLY_START", policy.HostOnlyStart); err != nil {
		return nil, err
	}
	if policy.AutoRoomOnConnect, err = getEnvBool("RELAY_AUTO_ROOM", policy.AutoRoomOnConnect); err != nil {
		return nil, err
	}
	if policy.FoldCodeCase, err = getEnvBool("RELAY_FOLD_CODE_CASE", policy.FoldCodeCase); err != nil {
		return nil, err
	}

	if policy.MinStartMembers < 1 {
		return nil, errors.New("RELAY_MIN_START_MEMBERS must be at least 1")
	}

	return &Config{
		Port:      getEnvOrDefault("PORT", "8080"),
		RedisAddr: os.Getenv("REDIS_ADDR"),
		Policy:    policy,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, errors.New(key + " must be an integer: " + value)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, errors.New(key + " must be a boolean: " + value)
	}
	return b, nil
}
