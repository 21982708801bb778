package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

var (
	// Set via PALETTE_DEBUG in the environment
	Debug bool
	// Set via PALETTE_PREFETCH in the environment
	Prefetch int
	// Set via PALETTE_SEED in the environment
	Seed uint64
)

type EnvVar struct {
	Name        string
	Value       any
	Description string
}

func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"PALETTE_DEBUG":    {"PALETTE_DEBUG", Debug, "Show additional debug information (e.g. PALETTE_DEBUG=1)"},
		"PALETTE_PREFETCH": {"PALETTE_PREFETCH", Prefetch, "Number of batches decoded ahead of collation (default 2)"},
		"PALETTE_SEED":     {"PALETTE_SEED", Seed, "Default random seed for collation runs"},
	}
}

func clean(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}

func LoadConfig() {
	if debug := clean("PALETTE_DEBUG"); debug != "" {
		d, err := strconv.ParseBool(debug)
		if err == nil {
			Debug = d
		} else {
			Debug = true
		}
	}

	Prefetch = 2
	if prefetch := clean("PALETTE_PREFETCH"); prefetch != "" {
		n, err := strconv.Atoi(prefetch)
		if err != nil || n < 0 {
			slog.Error("invalid setting, ignoring", "PALETTE_PREFETCH", prefetch, "error", err)
		} else {
			Prefetch = n
		}
	}

	if seed := clean("PALETTE_SEED"); seed != "" {
		n, err := strconv.ParseUint(seed, 10, 64)
		if err != nil {
			slog.Error("invalid setting, ignoring", "PALETTE_SEED", seed, "error", err)
		} else {
			Seed = n
		}
	}
}
