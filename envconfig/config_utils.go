// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String: String-Getter
// - Uint: Integer-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// Uint gibt eine Funktion zurueck, die einen uint mit Default-Wert liest
func Uint(key string, defaultValue uint) func() uint {
	return func() uint {
		if s := Var(key); s != "" {
			if n, err := strconv.ParseUint(s, 10, 64); err != nil {
				slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			} else {
				return uint(n)
			}
		}
		return defaultValue
	}
}

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
func AsMap() map[string]EnvVar {
	return map[string]EnvVar{
		"EXECUTORCH_DEBUG":          {"EXECUTORCH_DEBUG", LogLevel(), "Show additional debug information (e.g. EXECUTORCH_DEBUG=1)"},
		"EXECUTORCH_HOST":           {"EXECUTORCH_HOST", Host(), "IP Address for the export server (default 127.0.0.1:11435)"},
		"EXECUTORCH_ORIGINS":        {"EXECUTORCH_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"EXECUTORCH_MODELS":         {"EXECUTORCH_MODELS", Models(), "The path to the checkpoint directory"},
		"EXECUTORCH_MAX_SEQ_LEN":    {"EXECUTORCH_MAX_SEQ_LEN", MaxSeqLen(), "Maximum decoder sequence length (default 768)"},
		"EXECUTORCH_STRICT_LOAD":    {"EXECUTORCH_STRICT_LOAD", StrictLoad(), "Fail on missing or unexpected state dict keys"},
		"EXECUTORCH_RULES":          {"EXECUTORCH_RULES", RulesFile(), "JSON file with ordered tensor rename rules"},
		"EXECUTORCH_ALLOWED_HOSTS":  {"EXECUTORCH_ALLOWED_HOSTS", AllowedHosts(), "A comma separated list of extra host names accepted by the server"},
		"EXECUTORCH_MAX_REQUEST_MB": {"EXECUTORCH_MAX_REQUEST_MB", MaxRequestMB(), "Maximum request body size in MiB (default 32)"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
