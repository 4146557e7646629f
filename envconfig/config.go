// config.go - Haupt-Konfigurationsfunktionen fuer executorch
//
// Dieses Modul enthaelt:
// - Host: Adresse des HTTP-Dienstes (EXECUTORCH_HOST)
// - AllowedOrigins: Erlaubte CORS-Origins (EXECUTORCH_ORIGINS)
// - Models: Checkpoint-Verzeichnis (EXECUTORCH_MODELS)
// - LogLevel: Log-Level (EXECUTORCH_DEBUG)
//
// Getter-Generatoren und AsMap/Values liegen in config_utils.go.
package envconfig

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sis-k/executorch/logutil"
)

// Host gibt Scheme und Host zurueck
// Konfigurierbar via EXECUTORCH_HOST
// Default: http://127.0.0.1:11435
func Host() *url.URL {
	defaultPort := "11435"

	s := strings.TrimSpace(Var("EXECUTORCH_HOST"))
	scheme, hostport, ok := strings.Cut(s, "://")
	switch {
	case !ok:
		scheme, hostport = "http", s
	case scheme == "http":
		defaultPort = "80"
	case scheme == "https":
		defaultPort = "443"
	}

	hostport, path, _ := strings.Cut(hostport, "/")
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = "127.0.0.1", defaultPort
		if ip := net.ParseIP(strings.Trim(hostport, "[]")); ip != nil {
			host = ip.String()
		} else if hostport != "" {
			host = hostport
		}
	}

	if n, err := strconv.ParseInt(port, 10, 32); err != nil || n > 65535 || n < 0 {
		slog.Warn("invalid port, using default", "port", port, "default", defaultPort)
		port = defaultPort
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, port),
		Path:   path,
	}
}

// AllowedOrigins gibt erlaubte Origins zurueck
// Konfigurierbar via EXECUTORCH_ORIGINS (komma-separiert)
// Enthaelt Standard-Origins fuer localhost
func AllowedOrigins() (origins []string) {
	if s := Var("EXECUTORCH_ORIGINS"); s != "" {
		origins = strings.Split(s, ",")
	}

	for _, origin := range []string{"localhost", "127.0.0.1", "0.0.0.0"} {
		origins = append(origins,
			fmt.Sprintf("http://%s", origin),
			fmt.Sprintf("https://%s", origin),
			fmt.Sprintf("http://%s", net.JoinHostPort(origin, "*")),
			fmt.Sprintf("https://%s", net.JoinHostPort(origin, "*")),
		)
	}

	return origins
}

// Models gibt das Checkpoint-Verzeichnis zurueck
// Konfigurierbar via EXECUTORCH_MODELS
// Default: $HOME/.executorch/models
func Models() string {
	if s := Var("EXECUTORCH_MODELS"); s != "" {
		return s
	}

	home, err := os.UserHomeDir()
	if err != nil {
		panic(err)
	}

	return filepath.Join(home, ".executorch", "models")
}

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via EXECUTORCH_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE, oder Level-Name
func LogLevel() slog.Level {
	return logutil.ParseLevel(Var("EXECUTORCH_DEBUG"))
}

var (
	// MaxSeqLen ist die maximale Sequenzlaenge des Text-Decoders (KV-Cache-Kapazitaet)
	MaxSeqLen = Uint("EXECUTORCH_MAX_SEQ_LEN", 768)

	// StrictLoad macht fehlende oder unerwartete State-Dict-Schluessel zu Fehlern
	StrictLoad = Bool("EXECUTORCH_STRICT_LOAD")

	// RulesFile ueberschreibt die eingebauten Umbenennungsregeln
	RulesFile = String("EXECUTORCH_RULES")

	// MaxRequestMB begrenzt die Groesse eines Request-Bodys (Bilder, Graphen)
	MaxRequestMB = Uint("EXECUTORCH_MAX_REQUEST_MB", 32)
)

// AllowedHosts gibt zusaetzliche Host-Namen bzw. Domains zurueck, die der
// Dienst bei Bindung an Loopback akzeptiert
// Konfigurierbar via EXECUTORCH_ALLOWED_HOSTS (komma-separiert)
func AllowedHosts() (hosts []string) {
	for _, h := range strings.Split(Var("EXECUTORCH_ALLOWED_HOSTS"), ",") {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return hosts
}

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
