// routes_serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - Hauptfunktion zum Starten des HTTP-Servers,
// loadRules()/loadModelConfig() - Konfiguration beim Start

package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sis-k/executorch/convert"
	"github.com/sis-k/executorch/envconfig"
	"github.com/sis-k/executorch/huggingface"
	"github.com/sis-k/executorch/logutil"
	"github.com/sis-k/executorch/version"
)

// loadRules liest EXECUTORCH_RULES oder faellt auf die LLaVA-Regeln zurueck
func loadRules(fsys fs.FS) (convert.Rules, error) {
	path := envconfig.RulesFile()
	if path == "" {
		config, err := huggingface.LoadConfig(fsys)
		if err != nil {
			return convert.LlavaTextRules(), nil
		}
		return convert.LlavaTextRulesFor(config.TransformersVersion), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rules, err := convert.LoadRules(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	slog.Info("loaded rename rules", "path", path, "rules", len(rules))
	return rules, nil
}

// loadModelConfig liest config.json und preprocessor_config.json. Fehlende
// Dateien sind kein Fehler, dann gelten die llava-1.5 Defaults.
func loadModelConfig(fsys fs.FS) (string, *huggingface.PreprocessorConfig, error) {
	model := huggingface.ModelTypeLlava
	config, err := huggingface.LoadConfig(fsys)
	switch {
	case errors.Is(err, huggingface.ErrConfigNotFound):
		slog.Warn("no config.json, using defaults", "model", model)
	case err != nil:
		return "", nil, err
	default:
		if model, err = huggingface.DetectModelType(config); err != nil {
			return "", nil, err
		}
	}

	pre, err := huggingface.LoadPreprocessorConfig(fsys)
	if err != nil {
		slog.Warn("no usable preprocessor config, using defaults", "error", err)
		pre = nil
	}

	return model, pre, nil
}

// Serve startet den HTTP-Server
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	fsys := os.DirFS(envconfig.Models())
	rules, err := loadRules(fsys)
	if err != nil {
		return err
	}

	model, pre, err := loadModelConfig(fsys)
	if err != nil {
		return err
	}

	s := &Server{
		addr:         ln.Addr(),
		rules:        rules,
		preprocessor: pre,
		model:        model,
		maxSeqLen:    int(envconfig.MaxSeqLen()),
	}

	h, err := s.GenerateRoutes()
	if err != nil {
		return err
	}

	ctx, done := context.WithCancel(context.Background())

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	srvr := &http.Server{Handler: h}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
		done()
	}()

	err = srvr.Serve(ln)
	// If server is closed from the signal handler, wait for the ctx to be done
	// otherwise error out quickly
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-ctx.Done()
	return nil
}
