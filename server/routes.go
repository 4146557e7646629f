// Package server - Haupt-Router und Server-Setup fuer den Export-Dienst
// Beinhaltet: Server-Struct, Router-Registrierung, Fehler-Antworten
package server

import (
	"errors"
	"net"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/sis-k/executorch/convert"
	"github.com/sis-k/executorch/envconfig"
	"github.com/sis-k/executorch/huggingface"
	"github.com/sis-k/executorch/version"
)

var mode string = gin.DebugMode

// Server haelt die beim Start geladene Export-Konfiguration
type Server struct {
	addr net.Addr

	// rules werden fuer /api/remap ohne eigene Regeln verwendet
	rules convert.Rules

	// preprocessor liefert Crop-Groesse und Normalisierung, nil = CLIP-Defaults
	preprocessor *huggingface.PreprocessorConfig

	model     string
	maxSeqLen int

	// hosts und maxBody werden aus envconfig gefuellt, wenn sie leer sind
	hosts   *hostPolicy
	maxBody int64
}

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// errorStatus ordnet bekannte Fehler einem HTTP-Status zu
func errorStatus(err error) int {
	switch {
	case errors.Is(err, convert.ErrInvalidRule),
		errors.Is(err, convert.ErrKeyCollision):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
	}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	if s.hosts == nil {
		s.hosts = newHostPolicy(envconfig.AllowedHosts())
	}
	if s.maxBody == 0 {
		s.maxBody = int64(envconfig.MaxRequestMB()) << 20
	}

	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.Use(
		cors.New(corsConfig),
		s.hosts.middleware(s.addr),
		limitBody(s.maxBody),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "executorch is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "executorch is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	// Export
	r.POST("/api/remap", s.RemapHandler)
	r.POST("/api/preprocess", s.PreprocessHandler)
	r.GET("/api/shapes", s.ShapesHandler)

	// Lowering
	r.POST("/api/lower", s.LowerHandler)

	return r, nil
}
