// cmd.go - Haupt-CLI Setup und Root Command
// Hauptfunktionen: NewCLI, appendEnvDocs, isTerminal
package cmd

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sis-k/executorch/envconfig"
	"github.com/sis-k/executorch/logutil"
)

// appendEnvDocs - Fuegt Umgebungsvariablen-Dokumentation zum Command hinzu
func appendEnvDocs(cmd *cobra.Command, envs []envconfig.EnvVar) {
	if len(envs) == 0 {
		return
	}

	envUsage := `
Environment Variables:
`
	for _, e := range envs {
		envUsage += fmt.Sprintf("      %-24s   %s\n", e.Name, e.Description)
	}

	cmd.SetUsageTemplate(cmd.UsageTemplate() + envUsage)
}

// isTerminal - Tabellen nur auf einem Terminal, sonst JSON
var isTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// NewCLI - Erstellt das Haupt-CLI mit allen Commands
func NewCLI() *cobra.Command {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cobra.EnableCommandSorting = false

	rootCmd := &cobra.Command{
		Use:           "executorch",
		Short:         "LLaVA export and QNN lowering tools",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
		},
		Run: func(cmd *cobra.Command, args []string) {
			if version, _ := cmd.Flags().GetBool("version"); version {
				versionHandler(cmd, args)
				return
			}

			cmd.Print(cmd.UsageString())
		},
	}

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	// Commands erstellen
	serveCmd := newServeCmd()
	remapCmd := newRemapCmd()
	preprocessCmd := newPreprocessCmd()
	shapesCmd := newShapesCmd()
	lowerCmd := newLowerCmd()

	// Environment-Dokumentation hinzufuegen
	envVars := envconfig.AsMap()

	for _, cmd := range []*cobra.Command{
		serveCmd,
		remapCmd,
		preprocessCmd,
		shapesCmd,
		lowerCmd,
	} {
		switch cmd {
		case serveCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["EXECUTORCH_DEBUG"],
				envVars["EXECUTORCH_HOST"],
				envVars["EXECUTORCH_MODELS"],
				envVars["EXECUTORCH_MAX_SEQ_LEN"],
				envVars["EXECUTORCH_ORIGINS"],
				envVars["EXECUTORCH_RULES"],
				envVars["EXECUTORCH_ALLOWED_HOSTS"],
				envVars["EXECUTORCH_MAX_REQUEST_MB"],
			})
		case remapCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["EXECUTORCH_DEBUG"],
				envVars["EXECUTORCH_RULES"],
				envVars["EXECUTORCH_STRICT_LOAD"],
			})
		case shapesCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{
				envVars["EXECUTORCH_MODELS"],
				envVars["EXECUTORCH_MAX_SEQ_LEN"],
			})
		case lowerCmd:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["EXECUTORCH_HOST"]})
		default:
			appendEnvDocs(cmd, []envconfig.EnvVar{envVars["EXECUTORCH_DEBUG"]})
		}
	}

	rootCmd.AddCommand(
		serveCmd,
		remapCmd,
		preprocessCmd,
		shapesCmd,
		lowerCmd,
	)

	return rootCmd
}
