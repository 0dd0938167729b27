package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the application banner and resolved configuration.
// Server mode only; the stdio transport must not write to stdout.
func PrintBanner(config *Config, logger arbor.ILogger) {
	banner.PrintSimple("Websearch", GetVersion())

	mode := "server"
	if config.AgentMode() {
		mode = fmt.Sprintf("agent:%s", config.Storage.AgentID)
	}

	logger.Info().
		Str("mode", mode).
		Str("index_dir", config.Storage.IndexDir).
		Str("embedding", config.Embedding.Provider).
		Str("search_provider", config.Search.Provider).
		Int("port", config.Server.Port).
		Msg("Configuration resolved")
}
