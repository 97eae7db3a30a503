package main

import (
	"fmt"
	"io"
	"os"

	"github.com/m3rciful/shopbot/core/cmd"
	coreconfig "github.com/m3rciful/shopbot/core/config"
	"github.com/m3rciful/shopbot/internal/app"
)

func main() {
	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "SHOPBOT_CONFIG",
		DefaultConfigPath: "bot.yaml",
		EnvFiles:          []string{".env"},
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			cfg, err := coreconfig.Load(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: app.Bootstrap,
	})
	os.Exit(exitCode(os.Stderr, err))
}

// exitCode reports err on w. The structured logger is already shut down when
// Run returns, so this writes plain text.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "shopbot: %v\n", err)
	return 1
}
