package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	cfgFile string
	// boundFlags maps config keys to the flags that override them when set
	boundFlags = map[string]*pflag.Flag{}
)

// bindFlags registers flags of fs as overrides for config keys
func bindFlags(fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		boundFlags[key] = fs.Lookup(name)
	}
}

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cuagent",
		Short: "Drive a browser with a vision model until a task is done",
		Long: `cuagent opens a browser, shows the page to a vision-capable model and performs
the clicks, keystrokes and navigations it asks for until the model reports the task done.

Example:
  cuagent run "find the weather in Paris"
  cuagent serve --addr :8080`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (yaml, json or toml)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("provider", "gemini", "Decision provider: gemini, claude, openai")
	flags.String("model", "", "Specific model override")
	flags.String("backend", "rod", "Browser backend: rod, chromedp, playwright")
	flags.Bool("headless", true, "Run the browser without a window")
	flags.String("profile", "", "Chrome/Chromium profile directory for authenticated sessions (close browser first)")
	flags.String("start-url", "https://www.google.com", "Page opened before the first observation")
	flags.Int("max-cycles", 10, "Maximum decision cycles per job")
	bindFlags(flags, map[string]string{
		"logger.level":        "log-level",
		"ai.provider":         "provider",
		"ai.model":            "model",
		"browser.backend":     "backend",
		"browser.headless":    "headless",
		"browser.profile_dir": "profile",
		"browser.start_url":   "start-url",
		"agent.max_cycles":    "max-cycles",
	})

	rootCmd.AddCommand(newRunCmd(), newServeCmd())
	return rootCmd
}
