// Command repstack-cli is the terminal client for a RepStack server. It
// edits templates through the optimistic tree cache, logs sets during a
// session, and queues sets locally when the server is unreachable.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/meltforce/repstack/internal/client"
	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	serverURL string
	apiKey    string
	stateDir  string

	rootCmd = &cobra.Command{
		Use:           "repstack",
		Short:         "Terminal client for a RepStack workout server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", os.Getenv("REPSTACK_SERVER"), "server URL (env REPSTACK_SERVER)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("REPSTACK_API_KEY"), "API key for writes (env REPSTACK_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultStateDir(), "directory for the offline set queue")
}

func defaultStateDir() string {
	if v := os.Getenv("REPSTACK_STATE_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".repstack"
	}
	return filepath.Join(home, ".repstack")
}

// api builds the REST client, failing early when no server is configured.
func api() (*client.HTTPClient, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("no server configured: set --server or REPSTACK_SERVER")
	}
	return client.NewHTTPClient(serverURL, apiKey), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
