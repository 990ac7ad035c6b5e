package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rnwolf/dbr/internal/client"
	"github.com/rnwolf/dbr/internal/ui"
)

var (
	serverAddr string
	httpURL    string
	transport  string
	jsonOutput bool
	orgID      string
	colorFlag  string

	dbrClient client.Client
)

func defaultHTTPURL() string {
	if s := os.Getenv("DBR_HTTP_URL"); s != "" {
		return s
	}
	if r, ok := activeRemote(); ok && r.HTTPURL != "" {
		return r.HTTPURL
	}
	return "http://localhost:8080"
}

func defaultServer() string {
	if s := os.Getenv("DBR_SERVER"); s != "" {
		return s
	}
	if r, ok := activeRemote(); ok && r.URL != "" {
		return r.URL
	}
	return "localhost:9090"
}

func defaultOrg() string {
	if s := os.Getenv("DBR_ORG"); s != "" {
		return s
	}
	if r, ok := activeRemote(); ok {
		return r.Organization
	}
	return ""
}

// noClient skips the client connection for commands that work locally.
func noClient(cmd *cobra.Command, args []string) error { return nil }

var rootCmd = &cobra.Command{
	Use:           "dbr <command>",
	Short:         "CLI client for the Drum-Buffer-Rope scheduling service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		color, err := colorEnabled()
		if err != nil {
			return err
		}
		ui.SetColor(color)

		switch transport {
		case "http":
			dbrClient = client.NewHTTPClient(httpURL)
		case "grpc":
			c, err := client.NewGRPCClient(serverAddr)
			if err != nil {
				return fmt.Errorf("failed to connect to server: %w", err)
			}
			dbrClient = c
		default:
			return fmt.Errorf("unknown transport %q (must be http or grpc)", transport)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbrClient != nil {
			dbrClient.Close()
		}
	},
}

// colorEnabled resolves --color for stdout.
func colorEnabled() (bool, error) {
	mode, err := ui.ParseColorMode(colorFlag)
	if err != nil {
		return false, err
	}
	return ui.ColorEnabled(mode, os.Stdout), nil
}

// requireOrg returns the --org value or an error naming the flag.
func requireOrg() (string, error) {
	if orgID == "" {
		return "", fmt.Errorf("no organization selected: pass --org, set DBR_ORG or configure one on the active remote")
	}
	return orgID, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "http-url", defaultHTTPURL(), "HTTP server URL")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", defaultServer(), "gRPC server address")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "http", "transport protocol (http or grpc)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().StringVar(&orgID, "org", defaultOrg(), "organization id")
	rootCmd.PersistentFlags().StringVar(&colorFlag, "color", "auto", "colorize output (auto, always or never)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "entities", Title: "Entities:"},
		&cobra.Group{ID: "scheduling", Title: "Scheduling:"},
		&cobra.Group{ID: "views", Title: "Views:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc)

	// Entities
	rootCmd.AddCommand(orgCmd)
	rootCmd.AddCommand(ccrCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(itemCmd)
	rootCmd.AddCommand(depCmd)

	// Scheduling
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(readyCmd)
	rootCmd.AddCommand(blockedCmd)

	// Views
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(eventsCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(remoteCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
