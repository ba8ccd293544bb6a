package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/shuttlelab/shuttle/inspect"
	"github.com/shuttlelab/shuttle/reporting"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [report file]",
	Short: "Serve a recorded report database for browsing.",
	Long: "`inspect [report file]` starts a web server over a report " +
		"database produced by analyze.",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) < 1 {
			fmt.Fprintln(os.Stderr,
				"Error: report file argument is required")
			os.Exit(1)
		}

		reader := reporting.NewReader(args[0])

		port, _ := cmd.Flags().GetInt("port")
		if port == 0 {
			if env := os.Getenv("SHUTTLE_PORT"); env != "" {
				port, _ = strconv.Atoi(env)
			}
		}

		inspector := inspect.NewInspector()
		if port != 0 {
			inspector = inspector.WithPortNumber(port)
		}

		inspector.RegisterReader(reader)

		url := inspector.StartServer()

		if open, _ := cmd.Flags().GetBool("open"); open {
			if err := browser.OpenURL(url); err != nil {
				fmt.Fprintf(os.Stderr, "Error opening browser: %v\n", err)
			}
		}

		select {}
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().Int("port", 0, "Port for the inspection server")
	inspectCmd.Flags().Bool("open", false,
		"Open the inspection page in a browser")
}
