package cmd

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// Version information injected via main package
var (
	Version   string
	GitCommit string
	BuildDate string
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		title := color.New(color.FgCyan, color.Bold)
		label := color.New(color.FgGreen)

		title.Printf("ethexport %s\n", getVersion())
		fmt.Println()

		label.Print("Git commit: ")
		fmt.Println(getOrDefault(GitCommit, "unknown"))
		label.Print("Built:      ")
		fmt.Println(getOrDefault(BuildDate, "unknown"))
		label.Print("Go version: ")
		fmt.Println(runtime.Version())
		label.Print("Platform:   ")
		fmt.Printf("%s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func getVersion() string {
	return getOrDefault(Version, "dev")
}

func getOrDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
