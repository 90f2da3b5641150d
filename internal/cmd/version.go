package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-sentinel/internal/version"
)

var (
	versionJSON bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		info := version.GetInfo("sentinel")
		if versionJSON {
			_ = json.NewEncoder(os.Stdout).Encode(info) // Ignore encoding error
			return
		}
		fmt.Println(version.String("sentinel"))
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output as JSON")
}
