package cli

import (
	"runtime"

	"github.com/spf13/cobra"
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Print the version number",
	Annotations: map[string]string{annotationStandalone: "true"},
	Run: func(cmd *cobra.Command, _ []string) {
		if versionShort {
			cmd.Println(version)
			return
		}
		cmd.Printf("docqa version %s (%s, %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "print only the version")
	rootCmd.AddCommand(versionCmd)
}
