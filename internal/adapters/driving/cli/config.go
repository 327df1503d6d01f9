package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/docqa/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and edit configuration",
	Long: `View and edit the docqa configuration file.

Keys use dotted section names, for example:
  docqa config set llm.model llama3.1
  docqa config set ingest.workers 4
  docqa config unset vector.qdrant.api_key

Omit the value of 'set' to be prompted for it without echo:
  docqa config set llm.api_key`,
	Annotations: map[string]string{annotationStandalone: "true"},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long:  `Prints the configuration after defaults and environment overrides. Secrets are masked.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println(configPath())
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print a value stored in the configuration file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a value in the configuration file",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a value from the configuration file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	rootCmd.AddCommand(configCmd)
}

func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultPath()
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	out, err := config.Render(loaded)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}
	cmd.Print(string(out))
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	store, err := config.NewFileStore(configPath())
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}

	val, ok := store.Get(args[0])
	if !ok {
		return fmt.Errorf("key %q is not set in %s", args[0], store.Path())
	}
	if isSecretKey(args[0]) {
		cmd.Println(maskSecret(fmt.Sprint(val)))
		return nil
	}
	cmd.Println(val)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	store, err := config.NewFileStore(configPath())
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}

	key := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		cmd.Printf("Value for %s: ", key)
		value = readSecret(cmd.InOrStdin())
		cmd.Println()
	}
	if value == "" {
		return fmt.Errorf("no value given for %s", key)
	}

	prev, hadPrev := store.Get(key)
	if err := store.Set(key, value); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	// Reject values the loader would refuse so the file stays usable.
	if _, err := config.Load(store.Path()); err != nil {
		var revertErr error
		if hadPrev {
			revertErr = store.Set(key, fmt.Sprint(prev))
		} else {
			revertErr = store.Unset(key)
		}
		if revertErr != nil {
			return fmt.Errorf("%w (reverting: %v)", err, revertErr)
		}
		return err
	}

	if isSecretKey(key) {
		value = maskSecret(value)
	}
	cmd.Printf("%s = %s\n", key, value)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	store, err := config.NewFileStore(configPath())
	if err != nil {
		return fmt.Errorf("failed to open config: %w", err)
	}

	if err := store.Unset(args[0]); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	cmd.Printf("%s unset\n", args[0])
	return nil
}

// readSecret reads one line without echo when in is a terminal.
//
//nolint:errcheck // CLI helper, a failed read yields an empty value
func readSecret(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(secret))
		}
	}
	line, _ := bufio.NewReader(in).ReadString('\n')
	return strings.TrimSpace(line)
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "api_key")
}

func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
