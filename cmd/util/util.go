package util

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/riddopic/garcun/lib/stash"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// space before every word but the first on a line
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// InitConfig initializes configuration from environment variables. Flags
// named with dashes map to GARCUN_ environment variables with underscores.
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("garcun")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetSerializer creates a stash value codec based on configuration
func GetSerializer() (stash.Serializer, error) {
	switch viper.GetString("serializer") {
	case "", "raw":
		return stash.NewRawSerializer(), nil
	case "gob":
		return stash.NewGOBSerializer(), nil
	case "json":
		return stash.NewJSONSerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetStorePath returns the configured journal path, which is required for
// all store-touching commands.
func GetStorePath() (string, error) {
	path := viper.GetString("path")
	if path == "" {
		return "", fmt.Errorf("a journal path is required (--path or GARCUN_PATH)")
	}
	return path, nil
}

// GetStoreOptions assembles stash.Open options from configuration
func GetStoreOptions() ([]stash.Option, error) {
	serializer, err := GetSerializer()
	if err != nil {
		return nil, err
	}

	opts := []stash.Option{stash.WithSerializer(serializer)}
	if def := viper.GetString("default"); def != "" {
		opts = append(opts, stash.WithDefault([]byte(def)))
	}
	return opts, nil
}
