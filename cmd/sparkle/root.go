package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/HendryAvila/sparkle/internal/config"
	"github.com/HendryAvila/sparkle/internal/logging"
)

// Setting keys. Each is a flag and a SPARKLE_* environment variable.
const (
	keyHome         = "home"
	keyDebug        = "debug"
	keyACP          = "acp"
	keyWorkspace    = "workspace"
	keySparkler     = "sparkler"
	keyProvideTools = "provide-tools"
	keyProxied      = "proxied"
	keyAgent        = "agent"
)

func newRootCmd() *cobra.Command {
	v := newSettings()

	rootCmd := &cobra.Command{
		Use:          "sparkle",
		Short:        "Sparkle: AI collaboration identity for MCP and ACP",
		Long:         "sparkle serves persona tools over MCP, or sits between an ACP editor and agent and embodies every new session before its first prompt.",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String(keyHome, "", "sparkle home directory (default ~/.sparkle)")
	rootCmd.PersistentFlags().Bool(keyDebug, false, "debug logging, also written to <home>/"+logging.LogFile)
	bindFlags(v, rootCmd.PersistentFlags(), keyHome, keyDebug)

	rootCmd.AddCommand(
		newServeCmd(v),
		newVersionCmd(),
	)
	return rootCmd
}

// newSettings returns a viper instance reading SPARKLE_* variables, with
// dashes in keys mapped to underscores (provide-tools → SPARKLE_PROVIDE_TOOLS).
func newSettings() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SPARKLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys ...string) {
	for _, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", key, err))
		}
	}
}

// sparkleHome resolves the home setting, defaulting to ~/.sparkle.
func sparkleHome(v *viper.Viper) (string, error) {
	if home := v.GetString(keyHome); home != "" {
		return home, nil
	}
	return config.DefaultRoot()
}

func newLogger(v *viper.Viper, home string) (*zap.Logger, error) {
	return logging.New(logging.Options{Debug: v.GetBool(keyDebug), Dir: home})
}
