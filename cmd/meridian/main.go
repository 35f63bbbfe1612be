// Command meridian probes and inspects multi-datacenter router configurations.
//
// Usage:
//
//	meridian topology --config router.yaml
//	meridian probe --config router.yaml --path /health -n 100 -c 8
//
// Settings are read from the config file, MERIDIAN_* environment variables
// and flags, in increasing order of precedence.
package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const envPrefix = "meridian"

// settingFlags maps router settings keys to their flag names.
var settingFlags = map[string]string{
	"policy":                   "policy",
	"failureThreshold":         "failure-threshold",
	"maxAttemptsPerDatacenter": "max-attempts",
	"autoDatacenterFailover":   "auto-failover",
	"activeDatacenter":         "active-datacenter",
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:           "meridian",
		Short:         "Inspect and probe multi-datacenter router configurations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return readConfig(v)
		},
	}

	configFlags := pflag.NewFlagSet("", pflag.ContinueOnError)
	configFlags.String("config", "", "specifies a router settings file to load")
	configFlags.String("log-level", "warn", "the log level to run at")
	configFlags.String("policy", "", "node selection policy (ROUND_ROBIN, RANDOM, WEIGHT_LOAD_BALANCING)")
	configFlags.Int("failure-threshold", 0, "consecutive failures before a node is unavailable")
	configFlags.Int("max-attempts", 0, "attempt budget per datacenter (0 means one per node)")
	configFlags.Bool("auto-failover", false, "fail over to the next datacenter when the active one is exhausted")
	configFlags.String("active-datacenter", "", "initial active datacenter")
	rootCmd.PersistentFlags().AddFlagSet(configFlags)

	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	_ = v.BindPFlag("config", configFlags.Lookup("config"))
	_ = v.BindPFlag("log-level", configFlags.Lookup("log-level"))
	for key, flag := range settingFlags {
		_ = v.BindPFlag(key, configFlags.Lookup(flag))
	}

	rootCmd.AddCommand(newTopologyCmd(v), newProbeCmd(v))

	return rootCmd
}

func getLogger(level string) (*zap.Logger, error) {
	parsedLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logConfig := zap.NewProductionEncoderConfig()
	logConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEncoder := zapcore.NewJSONEncoder(logConfig)
	core := zapcore.NewCore(jsonEncoder, zapcore.AddSync(os.Stderr), zap.NewAtomicLevelAt(parsedLevel))

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

func main() {
	cobra.CheckErr(newRootCmd().Execute())
}
