// Package flagx pre-scans command-line arguments for the flags that must be
// known before the full flag set is built.
package flagx

import (
	"strings"

	"github.com/spf13/pflag"
)

// FilterArgs returns the arguments of args that belong to one of
// allowedFlags, together with their values.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      --config=conf.json
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// ConfigPath extracts the JSON config path given with -c or --config. The
// config file has to be read before the remaining flags are bound, because
// its values become their defaults. Returns "" when the flag is absent.
func ConfigPath(args []string) string {
	var config string

	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.StringVarP(&config, "config", "c", "", "Path to config file")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "--config"}))

	return config
}
