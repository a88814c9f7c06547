// Command catalogctl manages the wine catalog from a terminal: it lints
// entity schemas, lists collections and deletes items through the same
// entity managers the admin uses.
//
// Settings come from flags, a YAML config file (--config) or VINOTEKA_*
// environment variables, e.g. VINOTEKA_API_URL and VINOTEKA_PASSWORD.
package main

import (
	"os"

	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd(viper.New(), os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
