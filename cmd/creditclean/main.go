// creditclean cleans a raw monthly credit-record feed.
//
// Usage: creditclean <input> <output>
//
// Locations are CSV file paths, "snowflake:<SCHEMA>.<TABLE>" for input or
// "postgres:<schema>.<table>" for output. Settings come from the environment
// and an optional .env file (see pkg/config).
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
