// Command events-gateway serves a unified, paginated event listing over
// several upstream event APIs.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
