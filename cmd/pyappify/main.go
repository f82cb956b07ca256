// Command pyappify manages a single git-delivered Python application:
// it clones the app's repository, provisions a standalone Python runtime
// and virtual environment, installs dependencies and supervises the app
// process. All state lives under one data directory next to the binary.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
