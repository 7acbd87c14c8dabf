// The main package for the epgqueue executable.
package main

import (
	"os"

	"github.com/JakeFAU/epg-queue/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
