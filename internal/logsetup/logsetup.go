// Package logsetup configures the standard logger for gpiocdev commands.
// Import it for its side effects.
package logsetup

import (
	"log"
	"os"
)

func init() {
	Configure()
}

// Configure drops log timestamps when running under systemd, which adds
// its own.
func Configure() {
	if os.Getenv("JOURNAL_STREAM") != "" {
		log.SetFlags(0)
		return
	}
	log.SetFlags(log.LstdFlags)
}
