// Package logf builds the prefixed stdlib loggers used across trellis nodes.
package logf

import (
	"fmt"
	"log"
	"os"
)

var (
	nodePrefix = "[region=%s node=%s] "
	logFlags   = log.LstdFlags | log.Lshortfile | log.Lmicroseconds
)

// Basic creates a logger that prefixes lines with the region and node name.
// Both are read from the environment so that daemon logs can be attributed
// after aggregation.
func Basic() *log.Logger {
	region := os.Getenv("TRELLIS_REGION")
	node := os.Getenv("TRELLIS_NODE")
	return log.New(os.Stderr, fmt.Sprintf(nodePrefix, region, node), logFlags)
}

// Named creates a logger for a sub-component (a training job, an endpoint)
// keeping the node prefix convention.
func Named(component string) *log.Logger {
	region := os.Getenv("TRELLIS_REGION")
	node := os.Getenv("TRELLIS_NODE")
	prefix := fmt.Sprintf(nodePrefix, region, node) + fmt.Sprintf("[%s] ", component)
	return log.New(os.Stderr, prefix, logFlags)
}

// SetDefault points the global log package at the Basic prefix and flags,
// for packages that still log through the standard logger.
func SetDefault() {
	l := Basic()
	log.SetPrefix(l.Prefix())
	log.SetFlags(l.Flags())
}
