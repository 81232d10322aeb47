// Package lifecycle waits for remote resources to settle after an
// asynchronous state change.
package lifecycle

import "strings"

// Stater is anything that reports a lifecycle status.
type Stater interface {
	State() string
}

// Status adapts a bare status string to Stater.
type Status string

func (s Status) State() string { return string(s) }

// Class groups a status by whether polling should continue.
type Class int

const (
	Unrecognized Class = iota
	Transitional
	Terminal
)

func (c Class) String() string {
	switch c {
	case Transitional:
		return "Transitional"
	case Terminal:
		return "Terminal"
	default:
		return "Unrecognized"
	}
}

var transitional = []string{
	"Queued",
	"Awaiting",
	"Exporting",
	"Provisioning",
	"Rebuilding",
	"ShuttingDown",
	"Starting",
	"Updating",
}

var terminal = []string{
	"Available",
	"Shutdown",
	"Failed",
	"Deleted",
	"Archived",
	"Unavailable",
	"Unknown",
}

// Classify matches a status against the known vocabulary, ignoring case.
func Classify(status string) Class {
	status = strings.TrimSpace(status)
	for _, s := range transitional {
		if strings.EqualFold(s, status) {
			return Transitional
		}
	}
	for _, s := range terminal {
		if strings.EqualFold(s, status) {
			return Terminal
		}
	}
	return Unrecognized
}

// TransitionalStatuses lists the statuses polling waits through.
func TransitionalStatuses() []string {
	return append([]string(nil), transitional...)
}

// TerminalStatuses lists the statuses that end polling.
func TerminalStatuses() []string {
	return append([]string(nil), terminal...)
}
