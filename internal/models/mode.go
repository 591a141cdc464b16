// internal/models/mode.go
package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// Mode is a team-size configuration such as "1v1", "2v2" or "3v3".
type Mode string

const (
	Mode1v1 Mode = "1v1"
	Mode2v2 Mode = "2v2"
	Mode3v3 Mode = "3v3"
)

// SupportedModes lists every mode that owns a queue pool, in a stable order.
var SupportedModes = []Mode{Mode1v1, Mode2v2, Mode3v3}

var modePattern = regexp.MustCompile(`^([1-3])v([1-3])$`)

// ParseMode validates a mode string. Only symmetric modes are playable since a
// match always fills two teams of the same size.
func ParseMode(s string) (Mode, error) {
	m := modePattern.FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("mode %q does not match NvN", s)
	}
	if m[1] != m[2] {
		return "", fmt.Errorf("mode %q is not symmetric", s)
	}
	return Mode(s), nil
}

// TeamSize returns the per-team player count implied by the mode.
func (m Mode) TeamSize() int {
	if len(m) == 0 {
		return 0
	}
	n, err := strconv.Atoi(string(m[0]))
	if err != nil {
		return 0
	}
	return n
}

// PlayerCount is the total number of players in a full match of this mode.
func (m Mode) PlayerCount() int {
	return 2 * m.TeamSize()
}

func (m Mode) String() string {
	return string(m)
}
