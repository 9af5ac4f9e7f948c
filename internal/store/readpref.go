package store

import (
	"fmt"
	"strings"
)

// ReadPref selects which replica-set member may answer a read. The empty
// value leaves the choice to the driver.
type ReadPref string

const (
	ReadPrimary            ReadPref = "primary"
	ReadPrimaryPreferred   ReadPref = "primaryPreferred"
	ReadSecondary          ReadPref = "secondary"
	ReadSecondaryPreferred ReadPref = "secondaryPreferred"
	ReadNearest            ReadPref = "nearest"
)

var readPrefs = []ReadPref{
	ReadPrimary,
	ReadPrimaryPreferred,
	ReadSecondary,
	ReadSecondaryPreferred,
	ReadNearest,
}

// ParseReadPref accepts any casing of the mode names, plus the underscore
// spelling ("SECONDARY_PREFERRED").
func ParseReadPref(s string) (ReadPref, error) {
	if s == "" {
		return "", nil
	}
	norm := strings.ReplaceAll(strings.ToLower(s), "_", "")
	for _, p := range readPrefs {
		if strings.ToLower(string(p)) == norm {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown read preference %q", s)
}

// String returns the mode name, or "default" for the zero value.
func (p ReadPref) String() string {
	if p == "" {
		return "default"
	}
	return string(p)
}
