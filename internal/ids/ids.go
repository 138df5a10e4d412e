package ids

import "github.com/segmentio/ksuid"

// New returns a time-ordered identifier for stored records.
func New() string {
	return ksuid.New().String()
}
