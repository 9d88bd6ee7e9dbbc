package common

import (
	"github.com/google/uuid"
)

// NewSessionID generates a correlation id for one scan session
// Format: scan_<uuid>
func NewSessionID() string {
	return "scan_" + uuid.New().String()
}

// NewNodeKey generates the value stamped into data-soldby-node so an element
// can be addressed across the live page and the scanner's document
func NewNodeKey() string {
	return uuid.New().String()
}
