package xid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// New returns "<prefix>-<random suffix>".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, Suffix())
}

// Suffix returns a short random token suitable for appending to ids.
func Suffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}
