package rand

import (
	"github.com/google/uuid"
)

// GenerateUuid returns a UUID in string format (including hyphens). It is used
// to tag every connection in the logs.
func GenerateUuid() string {
	return uuid.NewString()
}
