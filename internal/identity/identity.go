// Package identity derives stable document identifiers.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// AssignID returns the lowercase hex SHA-256 of nodePath + "@" + sourceID.
// The same file crawled under the same source always gets the same id.
func AssignID(nodePath, sourceID string) string {
	sum := sha256.Sum256([]byte(nodePath + "@" + sourceID))
	return hex.EncodeToString(sum[:])
}
