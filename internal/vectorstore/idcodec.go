package vectorstore

import (
	"crypto/md5" //nolint:gosec // identifier derivation, not a security boundary
	"fmt"

	"github.com/google/uuid"
)

// PointID maps a caller document ID to the UUID Qdrant stores it under.
//
// The UUID is the MD5 digest of id with the version nibble set to 4 and the
// variant bits set to 10, so equal IDs always map to the same point and
// distinct IDs collide only with MD5 probability.
func PointID(id string) string {
	u := uuid.UUID(md5.Sum([]byte(id))) //nolint:gosec
	u[6] = (u[6] & 0x0f) | 0x40
	u[8] = (u[8] & 0x3f) | 0x80
	return u.String()
}

// pointIDString renders a point ID decoded from JSON, which may be a UUID
// string or an unsigned integer.
func pointIDString(id any) string {
	switch v := id.(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%d", uint64(v))
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
