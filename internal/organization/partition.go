package organization

import "strings"

const (
	// PartitionPrefix starts every partition id.
	PartitionPrefix = "org_"
	// MaxPartitionIDLength is the Postgres identifier limit, which is also
	// well under the Mongo namespace limit.
	MaxPartitionIDLength = 63
)

// DerivePartitionID maps an organization name to its partition id: trim,
// lowercase, spaces to underscores. Other characters pass through, so
// distinct names may collide; the store rejects the collision.
func DerivePartitionID(name string) string {
	return PartitionPrefix + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// NameKey is the case-insensitive lookup key for an organization name.
func NameKey(name string) string {
	return strings.ToLower(name)
}

// ValidatePartitionID rejects ids that no backend can store.
func ValidatePartitionID(id string) error {
	if len(id) > MaxPartitionIDLength {
		return invalid("organization name too long")
	}
	if strings.ContainsAny(id, "$\x00") {
		return invalid("organization name contains unsupported characters")
	}
	return nil
}
