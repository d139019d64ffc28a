package attachment

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// KeyPrefix is the folder every uploaded attachment lives under.
const KeyPrefix = "attachments/"

// Key is the storage key of one attachment: KeyPrefix + ID + Ext.
type Key struct {
	Prefix string
	ID     uuid.UUID
	Ext    string
}

// String renders the key as stored in the bucket.
func (k Key) String() string {
	return k.Prefix + k.ID.String() + k.Ext
}

// GenerateKey returns a fresh random key for an attachment of contentType.
func GenerateKey(contentType string) Key {
	return Key{
		Prefix: KeyPrefix,
		ID:     uuid.New(),
		Ext:    ExtensionFor(contentType),
	}
}

// ExtensionFor returns the conventional extension (with leading dot) for a
// MIME type, or "" when the type is unknown. Matching ignores case. The table
// is compiled into the binary so results do not depend on the host's mime.types.
func ExtensionFor(contentType string) string {
	mt := mimetype.Lookup(strings.ToLower(contentType))
	if mt == nil {
		return ""
	}
	return mt.Extension()
}
