// Package mailbox reads order-confirmation items from a storage folder.
//
// The folder is any bucket gocloud.dev can open (file://, gs://, s3://);
// listing and fetching are the only operations consumed by the scanner.
// Compressed payloads (.gz, .zst) are decompressed transparently on fetch.
package mailbox

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gocloud.dev/gcerrors"
)

// ErrAuth marks credential or permission failures. The scan pass treats it
// as fatal for the invocation.
var ErrAuth = errors.New("storage authentication failed")

// ItemRef identifies one source item in the folder.
type ItemRef struct {
	Name        string
	ModTime     time.Time
	Size        int64
	Fingerprint string // "sha256:..." of the decompressed content, set after fetch
}

// Keys returns the tracker identities for this item: always the
// name+modtime key, plus the name+fingerprint key once content has been
// fetched. An item is new only if none of its keys has been seen.
func (r ItemRef) Keys() []string {
	keys := []string{r.Name + "@" + strconv.FormatInt(r.ModTime.Unix(), 10)}
	if r.Fingerprint != "" {
		keys = append(keys, r.Name+"@"+r.Fingerprint)
	}
	return keys
}

// Folder lists and fetches source items.
type Folder interface {
	// List enumerates accepted items in the folder.
	List(ctx context.Context) ([]ItemRef, error)

	// Fetch returns the decompressed content of an item.
	Fetch(ctx context.Context, ref ItemRef) ([]byte, error)

	// Close releases the bucket connection.
	Close() error
}

// Fingerprint returns the canonical content fingerprint for item bytes.
func Fingerprint(data []byte) string {
	return fmt.Sprintf("sha256:%x", sha256.Sum256(data))
}

// IsAuthError reports whether err is a credential/permission failure from
// the storage provider.
func IsAuthError(err error) bool {
	if errors.Is(err, ErrAuth) {
		return true
	}
	switch gcerrors.Code(err) {
	case gcerrors.PermissionDenied:
		return true
	}
	return false
}

// SetCredentialsFile points the cloud SDKs at an explicit credentials file,
// overriding default resolution. Called before any bucket is opened.
func SetCredentialsFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("credentials file: %w", err)
	}
	os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	os.Setenv("AWS_SHARED_CREDENTIALS_FILE", path)
	return nil
}
