package mailbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver
)

// BlobFolder reads items from a gocloud bucket.
type BlobFolder struct {
	bucket *blob.Bucket
	prefix string
	accept func(name string) bool
}

// OpenFolder opens the bucket at url (file://, gs://, s3://). accept filters
// listed keys by name; nil accepts everything.
func OpenFolder(ctx context.Context, url, prefix string, accept func(string) bool) (*BlobFolder, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		if IsAuthError(err) {
			return nil, fmt.Errorf("%w: open %s: %v", ErrAuth, url, err)
		}
		return nil, fmt.Errorf("open folder %s: %w", url, err)
	}
	return &BlobFolder{bucket: bucket, prefix: prefix, accept: accept}, nil
}

// List enumerates accepted items under the folder prefix.
func (f *BlobFolder) List(ctx context.Context) ([]ItemRef, error) {
	var refs []ItemRef

	iter := f.bucket.List(&blob.ListOptions{Prefix: f.prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			if IsAuthError(err) {
				return nil, fmt.Errorf("%w: list %s: %v", ErrAuth, f.prefix, err)
			}
			return nil, fmt.Errorf("list %s: %w", f.prefix, err)
		}
		if obj.IsDir {
			continue
		}
		if f.accept != nil && !f.accept(obj.Key) {
			continue
		}
		refs = append(refs, ItemRef{
			Name:    obj.Key,
			ModTime: obj.ModTime,
			Size:    obj.Size,
		})
	}

	return refs, nil
}

// Fetch reads an item and decompresses it if the key carries a compression
// suffix.
func (f *BlobFolder) Fetch(ctx context.Context, ref ItemRef) ([]byte, error) {
	r, err := f.bucket.NewReader(ctx, ref.Name, nil)
	if err != nil {
		if IsAuthError(err) {
			return nil, fmt.Errorf("%w: read %s: %v", ErrAuth, ref.Name, err)
		}
		return nil, fmt.Errorf("read %s: %w", ref.Name, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", ref.Name, err)
	}

	return decompress(ref.Name, data)
}

// Close releases the bucket connection.
func (f *BlobFolder) Close() error {
	if f.bucket != nil {
		return f.bucket.Close()
	}
	return nil
}

// decompress unwraps gzip/zstd payloads by key suffix; everything else
// passes through untouched.
func decompress(name string, data []byte) ([]byte, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", name, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("gunzip %s: %w", name, err)
		}
		return out, nil

	case strings.HasSuffix(lower, ".zst"):
		zr, err := zstd.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, fmt.Errorf("zstd %s: %w", name, err)
		}
		return out, nil
	}

	return data, nil
}

var _ Folder = (*BlobFolder)(nil)
