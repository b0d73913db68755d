// Package storage keeps task attachments and account avatars in a
// gocloud.dev blob bucket: a directory on disk in production, memory in
// tests.
package storage

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
)

var (
	// ErrUnsupportedType rejects anything but jpg, jpeg, png and pdf, by
	// extension and by content.
	ErrUnsupportedType = errors.New("unsupported file type")
	// ErrTooLarge rejects uploads above the configured size.
	ErrTooLarge = errors.New("file too large")
)

// allowed maps accepted extensions to the content type their bytes must
// sniff as.
var allowed = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".pdf":  "application/pdf",
}

// avatarTypes is the image-only subset accepted for avatars.
var avatarTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// AvatarMaxBytes caps avatar uploads independently of the attachment limit.
const AvatarMaxBytes = 2 << 20

// sniffLen is how much of the upload is inspected to detect its type.
const sniffLen = 3072

// Attachments stores task files under tasks/<uuid><ext> and avatars under
// avatars/<account id>/<uuid><ext>.
type Attachments struct {
	bucket   *blob.Bucket
	maxBytes int64
}

// NewAttachments wraps an open bucket.
func NewAttachments(bucket *blob.Bucket, maxBytes int64) *Attachments {
	return &Attachments{bucket: bucket, maxBytes: maxBytes}
}

// OpenDir opens (creating if needed) a directory-backed bucket.
func OpenDir(dir string, maxBytes int64) (*Attachments, error) {
	b, err := fileblob.OpenBucket(dir, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, errors.Wrapf(err, "open upload dir %s", dir)
	}
	return NewAttachments(b, maxBytes), nil
}

// MaxBytes is the upload size limit.
func (a *Attachments) MaxBytes() int64 { return a.maxBytes }

// Allowed reports whether filename has an accepted attachment extension.
func Allowed(filename string) bool {
	_, ok := allowed[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// AvatarAllowed reports whether filename has an accepted avatar extension.
func AvatarAllowed(filename string) bool {
	_, ok := avatarTypes[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Save checks the type of r and writes it as a task attachment under a
// fresh key, which it returns.
func (a *Attachments) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := allowed[ext]
	if !ok {
		return "", ErrUnsupportedType
	}
	return a.put(ctx, "tasks/"+uuid.NewString()+ext, want, r, a.maxBytes)
}

// SaveAvatar checks that r is a jpeg or png of at most AvatarMaxBytes and
// writes it under a fresh key owned by accountID. The previous avatar is
// left in place; the caller removes it once the new key is recorded.
func (a *Attachments) SaveAvatar(ctx context.Context, accountID uint64, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	want, ok := avatarTypes[ext]
	if !ok {
		return "", ErrUnsupportedType
	}
	key := "avatars/" + strconv.FormatUint(accountID, 10) + "/" + uuid.NewString() + ext
	return a.put(ctx, key, want, r, AvatarMaxBytes)
}

// put sniffs r against want and copies at most max bytes to key. A
// partially written object is removed when the limit is exceeded.
func (a *Attachments) put(ctx context.Context, key, want string, r io.Reader, max int64) (string, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "read upload")
	}
	head = head[:n]
	if !mimetype.Detect(head).Is(want) {
		return "", ErrUnsupportedType
	}

	w, err := a.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: want})
	if err != nil {
		return "", errors.Wrap(err, "open blob writer")
	}
	body := io.MultiReader(bytes.NewReader(head), r)
	written, err := io.Copy(w, io.LimitReader(body, max+1))
	if err == nil && written > max {
		err = ErrTooLarge
	}
	if err != nil {
		_ = w.Close()
		_ = a.bucket.Delete(ctx, key)
		if errors.Is(err, ErrTooLarge) {
			return "", err
		}
		return "", errors.Wrap(err, "write blob")
	}
	if err := w.Close(); err != nil {
		return "", errors.Wrap(err, "close blob writer")
	}
	return key, nil
}

// Delete removes key.
func (a *Attachments) Delete(ctx context.Context, key string) error {
	return a.bucket.Delete(ctx, key)
}

// Close releases the bucket.
func (a *Attachments) Close() error { return a.bucket.Close() }
