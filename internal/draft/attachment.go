package draft

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
)

// Attachment is a binary file picked from disk.
type Attachment struct {
	Name string // Base file name as picked
	Path string // Absolute or working-dir-relative path
	Size int64
}

// NewAttachment stats path and returns an attachment for it. Anything that
// is not a regular file is rejected.
func NewAttachment(path string) (Attachment, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Attachment{}, fmt.Errorf("empty path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return Attachment{}, fmt.Errorf("%s is not a regular file", path)
	}
	return Attachment{
		Name: filepath.Base(path),
		Path: path,
		Size: info.Size(),
	}, nil
}

// Open opens the attachment for reading.
func (a Attachment) Open() (io.ReadCloser, error) {
	return os.Open(a.Path)
}

// UploadName is the file name sent to the backend: the slugged base name
// with the original extension kept.
func (a Attachment) UploadName() string {
	ext := strings.ToLower(filepath.Ext(a.Name))
	base := slug.Make(strings.TrimSuffix(a.Name, filepath.Ext(a.Name)))
	if base == "" {
		base = "file"
	}
	return base + ext
}

// FilterAttachments turns picked paths into attachments, silently dropping
// every pick that is not a regular file.
func FilterAttachments(paths []string) []Attachment {
	out := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		a, err := NewAttachment(p)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out
}

// MergeImages appends added to existing and keeps the first MaxImages of the
// combined list, so the oldest images survive and surplus new ones are
// dropped. Neither input is modified.
func MergeImages(existing, added []Attachment) []Attachment {
	combined := make([]Attachment, 0, len(existing)+len(added))
	combined = append(combined, existing...)
	combined = append(combined, added...)
	if len(combined) > MaxImages {
		combined = combined[:MaxImages]
	}
	return combined
}

// RemoveImage returns images without the element at index i, keeping the
// relative order of the rest. An out-of-range index returns a copy unchanged.
func RemoveImage(images []Attachment, i int) []Attachment {
	if i < 0 || i >= len(images) {
		return append([]Attachment(nil), images...)
	}
	out := make([]Attachment, 0, len(images)-1)
	out = append(out, images[:i]...)
	return append(out, images[i+1:]...)
}
