package imagecache

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Size is the requested rendition of an image.
type Size string

const (
	SizeSmall  Size = "small"
	SizeNormal Size = "normal"
	SizeLarge  Size = "large"
)

// Face selects which side of a double-faced tile image is wanted.
type Face string

const (
	FaceFront Face = "front"
	FaceBack  Face = "back"
)

// Key addresses one cached image.
type Key struct {
	ID   string
	Size Size
	Face Face
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.ID, k.Size, k.Face)
}

// storageKey makes `size-face-base64(id)`, safe for file names and SQL keys.
func (k Key) storageKey() string {
	size, face := k.Size, k.Face
	if size == "" {
		size = SizeNormal
	}
	if face == "" {
		face = FaceFront
	}
	return fmt.Sprintf("%s-%s-%s", size, face, base64.RawURLEncoding.EncodeToString([]byte(k.ID)))
}

func parseStorageKey(s string) (Key, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return Key{}, fmt.Errorf("imagecache: malformed key %q", s)
	}
	id, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return Key{}, fmt.Errorf("imagecache: malformed key %q: %w", s, err)
	}
	return Key{ID: string(id), Size: Size(parts[0]), Face: Face(parts[1])}, nil
}

// Normalize fills the default size and face so equal requests share an entry.
func (k Key) Normalize() Key {
	if k.Size == "" {
		k.Size = SizeNormal
	}
	if k.Face == "" {
		k.Face = FaceFront
	}
	return k
}
