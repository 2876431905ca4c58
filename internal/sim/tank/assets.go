package tank

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DirResolver resolves model paths relative to Root on the local disk.
type DirResolver struct {
	Root string
}

func (r DirResolver) Resolve(ctx context.Context, path string) (ModelHandle, error) {
	if err := ctx.Err(); err != nil {
		return ModelHandle{}, err
	}
	clean := filepath.Clean(path)
	if filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return ModelHandle{}, fmt.Errorf("model path escapes asset root: %s", path)
	}
	f, err := os.Open(filepath.Join(r.Root, clean))
	if err != nil {
		return ModelHandle{}, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return ModelHandle{}, err
	}
	if n == 0 {
		return ModelHandle{}, fmt.Errorf("empty model: %s", path)
	}
	return ModelHandle{Path: filepath.ToSlash(clean), Bytes: n, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}
