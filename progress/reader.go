package progress

import (
	"crypto/md5"
	"encoding/hex"
	"hash"
	"io"
)

// ReadHasher hashes everything read through it so downloads can record a
// checksum of the source without a second pass over the file.
type ReadHasher struct {
	r   io.Reader
	md5 hash.Hash
}

func NewReadHasher(r io.Reader) *ReadHasher {
	return &ReadHasher{
		r:   r,
		md5: md5.New(),
	}
}

func (h *ReadHasher) Read(p []byte) (int, error) {
	n, err := h.r.Read(p)
	if n > 0 {
		// hashers never return errors
		h.md5.Write(p[:n])
	}
	return n, err
}

func (h *ReadHasher) MD5() string {
	return hex.EncodeToString(h.md5.Sum(nil))
}
