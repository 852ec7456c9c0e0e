package pipeline

import (
	"net/url"
	"path"
	"strings"

	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/video"
)

// PublicID derives the client-facing video id from the source URL alone.
// Processing variants never change it, so clients can poll with an id they
// computed before submitting.
func PublicID(sourceURL string) (string, error) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return "", errors.NewInvalidInputError("invalid source url", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.NewInvalidInputError("source url must be absolute http(s)", nil)
	}

	base := path.Base(u.Path)
	base = strings.TrimSuffix(base, path.Ext(base))
	id := sanitizeID(base)
	if id == "" {
		// URLs with no usable path component fall back to the host.
		id = sanitizeID(u.Host)
	}
	if id == "" {
		return "", errors.NewInvalidInputError("cannot derive a video id from the source url", nil)
	}
	return id, nil
}

// Fingerprint is the dedup key of the job cache: public id, the
// platform-adjusted quality, and every processing-affecting option token in
// sorted order. Requests sharing a fingerprint produce the same output file,
// so they share one job.
func Fingerprint(publicID, quality string, opts video.TransformOptions) string {
	parts := append([]string{publicID, quality}, opts.OptionTokens()...)
	return strings.Join(parts, "_")
}

// sanitizeID lowercases and squeezes anything outside [a-z0-9_-] into single
// underscores.
func sanitizeID(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_-")
}
