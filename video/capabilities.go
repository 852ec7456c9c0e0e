package video

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/reframelabs/reframe-api/errors"
	"github.com/reframelabs/reframe-api/log"
)

// Encoders and filters the conversion graphs depend on. Probing reports each
// one individually so the capabilities endpoint can say exactly what a
// degraded install is missing.
var (
	requiredCodecs  = []string{"libx264", "aac", "libmp3lame"}
	requiredFilters = []string{"scale", "pad", "crop", "split", "gblur", "overlay", "subtitles", "hqdn3d", "unsharp", "eq", "vstack", "acompressor", "alimiter"}
)

const capabilitiesCacheKey = "capabilities"
const capabilityProbeTimeout = 10 * time.Second

// An ffmpeg install doesn't change under a running process, so probe results
// are held for a long TTL rather than re-shelling out per request.
var capabilitiesCache = cache.New(12*time.Hour, 1*time.Hour)

type Capabilities struct {
	FFmpegAvailable  bool            `json:"ffmpeg_available"`
	WhisperAvailable bool            `json:"whisper_available"`
	Version          string          `json:"version,omitempty"`
	Codecs           map[string]bool `json:"codecs"`
	Filters          map[string]bool `json:"filters"`
}

// HasSubtitles reports whether burned-in subtitles can work on this install.
func (c Capabilities) HasSubtitles() bool {
	return c.FFmpegAvailable && c.Filters["subtitles"]
}

// GetCapabilities probes the local ffmpeg and whisper installs, memoized.
// The first call shells out to `ffmpeg -version`, `-codecs` and `-filters`;
// later calls are served from cache.
func GetCapabilities() Capabilities {
	if cached, found := capabilitiesCache.Get(capabilitiesCacheKey); found {
		return cached.(Capabilities)
	}
	caps := probeCapabilities()
	capabilitiesCache.Set(capabilitiesCacheKey, caps, cache.DefaultExpiration)
	return caps
}

// EnsureFFmpeg is the submit-time dependency check. Jobs are refused up
// front rather than queued onto a host that cannot convert them.
func EnsureFFmpeg() error {
	if !GetCapabilities().FFmpegAvailable {
		return errors.NewUnavailableDependencyError("ffmpeg is not runnable on this host", nil)
	}
	return nil
}

func probeCapabilities() Capabilities {
	ctx, cancel := context.WithTimeout(context.Background(), capabilityProbeTimeout)
	defer cancel()

	caps := Capabilities{
		Codecs:  map[string]bool{},
		Filters: map[string]bool{},
	}
	versionOut, err := exec.CommandContext(ctx, "ffmpeg", "-version").Output()
	if err != nil {
		log.LogNoRequestID("ffmpeg not runnable", "err", err)
	} else {
		caps.FFmpegAvailable = true
		caps.Version = parseFFmpegVersion(string(versionOut))

		if codecsOut, err := exec.CommandContext(ctx, "ffmpeg", "-codecs").Output(); err == nil {
			for _, codec := range requiredCodecs {
				caps.Codecs[codec] = listsName(string(codecsOut), codec)
			}
		}
		if filtersOut, err := exec.CommandContext(ctx, "ffmpeg", "-filters").Output(); err == nil {
			for _, filter := range requiredFilters {
				caps.Filters[filter] = listsName(string(filtersOut), filter)
			}
		}
	}

	_, err = exec.LookPath("whisper")
	caps.WhisperAvailable = err == nil
	return caps
}

// parseFFmpegVersion pulls the bare version token out of the first line of
// `ffmpeg -version` output.
func parseFFmpegVersion(out string) string {
	line := out
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	const prefix = "ffmpeg version "
	if !strings.HasPrefix(line, prefix) {
		return ""
	}
	version := strings.TrimPrefix(line, prefix)
	if idx := strings.IndexByte(version, ' '); idx >= 0 {
		version = version[:idx]
	}
	return version
}

// listsName reports whether a `-codecs` or `-filters` table mentions name as
// a standalone token. Codec rows list their encoders in parentheses, so a
// whole-token match finds libx264 without false-positives on names like
// scale2ref.
func listsName(out, name string) bool {
	for _, line := range strings.Split(out, "\n") {
		for _, field := range strings.Fields(line) {
			if field == name {
				return true
			}
		}
	}
	return false
}
