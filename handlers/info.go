package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/reframelabs/reframe-api/video"
)

type CapabilitiesResponse struct {
	FFmpegAvailable  bool            `json:"ffmpeg_available"`
	WhisperAvailable bool            `json:"whisper_available"`
	Version          string          `json:"version,omitempty"`
	Codecs           map[string]bool `json:"codecs"`
	Filters          map[string]bool `json:"filters"`
	Capabilities     map[string]bool `json:"capabilities"`
	Recommendations  []string        `json:"recommendations"`
}

type PlatformSpec struct {
	Platform     string `json:"platform"`
	Quality      string `json:"quality"`
	Width        int64  `json:"width"`
	Height       int64  `json:"height"`
	AspectRatio  string `json:"aspect_ratio"`
	Bitrate      int64  `json:"bitrate"`
	AudioBitrate int64  `json:"audio_bitrate"`
	Description  string `json:"description"`
}

type PlatformsResponse struct {
	Platforms []PlatformSpec `json:"platforms"`
	Qualities []string       `json:"qualities"`
}

var platformDescriptions = map[string]string{
	"general":   "No platform tuning, encodes with the requested quality profile",
	"tiktok":    "TikTok feed video, capped bitrate for fast in-app starts",
	"instagram": "Instagram Reels",
	"facebook":  "Facebook Reels, shares the Instagram profile",
	"youtube":   "YouTube Shorts, higher bitrate headroom",
}

// GetCapabilities reports what this install can actually do, feature by
// feature, with human-readable remediation hints for whatever is missing.
func (d *ReframeAPIHandlersCollection) GetCapabilities() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		caps := video.GetCapabilities()
		writeJSON(w, http.StatusOK, CapabilitiesResponse{
			FFmpegAvailable:  caps.FFmpegAvailable,
			WhisperAvailable: caps.WhisperAvailable,
			Version:          caps.Version,
			Codecs:           caps.Codecs,
			Filters:          caps.Filters,
			Capabilities:     featureMatrix(caps),
			Recommendations:  recommendations(caps),
		})
	}
}

// GetPlatforms returns the static platform catalog: which encoding profile
// each platform pins and what that profile produces.
func (d *ReframeAPIHandlersCollection) GetPlatforms() httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		platforms := video.Platforms()
		specs := make([]PlatformSpec, 0, len(platforms))
		for _, platform := range platforms {
			quality := video.AdjustQualityForPlatform(d.Cli.DefaultQuality, platform)
			profile, err := video.GetProfile(quality)
			if err != nil {
				continue
			}
			specs = append(specs, PlatformSpec{
				Platform:     platform,
				Quality:      quality,
				Width:        profile.Width,
				Height:       profile.Height,
				AspectRatio:  "9:16",
				Bitrate:      profile.Bitrate,
				AudioBitrate: profile.AudioBitrate,
				Description:  platformDescriptions[platform],
			})
		}
		writeJSON(w, http.StatusOK, PlatformsResponse{
			Platforms: specs,
			Qualities: video.Qualities(),
		})
	}
}

// featureMatrix folds raw codec/filter availability into the features the
// API exposes, so clients don't have to know which filters back which flag.
func featureMatrix(caps video.Capabilities) map[string]bool {
	convert := caps.FFmpegAvailable && caps.Codecs["libx264"] && caps.Codecs["aac"] &&
		caps.Filters["scale"] && caps.Filters["pad"]
	return map[string]bool{
		"vertical_conversion": convert,
		"split_screen":        convert && caps.Filters["crop"] && caps.Filters["vstack"],
		"blurred_background":  convert && caps.Filters["gblur"] && caps.Filters["overlay"],
		"subtitles":           caps.HasSubtitles() && caps.WhisperAvailable,
		"video_filters":       convert && caps.Filters["hqdn3d"] && caps.Filters["unsharp"] && caps.Filters["eq"],
		"audio_enhancement":   caps.FFmpegAvailable && caps.Filters["acompressor"] && caps.Filters["alimiter"],
		"highlight_analysis":  caps.FFmpegAvailable && caps.Codecs["libmp3lame"] && caps.WhisperAvailable,
	}
}

func recommendations(caps video.Capabilities) []string {
	recs := []string{}
	if !caps.FFmpegAvailable {
		recs = append(recs, "Install ffmpeg to enable video conversion")
		return recs
	}
	if !caps.Codecs["libx264"] {
		recs = append(recs, "Rebuild ffmpeg with libx264 for H.264 output")
	}
	if !caps.Codecs["aac"] {
		recs = append(recs, "Rebuild ffmpeg with the aac encoder for audio output")
	}
	if !caps.Codecs["libmp3lame"] {
		recs = append(recs, "Rebuild ffmpeg with libmp3lame to enable highlight analysis audio extraction")
	}
	if !caps.Filters["subtitles"] {
		recs = append(recs, "Rebuild ffmpeg with libass to enable burned-in subtitles")
	}
	if !caps.WhisperAvailable {
		recs = append(recs, "Install the whisper CLI to enable subtitles and highlight analysis")
	}
	return recs
}
