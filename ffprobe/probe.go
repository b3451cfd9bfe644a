// Package ffprobe provides utilities for extracting metadata from media files
// using the ffprobe command-line tool.
package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"videomass/ffmpeg"
	vmerrors "videomass/internal/errors"
)

// Chapter represents a chapter marker in a media file.
type Chapter struct {
	ID        int64             `json:"id"`
	TimeBase  string            `json:"time_base"`
	Start     int64             `json:"start"`
	StartTime string            `json:"start_time"`
	End       int64             `json:"end"`
	EndTime   string            `json:"end_time"`
	Tags      map[string]string `json:"tags,omitempty"`
}

// Title returns the chapter's title tag.
func (c Chapter) Title() string {
	return tag(c.Tags, "title")
}

// Stream represents a media stream (audio, video, subtitle, etc.)
type Stream struct {
	Index         int               `json:"index"`
	CodecName     string            `json:"codec_name"`
	CodecType     string            `json:"codec_type"`
	CodecLongName string            `json:"codec_long_name"`
	Profile       string            `json:"profile,omitempty"`
	Width         int               `json:"width,omitempty"`
	Height        int               `json:"height,omitempty"`
	PixFmt        string            `json:"pix_fmt,omitempty"`
	FieldOrder    string            `json:"field_order,omitempty"`
	FrameRate     string            `json:"r_frame_rate,omitempty"`
	DAR           string            `json:"display_aspect_ratio,omitempty"`
	SampleRate    string            `json:"sample_rate,omitempty"`
	SampleFmt     string            `json:"sample_fmt,omitempty"`
	Channels      int               `json:"channels,omitempty"`
	ChannelLayout string            `json:"channel_layout,omitempty"`
	BitRate       string            `json:"bit_rate,omitempty"`
	Duration      string            `json:"duration,omitempty"`
	Tags          map[string]string `json:"tags,omitempty"`
}

// Language returns the stream's language tag.
func (s Stream) Language() string {
	return tag(s.Tags, "language")
}

// IsInterlaced reports whether ffprobe detected an interlaced field order.
func (s Stream) IsInterlaced() bool {
	switch s.FieldOrder {
	case "tt", "bb", "tb", "bt":
		return true
	}
	return false
}

// Format represents the container format information.
type Format struct {
	Filename       string            `json:"filename"`
	NbStreams      int               `json:"nb_streams"`
	FormatName     string            `json:"format_name"`
	FormatLongName string            `json:"format_long_name"`
	Duration       string            `json:"duration"`
	Size           string            `json:"size"`
	BitRate        string            `json:"bit_rate"`
	Tags           map[string]string `json:"tags,omitempty"`
}

// ProbeResult holds the complete metadata extracted from a media file.
//
// This includes format information, stream details, and chapter markers
// if present in the source file.
type ProbeResult struct {
	Chapters []Chapter `json:"chapters"`
	Streams  []Stream  `json:"streams"`
	Format   Format    `json:"format"`
}

// GetDuration returns the duration of the media file in seconds.
//
// Returns an error if the duration cannot be parsed.
func (pr *ProbeResult) GetDuration() (float64, error) {
	if pr.Format.Duration == "" {
		return 0, fmt.Errorf("duration not available in format metadata")
	}

	duration, err := strconv.ParseFloat(pr.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration '%s': %w", pr.Format.Duration, err)
	}

	return duration, nil
}

// HasChapters returns true if the media file contains chapter markers.
func (pr *ProbeResult) HasChapters() bool {
	return len(pr.Chapters) > 0
}

// GetChapterCount returns the number of chapters in the media file.
func (pr *ProbeResult) GetChapterCount() int {
	return len(pr.Chapters)
}

// StreamsOfType returns the streams whose codec_type is codecType.
func (pr *ProbeResult) StreamsOfType(codecType string) []Stream {
	var streams []Stream
	for _, stream := range pr.Streams {
		if stream.CodecType == codecType {
			streams = append(streams, stream)
		}
	}
	return streams
}

// GetVideoStreams returns all video streams from the media file.
func (pr *ProbeResult) GetVideoStreams() []Stream {
	return pr.StreamsOfType("video")
}

// GetAudioStreams returns all audio streams from the media file.
func (pr *ProbeResult) GetAudioStreams() []Stream {
	return pr.StreamsOfType("audio")
}

// GetSubtitleStreams returns all subtitle streams from the media file.
func (pr *ProbeResult) GetSubtitleStreams() []Stream {
	return pr.StreamsOfType("subtitle")
}

// Tag returns a container tag, matching the key case-insensitively.
func (pr *ProbeResult) Tag(key string) string {
	return tag(pr.Format.Tags, key)
}

func tag(tags map[string]string, key string) string {
	if v, ok := tags[key]; ok {
		return v
	}
	for k, v := range tags {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

// Args returns the ffprobe arguments for path.
func Args(path string) []string {
	return []string{
		"-v", "error",
		"-print_format", "json",
		"-show_chapters",
		"-show_streams",
		"-show_format",
		path,
	}
}

// Parse decodes ffprobe's JSON output.
func Parse(data []byte) (*ProbeResult, error) {
	var result ProbeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe JSON output: %w", err)
	}
	return &result, nil
}

// Prober runs ffprobe through a runner.
type Prober struct {
	Runner *ffmpeg.Runner
}

// NewProber returns a prober for the given runner.
func NewProber(r *ffmpeg.Runner) *Prober {
	return &Prober{Runner: r}
}

// Probe analyzes a media file and extracts its metadata.
//
// Example:
//
//	result, err := ffprobe.NewProber(runner).Probe(ctx, "/path/to/video.mp4")
//	if err != nil {
//	    return err
//	}
//	duration, _ := result.GetDuration()
func (p *Prober) Probe(ctx context.Context, sourcePath string) (*ProbeResult, error) {
	if sourcePath == "" {
		return nil, vmerrors.Validation("source path cannot be empty")
	}

	out, err := p.Runner.Stdout(ctx, Args(sourcePath))
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", sourcePath, err)
	}
	return Parse([]byte(out))
}

// Duration probes path and returns its duration in seconds.
func (p *Prober) Duration(ctx context.Context, path string) (float64, error) {
	res, err := p.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return res.GetDuration()
}

// Probe runs binary (default "ffprobe") on sourcePath.
func Probe(ctx context.Context, binary, sourcePath string) (*ProbeResult, error) {
	if binary == "" {
		binary = "ffprobe"
	}
	return NewProber(ffmpeg.NewRunner(binary, nil)).Probe(ctx, sourcePath)
}
