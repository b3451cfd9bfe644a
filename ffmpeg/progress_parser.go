package ffmpeg

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"videomass/internal/timeutil"
	"videomass/models"
)

// ProgressParser parses ffmpeg stderr output for encoding metrics
type ProgressParser struct {
	// Regular expressions for parsing ffmpeg output
	frameRegex     *regexp.Regexp
	fpsRegex       *regexp.Regexp
	sizeRegex      *regexp.Regexp
	totalSizeRegex *regexp.Regexp
	timeRegex      *regexp.Regexp
	bitrateRegex   *regexp.Regexp
	speedRegex     *regexp.Regexp
}

// NewProgressParser creates a new parser for ffmpeg progress output
func NewProgressParser() *ProgressParser {
	return &ProgressParser{
		// Fields may start the line (-progress key=value output) or sit
		// inside the -stats line, padded after the '='.
		frameRegex:     regexp.MustCompile(`(?:^|\s)frame=\s*(\d+)`),
		fpsRegex:       regexp.MustCompile(`(?:^|\s)fps=\s*([0-9.]+)`),
		sizeRegex:      regexp.MustCompile(`(?:^|\s)L?size=\s*(\d+)\s*([kKMG]i?B)?`),
		totalSizeRegex: regexp.MustCompile(`^total_size=(\d+)`),
		timeRegex:      regexp.MustCompile(`(?:^|\s)(?:out_)?time=\s*([0-9:.]+)`),
		bitrateRegex:   regexp.MustCompile(`(?:^|\s)bitrate=\s*([0-9.]+)`),
		speedRegex:     regexp.MustCompile(`(?:^|\s)speed=\s*([0-9.]+)x?`),
	}
}

// ParseLine parses a single line of ffmpeg stderr output and updates the progress
// Handles both -stats format (all data on one line) and -progress format (key=value per line)
func (pp *ProgressParser) ParseLine(line string, progress *models.EncodingProgress) bool {
	// Skip empty lines and progress markers
	line = strings.TrimSpace(line)
	if line == "" || line == "progress=continue" || line == "progress=end" {
		return false
	}

	updated := false

	if matches := pp.frameRegex.FindStringSubmatch(line); len(matches) > 1 {
		if frame, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			progress.Frame = frame
			updated = true
		}
	}

	if matches := pp.fpsRegex.FindStringSubmatch(line); len(matches) > 1 {
		if fps, err := strconv.ParseFloat(matches[1], 64); err == nil {
			progress.FPS = fps
			updated = true
		}
	}

	if matches := pp.totalSizeRegex.FindStringSubmatch(line); len(matches) > 1 {
		// -progress reports bytes
		if n, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			progress.Size = fmt.Sprintf("%dkB", n/1024)
			updated = true
		}
	} else if matches := pp.sizeRegex.FindStringSubmatch(line); len(matches) > 1 {
		unit := matches[2]
		if unit == "" {
			unit = "kB"
		}
		progress.Size = matches[1] + unit
		updated = true
	}

	if matches := pp.timeRegex.FindStringSubmatch(line); len(matches) > 1 {
		progress.CurrentTime = matches[1]
		// Convert time to seconds for progress calculation
		if seconds := pp.timeToSeconds(matches[1]); seconds > 0 {
			progress.CalculateProgress(seconds)
		}
		updated = true
	}

	if matches := pp.bitrateRegex.FindStringSubmatch(line); len(matches) > 1 {
		progress.Bitrate = matches[1] + "kbits/s"
		updated = true
	}

	if matches := pp.speedRegex.FindStringSubmatch(line); len(matches) > 1 {
		if speed, err := strconv.ParseFloat(matches[1], 64); err == nil {
			progress.Speed = speed
			updated = true
		}
	}

	return updated
}

// Track returns a LineFunc that feeds every stats line into progress and
// reports each update to callback. Pass it to Runner.Run.
func (pp *ProgressParser) Track(progress *models.EncodingProgress, callback models.ProgressCallback) LineFunc {
	return func(line string) {
		if pp.ParseLine(line, progress) {
			progress.State = models.ProgressStateEncoding
			if callback != nil {
				callback(progress)
			}
		}
	}
}

// StreamProgress reads ffmpeg stderr and continuously updates progress
func (pp *ProgressParser) StreamProgress(reader io.Reader, progress *models.EncodingProgress, callback models.ProgressCallback) error {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	// ffmpeg rewrites the stats line in place with \r
	scanner.Split(scanLines)

	seen := false
	track := pp.Track(progress, func(p *models.EncodingProgress) {
		seen = true
		if callback != nil {
			callback(p)
		}
	})
	for scanner.Scan() {
		track(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading ffmpeg output: %w", err)
	}

	if !seen {
		return fmt.Errorf("no progress output captured from ffmpeg")
	}

	return nil
}

// timeToSeconds converts ffmpeg time format (HH:MM:SS.MS) to seconds
func (pp *ProgressParser) timeToSeconds(timeStr string) float64 {
	if strings.Count(timeStr, ":") != 2 {
		return 0
	}
	seconds, err := timeutil.ParseTimestamp(timeStr)
	if err != nil {
		return 0
	}
	return seconds
}

// FormatProgressJSON converts progress to JSON for logging or API responses
func FormatProgressJSON(progress *models.EncodingProgress) (string, error) {
	data, err := json.MarshalIndent(progress, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
