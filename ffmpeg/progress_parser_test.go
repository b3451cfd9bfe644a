package ffmpeg

import (
	"strings"
	"testing"

	"videomass/models"
)

func TestNewProgressParser(t *testing.T) {
	parser := NewProgressParser()

	if parser == nil {
		t.Fatal("NewProgressParser returned nil")
	}

	if parser.frameRegex == nil {
		t.Error("frameRegex not initialized")
	}
	if parser.fpsRegex == nil {
		t.Error("fpsRegex not initialized")
	}
	if parser.sizeRegex == nil || parser.totalSizeRegex == nil {
		t.Error("size regexes not initialized")
	}
	if parser.timeRegex == nil {
		t.Error("timeRegex not initialized")
	}
	if parser.bitrateRegex == nil {
		t.Error("bitrateRegex not initialized")
	}
	if parser.speedRegex == nil {
		t.Error("speedRegex not initialized")
	}
}

func TestProgressParser_ParseLine(t *testing.T) {
	parser := NewProgressParser()

	tests := []struct {
		name     string
		line     string
		updated  bool
		expected func(*models.EncodingProgress) bool
	}{
		{
			name:    "complete stats line",
			line:    "frame=   24 fps=25.0 q=-0.0 size=     128kB time=00:00:01.00 bitrate= 128.0kbits/s speed=2.00x",
			updated: true,
			expected: func(p *models.EncodingProgress) bool {
				return p.Frame == 24 &&
					p.FPS == 25.0 &&
					p.Size == "128kB" &&
					p.CurrentTime == "00:00:01.00" &&
					p.Seconds == 1.0 &&
					p.Bitrate == "128.0kbits/s" &&
					p.Speed == 2.00
			},
		},
		{
			name:    "audio only stats line",
			line:    "size=    1024KiB time=00:00:15.00 bitrate= 559.2kbits/s speed=30.1x",
			updated: true,
			expected: func(p *models.EncodingProgress) bool {
				return p.Size == "1024KiB" && p.Seconds == 15 && p.Speed == 30.1
			},
		},
		{
			name:    "final Lsize line",
			line:    "video:0kB audio:512kB subtitle:0kB other streams:0kB global headers:0kB muxing overhead: 0.1% Lsize=     513kB",
			updated: true,
			expected: func(p *models.EncodingProgress) bool {
				return p.Size == "513kB"
			},
		},
		{
			name:    "progress frame key",
			line:    "frame=100",
			updated: true,
			expected: func(p *models.EncodingProgress) bool {
				return p.Frame == 100
			},
		},
		{
			name:    "progress out_time key",
			line:    "out_time=00:00:07.500000",
			updated: true,
			expected: func(p *models.EncodingProgress) bool {
				return p.Seconds == 7.5 && p.Progress == 25
			},
		},
		{
			name:    "progress total_size key",
			line:    "total_size=2097152",
			updated: true,
			expected: func(p *models.EncodingProgress) bool {
				return p.Size == "2048kB"
			},
		},
		{
			name:    "progress speed key",
			line:    "speed=3.14x",
			updated: true,
			expected: func(p *models.EncodingProgress) bool {
				return p.Speed == 3.14
			},
		},
		{
			name:    "out_time_us is ignored",
			line:    "out_time_us=7500000",
			updated: false,
			expected: func(p *models.EncodingProgress) bool {
				return p.Seconds == 0
			},
		},
		{
			name:    "progress marker",
			line:    "progress=continue",
			updated: false,
			expected: func(p *models.EncodingProgress) bool {
				return true
			},
		},
		{
			name:    "non-matching line",
			line:    "Stream #0:0: Video: h264 (High), yuv420p, 1920x1080",
			updated: false,
			expected: func(p *models.EncodingProgress) bool {
				return p.Frame == 0 && p.CurrentTime == ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progress := models.NewEncodingProgress(30.0)

			updated := parser.ParseLine(tt.line, progress)
			if updated != tt.updated {
				t.Errorf("ParseLine(%q) updated = %v; want %v", tt.line, updated, tt.updated)
			}

			if !tt.expected(progress) {
				t.Errorf("Progress not updated correctly for line: %s (%+v)", tt.line, progress)
			}
		})
	}
}

func TestProgressParser_ParseLine_ProgressCalculation(t *testing.T) {
	parser := NewProgressParser()
	progress := models.NewEncodingProgress(30.0)

	parser.ParseLine("time=00:00:15.00", progress)

	if progress.Progress < 49.0 || progress.Progress > 51.0 {
		t.Errorf("Expected progress around 50%%, got %.2f%%", progress.Progress)
	}
}

func TestProgressParser_timeToSeconds(t *testing.T) {
	parser := NewProgressParser()

	tests := []struct {
		name     string
		timeStr  string
		expected float64
	}{
		{"zero time", "00:00:00", 0.0},
		{"one second", "00:00:01", 1.0},
		{"one minute", "00:01:00", 60.0},
		{"one hour", "01:00:00", 3600.0},
		{"complex time", "01:23:45", 5025.0},
		{"with decimals", "00:00:30.53", 30.53},
		{"invalid format", "invalid", 0.0},
		{"wrong parts", "12:34", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parser.timeToSeconds(tt.timeStr)
			if result != tt.expected {
				t.Errorf("timeToSeconds(%s) = %.2f; want %.2f", tt.timeStr, result, tt.expected)
			}
		})
	}
}

func TestProgressParser_StreamProgress(t *testing.T) {
	parser := NewProgressParser()
	progress := models.NewEncodingProgress(30.0)

	// Stats lines as ffmpeg writes them, rewritten in place with \r.
	ffmpegOutput := "Input #0, matroska,webm, from 'in.mkv':\n" +
		"frame=   10 fps=25.0 size=    64kB time=00:00:00.40 bitrate=1280.0kbits/s speed=1.0x\r" +
		"frame=   20 fps=25.0 size=   128kB time=00:00:00.80 bitrate=1280.0kbits/s speed=1.5x\r" +
		"frame=   30 fps=25.0 size=   192kB time=00:00:01.20 bitrate=1280.0kbits/s speed=2.0x\n"

	callbackCount := 0
	callback := func(p *models.EncodingProgress) {
		callbackCount++
	}

	if err := parser.StreamProgress(strings.NewReader(ffmpegOutput), progress, callback); err != nil {
		t.Errorf("StreamProgress returned error: %v", err)
	}

	if callbackCount != 3 {
		t.Errorf("Expected 3 callback calls, got %d", callbackCount)
	}
	if progress.Frame != 30 {
		t.Errorf("Expected frame 30, got %d", progress.Frame)
	}
	if progress.Speed != 2.0 {
		t.Errorf("Expected speed 2.0, got %.2f", progress.Speed)
	}
	if progress.State != models.ProgressStateEncoding {
		t.Errorf("Expected state %s, got %s", models.ProgressStateEncoding, progress.State)
	}
}

func TestProgressParser_StreamProgress_WithoutCallback(t *testing.T) {
	parser := NewProgressParser()
	progress := models.NewEncodingProgress(30.0)

	ffmpegOutput := `frame=   10 fps=25.0 time=00:00:00.40 speed=1.0x`

	if err := parser.StreamProgress(strings.NewReader(ffmpegOutput), progress, nil); err != nil {
		t.Errorf("StreamProgress should not error without callback: %v", err)
	}

	if progress.Frame != 10 {
		t.Errorf("Expected frame 10, got %d", progress.Frame)
	}
}

func TestProgressParser_StreamProgress_EmptyInput(t *testing.T) {
	parser := NewProgressParser()
	progress := models.NewEncodingProgress(30.0)

	if err := parser.StreamProgress(strings.NewReader(""), progress, nil); err == nil {
		t.Error("StreamProgress should error on empty input")
	}
}

func TestProgressParser_Track(t *testing.T) {
	parser := NewProgressParser()
	progress := models.NewEncodingProgress(10.0)

	var last float64
	onLine := parser.Track(progress, func(p *models.EncodingProgress) {
		last = p.Progress
	})

	onLine("Press [q] to stop, [?] for help")
	onLine("frame=  125 fps=50 q=28.0 size=  512kB time=00:00:05.00 bitrate= 838.9kbits/s speed=2x")

	if last != 50 {
		t.Errorf("Expected callback with 50%%, got %.2f", last)
	}
}

func TestProgressParser_RealFFmpegLine(t *testing.T) {
	parser := NewProgressParser()
	progress := models.NewEncodingProgress(1.0)

	line := "frame=   24 fps=0.0 q=-0.0 size=       0kB time=00:00:00.98 bitrate=   0.4kbits/s speed=1.96x"

	if !parser.ParseLine(line, progress) {
		t.Error("Should update progress from real ffmpeg line")
	}

	if progress.Frame != 24 {
		t.Errorf("Expected frame 24, got %d", progress.Frame)
	}
	if progress.Speed != 1.96 {
		t.Errorf("Expected speed 1.96, got %.2f", progress.Speed)
	}
	if progress.Size != "0kB" {
		t.Errorf("Expected size 0kB, got %s", progress.Size)
	}
	if progress.Bitrate != "0.4kbits/s" {
		t.Errorf("Expected bitrate 0.4kbits/s, got %s", progress.Bitrate)
	}
}

func TestFormatProgressJSON(t *testing.T) {
	progress := models.NewEncodingProgress(30.0)
	progress.TaskID = "convert-1"
	progress.Frame = 100
	progress.Speed = 2.5
	progress.Progress = 50.0

	json, err := FormatProgressJSON(progress)
	if err != nil {
		t.Errorf("FormatProgressJSON returned error: %v", err)
	}

	for _, want := range []string{`"task_id": "convert-1"`, `"frame": 100`, `"speed": 2.5`, `"progress": 50`} {
		if !strings.Contains(json, want) {
			t.Errorf("JSON should contain %s, got %s", want, json)
		}
	}
}
