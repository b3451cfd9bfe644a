package display

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videomass/events"
	"videomass/ffmpeg"
	"videomass/ffprobe"
	"videomass/models"
	"videomass/params"
)

func TestProfilesTable(t *testing.T) {
	out := ProfilesTable([]models.Profile{
		{Name: "H.264", FirstPass: "-c:v libx264", OutputExtension: "mp4", Description: "web"},
		{Name: "VP9", FirstPass: "-an", SecondPass: "-c:a libopus", SupportedList: "mkv", OutputExtension: "webm"},
	})

	for _, want := range []string{"Name", "H.264", "mp4", "any", "VP9", "webm", "mkv"} {
		assert.Contains(t, out, want)
	}
	lines := strings.Split(out, "\n")
	var vp9 string
	for _, l := range lines {
		if strings.Contains(l, "VP9") {
			vp9 = l
		}
	}
	assert.Contains(t, vp9, "2", "two-pass profile shows two passes")
}

func TestPresetsTable(t *testing.T) {
	out := PresetsTable([]string{"audio", "broken"}, map[string]int{"audio": 4, "broken": -1})
	assert.Contains(t, out, "audio")
	assert.Contains(t, out, "4")
	assert.Contains(t, out, "unreadable")
}

func TestProfileDetail(t *testing.T) {
	out := ProfileDetail(models.Profile{Name: "x", FirstPass: "-c copy", OutputExtension: "mkv"})
	assert.Contains(t, out, "First pass")
	assert.Contains(t, out, "-c copy")
}

func TestListingTables(t *testing.T) {
	formats := FormatsTable([]ffmpeg.Format{{Name: "matroska", Description: "Matroska", Demux: true, Mux: true}})
	assert.Contains(t, formats, "matroska")

	codecs := CodecsTable([]ffmpeg.Codec{{Name: "h264", Kind: "video", Decode: true, Encode: true}})
	assert.Contains(t, codecs, "h264")
	assert.Contains(t, codecs, "video")

	coders := CodersTable([]ffmpeg.Coder{{Name: "libx264", Kind: "video", FrameThreads: true, SliceThreads: true}})
	assert.Contains(t, coders, "frame,slice")

	conf := BuildConfTable(ffmpeg.BuildConf{
		Version:  "6.1",
		Enabled:  []string{"gpl", "libx264", "libvidstab"},
		Disabled: []string{"doc"},
	})
	assert.Contains(t, conf, "ffmpeg 6.1")
	assert.Contains(t, conf, "libvidstab")
	assert.Contains(t, conf, "doc")
}

func TestVolumesTable(t *testing.T) {
	v := ffmpeg.Volume{Path: "song.flac", MaxVolume: -5, MeanVolume: -20}
	g := ffmpeg.ComputeGain(v, ffmpeg.LevelRMS, -12)
	out := VolumesTable([]VolumeRow{{Volume: v, Gain: g}})

	assert.Contains(t, out, "song.flac")
	assert.Contains(t, out, "+8.0")
	assert.Contains(t, out, "3.0")
	assert.Contains(t, out, "yes")
}

func TestLoudnessTable(t *testing.T) {
	out := LoudnessTable([]LoudnessRow{{
		Path:     "speech.wav",
		Loudness: ffmpeg.Loudness{InputI: -27.61, InputTP: -4.47, InputLRA: 18.06, InputThresh: -39.2},
		Target:   ffmpeg.DefaultLoudnormTarget,
	}})
	assert.Contains(t, out, "speech.wav")
	assert.Contains(t, out, "-27.6")
	assert.Contains(t, out, "-23/-1/11")
	assert.Contains(t, out, "+4.6")
}

func TestResultsTable(t *testing.T) {
	out := ResultsTable([]*models.JobResult{
		models.NewJobSuccess("job/1-convert", "/in.mkv", "/out.mp4", 1500*time.Millisecond),
		{TaskID: "job/2-pass2", Error: errors.New("ffmpeg exited with status 1")},
	})
	assert.Contains(t, out, "/out.mp4")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "ffmpeg exited with status 1")
}

func TestProbeTable(t *testing.T) {
	res := &ffprobe.ProbeResult{
		Streams: []ffprobe.Stream{
			{Index: 0, CodecType: "video", CodecName: "h264", Width: 1920, Height: 1080, PixFmt: "yuv420p", FrameRate: "25/1", FieldOrder: "tt"},
			{Index: 1, CodecType: "audio", CodecName: "aac", SampleRate: "48000", Channels: 2, ChannelLayout: "stereo", Tags: map[string]string{"language": "eng"}},
		},
		Chapters: []ffprobe.Chapter{{ID: 0, StartTime: "0.0", EndTime: "10.0", Tags: map[string]string{"title": "Intro"}}},
		Format:   ffprobe.Format{FormatLongName: "QuickTime / MOV", Duration: "10.0"},
	}
	out := ProbeTable(res)
	for _, want := range []string{"QuickTime / MOV", "1920x1080", "interlaced", "48000 Hz 2 ch stereo", "eng", "Intro"} {
		assert.Contains(t, out, want)
	}
}

func TestOptionsTable(t *testing.T) {
	set, err := params.AudioTables("mp3")
	require.NoError(t, err)
	out := OptionsTable(set.Bitrate)
	assert.Contains(t, out, "Index")
	assert.Contains(t, out, "0")
}

func TestProgress_Events(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, false)
	p.Label("job/1-convert", "movie.mkv")

	bus := events.NewBus(nil)
	detach := p.Attach(bus)
	defer detach()

	bus.Publish(events.Event{Type: events.TaskStarted, TaskID: "job/1-convert"})
	bus.Publish(events.Event{Type: events.TaskProgress, TaskID: "job/1-convert",
		Progress: &models.EncodingProgress{Progress: 50, Speed: 2}})
	bus.Publish(events.Event{Type: events.TaskProgress, TaskID: "job/1-convert"})
	bus.Publish(events.Event{Type: events.TaskFinished, TaskID: "job/1-convert",
		Result: models.NewJobSuccess("job/1-convert", "movie.mkv", "movie.mp4", 2*time.Second)})

	bus.Publish(events.Event{Type: events.TaskStarted, TaskID: "job/2-convert"})
	bus.Publish(events.Event{Type: events.TaskFailed, TaskID: "job/2-convert", Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "movie.mkv")
	assert.Contains(t, out, "2s")
	assert.Contains(t, out, "job/2-convert: boom")

	p.mu.Lock()
	assert.Empty(t, p.bars, "finished tasks drop their bars")
	p.mu.Unlock()
}

func TestProgress_Close(t *testing.T) {
	p := NewProgress(&bytes.Buffer{}, false)
	p.Handle(events.Event{Type: events.TaskStarted, TaskID: "a"})
	p.Close()
	assert.Empty(t, p.bars)
}

func TestMessages(t *testing.T) {
	assert.Contains(t, Success("done %d", 3), "done 3")
	assert.Contains(t, Warning("careful"), "careful")
	assert.Contains(t, Error("bad %s", "x"), "bad x")
	assert.Contains(t, Banner("Presets"), "Presets")
	assert.Contains(t, Dim("quiet"), "quiet")
}
