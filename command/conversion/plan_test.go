package conversion

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videomass/command"
	"videomass/ffmpeg"
	vmerrors "videomass/internal/errors"
	"videomass/models"
)

func mp3Profile() models.Profile {
	return models.Profile{
		Name:            "MP3 192k",
		Description:     "constant bitrate mp3",
		FirstPass:       "-vn -c:a libmp3lame -b:a 192k",
		OutputExtension: "mp3",
	}
}

func x264TwoPass() models.Profile {
	return models.Profile{
		Name:            "x264 1M two-pass",
		FirstPass:       "-c:v libx264 -b:v 1M -an",
		SecondPass:      "-c:v libx264 -b:v 1M -c:a aac",
		OutputExtension: "mp4",
	}
}

func joined(t *testing.T, p *Pass) string {
	t.Helper()
	args, err := p.Args()
	require.NoError(t, err)
	return strings.Join(args, " ")
}

func valueAfter(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func TestPlan_OnePass(t *testing.T) {
	job, err := Plan(mp3Profile(), "/media/song.wav", "/out", Options{})
	require.NoError(t, err)

	assert.Equal(t, "/out/song.mp3", job.Output)
	require.Len(t, job.Passes, 1)
	p := job.Passes[0]
	assert.Equal(t, command.TaskTypeConvert, p.GetTaskType())
	assert.Equal(t, "-hide_banner -nostdin -i /media/song.wav -vn -c:a libmp3lame -b:a 192k -y /out/song.mp3", joined(t, p))
	assert.Equal(t, "/out/song.mp3", p.GetOutputPath())
	assert.Empty(t, p.DependsOn)
}

func TestPlan_OutputNextToInput(t *testing.T) {
	job, err := Plan(mp3Profile(), "/media/song.flac", "", Options{})
	require.NoError(t, err)
	assert.Equal(t, "/media/song.mp3", job.Output)
}

func TestPlan_ThreadsAndTimeRange(t *testing.T) {
	job, err := Plan(mp3Profile(), "/media/song.wav", "/out", Options{
		Threads:   4,
		TimeRange: command.TimeRange{Start: 10, Duration: 5},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"-hide_banner -nostdin -ss 00:00:10.00 -t 00:00:05.00 -i /media/song.wav -vn -c:a libmp3lame -b:a 192k -threads 4 -y /out/song.mp3",
		joined(t, job.Passes[0]))
}

func TestPlan_TwoPass(t *testing.T) {
	tmp := t.TempDir()
	job, err := Plan(x264TwoPass(), "/media/clip.mkv", "/out", Options{TempDir: tmp})
	require.NoError(t, err)
	require.Len(t, job.Passes, 2)

	p1, p2 := job.Passes[0], job.Passes[1]
	assert.Equal(t, command.TaskTypePass1, p1.GetTaskType())
	assert.Equal(t, command.TaskTypePass2, p2.GetTaskType())
	assert.Equal(t, []string{p1.ID}, p2.DependsOn)

	a1, err := p1.Args()
	require.NoError(t, err)
	a2, err := p2.Args()
	require.NoError(t, err)

	passlog := valueAfter(a1, "-passlogfile")
	require.NotEmpty(t, passlog)
	assert.Equal(t, tmp, filepath.Dir(passlog))
	assert.True(t, strings.HasPrefix(filepath.Base(passlog), "passlog-"))
	assert.Equal(t, passlog, valueAfter(a2, "-passlogfile"))

	null := ffmpeg.NullDevice()
	assert.Equal(t,
		"-hide_banner -nostdin -i /media/clip.mkv -c:v libx264 -b:v 1M -an -pass 1 -passlogfile "+passlog+" -f null -y "+null,
		strings.Join(a1, " "))
	assert.Equal(t,
		"-hide_banner -nostdin -i /media/clip.mkv -c:v libx264 -b:v 1M -c:a aac -pass 2 -passlogfile "+passlog+" -y /out/clip.mp4",
		strings.Join(a2, " "))
	assert.Equal(t, null, p1.GetOutputPath())
}

func TestPlan_TwoPass_KeepsProfileFormatAndPassFlags(t *testing.T) {
	p := x264TwoPass()
	p.FirstPass = "-c:v libx264 -pass 1 -an -f mp4"
	job, err := Plan(p, "/media/clip.mkv", "/out", Options{})
	require.NoError(t, err)

	a1, err := job.Passes[0].Args()
	require.NoError(t, err)
	s := strings.Join(a1, " ")
	assert.Equal(t, 1, strings.Count(s, "-pass 1"))
	assert.Equal(t, 1, strings.Count(s, "-f "))
	assert.NotContains(t, s, "-f null")
}

func TestPlan_ShellQuotedFlags(t *testing.T) {
	p := mp3Profile()
	p.FirstPass = `-c:a libmp3lame -metadata title="Live at the Fillmore"`
	job, err := Plan(p, "/media/song.wav", "/out", Options{})
	require.NoError(t, err)

	args, err := job.Passes[0].Args()
	require.NoError(t, err)
	assert.Equal(t, "title=Live at the Fillmore", valueAfter(args, "-metadata"))
}

func TestPlan_Errors(t *testing.T) {
	unbalanced := mp3Profile()
	unbalanced.FirstPass = `-metadata title="oops`

	restricted := mp3Profile()
	restricted.SupportedList = "wav flac"

	invalid := mp3Profile()
	invalid.OutputExtension = ""

	tests := []struct {
		name    string
		profile models.Profile
		input   string
		outDir  string
		opts    Options
	}{
		{"unbalanced quotes", unbalanced, "/media/a.wav", "/out", Options{}},
		{"unsupported extension", restricted, "/media/a.mp4", "/out", Options{}},
		{"invalid profile", invalid, "/media/a.wav", "/out", Options{}},
		{"output overwrites input", mp3Profile(), "/media/a.mp3", "", Options{}},
		{"empty input", mp3Profile(), "", "/out", Options{}},
		{"positive target", mp3Profile(), "/media/a.wav", "/out", Options{Normalize: NormalizePeak, Target: 3}},
		{"unknown normalization", mp3Profile(), "/media/a.wav", "/out", Options{Normalize: "loud"}},
		{"negative threads", mp3Profile(), "/media/a.wav", "/out", Options{Threads: -1}},
		{"bad loudnorm target", mp3Profile(), "/media/a.wav", "/out", Options{Normalize: NormalizeEBU, Loudnorm: ffmpeg.LoudnormTarget{I: -80, TP: -1, LRA: 11}}},
		{"negative time range", mp3Profile(), "/media/a.wav", "/out", Options{TimeRange: command.TimeRange{Start: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Plan(tt.profile, tt.input, tt.outDir, tt.opts)
			require.Error(t, err)
			assert.True(t, vmerrors.Is(err, vmerrors.ErrValidation), "got %v", err)
		})
	}
}

func TestPlan_NormalizationNeedsEncodedAudio(t *testing.T) {
	remux := models.Profile{Name: "Remux", FirstPass: "-map 0 -c copy", OutputExtension: "mkv"}
	audioCopy := models.Profile{Name: "Video only", FirstPass: "-c:v libx265 -crf 28 -c:a copy", OutputExtension: "mkv"}
	mute := models.Profile{Name: "Mute", FirstPass: "-c:v libx264 -an", OutputExtension: "mp4"}

	for _, p := range []models.Profile{remux, audioCopy, mute} {
		for _, n := range []Normalization{NormalizePeak, NormalizeRMS, NormalizeEBU} {
			_, err := Plan(p, "/media/movie.mp4", "/out", Options{Normalize: n, Target: -1})
			assert.True(t, vmerrors.Is(err, vmerrors.ErrValidation), "%s with %s: got %v", p.Name, n, err)
		}
		_, err := Plan(p, "/media/movie.mp4", "/out", Options{})
		assert.NoError(t, err, p.Name)
	}

	// a later -c:a wins over -c copy
	reencoded := models.Profile{Name: "Copy video", FirstPass: "-map 0 -c copy -c:a aac -b:a 160k", OutputExtension: "mkv"}
	job, err := Plan(reencoded, "/media/movie.mp4", "/out", Options{Normalize: NormalizePeak, Target: -1})
	require.NoError(t, err)
	assert.Len(t, job.Passes, 2)
}

func TestPlan_StabilizeNeedsEncodedVideo(t *testing.T) {
	for _, flags := range []string{"-map 0 -c copy", "-c:v copy -c:a aac", "-vcodec copy", "-vn -c:a flac"} {
		p := models.Profile{Name: "p", FirstPass: flags, OutputExtension: "mkv"}
		_, err := Plan(p, "/media/movie.mp4", "/out", Options{Stabilize: true, TempDir: t.TempDir()})
		assert.True(t, vmerrors.Is(err, vmerrors.ErrValidation), "%s: got %v", flags, err)
	}
}

func TestStreamCodec(t *testing.T) {
	tests := []struct {
		flags string
		kind  byte
		want  string
	}{
		{"-c copy", 'a', "copy"},
		{"-c copy", 'v', "copy"},
		{"-c:v libx264 -c:a copy", 'a', "copy"},
		{"-c:v libx264 -c:a copy", 'v', "libx264"},
		{"-codec:a:0 copy", 'a', "copy"},
		{"-acodec copy", 'a', "copy"},
		{"-c copy -c:a aac", 'a', "aac"},
		{"-c:a aac -c copy", 'a', "copy"},
		{"-b:a 128k", 'a', ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, streamCodec(strings.Fields(tt.flags), tt.kind), "%s (%c)", tt.flags, tt.kind)
	}
}

func TestBatch_Claim(t *testing.T) {
	b := NewBatch()
	require.NoError(t, b.Claim("/media/a.mp4", "/out/a.webm"))
	require.NoError(t, b.Claim("/media/b.mp4", "/out/b.webm"))

	err := b.Claim("/media/a.mkv", "/out/../out/a.webm")
	assert.True(t, vmerrors.Is(err, vmerrors.ErrAlreadyExists), "got %v", err)
	assert.Contains(t, err.Error(), "/media/a.mp4")
}

func TestPlan_SupportedListAccepts(t *testing.T) {
	p := mp3Profile()
	p.SupportedList = "wav FLAC"
	_, err := Plan(p, "/media/a.flac", "/out", Options{})
	assert.NoError(t, err)
}

func TestPlan_PeakWithKnownVolume(t *testing.T) {
	job, err := Plan(mp3Profile(), "/media/song.wav", "/out", Options{
		Normalize: NormalizePeak,
		Target:    -1,
		Volume:    &ffmpeg.Volume{MaxVolume: -6, MeanVolume: -20},
	})
	require.NoError(t, err)
	require.Len(t, job.Passes, 1)
	assert.Contains(t, joined(t, job.Passes[0]), "-b:a 192k -af volume=5.0dB -y /out/song.mp3")

	g, ok := job.Gain()
	require.True(t, ok)
	assert.Equal(t, 5.0, g.Offset)
}

func TestPlan_GainMergesIntoProfileFilter(t *testing.T) {
	p := mp3Profile()
	p.FirstPass = "-af highpass=f=80 -c:a flac"
	p.OutputExtension = "flac"
	job, err := Plan(p, "/media/song.wav", "/out", Options{
		Normalize: NormalizeRMS,
		Target:    -18,
		Volume:    &ffmpeg.Volume{MaxVolume: -3, MeanVolume: -21},
	})
	require.NoError(t, err)

	args, err := job.Passes[0].Args()
	require.NoError(t, err)
	assert.Equal(t, "highpass=f=80,volume=3.0dB", valueAfter(args, "-af"))
	assert.Equal(t, 1, strings.Count(strings.Join(args, " "), "-af"))
}

func TestPlan_ZeroGainAddsNoFilter(t *testing.T) {
	job, err := Plan(mp3Profile(), "/media/song.wav", "/out", Options{
		Normalize: NormalizePeak,
		Target:    -1,
		Volume:    &ffmpeg.Volume{MaxVolume: -1, MeanVolume: -20},
	})
	require.NoError(t, err)
	assert.NotContains(t, joined(t, job.Passes[0]), "-af")
}

func TestPlan_MeasurementIsReadLazily(t *testing.T) {
	job, err := Plan(mp3Profile(), "/media/song.wav", "/out", Options{Normalize: NormalizeRMS, Target: -20})
	require.NoError(t, err)
	require.Len(t, job.Passes, 2)

	measure, convert := job.Passes[0], job.Passes[1]
	assert.Equal(t, command.TaskTypeVolumedetect, measure.GetTaskType())
	assert.Equal(t, command.PriorityHigh, measure.GetPriority())
	assert.Equal(t,
		"-hide_banner -nostdin -i /media/song.wav -af volumedetect -vn -sn -dn -f null "+ffmpeg.NullDevice(),
		joined(t, measure))

	_, err = convert.Args()
	assert.True(t, vmerrors.Is(err, vmerrors.ErrInternal))
	assert.Empty(t, convert.BuildArgs())

	line, err := convert.DryRun()
	require.NoError(t, err)
	assert.Contains(t, line, "'volume=<gain>dB'")

	_, ok := job.Gain()
	assert.False(t, ok)

	job.Measurement.SetVolume(ffmpeg.Volume{MaxVolume: -4, MeanVolume: -26.5})
	assert.Contains(t, joined(t, convert), "-af volume=6.5dB")
}

func TestPlan_EBU(t *testing.T) {
	job, err := Plan(mp3Profile(), "/media/song.wav", "/out", Options{Normalize: NormalizeEBU})
	require.NoError(t, err)
	require.Len(t, job.Passes, 2)

	measure, convert := job.Passes[0], job.Passes[1]
	assert.Equal(t, command.TaskTypeLoudnorm, measure.GetTaskType())
	assert.Contains(t, joined(t, measure), "-af loudnorm=I=-23:TP=-1:LRA=11:print_format=json")

	line, err := convert.DryRun()
	require.NoError(t, err)
	assert.Contains(t, line, "measured_I=<input_i>")

	l := ffmpeg.Loudness{InputI: -27.61, InputTP: -4.47, InputLRA: 18.06, InputThresh: -39.2}
	job.Measurement.SetLoudness(l)
	args, err := convert.Args()
	require.NoError(t, err)
	assert.Equal(t, ffmpeg.DefaultLoudnormTarget.ApplyFilter(l), valueAfter(args, "-af"))
	assert.Contains(t, valueAfter(args, "-af"), "linear=true")
}

func TestPlan_EBUWithKnownLoudness(t *testing.T) {
	l := ffmpeg.Loudness{InputI: -20, InputTP: -2, InputLRA: 7, InputThresh: -30}
	job, err := Plan(mp3Profile(), "/media/song.wav", "/out", Options{Normalize: NormalizeEBU, Loudness: &l})
	require.NoError(t, err)
	require.Len(t, job.Passes, 1)
	assert.Contains(t, joined(t, job.Passes[0]), "measured_I=-20")
}

func TestPlan_NormalizationOnlyOnFinalPass(t *testing.T) {
	job, err := Plan(x264TwoPass(), "/media/clip.mkv", "/out", Options{
		Normalize: NormalizePeak,
		Target:    -1,
		Volume:    &ffmpeg.Volume{MaxVolume: -3, MeanVolume: -20},
	})
	require.NoError(t, err)
	require.Len(t, job.Passes, 2)
	assert.NotContains(t, joined(t, job.Passes[0]), "volume=")
	assert.Contains(t, joined(t, job.Passes[1]), "-af volume=2.0dB")
}

func TestPlan_Stabilize(t *testing.T) {
	tmp := t.TempDir()
	p := models.Profile{
		Name:            "stab",
		FirstPass:       "-vf scale=640:-2 -c:v libx264 -crf 20",
		OutputExtension: "mp4",
	}
	job, err := Plan(p, "/media/shaky.mp4", "/out", Options{Stabilize: true, TempDir: tmp})
	require.NoError(t, err)
	require.Len(t, job.Passes, 2)

	detect, convert := job.Passes[0], job.Passes[1]
	assert.Equal(t, command.TaskTypeStabilize, detect.GetTaskType())
	assert.Equal(t, []string{detect.ID}, convert.DependsOn)

	da, err := detect.Args()
	require.NoError(t, err)
	vf := valueAfter(da, "-vf")
	assert.True(t, strings.HasPrefix(vf, "vidstabdetect=shakiness=5:accuracy=15"), vf)
	assert.Contains(t, vf, ".trf")
	assert.Contains(t, strings.Join(da, " "), "-an -f null "+ffmpeg.NullDevice())

	ca, err := convert.Args()
	require.NoError(t, err)
	chain := valueAfter(ca, "-vf")
	assert.True(t, strings.HasPrefix(chain, "scale=640:-2,vidstabtransform=input="), chain)
	assert.True(t, strings.HasSuffix(chain, ",unsharp=5:5:0.8:3:3:0.4"), chain)
}

func TestPlan_PassIDsAreUniqueAndOrdered(t *testing.T) {
	job, err := Plan(x264TwoPass(), "/media/clip.mkv", "/out", Options{Normalize: NormalizeEBU, Stabilize: true})
	require.NoError(t, err)

	var types []command.TaskType
	seen := map[string]bool{}
	for i, p := range job.Passes {
		types = append(types, p.GetTaskType())
		assert.False(t, seen[p.ID])
		seen[p.ID] = true
		assert.True(t, strings.HasPrefix(p.ID, job.ID+"/"))
		if i > 0 {
			assert.Equal(t, []string{job.Passes[i-1].ID}, p.DependsOn)
		}
	}
	assert.Equal(t, []command.TaskType{
		command.TaskTypeLoudnorm, command.TaskTypeStabilize, command.TaskTypePass1, command.TaskTypePass2,
	}, types)

	tasks := job.Tasks("ffmpeg")
	require.Len(t, tasks, 4)
	assert.Equal(t, job.Passes[3].ID, tasks[3].ID)
	assert.Equal(t, []string{tasks[2].ID}, tasks[3].Dependencies)
}

func TestJob_DryRun(t *testing.T) {
	job, err := Plan(x264TwoPass(), "/media/my clip.mkv", "/out", Options{})
	require.NoError(t, err)

	lines, err := job.DryRun()
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ffmpeg -hide_banner"))
	assert.Contains(t, lines[1], "'/media/my clip.mkv'")
	assert.Contains(t, lines[1], "'/out/my clip.mp4'")
}

func TestJob_Cleanup(t *testing.T) {
	tmp := t.TempDir()
	job, err := Plan(x264TwoPass(), "/media/clip.mkv", "/out", Options{TempDir: tmp, Stabilize: true})
	require.NoError(t, err)

	a1, err := job.Passes[1].Args()
	require.NoError(t, err)
	passlog := valueAfter(a1, "-passlogfile")
	for _, name := range []string{passlog + "-0.log", passlog + "-0.log.mbtree"} {
		require.NoError(t, os.WriteFile(name, []byte("stats"), 0o644))
	}
	keep := filepath.Join(tmp, "unrelated.log")
	require.NoError(t, os.WriteFile(keep, nil, 0o644))

	// The transforms file was never written; that is not an error.
	require.NoError(t, job.Cleanup())

	matches, err := filepath.Glob(passlog + "*")
	require.NoError(t, err)
	assert.Empty(t, matches)
	assert.FileExists(t, keep)
}

func TestParseNormalization(t *testing.T) {
	for in, want := range map[string]Normalization{"": NormalizeNone, "none": NormalizeNone, "PEAK": NormalizePeak, " rms ": NormalizeRMS, "ebu": NormalizeEBU} {
		got, err := ParseNormalization(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseNormalization("r128")
	assert.True(t, vmerrors.Is(err, vmerrors.ErrValidation))
}

// fakeFFmpeg writes a script that logs its arguments and prints a
// volumedetect report on stderr.
func fakeFFmpeg(t *testing.T) (bin, calls string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	calls = filepath.Join(dir, "calls.log")
	bin = filepath.Join(dir, "ffmpeg")
	script := `#!/bin/sh
echo "$*" >> "` + calls + `"
echo "[Parsed_volumedetect_0 @ 0x1] mean_volume: -20.0 dB" >&2
echo "[Parsed_volumedetect_0 @ 0x1] max_volume: -6.0 dB" >&2
`
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return bin, calls
}

func TestJob_Run_MeasuresThenConverts(t *testing.T) {
	bin, calls := fakeFFmpeg(t)
	out := t.TempDir()

	var states []models.ProgressState
	job, err := Plan(mp3Profile(), "/media/song.wav", out, Options{
		Normalize: NormalizePeak,
		Target:    -1,
		Runner:    ffmpeg.NewRunner(bin, nil),
		Progress:  func(p *models.EncodingProgress) { states = append(states, p.State) },
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(context.Background()))

	g, ok := job.Gain()
	require.True(t, ok)
	assert.Equal(t, 5.0, g.Offset)

	data, err := os.ReadFile(calls)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "-af volumedetect")
	assert.Contains(t, lines[1], "-af volume=5.0dB")

	assert.Contains(t, states, models.ProgressStateStarting)
	assert.Equal(t, models.ProgressStateCompleted, states[len(states)-1])
}

func TestJob_Run_Canceled(t *testing.T) {
	bin, calls := fakeFFmpeg(t)
	job, err := Plan(mp3Profile(), "/media/song.wav", t.TempDir(), Options{Runner: ffmpeg.NewRunner(bin, nil)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = job.Run(ctx)
	assert.True(t, vmerrors.Is(err, vmerrors.ErrCanceled), "got %v", err)
	assert.NoFileExists(t, calls)
}
