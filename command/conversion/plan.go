// Package conversion turns a stored profile into the ordered ffmpeg passes
// that convert one input file: one-pass and two-pass encodes, video
// stabilization, and PEAK, RMS or EBU R128 audio normalization.
package conversion

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mattn/go-shellwords"

	"videomass/command"
	"videomass/ffmpeg"
	vmerrors "videomass/internal/errors"
	"videomass/internal/id"
	"videomass/models"
)

var (
	videoFilterFlags = []string{"-vf", "-filter:v"}
	audioFilterFlags = []string{"-af", "-filter:a"}
)

// Plan builds the job converting input with profile p into outputDir. An
// empty outputDir writes next to the input. The output name is the input's
// base name with the profile's Output_extension.
func Plan(p models.Profile, input, outputDir string, opts Options) (*Job, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if input == "" {
		return nil, vmerrors.Validation("input path is required")
	}
	if !p.Supports(input) {
		return nil, vmerrors.Validation("%s: extension not supported by profile %q (supported: %s)",
			filepath.Base(input), p.Name, p.SupportedList)
	}

	if outputDir == "" {
		outputDir = filepath.Dir(input)
	}
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	output := filepath.Join(outputDir, base+"."+strings.TrimPrefix(p.OutputExtension, "."))
	if command.SamePath(input, output) {
		return nil, vmerrors.Validation("output %q would overwrite the input", output)
	}

	if opts.TempDir == "" {
		opts.TempDir = outputDir
	}
	if opts.Stabilize && opts.Vidstab.TRF == "" {
		name, err := id.Short("transforms")
		if err != nil {
			return nil, err
		}
		opts.Vidstab.TRF = filepath.Join(opts.TempDir, name+".trf")
	}
	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	first, err := splitFlags("First_pass", p.FirstPass)
	if err != nil {
		return nil, err
	}
	second, err := splitFlags("Second_pass", p.SecondPass)
	if err != nil {
		return nil, err
	}
	final := first
	if p.IsTwoPass() {
		final = second
	}
	if err := checkFilterable(p.Name, final, opts); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id.Task("convert"),
		Profile:     p,
		Input:       input,
		Output:      output,
		Measurement: &Measurement{},
		opts:        opts,
	}
	if opts.Volume != nil {
		job.Measurement.SetVolume(*opts.Volume)
	}
	if opts.Loudness != nil {
		job.Measurement.SetLoudness(*opts.Loudness)
	}

	switch {
	case opts.Normalize.usesVolumedetect() && opts.Volume == nil:
		job.add(job.volumedetectPass())
	case opts.Normalize == NormalizeEBU && opts.Loudness == nil:
		job.add(job.loudnormPass())
	}
	if opts.Stabilize {
		job.tempFiles = append(job.tempFiles, opts.Vidstab.TRF)
		job.add(job.stabilizePass())
	}

	if p.IsTwoPass() {
		name, err := id.Short("passlog")
		if err != nil {
			return nil, err
		}
		passlog := filepath.Join(opts.TempDir, name)
		job.tempFiles = append(job.tempFiles, passlog+"*")
		job.add(job.encodePass(command.TaskTypePass1, first, 1, passlog))
		job.add(job.encodePass(command.TaskTypePass2, second, 2, passlog))
	} else {
		job.add(job.encodePass(command.TaskTypeConvert, first, 0, ""))
	}
	return job, nil
}

func (j *Job) execution(pass int) command.Execution {
	return command.Execution{
		Runner:   j.opts.Runner,
		TaskID:   j.ID,
		Pass:     pass,
		Duration: j.opts.TimeRange.Span(j.opts.Duration),
		Progress: j.opts.Progress,
	}
}

// inputArgs is the common head of every pass.
func (j *Job) inputArgs() []string {
	args := []string{"-hide_banner", "-nostdin"}
	args = append(args, j.opts.TimeRange.Args()...)
	return append(args, "-i", j.Input)
}

func (j *Job) analysisArgs(filterFlag, filter string) []string {
	args := j.inputArgs()
	args = append(args, filterFlag, filter)
	if filterFlag == "-af" {
		args = append(args, "-vn", "-sn", "-dn")
	} else {
		args = append(args, "-an")
	}
	args = j.withThreads(args)
	return append(args, "-f", "null", ffmpeg.NullDevice())
}

func (j *Job) volumedetectPass() *Pass {
	return &Pass{
		taskType:   command.TaskTypeVolumedetect,
		inputPath:  j.Input,
		outputPath: ffmpeg.NullDevice(),
		priority:   command.PriorityHigh,
		args: func(bool) ([]string, error) {
			return j.analysisArgs("-af", "volumedetect"), nil
		},
		parse: func(out string) error {
			v, err := ffmpeg.ParseVolumedetect(out)
			if err != nil {
				return err
			}
			v.Path = j.Input
			j.Measurement.SetVolume(v)
			if g := ffmpeg.ComputeGain(v, j.opts.Normalize.levelMode(), j.opts.Target); g.Clipping && j.opts.Runner != nil {
				j.opts.Runner.Logger.Warn("gain will clip",
					"input", j.Input, "offset_db", g.Offset, "predicted_peak_db", g.PredictedPeak)
			}
			return nil
		},
		exec: j.execution(0),
	}
}

func (j *Job) loudnormPass() *Pass {
	return &Pass{
		taskType:   command.TaskTypeLoudnorm,
		inputPath:  j.Input,
		outputPath: ffmpeg.NullDevice(),
		priority:   command.PriorityHigh,
		args: func(bool) ([]string, error) {
			return j.analysisArgs("-af", j.opts.Loudnorm.MeasureFilter()), nil
		},
		parse: func(out string) error {
			l, err := ffmpeg.ParseLoudnorm(out)
			if err != nil {
				return err
			}
			j.Measurement.SetLoudness(l)
			return nil
		},
		exec: j.execution(0),
	}
}

func (j *Job) stabilizePass() *Pass {
	return &Pass{
		taskType:   command.TaskTypeStabilize,
		inputPath:  j.Input,
		outputPath: ffmpeg.NullDevice(),
		priority:   command.PriorityHigh,
		args: func(bool) ([]string, error) {
			return j.analysisArgs("-vf", j.opts.Vidstab.DetectFragment()), nil
		},
		exec: j.execution(0),
	}
}

// encodePass builds a conversion pass from the profile flags. number is 0
// for one-pass conversions, otherwise the pass of a two-pass conversion.
func (j *Job) encodePass(taskType command.TaskType, flags []string, number int, passlog string) *Pass {
	final := number != 1
	output := j.Output
	if !final {
		output = ffmpeg.NullDevice()
	}
	progressPass := number
	if progressPass == 0 {
		progressPass = 1
	}

	return &Pass{
		taskType:   taskType,
		inputPath:  j.Input,
		outputPath: output,
		priority:   command.PriorityNormal,
		args: func(preview bool) ([]string, error) {
			out := append([]string{}, flags...)
			if j.opts.Stabilize {
				out = mergeFilter(out, videoFilterFlags, "-vf", j.opts.Vidstab.TransformFragment())
			}
			if final {
				frag, err := j.audioFragment(preview)
				if err != nil {
					return nil, err
				}
				if frag != "" {
					out = mergeFilter(out, audioFilterFlags, "-af", frag)
				}
			}
			if number > 0 {
				if !hasFlag(out, "-pass") {
					out = append(out, "-pass", strconv.Itoa(number))
				}
				out = append(out, "-passlogfile", passlog)
			}
			out = j.withThreads(out)
			if number == 1 && !hasFlag(out, "-f") {
				out = append(out, "-f", "null")
			}

			args := j.inputArgs()
			args = append(args, out...)
			return append(args, "-y", output), nil
		},
		exec: j.execution(progressPass),
	}
}

// audioFragment returns the normalization filter for the final pass.
func (j *Job) audioFragment(preview bool) (string, error) {
	switch {
	case j.opts.Normalize.usesVolumedetect():
		v, ok := j.Measurement.Volume()
		if !ok {
			if preview {
				return "volume=<gain>dB", nil
			}
			return "", vmerrors.Internal("volume of %s has not been measured", j.Input)
		}
		return ffmpeg.ComputeGain(v, j.opts.Normalize.levelMode(), j.opts.Target).Filter(), nil
	case j.opts.Normalize == NormalizeEBU:
		l, ok := j.Measurement.Loudness()
		if !ok {
			if preview {
				return pendingLoudnorm(j.opts.Loudnorm), nil
			}
			return "", vmerrors.Internal("loudness of %s has not been measured", j.Input)
		}
		return j.opts.Loudnorm.ApplyFilter(l), nil
	}
	return "", nil
}

func pendingLoudnorm(t ffmpeg.LoudnormTarget) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return fmt.Sprintf("loudnorm=I=%s:TP=%s:LRA=%s:measured_I=<input_i>:measured_TP=<input_tp>:measured_LRA=<input_lra>:measured_thresh=<input_thresh>:offset=<target_offset>:linear=true:print_format=summary",
		f(t.I), f(t.TP), f(t.LRA))
}

func (j *Job) withThreads(args []string) []string {
	if j.opts.Threads > 0 && !hasFlag(args, "-threads") {
		args = append(args, "-threads", strconv.Itoa(j.opts.Threads))
	}
	return args
}

// checkFilterable refuses normalization and stabilization when the final
// pass copies or drops the stream the filter would run on. ffmpeg rejects
// filters on a stream copy.
func checkFilterable(profile string, final []string, opts Options) error {
	if opts.Normalize != NormalizeNone {
		switch {
		case hasFlag(final, "-an"):
			return vmerrors.Validation("profile %q drops the audio stream; %s normalization needs one", profile, opts.Normalize)
		case streamCodec(final, 'a') == "copy":
			return vmerrors.Validation("profile %q copies the audio stream; %s normalization needs it re-encoded", profile, opts.Normalize)
		}
	}
	if opts.Stabilize {
		switch {
		case hasFlag(final, "-vn"):
			return vmerrors.Validation("profile %q drops the video stream; stabilization needs one", profile)
		case streamCodec(final, 'v') == "copy":
			return vmerrors.Validation("profile %q copies the video stream; stabilization needs it re-encoded", profile)
		}
	}
	return nil
}

// streamCodec returns the codec that flags select for stream kind 'a' or
// 'v'. Like ffmpeg, the last matching option wins, so "-c copy -c:a aac"
// encodes the audio.
func streamCodec(flags []string, kind byte) string {
	legacy := "-acodec"
	if kind == 'v' {
		legacy = "-vcodec"
	}
	codec := ""
	for i := 0; i < len(flags)-1; i++ {
		name := flags[i]
		opt, spec, _ := strings.Cut(name, ":")
		switch {
		case name == legacy:
		case (opt == "-c" || opt == "-codec") && (spec == "" || spec[0] == kind):
		default:
			continue
		}
		codec = flags[i+1]
		i++
	}
	return codec
}

// splitFlags splits a profile flag string the way a POSIX shell would.
func splitFlags(key, s string) ([]string, error) {
	args, err := shellwords.Parse(s)
	if err != nil {
		return nil, vmerrors.Validation("%s: %v", key, err).WithDetails(map[string]string{key: s})
	}
	return args, nil
}

func hasFlag(args []string, names ...string) bool {
	for _, a := range args {
		for _, n := range names {
			if a == n {
				return true
			}
		}
	}
	return false
}

// mergeFilter appends fragment to the first existing filter option among
// names, or adds canonical with fragment when the flags carry none.
func mergeFilter(args, names []string, canonical, fragment string) []string {
	for i := 0; i < len(args)-1; i++ {
		for _, n := range names {
			if args[i] == n {
				if args[i+1] == "" {
					args[i+1] = fragment
				} else {
					args[i+1] += "," + fragment
				}
				return args
			}
		}
	}
	return append(args, canonical, fragment)
}

// Batch tracks the outputs planned in one run so two inputs cannot write
// the same file, e.g. clip.mp4 and clip.mkv both converted to clip.webm.
type Batch struct {
	outputs map[string]string
}

// NewBatch returns an empty batch.
func NewBatch() *Batch {
	return &Batch{outputs: map[string]string{}}
}

// Claim records that input writes output. It fails with ALREADY_EXISTS
// when an earlier input of the batch writes the same file.
func (b *Batch) Claim(input, output string) error {
	key := filepath.Clean(output)
	if abs, err := filepath.Abs(output); err == nil {
		key = abs
	}
	if prev, ok := b.outputs[key]; ok {
		return vmerrors.AlreadyExists("%s and %s would both write %s", prev, input, output)
	}
	b.outputs[key] = input
	return nil
}
