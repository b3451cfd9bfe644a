package video

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"videomass/command"
	"videomass/command/filters"
	"videomass/ffmpeg"
	vmerrors "videomass/internal/errors"
	"videomass/models"
	"videomass/params"
)

// HardwareAccel represents hardware acceleration type
type HardwareAccel string

const (
	HWAccelNone         HardwareAccel = ""
	HWAccelVAAPI        HardwareAccel = "vaapi"        // Intel/AMD on Linux
	HWAccelNVENC        HardwareAccel = "cuda"         // NVIDIA
	HWAccelQSV          HardwareAccel = "qsv"          // Intel Quick Sync
	HWAccelVDPAU        HardwareAccel = "vdpau"        // NVIDIA on Linux
	HWAccelD3D11        HardwareAccel = "d3d11va"      // Windows
	HWAccelDXVA2        HardwareAccel = "dxva2"        // Windows
	HWAccelVideoToolbox HardwareAccel = "videotoolbox" // macOS
)

// ParseHardwareAccel accepts the -hwaccel names above; "" and "none" disable it.
func ParseHardwareAccel(s string) (HardwareAccel, error) {
	switch a := HardwareAccel(s); a {
	case "none", HWAccelNone:
		return HWAccelNone, nil
	case HWAccelVAAPI, HWAccelNVENC, HWAccelQSV, HWAccelVDPAU, HWAccelD3D11, HWAccelDXVA2, HWAccelVideoToolbox:
		return a, nil
	default:
		return "", vmerrors.Validation("unknown hardware acceleration %q", s)
	}
}

// HardwareEncoderAccel returns the accelerator a hardware encoder such as
// "h264_vaapi" or "hevc_nvenc" runs on.
func HardwareEncoderAccel(encoder string) (HardwareAccel, error) {
	_, suffix, ok := strings.Cut(encoder, "_")
	if ok {
		switch suffix {
		case "vaapi":
			return HWAccelVAAPI, nil
		case "nvenc":
			return HWAccelNVENC, nil
		case "qsv":
			return HWAccelQSV, nil
		case "videotoolbox":
			return HWAccelVideoToolbox, nil
		}
	}
	return "", vmerrors.Validation("%q is not a hardware encoder (want e.g. h264_vaapi, hevc_nvenc, av1_qsv)", encoder)
}

// crfUnset disables -crf.
const crfUnset = -1

// VideoBuilder implements flexible video encoding with CPU/GPU pipeline control
type VideoBuilder struct {
	inputPath  string
	outputPath string

	// Hardware acceleration
	hwAccel  HardwareAccel
	hwDevice string // e.g., "/dev/dri/renderD128" for VAAPI

	// Encoding settings
	codec   string
	encoder string // Specific hardware encoder (e.g., "h264_nvenc", "av1_vaapi")
	bitrate string
	crf     int
	preset  string
	tune    string
	profile string
	level   string

	// Video properties
	frameRate   string
	pixelFormat string

	// Filters: the fixed-order chain plus free-form CPU filters that run
	// ahead of it (tone mapping, colorspace)
	videoFilters filters.VideoFilters
	cpuFilters   []string
	gpuFilters   []string

	// Audio
	audioCodec   string
	audioArgs    []string
	audioFilters filters.AudioFilters

	// Stream selection
	maps []string

	selection params.Selection
	timeRange command.TimeRange

	// Advanced options
	extraArgs        []string
	priority         int
	taskID           string
	duration         float64
	runner           *ffmpeg.Runner
	progressCallback models.ProgressCallback
}

// NewVideoBuilder creates a new video encoding command builder
func NewVideoBuilder(inputPath, outputPath string) *VideoBuilder {
	return &VideoBuilder{
		inputPath:   inputPath,
		outputPath:  outputPath,
		codec:       "libx264",
		crf:         23,
		preset:      "medium",
		pixelFormat: "yuv420p",
		audioCodec:  "copy",
		maps:        []string{"0:v?", "0:a?"},
		priority:    command.PriorityNormal,
	}
}

// Hardware Acceleration Configuration

// SetHardwareAccel enables hardware acceleration
func (v *VideoBuilder) SetHardwareAccel(accel HardwareAccel, device string) *VideoBuilder {
	v.hwAccel = accel
	v.hwDevice = device
	return v
}

// SetHardwareEncoder sets the hardware encoder directly (e.g., "h264_nvenc", "av1_vaapi")
func (v *VideoBuilder) SetHardwareEncoder(encoder string, accel HardwareAccel) *VideoBuilder {
	v.encoder = encoder
	v.hwAccel = accel
	return v
}

// Encoding Configuration

// SetCodec sets the video encoder (e.g., "libx264", "libx265", "libvpx-vp9", "copy")
func (v *VideoBuilder) SetCodec(codec string) *VideoBuilder {
	v.codec = codec
	return v
}

// SetBitrate sets the video bitrate (e.g., "2M", "1500k")
func (v *VideoBuilder) SetBitrate(bitrate string) *VideoBuilder {
	v.bitrate = bitrate
	return v
}

// SetCRF sets the Constant Rate Factor (0-63 depending on encoder, lower is
// better quality). A negative value disables it.
func (v *VideoBuilder) SetCRF(crf int) *VideoBuilder {
	if crf < 0 {
		crf = crfUnset
	}
	v.crf = crf
	return v
}

// SetPreset sets the encoding preset (ultrafast ... veryslow for x264/x265)
func (v *VideoBuilder) SetPreset(preset string) *VideoBuilder {
	v.preset = preset
	return v
}

// SetTune sets the encoder tune (film, animation, grain, ...).
func (v *VideoBuilder) SetTune(tune string) *VideoBuilder {
	v.tune = tune
	return v
}

// SetProfile sets the encoder profile (baseline, main, high, main10, ...).
func (v *VideoBuilder) SetProfile(profile string) *VideoBuilder {
	v.profile = profile
	return v
}

// SetLevel sets the encoder level (e.g., "4.1").
func (v *VideoBuilder) SetLevel(level string) *VideoBuilder {
	v.level = level
	return v
}

// SetFrameRate sets the output frame rate ("25", "30000/1001"). Empty keeps
// the source rate.
func (v *VideoBuilder) SetFrameRate(fps string) *VideoBuilder {
	v.frameRate = fps
	return v
}

// SetPixelFormat sets the pixel format (e.g., "yuv420p", "yuv444p", "p010le")
func (v *VideoBuilder) SetPixelFormat(pixfmt string) *VideoBuilder {
	v.pixelFormat = pixfmt
	return v
}

// SetParams takes the encoder and its options from a codec table
// selection, replacing the builder's preset, CRF and pixel format defaults.
func (v *VideoBuilder) SetParams(set *params.VideoSet, sel params.Selection) *VideoBuilder {
	v.codec = set.Encoder
	v.preset = ""
	v.crf = crfUnset
	v.pixelFormat = ""
	v.selection = sel
	return v
}

// Filter Methods

// SetVideoFilters sets the fixed-order filter chain.
func (v *VideoBuilder) SetVideoFilters(f filters.VideoFilters) *VideoBuilder {
	v.videoFilters = f
	return v
}

// AddCPUFilter adds a custom filter to be applied on CPU before GPU encoding
func (v *VideoBuilder) AddCPUFilter(filter string) *VideoBuilder {
	v.cpuFilters = append(v.cpuFilters, filter)
	return v
}

// AddToneMapping adds HDR to SDR tone mapping (CPU operation)
func (v *VideoBuilder) AddToneMapping(algorithm string) *VideoBuilder {
	if algorithm == "" {
		algorithm = "hable"
	}
	filter := fmt.Sprintf("zscale=t=linear:npl=100,format=gbrpf32le,zscale=p=bt709,tonemap=tonemap=%s:desat=0,zscale=t=bt709:m=bt709:r=tv,format=yuv420p", algorithm)
	v.cpuFilters = append(v.cpuFilters, filter)
	return v
}

// AddColorspaceConversion adds colorspace conversion (CPU operation). An
// empty fromSpace trusts the input's tags.
func (v *VideoBuilder) AddColorspaceConversion(fromSpace, toSpace string) *VideoBuilder {
	if toSpace == "" {
		return v
	}
	filter := "colorspace=all=" + toSpace
	if fromSpace != "" {
		filter += ":iall=" + fromSpace
	}
	v.cpuFilters = append(v.cpuFilters, filter)
	return v
}

// AddGPUFilter adds a custom filter to be applied on GPU
func (v *VideoBuilder) AddGPUFilter(filter string) *VideoBuilder {
	v.gpuFilters = append(v.gpuFilters, filter)
	return v
}

// AddGPUScale adds GPU-accelerated scaling, falling back to the CPU scale
// filter when the accelerator has no scaler. A zero dimension keeps the aspect ratio.
func (v *VideoBuilder) AddGPUScale(width, height int) *VideoBuilder {
	if width == 0 && height == 0 {
		return v
	}
	if width == 0 {
		width = -2
	}
	if height == 0 {
		height = -2
	}
	var filter string
	switch v.hwAccel {
	case HWAccelVAAPI:
		filter = fmt.Sprintf("scale_vaapi=w=%d:h=%d", width, height)
	case HWAccelNVENC:
		filter = fmt.Sprintf("scale_cuda=%d:%d", width, height)
	case HWAccelQSV:
		filter = fmt.Sprintf("scale_qsv=w=%d:h=%d", width, height)
	default:
		filter = filters.Scale(width, height)
	}
	v.gpuFilters = append(v.gpuFilters, filter)
	return v
}

// Audio and streams

// SetAudioCodec sets the audio encoder; "copy" keeps the source stream and
// "" drops audio.
func (v *VideoBuilder) SetAudioCodec(codec string, args ...string) *VideoBuilder {
	v.audioCodec = codec
	v.audioArgs = args
	return v
}

// SetAudioFilters sets the -af chain. Ignored when audio is copied.
func (v *VideoBuilder) SetAudioFilters(f filters.AudioFilters) *VideoBuilder {
	v.audioFilters = f
	return v
}

// SetMaps replaces the -map specifiers (default "0:v?" and "0:a?").
func (v *VideoBuilder) SetMaps(maps ...string) *VideoBuilder {
	v.maps = maps
	return v
}

// SetTimeRange limits the conversion to part of the input.
func (v *VideoBuilder) SetTimeRange(r command.TimeRange) *VideoBuilder {
	v.timeRange = r
	return v
}

// Advanced Options

// AddExtraArgs adds custom ffmpeg output arguments
func (v *VideoBuilder) AddExtraArgs(args ...string) *VideoBuilder {
	v.extraArgs = append(v.extraArgs, args...)
	return v
}

// SetPriority sets the task priority (higher = processed first)
func (v *VideoBuilder) SetPriority(priority int) command.Command {
	v.priority = priority
	return v
}

// SetRunner sets the ffmpeg runner used by Run.
func (v *VideoBuilder) SetRunner(r *ffmpeg.Runner) *VideoBuilder {
	v.runner = r
	return v
}

// SetTaskID tags progress updates.
func (v *VideoBuilder) SetTaskID(id string) *VideoBuilder {
	v.taskID = id
	return v
}

// SetDuration sets the input duration in seconds for progress percentages.
func (v *VideoBuilder) SetDuration(seconds float64) *VideoBuilder {
	v.duration = seconds
	return v
}

// SetProgressCallback sets a callback for progress updates
func (v *VideoBuilder) SetProgressCallback(callback models.ProgressCallback) *VideoBuilder {
	v.progressCallback = callback
	return v
}

// Validate checks the builder can produce a usable command.
func (v *VideoBuilder) Validate() error {
	switch {
	case v.inputPath == "":
		return vmerrors.Validation("video: input path is required")
	case v.outputPath == "":
		return vmerrors.Validation("video: output path is required")
	case command.SamePath(v.inputPath, v.outputPath):
		return vmerrors.Validation("video: output %q would overwrite the input", v.outputPath)
	case v.isCopy() && (!v.videoFilters.IsEmpty() || len(v.cpuFilters) > 0 || len(v.gpuFilters) > 0):
		return vmerrors.Validation("video: filters cannot be applied to a stream copy")
	}
	return v.timeRange.Validate()
}

func (v *VideoBuilder) isCopy() bool {
	return v.encoder == "" && v.codec == "copy"
}

// gpuResident reports whether decoded frames stay in device memory. Only a
// hardware encoder can take them there; software encoders get system
// memory frames even when decoding is accelerated.
func (v *VideoBuilder) gpuResident() bool {
	return v.encoder != "" && v.hwUpload() != ""
}

// gpuFiltering reports whether the GPU filters run on the device. Without
// an upload path they are the CPU fallbacks from AddGPUScale or custom
// filters and run with the CPU chain.
func (v *VideoBuilder) gpuFiltering() bool {
	return len(v.gpuFilters) > 0 && v.hwUpload() != ""
}

// BuildArgs constructs the ffmpeg arguments for video encoding
func (v *VideoBuilder) BuildArgs() []string {
	args := []string{"-hide_banner", "-nostdin"}

	// Hardware acceleration input setup
	if v.hwAccel != "" {
		args = append(args, "-hwaccel", string(v.hwAccel))
		if v.hwDevice != "" {
			args = append(args, "-hwaccel_device", v.hwDevice)
		}
		if v.gpuResident() {
			args = append(args, "-hwaccel_output_format", string(v.hwAccel))
		}
	}

	// Time range seeks on the input side
	args = append(args, v.timeRange.Args()...)
	args = append(args, "-i", v.inputPath)

	for _, m := range v.maps {
		args = append(args, "-map", m)
	}

	if chain := v.buildFilterChain(); chain != "" {
		args = append(args, "-vf", chain)
	}

	// Video codec/encoder
	if v.encoder != "" {
		args = append(args, "-c:v", v.encoder)
	} else {
		args = append(args, "-c:v", v.codec)
	}

	if !v.isCopy() {
		if v.bitrate != "" {
			args = append(args, "-b:v", v.bitrate)
		}
		// CRF only works with software encoders
		if v.crf != crfUnset && v.encoder == "" {
			args = append(args, "-crf", strconv.Itoa(v.crf))
		}
		if v.preset != "" {
			args = append(args, "-preset", v.preset)
		}
		if v.tune != "" {
			args = append(args, "-tune", v.tune)
		}
		if v.profile != "" {
			args = append(args, "-profile:v", v.profile)
		}
		if v.level != "" {
			args = append(args, "-level", v.level)
		}
		if v.frameRate != "" {
			args = append(args, "-r", v.frameRate)
		}
		// Pixel format for software encoding
		if v.pixelFormat != "" && v.encoder == "" {
			args = append(args, "-pix_fmt", v.pixelFormat)
		}
	}
	args = append(args, v.selection.Args()...)

	switch v.audioCodec {
	case "":
		args = append(args, "-an")
	case "copy":
		args = append(args, "-c:a", "copy")
	default:
		args = append(args, "-c:a", v.audioCodec)
		args = append(args, v.audioArgs...)
		args = append(args, v.audioFilters.Args()...)
	}

	args = append(args, v.extraArgs...)

	// Overwrite output
	args = append(args, "-y", v.outputPath)

	return args
}

// hwUpload returns the upload step for the configured accelerator.
func (v *VideoBuilder) hwUpload() string {
	switch v.hwAccel {
	case HWAccelVAAPI:
		return "format=nv12|vaapi,hwupload"
	case HWAccelNVENC:
		return "format=nv12,hwupload_cuda"
	case HWAccelQSV:
		return "format=nv12,hwupload=extra_hw_frames=64"
	default:
		return ""
	}
}

// buildFilterChain constructs the complete filter chain
// Optimized pipeline:
// 1. GPU scaling first (if present) to reduce resolution early
// 2. CPU filters on smaller resolution (more efficient)
// 3. Frames end where the encoder reads them: device memory for a hardware
//    encoder, system memory for a software one
func (v *VideoBuilder) buildFilterChain() string {
	cpu := append(append([]string{}, v.cpuFilters...), v.videoFilters.Fragments()...)
	var chain []string
	add := func(parts ...string) {
		for _, p := range parts {
			if p != "" {
				chain = append(chain, p)
			}
		}
	}

	if !v.gpuFiltering() && !v.gpuResident() {
		// Software only; GPU filters fell back to CPU equivalents
		add(v.gpuFilters...)
		add(cpu...)
		return strings.Join(chain, ",")
	}

	onDevice := v.gpuResident()
	if v.gpuFiltering() {
		if !onDevice {
			add(v.hwUpload())
			onDevice = true
		}
		add(v.gpuFilters...)
	}
	if len(cpu) > 0 {
		if onDevice {
			add(hwDownload)
			onDevice = false
		}
		add(cpu...)
	}
	switch {
	case v.encoder != "" && !onDevice:
		add(v.hwUpload())
	case v.encoder == "" && onDevice:
		add(hwDownload)
	}
	return strings.Join(chain, ",")
}

const hwDownload = "hwdownload,format=nv12"

// Run executes the video encoding command
func (v *VideoBuilder) Run(ctx context.Context) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("cannot run command: %w", err)
	}
	exec := command.Execution{
		Runner:   v.runner,
		TaskID:   v.taskID,
		Duration: v.timeRange.Span(v.duration),
		Progress: v.progressCallback,
	}
	return exec.Execute(ctx, v.BuildArgs())
}

// DryRun returns the command that would be executed without running it
func (v *VideoBuilder) DryRun() (string, error) {
	if err := v.Validate(); err != nil {
		return "", fmt.Errorf("cannot build command: %w", err)
	}
	return command.DryRunLine(v.runner, v.BuildArgs())
}

// GetPriority returns the task priority
func (v *VideoBuilder) GetPriority() int {
	return v.priority
}

// GetTaskType returns the task type identifier
func (v *VideoBuilder) GetTaskType() command.TaskType {
	return command.TaskTypeVideo
}

// GetInputPath returns the input file path
func (v *VideoBuilder) GetInputPath() string {
	return v.inputPath
}

// GetOutputPath returns the output file path
func (v *VideoBuilder) GetOutputPath() string {
	return v.outputPath
}
