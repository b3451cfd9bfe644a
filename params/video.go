package params

import (
	"fmt"
	"sort"

	vmerrors "videomass/internal/errors"
)

// VideoSet groups the tables for one video codec family.
//
// Deinterlace and Denoise carry filter fragments rather than flags; they are
// meant for the video filter chain, not the argv.
type VideoSet struct {
	Codec       string
	Encoder     string
	Preset      *Table
	Tune        *Table
	Profile     *Table
	Level       *Table
	CRF         *Table
	PixelFormat *Table
	FrameRate   *Table
	Aspect      *Table
	Deinterlace *Table
	Denoise     *Table
}

// CodecArgs returns the -c:v arguments for the family.
func (s *VideoSet) CodecArgs() []string {
	return []string{"-c:v", s.Encoder}
}

// IsCopy reports whether the family is a stream copy.
func (s *VideoSet) IsCopy() bool {
	return s.Encoder == "copy"
}

// VideoIndexes picks one entry per flag table of a VideoSet.
type VideoIndexes struct {
	Preset      int
	Tune        int
	Profile     int
	Level       int
	CRF         int
	PixelFormat int
	FrameRate   int
	Aspect      int
}

// Select returns the flag selections for idx. Filter tables are picked
// separately.
func (s *VideoSet) Select(idx VideoIndexes) (Selection, error) {
	var sel Selection
	var err error
	picks := []struct {
		t *Table
		i int
	}{
		{s.Preset, idx.Preset},
		{s.Tune, idx.Tune},
		{s.Profile, idx.Profile},
		{s.Level, idx.Level},
		{s.CRF, idx.CRF},
		{s.PixelFormat, idx.PixelFormat},
		{s.FrameRate, idx.FrameRate},
		{s.Aspect, idx.Aspect},
	}
	for _, p := range picks {
		if sel, err = sel.Add(p.t, p.i); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

var videoAliases = map[string]string{
	"h264":       "x264",
	"avc":        "x264",
	"libx264":    "x264",
	"h265":       "x265",
	"hevc":       "x265",
	"libx265":    "x265",
	"libvpx-vp9": "vp9",
	"vpx":        "vp9",
	"libaom-av1": "av1",
	"libsvtav1":  "av1",
	"svt-av1":    "av1",
	"xvid":       "mpeg4",
}

var videoSets = map[string]*VideoSet{}

// VideoTables returns the tables for a video codec family.
func VideoTables(codec string) (*VideoSet, error) {
	name := normalize(codec)
	if alias, ok := videoAliases[name]; ok {
		name = alias
	}
	set, ok := videoSets[name]
	if !ok {
		return nil, vmerrors.Validation("unknown video codec %q", codec)
	}
	cp := *set
	return &cp, nil
}

// VideoCodecs lists the supported video family names, sorted.
func VideoCodecs() []string {
	names := make([]string, 0, len(videoSets))
	for name := range videoSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func flagTable(name, flag string, values ...string) *Table {
	opts := []Option{auto}
	for _, v := range values {
		opts = append(opts, Option{Label: v, Flag: flag + " " + v})
	}
	return newTable(name, opts...)
}

func crfTable(name, flag string, from, to int, suffix string) *Table {
	opts := []Option{auto}
	for q := from; q <= to; q++ {
		f := fmt.Sprintf("%s %d", flag, q)
		if suffix != "" {
			f += " " + suffix
		}
		opts = append(opts, Option{Label: fmt.Sprintf("%d", q), Flag: f})
	}
	return newTable(name, opts...)
}

var x26xPresets = []string{"ultrafast", "superfast", "veryfast", "faster", "fast", "medium", "slow", "slower", "veryslow", "placebo"}

func pixelFormatTable(name string, formats ...string) *Table {
	return flagTable(name+" pixel format", "-pix_fmt", formats...)
}

func frameRateTable(name string) *Table {
	return newTable(name+" frame rate", auto,
		Option{Label: "23.976", Flag: "-r 24000/1001"},
		Option{Label: "24", Flag: "-r 24"},
		Option{Label: "25", Flag: "-r 25"},
		Option{Label: "29.97", Flag: "-r 30000/1001"},
		Option{Label: "30", Flag: "-r 30"},
		Option{Label: "50", Flag: "-r 50"},
		Option{Label: "59.94", Flag: "-r 60000/1001"},
		Option{Label: "60", Flag: "-r 60"},
	)
}

func aspectTable(name string) *Table {
	return flagTable(name+" aspect", "-aspect", "4:3", "16:9", "1.85", "2.35", "2.39")
}

func deinterlaceTable(name string) *Table {
	return newTable(name+" deinterlace", Option{Label: "Off", Flag: ""},
		Option{Label: "yadif: one frame per frame", Flag: "yadif=mode=send_frame:parity=auto:deint=all"},
		Option{Label: "yadif: one frame per field", Flag: "yadif=mode=send_field:parity=auto:deint=all"},
		Option{Label: "yadif: interlaced frames only", Flag: "yadif=mode=send_frame:parity=auto:deint=interlaced"},
		Option{Label: "w3fdif", Flag: "w3fdif=filter=complex:deint=all"},
		Option{Label: "bwdif", Flag: "bwdif=mode=send_frame:parity=auto:deint=all"},
	)
}

func denoiseTable(name string) *Table {
	return newTable(name+" denoise", Option{Label: "Off", Flag: ""},
		Option{Label: "hqdn3d light", Flag: "hqdn3d=2:1:2:3"},
		Option{Label: "hqdn3d medium", Flag: "hqdn3d=4:3:6:4.5"},
		Option{Label: "hqdn3d strong", Flag: "hqdn3d=8:6:12:9"},
		Option{Label: "nlmeans", Flag: "nlmeans=s=3.0:p=7:r=15"},
	)
}

func init() {
	videoSets["x264"] = &VideoSet{
		Codec:       "x264",
		Encoder:     "libx264",
		Preset:      flagTable("x264 preset", "-preset", x26xPresets...),
		Tune:        flagTable("x264 tune", "-tune", "film", "animation", "grain", "stillimage", "fastdecode", "zerolatency"),
		Profile:     flagTable("x264 profile", "-profile:v", "baseline", "main", "high", "high10", "high422", "high444"),
		Level:       flagTable("x264 level", "-level", "3.0", "3.1", "4.0", "4.1", "4.2", "5.0", "5.1", "5.2"),
		CRF:         crfTable("x264 crf", "-crf", 0, 51, ""),
		PixelFormat: pixelFormatTable("x264", "yuv420p", "yuv422p", "yuv444p", "yuv420p10le"),
		FrameRate:   frameRateTable("x264"),
		Aspect:      aspectTable("x264"),
		Deinterlace: deinterlaceTable("x264"),
		Denoise:     denoiseTable("x264"),
	}

	videoSets["x265"] = &VideoSet{
		Codec:       "x265",
		Encoder:     "libx265",
		Preset:      flagTable("x265 preset", "-preset", x26xPresets...),
		Tune:        flagTable("x265 tune", "-tune", "psnr", "ssim", "grain", "zerolatency", "fastdecode", "animation"),
		Profile:     flagTable("x265 profile", "-profile:v", "main", "main10", "main12", "main444-8", "main444-10"),
		Level:       flagTable("x265 level", "-x265-params", "level-idc=4.0", "level-idc=4.1", "level-idc=5.0", "level-idc=5.1", "level-idc=6.0"),
		CRF:         crfTable("x265 crf", "-crf", 0, 51, ""),
		PixelFormat: pixelFormatTable("x265", "yuv420p", "yuv420p10le", "yuv422p10le", "yuv444p10le", "yuv420p12le"),
		FrameRate:   frameRateTable("x265"),
		Aspect:      aspectTable("x265"),
		Deinterlace: deinterlaceTable("x265"),
		Denoise:     denoiseTable("x265"),
	}

	vp9Speed := []Option{auto}
	for _, d := range []string{"best", "good", "realtime"} {
		vp9Speed = append(vp9Speed, Option{Label: d, Flag: "-deadline " + d})
	}
	for n := 0; n <= 5; n++ {
		vp9Speed = append(vp9Speed, Option{Label: fmt.Sprintf("good, cpu-used %d", n), Flag: fmt.Sprintf("-deadline good -cpu-used %d", n)})
	}
	videoSets["vp9"] = &VideoSet{
		Codec:       "vp9",
		Encoder:     "libvpx-vp9",
		Preset:      newTable("vp9 deadline", vp9Speed...),
		Tune:        flagTable("vp9 tune", "-tune-content", "default", "screen", "film"),
		Profile:     flagTable("vp9 profile", "-profile:v", "0", "1", "2", "3"),
		Level:       autoOnly("vp9 level"),
		CRF:         crfTable("vp9 crf", "-crf", 0, 63, "-b:v 0"),
		PixelFormat: pixelFormatTable("vp9", "yuv420p", "yuv422p", "yuv444p", "yuv420p10le"),
		FrameRate:   frameRateTable("vp9"),
		Aspect:      aspectTable("vp9"),
		Deinterlace: deinterlaceTable("vp9"),
		Denoise:     denoiseTable("vp9"),
	}

	av1Presets := []Option{auto}
	for p := 0; p <= 13; p++ {
		av1Presets = append(av1Presets, Option{Label: fmt.Sprintf("%d", p), Flag: fmt.Sprintf("-preset %d", p)})
	}
	videoSets["av1"] = &VideoSet{
		Codec:   "av1",
		Encoder: "libsvtav1",
		Preset:  newTable("av1 preset", av1Presets...),
		Tune: newTable("av1 tune", auto,
			Option{Label: "visual quality", Flag: "-svtav1-params tune=0"},
			Option{Label: "psnr", Flag: "-svtav1-params tune=1"},
		),
		Profile:     flagTable("av1 profile", "-profile:v", "main", "high", "professional"),
		Level:       autoOnly("av1 level"),
		CRF:         crfTable("av1 crf", "-crf", 0, 63, ""),
		PixelFormat: pixelFormatTable("av1", "yuv420p", "yuv420p10le"),
		FrameRate:   frameRateTable("av1"),
		Aspect:      aspectTable("av1"),
		Deinterlace: deinterlaceTable("av1"),
		Denoise:     denoiseTable("av1"),
	}

	videoSets["mpeg4"] = &VideoSet{
		Codec:       "mpeg4",
		Encoder:     "mpeg4",
		Preset:      autoOnly("mpeg4 preset"),
		Tune:        autoOnly("mpeg4 tune"),
		Profile:     autoOnly("mpeg4 profile"),
		Level:       autoOnly("mpeg4 level"),
		CRF:         crfTable("mpeg4 quality", "-qscale:v", 1, 31, ""),
		PixelFormat: pixelFormatTable("mpeg4", "yuv420p"),
		FrameRate:   frameRateTable("mpeg4"),
		Aspect:      aspectTable("mpeg4"),
		Deinterlace: deinterlaceTable("mpeg4"),
		Denoise:     denoiseTable("mpeg4"),
	}

	videoSets["copy"] = &VideoSet{
		Codec:       "copy",
		Encoder:     "copy",
		Preset:      autoOnly("copy preset"),
		Tune:        autoOnly("copy tune"),
		Profile:     autoOnly("copy profile"),
		Level:       autoOnly("copy level"),
		CRF:         autoOnly("copy crf"),
		PixelFormat: autoOnly("copy pixel format"),
		FrameRate:   autoOnly("copy frame rate"),
		Aspect:      aspectTable("copy"),
		Deinterlace: autoOnly("copy deinterlace"),
		Denoise:     autoOnly("copy denoise"),
	}
}
