package display

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"videomass/ffmpeg"
	"videomass/ffprobe"
	"videomass/models"
	"videomass/params"
)

// newTable returns a bordered table with the shared header and cell styles.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// PresetsTable lists preset names with their profile counts. A negative
// count marks a preset file that failed to load.
func PresetsTable(names []string, counts map[string]int) string {
	t := newTable("Preset", "Profiles")
	for _, name := range names {
		n := counts[name]
		count := strconv.Itoa(n)
		if n < 0 {
			count = "unreadable"
		}
		t.Row(name, count)
	}
	return t.String()
}

// ProfilesTable lists the profiles of one preset.
func ProfilesTable(profiles []models.Profile) string {
	t := newTable("#", "Name", "Passes", "Output", "Supported", "Description")
	for i, p := range profiles {
		passes := "1"
		if p.IsTwoPass() {
			passes = "2"
		}
		supported := p.SupportedList
		if strings.TrimSpace(supported) == "" {
			supported = "any"
		}
		t.Row(strconv.Itoa(i), p.Name, passes, p.OutputExtension, supported, truncate(p.Description, 48))
	}
	return t.String()
}

// ProfileDetail renders every field of one profile.
func ProfileDetail(p models.Profile) string {
	t := newTable("Field", "Value")
	t.Row("Name", p.Name)
	t.Row("Description", p.Description)
	t.Row("First pass", p.FirstPass)
	t.Row("Second pass", p.SecondPass)
	t.Row("Supported", p.SupportedList)
	t.Row("Output extension", p.OutputExtension)
	return t.String()
}

// FormatsTable lists container formats.
func FormatsTable(formats []ffmpeg.Format) string {
	t := newTable("Name", "Demux", "Mux", "Device", "Description")
	for _, f := range formats {
		t.Row(f.Name, yesNo(f.Demux), yesNo(f.Mux), yesNo(f.Device), f.Description)
	}
	return t.String()
}

// CodecsTable lists codecs.
func CodecsTable(codecs []ffmpeg.Codec) string {
	t := newTable("Name", "Kind", "Decode", "Encode", "Description")
	for _, c := range codecs {
		t.Row(c.Name, c.Kind, yesNo(c.Decode), yesNo(c.Encode), c.Description)
	}
	return t.String()
}

// CodersTable lists encoders or decoders.
func CodersTable(coders []ffmpeg.Coder) string {
	t := newTable("Name", "Kind", "Threads", "Experimental", "Description")
	for _, c := range coders {
		var threads []string
		if c.FrameThreads {
			threads = append(threads, "frame")
		}
		if c.SliceThreads {
			threads = append(threads, "slice")
		}
		th := strings.Join(threads, ",")
		if th == "" {
			th = "-"
		}
		t.Row(c.Name, c.Kind, th, yesNo(c.Experimental), c.Description)
	}
	return t.String()
}

// BuildConfTable renders the configure flags side by side.
func BuildConfTable(b ffmpeg.BuildConf) string {
	t := newTable("Enabled", "Disabled", "Other")
	rows := max(len(b.Enabled), len(b.Disabled), len(b.Others))
	at := func(list []string, i int) string {
		if i < len(list) {
			return list[i]
		}
		return ""
	}
	for i := range rows {
		t.Row(at(b.Enabled, i), at(b.Disabled, i), at(b.Others, i))
	}
	out := t.String()
	if b.Version != "" {
		out = Banner("ffmpeg "+b.Version) + "\n" + out
	}
	return out
}

// VolumeRow pairs a measurement with the gain decision taken from it.
type VolumeRow struct {
	Volume ffmpeg.Volume
	Gain   ffmpeg.Gain
}

// VolumesTable lists volumedetect results with the gain to reach the target.
func VolumesTable(rows []VolumeRow) string {
	t := newTable("File", "Max dB", "Mean dB", "Mode", "Target", "Gain dB", "Peak after", "Clips")
	for _, r := range rows {
		clips := "-"
		if r.Gain.Clipping {
			clips = errorStyle.Render("yes")
		}
		t.Row(
			r.Volume.Path,
			fmt.Sprintf("%.1f", r.Volume.MaxVolume),
			fmt.Sprintf("%.1f", r.Volume.MeanVolume),
			string(r.Gain.Mode),
			fmt.Sprintf("%.1f", r.Gain.Target),
			fmt.Sprintf("%+.1f", r.Gain.Offset),
			fmt.Sprintf("%.1f", r.Gain.PredictedPeak),
			clips,
		)
	}
	return t.String()
}

// LoudnessRow pairs a file with its loudnorm analysis.
type LoudnessRow struct {
	Path     string
	Loudness ffmpeg.Loudness
	Target   ffmpeg.LoudnormTarget
}

// LoudnessTable lists EBU R128 measurements next to the target.
func LoudnessTable(rows []LoudnessRow) string {
	t := newTable("File", "Integrated LUFS", "True peak dBTP", "LRA LU", "Threshold", "Target I/TP/LRA", "Offset LU")
	for _, r := range rows {
		l := r.Loudness
		t.Row(
			r.Path,
			fmt.Sprintf("%.1f", l.InputI),
			fmt.Sprintf("%.1f", l.InputTP),
			fmt.Sprintf("%.1f", l.InputLRA),
			fmt.Sprintf("%.1f", l.InputThresh),
			fmt.Sprintf("%g/%g/%g", r.Target.I, r.Target.TP, r.Target.LRA),
			fmt.Sprintf("%+.1f", r.Target.I-l.InputI),
		)
	}
	return t.String()
}

// ResultsTable summarizes finished tasks.
func ResultsTable(results []*models.JobResult) string {
	t := newTable("Task", "Status", "Elapsed", "Output / error")
	for _, r := range results {
		detail := r.OutputPath
		status := successStyle.Render(r.Status())
		if !r.Success {
			status = warnStyle.Render(r.Status())
			if r.Error != nil {
				detail = truncate(r.Error.Error(), 72)
			}
		}
		elapsed := "-"
		if r.Elapsed > 0 {
			elapsed = r.Elapsed.Round(10 * time.Millisecond).String()
		}
		t.Row(r.TaskID, status, elapsed, detail)
	}
	return t.String()
}

// ProbeTable renders the streams and format of a probe result.
func ProbeTable(res *ffprobe.ProbeResult) string {
	format := newTable("Container", "Duration", "Size", "Bit rate", "Title")
	format.Row(res.Format.FormatLongName, res.Format.Duration, res.Format.Size, res.Format.BitRate, res.Tag("title"))

	streams := newTable("#", "Type", "Codec", "Details", "Language")
	for _, s := range res.Streams {
		var details string
		switch s.CodecType {
		case "video":
			details = fmt.Sprintf("%dx%d %s %s fps", s.Width, s.Height, s.PixFmt, s.FrameRate)
			if s.IsInterlaced() {
				details += " interlaced"
			}
		case "audio":
			details = fmt.Sprintf("%s Hz %d ch %s", s.SampleRate, s.Channels, s.ChannelLayout)
		}
		streams.Row(strconv.Itoa(s.Index), s.CodecType, s.CodecName, strings.TrimSpace(details), s.Language())
	}

	out := format.String() + "\n" + streams.String()
	if res.HasChapters() {
		chapters := newTable("#", "Start", "End", "Title")
		for _, c := range res.Chapters {
			chapters.Row(strconv.FormatInt(c.ID, 10), c.StartTime, c.EndTime, c.Title())
		}
		out += "\n" + chapters.String()
	}
	return out
}

// OptionsTable lists the entries of a parameter table by index, the
// numbers accepted by the ad-hoc conversion flags.
func OptionsTable(t *params.Table) string {
	out := newTable("Index", t.Name(), "Flags")
	for i, o := range t.Options() {
		flag := o.Flag
		if flag == "" {
			flag = dimStyle.Render("(none)")
		}
		out.Row(strconv.Itoa(i), o.Label, flag)
	}
	return out.String()
}
