package ffmpeg

import (
	"bufio"
	"context"
	"strings"
)

// Format is one entry of `ffmpeg -formats`.
type Format struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Demux       bool   `json:"demux"`
	Mux         bool   `json:"mux"`
	Device      bool   `json:"device,omitempty"`
}

// Codec is one entry of `ffmpeg -codecs`.
type Codec struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Decode      bool   `json:"decode"`
	Encode      bool   `json:"encode"`
	Kind        string `json:"kind"` // video, audio, subtitle, data, attachment
	IntraOnly   bool   `json:"intra_only,omitempty"`
	Lossy       bool   `json:"lossy,omitempty"`
	Lossless    bool   `json:"lossless,omitempty"`
}

// Coder is one entry of `ffmpeg -encoders` or `ffmpeg -decoders`.
type Coder struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Kind         string `json:"kind"` // video, audio, subtitle
	FrameThreads bool   `json:"frame_threads,omitempty"`
	SliceThreads bool   `json:"slice_threads,omitempty"`
	Experimental bool   `json:"experimental,omitempty"`
}

// BuildConf is the parsed `ffmpeg -buildconf` output.
type BuildConf struct {
	Version  string   `json:"version"`
	Enabled  []string `json:"enabled"`
	Disabled []string `json:"disabled"`
	Others   []string `json:"others"`
}

// IsEnabled reports whether --enable-<feature> was configured.
func (b *BuildConf) IsEnabled(feature string) bool {
	for _, f := range b.Enabled {
		if f == feature {
			return true
		}
	}
	return false
}

var kinds = map[byte]string{
	'V': "video",
	'A': "audio",
	'S': "subtitle",
	'D': "data",
	'T': "attachment",
}

// listingRow is one entry after the dashed separator: a flag column of
// fixed width, then name, then description.
type listingRow struct {
	flags       string
	name        string
	description string
}

// scanListing walks a listing whose legend ends with a line of dashes. The
// width of the dash line is the width of the flag column.
func scanListing(text string) []listingRow {
	var rows []listingRow
	width := 0

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if width == 0 {
			if trimmed != "" && strings.Trim(trimmed, "-") == "" {
				width = len(trimmed)
			}
			continue
		}
		if len(line) < width+2 || line[0] != ' ' {
			continue
		}
		rest := strings.TrimSpace(line[1+width:])
		if rest == "" {
			continue
		}
		name, desc, _ := strings.Cut(rest, " ")
		rows = append(rows, listingRow{
			flags:       line[1 : 1+width],
			name:        name,
			description: strings.TrimSpace(desc),
		})
	}
	return rows
}

// ParseFormats parses `ffmpeg -formats`. Flags are D (demux), E (mux) and,
// on newer builds, d (device).
func ParseFormats(text string) []Format {
	rows := scanListing(text)
	formats := make([]Format, 0, len(rows))
	for _, r := range rows {
		formats = append(formats, Format{
			Name:        r.name,
			Description: r.description,
			Demux:       strings.ContainsRune(r.flags, 'D'),
			Mux:         strings.ContainsRune(r.flags, 'E'),
			Device:      strings.ContainsRune(r.flags, 'd'),
		})
	}
	return formats
}

// GroupFormats splits formats into demux-only, mux-only and both.
func GroupFormats(formats []Format) (demuxOnly, muxOnly, both []Format) {
	for _, f := range formats {
		switch {
		case f.Demux && f.Mux:
			both = append(both, f)
		case f.Demux:
			demuxOnly = append(demuxOnly, f)
		case f.Mux:
			muxOnly = append(muxOnly, f)
		}
	}
	return demuxOnly, muxOnly, both
}

// ParseCodecs parses `ffmpeg -codecs` rows such as "DEV.LS h264 ...".
func ParseCodecs(text string) []Codec {
	rows := scanListing(text)
	codecs := make([]Codec, 0, len(rows))
	for _, r := range rows {
		if len(r.flags) < 6 {
			continue
		}
		codecs = append(codecs, Codec{
			Name:        r.name,
			Description: r.description,
			Decode:      r.flags[0] == 'D',
			Encode:      r.flags[1] == 'E',
			Kind:        kinds[r.flags[2]],
			IntraOnly:   r.flags[3] == 'I',
			Lossy:       r.flags[4] == 'L',
			Lossless:    r.flags[5] == 'S',
		})
	}
	return codecs
}

// ParseCoders parses `ffmpeg -encoders` or `-decoders` rows such as
// "V....D libx264 ...".
func ParseCoders(text string) []Coder {
	rows := scanListing(text)
	coders := make([]Coder, 0, len(rows))
	for _, r := range rows {
		if len(r.flags) < 4 {
			continue
		}
		coders = append(coders, Coder{
			Name:         r.name,
			Description:  r.description,
			Kind:         kinds[r.flags[0]],
			FrameThreads: r.flags[1] == 'F',
			SliceThreads: r.flags[2] == 'S',
			Experimental: r.flags[3] == 'X',
		})
	}
	return coders
}

// FilterCoders returns the coders of one kind ("video", "audio", "subtitle").
func FilterCoders(coders []Coder, kind string) []Coder {
	var out []Coder
	for _, c := range coders {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// ParseBuildConf parses `ffmpeg -buildconf`. Only the one-option-per-line
// block is read so options are not counted twice.
func ParseBuildConf(text string) BuildConf {
	var conf BuildConf
	seen := map[string]bool{}

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if conf.Version == "" && strings.HasPrefix(line, "ffmpeg version ") {
			fields := strings.Fields(line)
			if len(fields) >= 3 {
				conf.Version = fields[2]
			}
			continue
		}
		if !strings.HasPrefix(line, "--") || seen[line] {
			continue
		}
		seen[line] = true
		switch {
		case strings.HasPrefix(line, "--enable-"):
			conf.Enabled = append(conf.Enabled, strings.TrimPrefix(line, "--enable-"))
		case strings.HasPrefix(line, "--disable-"):
			conf.Disabled = append(conf.Disabled, strings.TrimPrefix(line, "--disable-"))
		default:
			conf.Others = append(conf.Others, line)
		}
	}
	return conf
}

// Formats runs `ffmpeg -formats`.
func (r *Runner) Formats(ctx context.Context) ([]Format, error) {
	out, err := r.Output(ctx, []string{"-hide_banner", "-formats"})
	if err != nil {
		return nil, err
	}
	return ParseFormats(out), nil
}

// Codecs runs `ffmpeg -codecs`.
func (r *Runner) Codecs(ctx context.Context) ([]Codec, error) {
	out, err := r.Output(ctx, []string{"-hide_banner", "-codecs"})
	if err != nil {
		return nil, err
	}
	return ParseCodecs(out), nil
}

// Encoders runs `ffmpeg -encoders`.
func (r *Runner) Encoders(ctx context.Context) ([]Coder, error) {
	out, err := r.Output(ctx, []string{"-hide_banner", "-encoders"})
	if err != nil {
		return nil, err
	}
	return ParseCoders(out), nil
}

// Decoders runs `ffmpeg -decoders`.
func (r *Runner) Decoders(ctx context.Context) ([]Coder, error) {
	out, err := r.Output(ctx, []string{"-hide_banner", "-decoders"})
	if err != nil {
		return nil, err
	}
	return ParseCoders(out), nil
}

// BuildConf runs `ffmpeg -buildconf`; the banner carries the version.
func (r *Runner) BuildConf(ctx context.Context) (BuildConf, error) {
	out, err := r.Output(ctx, []string{"-buildconf"})
	if err != nil {
		return BuildConf{}, err
	}
	return ParseBuildConf(out), nil
}

// Play opens path in ffplay and returns when playback ends or ctx is
// canceled. r.Binary must point to ffplay.
func (r *Runner) Play(ctx context.Context, path string, args []string) error {
	argv := append([]string{"-hide_banner", "-autoexit"}, args...)
	argv = append(argv, path)
	return r.Run(ctx, argv, nil)
}
