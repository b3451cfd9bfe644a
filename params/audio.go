package params

import (
	"fmt"
	"sort"

	vmerrors "videomass/internal/errors"
)

// AudioSet groups the tables for one audio codec family.
//
// Encoder is the ffmpeg encoder passed to -c:a. It is empty for wav, where
// the bit depth table selects the pcm encoder itself.
type AudioSet struct {
	Codec      string
	Encoder    string
	Extension  string
	Bitrate    *Table
	Channels   *Table
	SampleRate *Table
	BitDepth   *Table
}

// CodecArgs returns the -c:a arguments for the family, if any.
func (s *AudioSet) CodecArgs() []string {
	if s.Encoder == "" {
		return nil
	}
	return []string{"-c:a", s.Encoder}
}

// Select picks one index per table in the order bitrate, channels, sample
// rate, bit depth.
func (s *AudioSet) Select(bitrate, channels, sampleRate, bitDepth int) (Selection, error) {
	var sel Selection
	var err error
	picks := []struct {
		t *Table
		i int
	}{{s.Bitrate, bitrate}, {s.Channels, channels}, {s.SampleRate, sampleRate}, {s.BitDepth, bitDepth}}
	for _, p := range picks {
		if sel, err = sel.Add(p.t, p.i); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

var audioAliases = map[string]string{
	"pcm":        "wav",
	"pcm_s16le":  "wav",
	"libmp3lame": "mp3",
	"lame":       "mp3",
	"ogg":        "vorbis",
	"libvorbis":  "vorbis",
	"libopus":    "opus",
	"m4a":        "aac",
	"eac3":       "ac3",
}

var audioSets = map[string]*AudioSet{}

// AudioTables returns the tables for an audio codec family. Names are case
// insensitive and common encoder aliases are accepted.
func AudioTables(codec string) (*AudioSet, error) {
	name := normalize(codec)
	if alias, ok := audioAliases[name]; ok {
		name = alias
	}
	set, ok := audioSets[name]
	if !ok {
		return nil, vmerrors.Validation("unknown audio codec %q", codec)
	}
	cp := *set
	return &cp, nil
}

// AudioCodecs lists the supported audio family names, sorted.
func AudioCodecs() []string {
	names := make([]string, 0, len(audioSets))
	for name := range audioSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func bitrateTable(name string, kbits ...int) *Table {
	opts := []Option{auto}
	for _, k := range kbits {
		opts = append(opts, Option{Label: fmt.Sprintf("%d kbit/s", k), Flag: fmt.Sprintf("-b:a %dk", k)})
	}
	return newTable(name+" bitrate", opts...)
}

func qualityTable(name, label string, from, to int) *Table {
	opts := []Option{auto}
	for q := from; q <= to; q++ {
		opts = append(opts, Option{Label: fmt.Sprintf("%s %d", label, q), Flag: fmt.Sprintf("-q:a %d", q)})
	}
	return newTable(name+" quality", opts...)
}

func channelsTable(name string, surround bool) *Table {
	opts := []Option{
		auto,
		{Label: "Mono", Flag: "-ac 1"},
		{Label: "Stereo", Flag: "-ac 2"},
	}
	if surround {
		opts = append(opts, Option{Label: "5.1", Flag: "-ac 6"})
	}
	return newTable(name+" channels", opts...)
}

func sampleRateTable(name string, rates ...int) *Table {
	opts := []Option{auto}
	for _, r := range rates {
		opts = append(opts, Option{Label: fmt.Sprintf("%d Hz", r), Flag: fmt.Sprintf("-ar %d", r)})
	}
	return newTable(name+" sample rate", opts...)
}

func autoOnly(name string) *Table {
	return newTable(name, auto)
}

var commonRates = []int{22050, 32000, 44100, 48000, 88200, 96000}

func init() {
	audioSets["wav"] = &AudioSet{
		Codec:      "wav",
		Extension:  "wav",
		Bitrate:    autoOnly("wav bitrate"),
		Channels:   channelsTable("wav", true),
		SampleRate: sampleRateTable("wav", commonRates...),
		BitDepth: newTable("wav bit depth",
			Option{Label: "16 bit", Flag: "-c:a pcm_s16le"},
			Option{Label: "24 bit", Flag: "-c:a pcm_s24le"},
			Option{Label: "32 bit", Flag: "-c:a pcm_s32le"},
			Option{Label: "32 bit float", Flag: "-c:a pcm_f32le"},
		),
	}

	flacLevels := []Option{auto}
	for lvl := 0; lvl <= 12; lvl++ {
		label := fmt.Sprintf("Compression level %d", lvl)
		switch lvl {
		case 0:
			label += " (fastest)"
		case 5:
			label += " (default)"
		case 12:
			label += " (smallest)"
		}
		flacLevels = append(flacLevels, Option{Label: label, Flag: fmt.Sprintf("-compression_level %d", lvl)})
	}
	audioSets["flac"] = &AudioSet{
		Codec:      "flac",
		Encoder:    "flac",
		Extension:  "flac",
		Bitrate:    newTable("flac compression", flacLevels...),
		Channels:   channelsTable("flac", true),
		SampleRate: sampleRateTable("flac", commonRates...),
		BitDepth: newTable("flac bit depth", auto,
			Option{Label: "16 bit", Flag: "-sample_fmt s16"},
			Option{Label: "24 bit", Flag: "-sample_fmt s32"},
		),
	}

	audioSets["aac"] = &AudioSet{
		Codec:      "aac",
		Encoder:    "aac",
		Extension:  "m4a",
		Bitrate:    bitrateTable("aac", 64, 96, 128, 160, 192, 256, 320),
		Channels:   channelsTable("aac", true),
		SampleRate: sampleRateTable("aac", 22050, 32000, 44100, 48000, 96000),
		BitDepth:   autoOnly("aac bit depth"),
	}

	audioSets["alac"] = &AudioSet{
		Codec:      "alac",
		Encoder:    "alac",
		Extension:  "m4a",
		Bitrate:    autoOnly("alac bitrate"),
		Channels:   channelsTable("alac", true),
		SampleRate: sampleRateTable("alac", commonRates...),
		BitDepth: newTable("alac bit depth", auto,
			Option{Label: "16 bit", Flag: "-sample_fmt s16p"},
			Option{Label: "24 bit", Flag: "-sample_fmt s32p"},
		),
	}

	audioSets["ac3"] = &AudioSet{
		Codec:      "ac3",
		Encoder:    "ac3",
		Extension:  "ac3",
		Bitrate:    bitrateTable("ac3", 192, 224, 256, 384, 448, 640),
		Channels:   channelsTable("ac3", true),
		SampleRate: sampleRateTable("ac3", 32000, 44100, 48000),
		BitDepth:   autoOnly("ac3 bit depth"),
	}

	audioSets["vorbis"] = &AudioSet{
		Codec:      "vorbis",
		Encoder:    "libvorbis",
		Extension:  "ogg",
		Bitrate:    qualityTable("vorbis", "Quality", 0, 10),
		Channels:   channelsTable("vorbis", true),
		SampleRate: sampleRateTable("vorbis", commonRates...),
		BitDepth:   autoOnly("vorbis bit depth"),
	}

	mp3 := []Option{auto}
	for q := 0; q <= 9; q++ {
		mp3 = append(mp3, Option{Label: fmt.Sprintf("VBR V%d", q), Flag: fmt.Sprintf("-q:a %d", q)})
	}
	for _, k := range []int{128, 160, 192, 256, 320} {
		mp3 = append(mp3, Option{Label: fmt.Sprintf("CBR %d kbit/s", k), Flag: fmt.Sprintf("-b:a %dk", k)})
	}
	audioSets["mp3"] = &AudioSet{
		Codec:      "mp3",
		Encoder:    "libmp3lame",
		Extension:  "mp3",
		Bitrate:    newTable("mp3 bitrate", mp3...),
		Channels:   channelsTable("mp3", false),
		SampleRate: sampleRateTable("mp3", 22050, 32000, 44100, 48000),
		BitDepth:   autoOnly("mp3 bit depth"),
	}

	audioSets["opus"] = &AudioSet{
		Codec:      "opus",
		Encoder:    "libopus",
		Extension:  "opus",
		Bitrate:    bitrateTable("opus", 32, 64, 96, 128, 160, 192, 256),
		Channels:   channelsTable("opus", true),
		SampleRate: sampleRateTable("opus", 8000, 12000, 16000, 24000, 48000),
		BitDepth:   autoOnly("opus bit depth"),
	}
}
