package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const formatsOutput = `File formats:
 D. = Demuxing supported
 .E = Muxing supported
 --
 D  3dostr          3DO STR
  E 3g2             3GP2 (3GPP2 file format)
 DE matroska,webm   Matroska / WebM
  E mp4             MP4 (MPEG-4 Part 14)
 DE wav             WAV / WAVE (Waveform Audio)
`

const formatsOutputNew = `Formats:
 D.. = Demuxing supported
 .E. = Muxing supported
 ..d = Is a device
 ---
 D d alsa            ALSA audio output
 DE  flac            raw FLAC
`

func TestParseFormats(t *testing.T) {
	formats := ParseFormats(formatsOutput)
	require.Len(t, formats, 5)

	assert.Equal(t, Format{Name: "3dostr", Description: "3DO STR", Demux: true}, formats[0])
	assert.Equal(t, Format{Name: "3g2", Description: "3GP2 (3GPP2 file format)", Mux: true}, formats[1])
	assert.Equal(t, "matroska,webm", formats[2].Name)
	assert.True(t, formats[2].Demux && formats[2].Mux)

	demux, mux, both := GroupFormats(formats)
	assert.Len(t, demux, 1)
	assert.Len(t, mux, 2)
	assert.Len(t, both, 2)
}

func TestParseFormats_DeviceColumn(t *testing.T) {
	formats := ParseFormats(formatsOutputNew)
	require.Len(t, formats, 2)

	assert.Equal(t, "alsa", formats[0].Name)
	assert.True(t, formats[0].Device)
	assert.True(t, formats[0].Demux)
	assert.False(t, formats[0].Mux)
	assert.Equal(t, "raw FLAC", formats[1].Description)
	assert.False(t, formats[1].Device)
}

const codecsOutput = `Codecs:
 D..... = Decoding supported
 .E.... = Encoding supported
 ..V... = Video codec
 ..A... = Audio codec
 ..S... = Subtitle codec
 ...I.. = Intra frame-only codec
 ....L. = Lossy compression
 .....S = Lossless compression
 -------
 D.VI.S 012v                 Uncompressed 4:2:2 10-bit
 DEV.LS h264                 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (decoders: h264 h264_v4l2m2m) (encoders: libx264 libx264rgb)
 DEA.L. mp3                  MP3 (MPEG audio layer 3) (decoders: mp3float mp3) (encoders: libmp3lame)
 DES... ass                  ASS (Advanced SSA) subtitle
`

func TestParseCodecs(t *testing.T) {
	codecs := ParseCodecs(codecsOutput)
	require.Len(t, codecs, 4)

	assert.Equal(t, Codec{
		Name: "012v", Description: "Uncompressed 4:2:2 10-bit",
		Decode: true, Kind: "video", IntraOnly: true, Lossless: true,
	}, codecs[0])

	h264 := codecs[1]
	assert.Equal(t, "h264", h264.Name)
	assert.True(t, h264.Decode && h264.Encode && h264.Lossy && h264.Lossless)
	assert.Equal(t, "audio", codecs[2].Kind)
	assert.Equal(t, "subtitle", codecs[3].Kind)
}

const encodersOutput = `Encoders:
 V..... = Video
 A..... = Audio
 S..... = Subtitle
 .F.... = Frame-level multithreading
 ..S... = Slice-level multithreading
 ...X.. = Codec is experimental
 ....B. = Supports draw_horiz_band
 .....D = Supports direct rendering method 1
 ------
 V....D libx264              libx264 H.264 / AVC / MPEG-4 AVC / MPEG-4 part 10 (codec h264)
 VFS..D mpeg4                MPEG-4 part 2
 A....D libopus              libopus Opus (codec opus)
 A..X.D opus                 Opus (codec opus)
 S..... srt                  SubRip subtitle
`

func TestParseCoders(t *testing.T) {
	coders := ParseCoders(encodersOutput)
	require.Len(t, coders, 5)

	assert.Equal(t, "libx264", coders[0].Name)
	assert.Equal(t, "video", coders[0].Kind)
	assert.True(t, coders[1].FrameThreads && coders[1].SliceThreads)
	assert.True(t, coders[3].Experimental)

	audio := FilterCoders(coders, "audio")
	require.Len(t, audio, 2)
	assert.Equal(t, "libopus", audio[0].Name)
	assert.Len(t, FilterCoders(coders, "subtitle"), 1)
}

const buildconfOutput = `ffmpeg version 6.1.1 Copyright (c) 2000-2023 the FFmpeg developers
  built with gcc 13.2.1 (GCC) 20230801
  configuration: --prefix=/usr --enable-gpl --enable-libx264 --disable-static
  libavutil      58. 29.100 / 58. 29.100

  configuration:
    --prefix=/usr
    --enable-gpl
    --enable-libx264
    --enable-libvidstab
    --disable-static
    --disable-debug
`

func TestParseBuildConf(t *testing.T) {
	conf := ParseBuildConf(buildconfOutput)

	assert.Equal(t, "6.1.1", conf.Version)
	assert.Equal(t, []string{"gpl", "libx264", "libvidstab"}, conf.Enabled)
	assert.Equal(t, []string{"static", "debug"}, conf.Disabled)
	assert.Equal(t, []string{"--prefix=/usr"}, conf.Others)
	assert.True(t, conf.IsEnabled("libvidstab"))
	assert.False(t, conf.IsEnabled("libfdk-aac"))
}
