package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vmerrors "videomass/internal/errors"
)

func TestAudioTables_Aliases(t *testing.T) {
	tests := map[string]string{
		"mp3":        "mp3",
		"LibMP3Lame": "mp3",
		"ogg":        "vorbis",
		"libopus":    "opus",
		"pcm":        "wav",
		" flac ":     "flac",
	}
	for in, want := range tests {
		set, err := AudioTables(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, set.Codec, in)
	}
}

func TestAudioTables_Unknown(t *testing.T) {
	_, err := AudioTables("speex")
	require.Error(t, err)
	assert.True(t, vmerrors.Is(err, vmerrors.ErrValidation))
}

func TestAudioCodecs_All(t *testing.T) {
	assert.Equal(t, []string{"aac", "ac3", "alac", "flac", "mp3", "opus", "vorbis", "wav"}, AudioCodecs())
}

func TestAudioSet_Select(t *testing.T) {
	set, err := AudioTables("mp3")
	require.NoError(t, err)

	// index 1 is VBR V0, stereo, 44100 Hz
	sel, err := set.Select(1, 2, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, "-q:a 0 -ac 2 -ar 44100", sel.Flags())
	assert.Equal(t, []string{"-q:a", "0", "-ac", "2", "-ar", "44100"}, sel.Args())
	assert.Equal(t, []string{"VBR V0", "Stereo", "44100 Hz", "Auto"}, sel.Labels())
	assert.Equal(t, []string{"-c:a", "libmp3lame"}, set.CodecArgs())
}

func TestAudioSet_WavBitDepthCarriesEncoder(t *testing.T) {
	set, err := AudioTables("wav")
	require.NoError(t, err)
	assert.Nil(t, set.CodecArgs())

	sel, err := set.Select(0, 0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, "-c:a pcm_s24le", sel.Flags())
}

func TestTable_SelectOutOfRange(t *testing.T) {
	set, err := AudioTables("aac")
	require.NoError(t, err)

	_, err = set.Bitrate.Select(set.Bitrate.Len())
	assert.True(t, vmerrors.Is(err, vmerrors.ErrValidation))
	_, err = set.Bitrate.Select(-1)
	assert.Error(t, err)

	_, err = set.Select(0, 99, 0, 0)
	assert.Error(t, err)
}

func TestTable_IndexZeroIsAuto(t *testing.T) {
	for _, name := range AudioCodecs() {
		set, err := AudioTables(name)
		require.NoError(t, err)
		if name == "wav" {
			continue
		}
		for _, tbl := range []*Table{set.Bitrate, set.Channels, set.SampleRate, set.BitDepth} {
			o, err := tbl.Select(0)
			require.NoError(t, err)
			assert.Empty(t, o.Flag, tbl.Name())
		}
	}
}

func TestTable_FindAndLabels(t *testing.T) {
	set, err := VideoTables("x264")
	require.NoError(t, err)

	idx := set.Preset.Find("SLOW")
	require.Positive(t, idx)
	o, err := set.Preset.Select(idx)
	require.NoError(t, err)
	assert.Equal(t, "-preset slow", o.Flag)
	assert.Equal(t, -1, set.Preset.Find("warp"))

	labels := set.Preset.Labels()
	assert.Equal(t, "Auto", labels[0])
	labels[0] = "mutated"
	assert.Equal(t, "Auto", set.Preset.Labels()[0])
}

func TestTable_OptionsAreCopies(t *testing.T) {
	set, err := VideoTables("x265")
	require.NoError(t, err)

	opts := set.CRF.Options()
	opts[1].Flag = "-crf 99"
	o, err := set.CRF.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "-crf 0", o.Flag)
}

func TestVideoTables(t *testing.T) {
	assert.Equal(t, []string{"av1", "copy", "mpeg4", "vp9", "x264", "x265"}, VideoCodecs())

	set, err := VideoTables("HEVC")
	require.NoError(t, err)
	assert.Equal(t, "x265", set.Codec)
	assert.Equal(t, []string{"-c:v", "libx265"}, set.CodecArgs())

	_, err = VideoTables("theora")
	assert.True(t, vmerrors.Is(err, vmerrors.ErrValidation))
}

func TestVideoSet_Select(t *testing.T) {
	set, err := VideoTables("vp9")
	require.NoError(t, err)

	sel, err := set.Select(VideoIndexes{CRF: set.CRF.Find("31"), PixelFormat: 1})
	require.NoError(t, err)
	assert.Equal(t, "-crf 31 -b:v 0 -pix_fmt yuv420p", sel.Flags())

	_, err = set.Select(VideoIndexes{Level: 1})
	assert.Error(t, err)
}

func TestVideoSet_Copy(t *testing.T) {
	set, err := VideoTables("copy")
	require.NoError(t, err)
	assert.True(t, set.IsCopy())
	assert.Equal(t, 1, set.CRF.Len())
}

func TestVideoSet_FilterTables(t *testing.T) {
	set, err := VideoTables("x264")
	require.NoError(t, err)

	o, err := set.Deinterlace.Select(1)
	require.NoError(t, err)
	assert.Equal(t, "yadif=mode=send_frame:parity=auto:deint=all", o.Flag)

	o, err = set.Denoise.Select(0)
	require.NoError(t, err)
	assert.Empty(t, o.Flag)
}
