package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoFilters_Empty(t *testing.T) {
	var f VideoFilters
	assert.True(t, f.IsEmpty())
	assert.Equal(t, "", f.Chain())
	assert.Nil(t, f.Args())
}

func TestVideoFilters_FixedOrder(t *testing.T) {
	// Set in reverse order; the chain must not care.
	f := VideoFilters{
		Stabilization: "vidstabtransform=input=t.trf",
		Color:         Eq{Contrast: 1.2}.Fragment(),
		Orientation:   Rotate(OrientationCW90),
		SetSAR:        SetSAR(1, 1),
		SetDAR:        SetDAR(16, 9),
		Scale:         Scale(1280, 0),
		Crop:          Crop(1920, 800, -1, -1),
		Denoise:       Hqdn3d(1),
		Interlace:     Interlace(true),
		Deinterlace:   Yadif(YadifSendFrame, false),
	}

	want := "yadif=mode=0:parity=-1:deint=0," +
		"interlace=scan=tff:lowpass=linear," +
		"hqdn3d=2:1:2:3," +
		"crop=1920:800:(in_w-out_w)/2:(in_h-out_h)/2," +
		"scale=1280:-2," +
		"setdar=16/9," +
		"setsar=1/1," +
		"transpose=1," +
		"eq=contrast=1.2," +
		"vidstabtransform=input=t.trf"
	assert.Equal(t, want, f.Chain())
	assert.Equal(t, []string{"-vf", want}, f.Args())
	assert.Len(t, f.Fragments(), 10)
}

func TestVideoFilters_SkipsBlankFragments(t *testing.T) {
	f := VideoFilters{Scale: "scale=640:360", Color: "  ", Orientation: Rotate(OrientationNone)}
	assert.Equal(t, "scale=640:360", f.Chain())
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "", Scale(0, 0))
	assert.Equal(t, "scale=-2:720", Scale(0, 720))
	assert.Equal(t, "", Crop(0, 100, 0, 0))
	assert.Equal(t, "crop=640:480:10:20", Crop(640, 480, 10, 20))
	assert.Equal(t, "", SetDAR(0, 9))
	assert.Equal(t, "transpose=2,transpose=2", Rotate(Orientation180))
	assert.Equal(t, "hflip", Rotate(OrientationFlipHoriz))
	assert.Equal(t, "yadif=mode=1:parity=-1:deint=1", Yadif(YadifSendField, true))
	assert.Equal(t, "interlace=scan=bff:lowpass=linear", Interlace(false))
	assert.Equal(t, "", Hqdn3d(0))
	assert.Equal(t, "hqdn3d=8:6:12:9", Hqdn3d(3))
	assert.Equal(t, "nlmeans=s=3.5", Nlmeans(3.5))
	assert.Equal(t, "", Nlmeans(0))
}

func TestParseOrientation(t *testing.T) {
	o, err := ParseOrientation("CW90")
	require.NoError(t, err)
	assert.Equal(t, OrientationCW90, o)

	o, err = ParseOrientation("")
	require.NoError(t, err)
	assert.Equal(t, OrientationNone, o)

	_, err = ParseOrientation("sideways")
	assert.Error(t, err)
}

func TestEq(t *testing.T) {
	assert.Equal(t, "", Eq{}.Fragment())
	assert.Equal(t, "", Eq{Contrast: 1, Saturation: 1, Gamma: 1}.Fragment())
	assert.Equal(t, "eq=brightness=-0.1:saturation=1.5:gamma=0.9", Eq{Brightness: -0.1, Saturation: 1.5, Gamma: 0.9}.Fragment())
}

func TestEscapeValue(t *testing.T) {
	assert.Equal(t, `C\:\\clips\\a.trf`, EscapeValue(`C:\clips\a.trf`))
	assert.Equal(t, `it\'s,here`, EscapeValue(`it's,here`))
}

func TestGraphValue(t *testing.T) {
	// the graph parser turns \\ into \ and the option parser then sees \:
	assert.Equal(t, `C\\:\\\\clips\\\\a.trf`, GraphValue(`C:\clips\a.trf`))
	assert.Equal(t, `it\\\'s\,here`, GraphValue(`it's,here`))
	assert.Equal(t, `/tmp/clip.trf`, GraphValue(`/tmp/clip.trf`))
	assert.Equal(t, `a\[1\]\;b`, EscapeGraph(`a[1];b`))
}

func TestVidstab_WindowsPath(t *testing.T) {
	v := DefaultVidstab(`C:\tmp\clip.trf`)
	assert.Contains(t, v.DetectFragment(), `result=C\\:\\\\tmp\\\\clip.trf`)
	assert.Contains(t, v.TransformFragment(), `input=C\\:\\\\tmp\\\\clip.trf:smoothing=`)
}

func TestParseCrop(t *testing.T) {
	frag, err := ParseCrop("1280:720")
	require.NoError(t, err)
	assert.Equal(t, "crop=1280:720:(in_w-out_w)/2:(in_h-out_h)/2", frag)

	frag, err = ParseCrop("640:480:10:20")
	require.NoError(t, err)
	assert.Equal(t, "crop=640:480:10:20", frag)

	frag, err = ParseCrop("")
	require.NoError(t, err)
	assert.Empty(t, frag)

	for _, bad := range []string{"1280", "1280:720:10", "w:h", "0:720"} {
		_, err := ParseCrop(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRatio(t *testing.T) {
	num, den, err := ParseRatio("16:9")
	require.NoError(t, err)
	assert.Equal(t, []int{16, 9}, []int{num, den})

	num, den, err = ParseRatio("1/1")
	require.NoError(t, err)
	assert.Equal(t, "setsar=1/1", SetSAR(num, den))

	for _, bad := range []string{"", "16", "16:0", "a:b"} {
		_, _, err := ParseRatio(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseInterlace(t *testing.T) {
	frag, err := ParseInterlace("TFF")
	require.NoError(t, err)
	assert.Equal(t, "interlace=scan=tff:lowpass=linear", frag)

	frag, err = ParseInterlace("")
	require.NoError(t, err)
	assert.Empty(t, frag)

	_, err = ParseInterlace("progressive")
	assert.Error(t, err)
}

func TestParseEq(t *testing.T) {
	e, err := ParseEq("contrast=1.2:gamma=0.9")
	require.NoError(t, err)
	assert.Equal(t, "eq=contrast=1.2:gamma=0.9", e.Fragment())

	_, err = ParseEq("hue=3")
	assert.Error(t, err)
	_, err = ParseEq("contrast")
	assert.Error(t, err)
	_, err = ParseEq("contrast=high")
	assert.Error(t, err)
}

func TestVidstab(t *testing.T) {
	v := DefaultVidstab("/tmp/clip.trf")
	require.NoError(t, v.Validate())

	assert.Equal(t,
		"vidstabdetect=shakiness=5:accuracy=15:stepsize=6:mincontrast=0.3:tripod=0:result=/tmp/clip.trf",
		v.DetectFragment())
	assert.Equal(t,
		"vidstabtransform=input=/tmp/clip.trf:smoothing=10:zoom=0:optzoom=1:tripod=0,unsharp=5:5:0.8:3:3:0.4",
		v.TransformFragment())

	v.Unsharp = false
	v.Tripod = true
	assert.Equal(t, "vidstabtransform=input=/tmp/clip.trf:smoothing=10:zoom=0:optzoom=1:tripod=1", v.TransformFragment())
}

func TestVidstab_Validate(t *testing.T) {
	tests := map[string]func(*Vidstab){
		"no trf":        func(v *Vidstab) { v.TRF = "" },
		"shakiness":     func(v *Vidstab) { v.Shakiness = 11 },
		"accuracy":      func(v *Vidstab) { v.Accuracy = 0 },
		"stepsize":      func(v *Vidstab) { v.StepSize = 64 },
		"mincontrast":   func(v *Vidstab) { v.MinContrast = 2 },
		"neg smoothing": func(v *Vidstab) { v.Smoothing = -1 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			v := DefaultVidstab("a.trf")
			mutate(&v)
			assert.Error(t, v.Validate())
		})
	}
}

func TestAudioFilters(t *testing.T) {
	var f AudioFilters
	assert.Nil(t, f.Args())

	f.Add("highpass=f=80")
	f.Add("  ")
	f.Gain = "volume=3.5dB"
	assert.Equal(t, []string{"-af", "highpass=f=80,volume=3.5dB"}, f.Args())

	f.Loudnorm = "loudnorm=I=-23"
	assert.Equal(t, "highpass=f=80,volume=3.5dB,loudnorm=I=-23", f.Chain())
}
