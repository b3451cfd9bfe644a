package audio

import (
	"videomass/command"
	"videomass/ffmpeg"
	"videomass/models"
	"videomass/params"
)

// AudioCommand extends the base Command interface with audio-specific operations.
type AudioCommand interface {
	command.Command
	SetCodec(codec string) AudioCommand
	SetBitrate(bitrate string) AudioCommand
	SetSampleRate(rate int) AudioCommand
	SetChannels(channels int) AudioCommand
	SetFilters(filter string) AudioCommand
	SetGain(gain ffmpeg.Gain) AudioCommand
	SetTimeRange(r command.TimeRange) AudioCommand
	SetParams(set *params.AudioSet, sel params.Selection) AudioCommand
	SetRunner(r *ffmpeg.Runner) AudioCommand
	SetProgressCallback(callback models.ProgressCallback) AudioCommand
}
