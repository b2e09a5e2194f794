package config

const (
	defaultOutputRoot        = "~/Music/YT-Rips"
	defaultLogDir            = "~/.local/share/wavedeck/logs"
	defaultStateDir          = "~/.local/share/wavedeck"
	defaultAPIBind           = "127.0.0.1:7420"
	defaultYtDlpBinary       = "yt-dlp"
	defaultAcquireTimeout    = 900
	defaultFormat            = "mp3"
	defaultFFmpegBinary      = "ffmpeg"
	defaultBitrate           = "192k"
	defaultSampleRate        = 44100
	defaultChannels          = 2
	defaultDemucsBinary      = "demucs"
	defaultDemucsModel       = "htdemucs"
	defaultDemucsDevice      = DeviceAuto
	defaultStemKey           = StemKeyShort
	defaultShifter           = ShifterWSOLA
	defaultFrameSize         = 2048
	defaultHopSize           = 512
	defaultScale             = "C major"
	defaultTailPolicy        = TailPassthrough
	defaultPitchStrength     = 5.0
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultSeparationTimeout = 3600
	defaultNtfyTimeout       = 10
)

// Separation device choices.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

// Stem directory key strategies.
const (
	StemKeyShort     = "short"
	StemKeyVersioned = "versioned"
)

// Pitch shifter backends.
const (
	ShifterWSOLA    = "wsola"
	ShifterSpectral = "spectral"
)

// Tail policies for autotune correction.
const (
	TailPassthrough = "passthrough"
	TailDrop        = "drop"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputRoot: defaultOutputRoot,
			LogDir:     defaultLogDir,
			StateDir:   defaultStateDir,
		},
		API: API{
			Bind: defaultAPIBind,
		},
		Acquire: Acquire{
			YtDlpBinary:    defaultYtDlpBinary,
			TimeoutSeconds: defaultAcquireTimeout,
			DefaultFormat:  defaultFormat,
		},
		Transcode: Transcode{
			FFmpegBinary: defaultFFmpegBinary,
			Bitrate:      defaultBitrate,
			SampleRate:   defaultSampleRate,
			Channels:     defaultChannels,
		},
		Separation: Separation{
			DemucsBinary:   defaultDemucsBinary,
			Model:          defaultDemucsModel,
			Device:         defaultDemucsDevice,
			Key:            defaultStemKey,
			TimeoutSeconds: defaultSeparationTimeout,
		},
		Pitch: Pitch{
			Enabled:         true,
			Shifter:         defaultShifter,
			FrameSize:       defaultFrameSize,
			HopSize:         defaultHopSize,
			Scale:           defaultScale,
			Tail:            defaultTailPolicy,
			DefaultStrength: defaultPitchStrength,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
