package utils

import "github.com/spf13/viper"

// Set the viper defaults for a pcmstream client
// For use in cmd/pcmstream and its tests.
func SetViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("gain", 0.8)
	viper.SetDefault("rounding", "truncate")
	viper.SetDefault("samplerate", 16000)
	viper.SetDefault("framesize", 320)
	viper.SetDefault("poolsize", 16)
	viper.SetDefault("queuesize", 32)
	viper.SetDefault("encoding", "pcm16le")
	viper.SetDefault("paced", true)
	viper.SetDefault("output", "ws")
	viper.SetDefault("endpoint", "ws://localhost:8000/ws/voice/")
	viper.SetDefault("userid", "anonymous")
	viper.SetDefault("wavfile", "")
	viper.SetDefault("recordfile", "")
}
