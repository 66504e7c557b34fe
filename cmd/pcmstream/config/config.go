package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/internal/utils"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/encoderdecoder"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/quantizer"
	"github.com/spf13/viper"
)

// Load the config file into viper, on top of the defaults.
//
// A missing config file is not an error, the defaults are used.
// Values that would make the stream unusable are rejected.
func LoadConfig(configFilePath string) error {
	utils.SetViperDefaults()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found", "configFilePath", configFilePath)
		} else {
			slog.Error("error during config read", "err", err)
			return err
		}
	}

	if _, err := QuantizerConfig(); err != nil {
		return err
	}
	if _, err := EncoderDecoder(); err != nil {
		return err
	}
	switch viper.GetString("output") {
	case "ws":
	case "wav":
		if viper.GetString("recordfile") == "" {
			return errors.New("output wav needs a recordfile")
		}
	default:
		return fmt.Errorf("unknown output %q, expected ws or wav", viper.GetString("output"))
	}
	if viper.GetInt("samplerate") <= 0 {
		return fmt.Errorf("samplerate must be positive, got %d", viper.GetInt("samplerate"))
	}
	return nil
}

// The quantizer configuration described by the loaded config.
func QuantizerConfig() (quantizer.Config, error) {
	rounding, err := quantizer.ParseRounding(viper.GetString("rounding"))
	if err != nil {
		return quantizer.Config{}, err
	}
	cfg := quantizer.Config{
		Gain:      viper.GetFloat64("gain"),
		Rounding:  rounding,
		FrameSize: viper.GetInt("framesize"),
		PoolSize:  viper.GetInt("poolsize"),
	}
	return cfg, cfg.Validate()
}

// The wire encoding of streamed frames described by the loaded config.
func EncoderDecoder() (encoderdecoder.EncoderDecoder, error) {
	return encoderdecoder.NewEncoderDecoder(
		encoderdecoder.EncoderDecoderTypeEnum(viper.GetString("encoding")),
	)
}
