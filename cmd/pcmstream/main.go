package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/cmd/pcmstream/config"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/internal/utils"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/audiodevice/device"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/quantizer"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/sink"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/voiceclient"
	"github.com/spf13/viper"
)

const (
	connectTimeout  = 10 * time.Second
	responseTimeout = 30 * time.Second
)

func main() {
	var configFilePath string
	flag.StringVar(&configFilePath, "configFilePath", "config.yaml", "The path to the pcmstream config file")
	flag.Parse()

	// --------------------------------------------------------------------------------
	// Config and logging

	if err := config.LoadConfig(configFilePath); err != nil {
		slog.Error("could not load config", "configFilePath", configFilePath, "err", err)
		os.Exit(1)
	}

	logFilePointer, err := utils.ConfigureDefaultLogger(
		viper.GetString("loglevel"),
		viper.GetString("logfile"),
		slog.HandlerOptions{},
	)
	if err != nil {
		slog.Error("could not configure logger", "err", err)
		os.Exit(1)
	}
	if logFilePointer != nil {
		defer logFilePointer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		slog.Error("stream ended with error", "err", err)
		if logFilePointer != nil {
			logFilePointer.Close()
		}
		os.Exit(1)
	}
}

// Stream the configured WAV file through the quantizer to the configured output.
func run(ctx context.Context) error {
	quantizerConfig, err := config.QuantizerConfig()
	if err != nil {
		return err
	}
	encdec, err := config.EncoderDecoder()
	if err != nil {
		return err
	}
	sampleRate := viper.GetInt("samplerate")
	queueSize := viper.GetInt("queuesize")

	// --------------------------------------------------------------------------------
	// Source

	inputDevice, err := device.NewFileAudioInputDevice(
		viper.GetString("wavfile"),
		quantizerConfig.FrameSize,
		viper.GetBool("paced"),
	)
	if err != nil {
		return err
	}
	properties := inputDevice.GetDeviceProperties()
	if properties.SampleRate != sampleRate {
		inputDevice.Close()
		return fmt.Errorf("input sample rate %d does not match configured %d", properties.SampleRate, sampleRate)
	}

	// --------------------------------------------------------------------------------
	// Sink

	pool := frame.NewPool(quantizerConfig.FrameSize, quantizerConfig.PoolSize+queueSize)

	var client *voiceclient.Client
	var responses *responseLog
	var output sink.Sink
	switch viper.GetString("output") {
	case "ws":
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()

		client, err = voiceclient.Dial(connectCtx, viper.GetString("endpoint"), viper.GetString("userid"), nil)
		if err != nil {
			inputDevice.Close()
			return err
		}
		defer client.Close()

		format, err := client.WaitForAudioFormat(connectCtx)
		if err != nil {
			inputDevice.Close()
			return err
		}
		if format.SampleRate != sampleRate || format.Channels != 1 {
			inputDevice.Close()
			return fmt.Errorf("server expects %d Hz with %d channels, streaming %d Hz mono",
				format.SampleRate, format.Channels, sampleRate)
		}
		// Replies can arrive while audio is still streaming.
		responses = logResponses(client)
		if err := client.SendControl(voiceclient.ControlStartSession); err != nil {
			inputDevice.Close()
			return err
		}
		output = client.Sink(encdec, queueSize, pool)
	case "wav":
		output, err = sink.NewWAVSink(viper.GetString("recordfile"), sampleRate, queueSize, pool)
		if err != nil {
			inputDevice.Close()
			return err
		}
	}

	// Keep a local recording of what was sent alongside the backend stream.
	if recordFile := viper.GetString("recordfile"); recordFile != "" && client != nil {
		recorder, err := sink.NewWAVSink(recordFile, sampleRate, queueSize, pool)
		if err != nil {
			inputDevice.Close()
			output.Close()
			return err
		}
		output = sink.NewTee(pool, output, recorder)
	}

	// --------------------------------------------------------------------------------
	// Pipeline

	q, err := quantizer.New(output, quantizerConfig, quantizer.WithPool(pool))
	if err != nil {
		inputDevice.Close()
		output.Close()
		return err
	}
	quantizerDevice, err := device.NewQuantizerDevice(q, properties)
	if err != nil {
		inputDevice.Close()
		output.Close()
		return err
	}

	playCtx, stopPlaying := context.WithCancel(ctx)
	defer stopPlaying()

	quantizerDevice.SetStream(inputDevice.GetStream())
	inputDevice.Play(playCtx)

	select {
	case <-quantizerDevice.Failed():
		slog.Error("sink became unavailable, stopping", "err", quantizerDevice.Err())
		stopPlaying()
	case <-ctx.Done():
	case <-waitForClose(quantizerDevice):
	}
	quantizerDevice.WaitForClose()

	stats := q.Stats()
	slog.Info(
		"stream finished",
		"framesDelivered", stats.FramesDelivered,
		"framesSkipped", stats.FramesSkipped,
		"samplesClipped", stats.SamplesClipped,
		"invalidSamples", stats.InvalidSamples,
		"poolAllocations", stats.PoolAllocations,
	)

	streamErr := errors.Join(inputDevice.Err(), quantizerDevice.Err(), output.Close())
	if client == nil || streamErr != nil {
		return streamErr
	}

	// --------------------------------------------------------------------------------
	// Response

	if err := client.SendControl(voiceclient.ControlStopSpeaking); err != nil {
		return err
	}
	responses.wait(ctx, responseTimeout)
	return client.SendControl(voiceclient.ControlEndSession)
}

func waitForClose(d *device.QuantizerDevice) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		d.WaitForClose()
		close(done)
	}()
	return done
}

// Logs the backend's replies for the whole session.
type responseLog struct {
	final     chan struct{}
	finalOnce sync.Once
	done      chan struct{}
}

// Start logging events from client until its events channel closes.
func logResponses(client *voiceclient.Client) *responseLog {
	r := &responseLog{
		final: make(chan struct{}),
		done:  make(chan struct{}),
	}
	go func() {
		defer close(r.done)
		var audioBytes int
		for event := range client.Events() {
			switch event.Type {
			case voiceclient.EventTextDelta:
				slog.Info("response", "text", event.Text, "final", event.IsFinal)
				if event.IsFinal {
					slog.Info("response complete", "audioBytes", audioBytes)
					r.finalOnce.Do(func() { close(r.final) })
				}
			case voiceclient.EventAudio:
				audioBytes += len(event.Audio)
			}
		}
		slog.Info("server closed the connection", "droppedAudio", client.DroppedAudio())
	}()
	return r
}

// Wait until a final text delta has been seen, the connection ends or timeout passes.
func (r *responseLog) wait(ctx context.Context, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.final:
	case <-r.done:
	case <-timer.C:
		slog.Warn("timed out waiting for response", "timeout", timeout)
	case <-ctx.Done():
	}
}
