// Package voiceclient connects to a voice backend over a websocket and
// streams quantized microphone audio to it.
//
// Binary messages carry little-endian PCM16 audio; text messages carry JSON
// control messages tagged by a "type" field.
package voiceclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/encoderdecoder"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/frame"
	"github.com/Honorable-Knights-of-the-Roundtable/pcmstream/pkg/sink"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeWait        = 5 * time.Second
	eventBufferSize  = 64
)

var (
	errClientClosed = errors.New("voice client closed")
)

// A connection to the voice backend.
//
// All writes go through WriteMessage, which serialises them, so the audio
// sink and control messages can share the connection.
type Client struct {
	logger *slog.Logger
	uuid   uuid.UUID

	conn    *websocket.Conn
	writeMu sync.Mutex

	events       chan Event
	droppedAudio atomic.Int64

	formatOnce  sync.Once
	formatReady chan struct{}
	format      AudioFormat

	closing      chan struct{}
	readerDone   chan struct{}
	shutdownOnce sync.Once
}

// Dial the voice backend at endpoint, identifying as userID.
// userID is sent as the user_id query parameter; an empty userID is sent as "anonymous".
//
// If no logger is given, slog.Default() is used.
func Dial(ctx context.Context, endpoint string, userID string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	uuid := uuid.New()
	logger = logger.With("voice client uuid", uuid)

	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	if userID == "" {
		userID = "anonymous"
	}
	query := u.Query()
	query.Set("user_id", userID)
	u.RawQuery = query.Encode()

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		logger.Error("could not connect to voice backend", "endpoint", u.String(), "err", err)
		return nil, fmt.Errorf("failed to connect to voice backend: %w", err)
	}
	logger.Info("connected to voice backend", "endpoint", u.String())

	c := &Client{
		logger:      logger,
		uuid:        uuid,
		conn:        conn,
		events:      make(chan Event, eventBufferSize),
		formatReady: make(chan struct{}),
		closing:     make(chan struct{}),
		readerDone:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.readerDone)
	defer close(c.events)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read loop ended", "err", err)
			}
			return
		}

		var event Event
		switch messageType {
		case websocket.BinaryMessage:
			event = Event{Type: EventAudio, Audio: data}
		case websocket.TextMessage:
			event, err = decodeEvent(data)
			if err != nil {
				c.logger.Warn("could not decode server message", "err", err, "message", string(data))
				continue
			}
		default:
			continue
		}

		if event.Type == EventAudioFormat {
			c.formatOnce.Do(func() {
				c.format = AudioFormat{SampleRate: event.SampleRate, Channels: event.Channels}
				close(c.formatReady)
			})
		}

		if event.Type == EventAudio {
			select {
			case c.events <- event:
			default:
				c.droppedAudio.Add(1)
			}
			continue
		}
		// Text and format events are never dropped: wait for the reader.
		select {
		case c.events <- event:
		case <-c.closing:
			return
		}
	}
}

// Events from the server, in arrival order.
// The channel is closed when the connection ends.
//
// Binary audio is dropped when the reader falls behind; any other event
// holds up the connection until it is read, so Events should be drained
// for the whole session.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Binary audio messages dropped because Events was not read fast enough.
func (c *Client) DroppedAudio() int64 {
	return c.droppedAudio.Load()
}

// Wait for the server to announce the audio format it expects.
func (c *Client) WaitForAudioFormat(ctx context.Context) (AudioFormat, error) {
	select {
	case <-c.formatReady:
		return c.format, nil
	case <-c.readerDone:
		return AudioFormat{}, errClientClosed
	case <-ctx.Done():
		return AudioFormat{}, ctx.Err()
	}
}

// Write one websocket message. Safe for concurrent use.
func (c *Client) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(messageType, data)
}

func (c *Client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.WriteMessage(websocket.TextMessage, data)
}

// Send a control message such as ControlStartSession.
func (c *Client) SendControl(control ControlType) error {
	c.logger.Debug("sending control message", "type", control)
	return c.sendJSON(controlMessage{Type: control})
}

// Send a transcript of what the user said, for clients doing speech-to-text locally.
func (c *Client) SendTranscript(text string) error {
	return c.sendJSON(controlMessage{Type: ControlUserTranscript, Text: text})
}

// Create a Sink streaming quantized frames, encoded by encdec, to the
// backend on this connection. Closing the sink does not close the client.
func (c *Client) Sink(encdec encoderdecoder.EncoderDecoder, queueSize int, pool *frame.Pool) *sink.AsyncSink {
	return sink.NewWebSocketSink(c, encdec, queueSize, pool)
}

// Send a close frame, close the connection and wait for the reader to exit.
func (c *Client) Close() error {
	var err error
	c.shutdownOnce.Do(func() {
		close(c.closing)
		c.writeMu.Lock()
		closeMessage := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		writeErr := c.conn.WriteControl(websocket.CloseMessage, closeMessage, time.Now().Add(writeWait))
		c.writeMu.Unlock()

		err = errors.Join(writeErr, c.conn.Close())
		<-c.readerDone
		c.logger.Info("voice client closed")
	})
	return err
}
