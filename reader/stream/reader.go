// Package stream consumes live customer activity events over a websocket
// feed. Between scheduled population scans this is the only source of fresh
// signals, so the reader reconnects aggressively and never gives up on its
// own.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	appconfig "churnflow/config"
	"churnflow/internal/channel"
	"churnflow/internal/metrics"
	"churnflow/logger"
	"churnflow/models"
)

const (
	pingInterval   = 20 * time.Second
	reconnectDelay = 5 * time.Second
	writeDeadline  = 5 * time.Second
)

// subscribeRequest asks the activity feed to push events for the given
// channels. The feed mirrors the CRM webhook topics.
type subscribeRequest struct {
	Op       string   `json:"op"`
	Channels []string `json:"channels"`
}

type Reader struct {
	config   *appconfig.Config
	channels *channel.Channels
	ctx      context.Context
	wg       *sync.WaitGroup
	mu       sync.RWMutex
	running  bool
	log      *logger.Log
}

func NewReader(cfg *appconfig.Config, ch *channel.Channels) *Reader {
	return &Reader{
		config:   cfg,
		channels: ch,
		wg:       &sync.WaitGroup{},
		log:      logger.GetLogger(),
	}
}

func (r *Reader) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("stream reader already running")
	}
	r.running = true
	r.ctx = ctx
	r.mu.Unlock()

	log := r.log.WithComponent("activity_stream_reader").WithFields(logger.Fields{"operation": "start"})

	streamCfg := r.config.Source.Stream
	if !streamCfg.Enabled {
		log.Warn("activity stream source is disabled")
		return fmt.Errorf("activity stream source is disabled")
	}
	if streamCfg.URL == "" {
		return fmt.Errorf("activity stream source has no url configured")
	}

	log.WithFields(logger.Fields{"url": streamCfg.URL}).Info("starting activity stream reader")

	r.wg.Add(1)
	go r.connectionLoop(streamCfg)

	log.Info("activity stream reader started successfully")
	return nil
}

func (r *Reader) Stop() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()

	r.log.WithComponent("activity_stream_reader").Info("stopping activity stream reader")
	r.wg.Wait()
	r.log.WithComponent("activity_stream_reader").Info("activity stream reader stopped")
}

// connectionLoop dials, subscribes and reads until the connection drops, then
// waits and reconnects. Only context cancellation ends the loop.
func (r *Reader) connectionLoop(streamCfg appconfig.StreamSourceConfig) {
	defer r.wg.Done()

	log := r.log.WithComponent("activity_stream_reader")

RECONNECT:
	for {
		select {
		case <-r.ctx.Done():
			log.Info("reader stopped due to context cancellation")
			return
		default:
		}

		dialer := websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   streamCfg.ReadBufferBytes,
		}

		conn, _, err := dialer.DialContext(r.ctx, streamCfg.URL, nil)
		if err != nil {
			logger.IncrementRetryCount()
			log.WithError(err).WithFields(logger.Fields{"url": streamCfg.URL}).Warn("websocket dial failed, retrying")
			if !r.sleep(reconnectDelay) {
				return
			}
			continue
		}

		log.WithFields(logger.Fields{"url": streamCfg.URL}).Info("websocket connected")

		if err := r.subscribe(conn); err != nil {
			log.WithError(err).Warn("subscribe failed, reconnecting")
			conn.Close()
			if !r.sleep(reconnectDelay) {
				return
			}
			continue
		}

		// Keepalive pings; the feed drops idle connections.
		pingCtx, cancelPing := context.WithCancel(r.ctx)
		go r.pingLoop(pingCtx, conn)

		for {
			select {
			case <-r.ctx.Done():
				cancelPing()
				conn.Close()
				log.Info("reader stopped due to context cancellation")
				return
			default:
			}

			_, message, err := conn.ReadMessage()
			if err != nil {
				cancelPing()
				conn.Close()
				if r.ctx.Err() != nil {
					return
				}
				log.WithError(err).Warn("websocket read failed, reconnecting")
				if !r.sleep(reconnectDelay) {
					return
				}
				continue RECONNECT
			}

			r.processMessage(message)
		}
	}
}

func (r *Reader) subscribe(conn *websocket.Conn) error {
	req := subscribeRequest{
		Op:       "subscribe",
		Channels: []string{"activity"},
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteJSON(req)
}

func (r *Reader) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// processMessage validates the frame as an activity event and forwards it to
// the sample channel. Control frames from the feed (subscription acks, pongs
// encoded as text) carry no event type and are ignored.
func (r *Reader) processMessage(message []byte) {
	log := r.log.WithComponent("activity_stream_reader")

	var event models.ActivityEvent
	if err := json.Unmarshal(message, &event); err != nil {
		metrics.IncrementScanError("stream")
		log.WithError(err).Warn("failed to decode activity event")
		return
	}
	if event.Type == "" {
		return
	}
	if event.Customer.CustomerID == "" {
		metrics.IncrementScanError("stream")
		log.WithFields(logger.Fields{"event_type": event.Type}).Warn("activity event missing customer id")
		return
	}

	rawData := models.RawSampleMessage{
		Source:      "stream",
		Segment:     "live",
		Data:        message,
		Timestamp:   time.Now().UTC(),
		MessageType: models.MessageTypeActivity,
	}

	if r.channels.SendSample(r.ctx, rawData) {
		logger.IncrementActivityRead(len(message))
	} else if r.ctx.Err() == nil {
		metrics.EmitDropMetric(r.log, metrics.DropMetricSampleRaw, "stream", rawData.Segment, "activity_read")
		log.Warn("sample channel is full, dropping activity event")
	}
}

func (r *Reader) sleep(d time.Duration) bool {
	select {
	case <-r.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
