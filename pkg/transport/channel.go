package transport

import (
	"context"
	"sync"

	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
)

// channelQueueDepth bounds each channel's demux queue; a slow receiver
// backs up here rather than blocking the shared socket reader (§5.3:
// "receiver callbacks MUST be non-blocking... anything heavier MUST hop
// onto the receiver's own queue" — this queue IS that hop).
const channelQueueDepth = 64

// Handler processes one assembled, in-order message for a channel.
type Handler func(payload []byte)

// Demux implements Receiver, fanning Stream.OnMessage out to one bounded
// queue and one dedicated worker goroutine per channel — the teacher's
// one-reader-per-RTCP-sender idiom (bridge.startRTCPReaders), generalized
// from "one queue per track" to "one queue per RP channel".
type Demux struct {
	log *logger.Logger

	mu       sync.RWMutex
	handlers map[Channel]Handler
	queues   map[Channel]chan []byte

	onDisconnect func(error)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDemux creates an empty channel demultiplexer.
func NewDemux(log *logger.Logger) *Demux {
	ctx, cancel := context.WithCancel(context.Background())
	return &Demux{
		log:      log,
		handlers: make(map[Channel]Handler),
		queues:   make(map[Channel]chan []byte),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetOnDisconnect registers the callback invoked when the underlying Stream
// reports a disconnect.
func (d *Demux) SetOnDisconnect(fn func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onDisconnect = fn
}

// Register wires a Handler for channel and starts its worker goroutine.
// Must be called before Stream.Start begins delivering messages.
func (d *Demux) Register(channel Channel, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	queue := make(chan []byte, channelQueueDepth)
	d.handlers[channel] = handler
	d.queues[channel] = queue

	d.wg.Add(1)
	go d.worker(channel, queue, handler)
}

func (d *Demux) worker(channel Channel, queue chan []byte, handler Handler) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case payload, ok := <-queue:
			if !ok {
				return
			}
			handler(payload)
		}
	}
}

// OnMessage implements Receiver: it enqueues onto the channel's queue,
// dropping (and logging) if that channel has no registered handler or its
// queue is full.
func (d *Demux) OnMessage(channel Channel, payload []byte) {
	d.mu.RLock()
	queue, ok := d.queues[channel]
	d.mu.RUnlock()
	if !ok {
		d.log.DebugTransport("message on unregistered channel", "channel", channel)
		return
	}
	select {
	case queue <- payload:
	default:
		d.log.DebugTransport("channel queue full, dropping message", "channel", channel)
	}
}

// OnDisconnect implements Receiver.
func (d *Demux) OnDisconnect(err error) {
	d.mu.RLock()
	fn := d.onDisconnect
	d.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Close stops every worker goroutine; calling it again is harmless. The
// owning Stream's Close should be called first so no more messages arrive.
func (d *Demux) Close() {
	d.cancel()
	d.wg.Wait()
}
