package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/rpcrypto"
	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
	"golang.org/x/time/rate"
)

// Receiver is delivered assembled, channel-scoped messages in order. It must
// be non-blocking and do no more than about 1ms of work per call (§5):
// anything heavier hops onto the receiver's own queue.
type Receiver interface {
	OnMessage(channel Channel, payload []byte)
	OnDisconnect(err error)
}

// Stream owns a single connected UDP socket to one console and the pair of
// StreamCiphers (send/receive) that secure it (§4.5).
type Stream struct {
	conn   *net.UDPConn
	send   *rpcrypto.StreamCipher
	recv   *rpcrypto.StreamCipher
	log    *logger.Logger

	retransmit      *RetransmitTracker
	keyframeLimiter *rate.Limiter

	sendTSN atomic.Uint32

	writeMu sync.Mutex // serializes sends so key_pos advance is atomic with the datagram write (§5.2)

	receiver Receiver

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stopOnce sync.Once
}

// NewStream takes an already-connected UDP socket to the console and wires
// the given directional ciphers. The handshake must already have produced
// send/recv keys before this is called; pre-cipher handshake packets go
// through a HandshakeTransport's WritePlain/ReadPlain instead.
func NewStream(conn *net.UDPConn, send, recv *rpcrypto.StreamCipher, receiver Receiver, log *logger.Logger) *Stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream{
		conn:       conn,
		send:       send,
		recv:       recv,
		log:        log,
		receiver:   receiver,
		retransmit: NewRetransmitTracker(),
		// 2s cooldown on keyframe requests (§4.5, §4.9 backpressure rule).
		keyframeLimiter: rate.NewLimiter(rate.Every(2*time.Second), 1),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Start launches the reader, retransmit-timer, and heartbeat loops.
func (s *Stream) Start() {
	s.wg.Add(3)
	go s.readLoop()
	go s.retransmitLoop()
	go s.heartbeatLoop()
}

// Close cancels every loop, waits for them to exit, and closes the socket.
// Idempotent.
func (s *Stream) Close() error {
	var err error
	s.stopOnce.Do(func() {
		s.cancel()
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}

// Send encrypts (if requested) and authenticates payload on the given
// channel, writes the header (which carries the GMAC) followed by the
// payload as one datagram, and advances send
// key_pos by advanceBy. If flags include FlagData a TSN is assigned and the
// packet is tracked for retransmission.
func (s *Stream) Send(channel Channel, flags Flags, payload []byte, advanceBy uint64, encryptPayload bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var tsn uint32
	if flags.Has(FlagData) {
		tsn = s.sendTSN.Add(1)
	}

	header := Header{Channel: channel, Flags: flags, TSN: tsn, KeyPos: s.send.KeyPos()}
	outPayload, gmac, err := s.send.Seal(header.EncodeZeroGMAC(), payload, advanceBy, encryptPayload)
	if err != nil {
		return rperrors.Wrap(rperrors.KindCrypto, rperrors.CodeBadKey, "seal", err)
	}
	header.GMAC = gmac

	datagram := append(header.Encode(), outPayload...)
	if _, err := s.conn.Write(datagram); err != nil {
		return rperrors.Wrap(rperrors.KindTransport, rperrors.CodeIoError, "write datagram", err)
	}

	if flags.Has(FlagData) {
		s.retransmit.Track(tsn, channel, datagram)
	}
	return nil
}

// SendAck writes a DATA_ACK for the given TSN (29-byte fixed payload per
// §4.5/§4.4).
func (s *Stream) SendAck(channel Channel, tsn uint32) error {
	payload := make([]byte, 29)
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	header := Header{Channel: channel, Flags: FlagAck, TSN: tsn, KeyPos: s.send.KeyPos()}
	outPayload, gmac, err := s.send.Seal(header.EncodeZeroGMAC(), payload, AdvanceBy(KindDataAck, 0), channelIsEncrypted(channel))
	if err != nil {
		return rperrors.Wrap(rperrors.KindCrypto, rperrors.CodeBadKey, "seal ack", err)
	}
	header.GMAC = gmac
	_, err = s.conn.Write(append(header.Encode(), outPayload...))
	if err != nil {
		return rperrors.Wrap(rperrors.KindTransport, rperrors.CodeIoError, "write ack", err)
	}
	return nil
}

// RequestKeyframe sends an IDRREQUEST on the control channel, subject to the
// 2-second cooldown (§4.5, §4.9). Returns nil without sending if the
// cooldown has not elapsed.
func (s *Stream) RequestKeyframe(idrRequest []byte) error {
	if !s.keyframeLimiter.Allow() {
		return nil
	}
	return s.Send(ChannelControl, 0, idrRequest, AdvanceBy(KindControlProtobuf, len(idrRequest)), false)
}

func (s *Stream) readLoop() {
	defer s.wg.Done()
	buf := make([]byte, 65535)
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
		n, err := s.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if s.ctx.Err() != nil {
				return
			}
			s.log.DebugTransport("socket read error", "error", err)
			s.receiver.OnDisconnect(rperrors.Wrap(rperrors.KindTransport, rperrors.CodeIoError, "read", err))
			return
		}

		if err := s.handleDatagram(buf[:n]); err != nil {
			s.log.DebugTransport("datagram rejected", "error", err)
		}
	}
}

func (s *Stream) handleDatagram(data []byte) error {
	header, payload, err := DecodeHeader(data)
	if err != nil {
		return err
	}

	plaintext, err := s.recv.Open(header.EncodeZeroGMAC(), payload, header.GMAC, header.KeyPos, uint64(len(payload)), channelIsEncrypted(header.Channel))
	if err != nil {
		return err
	}

	if header.Flags.Has(FlagAck) {
		s.retransmit.Ack(header.TSN)
		return nil
	}

	if header.Flags.Has(FlagData) && header.Channel != ChannelStreamInfoAck {
		if err := s.SendAck(header.Channel, header.TSN); err != nil {
			s.log.DebugTransport("ack send failed", "error", err)
		}
	}

	s.receiver.OnMessage(header.Channel, plaintext)
	return nil
}

func (s *Stream) retransmitLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(RetransmitTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			resend, givenUp := s.retransmit.DuePackets(time.Now())
			for _, p := range resend {
				if _, err := s.conn.Write(p.Payload()); err != nil {
					s.log.DebugTransport("retransmit write failed", "error", err)
				}
			}
			for _, p := range givenUp {
				s.log.DebugTransport("giving up on TSN after max retransmits", "tsn", p.TSN(), "channel", p.Channel())
			}
		}
	}
}

func (s *Stream) heartbeatLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(1 * time.Second) // 1 Hz keepalive (§4.5)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if err := s.Send(ChannelControl, 0, nil, 0, false); err != nil {
				s.log.DebugTransport("heartbeat send failed", "error", err)
			}
		}
	}
}
