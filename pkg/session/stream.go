package session

import (
	"context"
	"net"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/avdemux"
	"github.com/ethan/rp-webrtc-gateway/pkg/feedback"
	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/registration"
	"github.com/ethan/rp-webrtc-gateway/pkg/rpcrypto"
	"github.com/ethan/rp-webrtc-gateway/pkg/transport"
	"github.com/ethan/rp-webrtc-gateway/pkg/webrtcadapter"
)

// HandshakeProtocol bundles the console-vendor-specific packet builders
// Handshake.RunToBang needs (§4.6, §9's open question). Like
// registration.DeriveFunc, the exact INIT/COOKIE/BIG/BANG byte layouts are
// a reverse-engineered, console-generation-specific black box; a
// deployment supplies the concrete implementation rather than this package
// hardcoding one.
type HandshakeProtocol struct {
	BuildInit   func(rec registration.DeviceRecord, opts SessionStartOptions) []byte
	BuildCookie func(initAck []byte) []byte
	BuildBig    func(ourPublicKey []byte) []byte
	ParseBang   func(bang []byte) (peerPublicKey []byte, err error)
	SaltInfo    transport.SaltInfoForHostType
}

// StreamDeps bundles the collaborators StartSession needs to actually dial
// a console, run the handshake, and wire up the full streaming pipeline
// (§2/§5 data flow: handshake → Stream → channel Demux → FEC demux →
// WebRTC adapter → RTP pipeline → feedback Sender). Supplied once at
// startup via Manager.Configure; every test in this package exercises
// Manager without one, which is why StartSession only bookkeeps in that
// case instead of panicking on nil collaborators.
type StreamDeps struct {
	Registry   *registration.Registry
	Protocol   HandshakeProtocol
	Signal     webrtcadapter.SignalFunc
	Log        *logger.Logger
	StreamPort int
}

// defaultStreamPort is used when StreamDeps.StreamPort is left at zero.
// The real RP streaming port is part of the same console-generation-
// specific black box as the handshake byte layouts (§9); this is a
// placeholder a deployment overrides with the value it discovers for its
// target consoles.
const defaultStreamPort = 9296

// defaultAudioCodec is what the adapter negotiates until an OnStreamInfo
// parser (unresolved black box, same footing as HandshakeProtocol) can
// report the console's actual audio codec. Opus is WebRTC's
// mandatory-to-implement audio codec, so it is always a safe default
// negotiation target; SetAudioCodec remains wired for whenever a real
// STREAMINFO parser exists to call it.
const defaultAudioCodec = "opus"

// sessionStream is the StreamHandle stored on RemoteSession once
// streaming starts. Closing it tears down every owned component.
type sessionStream struct {
	feedbackSender *feedback.Sender
	adapter        *webrtcadapter.Adapter
	videoDemux     *avdemux.Demuxer
	audioDemux     *avdemux.Demuxer
	demux          *transport.Demux
	stream         *transport.Stream
}

func (s *sessionStream) Close() error {
	if s.feedbackSender != nil {
		s.feedbackSender.Close()
	}
	if s.adapter != nil {
		s.adapter.Dispose()
	}
	if s.videoDemux != nil {
		s.videoDemux.Close()
	}
	if s.audioDemux != nil {
		s.audioDemux.Close()
	}
	if s.demux != nil {
		s.demux.Close()
	}
	if s.stream != nil {
		return s.stream.Close()
	}
	return nil
}

// runStream performs the actual "start stream" operation (§4.3): dial, run
// the handshake to BANG, construct the transport Stream and its channel
// Demux, wire FEC demuxers and the WebRTC adapter for video/audio, start
// the feedback sender, and transition Created → Connecting → Streaming.
// Runs in its own goroutine; StartSession has already returned its
// RemoteSession to the caller by the time this begins.
func (m *Manager) runStream(sess *RemoteSession, deps StreamDeps) {
	log := deps.Log
	m.Transition(sess.HostId, sess.UserId, StateConnecting)

	rec, ok := deps.Registry.Get(sess.HostId)
	if !ok {
		log.Error("session start failed: device not registered", "host_id", sess.HostId)
		m.failSession(sess, FailureNotRegistered)
		return
	}

	port := deps.StreamPort
	if port == 0 {
		port = defaultStreamPort
	}
	ip := net.ParseIP(sess.HostIp)
	if ip == nil {
		log.Error("session start failed: invalid host address", "host_id", sess.HostId, "host_ip", sess.HostIp)
		m.failSession(sess, FailureDeviceNotFound)
		return
	}
	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: ip, Port: port})
	if err != nil {
		log.Error("session start failed: dial", "host_id", sess.HostId, "error", err)
		m.failSession(sess, FailureDeviceNotFound)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), transport.HandshakeStepTimeout*time.Duration(transport.HandshakeRetries+2))
	defer cancel()

	hs, err := transport.NewHandshake(transport.NewUDPHandshakeTransport(conn), log)
	if err != nil {
		conn.Close()
		log.Error("session start failed: handshake init", "host_id", sess.HostId, "error", err)
		m.failSession(sess, FailureCryptoFailure)
		return
	}

	initReq := deps.Protocol.BuildInit(rec, sess.StartOptions)
	keys, err := hs.RunToBang(ctx, initReq, deps.Protocol.BuildCookie, deps.Protocol.BuildBig, deps.Protocol.ParseBang, deps.Protocol.SaltInfo, string(rec.HostType))
	if err != nil {
		conn.Close()
		log.Error("session start failed: handshake", "host_id", sess.HostId, "error", err)
		m.failSession(sess, FailureHandshakeTimeout)
		return
	}

	sendCipher, err := rpcrypto.NewStreamCipher(keys.SendKeys.Key, keys.SendKeys.BaseNonce)
	if err != nil {
		conn.Close()
		log.Error("session start failed: send cipher", "host_id", sess.HostId, "error", err)
		m.failSession(sess, FailureCryptoFailure)
		return
	}
	recvCipher, err := rpcrypto.NewStreamCipher(keys.RecvKeys.Key, keys.RecvKeys.BaseNonce)
	if err != nil {
		conn.Close()
		log.Error("session start failed: recv cipher", "host_id", sess.HostId, "error", err)
		m.failSession(sess, FailureCryptoFailure)
		return
	}

	// New derives its own child context internally and keeps it alive for
	// the adapter's full lifetime (tied off by Dispose), so no timeout is
	// applied here the way the handshake step above gets one.
	videoCodecName := "h264"
	if sess.StartOptions.Codec == CodecHEVC {
		videoCodecName = "hevc"
	}
	adapter, err := webrtcadapter.New(context.Background(), videoCodecName, defaultAudioCodec, deps.Signal, log)
	if err != nil {
		conn.Close()
		log.Error("session start failed: webrtc adapter", "host_id", sess.HostId, "error", err)
		m.failSession(sess, FailureCryptoFailure)
		return
	}
	adapter.EnterWaitForIdr()

	videoCodec := avdemux.CodecH264
	if videoCodecName == "hevc" {
		videoCodec = avdemux.CodecHEVC
	}

	var stream *transport.Stream
	videoDemux := avdemux.NewDemuxer(videoCodec, log, func(unit avdemux.VideoUnit) {
		adapter.OnVideoPacket(append([]byte{0x02}, unit.Data...))
	}, func(start, end uint32) {
		log.DebugAVDemux("corrupt video frame range", "start", start, "end", end)
	}, func() {
		if stream != nil {
			stream.RequestKeyframe(nil)
		}
	})
	// Audio has no IDR concept; the codec passed here only selects which
	// IsIDRUnit heuristic assemble() runs, and nothing downstream reads
	// VideoUnit.IsIDR for audio, so it's inert here.
	audioDemux := avdemux.NewDemuxer(videoCodec, log, func(unit avdemux.VideoUnit) {
		adapter.OnAudioPacket(append([]byte{0x03}, unit.Data...))
	}, func(start, end uint32) {
		log.DebugAVDemux("corrupt audio frame range", "start", start, "end", end)
	}, nil)

	demux := transport.NewDemux(log)
	demux.Register(transport.ChannelVideo, func(payload []byte) {
		frag, err := avdemux.ParseFragment(payload)
		if err != nil {
			log.DebugTransport("dropping malformed video fragment", "error", err)
			return
		}
		videoDemux.PushFragment(frag)
	})
	demux.Register(transport.ChannelAudio, func(payload []byte) {
		frag, err := avdemux.ParseFragment(payload)
		if err != nil {
			log.DebugTransport("dropping malformed audio fragment", "error", err)
			return
		}
		audioDemux.PushFragment(frag)
	})
	demux.SetOnDisconnect(func(err error) {
		log.Error("stream disconnected", "host_id", sess.HostId, "user_id", sess.UserId, "error", err)
		m.Stop(sess.HostId, sess.UserId)
	})

	stream = transport.NewStream(conn, sendCipher, recvCipher, demux, log)
	stream.Start()

	// STREAMINFO's wire format is as unresolved a black box as the
	// handshake byte builders (§9); without a parser to negotiate the
	// console's actual video/audio headers, the state machine advances
	// straight through on the assumption the defaults negotiated above
	// hold.
	hs.AdvanceToReceivedStreamInfo()
	hs.AdvanceToSentStreamInfoAck()
	hs.AdvanceToSentControllerConn()
	hs.AdvanceToStreaming()

	feedbackSender := feedback.NewSender(stream, log)
	feedbackSender.Start()

	handle := &sessionStream{
		feedbackSender: feedbackSender,
		adapter:        adapter,
		videoDemux:     videoDemux,
		audioDemux:     audioDemux,
		demux:          demux,
		stream:         stream,
	}

	m.mu.Lock()
	key := hostUserKey{hostId: sess.HostId, userId: sess.UserId}
	if cur, ok := m.sessions[key]; !ok || cur != sess {
		// Stopped or replaced while we were connecting; tear down what we
		// just built instead of leaking it.
		m.mu.Unlock()
		handle.Close()
		return
	}
	sess.Stream = handle
	sess.LaunchOptions = LaunchOptions{Codec: sess.StartOptions.Codec, BitrateKbps: sess.StartOptions.BitrateKbps}
	sess.State = StateStreaming
	sess.UpdatedAt = time.Now()
	m.mu.Unlock()
}
