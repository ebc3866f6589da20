// Package webrtcadapter wraps pion/webrtc/v4 as the IAVReceiver the
// transport demux delivers packets to (§4.10, §6.6), translating viewer
// PLI/FIR RTCP feedback into keyframe requests for the RTP pipeline.
package webrtcadapter

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/ethan/rp-webrtc-gateway/pkg/avdemux"
	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/rtppipeline"
)

// SignalFunc exchanges a local SDP offer for a remote answer. Any
// signaling transport (Cloudflare Calls, a bespoke HTTP endpoint, a
// WebSocket) can be plugged in here; this package has no opinion on
// transport (§1 Non-goals excludes signaling-service specifics).
type SignalFunc func(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error)

// Receiver implements the IAVReceiver contract (§6.6): one demux task per
// channel calls these methods, so implementations (this one included)
// need only be internally thread-safe, not reentrant-safe across calls.
type Receiver interface {
	OnStreamInfo(videoHeader, audioHeader []byte)
	OnVideoPacket(data []byte)
	OnAudioPacket(data []byte)
	SetVideoCodec(codec string)
	SetAudioCodec(codec string)
	EnterWaitForIdr()
	Dispose()
}

// videoPacketPrefix/audioPacketPrefix are the §6.6 one-byte type prefixes
// on OnVideoPacket/OnAudioPacket payloads.
const (
	videoPacketPrefix = 0x02
	audioPacketPrefix = 0x03
)

// Adapter wraps a pion PeerConnection with two TrackLocalStaticRTP tracks
// (video/audio), grounded on the teacher's `bridge.Bridge` (§4.10):
// negotiates via a caller-supplied SignalFunc instead of a
// Cloudflare-Calls client, and translates RTCP PLI/FIR into
// OnKeyframeRequested the same way `bridge.readRTCP` logs them.
type Adapter struct {
	log *logger.Logger

	pc          *webrtc.PeerConnection
	videoTrack  *webrtc.TrackLocalStaticRTP
	audioTrack  *webrtc.TrackLocalStaticRTP
	videoSender *webrtc.RTPSender
	audioSender *webrtc.RTPSender

	audioPipe *rtppipeline.AudioPipeline
	videoPipe *rtppipeline.Pipeline
	videoTS   *rtppipeline.TimestampManager

	mu                  sync.Mutex
	waitingForIdr       bool
	videoCodec          string
	audioCodec          string
	OnKeyframeRequested func()

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a PeerConnection with a video TrackLocalStaticRTP (H.264 or
// HEVC, chosen by the videoCodec argument) and an Opus audio track,
// negotiates via
// signal, and starts RTCP reader goroutines. Mirrors
// `Bridge.NewBridge`+`Bridge.CreateSession`+`Bridge.Negotiate`.
func New(ctx context.Context, videoCodec, audioCodec string, signal SignalFunc, log *logger.Logger) (*Adapter, error) {
	ctx, cancel := context.WithCancel(ctx)

	a := &Adapter{
		log:        log,
		videoCodec: videoCodec,
		audioCodec: audioCodec,
		ctx:        ctx,
		cancel:     cancel,
	}

	config := webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
	}

	m := &webrtc.MediaEngine{}
	videoMime, payloadType := videoCodecCapability(videoCodec)
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: videoMime, ClockRate: 90000},
		PayloadType:        payloadType,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		cancel()
		return nil, fmt.Errorf("register video codec: %w", err)
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		PayloadType:        111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		cancel()
		return nil, fmt.Errorf("register audio codec: %w", err)
	}

	api := webrtc.NewAPI(webrtc.WithMediaEngine(m))
	pc, err := api.NewPeerConnection(config)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create peer connection: %w", err)
	}
	a.pc = pc

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		a.log.DebugWebRTC("peer connection state changed", "state", state.String())
	})

	videoTrack, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: videoMime, ClockRate: 90000}, "video", "rp-session")
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create video track: %w", err)
	}
	a.videoTrack = videoTrack
	if a.videoSender, err = pc.AddTrack(videoTrack); err != nil {
		cancel()
		return nil, fmt.Errorf("add video track: %w", err)
	}
	a.videoTS = rtppipeline.NewTimestampManager()
	a.videoPipe = rtppipeline.NewPipeline(videoCodecEnum(videoCodec), a, log, func() {
		a.mu.Lock()
		cb := a.OnKeyframeRequested
		a.mu.Unlock()
		if cb != nil {
			cb()
		}
	})
	a.videoPipe.Start()

	audioTrack, err := webrtc.NewTrackLocalStaticRTP(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}, "audio", "rp-session")
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create audio track: %w", err)
	}
	a.audioTrack = audioTrack
	if a.audioSender, err = pc.AddTrack(audioTrack); err != nil {
		cancel()
		return nil, fmt.Errorf("add audio track: %w", err)
	}
	a.audioPipe = rtppipeline.NewAudioPipeline(audioCodec, a)

	if err := a.negotiate(ctx, signal); err != nil {
		cancel()
		return nil, err
	}

	a.startRTCPReaders()

	return a, nil
}

func videoCodecCapability(codec string) (mime string, payloadType webrtc.PayloadType) {
	if codec == "hevc" {
		return "video/H265", 97
	}
	return webrtc.MimeTypeH264, 96
}

func videoCodecEnum(codec string) avdemux.Codec {
	if codec == "hevc" {
		return avdemux.CodecHEVC
	}
	return avdemux.CodecH264
}

func (a *Adapter) negotiate(ctx context.Context, signal SignalFunc) error {
	offer, err := a.pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := a.pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	gatherComplete := webrtc.GatheringCompletePromise(a.pc)
	select {
	case <-gatherComplete:
	case <-ctx.Done():
		return ctx.Err()
	}

	answer, err := signal(ctx, *a.pc.LocalDescription())
	if err != nil {
		return fmt.Errorf("signal: %w", err)
	}
	if err := a.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	return nil
}

// WriteVideoRTP implements rtppipeline.Sink.
func (a *Adapter) WriteVideoRTP(packet *rtp.Packet) error {
	if err := a.videoTrack.WriteRTP(packet); err != nil {
		if err == io.ErrClosedPipe {
			return nil
		}
		return err
	}
	return nil
}

// WriteAudioRTP writes an already-packetized audio RTP packet.
func (a *Adapter) WriteAudioRTP(packet *rtp.Packet) error {
	if err := a.audioTrack.WriteRTP(packet); err != nil {
		if err == io.ErrClosedPipe {
			return nil
		}
		return err
	}
	return nil
}

// OnStreamInfo records parameter sets. Kept for completeness of the
// IAVReceiver surface; the adapter does not need SPS/PPS itself since
// pkg/rtppipeline forwards full Annex-B NAL sequences.
func (a *Adapter) OnStreamInfo(videoHeader, audioHeader []byte) {
	a.log.DebugWebRTC("received stream info", "video_header_len", len(videoHeader), "audio_header_len", len(audioHeader))
}

// OnVideoPacket strips the §6.6 type prefix, discards the unit if the
// adapter is still waiting for the first IDR after EnterWaitForIdr, and
// otherwise admits it to the video rtppipeline.Pipeline for RTP
// packetization and egress via WriteVideoRTP.
func (a *Adapter) OnVideoPacket(data []byte) {
	if len(data) < 1 || data[0] != videoPacketPrefix {
		return
	}
	unit := data[1:]
	if len(unit) == 0 {
		return
	}

	a.mu.Lock()
	waiting := a.waitingForIdr
	codec := a.videoCodec
	a.mu.Unlock()

	isIDR := avdemux.IsIDRUnit(unit, videoCodecEnum(codec))
	if waiting {
		if !isIDR {
			return
		}
		a.mu.Lock()
		a.waitingForIdr = false
		a.mu.Unlock()
	}

	a.mu.Lock()
	pipe := a.videoPipe
	ts := a.videoTS
	a.mu.Unlock()
	if pipe == nil || ts == nil {
		return
	}
	pipe.PushFrame(rtppipeline.Frame{Timestamp: ts.NextTimestamp(time.Now()), IsIDR: isIDR, Data: unit}, rand.Float64)
}

// OnAudioPacket strips the §6.6 type prefix and packetizes the decoded
// frame via pkg/rtppipeline.AudioPipeline. Audio has no IDR-equivalent
// gate: every frame is independently decodable.
func (a *Adapter) OnAudioPacket(data []byte) {
	if len(data) < 1 || data[0] != audioPacketPrefix {
		return
	}
	frame := data[1:]
	if len(frame) == 0 {
		return
	}

	a.mu.Lock()
	pipe := a.audioPipe
	a.mu.Unlock()
	if pipe == nil {
		return
	}
	if err := pipe.PushFrame(frame); err != nil {
		a.log.DebugWebRTC("dropping audio frame", "error", err)
	}
}

// SetVideoCodec records the negotiated video codec name ("h264"|"hevc") and
// rebuilds the video pipeline's payloader if the codec actually changed and
// a pipeline already exists (it doesn't in unit tests that construct an
// Adapter directly without going through New).
func (a *Adapter) SetVideoCodec(codec string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if codec == a.videoCodec {
		return
	}
	a.videoCodec = codec
	if a.videoPipe != nil {
		a.videoPipe.Close()
		a.videoPipe = rtppipeline.NewPipeline(videoCodecEnum(codec), a, a.log, func() {
			a.mu.Lock()
			cb := a.OnKeyframeRequested
			a.mu.Unlock()
			if cb != nil {
				cb()
			}
		})
		a.videoPipe.Start()
	}
}

// SetAudioCodec records the negotiated audio codec name ("opus"|"aac")
// and rebuilds the audio pipeline's framing parameters if it changed.
func (a *Adapter) SetAudioCodec(codec string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if codec == a.audioCodec {
		return
	}
	a.audioCodec = codec
	a.audioPipe = rtppipeline.NewAudioPipeline(codec, a)
}

// EnterWaitForIdr arms IDR-gating: OnVideoPacket discards units until the
// next one detected as an IDR.
func (a *Adapter) EnterWaitForIdr() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.waitingForIdr = true
}

// Dispose tears down RTCP readers and closes the peer connection.
func (a *Adapter) Dispose() {
	a.cancel()
	a.wg.Wait()
	if a.videoPipe != nil {
		a.videoPipe.Close()
	}
	if a.pc != nil {
		if err := a.pc.Close(); err != nil {
			a.log.DebugWebRTC("error closing peer connection", "error", err)
		}
	}
}

func (a *Adapter) startRTCPReaders() {
	if a.videoSender != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.readRTCP(a.videoSender, "video")
		}()
	}
	if a.audioSender != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.readRTCP(a.audioSender, "audio")
		}()
	}
}

func (a *Adapter) readRTCP(sender *webrtc.RTPSender, track string) {
	for {
		packets, _, err := sender.ReadRTCP()
		if err != nil {
			select {
			case <-a.ctx.Done():
				return
			default:
				if err == io.EOF || err == io.ErrClosedPipe {
					return
				}
				a.log.DebugWebRTC("rtcp read error", "track", track, "error", err)
				return
			}
		}

		for _, packet := range packets {
			switch packet.(type) {
			case *rtcp.PictureLossIndication, *rtcp.FullIntraRequest:
				a.log.DebugWebRTC("keyframe requested via RTCP", "track", track)
				if a.OnKeyframeRequested != nil {
					a.OnKeyframeRequested()
				}
			}
		}
	}
}
