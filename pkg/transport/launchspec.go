package transport

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/ethan/rp-webrtc-gateway/pkg/rpcrypto"
)

// fixedDecimal renders a float64 with a fixed 6-decimal format (e.g.
// 0.001000) rather than Go's default shortest-representation formatting,
// matching §6.5's normative numeric formatting for bwLoss.
type fixedDecimal float64

func (f fixedDecimal) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%.6f", float64(f))), nil
}

type launchSpecResolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type launchSpecStreamResolution struct {
	Resolution launchSpecResolution `json:"resolution"`
	MaxFps     int                  `json:"maxFps"`
	Score      int                  `json:"score"`
}

type launchSpecNetwork struct {
	BwKbpsSent int          `json:"bwKbpsSent"`
	BwLoss     fixedDecimal `json:"bwLoss"`
	MTU        int          `json:"mtu"`
	RTT        int          `json:"rtt"`
	Ports      [2]int       `json:"ports"`
}

type launchSpecAppSpecification struct {
	MinFps               int    `json:"minFps"`
	MinBandwidth         int    `json:"minBandwidth"`
	ExtTitleId           string `json:"extTitleId"`
	Version              int    `json:"version"`
	TimeLimit            int    `json:"timeLimit"`
	StartTimeout         int    `json:"startTimeout"`
	AfkTimeout           int    `json:"afkTimeout"`
	AfkTimeoutDisconnect int    `json:"afkTimeoutDisconnect"`
}

type launchSpecKonan struct {
	PS3AccessToken  string `json:"ps3AccessToken"`
	PS3RefreshToken string `json:"ps3RefreshToken"`
}

type launchSpecRequestGameSpecification struct {
	Model                string   `json:"model"`
	Platform             string   `json:"platform"`
	AudioChannels        string   `json:"audioChannels"`
	Language             string   `json:"language"`
	AcceptButton         string   `json:"acceptButton"`
	ConnectedControllers []string `json:"connectedControllers"`
	YuvCoefficient       string   `json:"yuvCoefficient"`
	VideoEncoderProfile  string   `json:"videoEncoderProfile"`
	AudioEncoderProfile  string   `json:"audioEncoderProfile"`
	AdaptiveStreamMode   string   `json:"adaptiveStreamMode,omitempty"`
}

type launchSpecUserProfile struct {
	OnlineId      string   `json:"onlineId"`
	NpId          string   `json:"npId"`
	Region        string   `json:"region"`
	LanguagesUsed []string `json:"languagesUsed"`
}

// launchSpec mirrors §6.5's normative key order exactly; Go's
// encoding/json marshals struct fields in declaration order, so this
// struct's field order IS the wire key order.
type launchSpec struct {
	SessionId                string                             `json:"sessionId"`
	StreamResolutions         []launchSpecStreamResolution       `json:"streamResolutions"`
	Network                   launchSpecNetwork                  `json:"network"`
	SlotId                    int                                `json:"slotId"`
	AppSpecification          launchSpecAppSpecification         `json:"appSpecification"`
	Konan                     launchSpecKonan                    `json:"konan"`
	RequestGameSpecification  launchSpecRequestGameSpecification `json:"requestGameSpecification"`
	UserProfile               launchSpecUserProfile              `json:"userProfile"`
	VideoCodec                string                             `json:"videoCodec"`
	DynamicRange              string                             `json:"dynamicRange"`
	HandshakeKey              string                             `json:"handshakeKey"`
}

// LaunchSpecParams is everything needed to build the LaunchSpec JSON for one
// handshake BIG message.
type LaunchSpecParams struct {
	SessionId       string
	Width, Height   int
	MaxFps          int
	BwKbpsSent      int
	MTU             int
	RTTMs           int
	AccessToken     string
	RefreshToken    string
	AudioChannels   string
	Language        string
	AcceptButton    string
	Controllers     []string
	IsPS5           bool
	OnlineId        string
	NpId            string
	Region          string
	LanguagesUsed   []string
	Codec           string // "avc" or "hevc"
	Hdr             bool
	HandshakeKeyB64 string
}

// BuildLaunchSpecJSON serializes params into the normative compact JSON
// form, with the PS5-only adaptiveStreamMode field included only when
// IsPS5 is set (§9 Open Question: adaptiveStreamMode defaults to PS5-only).
func BuildLaunchSpecJSON(p LaunchSpecParams) ([]byte, error) {
	dynamicRange := "SDR"
	if p.Hdr {
		dynamicRange = "HDR"
	}

	adaptiveMode := ""
	if p.IsPS5 {
		adaptiveMode = "resize"
	}

	spec := launchSpec{
		SessionId: p.SessionId,
		StreamResolutions: []launchSpecStreamResolution{{
			Resolution: launchSpecResolution{Width: p.Width, Height: p.Height},
			MaxFps:     p.MaxFps,
			Score:      10,
		}},
		Network: launchSpecNetwork{
			BwKbpsSent: p.BwKbpsSent,
			BwLoss:     fixedDecimal(0.001),
			MTU:        p.MTU,
			RTT:        p.RTTMs,
			Ports:      [2]int{53, 2053},
		},
		SlotId: 1,
		AppSpecification: launchSpecAppSpecification{
			MinFps:               30,
			MinBandwidth:         0,
			ExtTitleId:           "ps3",
			Version:              1,
			TimeLimit:            1,
			StartTimeout:         100,
			AfkTimeout:           100,
			AfkTimeoutDisconnect: 100,
		},
		Konan: launchSpecKonan{
			PS3AccessToken:  p.AccessToken,
			PS3RefreshToken: p.RefreshToken,
		},
		RequestGameSpecification: launchSpecRequestGameSpecification{
			Model:                "bravia_tv",
			Platform:             "android",
			AudioChannels:        p.AudioChannels,
			Language:             p.Language,
			AcceptButton:         p.AcceptButton,
			ConnectedControllers: p.Controllers,
			YuvCoefficient:       "bt601",
			VideoEncoderProfile:  "hw4.1",
			AudioEncoderProfile:  "audio1",
			AdaptiveStreamMode:   adaptiveMode,
		},
		UserProfile: launchSpecUserProfile{
			OnlineId:      p.OnlineId,
			NpId:          p.NpId,
			Region:        p.Region,
			LanguagesUsed: p.LanguagesUsed,
		},
		VideoCodec:   p.Codec,
		DynamicRange: dynamicRange,
		HandshakeKey: p.HandshakeKeyB64,
	}

	body, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}
	// Terminated with a single 0x00 byte per §4.6/§6.5.
	return append(body, 0x00), nil
}

// EncodeLaunchSpec builds the JSON, XOR-encrypts it with the session
// keystream seeded at counter=0 (§4.6: "XOR-encrypted with a keystream
// from a separate session cipher seeded by (handshake_key, session_nonce,
// counter=0)"), and base64-encodes the result for transmission inside BIG.
func EncodeLaunchSpec(p LaunchSpecParams, handshakeKey, sessionNonce []byte) (string, error) {
	plain, err := BuildLaunchSpecJSON(p)
	if err != nil {
		return "", err
	}
	block, err := rpcrypto.NewAESBlock(handshakeKey)
	if err != nil {
		return "", err
	}
	cipherText := rpcrypto.XORKeystream(block, sessionNonce, 0, plain)
	return base64.StdEncoding.EncodeToString(cipherText), nil
}
