package logger

import (
	"flag"
	"fmt"
	"strings"
)

// Flags holds all logging-related command-line flags
type Flags struct {
	LogLevel          string
	LogFormat         string
	LogFile           string
	DebugDiscovery    bool
	DebugRegistration bool
	DebugHandshake    bool
	DebugTransport    bool
	DebugAVDemux      bool
	DebugFeedback     bool
	DebugRTP          bool
	DebugWebRTC       bool
	DebugAll          bool
}

// RegisterFlags registers logging flags with the given FlagSet
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}

	fs.StringVar(&f.LogLevel, "log-level", "info",
		"Log level: debug, info, warn, error")
	fs.StringVar(&f.LogLevel, "l", "info",
		"Log level (shorthand)")

	fs.StringVar(&f.LogFormat, "log-format", "text",
		"Log output format: text, json")

	fs.StringVar(&f.LogFile, "log-file", "",
		"Log output file path (default: stdout)")
	fs.StringVar(&f.LogFile, "o", "",
		"Log output file path (shorthand)")

	fs.BoolVar(&f.DebugDiscovery, "debug-discovery", false,
		"Enable device discovery/wake-up debugging")
	fs.BoolVar(&f.DebugRegistration, "debug-registration", false,
		"Enable console-pairing/registration debugging")
	fs.BoolVar(&f.DebugHandshake, "debug-handshake", false,
		"Enable session key-exchange debugging")
	fs.BoolVar(&f.DebugTransport, "debug-transport", false,
		"Enable RP packet/channel debugging (sequence, flags, key position)")
	fs.BoolVar(&f.DebugAVDemux, "debug-avdemux", false,
		"Enable frame reassembly and FEC debugging")
	fs.BoolVar(&f.DebugFeedback, "debug-feedback", false,
		"Enable controller feedback debugging")
	fs.BoolVar(&f.DebugRTP, "debug-rtp", false,
		"Enable outbound RTP packetization debugging (sequence, timestamp, payload)")
	fs.BoolVar(&f.DebugWebRTC, "debug-webrtc", false,
		"Enable WebRTC debugging (ICE, SDP, connection state)")
	fs.BoolVar(&f.DebugAll, "debug-all", false,
		"Enable all debug categories")

	return f
}

// ToConfig converts Flags to a logger Config
func (f *Flags) ToConfig() (*Config, error) {
	cfg := NewConfig()

	level, err := ParseLevel(f.LogLevel)
	if err != nil {
		return nil, err
	}
	cfg.Level = level

	format, err := ParseFormat(f.LogFormat)
	if err != nil {
		return nil, err
	}
	cfg.Format = format

	cfg.OutputFile = f.LogFile

	if f.DebugAll {
		cfg.EnableCategory(DebugAll)
		cfg.Level = LevelDebug
	} else {
		if f.DebugDiscovery {
			cfg.EnableCategory(DebugDiscovery)
			cfg.Level = LevelDebug
		}
		if f.DebugRegistration {
			cfg.EnableCategory(DebugRegistration)
			cfg.Level = LevelDebug
		}
		if f.DebugHandshake {
			cfg.EnableCategory(DebugHandshake)
			cfg.Level = LevelDebug
		}
		if f.DebugTransport {
			cfg.EnableCategory(DebugTransport)
			cfg.Level = LevelDebug
		}
		if f.DebugAVDemux {
			cfg.EnableCategory(DebugAVDemux)
			cfg.Level = LevelDebug
		}
		if f.DebugFeedback {
			cfg.EnableCategory(DebugFeedback)
			cfg.Level = LevelDebug
		}
		if f.DebugRTP {
			cfg.EnableCategory(DebugRTP)
			cfg.Level = LevelDebug
		}
		if f.DebugWebRTC {
			cfg.EnableCategory(DebugWebRTC)
			cfg.Level = LevelDebug
		}
	}

	return cfg, nil
}

// PrintUsageExamples prints usage examples for logging flags
func PrintUsageExamples() {
	examples := `
Logging Examples:

  Basic usage (INFO level, text format to stdout):
    ./rpgateway

  Enable DEBUG level:
    ./rpgateway --log-level debug
    ./rpgateway -l debug

  Log to file:
    ./rpgateway --log-file gateway.log
    ./rpgateway -o gateway.log

  JSON format for structured logging:
    ./rpgateway --log-format json -o gateway.json

  Debug the transport packet layer only:
    ./rpgateway --debug-transport

  Debug the handshake only:
    ./rpgateway --debug-handshake

  Debug multiple categories:
    ./rpgateway --debug-transport --debug-avdemux --debug-rtp

  Debug everything:
    ./rpgateway --debug-all -o debug.log

  Production logging (WARN level, JSON to file):
    ./rpgateway -l warn --log-format json -o production.log
`
	fmt.Println(examples)
}

// String returns a string representation of enabled flags
func (f *Flags) String() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("level=%s", f.LogLevel))
	parts = append(parts, fmt.Sprintf("format=%s", f.LogFormat))

	if f.LogFile != "" {
		parts = append(parts, fmt.Sprintf("output=%s", f.LogFile))
	} else {
		parts = append(parts, "output=stdout")
	}

	var debugCategories []string
	if f.DebugAll {
		debugCategories = append(debugCategories, "all")
	} else {
		if f.DebugDiscovery {
			debugCategories = append(debugCategories, "discovery")
		}
		if f.DebugRegistration {
			debugCategories = append(debugCategories, "registration")
		}
		if f.DebugHandshake {
			debugCategories = append(debugCategories, "handshake")
		}
		if f.DebugTransport {
			debugCategories = append(debugCategories, "transport")
		}
		if f.DebugAVDemux {
			debugCategories = append(debugCategories, "avdemux")
		}
		if f.DebugFeedback {
			debugCategories = append(debugCategories, "feedback")
		}
		if f.DebugRTP {
			debugCategories = append(debugCategories, "rtp")
		}
		if f.DebugWebRTC {
			debugCategories = append(debugCategories, "webrtc")
		}
	}

	if len(debugCategories) > 0 {
		parts = append(parts, fmt.Sprintf("debug=[%s]", strings.Join(debugCategories, ",")))
	}

	return strings.Join(parts, " ")
}
