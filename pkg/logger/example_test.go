package logger_test

import (
	"fmt"
	"os"

	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
)

// Example showing basic logger usage
func ExampleLogger_basic() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatText

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	log.Info("gateway started", "version", "1.0.0")
	log.Warn("console responded slowly to wake-up", "host_id", "AA:BB:CC:DD:EE:FF")
	log.Error("failed to connect", "error", "connection timeout")
}

// Example showing debug category usage
func ExampleLogger_categories() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelDebug
	cfg.EnableCategory(logger.DebugTransport)
	cfg.EnableCategory(logger.DebugAVDemux)

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// Transport debugging (only logged if DebugTransport enabled)
	log.DebugRPPacket(1, 0x01, 12345, 90000)

	// A/V demux debugging (only logged if DebugAVDemux enabled)
	log.DebugNALUnit(5, 28000, false) // IDR

	// Generic category logging
	log.DebugTransport("packet acked", "tsn", 12345)
	log.DebugAVDemux("keyframe assembled", "size", 28000)
}

// Example showing command-line flags integration
func ExampleFlags() {
	// In main.go:
	// import (
	//     "flag"
	//     "github.com/ethan/rp-webrtc-gateway/pkg/logger"
	// )
	//
	// fs := flag.NewFlagSet("rpgateway", flag.ExitOnError)
	// logFlags := logger.RegisterFlags(fs)
	// fs.Parse(os.Args[1:])
	//
	// logConfig, _ := logFlags.ToConfig()
	// log, _ := logger.New(logConfig)
	// defer log.Close()

	fmt.Println("See cmd/rpgateway/main.go for complete example")
}

// Example showing JSON format output
func ExampleLogger_json() {
	cfg := logger.NewConfig()
	cfg.Level = logger.LevelInfo
	cfg.Format = logger.FormatJSON
	cfg.OutputFile = "app.json"

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()
	defer os.Remove("app.json")

	log.Info("session started",
		"host_id", "AA:BB:CC:DD:EE:FF",
		"user_id", "1",
		"duration_ms", 250)

	// Output will be in JSON format:
	// {"time":"...","level":"INFO","msg":"session started","host_id":"AA:BB:CC:DD:EE:FF","user_id":"1","duration_ms":250}
}

// Example showing conditional debug logging
func ExampleLogger_conditional() {
	cfg := logger.NewConfig()
	cfg.EnableCategory(logger.DebugAVDemux)

	log, err := logger.New(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Close()

	// This will only execute if DebugAVDemux is enabled
	payload := make([]byte, 1024)
	log.DebugPayload(logger.DebugAVDemux, "frame payload", payload)

	// Category methods automatically check if enabled
	// No manual check needed - zero cost if disabled
	log.DebugTransport("packet received", "tsn", 12345)
}

func computeExpensiveStats() string {
	return "expensive computation result"
}
