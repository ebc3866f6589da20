// Command rpgateway runs the Remote Play to WebRTC gateway: it discovers
// and registers consoles, brokers sessions, and bridges the RP transport
// stream to browser viewers over WebRTC.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethan/rp-webrtc-gateway/pkg/config"
	"github.com/ethan/rp-webrtc-gateway/pkg/discovery"
	"github.com/ethan/rp-webrtc-gateway/pkg/logger"
	"github.com/ethan/rp-webrtc-gateway/pkg/registration"
	"github.com/ethan/rp-webrtc-gateway/pkg/rperrors"
	"github.com/ethan/rp-webrtc-gateway/pkg/session"
	"github.com/pion/webrtc/v4"
)

func main() {
	fs := flag.NewFlagSet("rpgateway", flag.ExitOnError)
	logFlags := logger.RegisterFlags(fs)
	envPath := fs.String("env", ".env", "path to .env-style configuration file")
	scanOnStart := fs.Bool("scan", true, "broadcast a discovery scan on startup and log found consoles")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "PlayStation Remote Play to WebRTC gateway\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		logger.PrintUsageExamples()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error parsing flags: %v\n", err)
		os.Exit(1)
	}

	logConfig, err := logFlags.ToConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error configuring logger: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()
	logger.SetDefault(log)

	log.Info("starting Remote Play gateway", "log_config", logFlags.String())

	cfg, err := config.Load(*envPath)
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log.Info("configuration loaded", "registry_path", cfg.Console.RegistryPath)

	registry, err := registration.OpenRegistry(cfg.Console.RegistryPath)
	if err != nil {
		log.Error("failed to open device registry", "error", err)
		os.Exit(1)
	}

	defaults := session.NewDefaultsTable(cfg.Defaults)
	sessions := session.NewManager(defaults)
	sessions.Configure(session.StreamDeps{
		Registry: registry,
		Protocol: placeholderHandshakeProtocol(),
		Signal:   placeholderSignalFunc,
		Log:      log,
	})
	healthReg := newHealthRegistry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if *scanOnStart {
		go runStartupScan(ctx, log)
	}

	diag := newDiagnosticServer(sessions, registry, healthReg, log)
	if err := diag.Start(cfg.Server.ListenAddr); err != nil {
		log.Error("failed to start diagnostic server", "error", err)
		os.Exit(1)
	}

	log.Info("gateway ready", "known_devices", len(registry.All()))

	<-ctx.Done()

	log.Info("shutting down")

	for _, sess := range sessions.All() {
		if err := sessions.Stop(sess.HostId, sess.UserId); err != nil {
			log.Error("error stopping session", "session_id", sess.SessionId, "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := diag.Stop(shutdownCtx); err != nil {
		log.Error("error stopping diagnostic server", "error", err)
	}
}

// placeholderHandshakeProtocol returns a session.HandshakeProtocol whose
// BANG parser fails instead of returning real handshake bytes. The wire
// layout for those packets is a
// console-generation-specific black box (§9) this gateway doesn't have
// capture data for; a deployment wires in the real implementation here the
// same way it supplies registration.DeriveFunc.
func placeholderHandshakeProtocol() session.HandshakeProtocol {
	notImplemented := func(name string) error {
		return rperrors.New(rperrors.KindConfig, rperrors.CodeBadState, name+" builder not configured for this deployment")
	}
	return session.HandshakeProtocol{
		BuildInit: func(rec registration.DeviceRecord, opts session.SessionStartOptions) []byte {
			return nil
		},
		BuildCookie: func(initAck []byte) []byte { return nil },
		BuildBig:    func(ourPublicKey []byte) []byte { return nil },
		ParseBang: func(bang []byte) ([]byte, error) {
			return nil, notImplemented("BANG")
		},
		SaltInfo: func(hostType string) (salt, info []byte) {
			return nil, nil
		},
	}
}

// placeholderSignalFunc stands in for the browser signaling transport
// (Cloudflare Calls or otherwise), which is out of scope for this gateway:
// it owns the RP-to-WebRTC bridge, not the admin surface that negotiates
// SDP with a viewer. A deployment supplies a real SignalFunc wired to its
// signaling channel.
func placeholderSignalFunc(ctx context.Context, offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	return webrtc.SessionDescription{}, rperrors.New(rperrors.KindConfig, rperrors.CodeBadState, "no signaling transport configured for this deployment")
}

// runStartupScan performs a one-shot discovery broadcast so operators see
// reachable consoles in the log before issuing a StartSession call
// against the diagnostic API.
func runStartupScan(ctx context.Context, log *logger.Logger) {
	scanCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	devices, err := discovery.Scan(scanCtx, 9302, 2*time.Second, log)
	if err != nil {
		log.DebugDiscovery("startup scan failed", "error", err)
		return
	}
	for _, d := range devices {
		log.Info("discovered console", "host_id", d.HostId, "status", d.Status)
	}
}
