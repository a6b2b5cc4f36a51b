// Command idscp2-device is a reference IDSCP2 server endpoint.
//
// This command demonstrates a minimal IDSCP2 listener built on
// github.com/industrial-data-space/idscp2-go/pkg/idscp2: it binds a TLS
// listener, accepts inbound connections, echoes every received message back
// prefixed with its connection id, and exits cleanly on SIGINT/SIGTERM.
//
// Usage:
//
//	idscp2-device [flags]
//
// Flags:
//
//	-addr string          Listen address (default ":29292")
//	-cert string          PEM certificate chain presented during the TLS handshake (required)
//	-key string           PEM private key matching -cert (required)
//	-ca string            PEM file of trusted peer certificates, may repeat (required)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-handshake-timeout duration   Bound on STATE_WAIT_FOR_HELLO (default 5s)
//	-rat-timeout duration         RAT timer armed on HELLO; ignored if it fires during RAT (default 20s)
//	-rat-refresh duration         How often STATE_ESTABLISHED re-runs RAT (default 10m)
//	-dat-validity duration        Validity this device grants its own DAT (default 1h)
//
// Examples:
//
//	# Start a device listening on the default port
//	idscp2-device -cert device.pem -key device-key.pem -ca controller-ca.pem
//
//	# Start with protocol logging and a shorter RAT refresh interval
//	idscp2-device -cert device.pem -key device-key.pem -ca controller-ca.pem \
//	    -protocol-log /var/log/idscp2-device.cbor -rat-refresh 1m
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/industrial-data-space/idscp2-go/pkg/cert"
	idscp2log "github.com/industrial-data-space/idscp2-go/pkg/log"
	"github.com/industrial-data-space/idscp2-go/pkg/idscp2"
)

type config struct {
	Addr             string
	CertFile         string
	KeyFile          string
	CAFiles          stringList
	LogLevel         string
	ProtocolLogFile  string
	HandshakeTimeout time.Duration
	RatTimeout       time.Duration
	RatRefresh       time.Duration
	DatValidity      time.Duration
}

// stringList collects repeated -ca flags into a slice.
type stringList []string

func (s *stringList) String() string     { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

var cfg config

func init() {
	flag.StringVar(&cfg.Addr, "addr", ":29292", "Listen address")
	flag.StringVar(&cfg.CertFile, "cert", "", "PEM certificate chain presented during the TLS handshake")
	flag.StringVar(&cfg.KeyFile, "key", "", "PEM private key matching -cert")
	flag.Var(&cfg.CAFiles, "ca", "PEM file of trusted peer certificates (repeatable)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.ProtocolLogFile, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", 5*time.Second, "Bound on STATE_WAIT_FOR_HELLO")
	flag.DurationVar(&cfg.RatTimeout, "rat-timeout", 20*time.Second, "RAT timer armed on HELLO; ignored if it fires during RAT")
	flag.DurationVar(&cfg.RatRefresh, "rat-refresh", 10*time.Minute, "How often STATE_ESTABLISHED re-runs RAT")
	flag.DurationVar(&cfg.DatValidity, "dat-validity", time.Hour, "Validity this device grants its own DAT")
}

func main() {
	flag.Parse()
	setupLogging(cfg.LogLevel)

	if cfg.CertFile == "" || cfg.KeyFile == "" || len(cfg.CAFiles) == 0 {
		log.Fatal("idscp2-device: -cert, -key, and at least one -ca are required")
	}

	log.Println("IDSCP2 Reference Device")
	log.Println("========================")
	log.Printf("Listen address: %s", cfg.Addr)

	keyStore := cert.NewMemoryKeyStore()
	if err := keyStore.LoadCertificate("device", cfg.CertFile, cfg.KeyFile); err != nil {
		log.Fatalf("load identity: %v", err)
	}

	trustStore := cert.NewTrustStore()
	for _, caFile := range cfg.CAFiles {
		ca, err := cert.ReadCertFile(caFile)
		if err != nil {
			log.Fatalf("load trusted CA %s: %v", caFile, err)
		}
		trustStore.AddCertificate(ca)
	}

	protocolLogger, closeLogger := buildLogger(cfg.ProtocolLogFile)
	defer closeLogger()

	idscpCfg := idscp2.Default()
	idscpCfg.CertificateAlias = "device"
	idscpCfg.KeyStore = keyStore
	idscpCfg.TrustStore = trustStore
	idscpCfg.Logger = protocolLogger
	idscpCfg.HandshakeTimeout = cfg.HandshakeTimeout
	idscpCfg.RatTimeout = cfg.RatTimeout
	idscpCfg.RatRefreshInterval = cfg.RatRefresh
	idscpCfg.DatProvider = func() ([]byte, time.Duration) {
		return []byte("idscp2-device-dat"), cfg.DatValidity
	}
	idscpCfg.DatVerifier = func([]byte) (time.Duration, error) {
		return cfg.DatValidity, nil
	}

	server, err := idscp2.Listen("tcp", cfg.Addr, idscpCfg)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	log.Printf("Listening on %s", server.Addr())

	go func() {
		if err := server.Serve(handleConnection); err != nil {
			log.Printf("serve: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("received signal: %v", sig)

	log.Println("shutting down...")
	if err := server.Close(); err != nil {
		log.Printf("close listener: %v", err)
	}
	log.Println("goodbye!")
}

// handleConnection wires a freshly accepted connection's callbacks: it logs
// the accept, every received message, errors and the close to the standard
// logger and echoes every message back to the sender, prefixed with the
// connection id, demonstrating the simplest possible STATE_ESTABLISHED
// application behavior.
func handleConnection(conn *idscp2.Connection) {
	log.Printf("[%s] accepted", conn.ID())
	conn.OnMessage(func(payload []byte) {
		log.Printf("[%s] received %d bytes: %q", conn.ID(), len(payload), payload)
		reply := append([]byte(fmt.Sprintf("%s: ", conn.ID())), payload...)
		if err := conn.Send(reply); err != nil {
			log.Printf("[%s] echo failed: %v", conn.ID(), err)
		}
	})
	conn.OnError(func(kind idscp2.ErrorKind) {
		log.Printf("[%s] error: %v", conn.ID(), kind)
	})
	conn.OnClose(func() {
		log.Printf("[%s] closed", conn.ID())
	})
}

// buildLogger returns the protocol-event logger requested by -protocol-log,
// always paired with a console slog sink so operators see traffic even
// without a file configured; combined through a MultiLogger when both are
// active. The returned close func is always safe to defer.
func buildLogger(path string) (idscp2log.Logger, func()) {
	console := idscp2log.NewSlogAdapter(slog.Default())
	if path == "" {
		return console, func() {}
	}
	fileLogger, err := idscp2log.NewFileLogger(path)
	if err != nil {
		log.Fatalf("open protocol log: %v", err)
	}
	log.Printf("protocol logging to: %s", path)
	return idscp2log.NewMultiLogger(console, fileLogger), func() {
		if err := fileLogger.Close(); err != nil {
			log.Printf("close protocol log: %v", err)
		}
	}
}

func setupLogging(level string) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	var slogLevel slog.Level
	switch level {
	case "debug":
		log.SetFlags(log.Ltime | log.Lmicroseconds | log.Lshortfile)
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		log.SetFlags(log.Ltime)
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
}
