// Command idscp2-controller is a reference IDSCP2 client endpoint.
//
// This command demonstrates dialing an IDSCP2 server built on
// github.com/industrial-data-space/idscp2-go/pkg/idscp2: it completes the
// mutually authenticated handshake, then drives an interactive send/receive
// loop over the established connection until the user quits or the peer
// closes it.
//
// Usage:
//
//	idscp2-controller [flags]
//
// Flags:
//
//	-addr string          Server address to dial (default "localhost:29292")
//	-cert string          PEM certificate chain presented during the TLS handshake (required)
//	-key string           PEM private key matching -cert (required)
//	-ca string            PEM file of trusted peer certificates, may repeat (required)
//	-log-level string     Log level: debug, info, warn, error (default "info")
//	-protocol-log string  File path for protocol event logging (CBOR format)
//	-handshake-timeout duration   Bound on STATE_WAIT_FOR_HELLO (default 5s)
//	-rat-timeout duration         RAT timer armed on HELLO; ignored if it fires during RAT (default 20s)
//	-rat-refresh duration         How often STATE_ESTABLISHED re-runs RAT (default 10m)
//	-dat-validity duration        Validity this controller grants its own DAT (default 1h)
//
// Interactive Commands:
//
//	<text>      - Send <text> as an IDSCP_DATA payload
//	rerat       - Request a fresh RAT round without closing the connection
//	status      - Print the connection id
//	quit        - Close the connection and exit
//
// Examples:
//
//	# Connect to a device listening on the default port
//	idscp2-controller -addr device.local:29292 -cert ctrl.pem -key ctrl-key.pem -ca device-ca.pem
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/industrial-data-space/idscp2-go/pkg/cert"
	"github.com/industrial-data-space/idscp2-go/pkg/idscp2"
	idscp2log "github.com/industrial-data-space/idscp2-go/pkg/log"
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

type stringList []string

func (s *stringList) String() string     { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error { *s = append(*s, v); return nil }

var cfg config

func init() {
	flag.StringVar(&cfg.Addr, "addr", "localhost:29292", "Server address to dial")
	flag.StringVar(&cfg.CertFile, "cert", "", "PEM certificate chain presented during the TLS handshake")
	flag.StringVar(&cfg.KeyFile, "key", "", "PEM private key matching -cert")
	flag.Var(&cfg.CAFiles, "ca", "PEM file of trusted peer certificates (repeatable)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&cfg.ProtocolLogFile, "protocol-log", "", "File path for protocol event logging (CBOR format)")
	flag.DurationVar(&cfg.HandshakeTimeout, "handshake-timeout", 5*time.Second, "Bound on STATE_WAIT_FOR_HELLO")
	flag.DurationVar(&cfg.RatTimeout, "rat-timeout", 20*time.Second, "RAT timer armed on HELLO; ignored if it fires during RAT")
	flag.DurationVar(&cfg.RatRefresh, "rat-refresh", 10*time.Minute, "How often STATE_ESTABLISHED re-runs RAT")
	flag.DurationVar(&cfg.DatValidity, "dat-validity", time.Hour, "Validity this controller grants its own DAT")
}

func main() {
	flag.Parse()
	setupLogging(cfg.LogLevel)

	if cfg.CertFile == "" || cfg.KeyFile == "" || len(cfg.CAFiles) == 0 {
		log.Fatal("idscp2-controller: -cert, -key, and at least one -ca are required")
	}

	log.Println("IDSCP2 Reference Controller")
	log.Println("============================")
	log.Printf("Dialing: %s", cfg.Addr)

	keyStore := cert.NewMemoryKeyStore()
	if err := keyStore.LoadCertificate("controller", cfg.CertFile, cfg.KeyFile); err != nil {
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
	idscpCfg.CertificateAlias = "controller"
	idscpCfg.KeyStore = keyStore
	idscpCfg.TrustStore = trustStore
	idscpCfg.Logger = protocolLogger
	idscpCfg.HandshakeTimeout = cfg.HandshakeTimeout
	idscpCfg.RatTimeout = cfg.RatTimeout
	idscpCfg.RatRefreshInterval = cfg.RatRefresh
	idscpCfg.DatProvider = func() ([]byte, time.Duration) {
		return []byte("idscp2-controller-dat"), cfg.DatValidity
	}
	idscpCfg.DatVerifier = func([]byte) (time.Duration, error) {
		return cfg.DatValidity, nil
	}

	conn, err := idscp2.Connect("tcp", cfg.Addr, idscpCfg)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	log.Printf("[%s] TLS handshake complete, running RAT", conn.ID())

	closed := make(chan struct{})
	conn.OnMessage(func(payload []byte) {
		fmt.Printf("\n< %s\nidscp2> ", payload)
	})
	conn.OnError(func(kind idscp2.ErrorKind) {
		log.Printf("[%s] error: %v", conn.ID(), kind)
	})
	conn.OnClose(func() {
		log.Printf("[%s] closed", conn.ID())
		close(closed)
	})

	runInteractive(conn, closed)
	log.Println("goodbye!")
}

// runInteractive drives the send/receive loop until the user types "quit" or
// the connection closes out from under it.
func runInteractive(conn *idscp2.Connection, closed <-chan struct{}) {
	printHelp()
	reader := bufio.NewReader(os.Stdin)

	for {
		select {
		case <-closed:
			return
		default:
		}

		fmt.Print("idscp2> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch line {
		case "quit":
			conn.Close()
			<-closed
			return
		case "status":
			fmt.Printf("connection id: %s\n", conn.ID())
		case "rerat":
			if err := conn.RepeatRat(); err != nil {
				fmt.Printf("rerat failed: %v\n", err)
			}
		default:
			if err := conn.Send([]byte(line)); err != nil {
				fmt.Printf("send failed: %v\n", err)
			}
		}
	}
}

func printHelp() {
	fmt.Println("Commands: <text> to send, \"rerat\" to refresh attestation, \"status\", \"quit\"")
}

// buildLogger returns the protocol-event logger requested by -protocol-log,
// always paired with a console slog sink; combined through a MultiLogger
// when both are active. The returned close func is always safe to defer.
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
