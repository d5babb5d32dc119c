package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"qbreach/pkg/log"
	"qbreach/pkg/relay"
)

func main() {
	port := flag.Int("port", 8888, "Port to listen on")
	logLevel := flag.String("log-level", "info", "Log level")
	certFile := flag.String("cert-file", "", "TLS certificate file")
	keyFile := flag.String("key-file", "", "TLS key file")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}

	logger := log.New(os.Stdout, "", log.DefaultLoggerFlag, parsedLogLevel)
	log.SetDefaultLogger(logger)
	log.Info("Log level set to %s", parsedLogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tlsConfig *relay.TLSConfig
	if *certFile != "" && *keyFile != "" {
		tlsConfig = &relay.TLSConfig{
			CertFile: *certFile,
			KeyFile:  *keyFile,
		}
	}

	server := relay.NewServer(relay.NewServerOptions{
		Port: *port,
		TLS:  tlsConfig,
	})
	server.Start(ctx)
}
