package util

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/mpapenbr/qualipredict/log"
	"github.com/mpapenbr/qualipredict/pkg/config"
	"github.com/mpapenbr/qualipredict/pkg/refdata"
	"github.com/mpapenbr/qualipredict/pkg/utils"
)

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger replaces the default logger according to the log flags.
func SetupLogger() *log.Logger {
	var logger *log.Logger
	opts := []log.Option{
		log.WithCaller(true),
		log.AddCallerSkip(1),
		log.WithFilter(config.LogFilter),
	}
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			ParseLogLevel(config.LogLevel, log.InfoLevel),
			opts...)
	default:
		logger = log.DevLogger(
			os.Stderr,
			ParseLogLevel(config.LogLevel, log.InfoLevel),
			opts...)
	}
	log.ResetDefault(logger)
	return logger
}

// LoadReferenceData replaces the embedded reference data if a file was
// configured.
func LoadReferenceData() error {
	if config.ReferenceData == "" {
		return nil
	}
	t, err := refdata.LoadFile(config.ReferenceData)
	if err != nil {
		return err
	}
	refdata.SetDefault(t)
	log.Info("Using reference data", log.String("file", config.ReferenceData))
	return nil
}

// WaitForServices waits until all addrs accept tcp connections. Empty addrs
// are ignored.
func WaitForServices(ctx context.Context, addrs ...string) error {
	timeout, err := time.ParseDuration(config.WaitForServices)
	if err != nil {
		log.Warn("Invalid duration value. Setting default 60s", log.ErrorField(err))
		timeout = 60 * time.Second
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(addrs))
	for _, addr := range addrs {
		if addr == "" {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if wErr := utils.WaitForTCP(ctx, addr, timeout); wErr != nil {
				errs <- wErr
			}
		}()
	}
	log.Debug("Waiting for connection checks to return")
	wg.Wait()
	close(errs)
	if wErr, ok := <-errs; ok {
		return fmt.Errorf("required services not ready: %w", wErr)
	}
	log.Debug("Required services are available")
	return nil
}
