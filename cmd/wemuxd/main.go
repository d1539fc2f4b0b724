//go:build windows

// Command wemuxd runs the duplication engine as a foreground process: it
// starts mirroring the default system audio output to every managed
// render endpoint until interrupted.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-ole/go-ole"
	"github.com/spf13/pflag"

	"github.com/superyngo/wemux/internal/capture"
	"github.com/superyngo/wemux/internal/directory"
	"github.com/superyngo/wemux/internal/engine"
	"github.com/superyngo/wemux/internal/render"
	"github.com/superyngo/wemux/internal/settings"
	"github.com/superyngo/wemux/internal/volume"
	"github.com/superyngo/wemux/internal/wasapi"
)

func main() {
	var (
		bufferMs      = pflag.Uint32("buffer-ms", 50, "ring buffer size, in milliseconds of audio")
		useAllOutputs = pflag.Bool("all-outputs", false, "duplicate to every render endpoint instead of only HDMI ones")
		settingsPath  = pflag.String("settings", "", "path to the device-enabled TOML settings file")
		logLevel      = pflag.String("log-level", "info", "debug|info|warn|error")
	)
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if lvl, err := log.ParseLevel(*logLevel); err == nil {
		logger.SetLevel(lvl)
	}

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		fatal(logger, 1, "initialize COM", err)
	}
	defer ole.CoUninitialize()

	cfg := engine.Configuration{
		BufferMs:      *bufferMs,
		UseAllOutputs: *useAllOutputs,
	}

	if *settingsPath != "" {
		store, err := settings.Load(*settingsPath)
		if err != nil {
			fatal(logger, 1, "load settings", err)
		}
		cfg.InitialPausedIDs = store.InitialPausedIDs()
	}

	enumerator, err := wasapi.NewDeviceEnumerator()
	if err != nil {
		fatal(logger, 1, "create device enumerator", err)
	}

	loopback, err := capture.NewLoopbackOpener()
	if err != nil {
		fatal(logger, 1, "open loopback capture", err)
	}
	defer loopback.Close()

	dir := directory.NewWASAPIDirectory(enumerator)

	probeFormat, err := loopback.OpenDefault()
	if err != nil {
		fatal(logger, 1, "probe default capture format", err)
	}
	format := probeFormat.Format()
	_ = probeFormat.Stop()

	renderOpener := render.NewWASAPIOpener(enumerator, format, int(*bufferMs))
	volumeProbe, err := volume.NewWASAPIProbe(enumerator)
	if err != nil {
		fatal(logger, 1, "open volume probe", err)
	}

	eng := engine.New(cfg, engine.Deps{
		CaptureOpener: loopback,
		RenderOpener:  renderOpener,
		Directory:     dir,
		NewNotifier: func() (directory.Notifier, error) {
			return directory.NewWASAPINotifier(enumerator)
		},
		VolumeProbe: volumeProbe,
		Logger:      logger,
	})

	if err := eng.Start(); err != nil {
		if errors.Is(err, engine.ErrNoTargetDevices) {
			fatal(logger, 2, "start engine", err)
		}
		fatal(logger, 1, "start engine", err)
	}
	logger.Info("wemuxd running", "press", "ctrl+c to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig

	logger.Info("stopping")
	if err := eng.Stop(); err != nil {
		fatal(logger, 1, "stop engine", err)
	}
}

func fatal(logger *log.Logger, code int, action string, err error) {
	logger.Error(fmt.Sprintf("%s failed", action), "err", err)
	time.Sleep(10 * time.Millisecond) // let the log line flush before exit
	os.Exit(code)
}
