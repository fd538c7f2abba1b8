// Command garage-opener drives a garage door motor from limit switches and a
// wall button, and reports door state over MQTT and HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/sweeney/garage-opener/internal/config"
	"github.com/sweeney/garage-opener/internal/door"
	"github.com/sweeney/garage-opener/internal/gpio"
	"github.com/sweeney/garage-opener/internal/mqtt"
	"github.com/sweeney/garage-opener/internal/notify"
	"github.com/sweeney/garage-opener/internal/status"
	"github.com/sweeney/garage-opener/internal/tick"
	"github.com/sweeney/garage-opener/internal/web"
)

// options holds the command-line flags. Only flags given explicitly
// override the config file.
type options struct {
	configPath string
	printState bool

	set        map[string]bool
	tickMode   string
	tickPeriod time.Duration
	heartbeat  time.Duration
	broker     string
	prefix     string
	httpAddr   string
}

func parseFlags(args []string) (*options, error) {
	o := &options{set: map[string]bool{}}
	fs := flag.NewFlagSet("garage-opener", flag.ContinueOnError)
	fs.StringVar(&o.configPath, "config", "", "Path to YAML config file (empty for built-in defaults)")
	fs.BoolVar(&o.printState, "print-state", false, "Print current inputs and door state and exit")
	fs.StringVar(&o.tickMode, "tick-mode", tick.ModeLoop, `Tick source: "loop" or "timer"`)
	fs.DurationVar(&o.tickPeriod, "tick", tick.DefaultPeriod, "Control loop tick period")
	fs.DurationVar(&o.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval (0 to disable)")
	fs.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	fs.StringVar(&o.prefix, "prefix", mqtt.DefaultPrefix, "MQTT topic prefix")
	fs.StringVar(&o.httpAddr, "http", ":80", "HTTP status address (empty to disable)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

// loadConfig reads the config file and applies explicit flag overrides.
func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if o.set["tick-mode"] {
		cfg.TickMode = o.tickMode
	}
	if o.set["tick"] {
		cfg.TickPeriod = o.tickPeriod
	}
	if o.set["heartbeat"] {
		cfg.Heartbeat = o.heartbeat
	}
	if o.set["broker"] {
		cfg.MQTT.Broker = o.broker
	}
	if o.set["prefix"] {
		cfg.MQTT.Prefix = o.prefix
	}
	if o.set["http"] {
		cfg.HTTP.Addr = o.httpAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	cfg, err := loadConfig(opts)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	if err := run(cfg, opts.printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(cfg *config.Config, printState bool) error {
	// Initialize GPIO
	reader, err := gpio.NewRealReader(cfg.GPIOConfig())
	if err != nil {
		return fmt.Errorf("init gpio inputs: %w", err)
	}
	defer reader.Close()

	// Print state mode
	if printState {
		return printInputs(os.Stdout, reader, cfg.Door.InvertLimitSwitches)
	}

	writer, err := gpio.NewRealWriter(cfg.GPIOConfig())
	if err != nil {
		return fmt.Errorf("init gpio outputs: %w", err)
	}
	defer writer.Close()

	// Status tracker before anything publishes, so snapshots are available.
	tracker := status.NewTracker(time.Now(), cfg.StatusConfig(), cfg.HTTP.AlertRetention)
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}

	// Initialize MQTT. Commands may arrive before the controller exists.
	var remote remoteTrigger
	var publisher interface {
		mqtt.Publisher
		mqtt.ConnectionStatus
	} = disabledPublisher{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(mqtt.Options{
			Broker:     cfg.MQTT.Broker,
			ClientID:   cfg.MQTT.ClientID,
			Prefix:     cfg.MQTT.Prefix,
			BufferSize: cfg.MQTT.BufferSize,
			OnCommand:  remote.onCommand,
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		publisher = p
	}
	defer publisher.Close()
	tracker.AttachMQTT(publisher.IsConnected)

	notifier := notify.NewPublisher(cfg.EventBuffer, time.Now,
		notify.LogSink{}, tracker, mqtt.Sink{Publisher: publisher})

	ctrl, err := startController(cfg.DoorConfig(), reader, writer, notifier, publisher, tracker)
	if err != nil {
		return err
	}
	remote.ctrl.Store(ctrl)

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		srv := web.New(cfg.HTTP.Addr, tracker, ctrl, web.Options{
			TriggerRate:  rate.Limit(cfg.HTTP.TriggerRate),
			TriggerBurst: cfg.HTTP.TriggerBurst,
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTP.Addr)
	}

	src, err := tick.New(cfg.TickMode, cfg.TickPeriod)
	if err != nil {
		return fmt.Errorf("init tick source: %w", err)
	}

	var heartbeat <-chan time.Time
	if cfg.Heartbeat > 0 {
		t := time.NewTicker(cfg.Heartbeat)
		defer t.Stop()
		heartbeat = t.C
	}

	log.Printf("started: tick=%v mode=%s broker=%s heartbeat=%v state=%s",
		cfg.TickPeriod, cfg.TickMode, cfg.MQTT.Broker, cfg.Heartbeat, ctrl.State())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(loop{
		ctrl:      ctrl,
		notifier:  notifier,
		publisher: publisher,
		tracker:   tracker,
		source:    src,
		heartbeat: heartbeat,
	}, sigCh)
}

// startController creates the door controller and attaches it to the
// tracker. A startup with both limit switches asserted is reported as a
// FAULT system event before the error is returned.
func startController(cfg door.Config, in door.Inputs, out door.Outputs, notifier *notify.Publisher,
	pub mqtt.Publisher, tracker *status.Tracker) (*door.Controller, error) {
	ctrl, err := door.New(cfg, in, out, notifier)
	if err != nil {
		if errors.Is(err, door.ErrInvalidLimitSwitch) {
			publishSystem(pub, tracker, "FAULT", door.InvalidLimitSwitch.String())
		}
		return nil, fmt.Errorf("init door: %w", err)
	}
	tracker.Attach(ctrl.Snapshot, notifier.Dropped)
	return ctrl, nil
}

// loop bundles what runLoop drives.
type loop struct {
	ctrl      *door.Controller
	notifier  *notify.Publisher
	publisher mqtt.Publisher
	tracker   *status.Tracker
	source    tick.Source
	heartbeat <-chan time.Time
}

// runLoop runs the tick source and the event publisher until a signal
// arrives or either of them fails, then stops the motor and publishes
// SHUTDOWN.
func runLoop(l loop, sig <-chan os.Signal) error {
	publishSystem(l.publisher, l.tracker, "STARTUP", "")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Tick errors repeat at the tick rate while a line is faulty.
	tickErrLog := &rate.Sometimes{First: 3, Interval: 10 * time.Second}
	step := func() {
		if err := l.ctrl.Tick(); err != nil {
			tickErrLog.Do(func() { log.Printf("tick error: %v", err) })
		}
	}

	g.Go(func() error { return l.notifier.Run(gctx) })
	g.Go(func() error { return l.source.Run(gctx, step) })

	reason := ""
	for reason == "" {
		select {
		case s := <-sig:
			log.Printf("received %v, shutting down", s)
			reason = signalName(s)

		case <-l.heartbeat:
			if net := readNetworkInfo(); net != nil {
				l.tracker.SetNetwork(net)
			}
			snap := l.tracker.Snapshot()
			log.Printf("heartbeat: uptime=%v state=%s changes=%d dropped=%d",
				snap.Uptime().Truncate(time.Second), snap.StateName(), snap.Counts.StateChanges, snap.Dropped)
			publishSystem(l.publisher, l.tracker, "HEARTBEAT", "")

		case <-gctx.Done():
			reason = "TERMINATED"
		}
	}

	cancel()
	err := g.Wait()
	// The last step may have emitted after the publisher stopped.
	l.notifier.Flush()

	if serr := l.ctrl.Shutdown(); serr != nil {
		log.Printf("failed to stop outputs: %v", serr)
	}
	publishSystem(l.publisher, l.tracker, "SHUTDOWN", reason)
	return err
}

func publishSystem(p mqtt.Publisher, tracker *status.Tracker, event, reason string) {
	snap := tracker.Snapshot()
	ev := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := p.PublishSystem(ev); err != nil {
		log.Printf("failed to publish %s event: %v", event, err)
		return
	}
	log.Printf("published %s event", event)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

// remoteTrigger forwards MQTT commands to the controller once it exists.
type remoteTrigger struct {
	ctrl atomic.Pointer[door.Controller]
}

func (r *remoteTrigger) onCommand(cmd mqtt.Command) {
	if cmd != mqtt.CommandTrigger {
		return
	}
	c := r.ctrl.Load()
	if c == nil {
		log.Printf("mqtt: trigger ignored, controller not ready")
		return
	}
	if !c.RequestTrigger() {
		log.Printf("mqtt: trigger ignored, previous request pending")
		return
	}
	log.Printf("mqtt: remote trigger")
}

// disabledPublisher stands in when no broker is configured.
type disabledPublisher struct{}

func (disabledPublisher) Publish(notify.Event) error           { return nil }
func (disabledPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (disabledPublisher) Close() error                         { return nil }
func (disabledPublisher) IsConnected() bool                    { return false }

func printInputs(w io.Writer, r gpio.Reader, invertLimitSwitches bool) error {
	lv, err := r.Read()
	if err != nil {
		return fmt.Errorf("read gpio: %w", err)
	}
	fmt.Fprintf(w, "LIMIT_A: %s, LIMIT_B: %s, BUTTON: %s, STATE: %s\n",
		levelString(lv.LimitA), levelString(lv.LimitB), levelString(lv.Button),
		door.InitialState(lv, invertLimitSwitches))
	return nil
}

func levelString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
