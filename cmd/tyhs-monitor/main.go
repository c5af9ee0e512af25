// Command tyhs-monitor watches for Teensy boards, opens the first serial
// interface matching its filters, and streams its traffic to stdout (and
// stdin to the board), logging connect/disconnect events as structured
// logs.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ardnew/tyhs/board"
	"github.com/ardnew/tyhs/match"
	"github.com/ardnew/tyhs/pkg"
	"github.com/ardnew/tyhs/port"
)

const componentMonitor pkg.Component = "tyhs-monitor"

var (
	verbose   = flag.Bool("v", false, "enable debug logging")
	jsonOut   = flag.Bool("json", false, "log in JSON instead of text")
	vendorID  = flag.String("vid", "", "filter by vendor ID (hex)")
	productID = flag.String("pid", "", "filter by product ID (hex)")
	ifaceType = flag.String("type", "", "filter by interface type: hid or serial")

	baudrate  = flag.Int("baudrate", 115200, "serial baud rate")
	databits  = flag.Int("databits", 8, "serial data bits (5-8)")
	stopbits  = flag.Int("stopbits", 1, "serial stop bits (1-2)")
	parity    = flag.String("parity", "none", "serial parity: none, even, odd, mark, space")
	flow      = flag.String("flow", "none", "flow control: none, rtscts, xonxoff")
	direction = flag.String("direction", "both", "traffic to stream: in, out, both")

	raw        = flag.Bool("raw", false, "print received bytes as hex instead of text")
	silent     = flag.Bool("silent", false, "suppress connect/disconnect logs")
	reconnect  = flag.Bool("reconnect", true, "keep watching after the board disconnects")
	timeoutEOF = flag.Int("timeout-eof", 0, "ms of consecutive zero-byte reads treated as EOF, 0 disables")
)

func parseParity(s string) (port.Parity, error) {
	switch s {
	case "none", "":
		return port.ParityOff, nil
	case "even":
		return port.ParityEven, nil
	case "odd":
		return port.ParityOdd, nil
	case "mark":
		return port.ParityMark, nil
	case "space":
		return port.ParitySpace, nil
	default:
		return 0, fmt.Errorf("unknown parity %q", s)
	}
}

func buildSerialConfig() (port.SerialConfig, error) {
	cfg := port.DefaultSerialConfig()
	cfg.Baud = *baudrate
	cfg.DataBits = *databits
	cfg.StopBits = *stopbits

	p, err := parseParity(*parity)
	if err != nil {
		return cfg, err
	}
	cfg.Parity = p

	switch *flow {
	case "none", "":
	case "rtscts":
		cfg.RTS = port.RTSFlow
	case "xonxoff":
		cfg.XonXoff = port.XonXoffInOut
	default:
		return cfg, fmt.Errorf("unknown flow control %q", *flow)
	}
	return cfg, cfg.Validate()
}

func buildSpec() (match.Spec, error) {
	s := "0:0"
	if *vendorID != "" || *productID != "" {
		vid := *vendorID
		pid := *productID
		if vid == "" {
			vid = "0"
		}
		if pid == "" {
			pid = "0"
		}
		s = vid + ":" + pid
	}
	if *ifaceType != "" {
		s += "/" + *ifaceType
	}
	return match.Parse(s)
}

// outputEvent is one line this command logs or prints. Every event funnels
// through a single channel so concurrent readers/writers across boards
// never interleave their stdout writes.
type outputEvent interface{ emit() }

type boardEvent struct {
	action string
	tag    string
	model  string
	vendor string
	caps   board.Capability
}

func (e boardEvent) emit() {
	if *silent {
		return
	}
	attrs := []any{"tag", e.tag, "model", e.model, "capabilities", e.caps}
	if e.vendor != "" {
		attrs = append(attrs, "vendor", e.vendor)
	}
	pkg.LogInfo(componentMonitor, e.action, attrs...)
}

type streamEvent struct {
	direction string
	data      []byte
}

func (e streamEvent) emit() {
	if e.direction != "in" {
		return
	}
	if *raw {
		fmt.Printf("in %s\n", hex.EncodeToString(e.data))
		return
	}
	os.Stdout.Write(e.data)
}

type errorEvent struct {
	message string
	err     error
}

func (e errorEvent) emit() {
	pkg.LogError(componentMonitor, e.message, "error", e.err)
}

var outputCh = make(chan outputEvent, 256)

func outputLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-outputCh:
			ev.emit()
		}
	}
}

func main() {
	flag.Parse()

	if *verbose {
		pkg.SetLogLevel(slog.LevelDebug)
	}
	if *jsonOut {
		pkg.SetLogFormat(pkg.LogFormatJSON)
	}

	cfg, err := buildSerialConfig()
	if err != nil {
		pkg.LogError(componentMonitor, "invalid serial configuration", "error", err)
		os.Exit(1)
	}
	spec, err := buildSpec()
	if err != nil {
		pkg.LogError(componentMonitor, "invalid filter", "error", err)
		os.Exit(1)
	}

	names := board.NewNameDatabase()
	names.Load()

	set := board.NewBoardSet([]match.Spec{spec}, 0)
	if err := set.Start(); err != nil {
		pkg.LogError(componentMonitor, "failed to start board monitor", "error", err)
		os.Exit(1)
	}
	defer set.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go outputLoop(ctx)
	go refreshLoop(ctx, set)

	var streaming sync.Map
	go watchBoards(ctx, set, cfg, names, &streaming)

	pkg.LogInfo(componentMonitor, "started", "filter", spec.String())

	<-sigCh
	pkg.LogInfo(componentMonitor, "shutting down")
	cancel()
}

// refreshLoop drains the BoardSet's underlying Monitor on an interval,
// since there is no OS-backed poll loop driving stdin/timer events here
// the way a GUI event loop would.
func refreshLoop(ctx context.Context, set *board.BoardSet) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = set.Refresh(func(b *board.Board) {})
		}
	}
}

func watchBoards(ctx context.Context, set *board.BoardSet, cfg port.SerialConfig, names *board.NameDatabase, streaming *sync.Map) {
	var everStreamed sync.Map

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		set.Sweep()
		for _, b := range set.List() {
			if b.Status() != board.StatusOnline || !b.Capabilities().Has(board.CapSerial) {
				continue
			}
			if !*reconnect {
				if _, done := everStreamed.Load(b.Tag()); done {
					continue
				}
			}
			if _, already := streaming.LoadOrStore(b.Tag(), struct{}{}); already {
				continue
			}
			everStreamed.Store(b.Tag(), struct{}{})
			go streamBoard(ctx, b, cfg, names, streaming)
		}
	}
}

func vendorName(names *board.NameDatabase, vid uint16) string {
	if v := names.LookupVendor(vid); v != "" {
		return v
	}
	return fmt.Sprintf("%04x", vid)
}

func vendorFor(names *board.NameDatabase, b *board.Board) string {
	if b.Model().Name != "" && b.Model().Name != "unknown" {
		return ""
	}
	vid, ok := b.VendorID()
	if !ok {
		return ""
	}
	return vendorName(names, vid)
}

func streamBoard(ctx context.Context, b *board.Board, cfg port.SerialConfig, names *board.NameDatabase, streaming *sync.Map) {
	defer streaming.Delete(b.Tag())

	outputCh <- boardEvent{action: "board online", tag: b.Tag(), model: b.Model().Name, vendor: vendorFor(names, b), caps: b.Capabilities()}
	defer func() {
		outputCh <- boardEvent{action: "board offline", tag: b.Tag(), model: b.Model().Name}
	}()

	p, err := board.OpenInterface(b, board.CapSerial, cfg)
	if err != nil {
		outputCh <- errorEvent{message: "failed to open serial port", err: err}
		return
	}
	defer p.Close()

	if *direction == "out" || *direction == "both" {
		go writeStdinToPort(ctx, p)
	}
	if *direction == "in" || *direction == "both" {
		readPortToStdout(ctx, b, p)
	} else {
		<-ctx.Done()
	}
}

func writeStdinToPort(ctx context.Context, p *port.Port) {
	buf := make([]byte, 4096)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return
		}
		if n == 0 {
			continue
		}
		if _, err := p.Write(buf[:n], 5000); err != nil {
			outputCh <- errorEvent{message: "write error", err: err}
			return
		}
	}
}

func readPortToStdout(ctx context.Context, b *board.Board, p *port.Port) {
	buf := make([]byte, 4096)
	idleSince := time.Time{}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if b.Status() != board.StatusOnline {
			return
		}

		n, err := p.Read(buf, 500)
		if err != nil {
			outputCh <- errorEvent{message: "read error", err: err}
			return
		}
		if n == 0 {
			if *timeoutEOF > 0 {
				if idleSince.IsZero() {
					idleSince = time.Now()
				} else if time.Since(idleSince) > time.Duration(*timeoutEOF)*time.Millisecond {
					return
				}
			}
			continue
		}
		idleSince = time.Time{}
		outputCh <- streamEvent{direction: "in", data: append([]byte(nil), buf[:n]...)}
	}
}
