// Command meterctl reads, reconfigures and inspects a single meter.
//
//	meterctl --config config.yaml --slave 5 read
//	meterctl --config config.yaml --slave 5 write --baud 9600 --parity-new 0 --slave-new 6
//	meterctl --config config.yaml history --device 5 --limit 20
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"meters-poller/internal/config"
	"meters-poller/internal/history"
	"meters-poller/internal/logger"
	"meters-poller/internal/meter"
	"meters-poller/internal/transport"
)

// options are the flags shared by every subcommand
type options struct {
	configPath string
	port       string
	baudrate   int
	parity     string
	stopbits   int
	bytesize   int
	timeout    float64
	protocol   string
	host       string
	tcpPort    int
	slave      int
	meterType  string
	logLevel   string

	set map[string]bool
}

// optionalFloat is a float flag that remembers whether it was given
type optionalFloat struct {
	value *float64
}

func (o *optionalFloat) String() string {
	if o.value == nil {
		return ""
	}
	return strconv.FormatFloat(*o.value, 'f', -1, 64)
}

func (o *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	o.value = &v
	return nil
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, rest, err := parseGlobal(args, stderr)
	if err != nil {
		return 2
	}
	if len(rest) == 0 {
		fmt.Fprintln(stderr, "usage: meterctl [flags] read|write|history [command flags]")
		return 2
	}

	logger.Init(&logger.LoggingConfig{Level: opts.logLevel})

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	switch rest[0] {
	case "read":
		err = cmdRead(ctx, cfg, opts, stdout)
	case "write":
		err = cmdWrite(ctx, cfg, opts, rest[1:], stdout, stderr)
	case "history":
		err = cmdHistory(ctx, cfg, opts, rest[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", rest[0])
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "❌ %v\n", err)
		return 1
	}
	return 0
}

func parseGlobal(args []string, stderr io.Writer) (*options, []string, error) {
	opts := &options{set: map[string]bool{}}
	fs := flag.NewFlagSet("meterctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "YAML config with serial/tcp defaults and the device list")
	fs.StringVar(&opts.port, "port", "", "Serial port")
	fs.IntVar(&opts.baudrate, "baudrate", 0, "Serial baud rate")
	fs.StringVar(&opts.parity, "parity", "", "Serial parity: E, O or N")
	fs.IntVar(&opts.stopbits, "stopbits", 0, "Serial stop bits")
	fs.IntVar(&opts.bytesize, "bytesize", 0, "Serial data bits")
	fs.Float64Var(&opts.timeout, "timeout", 0, "Link timeout in seconds")
	fs.StringVar(&opts.protocol, "protocol", "", "rtu (default) or tcp")
	fs.StringVar(&opts.host, "host", "", "Modbus TCP host")
	fs.IntVar(&opts.tcpPort, "tcp-port", 0, "Modbus TCP port")
	fs.IntVar(&opts.slave, "slave", 1, "Current Modbus unit id")
	fs.StringVar(&opts.meterType, "type", "", "Meter type: "+strings.Join(meter.Types(), ", "))
	fs.StringVar(&opts.logLevel, "log", logger.LogLevelWarn, "Logging level")
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, fs.Args(), nil
}

// loadConfig reads the optional config file; without one the built-in defaults apply
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

// resolveType picks --type, else the type of the configured device with the same id, else dds661
func resolveType(cfg *config.Config, opts *options) (*meter.Family, error) {
	if opts.meterType != "" {
		return meter.Lookup(opts.meterType)
	}
	if d, ok := cfg.FindDevice(opts.slave); ok {
		return meter.Lookup(d.TypeTag())
	}
	return meter.Lookup(meter.DefaultType)
}

// opener builds the transport from the config with command-line overrides applied
func opener(cfg *config.Config, opts *options) transport.Opener {
	d, ok := cfg.FindDevice(opts.slave)
	if !ok {
		d = config.Device{ID: opts.slave}
	}
	if opts.protocol != "" {
		d.Protocol = opts.protocol
	}

	if d.ProtocolOrDefault() == transport.ProtocolTCP {
		ep := cfg.TCPEndpoint(d)
		if opts.host != "" {
			ep.Host = opts.host
		}
		if opts.tcpPort != 0 {
			ep.Port = opts.tcpPort
		}
		if opts.set["timeout"] {
			ep.Timeout = time.Duration(opts.timeout * float64(time.Second))
		}
		return transport.NewTCPOpener(ep)
	}

	link := cfg.LinkConfig()
	if opts.port != "" {
		link.Port = opts.port
	}
	if opts.baudrate != 0 {
		link.BaudRate = opts.baudrate
	}
	if opts.parity != "" {
		link.Parity = strings.ToUpper(opts.parity)
	}
	if opts.stopbits != 0 {
		link.StopBits = opts.stopbits
	}
	if opts.bytesize != 0 {
		link.DataBits = opts.bytesize
	}
	if opts.set["timeout"] {
		link.Timeout = time.Duration(opts.timeout * float64(time.Second))
	}
	return transport.NewRTUOpener(link)
}

func newDriver(cfg *config.Config, opts *options) (*meter.Driver, error) {
	if opts.slave < 1 || opts.slave > 247 {
		return nil, fmt.Errorf("--slave %d out of range 1..247", opts.slave)
	}
	family, err := resolveType(cfg, opts)
	if err != nil {
		return nil, err
	}
	return meter.NewDriver(family, opener(cfg, opts), uint8(opts.slave), meter.WithDeviceID(opts.slave)), nil
}

type deviceJSON struct {
	Type         string `json:"type"`
	Manufacturer string `json:"manufacturer"`
	Unit         int    `json:"unit"`
}

type paramsJSON struct {
	meter.Params
	ParityDesc string `json:"parity_desc"`
}

func cmdRead(ctx context.Context, cfg *config.Config, opts *options, stdout io.Writer) error {
	d, err := newDriver(cfg, opts)
	if err != nil {
		return err
	}
	family := d.Family()

	params, err := d.ReadParams(ctx)
	if err != nil {
		return err
	}
	m, err := d.ReadMeasurements(ctx)
	if err != nil {
		return err
	}

	return printJSON(stdout, map[string]interface{}{
		"device":       deviceJSON{Type: family.Type, Manufacturer: family.Manufacturer, Unit: opts.slave},
		"params":       paramsJSON{Params: params, ParityDesc: family.Codec.DescribeParity(params.Parity)},
		"measurements": m.Values(),
	})
}

// writeNotes are the operator reminders printed after a write
func writeNotes(req meter.WriteRequest) []string {
	notes := []string{}
	if req.Slave != nil {
		notes = append(notes, "If SLAVE changed, re-run with --slave <new>")
	}
	if req.Baud != nil || req.Parity != nil {
		notes = append(notes, "If PARITY/BAUD changed, reconnect with new serial settings")
	}
	return notes
}

func cmdWrite(ctx context.Context, cfg *config.Config, opts *options, args []string, stdout, stderr io.Writer) error {
	var baud, parity, slave optionalFloat
	fs := flag.NewFlagSet("write", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&baud, "baud", "New baud rate, e.g. 9600 (SDM230 maps it to its enum code)")
	fs.Var(&parity, "parity-new", "New parity code (device-specific)")
	fs.Var(&slave, "slave-new", "New Modbus unit id 1..247")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := meter.WriteRequest{Baud: baud.value, Parity: parity.value, Slave: slave.value}
	if req.Slave != nil && !meter.ValidUnitID(*req.Slave) {
		return fmt.Errorf("--slave-new %v must be a whole number in %d..%d", *req.Slave, meter.MinUnitID, meter.MaxUnitID)
	}

	d, err := newDriver(cfg, opts)
	if err != nil {
		return err
	}
	report, err := d.WriteParams(ctx, req)
	if err != nil {
		return err
	}

	return printJSON(stdout, map[string]interface{}{
		"report": report.Map(),
		"unit":   report.UnitID,
		"note":   writeNotes(req),
	})
}

type historyJSON struct {
	ReadAt time.Time    `json:"read_at"`
	Record meter.Record `json:"record"`
}

func cmdHistory(ctx context.Context, cfg *config.Config, opts *options, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	fs.SetOutput(stderr)
	device := fs.Int("device", opts.slave, "Device id")
	limit := fs.Int("limit", 10, "Number of records, newest first")
	path := fs.String("db", cfg.History.Path, "History database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("no history database: set history.path or pass --db")
	}

	store, err := history.Open(*path)
	if err != nil {
		return err
	}
	defer store.Close()

	recs, err := store.Latest(ctx, *device, *limit)
	if err != nil {
		return err
	}
	out := make([]historyJSON, 0, len(recs))
	for _, r := range recs {
		out = append(out, historyJSON{ReadAt: r.ReadAt, Record: r})
	}
	return printJSON(stdout, out)
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
