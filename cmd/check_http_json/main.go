package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/y0f/check-http-json/internal/checker"
	"github.com/y0f/check-http-json/internal/config"
	"github.com/y0f/check-http-json/internal/jsontree"
	"github.com/y0f/check-http-json/internal/probe"
	"github.com/y0f/check-http-json/internal/verdict"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, &checker.HTTPChecker{UserAgent: "check_http_json/" + version})
	stop()
	os.Exit(int(code))
}

// run executes the plugin and returns its exit status. Anything that keeps
// the check from running is reported as UNKNOWN.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, fetcher checker.Fetcher) verdict.Code {
	a := &app{stdout: stdout, stderr: stderr, fetcher: fetcher, code: verdict.Unknown}
	cmd := a.rootCmd()
	cmd.SetArgs(expandListArgs(cmd.Flags(), args))
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stdout, "UNKNOWN: %v\n", err)
		return verdict.Unknown
	}
	return a.code
}

type app struct {
	stdout  io.Writer
	stderr  io.Writer
	fetcher checker.Fetcher
	code    verdict.Code
	opts    options
}

type options struct {
	configPath string

	host      string
	port      int
	path      string
	ssl       bool
	timeout   int
	auth      string
	data      string
	headers   string
	separator string
	fieldType string

	warning           []string
	critical          []string
	keyExists         []string
	keyExistsCritical []string
	keyEquals         []string
	keyEqualsCritical []string
	metrics           []string

	debug        bool
	insecure     bool
	proxy        string
	blockPrivate bool
	textfile     string
	logFormat    string
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "check_http_json",
		Short: "Nagios plugin checking values in a JSON document served over HTTP",
		Long: `Fetches a JSON document and evaluates existence, equality and range
rules against it, printing one Nagios status line.

Example:
  check_http_json -H localhost -P 8080 -p health -q status,ok -w heap.used,:800 -m heap.used>heap,B`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          a.runCheck,
	}

	f := root.Flags()
	f.SetNormalizeFunc(underscoreToDash)
	o := &a.opts

	f.StringVar(&o.configPath, "config", "", "YAML check definition; flags override its values")
	f.StringVarP(&o.host, "host", "H", "", "Host")
	f.IntVarP(&o.port, "port", "P", 0, "TCP port")
	f.StringVarP(&o.path, "path", "p", "", "Path")
	f.BoolVarP(&o.ssl, "ssl", "s", false, "HTTPS mode")
	f.IntVarP(&o.timeout, "timeout", "t", 0, "Connection timeout (seconds)")
	f.StringVarP(&o.auth, "basic-auth", "B", "", `Basic auth string "username:password"`)
	f.StringVarP(&o.data, "data", "D", "", "The http payload to send as a POST")
	f.StringVarP(&o.headers, "headers", "A", "", "The http headers in JSON format")
	f.StringVarP(&o.separator, "field-separator", "f", "", `JSON field separator, defaults to "."; select array elements with "(n)" and search with "(key=base64(value))"`)
	f.StringVar(&o.fieldType, "field-type", "", `Treat numbers as "str", "size" or "SI"`)

	f.StringArrayVarP(&o.warning, "warning", "w", nil, "Warning threshold: key[>alias],[@]start:end")
	f.StringArrayVarP(&o.critical, "critical", "c", nil, "Critical threshold: key[>alias],[@]start:end")
	f.StringArrayVarP(&o.keyExists, "key-exists", "e", nil, "Warn when key is not present")
	f.StringArrayVarP(&o.keyExistsCritical, "key-exists-critical", "E", nil, "Same as -e but critical")
	f.StringArrayVarP(&o.keyEquals, "key-equals", "q", nil, "Warn unless key equals value: key[>alias],value1[:value2]")
	f.StringArrayVarP(&o.keyEqualsCritical, "key-equals-critical", "Q", nil, "Same as -q but critical")
	f.StringArrayVarP(&o.metrics, "key-metric", "m", nil, "Performance data: key[>alias][,UOM[,warn,crit[,min,max]]]")

	f.BoolVarP(&o.debug, "debug", "d", false, "Debug logging on stderr")
	f.BoolVar(&o.insecure, "insecure", false, "Skip TLS certificate verification")
	f.StringVar(&o.proxy, "proxy", "", "Proxy URL (http, https or socks5)")
	f.BoolVar(&o.blockPrivate, "block-private", false, "Refuse to connect to private and reserved addresses")
	f.StringVar(&o.textfile, "textfile", "", "Write Prometheus metrics to this textfile collector path")
	f.StringVar(&o.logFormat, "log-format", "", `Log format: "text" or "json"`)

	root.AddCommand(a.versionCmd())
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(a.stdout, "check_http_json %s\n", version)
			a.code = verdict.OK
		},
	}
}

func (a *app) runCheck(cmd *cobra.Command, _ []string) error {
	cfg := config.Defaults()
	if a.opts.configPath != "" {
		loaded, err := config.Load(a.opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := applyFlags(cmd.Flags(), &a.opts, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, a.stderr)
	logger.Debug("starting check", "version", version, "url", cfg.URL())

	out, err := probe.New(a.fetcher, logger).Run(cmd.Context(), cfg)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, out.Message())
	a.code = out.Code()
	return nil
}

// applyFlags copies explicitly set flags over cfg.
func applyFlags(fs *pflag.FlagSet, o *options, cfg *config.Config) error {
	set := fs.Changed
	t := &cfg.Target
	r := &cfg.Rules

	if set("host") {
		t.Host = o.host
	}
	if set("port") {
		t.Port = o.port
	}
	if set("path") {
		t.Path = o.path
	}
	if set("ssl") {
		t.SSL = o.ssl
	}
	if set("timeout") {
		t.Timeout = time.Duration(o.timeout) * time.Second
	}
	if set("basic-auth") {
		t.BasicAuth = o.auth
	}
	if set("data") {
		t.Data = o.data
	}
	if set("headers") {
		h, err := parseHeaders(o.headers)
		if err != nil {
			return err
		}
		t.Headers = h
	}
	if set("insecure") {
		t.Insecure = o.insecure
	}
	if set("proxy") {
		t.Proxy = o.proxy
	}
	if set("block-private") {
		t.BlockPrivate = o.blockPrivate
	}

	if set("field-separator") {
		r.Separator = o.separator
	}
	if set("field-type") {
		r.FieldType = o.fieldType
	}
	lists := []struct {
		flag string
		src  []string
		dst  *[]string
	}{
		{"warning", o.warning, &r.Warning},
		{"critical", o.critical, &r.Critical},
		{"key-exists", o.keyExists, &r.KeyExists},
		{"key-exists-critical", o.keyExistsCritical, &r.KeyExistsCritical},
		{"key-equals", o.keyEquals, &r.KeyEquals},
		{"key-equals-critical", o.keyEqualsCritical, &r.KeyEqualsCritical},
		{"key-metric", o.metrics, &r.Metrics},
	}
	for _, l := range lists {
		if set(l.flag) {
			*l.dst = l.src
		}
	}

	if set("textfile") {
		cfg.Export.Textfile = o.textfile
	}
	if set("log-format") {
		cfg.Logging.Format = o.logFormat
	}
	if o.debug {
		cfg.Logging.Level = "debug"
	}
	return nil
}

// parseHeaders reads a JSON object of header names to values.
func parseHeaders(text string) (map[string]string, error) {
	doc, err := jsontree.Parse([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("headers: %w", err)
	}
	if doc.Kind() != jsontree.Object {
		return nil, fmt.Errorf("headers: expected a JSON object, got %s", doc.Kind())
	}
	h := make(map[string]string, doc.Len())
	for _, m := range doc.Members() {
		h[m.Key] = m.Value.String()
	}
	return h, nil
}

func underscoreToDash(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// expandListArgs lets rule flags take several space separated values
// ("-w a,1:2 b,3:4") by repeating the flag for every following value.
// The two letter "-ft" spelling of --field-type is rewritten as well.
func expandListArgs(fs *pflag.FlagSet, args []string) []string {
	out := make([]string, 0, len(args))
	var list string
	var needValue bool
	for i, arg := range args {
		if arg == "--" {
			return append(out, args[i:]...)
		}
		if arg == "-ft" {
			arg = "--field-type"
		}

		if !strings.HasPrefix(arg, "-") || arg == "-" {
			switch {
			case list == "" || needValue:
				needValue = false
			default:
				out = append(out, list)
			}
			out = append(out, arg)
			continue
		}

		list, needValue = "", false
		if fl := lookupFlag(fs, arg); fl != nil && fl.Value.Type() == "stringArray" {
			name, _, attached := strings.Cut(arg, "=")
			if !strings.HasPrefix(arg, "--") {
				name = arg[:2]
				attached = len(arg) > 2
			}
			list, needValue = name, !attached
		}
		out = append(out, arg)
	}
	return out
}

func lookupFlag(fs *pflag.FlagSet, arg string) *pflag.Flag {
	if name, ok := strings.CutPrefix(arg, "--"); ok {
		name, _, _ = strings.Cut(name, "=")
		return fs.Lookup(strings.ReplaceAll(name, "_", "-"))
	}
	return fs.ShorthandLookup(arg[1:2])
}

func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
