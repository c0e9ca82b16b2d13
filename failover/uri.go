// Package failover parses failover: URIs and sequences reconnect attempts
// across the brokers they name, honoring randomize, priority-backup,
// exponential back-off, jitter, and separate startup/steady-state retry
// budgets.
package failover

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gostomp/stomperr"
)

// Broker is one endpoint named by a failover URI.
type Broker struct {
	Scheme string // "tcp", "ws", or "wss"
	Host   string
	Port   int
	Path   string // only meaningful for ws/wss
}

func (b Broker) String() string {
	if b.Path != "" {
		return fmt.Sprintf("%s://%s:%d%s", b.Scheme, b.Host, b.Port, b.Path)
	}
	return fmt.Sprintf("%s://%s:%d", b.Scheme, b.Host, b.Port)
}

// Options configures the reconnect policy. Defaults mirror the values this
// module's failover grammar assumes when an option is omitted.
type Options struct {
	InitialReconnectDelay      int // ms
	MaxReconnectDelay          int // ms
	UseExponentialBackOff      bool
	BackOffMultiplier          float64
	MaxReconnectAttempts       int // -1 = infinite
	StartupMaxReconnectAttempts int
	ReconnectDelayJitter       int // ms
	Randomize                  bool
	PriorityBackup             bool
}

// DefaultOptions returns the option set a bare failover URI with no query
// string gets.
func DefaultOptions() Options {
	return Options{
		InitialReconnectDelay:       10,
		MaxReconnectDelay:           30000,
		UseExponentialBackOff:       true,
		BackOffMultiplier:           2.0,
		MaxReconnectAttempts:        -1,
		StartupMaxReconnectAttempts: 0,
		ReconnectDelayJitter:        0,
		Randomize:                   true,
		PriorityBackup:              false,
	}
}

// URI is a parsed failover: URI: an ordered broker list plus options.
type URI struct {
	Brokers []Broker
	Options Options
}

const schemePrefix = "failover:"

// Parse parses a failover URI of the form
// "failover:(scheme://host:port/path,...)?opt=val,opt=val". The
// surrounding parentheses around the broker list are optional.
func Parse(raw string) (*URI, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, schemePrefix)

	brokersPart := s
	optionsPart := ""
	if idx := strings.IndexByte(s, '?'); idx >= 0 {
		brokersPart, optionsPart = s[:idx], s[idx+1:]
	}

	brokersPart = strings.TrimSpace(brokersPart)
	brokersPart = strings.TrimPrefix(brokersPart, "(")
	brokersPart = strings.TrimSuffix(brokersPart, ")")

	brokers, err := parseBrokers(brokersPart)
	if err != nil {
		return nil, err
	}
	if len(brokers) == 0 {
		return nil, stomperr.NewProtocolError("failover URI names no brokers: %q", raw)
	}

	options, err := parseOptions(optionsPart)
	if err != nil {
		return nil, err
	}

	return &URI{Brokers: brokers, Options: options}, nil
}

func parseBrokers(part string) ([]Broker, error) {
	if part == "" {
		return nil, nil
	}
	var brokers []Broker
	for _, raw := range strings.Split(part, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		b, err := parseBroker(raw)
		if err != nil {
			return nil, err
		}
		brokers = append(brokers, b)
	}
	return brokers, nil
}

func parseBroker(raw string) (Broker, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Broker{}, stomperr.NewProtocolError("invalid broker URI %q: %v", raw, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "tcp"
	}

	host := u.Hostname()
	if host == "" {
		return Broker{}, stomperr.NewProtocolError("broker URI %q has no host", raw)
	}

	port := 0
	if p := u.Port(); p != "" {
		n, convErr := strconv.Atoi(p)
		if convErr != nil {
			return Broker{}, stomperr.NewProtocolError("invalid port in broker URI %q", raw)
		}
		port = n
	}

	path := ""
	switch scheme {
	case "ws":
		if port == 0 {
			port = 80
		}
		path = u.Path
		if path == "" {
			path = "/"
		}
	case "wss":
		if port == 0 {
			port = 443
		}
		path = u.Path
		if path == "" {
			path = "/"
		}
	default:
		if port == 0 {
			port = 443
		}
	}

	return Broker{Scheme: scheme, Host: host, Port: port, Path: path}, nil
}

// optionParsers decodes each supported query-string option into Options.
var optionParsers = map[string]func(*Options, string) error{
	"initialReconnectDelay": intOption(func(o *Options, v int) { o.InitialReconnectDelay = v }),
	"maxReconnectDelay":     intOption(func(o *Options, v int) { o.MaxReconnectDelay = v }),
	"useExponentialBackOff": boolOption(func(o *Options, v bool) { o.UseExponentialBackOff = v }),
	"backOffMultiplier": func(o *Options, raw string) error {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return stomperr.NewProtocolError("invalid backOffMultiplier %q", raw)
		}
		o.BackOffMultiplier = f
		return nil
	},
	"maxReconnectAttempts":        intOption(func(o *Options, v int) { o.MaxReconnectAttempts = v }),
	"startupMaxReconnectAttempts": intOption(func(o *Options, v int) { o.StartupMaxReconnectAttempts = v }),
	"reconnectDelayJitter":        intOption(func(o *Options, v int) { o.ReconnectDelayJitter = v }),
	"randomize":                   boolOption(func(o *Options, v bool) { o.Randomize = v }),
	"priorityBackup":              boolOption(func(o *Options, v bool) { o.PriorityBackup = v }),
}

func intOption(set func(*Options, int)) func(*Options, string) error {
	return func(o *Options, raw string) error {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return stomperr.NewProtocolError("invalid integer option value %q", raw)
		}
		set(o, n)
		return nil
	}
}

func boolOption(set func(*Options, bool)) func(*Options, string) error {
	return func(o *Options, raw string) error {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return stomperr.NewProtocolError("invalid boolean option value %q", raw)
		}
		set(o, b)
		return nil
	}
}

func parseOptions(part string) (Options, error) {
	options := DefaultOptions()
	if part == "" {
		return options, nil
	}
	for _, pair := range strings.Split(part, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return Options{}, stomperr.NewProtocolError("malformed failover option %q", pair)
		}
		name, value := kv[0], kv[1]
		parser, ok := optionParsers[name]
		if !ok {
			return Options{}, stomperr.NewProtocolError("unknown failover option %q", name)
		}
		if err := parser(&options, value); err != nil {
			return Options{}, err
		}
	}
	return options, nil
}
