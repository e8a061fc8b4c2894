package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/formrelay/formrelay/internal/rules"
)

type ValidationError struct {
	Problems []string
}

func (v *ValidationError) Add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) Error() string {
	return fmt.Sprintf("%d validation error(s)", len(v.Problems))
}

var validMethods = map[string]struct{}{
	"GET":    {},
	"POST":   {},
	"PUT":    {},
	"DELETE": {},
}

func (c *Config) Validate() error {
	v := &ValidationError{}

	switch {
	case c.ConfigVersion < CurrentVersion:
		v.Add("configVersion %d is outdated; run `formrelay migrate`", c.ConfigVersion)
	case c.ConfigVersion > CurrentVersion:
		v.Add("configVersion must be %d", CurrentVersion)
	}

	if err := validateListen(c.Server.Listen); err != nil {
		v.Add("server.listen invalid: %v", err)
	}
	if c.Server.MaxBodyBytes <= 0 {
		v.Add("server.maxBodyBytes must be > 0")
	}
	if c.Server.RateLimit.Enabled {
		if c.Server.RateLimit.RPS <= 0 {
			v.Add("server.rateLimit.rps must be > 0")
		}
		if c.Server.RateLimit.Burst <= 0 {
			v.Add("server.rateLimit.burst must be > 0")
		}
		switch c.Server.RateLimit.Key {
		case "", "ip", "ip_path":
		default:
			v.Add("server.rateLimit.key must be ip|ip_path")
		}
	}

	if c.Dispatch.Timeout < 0 {
		v.Add("dispatch.timeout must be >= 0")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		v.Add("logging.level must be debug|info|warn|error")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		v.Add("logging.format must be json|text")
	}
	if c.Logging.DispatchLog != "" {
		if err := ensureWritable(c.resolvePath(c.Logging.DispatchLog)); err != nil {
			v.Add("logging.dispatchLog invalid: %v", err)
		}
	}

	if c.Metrics.Enabled {
		if err := validateListen(c.Metrics.Listen); err != nil {
			v.Add("metrics.listen invalid: %v", err)
		}
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint != "" {
		if strings.Contains(c.Tracing.Endpoint, "://") {
			v.Add("tracing.endpoint must be host:port without scheme")
		}
	}

	names := map[string]struct{}{}
	for i, route := range c.Routes {
		c.validateRoute(v, i, route, names)
	}

	if len(v.Problems) > 0 {
		sort.Strings(v.Problems)
		return v
	}
	return nil
}

func (c *Config) validateRoute(v *ValidationError, i int, route Route, names map[string]struct{}) {
	if route.Name == "" {
		v.Add("routes[%d].name is required", i)
	} else if _, exists := names[route.Name]; exists {
		v.Add("routes[%d].name %q is duplicated", i, route.Name)
	} else {
		names[route.Name] = struct{}{}
	}

	if route.URL.IsConstant() {
		raw := strings.Join(route.URL.Strings(), "")
		if raw == "" {
			v.Add("routes[%d].url is required", i)
		} else if err := validateURL(raw); err != nil {
			v.Add("routes[%d].url invalid: %v", i, err)
		}
	}

	if _, ok := validMethods[strings.ToUpper(route.HTTPMethod())]; !ok {
		v.Add("routes[%d].method must be GET|POST|PUT|DELETE", i)
	}

	if p := route.Match.PathPrefix; p != "" && !strings.HasPrefix(p, "/") {
		v.Add("routes[%d].match.pathPrefix must start with /", i)
	}

	for _, entry := range route.Cookies {
		if entry.Name == "" {
			v.Add("routes[%d].cookies has an empty name", i)
			continue
		}
		if entry.mayPassthrough() {
			if _, err := rules.CompiledMatcher(entry.Name, false); err != nil {
				v.Add("routes[%d].cookies %q is not a valid pattern: %v", i, entry.Name, err)
			}
		}
	}
	for _, entry := range route.Headers {
		if err := validateHeaderName(entry.Name); err != nil {
			v.Add("routes[%d].headers: %v", i, err)
			continue
		}
		for _, s := range entry.Value.Strings() {
			if !validHeaderFieldValue(s) {
				v.Add("routes[%d].headers %q has invalid field value", i, entry.Name)
				break
			}
		}
	}
}

func validateListen(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return errors.New("address is required")
	}
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return err
	}
	return nil
}

func validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func ensureWritable(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	file, err := os.CreateTemp(dir, "formrelay-validate-*")
	if err != nil {
		return err
	}
	name := file.Name()
	if err := file.Close(); err != nil {
		return err
	}
	return os.Remove(name)
}
