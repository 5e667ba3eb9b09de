package config

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// setting binds a dotted path to a field of Config.
type setting struct {
	path string
	set  func(c *Config, v string) error
}

func intSetting(path string, field func(*Config) *int) setting {
	return setting{path, func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(c) = n
		return nil
	}}
}

func durationSetting(path string, field func(*Config) *Duration) setting {
	return setting{path, func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		field(c).Duration = d
		return nil
	}}
}

func stringSetting(path string, field func(*Config) *string) setting {
	return setting{path, func(c *Config, v string) error {
		*field(c) = v
		return nil
	}}
}

var settings = []setting{
	intSetting("history.max_entries", func(c *Config) *int { return &c.History.MaxEntries }),
	durationSetting("history.coalesce_window", func(c *Config) *Duration { return &c.History.CoalesceWindow }),
	intSetting("history.coalesce_max_ops", func(c *Config) *int { return &c.History.CoalesceMaxOps }),
	intSetting("import.cache_size", func(c *Config) *int { return &c.Import.CacheSize }),
	intSetting("import.concurrency", func(c *Config) *int { return &c.Import.Concurrency }),
	durationSetting("import.timeout", func(c *Config) *Duration { return &c.Import.Timeout }),
	durationSetting("watch.debounce", func(c *Config) *Duration { return &c.Watch.Debounce }),
	{"watch.ignore", func(c *Config, v string) error {
		c.Watch.Ignore = nil
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				c.Watch.Ignore = append(c.Watch.Ignore, p)
			}
		}
		return nil
	}},
	stringSetting("logging.level", func(c *Config) *string { return &c.Logging.Level }),
	stringSetting("logging.format", func(c *Config) *string { return &c.Logging.Format }),
	stringSetting("logging.file", func(c *Config) *string { return &c.Logging.File }),
	intSetting("logging.max_size_mb", func(c *Config) *int { return &c.Logging.MaxSizeMB }),
	intSetting("logging.max_backups", func(c *Config) *int { return &c.Logging.MaxBackups }),
	intSetting("logging.max_age_days", func(c *Config) *int { return &c.Logging.MaxAgeDays }),
	{"logging.compress", func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		c.Logging.Compress = b
		return nil
	}},
}

// EnvName returns the environment variable for a dotted setting path.
func EnvName(path string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}

// Settings returns the dotted paths of every setting, sorted.
func Settings() []string {
	out := make([]string, len(settings))
	for i, s := range settings {
		out[i] = s.path
	}
	sort.Strings(out)
	return out
}

// ApplyEnv applies overrides from environ, a list of KEY=value pairs in the
// form returned by os.Environ. Unknown SPRITEFORGE_ variables are ignored.
func ApplyEnv(cfg *Config, environ []string) error {
	values := make(map[string]string)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(name, EnvPrefix) {
			values[name] = value
		}
	}
	for _, s := range settings {
		name := EnvName(s.path)
		v, ok := values[name]
		if !ok {
			continue
		}
		if err := s.set(cfg, strings.TrimSpace(v)); err != nil {
			return &ParseError{Path: name, Message: err.Error(), Err: err}
		}
	}
	return nil
}
