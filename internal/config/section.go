package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/brokerdex/internal/domain/admission"
	"github.com/kailas-cloud/brokerdex/internal/usecase/index"
)

// SectionKey is the top-level key holding the exporter configuration.
const SectionKey = "databroker-elasticsearch"

// Section configures one exported index: where it lives, how documents
// are translated and which of them are admitted.
type Section struct {
	Host     Connection      `yaml:"host"`
	Hosts    []string        `yaml:"hosts"`
	Index    string          `yaml:"index"`
	DocType  string          `yaml:"doc_type"`
	BulkSize int             `yaml:"bulk_size"`
	Verify   string          `yaml:"verify"`
	Docmap   [][]string      `yaml:"docmap"`
	Criteria *CriteriaConfig `yaml:"criteria"`
}

// Connection is the Elasticsearch endpoint. In YAML it is a single host
// string, a list of hosts or a mapping with credentials.
type Connection struct {
	Hosts    []string `yaml:"hosts"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	APIKey   string   `yaml:"api_key"`
}

// UnmarshalYAML accepts the scalar, sequence and mapping forms.
func (c *Connection) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var host string
		if err := n.Decode(&host); err != nil {
			return err
		}
		*c = Connection{}
		if host != "" {
			c.Hosts = []string{host}
		}
		return nil
	case yaml.SequenceNode:
		var hosts []string
		if err := n.Decode(&hosts); err != nil {
			return err
		}
		*c = Connection{Hosts: hosts}
		return nil
	case yaml.MappingNode:
		type plain Connection
		var p plain
		if err := n.Decode(&p); err != nil {
			return err
		}
		*c = Connection(p)
		return nil
	default:
		return fmt.Errorf("line %d: host must be a string, a list or a mapping", n.Line)
	}
}

// CriteriaConfig configures the admission filter.
type CriteriaConfig struct {
	Field   string   `yaml:"field"`
	Allow   []string `yaml:"allow"`
	Pattern string   `yaml:"pattern"`
	Missing string   `yaml:"missing"` // admit, reject (default: admit)
}

// Connection merges the host and hosts keys. Hosts without a scheme get
// http:// and port 9200 when no port is given.
func (s Section) Connection() Connection {
	c := s.Host
	c.Hosts = append(append([]string(nil), c.Hosts...), s.Hosts...)
	for i, h := range c.Hosts {
		c.Hosts[i] = normalizeHost(h)
	}
	return c
}

func normalizeHost(h string) string {
	if strings.Contains(h, "://") {
		return h
	}
	if !strings.Contains(h, ":") {
		h += ":9200"
	}
	return "http://" + h
}

// Validate checks the section without resolving converters.
func (s Section) Validate() error {
	if s.Index == "" {
		return errors.New("index is required")
	}
	if _, err := index.ParseVerifyPolicy(s.Verify); err != nil {
		return err
	}
	for i, rec := range s.Docmap {
		if len(rec) == 0 || len(rec) > 3 {
			return fmt.Errorf("docmap[%d] must have 1 to 3 elements, got %d", i, len(rec))
		}
	}
	if c := s.Criteria; c != nil {
		if c.Field == "" {
			return errors.New("criteria.field is required")
		}
		if len(c.Allow) > 0 && c.Pattern != "" {
			return errors.New("criteria.allow and criteria.pattern are mutually exclusive")
		}
		if c.Pattern != "" && c.Missing != "" {
			return errors.New("criteria.missing applies to allow lists; match absence in the pattern instead")
		}
		if _, err := admission.ParseMissingPolicy(c.Missing); err != nil {
			return fmt.Errorf("criteria: %w", err)
		}
	}
	return nil
}

// ParseSection extracts the exporter section from a decoded configuration
// mapping that contains the databroker-elasticsearch key.
func ParseSection(raw map[string]any) (Section, error) {
	body, ok := raw[SectionKey]
	if !ok {
		return Section{}, fmt.Errorf("missing %q key", SectionKey)
	}
	data, err := yaml.Marshal(body)
	if err != nil {
		return Section{}, fmt.Errorf("encode %s: %w", SectionKey, err)
	}
	var s Section
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Section{}, fmt.Errorf("decode %s: %w", SectionKey, err)
	}
	if err := s.Validate(); err != nil {
		return Section{}, fmt.Errorf("%s: %w", SectionKey, err)
	}
	return s, nil
}

// LoadSection reads the exporter section from a YAML file.
func LoadSection(path string) (Section, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Section{}, fmt.Errorf("read %s: %w", path, err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(expandEnvVars(data), &raw); err != nil {
		return Section{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return ParseSection(raw)
}

// SearchPath returns the default directories searched by FindSection:
// the user config directory followed by the system one.
func SearchPath() []string {
	var dirs []string
	if home, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, "databroker"))
	}
	return append(dirs, filepath.Join(string(filepath.Separator), "etc", "databroker"))
}

// FindSection resolves a configuration name to a file. An existing path is
// returned as is; otherwise <dir>/<name>.yml and <dir>/<name>.yaml are
// tried in order. The error for an unknown name matches fs.ErrNotExist.
func FindSection(name string, dirs []string) (string, error) {
	if fileExists(name) {
		return name, nil
	}
	for _, dir := range dirs {
		for _, ext := range []string{".yml", ".yaml"} {
			if path := filepath.Join(dir, name+ext); fileExists(path) {
				return path, nil
			}
		}
	}
	return "", &fs.PathError{Op: "find config", Path: name, Err: fs.ErrNotExist}
}
