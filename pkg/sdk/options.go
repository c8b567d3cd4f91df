package brokerdex

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/brokerdex/internal/config"
	"github.com/kailas-cloud/brokerdex/internal/db"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	driver   string // "elasticsearch" or "redis"
	addrs    []string
	password string

	section    config.Section
	configFile string

	store db.Store // tests only

	logger     *slog.Logger
	metricsReg prometheus.Registerer
}

// WithElasticsearch exports to an Elasticsearch cluster. Hosts without a
// scheme get http:// and port 9200.
func WithElasticsearch(hosts ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = config.DriverElasticsearch
		c.section.Host.Hosts = hosts
	})
}

// WithElasticAuth sets basic-auth credentials for Elasticsearch.
func WithElasticAuth(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.section.Host.Username = username
		c.section.Host.Password = password
	})
}

// WithRedis exports to a Redis instance with the search and JSON modules.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.driver = config.DriverRedis
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithConfigFile reads the databroker-elasticsearch section of a YAML file.
// Options given after it override individual settings.
func WithConfigFile(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.configFile = path
	})
}

// WithIndex sets the index name. Required.
func WithIndex(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.section.Index = name
	})
}

// WithDocType sets the document type label. Default: "run".
func WithDocType(docType string) Option {
	return optionFunc(func(c *clientConfig) {
		c.section.DocType = docType
	})
}

// WithDocmap sets the field mapping as [source], [source, dest] or
// [source, dest, converter] records. Without it documents are copied.
func WithDocmap(records [][]string) Option {
	return optionFunc(func(c *clientConfig) {
		c.section.Docmap = records
	})
}

// WithAllowList admits documents whose field is one of values. Documents
// without the field are admitted unless rejectMissing is set.
func WithAllowList(field string, values []string, rejectMissing bool) Option {
	return optionFunc(func(c *clientConfig) {
		missing := "admit"
		if rejectMissing {
			missing = "reject"
		}
		c.section.Criteria = &config.CriteriaConfig{Field: field, Allow: values, Missing: missing}
	})
}

// WithPattern admits documents whose field matches expr. A missing field
// is matched as the empty string.
func WithPattern(field, expr string) Option {
	return optionFunc(func(c *clientConfig) {
		c.section.Criteria = &config.CriteriaConfig{Field: field, Pattern: expr}
	})
}

// WithBulkSize sets the number of documents per bulk request. Default: 500.
func WithBulkSize(size int) Option {
	return optionFunc(func(c *clientConfig) {
		c.section.BulkSize = size
	})
}

// WithVerifyAlways checks that the index exists before every write.
func WithVerifyAlways() Option {
	return optionFunc(func(c *clientConfig) {
		c.section.Verify = "always"
	})
}

// WithLogger enables structured logging for SDK operations.
// Pass nil to disable (default). Uses standard library slog.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers SDK metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}

func withStore(s db.Store) Option {
	return optionFunc(func(c *clientConfig) {
		c.store = s
	})
}
