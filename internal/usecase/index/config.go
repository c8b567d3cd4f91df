package index

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/brokerdex/internal/db"
	"github.com/kailas-cloud/brokerdex/internal/domain"
)

// Defaults applied by Config.withDefaults.
const (
	DefaultDocType  = "run"
	DefaultBulkSize = 500
)

// VerifyPolicy controls how often the adapter checks that its index exists.
type VerifyPolicy int

const (
	// VerifyCached checks once per process and trusts the result afterwards.
	VerifyCached VerifyPolicy = iota
	// VerifyAlways checks before every write. Use it when other producers
	// may reset or delete the index.
	VerifyAlways
)

func (p VerifyPolicy) String() string {
	if p == VerifyAlways {
		return "always"
	}
	return "cached"
}

// ParseVerifyPolicy maps "cached" (or "") and "always" to a policy.
func ParseVerifyPolicy(s string) (VerifyPolicy, error) {
	switch s {
	case "", "cached":
		return VerifyCached, nil
	case "always":
		return VerifyAlways, nil
	default:
		return VerifyCached, fmt.Errorf("verify must be \"cached\" or \"always\", got %q", s)
	}
}

// Config describes the target index.
type Config struct {
	Index    string
	DocType  string
	Mapping  *db.Mapping
	BulkSize int
	Verify   VerifyPolicy
}

func (c Config) withDefaults() Config {
	if c.DocType == "" {
		c.DocType = DefaultDocType
	}
	if c.Mapping == nil {
		c.Mapping = db.RunMapping()
	}
	if c.BulkSize <= 0 {
		c.BulkSize = DefaultBulkSize
	}
	return c
}

func (c Config) validate() error {
	if c.Index == "" {
		return domain.NewConfigurationError("index", errors.New("index name is required"))
	}
	if !db.IsValidIndexName(c.Index) {
		return domain.NewConfigurationError("index", fmt.Errorf("invalid index name %q", c.Index))
	}
	if err := c.Mapping.Validate(); err != nil {
		return domain.NewConfigurationError("mapping", err)
	}
	return nil
}
