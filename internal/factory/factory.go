// Package factory assembles exporter pipelines from configuration.
package factory

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/brokerdex/internal/config"
	"github.com/kailas-cloud/brokerdex/internal/db/elastic"
	"github.com/kailas-cloud/brokerdex/internal/domain"
	"github.com/kailas-cloud/brokerdex/internal/domain/admission"
	"github.com/kailas-cloud/brokerdex/internal/domain/convert"
	"github.com/kailas-cloud/brokerdex/internal/domain/docmap"
	"github.com/kailas-cloud/brokerdex/internal/usecase/callback"
	"github.com/kailas-cloud/brokerdex/internal/usecase/index"
)

// Predicate builds the admission filter. Nil criteria admit everything.
func Predicate(c *config.CriteriaConfig) (admission.Predicate, error) {
	if c == nil {
		return nil, nil
	}
	missing, err := admission.ParseMissingPolicy(c.Missing)
	if err != nil {
		return nil, err
	}
	if c.Pattern != "" {
		if c.Missing != "" {
			return nil, domain.NewConfigurationError("criteria.missing",
				errors.New("not supported with pattern; match absence in the pattern instead"))
		}
		p, err := admission.NewPattern(c.Field, c.Pattern)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	p, err := admission.NewAllowList(c.Field, c.Allow, missing)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Mapper builds the document mapper. An empty docmap yields a nil mapper,
// which makes the adapter copy documents unchanged.
func Mapper(s config.Section, reg *convert.Registry) (index.Mapper, error) {
	if len(s.Docmap) == 0 {
		return nil, nil
	}
	m, err := docmap.FromSpecs(s.Docmap, reg)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// IndexConfig translates the section into adapter settings.
func IndexConfig(s config.Section) (index.Config, error) {
	verify, err := index.ParseVerifyPolicy(s.Verify)
	if err != nil {
		return index.Config{}, err
	}
	return index.Config{
		Index:    s.Index,
		DocType:  s.DocType,
		BulkSize: s.BulkSize,
		Verify:   verify,
	}, nil
}

// Index builds the index adapter over store.
func Index(store index.Store, s config.Section, logger *zap.Logger) (*index.Service, error) {
	cfg, err := IndexConfig(s)
	if err != nil {
		return nil, err
	}
	mapper, err := Mapper(s, nil)
	if err != nil {
		return nil, err
	}
	pred, err := Predicate(s.Criteria)
	if err != nil {
		return nil, fmt.Errorf("criteria: %w", err)
	}
	return index.New(store, cfg, mapper, pred, logger)
}

// ElasticStore creates an Elasticsearch store for the section's hosts.
func ElasticStore(s config.Section) (*elastic.Store, error) {
	conn := s.Connection()
	return elastic.NewStore(elastic.Config{
		Addresses: conn.Hosts,
		Username:  conn.Username,
		Password:  conn.Password,
		APIKey:    conn.APIKey,
	})
}

// LoadIndex builds an Elasticsearch-backed adapter from a YAML file.
func LoadIndex(path string, logger *zap.Logger) (*index.Service, error) {
	s, err := config.LoadSection(path)
	if err != nil {
		return nil, err
	}
	return fromSection(s, logger)
}

// CallbackFromConfig builds a callback from a decoded configuration
// mapping holding the databroker-elasticsearch key.
func CallbackFromConfig(raw map[string]any, logger *zap.Logger) (*callback.Service, error) {
	s, err := config.ParseSection(raw)
	if err != nil {
		return nil, err
	}
	idx, err := fromSection(s, logger)
	if err != nil {
		return nil, err
	}
	return callback.New(idx, logger), nil
}

// LoadCallback builds a callback from a YAML file.
func LoadCallback(path string, logger *zap.Logger) (*callback.Service, error) {
	idx, err := LoadIndex(path, logger)
	if err != nil {
		return nil, err
	}
	return callback.New(idx, logger), nil
}

// CallbackFromName resolves name with config.FindSection and loads it.
// A nil dirs searches config.SearchPath().
func CallbackFromName(name string, dirs []string, logger *zap.Logger) (*callback.Service, error) {
	if dirs == nil {
		dirs = config.SearchPath()
	}
	path, err := config.FindSection(name, dirs)
	if err != nil {
		return nil, err
	}
	return LoadCallback(path, logger)
}

func fromSection(s config.Section, logger *zap.Logger) (*index.Service, error) {
	store, err := ElasticStore(s)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: %w", err)
	}
	return Index(store, s, logger)
}
