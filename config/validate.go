package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCorpus(); err != nil {
		return err
	}
	if err := c.validateNotion(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCorpus() error {
	switch c.Corpus.Type {
	case CorpusLocal:
		if c.Corpus.Dir == "" {
			return errors.New("corpus.dir must be set for a local corpus")
		}
	case CorpusGCS:
		if c.Corpus.Bucket == "" {
			return errors.New("corpus.bucket must be set for a gcs corpus")
		}
	case CorpusMemory:
	default:
		return fmt.Errorf("corpus.type: unsupported value %q", c.Corpus.Type)
	}
	return nil
}

func (c *Config) validateNotion() error {
	if c.Notion.RequestsPerSecond < 0 {
		return errors.New("notion.requests_per_second must not be negative")
	}
	return nil
}

// RequireSource reports an error if content source credentials are missing.
// Only commands that talk to the content source call it.
func (c *Config) RequireSource() error {
	if c.Notion.Token == "" {
		return fmt.Errorf("notion.token is required; set %s or edit the config file", EnvNotionKey)
	}
	if c.Notion.DatabaseID == "" {
		return fmt.Errorf("notion.database_id is required; set %s or edit the config file", EnvDatabaseID)
	}
	return nil
}
