package config

import (
	"os"
	"strconv"
	"strings"
)

const (
	EnvDebug      = "ASSETCACHE_DEBUG"
	EnvNotionKey  = "NOTION_API_SECRET"
	EnvDatabaseID = "DATABASE_ID"
)

func (c *Config) normalize() error {
	c.applyEnv()
	if err := c.normalizeCorpus(); err != nil {
		return err
	}
	c.normalizeNotion()
	c.normalizePipeline()
	c.normalizeLogging()
	return nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvDebug); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			c.Debug = b
		} else {
			c.Debug = strings.TrimSpace(v) != ""
		}
	}
	if c.Notion.Token == "" {
		if v, ok := os.LookupEnv(EnvNotionKey); ok {
			c.Notion.Token = v
		}
	}
	if c.Notion.DatabaseID == "" {
		if v, ok := os.LookupEnv(EnvDatabaseID); ok {
			c.Notion.DatabaseID = v
		}
	}
}

func (c *Config) normalizeCorpus() error {
	c.Corpus.Type = strings.ToLower(strings.TrimSpace(c.Corpus.Type))
	if c.Corpus.Type == "" {
		c.Corpus.Type = CorpusLocal
	}
	if c.Corpus.Type == CorpusLocal {
		dir, err := ExpandPath(strings.TrimSpace(c.Corpus.Dir))
		if err != nil {
			return err
		}
		c.Corpus.Dir = dir
	}
	c.Corpus.Bucket = strings.TrimSpace(c.Corpus.Bucket)
	return nil
}

func (c *Config) normalizeNotion() {
	c.Notion.Token = strings.TrimSpace(c.Notion.Token)
	c.Notion.DatabaseID = strings.TrimSpace(c.Notion.DatabaseID)
	c.Notion.BaseURL = strings.TrimRight(strings.TrimSpace(c.Notion.BaseURL), "/")
	if c.Notion.BaseURL == "" {
		c.Notion.BaseURL = defaultNotionBaseURL
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = defaultWorkers
	}
	if c.Pipeline.PageWorkers <= 0 {
		c.Pipeline.PageWorkers = defaultPageWorkers
	}
	if c.Pipeline.RequestTimeout < 0 {
		c.Pipeline.RequestTimeout = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "console", "json":
	default:
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Debug {
		c.Logging.Level = "debug"
	}
}
