package config

const (
	CorpusLocal  = "local"
	CorpusGCS    = "gcs"
	CorpusMemory = "memory"
)

const (
	defaultCorpusDir         = "public/assets"
	defaultNotionBaseURL     = "https://api.notion.com/v1"
	defaultRequestsPerSecond = 3
	defaultWorkers           = 8
	defaultPageWorkers       = 4
	defaultRequestTimeout    = 120
	defaultLogLevel          = "info"
	defaultLogFormat         = "console"
)

// Default returns a configuration populated with default values.
func Default() Config {
	return Config{
		Corpus: Corpus{
			Type: CorpusLocal,
			Dir:  defaultCorpusDir,
		},
		Notion: Notion{
			BaseURL:           defaultNotionBaseURL,
			RequestsPerSecond: defaultRequestsPerSecond,
		},
		Pipeline: Pipeline{
			Workers:        defaultWorkers,
			PageWorkers:    defaultPageWorkers,
			RequestTimeout: defaultRequestTimeout,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
