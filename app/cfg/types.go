package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath     string
	SourcesDir string
	LockFile   string

	// HTTP server
	Port         string
	BaseUrl      string
	APIAccessKey string
	CronSecret   string

	// Scheduling
	WorkerCount       int
	SchedulerInterval int

	// Discovery limits
	MaxTotal     int
	MaxPerConfig int

	// Outbound HTTP
	UserAgent         string
	AcceptLanguage    string
	RequestTimeout    int
	RequestsPerSecond float64

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

func (c *Cfg) GetRequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Cfg) GetSchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerInterval) * time.Second
}
