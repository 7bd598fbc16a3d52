package discovery

const (
	DefaultMaxTotal     = 200
	DefaultMaxPerConfig = 50
)

type Limits struct {
	MaxTotal     int `json:"maxTotal"`
	MaxPerConfig int `json:"maxPerConfig"`
}

// Normalize replaces non-positive caps with the defaults.
func (l Limits) Normalize() Limits {
	if l.MaxTotal <= 0 {
		l.MaxTotal = DefaultMaxTotal
	}
	if l.MaxPerConfig <= 0 {
		l.MaxPerConfig = DefaultMaxPerConfig
	}
	return l
}

// Quota counts requests created in one run against the global and per-source caps.
// URLs refused by the quota are not remembered; the next run sees them again.
type Quota struct {
	limits Limits
	total  int
	source int
}

func NewQuota(limits Limits) *Quota {
	return &Quota{limits: limits.Normalize()}
}

// BeginSource resets the per-source counter.
func (q *Quota) BeginSource() {
	q.source = 0
}

func (q *Quota) GlobalExhausted() bool {
	return q.total >= q.limits.MaxTotal
}

// Allow reports whether one more request may be created for the current source.
func (q *Quota) Allow() bool {
	return !q.GlobalExhausted() && q.source < q.limits.MaxPerConfig
}

func (q *Quota) Record() {
	q.total++
	q.source++
}

func (q *Quota) Total() int {
	return q.total
}

// Truncate keeps the first MaxPerConfig URLs in discovery order.
func (q *Quota) Truncate(urls []string) []string {
	if len(urls) > q.limits.MaxPerConfig {
		return urls[:q.limits.MaxPerConfig]
	}
	return urls
}
