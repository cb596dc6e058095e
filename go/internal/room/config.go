package room

import "time"

// Config holds the timing and pricing knobs of a room.
type Config struct {
	SnapshotInterval    time.Duration
	PollInterval        time.Duration
	LoadThrottle        time.Duration
	SettleDelay         time.Duration
	CardPrice           float64
	NextRoundSeconds    int
	CardsCacheTTL       time.Duration
	PlayerCountCacheTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		SnapshotInterval:    5 * time.Second,
		PollInterval:        2 * time.Second,
		LoadThrottle:        2 * time.Second,
		SettleDelay:         300 * time.Millisecond,
		CardPrice:           10,
		NextRoundSeconds:    5,
		CardsCacheTTL:       2 * time.Second,
		PlayerCountCacheTTL: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.SnapshotInterval <= 0 {
		c.SnapshotInterval = d.SnapshotInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.LoadThrottle < 0 {
		c.LoadThrottle = d.LoadThrottle
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = d.SettleDelay
	}
	if c.CardPrice <= 0 {
		c.CardPrice = d.CardPrice
	}
	if c.NextRoundSeconds <= 0 {
		c.NextRoundSeconds = d.NextRoundSeconds
	}
	if c.CardsCacheTTL <= 0 {
		c.CardsCacheTTL = d.CardsCacheTTL
	}
	if c.PlayerCountCacheTTL <= 0 {
		c.PlayerCountCacheTTL = d.PlayerCountCacheTTL
	}
	return c
}
