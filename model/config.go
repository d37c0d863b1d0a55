package model

import "time"

// Config holds the full application configuration. The token comes from the
// environment, everything else from config.yaml.
type Config struct {
	BotToken string `mapstructure:"-"`

	Discord  DiscordConfig  `mapstructure:"discord"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	AuthLink AuthLinkConfig `mapstructure:"auth_link"`
	Ingest   IngestConfig   `mapstructure:"ingest"`
	Settings Settings       `mapstructure:"settings"`
}

// DiscordConfig identifies the guild, the two forums and the log channel.
// Channel ids are Discord snowflakes kept as strings.
type DiscordConfig struct {
	GuildID           string `mapstructure:"guild_id"`
	PlayersForumID    string `mapstructure:"players_forum"`
	ModeratorsForumID string `mapstructure:"moderators_forum"`
	LogChannelID      string `mapstructure:"log_channel"`
}

// DatabaseConfig configures the sqlite store and its pool.
type DatabaseConfig struct {
	File         string `mapstructure:"file"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	BackupDir    string `mapstructure:"backup_dir"`
	BackupKeep   int    `mapstructure:"backup_keep"`
}

// RedisConfig configures the optional cache/lock provider. With Enabled false
// or an unreachable server the provider runs in degraded no-op mode.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	ThreadCacheTTLMinutes     int `mapstructure:"thread_cache_ttl_minutes"`
	DiscordLinkTTLMinutes     int `mapstructure:"discord_link_ttl_minutes"`
	PermissionCacheTTLMinutes int `mapstructure:"permission_cache_ttl_minutes"`
}

// IngestConfig configures the HTTP listener the game plugin posts events to.
type IngestConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
	Token   string `mapstructure:"token"`
}

// AuthLinkConfig points at the external account-link API.
type AuthLinkConfig struct {
	URL           string        `mapstructure:"url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// Settings groups the scheduler and workflow tunables.
type Settings struct {
	Workers              int           `mapstructure:"workers"`
	ThreadLockWait       time.Duration `mapstructure:"thread_lock_wait"`
	StatsLockWait        time.Duration `mapstructure:"stats_lock_wait"`
	StatsRefreshInterval time.Duration `mapstructure:"stats_refresh_interval"`
	ExpirySweepInterval  time.Duration `mapstructure:"expiry_sweep_interval"`
	RedispatchInterval   time.Duration `mapstructure:"redispatch_interval"`
	BackupInterval       time.Duration `mapstructure:"backup_interval"`
	AutoBackup           bool          `mapstructure:"auto_backup"`
	CleanupDelay         time.Duration `mapstructure:"cleanup_delay"`
}

// ApplyDefaults fills unset tunables with the defaults the plugin shipped with.
func (c *Config) ApplyDefaults() {
	if c.Database.File == "" {
		c.Database.File = "data/punishment_logs.db"
	}
	if c.Database.MaxOpenConns == 0 {
		c.Database.MaxOpenConns = 10
	}
	if c.Database.MaxIdleConns == 0 {
		c.Database.MaxIdleConns = 2
	}
	if c.Database.BackupDir == "" {
		c.Database.BackupDir = "data/backups"
	}
	if c.Database.BackupKeep == 0 {
		c.Database.BackupKeep = 10
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.Redis.ThreadCacheTTLMinutes == 0 {
		c.Redis.ThreadCacheTTLMinutes = 60
	}
	if c.Redis.DiscordLinkTTLMinutes == 0 {
		c.Redis.DiscordLinkTTLMinutes = 30
	}
	if c.Redis.PermissionCacheTTLMinutes == 0 {
		c.Redis.PermissionCacheTTLMinutes = 15
	}
	if c.Ingest.Addr == "" {
		c.Ingest.Addr = "127.0.0.1:8195"
	}
	if c.AuthLink.Timeout == 0 {
		c.AuthLink.Timeout = 5 * time.Second
	}
	if c.AuthLink.RetryAttempts == 0 {
		c.AuthLink.RetryAttempts = 3
	}
	if c.AuthLink.RetryDelay == 0 {
		c.AuthLink.RetryDelay = time.Second
	}
	if c.Settings.Workers == 0 {
		c.Settings.Workers = 4
	}
	if c.Settings.ThreadLockWait == 0 {
		c.Settings.ThreadLockWait = 10 * time.Second
	}
	if c.Settings.StatsLockWait == 0 {
		c.Settings.StatsLockWait = 5 * time.Second
	}
	if c.Settings.StatsRefreshInterval == 0 {
		c.Settings.StatsRefreshInterval = time.Minute
	}
	if c.Settings.ExpirySweepInterval == 0 {
		c.Settings.ExpirySweepInterval = time.Minute
	}
	if c.Settings.RedispatchInterval == 0 {
		c.Settings.RedispatchInterval = 5 * time.Minute
	}
	if c.Settings.BackupInterval == 0 {
		c.Settings.BackupInterval = 6 * time.Hour
	}
	if c.Settings.CleanupDelay == 0 {
		c.Settings.CleanupDelay = 2 * time.Second
	}
}
