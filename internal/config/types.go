package config

// Config is the root configuration structure for remediator.
// Serialised to ~/.remediator/config.json.
type Config struct {
	Server        ServerConfig    `mapstructure:"server"        json:"server"`
	Database      DatabaseConfig  `mapstructure:"database"      json:"database"`
	Workspace     WorkspaceConfig `mapstructure:"workspace"     json:"workspace"`
	Agent         AgentConfig     `mapstructure:"agent"         json:"agent"`
	Git           GitConfig       `mapstructure:"git"           json:"git"`
	Notifications NotifyConfig    `mapstructure:"notifications" json:"notifications"`
}

// ServerConfig controls the HTTP daemon.
type ServerConfig struct {
	// Port is the localhost port the daemon listens on (default: 6090).
	Port int `mapstructure:"port" json:"port"`
}

// DatabaseConfig controls the ledger storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// WorkspaceConfig controls where repository clones live and how long
// they survive before the background sweeper reclaims them.
type WorkspaceConfig struct {
	// Root is the directory under which all clone workspaces are created.
	Root string `mapstructure:"root" json:"root"`
	// TTLHours is the age beyond which an untouched workspace is swept.
	TTLHours int `mapstructure:"ttl_hours" json:"ttl_hours"`
	// SweepInterval is a cron spec for the sweeper (e.g. "@every 1h").
	SweepInterval string `mapstructure:"sweep_interval" json:"sweep_interval"`
}

// AgentConfig controls the external fix-generating agent subprocess.
type AgentConfig struct {
	// Command is the agent CLI binary (default: "claude").
	Command string `mapstructure:"command" json:"command"`
	// Model overrides the agent's default model when non-empty.
	Model string `mapstructure:"model" json:"model"`
	// TimeoutMinutes bounds a single agent turn.
	TimeoutMinutes int `mapstructure:"timeout_minutes" json:"timeout_minutes"`
}

// GitConfig holds optional server-side credentials per hosting
// platform. Request-supplied tokens always take precedence; these are
// fallbacks for installations that pin a service account.
type GitConfig struct {
	GitHub []GitHubConfig `mapstructure:"github" json:"github"`
	GitLab []GitLabConfig `mapstructure:"gitlab" json:"gitlab"`
}

// GitHubConfig holds credentials for a single GitHub instance.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host"  json:"host"`
}

// GitLabConfig holds credentials for a single GitLab instance.
type GitLabConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Host  string `mapstructure:"host"  json:"host"`
}

// NotifyConfig controls outbound notifications on PR creation.
type NotifyConfig struct {
	Enabled bool              `mapstructure:"enabled" json:"enabled"`
	Email   EmailNotifyConfig `mapstructure:"email"   json:"email"`
}

// EmailNotifyConfig holds SMTP settings for the email channel.
type EmailNotifyConfig struct {
	SMTPHost string `mapstructure:"smtp_host" json:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" json:"smtp_port"`
	Username string `mapstructure:"username"  json:"username"`
	Password string `mapstructure:"password"  json:"password"`
	From     string `mapstructure:"from"      json:"from"`
	UseTLS   bool   `mapstructure:"use_tls"   json:"use_tls"`
}
