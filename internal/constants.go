package internal

const (
	DotEnvPath              = "./.env"
	MigrationsDir           = "migrations"
	RunDirLayout            = "20060102_150405000"
	DBTimestampLayout       = "2006-01-02 15:04:05"
	WebhookTriggerKeyHeader = "X-ForgeCI-Webhook-Key"
	DefaultSpecPath         = ".forgeci.yml"
)
