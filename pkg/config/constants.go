package config

// EnvPrefix scopes every environment variable this service reads.
const EnvPrefix = "VENDORA"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

// Environment variable names referenced outside struct tags.
const (
	EnvAppEnv  = "VENDORA_APP_ENV"
	EnvAppPort = "VENDORA_APP_PORT"

	EnvDBDSN  = "VENDORA_DB_DSN"
	EnvDBHost = "VENDORA_DB_HOST"
	EnvDBUser = "VENDORA_DB_USER"
	EnvDBName = "VENDORA_DB_NAME"

	EnvPayoutCommissionRate = "VENDORA_PAYOUT_COMMISSION_RATE"
	EnvPayoutMinimumAmount  = "VENDORA_PAYOUT_MINIMUM_AMOUNT"
	EnvPlatformAccountID    = "VENDORA_PLATFORM_ACCOUNT_ID"
)

// legacyDBEnvVars are the discrete connection vars accepted when a DSN is
// not provided.
var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
