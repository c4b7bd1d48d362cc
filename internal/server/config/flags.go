package config

import (
	"github.com/spf13/pflag"
)

// BindFlags registers command-line flags that override fields of config.
// Values already in config (defaults plus JSON overlay) become the flag
// defaults, so an unset flag leaves them untouched.
//
// Supported flags:
//
//	-d, --database-dsn       PostgreSQL DSN of the document store
//	    --identity-dsn       SQLite DSN of the identity provider
//	-s, --secret-key         JWT HMAC secret key
//	    --access-ttl         access token validity
//	    --refresh-ttl        refresh token validity
//	    --batch-size         operations per grouped write (max 500)
//	    --min-credential     minimum credential length accepted by import
//	-b, --s3-bucket          bucket holding import files
//	    --s3-region, --s3-endpoint, --s3-user, --s3-password
func BindFlags(fs *pflag.FlagSet, config *Config) {
	fs.StringVarP(&config.DatabaseDSN, "database-dsn", "d", config.DatabaseDSN, "document store DSN")
	fs.StringVar(&config.IdentityDSN, "identity-dsn", config.IdentityDSN, "identity provider DSN")
	fs.StringVarP(&config.SecretKey, "secret-key", "s", config.SecretKey, "secret key")
	fs.DurationVar(&config.AccessTokenValidityDuration, "access-ttl", config.AccessTokenValidityDuration, "access token validity")
	fs.DurationVar(&config.RefreshTokenValidityDuration, "refresh-ttl", config.RefreshTokenValidityDuration, "refresh token validity")
	fs.IntVar(&config.BatchGroupSize, "batch-size", config.BatchGroupSize, "operations per grouped write")
	fs.IntVar(&config.MinCredentialLength, "min-credential", config.MinCredentialLength, "minimum credential length")
	fs.StringVarP(&config.S3Bucket, "s3-bucket", "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "s3-region", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "s3-endpoint", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3RootUser, "s3-user", config.S3RootUser, "S3 user")
	fs.StringVar(&config.S3RootPassword, "s3-password", config.S3RootPassword, "S3 password")
}
