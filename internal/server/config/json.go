package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/staffkeeper/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "1m" and integer nanoseconds.
//
// Only keys present in the file override the defaults.
type JsonConfig struct {
	DatabaseDSN                  *string         `json:"database_dsn"`
	IdentityDSN                  *string         `json:"identity_dsn"`
	SecretKey                    *string         `json:"secret_key"`
	AccessTokenValidityDuration  *timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration *timex.Duration `json:"refresh_token_validity_duration"`
	BatchGroupSize               *int            `json:"batch_group_size"`
	MinCredentialLength          *int            `json:"min_credential_length"`
	IdentityEmailDomain          *string         `json:"identity_email_domain"`
	DefaultPosition              *string         `json:"default_position"`
	DefaultDepartment            *string         `json:"default_department"`
	Departments                  []string        `json:"departments"`
	S3RootUser                   *string         `json:"s3_root_user"`
	S3RootPassword               *string         `json:"s3_root_password"`
	S3Bucket                     *string         `json:"s3_bucket"`
	S3Region                     *string         `json:"s3_region"`
	S3BaseEndpoint               *string         `json:"s3_base_endpoint"`
}

// parseJson loads configuration values from the JSON file at path into the
// provided Config instance.
func parseJson(config *Config, path string) error {
	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.IdentityDSN, c.IdentityDSN)
	setString(&config.SecretKey, c.SecretKey)
	if c.AccessTokenValidityDuration != nil {
		config.AccessTokenValidityDuration = c.AccessTokenValidityDuration.Duration
	}
	if c.RefreshTokenValidityDuration != nil {
		config.RefreshTokenValidityDuration = c.RefreshTokenValidityDuration.Duration
	}
	if c.BatchGroupSize != nil {
		config.BatchGroupSize = *c.BatchGroupSize
	}
	if c.MinCredentialLength != nil {
		config.MinCredentialLength = *c.MinCredentialLength
	}
	setString(&config.IdentityEmailDomain, c.IdentityEmailDomain)
	setString(&config.DefaultPosition, c.DefaultPosition)
	setString(&config.DefaultDepartment, c.DefaultDepartment)
	if len(c.Departments) > 0 {
		config.Departments = c.Departments
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
