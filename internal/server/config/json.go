package config

import (
	"encoding/json"
	"os"

	"github.com/confideapp/confide/internal/flagx"
	"github.com/confideapp/confide/internal/timex"
)

// JsonConfig is the file-facing shape of Config. Duration fields accept
// both "15m"-style strings and integer nanoseconds via timex.Duration.
// Zero-valued fields leave the current Config value untouched, so a file
// only needs the settings it wants to override.
type JsonConfig struct {
	Env              string `json:"env"`
	EndpointAddrGRPC string `json:"endpoint_addr_grpc"`
	DatabaseDSN      string `json:"database_dsn"`
	RedisAddr        string `json:"redis_addr"`

	PrivateKeyPath      string `json:"private_key_path"`
	PublicKeyPath       string `json:"public_key_path"`
	SymmetricPassphrase string `json:"symmetric_passphrase"`

	TokenIssuer     string         `json:"token_issuer"`
	TokenAudience   string         `json:"token_audience"`
	AccessTokenTTL  timex.Duration `json:"access_token_ttl"`
	RefreshTokenTTL timex.Duration `json:"refresh_token_ttl"`

	ConfirmOTPTTL timex.Duration `json:"confirm_otp_ttl"`
	ResetOTPTTL   timex.Duration `json:"reset_otp_ttl"`

	BcryptCost  int `json:"bcrypt_cost"`
	HashWorkers int `json:"hash_workers"`

	SweepInterval timex.Duration `json:"sweep_interval"`

	S3RootUser     string `json:"s3_root_user"`
	S3RootPassword string `json:"s3_root_password"`
	S3Bucket       string `json:"s3_bucket"`
	S3Region       string `json:"s3_region"`
	S3BaseEndpoint string `json:"s3_base_endpoint"`
}

// parseJson overlays configuration from the JSON file named by the -c or
// -config flags. No flag, no overlay. Unreadable or invalid files panic:
// a requested config file that cannot be honored is a startup error.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	applyJson(config, c)
}

func applyJson(config *Config, c *JsonConfig) {
	setString(&config.Env, c.Env)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.PrivateKeyPath, c.PrivateKeyPath)
	setString(&config.PublicKeyPath, c.PublicKeyPath)
	setString(&config.SymmetricPassphrase, c.SymmetricPassphrase)
	setString(&config.TokenIssuer, c.TokenIssuer)
	setString(&config.TokenAudience, c.TokenAudience)
	if c.AccessTokenTTL.Duration != 0 {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL.Duration != 0 {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.ConfirmOTPTTL.Duration != 0 {
		config.ConfirmOTPTTL = c.ConfirmOTPTTL.Duration
	}
	if c.ResetOTPTTL.Duration != 0 {
		config.ResetOTPTTL = c.ResetOTPTTL.Duration
	}
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	if c.HashWorkers != 0 {
		config.HashWorkers = c.HashWorkers
	}
	if c.SweepInterval.Duration != 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
