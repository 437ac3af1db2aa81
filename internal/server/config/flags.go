package config

import (
	"flag"
	"os"
	"time"

	"github.com/confideapp/confide/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-a string           gRPC bind address (e.g., ":50051")
//	-d string           PostgreSQL DSN
//	-redis string       Redis address for the revocation denylist
//	-private-key string path to the RSA private key PEM
//	-public-key string  path to the RSA public key PEM
//	-issuer string      token issuer claim
//	-audience string    token audience claim
//	-access-ttl int     access token validity, minutes
//	-refresh-ttl int    refresh token validity, minutes
//
// Arguments are filtered through flagx.FilterArgs first so flags owned by
// other components do not break parsing. Duration flags are integers in
// minutes, converted to time.Duration after parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-d", "-redis", "-private-key", "-public-key",
		"-issuer", "-audience", "-access-ttl", "-refresh-ttl",
	})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address for the revocation denylist")
	fs.StringVar(&config.PrivateKeyPath, "private-key", config.PrivateKeyPath, "RSA private key PEM path")
	fs.StringVar(&config.PublicKeyPath, "public-key", config.PublicKeyPath, "RSA public key PEM path")
	fs.StringVar(&config.TokenIssuer, "issuer", config.TokenIssuer, "token issuer")
	fs.StringVar(&config.TokenAudience, "audience", config.TokenAudience, "token audience")

	accessTTL := fs.Int("access-ttl", int(config.AccessTokenTTL.Minutes()), "access token validity (in minutes)")
	refreshTTL := fs.Int("refresh-ttl", int(config.RefreshTokenTTL.Minutes()), "refresh token validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenTTL = time.Duration(*accessTTL) * time.Minute
	config.RefreshTokenTTL = time.Duration(*refreshTTL) * time.Minute
}
