package integration

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	envKey      = "LRBATCH_TEST_INTEGRATION"
	logLevelKey = "LRBATCH_TEST_LOG_LEVEL"
)

// IsIntegrationTest indicates that current test runs against real backends such as etcd.
// It is turned on by setting LRBATCH_TEST_INTEGRATION.
var IsIntegrationTest bool

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if level, err := zerolog.ParseLevel(os.Getenv(logLevelKey)); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}

	if _, ok := os.LookupEnv(envKey); ok {
		IsIntegrationTest = true
		log.Info().Str("etcd", etcdEndpoint()).Msg("Running integration tests.")
	}
}

// RunOnIntegrationTest skips the test unless it is an integration test.
func RunOnIntegrationTest(t *testing.T) {
	if !IsIntegrationTest {
		t.Skipf("Skipping %s since it is integration test.", t.Name())
	}
}
