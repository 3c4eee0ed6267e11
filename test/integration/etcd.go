package integration

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ab180/lrbatch/coordinator"
	"github.com/rs/zerolog/log"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/thoas/go-funk"
)

const (
	etcdEndpointEnvKey  = "LRBATCH_TEST_ETCD_ENDPOINT"
	defaultEtcdEndpoint = "127.0.0.1:2379"
)

func etcdEndpoint() string {
	if endpoint, ok := os.LookupEnv(etcdEndpointEnvKey); ok {
		return endpoint
	}
	return defaultEtcdEndpoint
}

// ProvideEtcd provides coordinator.Etcd on integration tests.
// Otherwise, coordinator.LocalMemory is provided.
func ProvideEtcd() (crd coordinator.Coordinator, closer func()) {
	if !IsIntegrationTest {
		return coordinator.NewLocalMemory(), func() {}
	}
	testNs := fmt.Sprintf("lrbatch_test_%s/", funk.RandomString(10))

	etcd, err := coordinator.NewEtcd([]string{etcdEndpoint()}, testNs)
	So(err, ShouldBeNil)

	// clean all items under test namespace
	closer = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		log.Info().Str("namespace", testNs).Msg("Closing etcd")
		if _, err := etcd.Delete(ctx, ""); err != nil {
			So(err, ShouldBeNil)
		}
		if err := etcd.Close(); err != nil {
			So(err, ShouldBeNil)
		}
	}
	return etcd, closer
}

// WithEtcd runs fn with a coordinator provided by ProvideEtcd, cleaned up on convey Reset.
func WithEtcd(fn func(crd coordinator.Coordinator)) func() {
	return func() {
		crd, closer := ProvideEtcd()
		Reset(closer)

		fn(crd)
	}
}
