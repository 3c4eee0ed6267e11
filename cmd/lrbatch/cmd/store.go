package cmd

import (
	"strings"

	"github.com/ab180/lrbatch/coordinator"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// memoryStore lives as long as the process, shared by every command run in it.
var memoryStore = coordinator.NewLocalMemory()

// openStore connects to the store selected by the --store flag.
func openStore() (coordinator.Coordinator, error) {
	switch store := viper.GetString("store"); store {
	case "memory":
		return memoryStore, nil
	case "etcd":
		endpoints := viper.GetStringSlice("etcd-endpoints")
		ns := viper.GetString("etcd-namespace")
		if ns != "" && !strings.HasSuffix(ns, "/") {
			ns += "/"
		}
		crd, err := coordinator.NewEtcd(endpoints, ns)
		if err != nil {
			return nil, errors.Wrapf(err, "connect to etcd %v", endpoints)
		}
		return crd, nil
	default:
		return nil, errors.Errorf("unknown store %q. available stores: memory, etcd", store)
	}
}
