package gtypes

import "encoding/json"

// Config is the chain-level configuration, mutable only by Owner (§3).
type Config struct {
	Owner       Address
	Bank        Address
	Taxman      Address
	Cronjobs    map[Address]Duration
	Permissions ConfigPermissions
	MaxOrphanAge Duration
}

type ConfigPermissions struct {
	Upload      Permission
	Instantiate Permission
}

// SortedCronAddrs returns cron contract addresses ordered ascending, the
// canonical firing order is (next_execution, address) (§5 determinism); the
// caller pairs this with the next_execution map held by the app.
func (c Config) SortedCronAddrs() []Address {
	addrs := make([]Address, 0, len(c.Cronjobs))
	for a := range c.Cronjobs {
		addrs = append(addrs, a)
	}
	sortAddresses(addrs)
	return addrs
}

func sortAddresses(addrs []Address) {
	for i := 1; i < len(addrs); i++ {
		for j := i; j > 0 && lessAddr(addrs[j], addrs[j-1]); j-- {
			addrs[j], addrs[j-1] = addrs[j-1], addrs[j]
		}
	}
}

func lessAddr(a, b Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// AppConfig is arbitrary per-application typed JSON, keyed by string,
// read-only to contracts via the querier (§3).
type AppConfig struct {
	values map[string]json.RawMessage
}

func NewAppConfig() *AppConfig {
	return &AppConfig{values: make(map[string]json.RawMessage)}
}

func (a *AppConfig) Set(key string, value json.RawMessage) {
	if a.values == nil {
		a.values = make(map[string]json.RawMessage)
	}
	a.values[key] = value
}

func (a *AppConfig) Get(key string) (json.RawMessage, bool) {
	v, ok := a.values[key]
	return v, ok
}

func (a *AppConfig) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	return keys
}
