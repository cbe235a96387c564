// Package config resolves the proposer daemon's startup constants and
// cluster addressing through github.com/spf13/viper bound to
// github.com/spf13/cobra flags, the combination the rest of the example
// pack's cobra-based daemons (e.g. prysm's beacon-chain command tree)
// use for layered flag/env/file configuration.
package config

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/quorumlog/proposer/internal/paxos"
)

// Config is everything a proposerd process needs to start: its identity
// and protocol limits, plus where to find its peers.
type Config struct {
	Limits paxos.Limits

	ListenAddr     string
	AcceptorAddrs  []string
	MetricsAddr    string
	TickIntervalMS int
}

// Load reads proposer_id, max_proposers, n_of_acceptors,
// proposer_array_size, preexec_win_size, max_value_size,
// listen_addr, acceptor_addrs, metrics_addr and tick_interval_ms out of
// v (already populated by the caller; proposerd's serve command binds
// flags and PROPOSERD_* environment variables) and validates the result.
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Limits: paxos.Limits{
			ProposerID:        uint32(v.GetInt("proposer_id")),
			MaxProposers:      uint32(v.GetInt("max_proposers")),
			NOfAcceptors:      uint32(v.GetInt("n_of_acceptors")),
			ProposerArraySize: uint32(v.GetInt("proposer_array_size")),
			PreexecWinSize:    uint32(v.GetInt("preexec_win_size")),
			MaxValueSize:      uint32(v.GetInt("max_value_size")),
		},
		ListenAddr:     v.GetString("listen_addr"),
		AcceptorAddrs:  v.GetStringSlice("acceptor_addrs"),
		MetricsAddr:    v.GetString("metrics_addr"),
		TickIntervalMS: v.GetInt("tick_interval_ms"),
	}
	cfg.Limits.Quorum = cfg.Limits.NOfAcceptors/2 + 1

	if err := cfg.Limits.Validate(); err != nil {
		return Config{}, err
	}
	if len(cfg.AcceptorAddrs) != int(cfg.Limits.NOfAcceptors) {
		return Config{}, errors.Errorf("config: got %d acceptor_addrs, want n_of_acceptors=%d", len(cfg.AcceptorAddrs), cfg.Limits.NOfAcceptors)
	}
	return cfg, nil
}

// BindDefaults sets the fallback values Load reads when neither a flag,
// an environment variable, nor a config file supplies one.
func BindDefaults(v *viper.Viper) {
	v.SetDefault("max_proposers", 3)
	v.SetDefault("n_of_acceptors", 3)
	v.SetDefault("proposer_array_size", 1024)
	v.SetDefault("preexec_win_size", 8)
	v.SetDefault("max_value_size", 1<<20)
	v.SetDefault("listen_addr", ":7000")
	v.SetDefault("metrics_addr", ":9100")
	v.SetDefault("tick_interval_ms", 20)
}
