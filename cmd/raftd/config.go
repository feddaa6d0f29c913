package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmaxwell/raft"
)

// clusterConfig is the on-disk YAML description of a cluster: the
// roster every node in the cluster agrees on at bootstrap time.
type clusterConfig struct {
	Servers []serverConfig `yaml:"servers"`

	ElectionTimeoutMs  uint64 `yaml:"election_timeout_ms"`
	HeartbeatTimeoutMs uint64 `yaml:"heartbeat_timeout_ms"`
}

type serverConfig struct {
	ID      uint64 `yaml:"id"`
	Address string `yaml:"address"`
	Voting  bool   `yaml:"voting"`
}

func loadClusterConfig(path string) (*clusterConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("raftd: read cluster config %s: %w", path, err)
	}
	var cfg clusterConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("raftd: parse cluster config %s: %w", path, err)
	}
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("raftd: cluster config %s names no servers", path)
	}
	if cfg.ElectionTimeoutMs == 0 {
		cfg.ElectionTimeoutMs = 1000
	}
	if cfg.HeartbeatTimeoutMs == 0 {
		cfg.HeartbeatTimeoutMs = 100
	}
	return &cfg, nil
}

func (c *clusterConfig) raftConfiguration() (*raft.Configuration, error) {
	servers := make([]raft.Server, len(c.Servers))
	for i, s := range c.Servers {
		servers[i] = raft.Server{ID: s.ID, Address: s.Address, Voting: s.Voting}
	}
	return raft.NewConfiguration(servers...)
}

func (c *clusterConfig) addressOf(id uint64) (string, error) {
	for _, s := range c.Servers {
		if s.ID == id {
			return s.Address, nil
		}
	}
	return "", fmt.Errorf("raftd: server id %d not present in cluster config", id)
}
