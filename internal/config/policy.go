package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the YAML overlay. Lists set here replace the environment
// values; empty fields leave them alone.
//
//	privileged_roles: [admin, records_manager]
//	protected_contexts: [signature, expense_invoice]
//	cache:
//	  size: 2048
//	  ttl: 10m
type PolicyFile struct {
	PrivilegedRoles   []string `yaml:"privileged_roles"`
	ProtectedContexts []string `yaml:"protected_contexts"`
	Cache             struct {
		Size int    `yaml:"size"`
		TTL  string `yaml:"ttl"`
	} `yaml:"cache"`
}

// applyPolicyFile merges the YAML overlay at path into c
func (c *Config) applyPolicyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var policy PolicyFile
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if len(policy.PrivilegedRoles) > 0 {
		c.PrivilegedRoles = policy.PrivilegedRoles
	}
	if len(policy.ProtectedContexts) > 0 {
		c.ProtectedContexts = policy.ProtectedContexts
	}
	if policy.Cache.Size > 0 {
		c.CacheSize = policy.Cache.Size
	}
	if policy.Cache.TTL != "" {
		ttl, err := time.ParseDuration(policy.Cache.TTL)
		if err != nil {
			return fmt.Errorf("config file %s: cache.ttl: %w", path, err)
		}
		c.CacheTTL = ttl
	}
	return nil
}
