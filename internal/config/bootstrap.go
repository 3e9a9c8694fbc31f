package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ClusterBootstrap is the optional on-disk seed for cluster configuration
// (VPC/subnets/security group), the way ReleaseParty loads its project
// config from YAML. When present, fleetd patches it into the store's
// ClusterConfig once at startup so an operator never has to hit
// POST /setup/cluster with the same values by hand on every fresh deploy.
type ClusterBootstrap struct {
	VPCID           string   `yaml:"vpc_id"`
	SubnetIDs       []string `yaml:"subnet_ids"`
	SecurityGroupID string   `yaml:"security_group_id"`
}

// LoadClusterBootstrap reads path if it exists; a missing path is not an
// error, since the bootstrap file is optional and /setup/cluster can supply
// the same values interactively.
func LoadClusterBootstrap(path string) (ClusterBootstrap, bool, error) {
	if path == "" {
		return ClusterBootstrap{}, false, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return ClusterBootstrap{}, false, nil
	}
	if err != nil {
		return ClusterBootstrap{}, false, fmt.Errorf("config: read cluster bootstrap: %w", err)
	}
	var cb ClusterBootstrap
	if err := yaml.Unmarshal(data, &cb); err != nil {
		return ClusterBootstrap{}, false, fmt.Errorf("config: parse cluster bootstrap: %w", err)
	}
	return cb, true, nil
}
