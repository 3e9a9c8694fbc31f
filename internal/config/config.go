// Package config centralizes the environment-variable surface (§6.4) behind
// a small envOr/envOrInt helper pair.
package config

import (
	"os"
	"strconv"
	"strings"
)

// EnvOr returns the trimmed value of key, or def if unset/blank.
func EnvOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

// EnvOrInt parses key as an int, falling back to def on error or absence.
func EnvOrInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// Fleet holds the control-plane process configuration.
type Fleet struct {
	DataDir           string
	ListenAddr        string
	CloudBackend      string // "aws" or "local"
	AWSRegion         string
	ECSCluster        string
	TaskFamily        string
	VPCID             string
	SubnetIDs         []string
	SecurityGroupID   string
	ReconcileEvery    int // seconds
	ClusterConfigFile string
}

// LoadFleet reads the Fleet config from the environment.
func LoadFleet() Fleet {
	subnets := EnvOr("SUBNET_IDS", "")
	var subnetList []string
	if subnets != "" {
		for _, s := range strings.Split(subnets, ",") {
			if s = strings.TrimSpace(s); s != "" {
				subnetList = append(subnetList, s)
			}
		}
	}
	return Fleet{
		DataDir:           EnvOr("DATA_DIR", "./data"),
		ListenAddr:        EnvOr("LISTEN_ADDR", ":8000"),
		CloudBackend:      EnvOr("CLOUD_BACKEND", "local"),
		AWSRegion:         EnvOr("AWS_REGION", "us-east-1"),
		ECSCluster:        EnvOr("ECS_CLUSTER", "vibe-fleet"),
		TaskFamily:        EnvOr("TASK_FAMILY", "vibe-workspace"),
		VPCID:             EnvOr("VPC_ID", ""),
		SubnetIDs:         subnetList,
		SecurityGroupID:   EnvOr("SECURITY_GROUP_ID", ""),
		ReconcileEvery:    EnvOrInt("RECONCILE_INTERVAL_SECONDS", 10),
		ClusterConfigFile: EnvOr("CLUSTER_CONFIG_FILE", ""),
	}
}

// Agent holds the in-workspace agent loop process configuration.
type Agent struct {
	ListenAddr     string
	ProjectRoot    string
	ChatHistoryDir string
	AWSRegion      string
	ModelID        string
	PreviewPort    int
}

// LoadAgent reads the Agent config from the environment.
func LoadAgent() Agent {
	region := EnvOr("AWS_REGION", "us-east-1")
	return Agent{
		ListenAddr:     EnvOr("AGENT_LISTEN_ADDR", ":8081"),
		ProjectRoot:    EnvOr("PROJECT_ROOT", "."),
		ChatHistoryDir: EnvOr("CHAT_HISTORY_DIR", "./data"),
		AWSRegion:      region,
		ModelID:        EnvOr("BEDROCK_MODEL_ID", defaultModelID(region)),
		PreviewPort:    EnvOrInt("PREVIEW_PORT", 3000),
	}
}

// defaultModelID derives the inference-profile prefix from the region the
// way the original selects us|eu|apac, per spec §6.4.
func defaultModelID(region string) string {
	prefix := "us"
	switch {
	case strings.HasPrefix(region, "eu-"):
		prefix = "eu"
	case strings.HasPrefix(region, "ap-"):
		prefix = "apac"
	}
	return prefix + ".anthropic.claude-3-5-sonnet-20241022-v2:0"
}
