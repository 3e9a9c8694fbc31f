package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadClusterBootstrapMissingFileIsNotAnError(t *testing.T) {
	cb, ok, err := LoadClusterBootstrap(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for a missing file, got %+v", cb)
	}
}

func TestLoadClusterBootstrapEmptyPathIsSkipped(t *testing.T) {
	_, ok, err := LoadClusterBootstrap("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for an empty path")
	}
}

func TestLoadClusterBootstrapParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cluster.yaml")
	contents := "vpc_id: vpc-123\nsubnet_ids:\n  - subnet-a\n  - subnet-b\nsecurity_group_id: sg-456\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cb, ok, err := LoadClusterBootstrap(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if cb.VPCID != "vpc-123" || cb.SecurityGroupID != "sg-456" || len(cb.SubnetIDs) != 2 {
		t.Fatalf("unexpected bootstrap: %+v", cb)
	}
}
