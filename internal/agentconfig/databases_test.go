package agentconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDatabasesConfigJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "databases.json")
	content := `{
		"databases": [
			{"generated_id":"11111111-1111-1111-1111-111111111111","db_type":"postgresql","host":"localhost","port":5432,"username":"u","password":"p","database":"d"},
			{"generated_id":"22222222-2222-2222-2222-222222222222","db_type":"sqlite","path":"/var/data/app.db"}
		]
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadDatabasesConfig(path)
	if err != nil {
		t.Fatalf("LoadDatabasesConfig: %v", err)
	}
	if len(cfg.Databases) != 2 {
		t.Fatalf("expected 2 databases, got %d", len(cfg.Databases))
	}

	db, ok := cfg.Find("22222222-2222-2222-2222-222222222222")
	if !ok {
		t.Fatal("expected to find sqlite entry")
	}
	if db.Path != "/var/data/app.db" {
		t.Errorf("Path = %q", db.Path)
	}
}

func TestLoadDatabasesConfigTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "databases.toml")
	content := `
[[databases]]
generated_id = "33333333-3333-3333-3333-333333333333"
db_type = "mysql"
host = "localhost"
port = 3306
username = "u"
password = "p"
database = "d"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadDatabasesConfig(path)
	if err != nil {
		t.Fatalf("LoadDatabasesConfig: %v", err)
	}
	if len(cfg.Databases) != 1 {
		t.Fatalf("expected 1 database, got %d", len(cfg.Databases))
	}
}

func TestLoadDatabasesConfigRejectsMissingField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "databases.json")
	content := `{"databases":[{"generated_id":"11111111-1111-1111-1111-111111111111","db_type":"postgresql","host":"localhost","port":5432}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadDatabasesConfig(path); err == nil {
		t.Fatal("expected validation error for missing required fields")
	}
}

func TestLoadDatabasesConfigRejectsBadUUID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "databases.json")
	content := `{"databases":[{"generated_id":"not-a-uuid","db_type":"sqlite","path":"/tmp/x.db"}]}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadDatabasesConfig(path); err == nil {
		t.Fatal("expected validation error for malformed UUID")
	}
}
