package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func writeRegions(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "regions.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing regions file: %v", err)
	}
	return path
}

func TestLoadRegions(t *testing.T) {
	path := writeRegions(t, `{
		"regions": [
			{"id": "Ribeirao_Preto_SP", "city": "Ribeirao Preto", "state": "SP",
			 "latitude": -21.17, "longitude": -47.81, "station_code": "A711"},
			{"id": "Brasilia_DF", "city": "Brasilia", "state": "DF",
			 "latitude": -15.78, "longitude": -47.93, "station_code": "A001"}
		]
	}`)

	regions, err := LoadRegions(path, "")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(regions))
	}
	if regions[0].ID != "Ribeirao_Preto_SP" || regions[0].StationCode != "A711" {
		t.Fatalf("unexpected first region: %+v", regions[0])
	}
	if !regions[1].HasCoordinates() {
		t.Fatal("expected coordinates on second region")
	}
}

func TestLoadRegionsRejectsWhitespaceID(t *testing.T) {
	cases := []struct {
		name string
		id   string
	}{
		{"space", "Ribeirao Preto"},
		{"tab", "Ribeirao\tPreto"},
		{"newline", "Ribeirao\nPreto"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := json.Marshal(map[string]interface{}{
				"regions": []map[string]interface{}{
					{"id": tc.id, "latitude": -21.17, "longitude": -47.81},
				},
			})
			if err != nil {
				t.Fatalf("building regions file: %v", err)
			}
			path := writeRegions(t, string(raw))

			if _, err := LoadRegions(path, ""); err == nil {
				t.Fatal("expected rejection of region id containing whitespace")
			}
		})
	}
}

func TestLoadRegionsRejectsEmptySet(t *testing.T) {
	path := writeRegions(t, `{"regions": []}`)
	if _, err := LoadRegions(path, ""); err == nil {
		t.Fatal("expected rejection of empty region set")
	}
}

func TestLoadRegionsMissingFile(t *testing.T) {
	if _, err := LoadRegions(filepath.Join(t.TempDir(), "absent.json"), ""); err == nil {
		t.Fatal("expected error for missing file")
	}
}
