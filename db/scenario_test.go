package db

import (
	"os"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// scenario is a script run against a fresh database. Each step either returns
// rows, affects rows or fails with an error containing the given text.
type scenario struct {
	Name  string   `yaml:"name"`
	Setup []string `yaml:"setup"`
	Steps []struct {
		SQL      string   `yaml:"sql"`
		Args     []any    `yaml:"args"`
		Rows     []string `yaml:"rows"`
		Affected *int64   `yaml:"affected"`
		Error    string   `yaml:"error"`
		Text     string   `yaml:"text"`
	} `yaml:"steps"`
}

func loadScenarios(t *testing.T) []scenario {
	t.Helper()
	b, err := os.ReadFile("testdata/scenarios.yaml")
	if err != nil {
		t.Fatal(err)
	}
	var scenarios []scenario
	if err := yaml.Unmarshal(b, &scenarios); err != nil {
		t.Fatalf("parse scenarios: %s", err)
	}
	return scenarios
}

func TestScenarios(t *testing.T) {
	for _, sc := range loadScenarios(t) {
		t.Run(sc.Name, func(t *testing.T) {
			db := mustCreateDB(t)
			for _, s := range sc.Setup {
				mustExecute(t, db, s)
			}
			for _, step := range sc.Steps {
				res := db.Execute(step.SQL, step.Args...)
				if step.Error != "" {
					if res.Err == nil {
						t.Fatalf("%s: expected error containing %q", step.SQL, step.Error)
					}
					if !strings.Contains(res.Err.Error(), step.Error) {
						t.Fatalf("%s: expected error containing %q got %q", step.SQL, step.Error, res.Err)
					}
					continue
				}
				if res.Err != nil {
					t.Fatalf("%s executing sql: %s", res.Err, step.SQL)
				}
				if step.Affected != nil && *step.Affected != res.RowsAffected {
					t.Fatalf("%s: expected %d rows affected got %d", step.SQL, *step.Affected, res.RowsAffected)
				}
				if step.Text != "" && step.Text != res.Text {
					t.Fatalf("%s: expected text %q got %q", step.SQL, step.Text, res.Text)
				}
				if res.Result != nil {
					got := resultRows(t, res)
					if step.Rows == nil {
						continue
					}
					assertRows(t, got, step.Rows...)
				}
			}
		})
	}
}
