package member

import (
	"os"
	"regexp"
	"strings"
	"testing"
)

// Every column declared as REFERENCES members(id) must be part of the
// delete guard, otherwise Delete fails on the foreign key instead.
func TestCountDependentsCoversEveryReference(t *testing.T) {
	raw, err := os.ReadFile("../database/schema.sql")
	if err != nil {
		t.Fatal(err)
	}

	table := regexp.MustCompile(`CREATE TABLE IF NOT EXISTS (\w+)`)
	ref := regexp.MustCompile(`^\s*(\w+)\s+BIGINT.*REFERENCES members\(id\)`)

	query := countDependentsQuery()
	current := ""
	found := 0
	for _, line := range strings.Split(string(raw), "\n") {
		if m := table.FindStringSubmatch(line); m != nil {
			current = m[1]
			continue
		}
		m := ref.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		found++
		want := "FROM " + current + " WHERE " + m[1] + " = $1"
		if !strings.Contains(query, want) {
			t.Errorf("delete guard misses %s.%s", current, m[1])
		}
	}
	if found < 4 {
		t.Fatalf("found %d member references in schema.sql, want at least 4", found)
	}
	if !strings.Contains(query, "FROM payments_trashbox WHERE member_id = $1") {
		t.Error("delete guard misses trashed payments")
	}
}
