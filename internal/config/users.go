package config

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
)

// LoadUserData parses the CSV user-record table: a mandatory header row
// whose column names become scope keys, with every value treated as an
// opaque string (no type coercion).
func LoadUserData(path string) ([]UserData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open user data %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("config: read user data header: %w", err)
	}

	var users []UserData
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("config: read user data row: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		users = append(users, UserData{Columns: row})
	}
	return users, nil
}

// UserColumns returns the set of distinct column names present across every
// record, used to cross-check route placeholders against the actual CSV
// header (config.ValidateWithColumns).
func UserColumns(users []UserData) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, u := range users {
		for col := range u.Columns {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				out = append(out, col)
			}
		}
	}
	sort.Strings(out)
	return out
}
