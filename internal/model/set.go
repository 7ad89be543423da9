package model

import "sort"

// Set is a named group of models migrated together
type Set struct {
	Name   string
	Models []Model
}

// Databases returns the distinct database names of the set, sorted
func (s *Set) Databases() []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range s.Models {
		if m.Database == "" || seen[m.Database] {
			continue
		}
		seen[m.Database] = true
		names = append(names, m.Database)
	}
	sort.Strings(names)
	return names
}

// ForDatabase returns the models targeting one database, in set order
func (s *Set) ForDatabase(database string) []Model {
	var models []Model
	for _, m := range s.Models {
		if m.Database == database {
			models = append(models, m)
		}
	}
	return models
}

// Tables returns the table names of the models targeting one database
func (s *Set) Tables(database string) []string {
	var tables []string
	for _, m := range s.ForDatabase(database) {
		tables = append(tables, m.Table)
	}
	sort.Strings(tables)
	return tables
}
