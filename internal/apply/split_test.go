package apply

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []Statement
	}{
		{
			name:   "plain statements",
			script: "CREATE TABLE a (id int);\nCREATE TABLE b (id int);\n",
			want: []Statement{
				{SQL: "CREATE TABLE a (id int)", Line: 1},
				{SQL: "CREATE TABLE b (id int)", Line: 2},
			},
		},
		{
			name:   "final statement without delimiter",
			script: "SELECT 1;\nSELECT 2",
			want: []Statement{
				{SQL: "SELECT 1", Line: 1},
				{SQL: "SELECT 2", Line: 2},
			},
		},
		{
			name:   "line comments are dropped",
			script: "-- header\n# note\n\n-- Create table a\nCREATE TABLE a (\n  id int -- key\n);\n-- trailing\n",
			want: []Statement{
				{SQL: "CREATE TABLE a (\n  id int \n)", Line: 5},
			},
		},
		{
			name:   "double dash without space is not a comment",
			script: "SELECT 5--1;\n",
			want:   []Statement{{SQL: "SELECT 5--1", Line: 1}},
		},
		{
			name:   "delimiters inside quotes",
			script: "INSERT INTO t VALUES ('a;b', \"c;d\", 'it''s', 'x\\';y');\nSELECT `odd;name` FROM t;\n",
			want: []Statement{
				{SQL: "INSERT INTO t VALUES ('a;b', \"c;d\", 'it''s', 'x\\';y')", Line: 1},
				{SQL: "SELECT `odd;name` FROM t", Line: 2},
			},
		},
		{
			name:   "block comments",
			script: "/* leading; comment */\nSELECT /* inner; */ 1;\n/*!40101 SET NAMES utf8mb4 */;\n",
			want: []Statement{
				{SQL: "SELECT /* inner; */ 1", Line: 2},
				{SQL: "/*!40101 SET NAMES utf8mb4 */", Line: 3},
			},
		},
		{
			name: "delimiter switch around a trigger",
			script: "CREATE TABLE t (id int);\n\n" +
				"-- Create trigger t.trg\n" +
				"DELIMITER $$\n" +
				"CREATE TRIGGER `trg` BEFORE INSERT ON `t` FOR EACH ROW\n" +
				"BEGIN\n  SET NEW.id = 1;\n  SET @x = 'a$b';\nEND$$\n" +
				"DELIMITER ;\n\n" +
				"ALTER TABLE t ADD COLUMN c int;\n",
			want: []Statement{
				{SQL: "CREATE TABLE t (id int)", Line: 1},
				{SQL: "CREATE TRIGGER `trg` BEFORE INSERT ON `t` FOR EACH ROW\nBEGIN\n  SET NEW.id = 1;\n  SET @x = 'a$b';\nEND", Line: 5},
				{SQL: "ALTER TABLE t ADD COLUMN c int", Line: 12},
			},
		},
		{
			name:   "lower-case directive",
			script: "delimiter //\nSELECT 1; SELECT 2//\ndelimiter ;\n",
			want:   []Statement{{SQL: "SELECT 1; SELECT 2", Line: 2}},
		},
		{
			name:   "comments only",
			script: "-- nothing here\n/* or here */\n\n",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Split(tt.script)
			if err != nil {
				t.Fatalf("Split() error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Split() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplit_Malformed(t *testing.T) {
	scripts := map[string]string{
		"unterminated string":        "SELECT 'abc;\n",
		"unterminated identifier":    "SELECT `abc;\n",
		"unterminated block comment": "SELECT 1 /* oops;\n",
		"delimiter without argument": "DELIMITER\nSELECT 1;\n",
	}
	for name, script := range scripts {
		t.Run(name, func(t *testing.T) {
			_, err := Split(script)
			if !errors.Is(err, ErrMalformedScript) {
				t.Errorf("expected ErrMalformedScript, got %v", err)
			}
		})
	}
}
