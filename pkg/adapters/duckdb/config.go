package duckdb

import (
	"fmt"
	"sort"
	"strings"
)

// settingStatements turns target options (memory_limit, threads, ...) into SET statements,
// sorted by key.
func settingStatements(options map[string]string) []string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	stmts := make([]string, 0, len(keys))
	for _, k := range keys {
		if !validSettingName(k) {
			continue
		}
		stmts = append(stmts, fmt.Sprintf("SET %s = '%s'", k, escapeLiteral(options[k])))
	}
	return stmts
}

func validSettingName(name string) bool {
	if name == "" {
		return false
	}
	return strings.IndexFunc(name, func(r rune) bool {
		return r != '_' && (r < 'a' || r > 'z') && (r < '0' || r > '9')
	}) < 0
}
