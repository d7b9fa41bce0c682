package schema

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxIdentifierLen is the Postgres identifier limit, applied to every backend.
const MaxIdentifierLen = 63

// compressionExts are stripped before the format extension when deriving a
// table name from a file path.
var compressionExts = []string{".gz", ".gzip", ".zst", ".zstd"}

// NormalizeIdentifier converts an arbitrary property or file name into a safe,
// lowercase identifier: diacritics are folded, separators become '_', anything
// outside [a-z0-9_] is dropped and the result is capped at MaxIdentifierLen.
// The result may be empty.
func NormalizeIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if folded, _, err := transform.String(foldDiacritics(), s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	b.Grow(len(s))

	lastUnderscore := false
	for _, r := range s {
		if unicode.IsSpace(r) || strings.ContainsRune("-./\\:;,()[]{}", r) {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			lastUnderscore = r == '_'
		}
	}
	return truncateIdentifier(strings.Trim(b.String(), "_"), MaxIdentifierLen)
}

// foldDiacritics is built per call: transform.Chain keeps internal state and
// is not safe for concurrent use.
func foldDiacritics() transform.Transformer {
	return transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// truncateIdentifier cuts an ASCII identifier to max bytes without leaving a
// trailing underscore.
func truncateIdentifier(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimRight(s[:max], "_")
}

// uniqueName returns base, or base with the smallest _N suffix not in used,
// and records the result in used.
func uniqueName(base string, used map[string]bool) string {
	name := base
	for n := 2; used[name]; n++ {
		suffix := fmt.Sprintf("_%d", n)
		name = truncateIdentifier(base, MaxIdentifierLen-len(suffix)) + suffix
	}
	used[name] = true
	return name
}

// DeriveTableName turns an input path into a table name:
// data/nuts3_2024_regions_eez_w_eez.geojson → nuts3_2024_regions_eez_w_eez.
func DeriveTableName(path string) (string, error) {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	for _, ext := range compressionExts {
		if strings.HasSuffix(lower, ext) {
			base = base[:len(base)-len(ext)]
			break
		}
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))

	name := NormalizeIdentifier(base)
	if name == "" {
		return "", fmt.Errorf("schema: cannot derive a table name from %q", path)
	}
	return name, nil
}

// NormalizeTableName normalizes an explicit, optionally schema-qualified table
// name part by part: "Public.My Table" → "public.my_table".
func NormalizeTableName(name string) (string, error) {
	parts := strings.Split(strings.TrimSpace(name), ".")
	if len(parts) > 2 {
		return "", fmt.Errorf("schema: table name %q has more than one qualifier", name)
	}
	for i, p := range parts {
		parts[i] = NormalizeIdentifier(p)
		if parts[i] == "" {
			return "", fmt.Errorf("schema: table name %q normalizes to an empty identifier", name)
		}
	}
	return strings.Join(parts, "."), nil
}

// SplitTableName splits "schema.table" into its parts. schemaName is empty for
// unqualified names.
func SplitTableName(name string) (schemaName, table string) {
	if i := strings.IndexByte(name, '.'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}
