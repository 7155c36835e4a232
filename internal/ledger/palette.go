package ledger

import "hash/fnv"

var palette = []string{
	"#4E79A7", "#F28E2B", "#E15759", "#76B7B2", "#59A14F",
	"#EDC948", "#B07AA1", "#FF9DA7", "#9C755F", "#BAB0AC",
	"#2E86AB", "#A23B72",
}

// PlaceholderColor is used for the synthetic "No Data" slice.
const PlaceholderColor = "#E0E0E0"

// Color picks a stable palette entry for name.
func Color(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return palette[h.Sum32()%uint32(len(palette))]
}
