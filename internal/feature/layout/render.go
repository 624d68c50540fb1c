package layout

import (
	"fmt"
	"strings"

	"cipherpanel/internal/domain"
)

// Render maps a revealed config to its per-component priority listing.
// Component i owns bits [3i, 3i+3); extraction is total for any uint64, so
// the function has no failure mode and is byte-deterministic.
func Render(config uint64) string {
	lines := make([]string, len(domain.Components))
	for i, name := range domain.Components {
		p := (config >> (domain.PriorityBits * i)) & 0b111
		lines[i] = fmt.Sprintf("%s: Priority %d", name, p)
	}
	return strings.Join(lines, "\n")
}
