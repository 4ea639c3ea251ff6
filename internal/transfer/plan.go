// Package transfer delivers local payloads over a size-capped transport,
// splitting oversized files into numbered parts plus a client-side merge tool.
package transfer

import "fmt"

// Plan is the derived split decision for one payload. It is computed, never
// stored.
type Plan struct {
	SizeBytes    int64
	CeilingBytes int64
	PartCount    int
}

// NewPlan computes the part count for a payload of sizeBytes against
// ceilingBytes. A payload at or under the ceiling is sent whole (one part).
func NewPlan(sizeBytes, ceilingBytes int64) Plan {
	plan := Plan{SizeBytes: sizeBytes, CeilingBytes: ceilingBytes, PartCount: 1}
	if ceilingBytes > 0 && sizeBytes > ceilingBytes {
		count := sizeBytes / ceilingBytes
		if sizeBytes%ceilingBytes != 0 {
			count++
		}
		plan.PartCount = int(count)
	}
	return plan
}

// Split reports whether the payload must be chunked.
func (p Plan) Split() bool { return p.PartCount > 1 }

// PartName builds the deterministic part filename. Index and total are
// 1-based and zero-padded to 3 digits; the merge tool depends on this exact
// shape, so the width must never silently change.
func PartName(base string, index, total int, ext string) string {
	return fmt.Sprintf("%s_part%03dof%03d%s", base, index, total, ext)
}

// MergedName is the filename the merge tool saves the reconstructed file under.
func MergedName(base, ext string) string {
	return base + "_merged" + ext
}
