package split

import (
	"fmt"
	"strings"
)

// Part is one planned size-bounded fragment of an oversized artifact.
// Indices are 1-based; part names follow "<parent>.part<N>".
type Part struct {
	Index   int
	Lines   []string
	Anchors []string // anchors defined within this part, in order
	Heading string   // first heading covered, for the navigation index

	// bare on the final part when the parent content had no final newline,
	// so part concatenation reproduces the parent byte-exactly
	bare bool
}

// Size returns the part size in lines
func (p Part) Size() int {
	return len(p.Lines)
}

// Content returns the part content
func (p Part) Content() string {
	c := joinLines(p.Lines)
	if p.bare {
		c = strings.TrimSuffix(c, "\n")
	}
	return c
}

// Plan is a computed split: ordered parts that partition the parent content
// with no gaps or overlaps.
type Plan struct {
	Artifact string
	Version  int
	Budget   int
	Parts    []Part
}

// AnchorPart returns the part index each anchor lands in
func (p Plan) AnchorPart() map[string]int {
	m := make(map[string]int)
	for _, part := range p.Parts {
		for _, a := range part.Anchors {
			if _, seen := m[a]; !seen {
				m[a] = part.Index
			}
		}
	}
	return m
}

// PartName returns the artifact name of one part
func PartName(parent string, index int) string {
	return fmt.Sprintf("%s.part%d", parent, index)
}

// IndexName returns the artifact name of the navigation index
func IndexName(parent string) string {
	return parent + ".index"
}

// IsDerived reports whether the name denotes a split part or navigation
// index rather than a source artifact. The sweep skips derived artifacts.
func IsDerived(name string) bool {
	if strings.HasSuffix(name, ".index") {
		return true
	}
	if i := strings.LastIndex(name, ".part"); i >= 0 {
		rest := name[i+len(".part"):]
		if rest == "" {
			return false
		}
		for _, r := range rest {
			if r < '0' || r > '9' {
				return false
			}
		}
		return true
	}
	return false
}

// BuildPlan computes the split plan for content under the given budget:
// greedy boundary-aware packing of top-level sections, recursive
// decomposition of any single section over budget, and a small-remainder
// merge controlled by mergeThreshold.
func BuildPlan(artifact string, version int, content string, budget int, mergeThreshold float64) Plan {
	sections := ParseSections(content)

	// Decompose sections into packable units, each within budget
	var units [][]string
	for _, sec := range sections {
		units = append(units, decompose(sec.Lines, budget, 2)...)
	}

	// Greedy packing: accumulate consecutive units until the next would
	// overflow the budget
	var packed [][]string
	var current []string
	for _, u := range units {
		if len(current) > 0 && len(current)+len(u) > budget {
			packed = append(packed, current)
			current = nil
		}
		current = append(current, u...)
	}
	if len(current) > 0 {
		packed = append(packed, current)
	}

	// Small-remainder merge: a near-empty final part folds into its
	// predecessor, but never past the budget. Every emitted part stays
	// within budget or the size gate would flag the splitter's own output.
	if len(packed) >= 2 {
		last := packed[len(packed)-1]
		prev := packed[len(packed)-2]
		if float64(len(last)) < mergeThreshold*float64(budget) && len(prev)+len(last) <= budget {
			packed[len(packed)-2] = append(prev, last...)
			packed = packed[:len(packed)-1]
		}
	}

	plan := Plan{Artifact: artifact, Version: version, Budget: budget}
	for i, lines := range packed {
		part := Part{
			Index:   i + 1,
			Lines:   lines,
			Anchors: Anchors(lines),
		}
		for _, line := range lines {
			if m := headingPattern.FindStringSubmatch(line); m != nil {
				part.Heading = m[2]
				break
			}
		}
		plan.Parts = append(plan.Parts, part)
	}
	if len(plan.Parts) > 0 && content != "" && !strings.HasSuffix(content, "\n") {
		plan.Parts[len(plan.Parts)-1].bare = true
	}
	return plan
}

// decompose returns packable units for one section. A section within budget
// is a single unit. An oversized section splits at the next-finer boundary:
// subheadings, then blank-line paragraphs, then raw line chunks as the last
// resort. Content is never truncated.
func decompose(lines []string, budget int, subLevel int) [][]string {
	if len(lines) <= budget {
		if len(lines) == 0 {
			return nil
		}
		return [][]string{lines}
	}

	var pieces [][]string
	switch {
	case subLevel <= 6:
		pieces = splitAtHeadings(lines, subLevel)
	default:
		pieces = splitAtParagraphs(lines)
	}

	// No finer boundary found at this level: descend
	if len(pieces) <= 1 {
		if subLevel <= 6 {
			return decompose(lines, budget, subLevel+1)
		}
		return chunkLines(lines, budget)
	}

	var units [][]string
	for _, piece := range pieces {
		nextLevel := subLevel + 1
		if subLevel > 6 {
			nextLevel = subLevel
		}
		units = append(units, decomposeAt(piece, budget, nextLevel)...)
	}
	return units
}

// decomposeAt recurses with paragraph fallback once heading levels are
// exhausted
func decomposeAt(lines []string, budget, subLevel int) [][]string {
	if len(lines) <= budget {
		if len(lines) == 0 {
			return nil
		}
		return [][]string{lines}
	}
	if subLevel <= 6 {
		return decompose(lines, budget, subLevel)
	}
	pieces := splitAtParagraphs(lines)
	if len(pieces) <= 1 {
		return chunkLines(lines, budget)
	}
	var units [][]string
	for _, piece := range pieces {
		if len(piece) <= budget {
			units = append(units, piece)
		} else {
			units = append(units, chunkLines(piece, budget)...)
		}
	}
	return units
}

// splitAtHeadings splits lines at headings of the given level, keeping the
// prefix before the first such heading as its own piece
func splitAtHeadings(lines []string, level int) [][]string {
	var pieces [][]string
	var current []string
	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil && len(m[1]) == level {
			if len(current) > 0 {
				pieces = append(pieces, current)
			}
			current = nil
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		pieces = append(pieces, current)
	}
	return pieces
}

// splitAtParagraphs splits lines at blank-line boundaries
func splitAtParagraphs(lines []string) [][]string {
	var pieces [][]string
	var current []string
	for _, line := range lines {
		current = append(current, line)
		if strings.TrimSpace(line) == "" {
			pieces = append(pieces, current)
			current = nil
		}
	}
	if len(current) > 0 {
		pieces = append(pieces, current)
	}
	return pieces
}

// chunkLines is the last-resort decomposition: fixed budget-sized chunks
func chunkLines(lines []string, budget int) [][]string {
	var chunks [][]string
	for len(lines) > budget {
		chunks = append(chunks, lines[:budget])
		lines = lines[budget:]
	}
	if len(lines) > 0 {
		chunks = append(chunks, lines)
	}
	return chunks
}
