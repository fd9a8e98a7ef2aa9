// Package split implements the length monitor and splitter: a post-commit
// pass that enforces a per-artifact size budget by splitting oversized
// artifacts into an index plus ordered parts, preserving every
// cross-reference through the cross-reference index.
package split

import (
	"regexp"
	"strings"
)

// Section is one structural section of an artifact, delimited by the
// artifact's own nesting markers (markdown headings).
type Section struct {
	Heading string // heading text, empty for the preamble
	Anchor  string // slug of the heading, empty for the preamble
	Level   int    // 1 for "#", 2 for "##"; 0 for the preamble
	Lines   []string
}

// Size returns the section size in lines
func (s Section) Size() int {
	return len(s.Lines)
}

var (
	headingPattern      = regexp.MustCompile(`^(#{1,6})\s+(.*)$`)
	refPattern          = regexp.MustCompile(`\[([^\]]*)\]\(#([A-Za-z0-9][A-Za-z0-9_-]*)\)`)
	qualifiedRefPattern = regexp.MustCompile(`\[([^\]]*)\]\(([A-Za-z0-9][A-Za-z0-9._-]*)#([A-Za-z0-9][A-Za-z0-9_-]*)\)`)
	slugStrip           = regexp.MustCompile(`[^a-z0-9 -]`)
)

// Anchorize turns a heading into its anchor slug: lowercase, punctuation
// stripped, spaces collapsed to single dashes.
func Anchorize(heading string) string {
	s := strings.ToLower(strings.TrimSpace(heading))
	s = slugStrip.ReplaceAllString(s, "")
	s = strings.Join(strings.Fields(s), "-")
	return s
}

// ParseSections splits content into its top-level sections. Lines before the
// first top-level heading form a preamble section with no heading.
func ParseSections(content string) []Section {
	lines := splitLines(content)

	var sections []Section
	current := Section{}
	flush := func() {
		if current.Heading != "" || len(current.Lines) > 0 {
			sections = append(sections, current)
		}
	}

	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil && len(m[1]) == 1 {
			flush()
			current = Section{
				Heading: m[2],
				Anchor:  Anchorize(m[2]),
				Level:   1,
				Lines:   nil,
			}
		}
		current.Lines = append(current.Lines, line)
	}
	flush()

	// The heading line itself belongs to its section; the preamble keeps
	// whatever preceded the first heading
	return sections
}

// Anchors returns every anchor defined in the lines, in order: one per
// heading at any level.
func Anchors(lines []string) []string {
	var anchors []string
	for _, line := range lines {
		if m := headingPattern.FindStringSubmatch(line); m != nil {
			if a := Anchorize(m[2]); a != "" {
				anchors = append(anchors, a)
			}
		}
	}
	return anchors
}

// ContentAnchors returns every anchor defined in the content
func ContentAnchors(content string) []string {
	return Anchors(splitLines(content))
}

// QualifiedReferences returns the logical targets of cross-artifact
// references in the content: "<artifact>#<anchor>". Part suffixes are
// stripped so a link into a split part resolves against the parent's
// registered target.
func QualifiedReferences(content string) []string {
	var targets []string
	for _, m := range qualifiedRefPattern.FindAllStringSubmatch(content, -1) {
		artifact := m[2]
		if IsDerived(artifact) {
			if i := strings.LastIndex(artifact, ".part"); i >= 0 {
				artifact = artifact[:i]
			}
		}
		targets = append(targets, artifact+"#"+m[3])
	}
	return targets
}

// References returns every in-document cross-reference anchor cited in the
// content, in order of appearance.
func References(content string) []string {
	var refs []string
	for _, m := range refPattern.FindAllStringSubmatch(content, -1) {
		refs = append(refs, m[2])
	}
	return refs
}

// splitLines splits content into lines without a trailing phantom line for a
// final newline. The empty string has no lines.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	trimmed := strings.TrimSuffix(content, "\n")
	return strings.Split(trimmed, "\n")
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
