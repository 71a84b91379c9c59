package agentdef

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/Strob0t/RepoWarden/internal/domain/document"
	"github.com/Strob0t/RepoWarden/internal/domain/permission"
)

var (
	ErrIdentityLine     = errors.New("missing or malformed identity line")
	ErrMissingSection   = errors.New("required section missing")
	ErrDuplicateSection = errors.New("required section appears more than once")
	ErrSectionOrder     = errors.New("required section out of order")
	ErrNameRequired     = errors.New("agent name is required")
)

// requiredSections lists the mandatory top-level sections in their
// required order. A document violating presence or order is invalid as
// a whole; the registry skips it with a warning.
var requiredSections = []string{
	"ROLE",
	"GOAL",
	"NON-GOALS",
	"SCOPE/PERMISSIONS",
	"OPERATING RULES",
	"INPUT",
	"PRECHECKS",
	"TASKS",
	"VALIDATION",
	"OUTPUT",
	"FAILURE HANDLING",
	"STOP CONDITIONS",
}

// section holds the raw lines collected under one top-level header.
type section struct {
	name  string
	lines []string
}

// Parse reads one agent-definition document into a Definition. The
// sourcePath is recorded on the result; the content hash is computed
// from the raw bytes.
func Parse(data []byte, sourcePath string) (*Definition, error) {
	name, class, sections, err := scan(data)
	if err != nil {
		return nil, err
	}
	if err := checkSections(sections); err != nil {
		return nil, err
	}

	byName := make(map[string]*section, len(sections))
	for i := range sections {
		byName[sections[i].name] = &sections[i]
	}

	allowed, disallowed := parseScope(byName["SCOPE/PERMISSIONS"].lines)

	def := &Definition{
		Name:           name,
		Class:          class,
		Role:           joinText(byName["ROLE"].lines),
		Goal:           joinText(byName["GOAL"].lines),
		NonGoals:       listItems(byName["NON-GOALS"].lines),
		Allowed:        allowed,
		Disallowed:     disallowed,
		OperatingRules: listItems(byName["OPERATING RULES"].lines),
		Input:          parseShape(byName["INPUT"].lines),
		Prechecks:      listItems(byName["PRECHECKS"].lines),
		Tasks:          listItems(byName["TASKS"].lines),
		Validation:     listItems(byName["VALIDATION"].lines),
		Output:         parseShape(byName["OUTPUT"].lines),
		FailureModes:   listItems(byName["FAILURE HANDLING"].lines),
		StopConditions: listItems(byName["STOP CONDITIONS"].lines),
		SourcePath:     sourcePath,
		ContentHash:    Hash(data),
	}

	if def.Name == "" {
		return nil, ErrNameRequired
	}
	return def, nil
}

// scan walks the document line by line, extracting the identity line
// and the top-level sections in encounter order.
func scan(data []byte) (name string, class permission.Class, sections []section, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	sawIdentity := false
	var current *section

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if !sawIdentity {
			if trimmed == "" {
				continue
			}
			name, class, err = parseIdentity(trimmed)
			if err != nil {
				return "", "", nil, err
			}
			sawIdentity = true
			continue
		}

		if header, ok := sectionHeader(trimmed); ok {
			sections = append(sections, section{name: header})
			current = &sections[len(sections)-1]
			continue
		}

		if current != nil {
			current.lines = append(current.lines, line)
		}
	}
	if serr := scanner.Err(); serr != nil {
		return "", "", nil, fmt.Errorf("scan document: %w", serr)
	}
	if !sawIdentity {
		return "", "", nil, ErrIdentityLine
	}
	return name, class, sections, nil
}

// parseIdentity parses the identity line: "# AGENT: <name> (<CLASS>)".
// The class token is carried as-is; an unrecognized class derives the
// most restrictive capability set rather than failing the load.
func parseIdentity(line string) (string, permission.Class, error) {
	const prefix = "# AGENT:"
	if !strings.HasPrefix(line, prefix) {
		return "", "", fmt.Errorf("%w: first line must start with %q", ErrIdentityLine, prefix)
	}
	rest := strings.TrimSpace(strings.TrimPrefix(line, prefix))

	open := strings.LastIndex(rest, "(")
	if open < 0 || !strings.HasSuffix(rest, ")") {
		return "", "", fmt.Errorf("%w: expected \"name (CLASS)\"", ErrIdentityLine)
	}
	name := strings.TrimSpace(rest[:open])
	class := strings.TrimSpace(rest[open+1 : len(rest)-1])
	if name == "" || class == "" {
		return "", "", fmt.Errorf("%w: empty name or class", ErrIdentityLine)
	}
	return name, permission.Class(class), nil
}

// sectionHeader recognizes a top-level "## NAME" header.
func sectionHeader(line string) (string, bool) {
	if !strings.HasPrefix(line, "## ") {
		return "", false
	}
	return strings.TrimSpace(line[3:]), true
}

// checkSections verifies each required section appears exactly once and
// in the required order. Unknown extra sections are tolerated as long
// as the required ones keep their relative order.
func checkSections(sections []section) error {
	seen := make(map[string]int, len(sections))
	var requiredSeen []string
	isRequired := make(map[string]bool, len(requiredSections))
	for _, r := range requiredSections {
		isRequired[r] = true
	}

	for _, s := range sections {
		seen[s.name]++
		if isRequired[s.name] {
			if seen[s.name] > 1 {
				return fmt.Errorf("%w: %s", ErrDuplicateSection, s.name)
			}
			requiredSeen = append(requiredSeen, s.name)
		}
	}

	for _, r := range requiredSections {
		if seen[r] == 0 {
			return fmt.Errorf("%w: %s", ErrMissingSection, r)
		}
	}

	for i, r := range requiredSections {
		if requiredSeen[i] != r {
			return fmt.Errorf("%w: found %s where %s was expected", ErrSectionOrder, requiredSeen[i], r)
		}
	}
	return nil
}

// parseScope splits the SCOPE/PERMISSIONS section into Allowed and
// Disallowed path lists, keyed by "### Allowed" / "### Disallowed"
// subsection headers.
func parseScope(lines []string) (allowed, disallowed []string) {
	var bucket *[]string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.EqualFold(trimmed, "### Allowed"):
			bucket = &allowed
		case strings.EqualFold(trimmed, "### Disallowed"):
			bucket = &disallowed
		case strings.HasPrefix(trimmed, "- ") && bucket != nil:
			*bucket = append(*bucket, strings.TrimSpace(trimmed[2:]))
		}
	}
	return allowed, disallowed
}

// listItems extracts "- item" lines, ignoring everything else.
func listItems(lines []string) []string {
	var items []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "- ") {
			items = append(items, strings.TrimSpace(trimmed[2:]))
		}
	}
	return items
}

// joinText collapses a section's prose into a single trimmed string.
func joinText(lines []string) string {
	var b strings.Builder
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(trimmed)
	}
	return b.String()
}

// parseShape reads shape declarations of the form
// "- name: kind (required)" from an INPUT or OUTPUT section.
func parseShape(lines []string) document.Shape {
	var shape document.Shape
	for _, item := range listItems(lines) {
		name, rest, ok := strings.Cut(item, ":")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)
		required := false
		if idx := strings.Index(rest, "("); idx >= 0 {
			required = strings.Contains(strings.ToLower(rest[idx:]), "required")
			rest = strings.TrimSpace(rest[:idx])
		}
		shape.Fields = append(shape.Fields, document.Field{
			Name:     strings.TrimSpace(name),
			Kind:     document.ParseKind(strings.ToLower(rest)),
			Required: required,
		})
	}
	return shape
}
