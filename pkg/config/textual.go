package config

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/clickcore/pkg/element"
	"github.com/cuemby/clickcore/pkg/errh"
	"github.com/docker/go-units"
)

// ParseTextual reads the declarative textual configuration language of
// §6 from src, driving b for every element, connection, and requirement
// it finds, and reporting diagnostics (bad syntax, unknown class,
// duplicate names forwarded from the Builder) through eh. filename
// names the source for landmarks; a caller reading from an archive
// member passes that member's name.
//
// Grammar, one statement per logical line after comment/whitespace
// stripping and `;`-splitting:
//
//	name :: class(config-args);
//	a [p1] -> [p2] b;
//	a -> b;                       (bare ports default to 0)
//	require(kind, value);
//
// Config args may use docker/go-units size suffixes ("64KB", "2Mi");
// numeric arguments are left as literal text for the element's own
// Configure to parse, with units.RAMInBytes used only to validate a
// token that looks like a size literal resolves to a sane byte count.
func ParseTextual(src string, filename string, b Builder, registry *Registry, eh errh.Handler) error {
	if registry == nil {
		registry = Default
	}

	names := make(map[string]element.EIndex)
	lineOf := make(map[string]int)

	lineNo := 0
	scanner := bufio.NewScanner(strings.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var pending strings.Builder
	var pendingStartLine int

	flush := func(stmt string, startLine int) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			return
		}
		lm := errh.Landmark{File: filename, Line: startLine}
		if err := parseStatement(stmt, lm, b, registry, names, lineOf, eh); err != nil {
			errh.Errorf(eh, lm, "%s", err)
		}
	}

	for scanner.Scan() {
		lineNo++
		line := stripComment(scanner.Text())
		if strings.TrimSpace(line) == "" {
			continue
		}
		if pending.Len() == 0 {
			pendingStartLine = lineNo
		}

		for {
			idx := strings.IndexByte(line, ';')
			if idx < 0 {
				pending.WriteString(line)
				pending.WriteByte(' ')
				break
			}
			pending.WriteString(line[:idx])
			flush(pending.String(), pendingStartLine)
			pending.Reset()
			line = line[idx+1:]
			pendingStartLine = lineNo
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: read %s: %w", filename, err)
	}
	flush(pending.String(), pendingStartLine)
	return nil
}

// stripComment removes a trailing "//"-style line comment, respecting
// neither strings nor nesting since configuration arguments never
// themselves contain "//".
func stripComment(line string) string {
	if idx := strings.Index(line, "//"); idx >= 0 {
		return line[:idx]
	}
	return line
}

func parseStatement(stmt string, lm errh.Landmark, b Builder, registry *Registry, names map[string]element.EIndex, lineOf map[string]int, eh errh.Handler) error {
	switch {
	case strings.HasPrefix(stmt, "require("):
		return parseRequire(stmt, b)
	case strings.Contains(stmt, "::"):
		return parseElementDecl(stmt, lm, b, registry, names, lineOf, eh)
	case strings.Contains(stmt, "->"):
		return parseConnection(stmt, lm, b, names)
	default:
		return fmt.Errorf("config: unrecognized statement %q", stmt)
	}
}

// parseElementDecl handles `name :: class(arg1, arg2, ...)`.
func parseElementDecl(stmt string, lm errh.Landmark, b Builder, registry *Registry, names map[string]element.EIndex, lineOf map[string]int, eh errh.Handler) error {
	parts := strings.SplitN(stmt, "::", 2)
	if len(parts) != 2 {
		return fmt.Errorf("config: malformed element declaration %q", stmt)
	}
	name := strings.TrimSpace(parts[0])
	rest := strings.TrimSpace(parts[1])
	if name == "" {
		return fmt.Errorf("config: element declaration missing a name")
	}

	className, args, err := splitClassAndArgs(rest)
	if err != nil {
		return err
	}
	if err := validateSizeLiterals(args); err != nil {
		errh.Warnf(eh, lm, "%s", err)
	}

	elem, err := registry.New(className)
	if err != nil {
		return err
	}

	idx, err := b.AddElement(className, name, elem, args, lm)
	if err != nil {
		return err
	}
	names[name] = idx
	lineOf[name] = lm.Line
	return nil
}

// splitClassAndArgs parses "ClassName(a, b, c)" or the argument-less
// "ClassName" form.
func splitClassAndArgs(s string) (string, []string, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return strings.TrimSpace(s), nil, nil
	}
	if !strings.HasSuffix(s, ")") {
		return "", nil, fmt.Errorf("config: unterminated argument list in %q", s)
	}
	className := strings.TrimSpace(s[:open])
	argStr := s[open+1 : len(s)-1]
	if strings.TrimSpace(argStr) == "" {
		return className, nil, nil
	}
	var args []string
	for _, a := range strings.Split(argStr, ",") {
		args = append(args, strings.TrimSpace(a))
	}
	return className, args, nil
}

// validateSizeLiterals sanity-checks any argument that looks like a
// human-readable byte size (a leading digit run followed by a unit
// suffix), surfacing a malformed literal as a warning rather than
// failing the whole declaration: most config arguments are not sizes
// at all, and an element's own Configure is the final authority.
func validateSizeLiterals(args []string) error {
	for _, a := range args {
		if !looksLikeSizeLiteral(a) {
			continue
		}
		if _, err := units.RAMInBytes(a); err != nil {
			return fmt.Errorf("config: malformed size literal %q: %w", a, err)
		}
	}
	return nil
}

func looksLikeSizeLiteral(s string) bool {
	if s == "" || (s[0] < '0' || s[0] > '9') {
		return false
	}
	for _, suffix := range []string{"b", "B", "k", "K", "m", "M", "g", "G", "t", "T"} {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}

// parseConnection handles "a [p1] -> [p2] b" and the bare "a -> b".
func parseConnection(stmt string, lm errh.Landmark, b Builder, names map[string]element.EIndex) error {
	arrow := strings.Index(stmt, "->")
	if arrow < 0 {
		return fmt.Errorf("config: malformed connection %q", stmt)
	}
	left := strings.TrimSpace(stmt[:arrow])
	right := strings.TrimSpace(stmt[arrow+2:])

	fromName, fromPort, err := splitPortRef(left)
	if err != nil {
		return err
	}
	toPort, toName, err := splitPortRefReverse(right)
	if err != nil {
		return err
	}

	fromE, ok := names[fromName]
	if !ok {
		return fmt.Errorf("config: connection references unknown element %q", fromName)
	}
	toE, ok := names[toName]
	if !ok {
		return fmt.Errorf("config: connection references unknown element %q", toName)
	}
	return b.AddConnection(fromE, fromPort, toE, toPort, lm)
}

// splitPortRef parses "name [port]" or bare "name", returning port 0
// when unspecified.
func splitPortRef(s string) (string, int, error) {
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return strings.TrimSpace(s), 0, nil
	}
	if !strings.HasSuffix(s, "]") {
		return "", 0, fmt.Errorf("config: unterminated port reference %q", s)
	}
	name := strings.TrimSpace(s[:open])
	port, err := strconv.Atoi(strings.TrimSpace(s[open+1 : len(s)-1]))
	if err != nil {
		return "", 0, fmt.Errorf("config: bad port number in %q: %w", s, err)
	}
	return name, port, nil
}

// splitPortRefReverse parses "[port] name" or bare "name", the
// right-hand-side form where the port bracket leads the element name.
func splitPortRefReverse(s string) (int, string, error) {
	if !strings.HasPrefix(s, "[") {
		return 0, strings.TrimSpace(s), nil
	}
	close := strings.IndexByte(s, ']')
	if close < 0 {
		return 0, "", fmt.Errorf("config: unterminated port reference %q", s)
	}
	port, err := strconv.Atoi(strings.TrimSpace(s[1:close]))
	if err != nil {
		return 0, "", fmt.Errorf("config: bad port number in %q: %w", s, err)
	}
	return port, strings.TrimSpace(s[close+1:]), nil
}

// parseRequire handles "require(kind, value)" or the single-argument
// "require(value)" form, which defaults kind to "package".
func parseRequire(stmt string, b Builder) error {
	if !strings.HasSuffix(stmt, ")") {
		return fmt.Errorf("config: malformed require statement %q", stmt)
	}
	inner := stmt[len("require(") : len(stmt)-1]
	parts := strings.SplitN(inner, ",", 2)
	var kind, value string
	if len(parts) == 2 {
		kind = strings.TrimSpace(parts[0])
		value = strings.TrimSpace(parts[1])
	} else {
		kind = "package"
		value = strings.TrimSpace(parts[0])
	}
	b.AddRequirement(kind, value)
	return nil
}
