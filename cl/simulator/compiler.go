package simulator

import (
	"fmt"
	"regexp"
	"strings"
)

// The simulator "compiler" doesn't generate code: it only finds the kernel entry points and reports the
// structural errors a real front end would choke on.

var (
	reKernelDecl     = regexp.MustCompile(`\b(?:__kernel|kernel)\s+(?:__attribute__\s*\(\(.*?\)\)\s*)?void\s+([A-Za-z_]\w*)\s*\(`)
	reErrorDirective = regexp.MustCompile(`^\s*#\s*error\b\s*(.*)$`)
)

// buildResult of compiling one source.
type buildResult struct {
	kernels []string
	log     string
	ok      bool
}

// optionsWithArgument take the following token as their argument when given separately, e.g. "-D NAME=1".
var optionsWithArgument = map[string]bool{"-D": true, "-I": true}

// validOptions reports whether every option starts with "-".
func validOptions(options string) bool {
	fields := strings.Fields(options)
	for ii := 0; ii < len(fields); ii++ {
		if !strings.HasPrefix(fields[ii], "-") {
			return false
		}
		if optionsWithArgument[fields[ii]] {
			ii++
		}
	}
	return true
}

// compileSource scans source for kernel declarations and structural errors.
func compileSource(source string) buildResult {
	var diagnostics []string
	report := func(line, col int, format string, args ...any) {
		diagnostics = append(diagnostics, fmt.Sprintf("<source>:%d:%d: error: %s", line, col, fmt.Sprintf(format, args...)))
	}

	code := stripComments(source)
	for lineNum, line := range strings.Split(code, "\n") {
		if parts := reErrorDirective.FindStringSubmatch(line); parts != nil {
			report(lineNum+1, strings.Index(line, "#")+1, "%s", strings.TrimSpace(parts[1]))
		}
	}

	// Brackets balance.
	type open struct {
		char      byte
		line, col int
	}
	var stack []open
	closing := map[byte]byte{'}': '{', ')': '(', ']': '['}
	line, col := 1, 0
	for ii := 0; ii < len(code); ii++ {
		c := code[ii]
		col++
		switch c {
		case '\n':
			line, col = line+1, 0
		case '{', '(', '[':
			stack = append(stack, open{c, line, col})
		case '}', ')', ']':
			if len(stack) == 0 || stack[len(stack)-1].char != closing[c] {
				report(line, col, "extraneous closing '%c'", c)
				continue
			}
			stack = stack[:len(stack)-1]
		}
	}
	for _, o := range stack {
		report(o.line, o.col, "unmatched '%c'", o.char)
	}

	// Kernel entry points.
	var kernels []string
	seen := make(map[string]bool)
	for _, match := range reKernelDecl.FindAllStringSubmatchIndex(code, -1) {
		name := code[match[2]:match[3]]
		if seen[name] {
			line := strings.Count(code[:match[2]], "\n") + 1
			report(line, 1, "redefinition of kernel '%s'", name)
			continue
		}
		seen[name] = true
		kernels = append(kernels, name)
	}

	if len(diagnostics) > 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("%d error(s) generated.", len(diagnostics)))
		return buildResult{log: strings.Join(diagnostics, "\n"), ok: false}
	}
	return buildResult{kernels: kernels, ok: true}
}

// stripComments replaces comments by spaces, preserving line breaks so positions stay valid.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	inLine, inBlock := false, false
	for ii := 0; ii < len(source); ii++ {
		c := source[ii]
		switch {
		case inLine:
			if c == '\n' {
				inLine = false
				sb.WriteByte(c)
			} else {
				sb.WriteByte(' ')
			}
		case inBlock:
			if c == '*' && ii+1 < len(source) && source[ii+1] == '/' {
				inBlock = false
				sb.WriteString("  ")
				ii++
			} else if c == '\n' {
				sb.WriteByte(c)
			} else {
				sb.WriteByte(' ')
			}
		case c == '/' && ii+1 < len(source) && source[ii+1] == '/':
			inLine = true
			sb.WriteString("  ")
			ii++
		case c == '/' && ii+1 < len(source) && source[ii+1] == '*':
			inBlock = true
			sb.WriteString("  ")
			ii++
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
