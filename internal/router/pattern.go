package router

import "strings"

// compiledPattern is a parsed route pattern: literal segments compared
// verbatim, capture segments (":param") bound into KlRequest.Params by
// name.
type compiledPattern struct {
	raw      string
	segments []patternSegment
}

type patternSegment struct {
	literal string // empty when capture is true
	capture bool
	name    string // param name, only set when capture is true
}

func compilePattern(pattern string) compiledPattern {
	parts := splitPath(pattern)
	segments := make([]patternSegment, len(parts))
	for i, p := range parts {
		if strings.HasPrefix(p, ":") && len(p) > 1 {
			segments[i] = patternSegment{capture: true, name: p[1:]}
		} else {
			segments[i] = patternSegment{literal: p}
		}
	}
	return compiledPattern{raw: pattern, segments: segments}
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// match reports whether path satisfies cp, returning the captured
// params on success.
func (cp compiledPattern) match(path string) (map[string]string, bool) {
	parts := splitPath(path)
	if len(parts) != len(cp.segments) {
		return nil, false
	}
	params := make(map[string]string, len(cp.segments))
	for i, seg := range cp.segments {
		if seg.capture {
			params[seg.name] = parts[i]
			continue
		}
		if seg.literal != parts[i] {
			return nil, false
		}
	}
	return params, true
}
