package sites

import "strings"

type jsKind int

const (
	jsPunct jsKind = iota
	jsIdent
	jsString
	jsOther
)

type jsToken struct {
	kind jsKind
	text string
}

// jsConfigIgnored reports whether the object exported by a grabber config module has a
// top-level `ignore: true` property. The module is tokenized, never evaluated: comments,
// string and template contents and nested objects are skipped.
func jsConfigIgnored(src []byte) bool {
	toks := tokenizeJS(string(src))
	start := exportedObject(toks)
	if start < 0 {
		return false
	}

	ignore := false
	depth := 0
	for i := start; i < len(toks); i++ {
		t := toks[i]
		if t.kind == jsPunct {
			switch t.text {
			case "{", "[", "(":
				depth++
			case "}", "]", ")":
				depth--
				if depth == 0 {
					return ignore
				}
			}
			continue
		}
		if depth != 1 || t.text != "ignore" || (t.kind != jsIdent && t.kind != jsString) {
			continue
		}
		if !punctAt(toks, i-1, "{") && !punctAt(toks, i-1, ",") {
			continue
		}
		if !punctAt(toks, i+1, ":") {
			continue
		}
		// later keys override earlier ones, as in the object literal itself
		ignore = i+2 < len(toks) && toks[i+2].kind == jsIdent && toks[i+2].text == "true"
	}
	return ignore
}

// exportedObject returns the index of the `{` opening the exported object literal, or -1.
// Handles `module.exports = {...}`, `export default {...}` and either form exporting a
// variable declared with an object literal.
func exportedObject(toks []jsToken) int {
	for i := range toks {
		var at int
		switch {
		case identAt(toks, i, "module") && punctAt(toks, i+1, ".") && identAt(toks, i+2, "exports") && punctAt(toks, i+3, "="):
			at = i + 4
		case identAt(toks, i, "export") && identAt(toks, i+1, "default"):
			at = i + 2
		default:
			continue
		}
		if punctAt(toks, at, "{") {
			return at
		}
		if at < len(toks) && toks[at].kind == jsIdent {
			return declaredObject(toks, toks[at].text)
		}
		return -1
	}
	return -1
}

func declaredObject(toks []jsToken, name string) int {
	for i := range toks {
		if !identAt(toks, i, "const") && !identAt(toks, i, "let") && !identAt(toks, i, "var") {
			continue
		}
		if identAt(toks, i+1, name) && punctAt(toks, i+2, "=") && punctAt(toks, i+3, "{") {
			return i + 3
		}
	}
	return -1
}

func punctAt(toks []jsToken, i int, text string) bool {
	return i >= 0 && i < len(toks) && toks[i].kind == jsPunct && toks[i].text == text
}

func identAt(toks []jsToken, i int, text string) bool {
	return i >= 0 && i < len(toks) && toks[i].kind == jsIdent && toks[i].text == text
}

func tokenizeJS(src string) []jsToken {
	var toks []jsToken
	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.HasPrefix(src[i:], "//"):
			end := strings.IndexByte(src[i:], '\n')
			if end < 0 {
				return toks
			}
			i += end + 1
		case strings.HasPrefix(src[i:], "/*"):
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				return toks
			}
			i += end + 4
		case c == '/' && regexAllowed(toks):
			i = skipRegex(src, i)
			toks = append(toks, jsToken{kind: jsOther})
		case c == '\'' || c == '"':
			var text string
			text, i = readQuoted(src, i)
			toks = append(toks, jsToken{kind: jsString, text: text})
		case c == '`':
			i = skipTemplate(src, i)
			toks = append(toks, jsToken{kind: jsString})
		case isIdentStart(c):
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, jsToken{kind: jsIdent, text: src[i:j]})
			i = j
		case c >= '0' && c <= '9':
			j := i + 1
			for j < len(src) && (isIdentPart(src[j]) || src[j] == '.') {
				j++
			}
			toks = append(toks, jsToken{kind: jsOther, text: src[i:j]})
			i = j
		default:
			toks = append(toks, jsToken{kind: jsPunct, text: string(c)})
			i++
		}
	}
	return toks
}

// regexAllowed tells a regex literal from division by the token before the slash.
func regexAllowed(toks []jsToken) bool {
	if len(toks) == 0 {
		return true
	}
	last := toks[len(toks)-1]
	switch last.kind {
	case jsPunct:
		return !strings.Contains(")]}", last.text)
	case jsIdent:
		switch last.text {
		case "return", "typeof", "case", "do", "else", "in", "of", "new", "delete", "void", "throw":
			return true
		}
	}
	return false
}

func skipRegex(src string, i int) int {
	inClass := false
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '\\':
			j++
		case '\n':
			return j
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if inClass {
				continue
			}
			j++
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			return j
		}
	}
	return len(src)
}

func readQuoted(src string, i int) (string, int) {
	quote := src[i]
	var b strings.Builder
	for j := i + 1; j < len(src); j++ {
		switch c := src[j]; {
		case c == '\\' && j+1 < len(src):
			j++
			b.WriteByte(src[j])
		case c == quote:
			return b.String(), j + 1
		case c == '\n':
			return b.String(), j
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), len(src)
}

func skipTemplate(src string, i int) int {
	for j := i + 1; j < len(src); {
		switch {
		case src[j] == '\\':
			j += 2
		case src[j] == '`':
			return j + 1
		case src[j] == '$' && j+1 < len(src) && src[j+1] == '{':
			j = skipTemplateExpr(src, j+2)
		default:
			j++
		}
	}
	return len(src)
}

func skipTemplateExpr(src string, j int) int {
	depth := 1
	for j < len(src) {
		switch src[j] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return j + 1
			}
		case '\'', '"':
			_, j = readQuoted(src, j)
			continue
		case '`':
			j = skipTemplate(src, j)
			continue
		}
		j++
	}
	return len(src)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
