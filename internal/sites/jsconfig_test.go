package sites

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSConfigIgnored(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"multi line", "module.exports = {\n  site: 'off.tv',\n  ignore: true, // down\n  url: 'https://off.tv'\n}\n", true},
		{"one line", `module.exports = { site: 'one.tv', ignore: true }`, true},
		{"quoted key", `module.exports = { "site": "q.tv", "ignore": true }`, true},
		{"first key", `module.exports={ignore:true,site:'f.tv'}`, true},
		{"export default", "export default {\n  site: 'esm.tv',\n  ignore: true\n}\n", true},
		{"exported variable", "const config = {\n  site: 'var.tv',\n  ignore: true\n}\n\nmodule.exports = config\n", true},
		{"absent", `module.exports = { site: 'on.tv', days: 2 }`, false},
		{"false", `module.exports = { site: 'on.tv', ignore: false }`, false},
		{"later key wins", `module.exports = { ignore: true, site: 'on.tv', ignore: false }`, false},
		{"nested object", "module.exports = {\n  site: 'nested.tv',\n  request: {\n    ignore: true\n  }\n}\n", false},
		{"nested in method", "module.exports = {\n  site: 'm.tv',\n  parser({ content }) {\n    return parse(content, { ignore: true })\n  }\n}\n", false},
		{"block comment", "module.exports = {\n  site: 'commented.tv',\n  /*\n  ignore: true,\n  */\n  days: 1\n}\n", false},
		{"line comment", "module.exports = {\n  site: 'c.tv',\n  // ignore: true,\n  days: 1\n}\n", false},
		{"inside string", `module.exports = { site: 'ignore: true', url: "{ ignore: true }" }`, false},
		{"inside template", "module.exports = {\n  site: 't.tv',\n  url({ date }) {\n    return `https://t.tv/${date.format('YYYY')}/{ignore: true}`\n  },\n  days: 2\n}\n", false},
		{"regex literal", "module.exports = {\n  site: 'r.tv',\n  parser(c) { return c.replace(/['\"]/g, '') },\n  ignore: true\n}\n", true},
		{"value position", `module.exports = { site: 's.tv', skip: cond ? ignore : true }`, false},
		{"outside export", "const defaults = { ignore: true }\nmodule.exports = { site: 'd.tv' }\n", false},
		{"no export", `const x = { ignore: true }`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, jsConfigIgnored([]byte(tt.src)))
		})
	}
}

func TestReadSiteConfigIgnoreForms(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "one.tv.config.js"), `module.exports = { site: 'one.tv', ignore: true }`)
	writeFile(t, filepath.Join(dir, "nested.tv.config.js"), "module.exports = {\n  site: 'nested.tv',\n  request: { ignore: true }\n}\n")
	writeFile(t, filepath.Join(dir, "commented.tv.config.js"), "module.exports = {\n  site: 'commented.tv'\n  /* ignore: true */\n}\n")

	want := map[string]bool{"one.tv": true, "nested.tv": false, "commented.tv": false}
	for site, ignore := range want {
		cfg, err := ReadSiteConfig(dir, site)
		require.NoError(t, err)
		assert.Equal(t, ignore, cfg.Ignore, site)
	}
}
