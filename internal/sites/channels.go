// Package sites reads the on-disk site definitions: channel lists (*.channels.xml) and the
// grabber configuration that sits next to them.
package sites

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/JakeFAU/epg-queue/internal/queue"
)

var regionPattern = regexp.MustCompile(`(?i)_([a-z-]+)\.channels\.xml`)

// Region extracts the region code from a channel list filename such as
// `example.com_us.channels.xml`. It returns "" when the filename carries none.
func Region(filename string) string {
	m := regionPattern.FindStringSubmatch(filepath.Base(filename))
	if m == nil {
		return ""
	}
	return m[1]
}

// ParseChannelsFile reads and parses the channel list at path.
func ParseChannelsFile(path string) (queue.ChannelFile, error) {
	f, err := os.Open(path) // #nosec G304 -- path comes from the configured channels glob.
	if err != nil {
		return queue.ChannelFile{}, fmt.Errorf("open channels file: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	file, err := ParseChannels(f)
	if err != nil {
		return queue.ChannelFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	file.Path = path
	file.Region = Region(path)
	return file, nil
}

// ParseChannels parses a channel list document. Both the current layout
//
//	<channels site="x"><channel site="x" site_id="1" lang="en" xmltv_id="A.us">A</channel></channels>
//
// and the legacy `<site site="x"><channels>...</channels></site>` wrapper are accepted.
// The site comes from the root element, falling back to the first channel.
func ParseChannels(r io.Reader) (queue.ChannelFile, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return queue.ChannelFile{}, fmt.Errorf("parse xml: %w", err)
	}
	root := rootElement(doc)
	if root == nil {
		return queue.ChannelFile{}, fmt.Errorf("document has no root element")
	}

	nodes, err := xmlquery.QueryAll(doc, "//channel")
	if err != nil {
		return queue.ChannelFile{}, fmt.Errorf("query channels: %w", err)
	}

	var file queue.ChannelFile
	file.Site = strings.TrimSpace(root.SelectAttr("site"))
	for _, n := range nodes {
		entry := queue.ChannelEntry{
			Site:    strings.TrimSpace(n.SelectAttr("site")),
			SiteID:  strings.TrimSpace(n.SelectAttr("site_id")),
			Lang:    strings.TrimSpace(n.SelectAttr("lang")),
			XMLTVID: strings.TrimSpace(n.SelectAttr("xmltv_id")),
			Name:    strings.TrimSpace(n.InnerText()),
		}
		if entry.Site == "" {
			entry.Site = file.Site
		}
		if file.Site == "" {
			file.Site = entry.Site
		}
		file.Channels = append(file.Channels, entry)
	}
	return file, nil
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}
