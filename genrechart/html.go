package genrechart

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// A chartElement is the div for a single genre on the chart page. It has
// methods for looking into that div and extracting information.
type chartElement struct{ *goquery.Selection }

func (el chartElement) Name() string {
	return strings.TrimSuffix(el.Text(), "» ")
}

// From the rendering on the chart page. Like,
//
//	color: #389fb1; top: 7px; left: 934px; font-size: 102%
//
// Only the font size carries popularity; the rest encodes audio qualities we
// don't use.
var styleRE = regexp.MustCompile(`^color: #(\w{6}); top: (\d+)px; left: (\d+)px; font-size: (\d+)%$`)

func (el chartElement) FontSize() (int64, error) {
	style, found := el.Attr("style")
	if !found {
		return 0, fmt.Errorf("genre '%s' has no style attribute", el.Name())
	}
	match := styleRE.FindStringSubmatch(style)
	if match == nil {
		return 0, fmt.Errorf("genre '%s' has an unparseable style attribute '%s'", el.Name(), style)
	}
	fontSize, err := strconv.ParseInt(match[4], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing font size from genre '%s': %w", el.Name(), err)
	}
	return fontSize, nil
}
