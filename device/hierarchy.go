package device

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// interactiveClasses are widget classes treated as interactive even when
// the node does not advertise clickable or focusable.
var interactiveClasses = map[string]bool{
	"android.widget.Button":                     true,
	"android.widget.ImageButton":                true,
	"android.widget.EditText":                   true,
	"android.widget.CheckBox":                   true,
	"android.widget.RadioButton":                true,
	"android.widget.Switch":                     true,
	"android.widget.ToggleButton":               true,
	"android.widget.Spinner":                    true,
	"android.widget.SeekBar":                    true,
	"android.widget.RatingBar":                  true,
	"android.widget.TabHost":                    true,
	"android.widget.NumberPicker":               true,
	"android.support.v7.widget.RecyclerView":    true,
	"androidx.recyclerview.widget.RecyclerView": true,
	"android.widget.ListView":                   true,
	"android.widget.GridView":                   true,
	"android.widget.ScrollView":                 true,
	"android.widget.HorizontalScrollView":       true,
	"androidx.viewpager.widget.ViewPager":       true,
	"androidx.viewpager2.widget.ViewPager2":     true,
}

// BoundingBox is an element's screen rectangle.
type BoundingBox struct {
	X1, Y1, X2, Y2 int
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("[%d,%d][%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

func (b BoundingBox) Width() int  { return b.X2 - b.X1 }
func (b BoundingBox) Height() int { return b.Y2 - b.Y1 }

// Center returns the midpoint, which is where taps land.
func (b BoundingBox) Center() (x, y int) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// Element is one interactive node extracted from the UI hierarchy.
type Element struct {
	Name       string      `json:"name"`
	Text       string      `json:"text,omitempty"`
	ResourceID string      `json:"resource_id,omitempty"`
	Class      string      `json:"class_name,omitempty"`
	Bounds     BoundingBox `json:"bounding_box"`
	CenterX    int         `json:"center_x"`
	CenterY    int         `json:"center_y"`
	Clickable  bool        `json:"clickable"`
	Focusable  bool        `json:"focusable"`
	Scrollable bool        `json:"scrollable,omitempty"`
}

// Selector matches elements by visible text, resource id, or class. Empty
// fields are wildcards; at least one must be set.
type Selector struct {
	Text       string
	ResourceID string
	Class      string
}

func (s Selector) String() string {
	var parts []string
	if s.Text != "" {
		parts = append(parts, "text="+strconv.Quote(s.Text))
	}
	if s.ResourceID != "" {
		parts = append(parts, "resource-id="+strconv.Quote(s.ResourceID))
	}
	if s.Class != "" {
		parts = append(parts, "class="+strconv.Quote(s.Class))
	}
	if len(parts) == 0 {
		return "<empty selector>"
	}
	return strings.Join(parts, " ")
}

// Empty reports whether no criteria are set.
func (s Selector) Empty() bool {
	return s.Text == "" && s.ResourceID == "" && s.Class == ""
}

// xmlNode mirrors one node of the uiautomator hierarchy dump.
type xmlNode struct {
	Text          string    `xml:"text,attr"`
	ContentDesc   string    `xml:"content-desc,attr"`
	ResourceID    string    `xml:"resource-id,attr"`
	Class         string    `xml:"class,attr"`
	Bounds        string    `xml:"bounds,attr"`
	Clickable     string    `xml:"clickable,attr"`
	Focusable     string    `xml:"focusable,attr"`
	Scrollable    string    `xml:"scrollable,attr"`
	Enabled       string    `xml:"enabled,attr"`
	VisibleToUser string    `xml:"visible-to-user,attr"`
	Children      []xmlNode `xml:"node"`
}

type xmlHierarchy struct {
	XMLName xml.Name  `xml:"hierarchy"`
	Nodes   []xmlNode `xml:"node"`
}

var boundsRe = regexp.MustCompile(`\[(\d+),(\d+)\]\[(\d+),(\d+)\]`)

func parseBounds(s string) (BoundingBox, bool) {
	m := boundsRe.FindStringSubmatch(s)
	if m == nil {
		return BoundingBox{}, false
	}
	x1, _ := strconv.Atoi(m[1])
	y1, _ := strconv.Atoi(m[2])
	x2, _ := strconv.Atoi(m[3])
	y2, _ := strconv.Atoi(m[4])
	return BoundingBox{X1: x1, Y1: y1, X2: x2, Y2: y2}, true
}

// elementName picks a human-readable name: text of child TextViews, then
// the node's content-desc or text, then the bare class name.
func elementName(n xmlNode) string {
	var parts []string
	for _, child := range n.Children {
		if child.Class == "android.widget.TextView" {
			if t := firstNonEmpty(child.Text, child.ContentDesc); t != "" {
				parts = append(parts, t)
			}
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if name := firstNonEmpty(n.ContentDesc, n.Text); name != "" {
		return name
	}
	if i := strings.LastIndexByte(n.Class, '.'); i >= 0 {
		return n.Class[i+1:]
	}
	return n.Class
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func isInteractive(n xmlNode) bool {
	return n.Focusable == "true" || n.Clickable == "true" || interactiveClasses[n.Class]
}

// ParseHierarchy extracts interactive elements from a uiautomator XML dump.
// Nodes that are disabled, invisible, or without usable bounds are skipped.
func ParseHierarchy(xmlDump string) ([]Element, error) {
	var h xmlHierarchy
	if err := xml.Unmarshal([]byte(xmlDump), &h); err != nil {
		return nil, fmt.Errorf("ui hierarchy: %w", err)
	}
	var elements []Element
	for _, n := range h.Nodes {
		collectElements(n, &elements)
	}
	return elements, nil
}

func collectElements(n xmlNode, out *[]Element) {
	visible := n.VisibleToUser != "false"
	enabled := n.Enabled != "false"
	if visible && enabled && isInteractive(n) {
		if bounds, ok := parseBounds(n.Bounds); ok && bounds.Width() > 0 && bounds.Height() > 0 {
			cx, cy := bounds.Center()
			if name := elementName(n); name != "" {
				*out = append(*out, Element{
					Name:       name,
					Text:       n.Text,
					ResourceID: n.ResourceID,
					Class:      n.Class,
					Bounds:     bounds,
					CenterX:    cx,
					CenterY:    cy,
					Clickable:  n.Clickable == "true",
					Focusable:  n.Focusable == "true",
					Scrollable: n.Scrollable == "true",
				})
			}
		}
	}
	for _, child := range n.Children {
		collectElements(child, out)
	}
}

// Matches reports whether the element satisfies every set criterion. Text
// matching is a case-insensitive substring match against the node text,
// content-derived name, or content description.
func (e Element) Matches(sel Selector) bool {
	if sel.Text != "" {
		want := strings.ToLower(sel.Text)
		if !strings.Contains(strings.ToLower(e.Text), want) &&
			!strings.Contains(strings.ToLower(e.Name), want) {
			return false
		}
	}
	if sel.ResourceID != "" && !strings.HasSuffix(e.ResourceID, sel.ResourceID) {
		return false
	}
	if sel.Class != "" && e.Class != sel.Class {
		return false
	}
	return true
}

// FindElement returns the first element matching the selector.
func FindElement(elements []Element, sel Selector) (Element, bool) {
	for _, e := range elements {
		if e.Matches(sel) {
			return e, true
		}
	}
	return Element{}, false
}
