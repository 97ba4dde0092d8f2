package device

import "testing"

const sampleHierarchy = `<?xml version='1.0' encoding='UTF-8' standalone='yes' ?>
<hierarchy rotation="0">
  <node index="0" text="" resource-id="" class="android.widget.FrameLayout" package="com.android.settings" content-desc="" clickable="false" enabled="true" focusable="false" scrollable="false" visible-to-user="true" bounds="[0,0][1080,2400]">
    <node index="0" text="Search settings" resource-id="com.android.settings:id/search_bar" class="android.widget.EditText" package="com.android.settings" content-desc="" clickable="true" enabled="true" focusable="true" scrollable="false" visible-to-user="true" bounds="[48,120][1032,240]"/>
    <node index="1" text="" resource-id="com.android.settings:id/list" class="androidx.recyclerview.widget.RecyclerView" package="com.android.settings" content-desc="" clickable="false" enabled="true" focusable="true" scrollable="true" visible-to-user="true" bounds="[0,260][1080,2300]">
      <node index="0" text="" resource-id="" class="android.widget.LinearLayout" package="com.android.settings" content-desc="" clickable="true" enabled="true" focusable="true" scrollable="false" visible-to-user="true" bounds="[0,260][1080,430]">
        <node index="0" text="Network &amp; internet" resource-id="android:id/title" class="android.widget.TextView" package="com.android.settings" content-desc="" clickable="false" enabled="true" focusable="false" scrollable="false" visible-to-user="true" bounds="[180,300][700,380]"/>
      </node>
      <node index="1" text="Bluetooth" resource-id="android:id/title2" class="android.widget.TextView" package="com.android.settings" content-desc="" clickable="true" enabled="true" focusable="false" scrollable="false" visible-to-user="true" bounds="[180,460][700,540]"/>
      <node index="2" text="Hidden" resource-id="" class="android.widget.Button" package="com.android.settings" content-desc="" clickable="true" enabled="true" focusable="true" scrollable="false" visible-to-user="false" bounds="[0,600][200,700]"/>
      <node index="3" text="Disabled" resource-id="" class="android.widget.Button" package="com.android.settings" content-desc="" clickable="true" enabled="false" focusable="true" scrollable="false" visible-to-user="true" bounds="[0,800][200,900]"/>
    </node>
  </node>
</hierarchy>`

func TestParseHierarchy(t *testing.T) {
	elements, err := ParseHierarchy(sampleHierarchy)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// Search bar, recycler view, the container row, and the Bluetooth row.
	// The invisible and disabled buttons must be excluded.
	for _, e := range elements {
		if e.Text == "Hidden" || e.Text == "Disabled" {
			t.Errorf("element %q should have been filtered out", e.Text)
		}
	}

	search, ok := FindElement(elements, Selector{ResourceID: "search_bar"})
	if !ok {
		t.Fatal("search bar not found")
	}
	if search.CenterX != 540 || search.CenterY != 180 {
		t.Errorf("wrong center: (%d,%d)", search.CenterX, search.CenterY)
	}
	if !search.Clickable || !search.Focusable {
		t.Error("search bar flags not parsed")
	}
}

func TestChildTextNamesContainer(t *testing.T) {
	elements, err := ParseHierarchy(sampleHierarchy)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	// The clickable LinearLayout has no text of its own; its name comes
	// from the child TextView.
	row, ok := FindElement(elements, Selector{Text: "Network & internet"})
	if !ok {
		t.Fatal("settings row not found by child text")
	}
	if row.Class != "android.widget.LinearLayout" {
		t.Errorf("expected the clickable container, got %s", row.Class)
	}
}

func TestSelectorMatchingIsCaseInsensitive(t *testing.T) {
	elements, _ := ParseHierarchy(sampleHierarchy)
	if _, ok := FindElement(elements, Selector{Text: "bluetooth"}); !ok {
		t.Error("case-insensitive text match failed")
	}
	if _, ok := FindElement(elements, Selector{Text: "no such thing"}); ok {
		t.Error("matched a nonexistent element")
	}
}

func TestSelectorClassFilter(t *testing.T) {
	elements, _ := ParseHierarchy(sampleHierarchy)
	el, ok := FindElement(elements, Selector{Class: "androidx.recyclerview.widget.RecyclerView"})
	if !ok {
		t.Fatal("recycler view not found by class")
	}
	if !el.Scrollable {
		t.Error("scrollable flag not parsed")
	}
}

func TestParseBounds(t *testing.T) {
	b, ok := parseBounds("[10,20][110,220]")
	if !ok {
		t.Fatal("failed to parse bounds")
	}
	if b.Width() != 100 || b.Height() != 200 {
		t.Errorf("wrong dimensions: %dx%d", b.Width(), b.Height())
	}
	cx, cy := b.Center()
	if cx != 60 || cy != 120 {
		t.Errorf("wrong center: (%d,%d)", cx, cy)
	}
	if _, ok := parseBounds("garbage"); ok {
		t.Error("parsed garbage bounds")
	}
}

func TestParseHierarchyBadXML(t *testing.T) {
	if _, err := ParseHierarchy("<hierarchy><node"); err == nil {
		t.Error("expected error for truncated XML")
	}
}

func TestSelectorString(t *testing.T) {
	s := Selector{Text: "OK", ResourceID: "btn_ok"}
	if s.String() == "" || s.Empty() {
		t.Errorf("unexpected selector rendering: %q", s)
	}
	if !(Selector{}).Empty() {
		t.Error("zero selector should be empty")
	}
}
