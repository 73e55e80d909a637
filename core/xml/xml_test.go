package xml

import "testing"

const sampleDoc = `<?xml version="1.0" encoding="UTF-8"?>
<score-partwise version="4.0">
  <part-list>
    <score-part id="P1"><part-name>Flute</part-name></score-part>
    <score-part id="P2"><part-name>Oboe</part-name></score-part>
  </part-list>
  <part id="P1">
    <measure number="1">
      <note><duration>4</duration></note>
    </measure>
  </part>
</score-partwise>`

func mustParse(t *testing.T, data string) *Document {
	t.Helper()
	doc, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return doc
}

func TestParse(t *testing.T) {
	doc := mustParse(t, sampleDoc)
	root := doc.Root()
	if root == nil || root.Name() != "score-partwise" {
		t.Fatalf("root = %v, want score-partwise element", root)
	}
	if root.Attr("version") != "4.0" {
		t.Errorf("version = %q, want 4.0", root.Attr("version"))
	}
}

func TestParseInvalid(t *testing.T) {
	if _, err := Parse([]byte("<unclosed>")); err == nil {
		t.Error("Parse() should reject malformed XML")
	}
}

func TestParseLatin1Declaration(t *testing.T) {
	doc := `<?xml version="1.0" encoding="ISO-8859-1"?><root><name>caf` + "\xe9" + `</name></root>`
	parsed := mustParse(t, doc)
	if got := parsed.Root().First("name").Text(); got != "café" {
		t.Errorf("name = %q, want café", got)
	}
}

func TestXPath(t *testing.T) {
	doc := mustParse(t, sampleDoc)
	nodes, err := doc.XPath("//score-part")
	if err != nil {
		t.Fatalf("XPath() error = %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("matched %d score-part nodes, want 2", len(nodes))
	}
	if nodes[0].Attr("id") != "P1" || nodes[1].Attr("id") != "P2" {
		t.Error("score-part nodes out of document order")
	}
}

func TestXPathFirst(t *testing.T) {
	doc := mustParse(t, sampleDoc)
	node, err := doc.XPathFirst("//part-name")
	if err != nil {
		t.Fatalf("XPathFirst() error = %v", err)
	}
	if node.Text() != "Flute" {
		t.Errorf("text = %q, want Flute", node.Text())
	}

	missing, err := doc.XPathFirst("//nonexistent")
	if err != nil {
		t.Fatalf("XPathFirst() error = %v", err)
	}
	if missing != nil {
		t.Error("XPathFirst() should return nil for no match")
	}
}

func TestXPathInvalidExpression(t *testing.T) {
	doc := mustParse(t, sampleDoc)
	if _, err := doc.XPath("//["); err == nil {
		t.Error("XPath() should reject an invalid expression")
	}
	if _, err := doc.XPathFirst("//["); err == nil {
		t.Error("XPathFirst() should reject an invalid expression")
	}
}

func TestSelectAndFirst(t *testing.T) {
	doc := mustParse(t, sampleDoc)
	partList := doc.Root().First("part-list")
	if partList == nil {
		t.Fatal("part-list not found")
	}
	if got := len(partList.Select("score-part")); got != 2 {
		t.Errorf("Select() = %d nodes, want 2", got)
	}
	if partList.First("missing") != nil {
		t.Error("First() should return nil for an absent child")
	}
}

func TestIntText(t *testing.T) {
	doc := mustParse(t, sampleDoc)
	note, err := doc.XPathFirst("//note")
	if err != nil {
		t.Fatalf("XPathFirst() error = %v", err)
	}
	if got := note.First("duration").Int(0); got != 4 {
		t.Errorf("duration = %d, want 4", got)
	}
	if got := note.First("missing").Int(7); got != 7 {
		t.Errorf("missing element Int() = %d, want default 7", got)
	}
}

func TestNilNodeAccessors(t *testing.T) {
	var n *Node
	if n.Name() != "" || n.Text() != "" || n.Attr("x") != "" {
		t.Error("nil node accessors should return empty strings")
	}
	if n.Children() != nil || n.Select("x") != nil || n.First("x") != nil {
		t.Error("nil node child accessors should return nil")
	}
	if n.Int(3) != 3 {
		t.Error("nil node Int() should return the default")
	}
}
