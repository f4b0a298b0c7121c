package telegraph

import (
	"encoding/json"
	"strings"
	"testing"
)

// renderNodes flattens converted nodes back to a compact JSON string for
// easy assertions.
func renderNodes(t *testing.T, nodes []Node) string {
	t.Helper()
	data, err := json.Marshal(nodes)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSanitizeHTML_KeepsAllowedTags(t *testing.T) {
	t.Parallel()

	nodes, err := sanitizeHTML(`<p>Hello <b>world</b></p>`)
	if err != nil {
		t.Fatal(err)
	}

	out := renderNodes(t, nodes)
	if !strings.Contains(out, `"tag":"p"`) || !strings.Contains(out, `"tag":"b"`) {
		t.Errorf("allowed tags lost: %s", out)
	}
	if !strings.Contains(out, "Hello ") || !strings.Contains(out, "world") {
		t.Errorf("text lost: %s", out)
	}
}

func TestSanitizeHTML_SplicesDisallowedTags(t *testing.T) {
	t.Parallel()

	nodes, err := sanitizeHTML(`<span>kept text</span><table><tr><td>cell</td></tr></table>`)
	if err != nil {
		t.Fatal(err)
	}

	out := renderNodes(t, nodes)
	if strings.Contains(out, "span") || strings.Contains(out, "table") {
		t.Errorf("disallowed tag survived: %s", out)
	}
	if !strings.Contains(out, "kept text") || !strings.Contains(out, "cell") {
		t.Errorf("children of disallowed tags must be kept: %s", out)
	}
}

func TestSanitizeHTML_DropsScriptEntirely(t *testing.T) {
	t.Parallel()

	nodes, err := sanitizeHTML(`<p>before</p><script>alert("xss")</script><p>after</p>`)
	if err != nil {
		t.Fatal(err)
	}

	out := renderNodes(t, nodes)
	if strings.Contains(out, "alert") {
		t.Errorf("script content must be removed, not spliced: %s", out)
	}
	if !strings.Contains(out, "before") || !strings.Contains(out, "after") {
		t.Errorf("surrounding content lost: %s", out)
	}
}

func TestSanitizeHTML_FiltersAttributes(t *testing.T) {
	t.Parallel()

	nodes, err := sanitizeHTML(`<a href="https://example.com" onclick="evil()" class="x">link</a>` +
		`<img src="https://example.com/a.jpg" width="10">`)
	if err != nil {
		t.Fatal(err)
	}

	out := renderNodes(t, nodes)
	if !strings.Contains(out, `"href":"https://example.com"`) {
		t.Errorf("href must survive: %s", out)
	}
	if !strings.Contains(out, `"src":"https://example.com/a.jpg"`) {
		t.Errorf("src must survive: %s", out)
	}
	for _, banned := range []string{"onclick", "class", "width"} {
		if strings.Contains(out, banned) {
			t.Errorf("attribute %q must be stripped: %s", banned, out)
		}
	}
}

func TestSanitizeHTML_Empty(t *testing.T) {
	t.Parallel()

	nodes, err := sanitizeHTML("")
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 0 {
		t.Errorf("nodes = %v", nodes)
	}
}
