package page

import (
	"strings"
	"testing"
)

const doc = `<html><head><title>gallery</title></head><body>
<a href="/full/one.jpg"><img src="/thumb/one.jpg" alt="one"></a>
<a href="https://cdn.example.org/two.png"><span><img src="data:image/gif;base64,R0lGOD" fullres-src="https://origin.example.org/two.png"></span></a>
<img src="/unlinked.jpg">
<a href="data:image/png;base64,AAAA"><img src="/thumb/three.jpg"></a>
<a name="no-href"><img src="/thumb/four.jpg"></a>
<a href="clip.webm"><img src="/thumb/clip.jpg"></a>
</body></html>`

func TestScan(t *testing.T) {
	got, err := Scan(strings.NewReader(doc), "https://site.example.com/gallery/index.html")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 candidates, got %d: %+v", len(got), got)
	}

	if got[0].ImgSrc != "https://site.example.com/thumb/one.jpg" || got[0].AnchorHref != "https://site.example.com/full/one.jpg" {
		t.Errorf("relative urls not resolved: %+v", got[0])
	}
	if got[0].Alt != "one" {
		t.Errorf("expected alt one, got %q", got[0].Alt)
	}
	if got[1].FullresSrc != "https://origin.example.org/two.png" {
		t.Errorf("expected fullres-src to be read, got %+v", got[1])
	}
	if !strings.HasPrefix(got[1].ImgSrc, "data:") {
		t.Errorf("data: src must be kept verbatim, got %s", got[1].ImgSrc)
	}
	if !got[3].IsVideo() || got[0].IsVideo() {
		t.Error("video detection mismatch")
	}
}

func TestScan_StableIDs(t *testing.T) {
	a, _ := Scan(strings.NewReader(doc), "https://site.example.com/")
	b, _ := Scan(strings.NewReader(doc), "https://site.example.com/")

	seen := make(map[string]bool)
	for i := range a {
		if a[i].ID != b[i].ID {
			t.Errorf("id %d changed between scans", i)
		}
		if seen[a[i].ID] {
			t.Errorf("duplicate id %s", a[i].ID)
		}
		seen[a[i].ID] = true
	}
}

func TestScan_BaseElement(t *testing.T) {
	html := `<html><head><base href="https://static.example.net/img/"></head>
<body><a href="big.png"><img src="small.png"></a></body></html>`

	got, err := Scan(strings.NewReader(html), "https://page.example.com/post/1")
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(got) != 1 || got[0].AnchorHref != "https://static.example.net/img/big.png" {
		t.Fatalf("expected <base> to win, got %+v", got)
	}
}

func TestCandidate_Request(t *testing.T) {
	c := Candidate{ID: "x", ImgSrc: "http://a/t.jpg", AnchorHref: "http://a/f.jpg", FullresSrc: "http://b/f.jpg"}
	req := c.Request()
	if req.ID != "x" || req.CurrentURL != c.ImgSrc || req.HintURL != c.AnchorHref || req.TargetURL != c.FullresSrc {
		t.Errorf("unexpected request %+v", req)
	}
}
