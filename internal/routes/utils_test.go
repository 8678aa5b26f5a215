package routes

import (
	"crypto/sha512"
	"encoding/base64"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sensor-dashboard/internal/dashboard"
)

func TestScriptTag_External_NoIntegrity(t *testing.T) {
	out := ScriptTag("https://cdn.example.com/lib.js")
	if strings.Contains(string(out), "integrity=") {
		t.Fatalf("external script should not have integrity: %q", out)
	}
}

func TestScriptTag_Local_ComputesIntegrity(t *testing.T) {
	// create a temporary local asset under web/assets/js
	dir := filepath.Join("web", "assets", "js")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("mkdirall: %v", err)
	}
	fname := "test-sri.js"
	fpath := filepath.Join(dir, fname)
	content := []byte("console.log('sri-test');\n")
	if err := os.WriteFile(fpath, content, 0644); err != nil {
		t.Fatalf("writefile: %v", err)
	}
	defer os.Remove(fpath)

	// compute expected sha384
	h := sha512.New384()
	h.Write(content)
	sum := h.Sum(nil)
	expected := "sha384-" + base64.StdEncoding.EncodeToString(sum)

	src := "/assets/js/" + fname
	out := ScriptTag(src)
	want := fmt.Sprintf(`<script src="%s" integrity="%s" crossorigin="anonymous"></script>`, src, expected)
	if string(out) != want {
		t.Fatalf("unexpected output, got: %q, want: %q", out, want)
	}
}

func TestScriptTag_EscapesAttributes(t *testing.T) {
	// Attributes containing characters that could be problematic should be escaped.
	out := ScriptTag(`/" onerror="alert(1)`) // intentionally malicious-like
	// ensure no raw attribute injection like onerror="...
	if strings.Contains(string(out), `onerror="`) {
		t.Fatalf("attribute injection detected in output: %q", out)
	}
	// Ensure it is template.HTML (safe to insert into template)
	_ = template.HTML(out)
}

func TestTemplateFuncs_Reading(t *testing.T) {
	reading := TemplateFuncs()["reading"].(func(*float64) string)
	v := 21.25
	if got := reading(&v); got != "21.3" && got != "21.2" {
		t.Fatalf("unexpected reading %q", got)
	}
	if got := reading(nil); got != dashboard.Sentinel {
		t.Fatalf("expected sentinel, got %q", got)
	}
}

func TestTemplateFuncs_Datetime(t *testing.T) {
	datetime := TemplateFuncs()["datetime"].(func(any) string)
	var missing *time.Time
	if got := datetime(missing); got != dashboard.Sentinel {
		t.Fatalf("expected sentinel for nil time, got %q", got)
	}
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.Local)
	if got := datetime(ts); got != "2024-03-01 12:00:00" {
		t.Fatalf("unexpected datetime %q", got)
	}
}
