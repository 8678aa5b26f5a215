package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestSplitNetworks(t *testing.T) {
	got := splitNetworks(" 10.0.0.0/8, ,192.168.1.0/24,")
	want := []string{"10.0.0.0/8", "192.168.1.0/24"}
	if !slices.Equal(got, want) {
		t.Fatalf("splitNetworks = %v, want %v", got, want)
	}
}

func TestIPAccessControl(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Setenv("GIN_MODE", "release")

	r := gin.New()
	r.Use(IPAccessControl([]string{"10.0.0.0/8", "not-a-cidr"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		remote string
		want   int
	}{
		{"10.1.2.3:1234", http.StatusNoContent},
		{"192.168.1.10:1234", http.StatusForbidden},
		{"127.0.0.1:1234", http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = tt.remote
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tt.want {
			t.Errorf("%s: status %d, want %d", tt.remote, w.Code, tt.want)
		}
	}
}

func TestLoadTemplates(t *testing.T) {
	gin.SetMode(gin.TestMode)

	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "layouts"), 0o755)
	os.WriteFile(filepath.Join(dir, "layouts", "base.tmpl"),
		[]byte(`<main>{{block "content" .}}{{end}}</main>`), 0o644)
	os.WriteFile(filepath.Join(dir, "hello.html.tmpl"),
		[]byte(`{{define "content"}}hello {{.Name}}{{end}}`), 0o644)

	renderer, err := loadTemplates(dir)
	if err != nil {
		t.Fatalf("loadTemplates: %v", err)
	}

	r := gin.New()
	r.HTMLRender = renderer
	r.GET("/", func(c *gin.Context) {
		c.HTML(http.StatusOK, "hello.html.tmpl", gin.H{"Name": "sensor"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if !strings.Contains(w.Body.String(), "<main>hello sensor</main>") {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}
