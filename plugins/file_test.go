package plugins

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"filecms/core"
	"filecms/download"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportRecord = `---
file: reports/q1.pdf
name: Quarterly report
link-context: primary
link-target: _blank
show-file-size: true
attributes:
  class: extra
  data-id: "7"
---
The **first** quarter.
`

func TestFilePlugin_Render(t *testing.T) {
	site := newTestSite(t, download.Settings{}, map[string]string{
		"content/docs/report.file.md": reportRecord,
	})
	site.process()

	record := site.get("content/docs/report.file.md")
	html := string(record.Content)

	assert.Contains(t, html, `href="/filer/reports/q1.pdf"`)
	assert.Contains(t, html, `target="_blank"`)
	assert.Contains(t, html, ` class="btn btn-primary extra" data-id="7" download>`)
	assert.Contains(t, html, "Quarterly report")
	assert.Contains(t, html, `<small class="file-size">(8 B)</small>`)
	assert.Contains(t, html, "<strong>first</strong>")
	assert.NotContains(t, html, "data-gtm-event")

	assert.Contains(t, html, "<title>Quarterly report</title>")
	assert.True(t, strings.HasSuffix(html, testFooter))

	assert.Equal(t, []string{"/docs/report"}, record.Routes)
	assert.Equal(t, "text/html", record.Metadata.MimeType)

	// the linked file and the layout are dependencies
	pdf := site.get("filer/reports/q1.pdf")
	assert.Contains(t, pdf.Dependents, record.Path)
	assert.Contains(t, site.get("layout/header.html").Dependents, record.Path)

	// the markdown plugin leaves record documents alone
	assert.False(t, NewMarkdownPlugin(site.ctx).CanProcess(record))
}

func TestFilePlugin_FileChangeRerenders(t *testing.T) {
	site := newTestSite(t, download.Settings{}, map[string]string{
		"content/docs/report.file.md": reportRecord,
	})
	site.process()
	require.Contains(t, site.content("content/docs/report.file.md"), "(8 B)")

	site.add("filer/reports/q1.pdf", "%PDF-1.4 with more pages")
	assert.Contains(t, site.content("content/docs/report.file.md"), "(24 B)")
}

func TestFilePlugin_MissingFile(t *testing.T) {
	site := newTestSite(t, download.Settings{}, map[string]string{
		"content/later.file.md": "---\nfile: reports/2024/q1.pdf\nname: Next year\n---\n",
	})
	site.process()

	html := site.content("content/later.file.md")
	assert.Contains(t, html, `<span class="file-missing">&lt;file is missing&gt;</span>`)
	assert.NotContains(t, html, "href=")
	assert.Contains(t, html, "<title>&lt;file is missing&gt;</title>")

	// the record listens on the nearest existing directory
	reports := site.fm.GetDirectory(filepath.Join("filer", "reports"))
	assert.Contains(t, reports.Dependents, filepath.Join("content", "later.file.md"))

	site.add("filer/reports/2024/q1.pdf", "%PDF-1.4")
	html = site.content("content/later.file.md")
	assert.Contains(t, html, `href="/filer/reports/2024/q1.pdf"`)
	assert.Contains(t, html, "Next year")

	// and goes back to the placeholder when the file is deleted
	site.fm.RemoveFile(filepath.Join("filer", "reports", "2024", "q1.pdf"))
	site.fm.ProcessUpdatedFiles()
	assert.Contains(t, site.content("content/later.file.md"), "file-missing")
}

func TestFilePlugin_Terms(t *testing.T) {
	settings := download.Settings{Terms: "Free for personal use"}
	site := newTestSite(t, settings, map[string]string{
		"content/shown.file.md":  "---\nfile: reports/q1.pdf\nshow-terms: true\n---\n",
		"content/hidden.file.md": "---\nfile: reports/q1.pdf\n---\n",
		"content/own.file.md":    "---\nfile: reports/q1.pdf\nshow-terms: true\nterms: Internal only\n---\n",
	})
	site.process()

	assert.Contains(t, site.content("content/shown.file.md"), `<p class="file-terms">Free for personal use</p>`)
	assert.NotContains(t, site.content("content/hidden.file.md"), "file-terms")
	assert.Contains(t, site.content("content/own.file.md"), "Internal only")
}

func TestFilePlugin_Gtm(t *testing.T) {
	site := newTestSite(t, download.Settings{GtmInstalled: true}, map[string]string{
		"content/report.file.md": "---\nfile: reports/q1.pdf\n---\n",
	})
	site.process()

	html := site.content("content/report.file.md")
	assert.Contains(t, html, `data-gtm-event="file-download"`)
	assert.Contains(t, html, `data-gtm-file="q1.pdf"`)
}

func TestFilePlugin_IgnoreLayout(t *testing.T) {
	site := newTestSite(t, download.Settings{}, map[string]string{
		"content/bare.file.md": "---\nfile: reports/q1.pdf\nignore-layout: true\nlink-type: link\nlink-context: danger\n---\n",
	})
	site.process()

	html := site.content("content/bare.file.md")
	assert.True(t, strings.HasPrefix(html, `<div class="file-download">`))
	assert.NotContains(t, html, "<html>")
	assert.Contains(t, html, `class="text-danger"`)
	assert.NotContains(t, site.get("layout/header.html").Dependents, filepath.Join("content", "bare.file.md"))
}

func TestFilePlugin_NameIsNotATemplate(t *testing.T) {
	site := newTestSite(t, download.Settings{}, map[string]string{
		"content/odd.file.md": "---\nfile: reports/q1.pdf\nname: \"{{ .SiteTitle }} <b>\"\n---\n",
	})
	site.process()

	html := site.content("content/odd.file.md")
	assert.Contains(t, html, "{{ .SiteTitle }} &lt;b&gt;")
	assert.NotContains(t, html, "Test Site &lt;b&gt;")
}

func TestFilePlugin_Templates(t *testing.T) {
	settings := download.Settings{Templates: []download.Choice{
		{Value: "compact", Label: "compact"},
		{Value: "hero", Label: "hero"},
	}}
	site := newTestSite(t, settings, map[string]string{
		"layout/file/compact/file.html": `<span class="compact"{{ .Attributes }}>{{ .Instance.ShortDescription }}</span>`,
		"content/compact.file.md":       "---\nfile: reports/q1.pdf\ntemplate: compact\nignore-layout: true\n---\n",
		"content/hero.file.md":          "---\nfile: reports/q1.pdf\ntemplate: hero\nignore-layout: true\n---\n",
	})
	site.process()

	compact := site.get("content/compact.file.md")
	assert.Equal(t, `<span class="compact">q1.pdf</span>`, string(compact.Content))
	assert.Contains(t, site.get("layout/file/compact/file.html").Dependents, compact.Path)

	// a configured template without layout falls back to the built-in one
	assert.Contains(t, site.content("content/hero.file.md"), `<div class="file-download">`)
}

func TestFilePlugin_InvalidRecord(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown template", "---\nfile: reports/q1.pdf\ntemplate: fancy\n---\n"},
		{"unknown link type", "---\nfile: reports/q1.pdf\nlink-type: huge\n---\n"},
		{"excluded attribute", "---\nfile: reports/q1.pdf\nattributes:\n  href: /elsewhere\n---\n"},
		{"broken front matter", "---\nfile: [reports\n---\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			site := newTestSite(t, download.Settings{}, map[string]string{
				"content/bad.file.md": tt.content,
			})

			result := site.file.Process(site.pluginContext("content/bad.file.md"))
			require.NotNil(t, result)
			assert.False(t, result.Success)
			require.Error(t, result.Error)
			assert.True(t, errors.Is(result.Error, core.ErrInvalidRecord))

			// the record is left unrendered, the other files are fine
			site.process()
			assert.Nil(t, site.get("content/bad.file.md").Content)
		})
	}
}

func TestFilePlugin_RecordTurnsInvalid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	site := newTestSite(t, download.Settings{}, map[string]string{
		"content/report.file.md": "---\nfile: reports/q1.pdf\n---\n",
	})
	site.process()

	rm := core.NewRouterManager()
	require.NoError(t, rm.InitializeRouter(site.ctx))
	serve := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		rm.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/report", nil))
		return w
	}
	require.Equal(t, http.StatusOK, serve().Code)

	site.add("content/report.file.md", "---\nfile: reports/q1.pdf\nlink-type: huge\n---\n")
	record := site.get("content/report.file.md")
	assert.Nil(t, record.Content)
	assert.Empty(t, record.Routes)
	assert.Equal(t, http.StatusNotFound, serve().Code)

	// fixing the record brings the page back
	site.add("content/report.file.md", "---\nfile: reports/q1.pdf\nlink-type: link\n---\n")
	assert.Equal(t, []string{"/report"}, site.get("content/report.file.md").Routes)
	w := serve()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `href="/filer/reports/q1.pdf"`)
}

func TestFilePlugin_Fieldsets(t *testing.T) {
	plugin := NewFilePlugin(&core.Context{}, download.Settings{})
	fieldsets := plugin.Fieldsets()

	assert.Equal(t, download.FileFieldsets(download.Settings{}), fieldsets["file"])
	assert.Equal(t, download.FolderFieldsets(), fieldsets["folder"])
}

func TestReadFileForm_Toml(t *testing.T) {
	content := "+++\nfile = \"reports/q1.pdf\"\nname = \" Q1 \"\nlink-type = \"LINK\"\n+++\nSee *below*."

	form, body, err := ReadFileForm([]byte(content), download.Settings{Terms: "default terms"})
	require.NoError(t, err)
	assert.Equal(t, "reports/q1.pdf", form.File)
	assert.Equal(t, "Q1", form.Name)
	assert.Equal(t, download.LinkTypeLink, form.LinkType)
	assert.Equal(t, "default terms", form.Terms)
	assert.Equal(t, "See *below*.", strings.TrimSpace(string(body)))
}
