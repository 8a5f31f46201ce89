package api

import (
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"
	"gopkg.in/yaml.v3"
)

const docsPage = `<!DOCTYPE html>
<html>
<head>
  <title>AgentOS API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>SwaggerUIBundle({url: "/openapi.json", dom_id: "#swagger-ui"});</script>
</body>
</html>`

var pathParam = regexp.MustCompile(`:([A-Za-z_]+)`)

// RegisterDocs serves the interactive docs and an OpenAPI description built
// from the routes registered on e. Call it after all other routes.
func (h *Handler) RegisterDocs(e *echo.Echo, version string) {
	e.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, docsPage)
	})
	e.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, openAPI(e.Routes(), version))
	})
	e.GET("/openapi.yaml", func(c echo.Context) error {
		data, err := yaml.Marshal(openAPI(e.Routes(), version))
		if err != nil {
			return h.fail(c, err)
		}
		return c.Blob(http.StatusOK, "application/yaml", data)
	})
}

type openAPIDoc struct {
	OpenAPI string                                 `json:"openapi" yaml:"openapi"`
	Info    openAPIInfo                            `json:"info" yaml:"info"`
	Paths   map[string]map[string]openAPIOperation `json:"paths" yaml:"paths"`
}

type openAPIInfo struct {
	Title   string `json:"title" yaml:"title"`
	Version string `json:"version" yaml:"version"`
}

type openAPIOperation struct {
	OperationID string             `json:"operationId" yaml:"operationId"`
	Parameters  []openAPIParameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Responses   map[string]any     `json:"responses" yaml:"responses"`
}

type openAPIParameter struct {
	Name     string            `json:"name" yaml:"name"`
	In       string            `json:"in" yaml:"in"`
	Required bool              `json:"required" yaml:"required"`
	Schema   map[string]string `json:"schema" yaml:"schema"`
}

func openAPI(routes []*echo.Route, version string) openAPIDoc {
	doc := openAPIDoc{
		OpenAPI: "3.0.3",
		Info:    openAPIInfo{Title: "AgentOS API", Version: version},
		Paths:   make(map[string]map[string]openAPIOperation),
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})
	for _, r := range routes {
		if strings.Contains(r.Path, "*") || r.Method == echo.RouteNotFound {
			continue
		}
		path := pathParam.ReplaceAllString(r.Path, "{$1}")
		op := openAPIOperation{
			OperationID: strings.ToLower(r.Method) + operationSuffix(path),
			Responses:   map[string]any{"200": map[string]string{"description": "OK"}},
		}
		for _, m := range pathParam.FindAllStringSubmatch(r.Path, -1) {
			op.Parameters = append(op.Parameters, openAPIParameter{
				Name: m[1], In: "path", Required: true, Schema: map[string]string{"type": "string"},
			})
		}
		if doc.Paths[path] == nil {
			doc.Paths[path] = make(map[string]openAPIOperation)
		}
		doc.Paths[path][strings.ToLower(r.Method)] = op
	}
	return doc
}

func operationSuffix(path string) string {
	var sb strings.Builder
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '{' || r == '}' || r == '.' }) {
		sb.WriteString("_")
		sb.WriteString(part)
	}
	return sb.String()
}
