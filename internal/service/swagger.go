package service

import (
	_ "embed"
	"net/http"

	"github.com/gin-gonic/gin"
)

//go:embed openapi.json
var openApiDoc []byte

const swaggerPage = `<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Identity Reconciliation API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
  <script>
    window.onload = () => {
      window.ui = SwaggerUIBundle({ url: '/swagger/doc', dom_id: '#swagger-ui' });
    };
  </script>
</body>
</html>
`

// serveDoc responds with the OpenAPI document of the service.
//
//	> curl "http://localhost:8080/swagger/doc"
func serveDoc(c *gin.Context) {
	c.Data(http.StatusOK, "application/json; charset=utf-8", openApiDoc)
}

// serveUI responds with a Swagger UI page that renders the OpenAPI document.
func serveUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(swaggerPage))
}

// health responds with "OK" as long as the service accepts requests.
//
//	> curl "http://localhost:8080/swagger/health"
func health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
