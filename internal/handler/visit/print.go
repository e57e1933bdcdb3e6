package visit

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-flow/internal/handler"
	"github.com/jwalitptl/clinic-flow/pkg/httputil"
)

//go:embed templates/prescription.html
var templateFS embed.FS

var prescriptionTemplate = template.Must(template.New("prescription.html").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).ParseFS(templateFS, "templates/prescription.html"))

// PrintPrescription renders the prescription as a printable page
func (h *Handler) PrintPrescription(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	doc, err := h.svc.Examination.PrintDocument(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := prescriptionTemplate.Execute(&buf, doc); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}
