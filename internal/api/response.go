package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type SonicJSON struct {
	Data any
}

func (r SonicJSON) Render(w http.ResponseWriter) error {
	r.WriteContentType(w)
	b, err := jsonAPI.Marshal(r.Data)
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func (r SonicJSON) WriteContentType(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
}

var jsonAPI = sonic.Config{
	EscapeHTML:       false,
	SortMapKeys:      false,
	CompactMarshaler: true,
	NoNullSliceOrMap: true,
}.Froze()

func ResponseJSON(c *gin.Context, httpCode int, message string, data any) {
	c.Render(httpCode, SonicJSON{Data: Response{
		Code:    httpCode,
		Message: message,
		Data:    data,
	}})
}

func ResponseOK(c *gin.Context, data any) {
	ResponseJSON(c, http.StatusOK, "Success", data)
}

func ResponseCreated(c *gin.Context, data any) {
	ResponseJSON(c, http.StatusCreated, "Created", data)
}

func ResponseBadRequest(c *gin.Context, message string, data any) {
	if message == "" {
		message = "Bad Request"
	}
	ResponseJSON(c, http.StatusBadRequest, message, data)
}
