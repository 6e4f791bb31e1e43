package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, err := http.NewRequest(method, target, bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestAttendanceHandlerSubmitInvalidBody(t *testing.T) {
	handler := NewAttendanceHandler(nil)
	c, w := newTestContext(t, http.MethodPost, "/attendance", []byte(`not-json`))

	handler.Submit(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerListRejectsBadStatus(t *testing.T) {
	handler := NewAttendanceHandler(nil)
	c, w := newTestContext(t, http.MethodGet, "/attendance?status=XYZ", nil)

	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAttendanceHandlerListRejectsBadDate(t *testing.T) {
	handler := NewAttendanceHandler(nil)
	c, w := newTestContext(t, http.MethodGet, "/attendance?date_from=07-09-2026", nil)

	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
