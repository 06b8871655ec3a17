package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required"`
	Count int    `json:"count" validate:"min=1"`
}

func TestValidate(t *testing.T) {
	_, err := Validate(sample{Name: "a", Count: 1})
	require.NoError(t, err)

	_, err = Validate(sample{Count: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'Name': rule 'required'")
	assert.Contains(t, err.Error(), "field 'Count': rule 'min' expected '1'")
}

func TestBindRequest(t *testing.T) {
	e := echo.New()

	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","count":2}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		v, err := BindRequest[sample](c)
		require.NoError(t, err)
		assert.Equal(t, sample{Name: "a", Count: 2}, v)
	})

	t.Run("invalid body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"count":2}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		_, err := BindRequest[sample](c)
		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	})
}
