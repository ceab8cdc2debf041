package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-console/internal/pricing"
	"github.com/odyssey-erp/odyssey-console/internal/session"
	"github.com/odyssey-erp/odyssey-console/internal/shared"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(pricing.NewFormatter("en-US"))
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestRenderLogin(t *testing.T) {
	engine, err := NewEngine(pricing.NewFormatter("en-US"))
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	err = engine.Render(rr, http.StatusUnauthorized, "pages/login.html", TemplateData{
		Title:     "Sign in",
		CSRFToken: "tok",
		Flashes:   []shared.FlashMessage{{Kind: shared.FlashError, Message: "Session expired"}},
		Data:      map[string]any{"ReturnTo": "/admin/clients", "Email": "a@example.com"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Session expired")
	assert.Contains(t, body, `value="/admin/clients"`)
	assert.Contains(t, body, `name="csrf_token" value="tok"`)
}

func TestRenderUnknownTemplateWritesNothing(t *testing.T) {
	engine, err := NewEngine(pricing.NewFormatter("en-US"))
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	err = engine.Render(rr, http.StatusOK, "pages/missing.html", TemplateData{User: &session.User{}})
	require.Error(t, err)
	assert.Empty(t, rr.Body.String())
}
