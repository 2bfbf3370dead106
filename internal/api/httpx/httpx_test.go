package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasrafouladi/Elmosyar/internal/services"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestWriteServiceError_Status(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrInvalidAmount, http.StatusBadRequest, services.CodeInvalidAmount},
		{services.ErrWalletNotFound, http.StatusNotFound, services.CodeWalletNotFound},
		{services.ErrInsufficientBalance, http.StatusConflict, services.CodeInsufficientBalance},
		{errors.New("db down"), http.StatusInternalServerError, services.CodeServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteServiceError(rec, tt.err)
		assert.Equal(t, tt.status, rec.Code)
		env := decode(t, rec)
		assert.True(t, env.Error)
		assert.Equal(t, tt.code, env.Code)
		assert.NotContains(t, env.Message, "db down")
	}
}

func TestWriteResult(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteResult(rec, services.Result{Message: "ok", Code: services.CodeDepositSuccess, Data: services.BalanceData{Balance: 5}})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	env := decode(t, rec)
	assert.False(t, env.Error)
	assert.Equal(t, services.CodeDepositSuccess, env.Code)
	assert.Equal(t, map[string]any{"balance": float64(5)}, env.Data)
}
