package system

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/podilnyk/monojar/internal/models/errs"
	"github.com/podilnyk/monojar/internal/monobank"
	"github.com/podilnyk/monojar/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedBank struct {
	info *monobank.ClientInfo
	err  error
}

func (b fixedBank) ClientInfo(context.Context, string) (*monobank.ClientInfo, error) {
	return b.info, b.err
}

func TestJarsConvertsMinorUnits(t *testing.T) {
	bank := fixedBank{info: &monobank.ClientInfo{
		Name: "Test Client",
		Jars: []monobank.Jar{
			{
				ID:      "jar_1",
				Title:   "Drone fund",
				Balance: 123456, // 1234.56 in currency units
				Goal:    1000000,
			},
			{
				ID:      "jar_2",
				Title:   "Open-ended",
				Balance: 500,
				Goal:    0,
			},
		},
	}}

	service, err := NewService(bank, logger.NewForTest())
	require.NoError(t, err)

	jars, err := service.Jars(context.Background(), "token")
	require.NoError(t, err)
	require.Len(t, jars, 2)

	assert.True(t, jars[0].Balance.Equal(decimal.RequireFromString("1234.56")),
		"got balance %s", jars[0].Balance)
	assert.True(t, jars[0].Goal.Equal(decimal.RequireFromString("10000")))
	assert.True(t, jars[0].Progress.Equal(decimal.RequireFromString("0.1235")),
		"got progress %s", jars[0].Progress)

	// No goal means no progress figure.
	assert.True(t, jars[1].Progress.IsZero())
}

func TestJarsEmptyAccount(t *testing.T) {
	service, err := NewService(fixedBank{info: &monobank.ClientInfo{}}, logger.NewForTest())
	require.NoError(t, err)

	_, err = service.Jars(context.Background(), "token")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestJarsHandlerRequiresToken(t *testing.T) {
	service, err := NewService(fixedBank{info: &monobank.ClientInfo{
		Jars: []monobank.Jar{{ID: "jar_1", Balance: 100, Goal: 200}},
	}}, logger.NewForTest())
	require.NoError(t, err)

	handler := HandlerWithOptions(NewHandlers(service), ChiServerOptions{
		BaseURL:          "/api/v1",
		ErrorHandlerFunc: ErrorHandlerFunc,
	})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/system/jars", nil)
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodGet, "/api/v1/system/jars", nil)
	r.Header.Set("X-Token", "token")
	handler.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var jars []JarInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jars))
	require.Len(t, jars, 1)
	assert.Equal(t, "jar_1", jars[0].ID)
}
