package controllers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/ScreenShow/internal/pkg/usercontext"
)

// asAccount marks every request as authenticated for accountID.
func asAccount(accountID string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if accountID != "" {
			usercontext.Set(c, usercontext.AccountContext{AccountID: accountID, Email: accountID + "@example.com", IsLoggedIn: true})
		}
		return c.Next()
	}
}

func doJSON(t *testing.T, app *fiber.App, path, body string, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	} else {
		out["_raw"] = string(raw)
	}
	return resp, out
}
