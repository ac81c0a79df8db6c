package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anoixa/asset-store/internal/errs"
)

func TestRespondErr(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
		wantMsg  string
	}{
		{"not_found", errs.NotFound("assets.Get", "file %s", "x"), http.StatusNotFound, "not_found", "assets.Get: not_found: file x"},
		{"conflict", errs.Conflict("assets.Delete", "links"), http.StatusConflict, "conflict", ""},
		{"invalid_state", errs.InvalidState("assets.Restore", "active"), http.StatusConflict, "invalid_state", ""},
		{"invalid_argument", errs.InvalidArgument("assets.Init", "hash"), http.StatusBadRequest, "invalid_argument", ""},
		{"unsupported", errs.UnsupportedVariant("variants.Ensure", "poster"), http.StatusUnprocessableEntity, "unsupported_variant", ""},
		{"denied", errs.AccessDenied("assets.DownloadURL", "x"), http.StatusForbidden, "access_denied", ""},
		{"upstream_hides_detail", errs.Upstream("assets.Get", errors.New("dial tcp: refused")), http.StatusBadGateway, "upstream_failure", "Bad Gateway"},
		{"inconsistency", errs.StorageInconsistency("assets.Complete", "missing"), http.StatusInternalServerError, "storage_inconsistency", "Internal Server Error"},
		{"wrapped", fmt.Errorf("handler: %w", errs.NotFound("op", "gone")), http.StatusNotFound, "not_found", ""},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			RespondErr(c, tt.err)

			assert.Equal(t, tt.wantCode, w.Code)
			var resp Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.Equal(t, tt.wantKind, resp.Code)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, resp.Msg)
			}
		})
	}
}
