package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerExposesCollectors(t *testing.T) {
	Updates.WithLabelValues("message").Inc()
	BanTargets.WithLabelValues("ban", "applied").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `appealbot_updates_total{kind="message"}`)
	require.Contains(t, string(body), `appealbot_ban_targets_total{mode="ban",outcome="applied"}`)
}
