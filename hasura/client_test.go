package hasura

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordedCall struct {
	Secret string
	Body   map[string]any
}

// newMetadataServer simuliert die Metadata-API. respond entscheidet pro
// Request über die Antwort; alle Requests werden aufgezeichnet.
func newMetadataServer(t *testing.T, calls *[]recordedCall, respond func(call int, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/metadata", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var body map[string]any
		require.NoError(t, json.Unmarshal(raw, &body))

		*calls = append(*calls, recordedCall{
			Secret: r.Header.Get("x-hasura-admin-secret"),
			Body:   body,
		})
		respond(len(*calls), w)
	}))
}

func newTestClient(t *testing.T, endpoint string) *Client {
	t.Helper()
	client, err := NewClient(endpoint, "testsecret", "default", zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresAdminSecret(t *testing.T) {
	t.Parallel()
	_, err := NewClient("http://localhost:8080", "", "default", zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "admin secret")
}

func TestRegisterAnomalyScores_SequenceAndPayloads(t *testing.T) {
	t.Parallel()

	var calls []recordedCall
	srv := newMetadataServer(t, &calls, func(_ int, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"message":"success"}`))
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.RegisterAnomalyScores(context.Background()))
	require.Len(t, calls, 3)

	for _, call := range calls {
		require.Equal(t, "testsecret", call.Secret)
	}

	require.Equal(t, "pg_track_table", calls[0].Body["type"])
	trackArgs := calls[0].Body["args"].(map[string]any)
	require.Equal(t, "default", trackArgs["source"])
	require.Equal(t, map[string]any{"schema": "public", "name": "tower_anomaly_scores"}, trackArgs["table"])

	require.Equal(t, "pg_create_object_relationship", calls[1].Body["type"])
	objArgs := calls[1].Body["args"].(map[string]any)
	require.Equal(t, "tower", objArgs["name"])
	require.Equal(t, map[string]any{"schema": "public", "name": "tower_anomaly_scores"}, objArgs["table"])
	require.Equal(t, map[string]any{"foreign_key_constraint_on": "tower_id"}, objArgs["using"])

	require.Equal(t, "pg_create_array_relationship", calls[2].Body["type"])
	arrArgs := calls[2].Body["args"].(map[string]any)
	require.Equal(t, "anomaly_scores", arrArgs["name"])
	require.Equal(t, map[string]any{"schema": "public", "name": "towers"}, arrArgs["table"])
	require.Equal(t, map[string]any{
		"foreign_key_constraint_on": map[string]any{
			"table":  map[string]any{"schema": "public", "name": "tower_anomaly_scores"},
			"column": "tower_id",
		},
	}, arrArgs["using"])
}

func TestRegisterAnomalyScores_AbortsOnFirstFailure(t *testing.T) {
	t.Parallel()

	var calls []recordedCall
	srv := newMetadataServer(t, &calls, func(_ int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"unexpected","error":"boom"}`))
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.RegisterAnomalyScores(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "schritt 1/3")
	require.Contains(t, err.Error(), "pg_track_table")
	// Folge-Schritte dürfen nach dem Fehlschlag nicht mehr laufen.
	require.Len(t, calls, 1)
}

func TestRegisterAnomalyScores_SecondStepFailure(t *testing.T) {
	t.Parallel()

	var calls []recordedCall
	srv := newMetadataServer(t, &calls, func(call int, w http.ResponseWriter) {
		if call == 2 {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":"invalid-configuration","error":"column does not exist"}`))
			return
		}
		_, _ = w.Write([]byte(`{"message":"success"}`))
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	err := client.RegisterAnomalyScores(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "schritt 2/3")
	require.Len(t, calls, 2)
}

func TestRegisterAnomalyScores_AlreadyTrackedIsNoop(t *testing.T) {
	t.Parallel()

	var calls []recordedCall
	srv := newMetadataServer(t, &calls, func(call int, w http.ResponseWriter) {
		w.WriteHeader(http.StatusBadRequest)
		switch call {
		case 1:
			_, _ = w.Write([]byte(`{"code":"already-tracked","error":"view/table already tracked"}`))
		default:
			_, _ = w.Write([]byte(`{"code":"already-exists","error":"relationship already exists"}`))
		}
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	// Erneuter Lauf gegen bereits registrierte Metadaten ist ein No-op.
	require.NoError(t, client.RegisterAnomalyScores(context.Background()))
	require.Len(t, calls, 3)
}

func TestUnregisterAnomalyScores_ReverseOrder(t *testing.T) {
	t.Parallel()

	var calls []recordedCall
	srv := newMetadataServer(t, &calls, func(_ int, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"message":"success"}`))
	})
	defer srv.Close()

	client := newTestClient(t, srv.URL)
	require.NoError(t, client.UnregisterAnomalyScores(context.Background()))
	require.Len(t, calls, 3)

	require.Equal(t, "pg_drop_relationship", calls[0].Body["type"])
	dropArr := calls[0].Body["args"].(map[string]any)
	require.Equal(t, "anomaly_scores", dropArr["relationship"])
	require.Equal(t, map[string]any{"schema": "public", "name": "towers"}, dropArr["table"])

	require.Equal(t, "pg_drop_relationship", calls[1].Body["type"])
	dropObj := calls[1].Body["args"].(map[string]any)
	require.Equal(t, "tower", dropObj["relationship"])

	require.Equal(t, "pg_untrack_table", calls[2].Body["type"])
	untrack := calls[2].Body["args"].(map[string]any)
	require.Equal(t, true, untrack["cascade"])
}

func TestCall_NetworkErrorSurfaces(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Verbindung schlägt fehl

	client := newTestClient(t, srv.URL)
	err := client.TrackTable(context.Background(), TableRef{Schema: "public", Name: "tower_anomaly_scores"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "pg_track_table")
}
