package hasura

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fehlercodes, die Hasura bei erneuter Registrierung bereits vorhandener
// Objekte liefert. Sie gelten als No-op, damit der Registrierungslauf
// beliebig oft wiederholt werden kann.
var benignCodes = map[string]bool{
	"already-tracked":   true,
	"already-exists":    true,
	"already-untracked": true,
}

// Client spricht die Metadata-API einer Hasura-Instanz an.
type Client struct {
	Endpoint    string
	AdminSecret string
	Source      string
	Logger      *zap.Logger
}

// NewClient erstellt einen neuen Metadata-Client.
func NewClient(endpoint, adminSecret, source string, logger *zap.Logger) (*Client, error) {
	if adminSecret == "" {
		return nil, fmt.Errorf("hasura admin secret ist nicht konfiguriert")
	}
	return &Client{
		Endpoint:    endpoint,
		AdminSecret: adminSecret,
		Source:      source,
		Logger:      logger,
	}, nil
}

// TableRef adressiert eine Tabelle im Schema-Graphen.
type TableRef struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
}

// metadataRequest ist der generische Umschlag für POST /v1/metadata.
type metadataRequest struct {
	Type string `json:"type"`
	Args any    `json:"args"`
}

// metadataError ist die Fehlerantwort der Metadata-API.
type metadataError struct {
	Code  string `json:"code"`
	Error string `json:"error"`
	Path  string `json:"path"`
}

// call schickt einen Metadata-Befehl und prüft die Antwort. Bekannte
// "bereits vorhanden"-Fehlercodes werden als Erfolg behandelt.
func (c *Client) call(ctx context.Context, reqType string, args any) error {
	payload, err := json.Marshal(metadataRequest{Type: reqType, Args: args})
	if err != nil {
		return fmt.Errorf("%s: payload nicht serialisierbar: %w", reqType, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/v1/metadata", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: %w", reqType, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-hasura-admin-secret", c.AdminSecret)

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: request fehlgeschlagen: %w", reqType, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: antwort nicht lesbar: %w", reqType, err)
	}

	if resp.StatusCode == http.StatusOK {
		c.Logger.Debug("Metadata-Befehl erfolgreich", zap.String("type", reqType))
		return nil
	}

	var apiErr metadataError
	if err := json.Unmarshal(body, &apiErr); err == nil && benignCodes[apiErr.Code] {
		c.Logger.Info("Metadata-Objekt bereits vorhanden, überspringe.",
			zap.String("type", reqType), zap.String("code", apiErr.Code))
		return nil
	}

	return fmt.Errorf("%s: metadata api antwortete mit status %d: %s", reqType, resp.StatusCode, string(body))
}

// TrackTable registriert eine Tabelle unter der konfigurierten Quelle.
func (c *Client) TrackTable(ctx context.Context, table TableRef) error {
	return c.call(ctx, "pg_track_table", map[string]any{
		"source": c.Source,
		"table":  table,
	})
}

// UntrackTable entfernt eine Tabelle samt abhängiger Relationships
// aus den Metadaten.
func (c *Client) UntrackTable(ctx context.Context, table TableRef) error {
	return c.call(ctx, "pg_untrack_table", map[string]any{
		"source":  c.Source,
		"table":   table,
		"cascade": true,
	})
}

// CreateObjectRelationship deklariert eine to-one-Beziehung über eine
// Fremdschlüsselspalte der Tabelle selbst.
func (c *Client) CreateObjectRelationship(ctx context.Context, table TableRef, name, fkColumn string) error {
	return c.call(ctx, "pg_create_object_relationship", map[string]any{
		"source": c.Source,
		"table":  table,
		"name":   name,
		"using": map[string]any{
			"foreign_key_constraint_on": fkColumn,
		},
	})
}

// CreateArrayRelationship deklariert die to-many-Gegenrichtung über den
// Fremdschlüssel der referenzierenden Tabelle.
func (c *Client) CreateArrayRelationship(ctx context.Context, table TableRef, name string, remote TableRef, fkColumn string) error {
	return c.call(ctx, "pg_create_array_relationship", map[string]any{
		"source": c.Source,
		"table":  table,
		"name":   name,
		"using": map[string]any{
			"foreign_key_constraint_on": map[string]any{
				"table":  remote,
				"column": fkColumn,
			},
		},
	})
}

// DropRelationship entfernt eine deklarierte Beziehung.
func (c *Client) DropRelationship(ctx context.Context, table TableRef, name string) error {
	return c.call(ctx, "pg_drop_relationship", map[string]any{
		"source":       c.Source,
		"table":        table,
		"relationship": name,
	})
}
