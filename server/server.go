// Package server exposes the board over HTTP: snapshot reads, CSV ingestion,
// direct card edits, bulk clearing, and the websocket push channel.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/shappi-app/warehouse-bundles-dashboard/board"
	"github.com/shappi-app/warehouse-bundles-dashboard/config"
	"github.com/shappi-app/warehouse-bundles-dashboard/hub"
	"github.com/shappi-app/warehouse-bundles-dashboard/tabular"
)

// WebServer handles HTTP requests against the authoritative card store.
type WebServer struct {
	store     *board.Store
	hub       *hub.Hub
	httpAddr  string
	server    *http.Server
	logger    *zap.Logger
	startTime time.Time
}

// NewWebServer creates a web server wired to the store and broadcast hub.
func NewWebServer(store *board.Store, h *hub.Hub, cfg *config.Config, logger *zap.Logger) *WebServer {
	mux := http.NewServeMux()

	ws := &WebServer{
		store:     store,
		hub:       h,
		httpAddr:  ":" + cfg.HTTPPort,
		logger:    logger,
		startTime: time.Now(),
	}

	// Register routes
	mux.HandleFunc("/", ws.handleRoot)
	mux.HandleFunc("/api/cards", ws.handleCards)
	mux.HandleFunc("/api/uploadCsv", ws.handleUploadCSV)
	mux.HandleFunc("/api/card", ws.handleCard)
	mux.HandleFunc("/api/restoreCard", ws.handleRestoreCard)
	mux.HandleFunc("/api/clearCompleted", ws.handleClearCompleted)
	mux.HandleFunc("/ws", h.ServeWS)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	}).Handler(mux)

	ws.server = &http.Server{
		Addr:    ws.httpAddr,
		Handler: corsHandler,
	}
	return ws
}

// Handler exposes the full middleware-wrapped handler, used by tests.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start starts the web server.
func (ws *WebServer) Start() {
	ws.logger.Info("Starting web server", zap.String("addr", ws.httpAddr))
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error("Web server error", zap.Error(err))
		}
	}()
}

// Shutdown gracefully shuts down the web server.
func (ws *WebServer) Shutdown(ctx context.Context) error {
	ws.logger.Info("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// handleRoot shows a minimal status page.
func (ws *WebServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		JSONError(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte("<h1>Warehouse Bundles Dashboard</h1>"))
	w.Write([]byte(fmt.Sprintf("<p>Cards: %d</p>", len(ws.store.Snapshot()))))
	w.Write([]byte(fmt.Sprintf("<p>Uptime: %s</p>", time.Since(ws.startTime))))
}

// handleCards returns the full snapshot for observer bootstrap and resync.
func (ws *WebServer) handleCards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cards": ws.store.Snapshot()})
}

type uploadCSVBody struct {
	Rows json.RawMessage `json:"rows"`
}

// handleUploadCSV ingests a batch of loose rows: normalize, project, merge.
// Invalid individual rows become warnings; only a non-sequence batch is
// rejected outright.
func (ws *WebServer) handleUploadCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body uploadCSVBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		JSONError(w, "Invalid body format: "+err.Error(), http.StatusBadRequest)
		return
	}

	var rows []map[string]any
	// "rows" must be a JSON sequence: absent, null, and non-array shapes are
	// all rejected before any row is touched.
	if len(body.Rows) == 0 || json.Unmarshal(body.Rows, &rows) != nil || rows == nil {
		ws.logger.Info("Rejected upload with invalid rows shape")
		JSONError(w, "Invalid rows format", http.StatusBadRequest)
		return
	}

	updates, rowErrs := tabular.ProjectRows(rows)
	warnings := make([]string, 0, len(rowErrs))
	for _, re := range rowErrs {
		warnings = append(warnings, re.Error())
	}

	report, storeErr := ws.store.MergeBatch(updates)
	if storeErr != nil {
		ws.logger.Error("Merge failed", zap.String("code", storeErr.Code), zap.String("detail", storeErr.Detail))
		JSONError(w, storeErr.Message, http.StatusInternalServerError)
		return
	}

	ws.logger.Info("Merged CSV rows",
		zap.Int("received", len(rows)),
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated),
		zap.Int("skipped", len(warnings)))

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"count":    report.Created + report.Updated,
		"warnings": warnings,
	})
}

type cardBody struct {
	Card *board.Card `json:"card"`
}

// handleCard is the direct upsert path: a manual edit when the card exists,
// creation otherwise.
func (ws *WebServer) handleCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body cardBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		JSONError(w, "Invalid body format: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if body.Card == nil || body.Card.TripID == "" {
		JSONError(w, "Invalid card", http.StatusBadRequest)
		return
	}
	if body.Card.CurrentBucket != "" && !board.ValidBucket(body.Card.CurrentBucket) {
		JSONError(w, "Unknown bucket: "+string(body.Card.CurrentBucket), http.StatusBadRequest)
		return
	}

	edit := board.ManualEdit{Assignee: body.Card.AssignedTo, SetAssignee: true}
	if body.Card.CurrentBucket != "" {
		bucket := body.Card.CurrentBucket
		edit.Bucket = &bucket
	}

	card, storeErr := ws.store.ApplyManualEdit(body.Card.TripID, edit)
	if storeErr != nil && storeErr.Code == board.ErrCodeNotFound {
		card, storeErr = ws.store.PutCard(*body.Card)
	}
	if storeErr != nil {
		ws.writeStoreError(w, storeErr)
		return
	}

	ws.logger.Info("Card saved", zap.String("tripId", card.TripID), zap.String("bucket", string(card.CurrentBucket)))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleRestoreCard reinserts a card out of band and announces card-restored.
func (ws *WebServer) handleRestoreCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body cardBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		JSONError(w, "Invalid body format: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	if body.Card == nil || body.Card.TripID == "" {
		JSONError(w, "Invalid card", http.StatusBadRequest)
		return
	}
	if body.Card.CurrentBucket != "" && !board.ValidBucket(body.Card.CurrentBucket) {
		JSONError(w, "Unknown bucket: "+string(body.Card.CurrentBucket), http.StatusBadRequest)
		return
	}

	card, storeErr := ws.store.RestoreCard(*body.Card)
	if storeErr != nil {
		ws.writeStoreError(w, storeErr)
		return
	}

	ws.logger.Info("Card restored", zap.String("tripId", card.TripID))
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// handleClearCompleted deletes every card in the terminal stage.
func (ws *WebServer) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	removed, storeErr := ws.store.ClearCompleted()
	if storeErr != nil {
		ws.writeStoreError(w, storeErr)
		return
	}

	ws.logger.Info("Cleared completed cards", zap.Int("removed", removed))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}

// writeStoreError maps store error codes to HTTP statuses.
func (ws *WebServer) writeStoreError(w http.ResponseWriter, storeErr *board.StoreError) {
	switch storeErr.Code {
	case board.ErrCodeNotFound:
		JSONError(w, storeErr.Message, http.StatusNotFound)
	case board.ErrCodeInvalidCard:
		JSONError(w, storeErr.Message, http.StatusBadRequest)
	default:
		ws.logger.Error("Store operation failed",
			zap.String("code", storeErr.Code), zap.String("detail", storeErr.Detail))
		JSONError(w, storeErr.Message, http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		// Headers are gone; nothing left to do but note it server-side.
		return
	}
}

// JSONError sends a JSON formatted error response with the given status code
// and message.
func JSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: message})
}
