package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

func writeJSON(cfg *Config, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(payload)
}

// serveQRCode renders a PNG QR code for a room's player join URL,
// respecting TLS and X-Forwarded-Proto.
func serveQRCode(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/player"
		if gameCode := r.URL.Query().Get("game"); gameCode != "" {
			url += "?game=" + gameCode
		}

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

// serveQuestionUpload loads a question set into a room, either from an
// uploaded CSV or the built-in default set.
func serveQuestionUpload(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		if err := r.ParseMultipartForm(4 << 20); err != nil {
			writeJSON(cfg, w, http.StatusBadRequest, map[string]any{"error": "invalid upload"})
			return
		}

		gameCode := r.FormValue("gameCode")
		if gameCode == "" {
			writeJSON(cfg, w, http.StatusBadRequest, map[string]any{"error": "No game code provided"})
			return
		}

		room := registry.getRoom(gameCode)
		if room == nil {
			writeJSON(cfg, w, http.StatusNotFound, map[string]any{"error": "Game room not found"})
			return
		}

		var questions []Question

		switch {
		case r.FormValue("useDefault") != "":
			questions = DefaultQuestions()
		default:
			file, _, err := r.FormFile("questions")
			if err != nil {
				writeJSON(cfg, w, http.StatusBadRequest, map[string]any{"error": "No file uploaded"})
				return
			}
			defer file.Close()

			questions, err = ParseQuestionsCSV(file)
			if err != nil {
				writeJSON(cfg, w, http.StatusBadRequest, map[string]any{"error": err.Error()})
				return
			}
		}

		room.mu.Lock()
		room.game.LoadQuestions(questions)
		categories := room.game.Categories()
		room.broadcastLocked(GameStateMessage{Type: evGameState, GameState: room.game.Snapshot()})
		room.mu.Unlock()

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"success":    true,
			"message":    fmt.Sprintf("Loaded %d questions", len(questions)),
			"categories": categories,
			"gameCode":   room.code,
		})

		logf(cfg, "SERVE: Loaded %d questions into %s for %s in %s",
			len(questions),
			room.code,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
