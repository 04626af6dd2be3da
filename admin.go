package main

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// The admin surface is guarded by a single shared secret, sent either in
// a JSON body (auth check) or as a bearer token. There is deliberately
// no stronger auth than this.

func adminAuthorized(cfg *Config, r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+cfg.adminPassword
}

func serveAdminAuth(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var body struct {
			Password string `json:"password"`
		}

		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password != cfg.adminPassword {
			writeJSON(cfg, w, http.StatusUnauthorized, map[string]any{"success": false, "error": "Invalid password"})
			return
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{"success": true})
	}
}

func serveAdminStats(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if !adminAuthorized(cfg, r) {
			writeJSON(cfg, w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
			return
		}

		writeJSON(cfg, w, http.StatusOK, registry.adminStats())
	}
}

func serveAdminCreateRoom(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if !adminAuthorized(cfg, r) {
			writeJSON(cfg, w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
			return
		}

		var body struct {
			GameName string `json:"gameName"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		room, err := registry.createRoom(body.GameName)
		if err != nil {
			writeJSON(cfg, w, http.StatusConflict, map[string]any{"error": err.Error()})
			return
		}

		writeJSON(cfg, w, http.StatusOK, map[string]any{
			"gameCode": room.code,
			"gameName": room.name,
		})
	}
}

func serveAdminDeleteRoom(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		if !adminAuthorized(cfg, r) {
			writeJSON(cfg, w, http.StatusUnauthorized, map[string]any{"error": "Unauthorized"})
			return
		}

		deleted := registry.deleteRoom(p.ByName("code"), "Room deleted by admin")

		writeJSON(cfg, w, http.StatusOK, map[string]any{"success": deleted})
	}
}

func registerAdminHandlers(cfg *Config, registry *Registry, mux *httprouter.Router) {
	mux.POST(cfg.prefix+"/admin/auth", serveAdminAuth(cfg))
	mux.GET(cfg.prefix+"/admin/stats", serveAdminStats(cfg, registry))
	mux.POST(cfg.prefix+"/admin/rooms", serveAdminCreateRoom(cfg, registry))
	mux.DELETE(cfg.prefix+"/admin/room/:code", serveAdminDeleteRoom(cfg, registry))
}
