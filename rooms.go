package main

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"
)

var errRoomLimit = errors.New("maximum number of rooms reached")

// AdminRoomInfo is one row of the admin dashboard.
type AdminRoomInfo struct {
	Code               string       `json:"code"`
	Name               string       `json:"name"`
	Created            time.Time    `json:"created"`
	LastActivity       time.Time    `json:"lastActivity"`
	HoursActive        int          `json:"hoursActive"`
	PlayerCount        int          `json:"playerCount"`
	Status             string       `json:"status"`
	PresenterConnected bool         `json:"presenterConnected"`
	CurrentRound       string       `json:"currentRound"`
	Scores             []ScoreEntry `json:"scores"`
}

// AdminStats summarizes every live room.
type AdminStats struct {
	ActiveGames int             `json:"activeGames"`
	MaxRooms    int             `json:"maxRooms"`
	Games       []AdminRoomInfo `json:"games"`
}

// Registry owns the code→room map: creation with a capacity
// ceiling, lookup that refreshes activity, idempotent deletion, and a
// periodic sweep that evicts idle rooms. Lookup activity is the sole
// driver of eviction; a room with connected-but-silent participants can
// still be reaped.
type Registry struct {
	mu    sync.Mutex
	cfg   *Config
	rooms map[string]*Room
	quit  chan struct{}
}

func newRegistry(cfg *Config) *Registry {
	registry := &Registry{
		cfg:   cfg,
		rooms: make(map[string]*Room),
		quit:  make(chan struct{}),
	}

	go registry.sweepLoop()

	return registry
}

// createRoom builds a room under the capacity ceiling. A desired name
// seeds the code; otherwise a random RBL### code is generated.
func (registry *Registry) createRoom(customName string) (*Room, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if len(registry.rooms) >= registry.cfg.maxRooms {
		return nil, errRoomLimit
	}

	code := registry.generateCodeLocked(customName)

	name := customName
	if name == "" {
		name = code
	}

	room := newRoom(registry.cfg, code, name)
	registry.rooms[code] = room

	logf(registry.cfg, "ROOMS: Created game room %s (%s)", code, name)

	return room, nil
}

// generateCodeLocked derives a unique room code. Custom names are
// upper-cased, stripped to alphanumerics, and capped at ten characters;
// short or colliding results get random two-digit suffixes until
// unique. Without a name, codes look like RBL123.
func (registry *Registry) generateCodeLocked(customName string) string {
	if customName != "" {
		var b strings.Builder
		for _, r := range strings.ToUpper(customName) {
			if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
				b.WriteRune(r)
			}
		}

		code := b.String()
		if len(code) > 10 {
			code = code[:10]
		}

		if len(code) < 3 || registry.roomExistsLocked(code) {
			if code == "" {
				code = "GAME"
			}
			code = code + fmt.Sprintf("%02d", rand.Intn(100))
		}

		for registry.roomExistsLocked(code) {
			if len(code) > 8 {
				code = code[:8]
			}
			code = code + fmt.Sprintf("%02d", rand.Intn(100))
		}

		return code
	}

	for {
		code := fmt.Sprintf("RBL%03d", rand.Intn(1000))
		if !registry.roomExistsLocked(code) {
			return code
		}
	}
}

func (registry *Registry) roomExistsLocked(code string) bool {
	_, ok := registry.rooms[code]
	return ok
}

// getRoom resolves a code, case-insensitively, and refreshes the room's
// last-activity time on success.
func (registry *Registry) getRoom(code string) *Room {
	registry.mu.Lock()
	room := registry.rooms[strings.ToUpper(code)]
	registry.mu.Unlock()

	if room == nil {
		return nil
	}

	room.touch()

	return room
}

// deleteRoom notifies all members, closes the room, and removes it.
// Idempotent: reports whether a room actually existed.
func (registry *Registry) deleteRoom(code, reason string) bool {
	registry.mu.Lock()
	room, ok := registry.rooms[strings.ToUpper(code)]
	if ok {
		delete(registry.rooms, strings.ToUpper(code))
	}
	registry.mu.Unlock()

	if !ok {
		return false
	}

	room.close(reason)

	logf(registry.cfg, "ROOMS: Deleted game room %s", room.code)

	return true
}

func (registry *Registry) roomCount() int {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	return len(registry.rooms)
}

// stop ends the sweep goroutine and closes every room.
func (registry *Registry) stop() {
	close(registry.quit)

	registry.mu.Lock()
	rooms := make([]*Room, 0, len(registry.rooms))
	for code, room := range registry.rooms {
		rooms = append(rooms, room)
		delete(registry.rooms, code)
	}
	registry.mu.Unlock()

	for _, room := range rooms {
		room.close("Server shutting down")
	}
}

func (registry *Registry) sweepLoop() {
	ticker := time.NewTicker(registry.cfg.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			registry.evictIdle(time.Now())
		case <-registry.quit:
			return
		}
	}
}

// evictIdle removes rooms whose last activity exceeds the configured
// threshold.
func (registry *Registry) evictIdle(now time.Time) {
	cutoff := now.Add(-registry.cfg.roomTimeout)

	registry.mu.Lock()
	stale := make([]string, 0)
	for code, room := range registry.rooms {
		if room.lastActivity().Before(cutoff) {
			stale = append(stale, code)
		}
	}
	registry.mu.Unlock()

	for _, code := range stale {
		logf(registry.cfg, "ROOMS: Evicting inactive room %s", code)
		registry.deleteRoom(code, "Room closed due to inactivity")
	}
}

// adminStats snapshots every room for the dashboard.
func (registry *Registry) adminStats() AdminStats {
	registry.mu.Lock()
	rooms := make([]*Room, 0, len(registry.rooms))
	for _, room := range registry.rooms {
		rooms = append(rooms, room)
	}
	registry.mu.Unlock()

	now := time.Now()

	stats := AdminStats{
		ActiveGames: len(rooms),
		MaxRooms:    registry.cfg.maxRooms,
		Games:       make([]AdminRoomInfo, 0, len(rooms)),
	}

	for _, room := range rooms {
		room.mu.Lock()
		stats.Games = append(stats.Games, AdminRoomInfo{
			Code:               room.code,
			Name:               room.name,
			Created:            room.createdAt,
			LastActivity:       room.lastActive,
			HoursActive:        int(now.Sub(room.createdAt).Hours()),
			PlayerCount:        room.game.PlayerCount(),
			Status:             gameStatus(room.game),
			PresenterConnected: room.game.PresenterID() != "",
			CurrentRound:       currentRound(room.game),
			Scores:             room.game.Scores(),
		})
		room.mu.Unlock()
	}

	sort.Slice(stats.Games, func(i, j int) bool {
		return stats.Games[i].Code < stats.Games[j].Code
	})

	return stats
}

// gameStatus condenses the engine state to a dashboard label.
func gameStatus(game *Game) string {
	switch {
	case game.State() == stateFinalJeopardy:
		return "Final Jeopardy"
	case game.State() == stateComplete:
		return "Game Complete"
	case game.CurrentQuestion() != nil:
		return "Question Active"
	case game.State() == stateWaiting:
		return "Waiting for Players"
	case game.UsedCount() == 0:
		return "Not Started"
	case game.UsedCount() == game.QuestionCount():
		return "Game Complete"
	default:
		return "In Progress"
	}
}

// currentRound estimates progress by the fraction of used questions.
func currentRound(game *Game) string {
	total := game.QuestionCount()
	if total == 0 {
		return "Setup"
	}
	if game.State() == stateFinalJeopardy || game.State() == stateComplete {
		return "Final"
	}

	percent := float64(game.UsedCount()) / float64(total) * 100
	switch {
	case percent < 50:
		return "Round 1"
	case percent < 100:
		return "Round 2"
	default:
		return "Complete"
	}
}
