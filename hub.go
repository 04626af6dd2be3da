package main

import (
	"sync"
	"time"
)

// Room pairs one session engine with its connected clients. The mutex
// serializes every engine mutation, including answer-timer expiries, so
// the engine itself never locks. Rooms are fully independent; nothing is
// shared between them except the registry's code map.
type Room struct {
	mu sync.Mutex

	code string
	name string
	cfg  *Config
	game *Game

	clients    map[*Client]bool
	createdAt  time.Time
	lastActive time.Time
	closed     bool
}

func newRoom(cfg *Config, code, name string) *Room {
	now := time.Now()

	room := &Room{
		code:       code,
		name:       name,
		cfg:        cfg,
		game:       newGame(code, cfg.maxPlayers, cfg.answerWindow),
		clients:    make(map[*Client]bool),
		createdAt:  now,
		lastActive: now,
	}

	room.game.onTimeout = room.handleAnswerTimeout

	return room
}

func (room *Room) touch() {
	room.mu.Lock()
	room.lastActive = time.Now()
	room.mu.Unlock()
}

func (room *Room) lastActivity() time.Time {
	room.mu.Lock()
	defer room.mu.Unlock()

	return room.lastActive
}

func (room *Room) attachLocked(c *Client) {
	room.clients[c] = true
}

// detachLocked removes a client and releases its write pump. Clients
// already dropped by a full-buffer broadcast are left alone.
func (room *Room) detachLocked(c *Client) {
	if room.clients[c] {
		delete(room.clients, c)
		c.closed = true
		close(c.send)
	}
}

// broadcastLocked fans a message out to every client in the room,
// dropping clients whose send buffer is full.
func (room *Room) broadcastLocked(msg any) {
	for client := range room.clients {
		select {
		case client.send <- msg:
		default:
			delete(room.clients, client)
			client.closed = true
			close(client.send)
		}
	}
}

// toConnLocked sends to a single connection in the room, if present.
func (room *Room) toConnLocked(connID string, msg any) {
	for client := range room.clients {
		if client.id != connID {
			continue
		}

		select {
		case client.send <- msg:
		default:
			delete(room.clients, client)
			client.closed = true
			close(client.send)
		}

		return
	}
}

// toPresenterLocked sends to the presenter connection, if one is bound.
func (room *Room) toPresenterLocked(msg any) {
	if id := room.game.PresenterID(); id != "" {
		room.toConnLocked(id, msg)
	}
}

// handleAnswerTimeout fires from the timer goroutine. The generation
// check inside AnswerTimeout discards callbacks that lost a race with a
// manual grade, a reset, or room deletion.
func (room *Room) handleAnswerTimeout(gen uint64) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed {
		return
	}

	result, ok := room.game.AnswerTimeout(gen)
	if !ok {
		return
	}

	room.lastActive = time.Now()

	room.broadcastLocked(SimpleEvent{Type: evAnswerTimeUp})

	if result.Next != nil {
		room.broadcastLocked(NextPlayerMessage{
			Type:       evNextPlayerToAnswer,
			PlayerID:   result.Next.PlayerID,
			PlayerName: result.Next.PlayerName,
		})
		return
	}

	if result.Reopened {
		room.broadcastLocked(SimpleEvent{Type: evReopenBuzzing})
	}
}

// close ends the room: the timer is cancelled, every member is told the
// game ended, and all connections are dropped. Safe to call twice. A
// closed room is terminal; late events against it are no-ops.
func (room *Room) close(reason string) {
	room.mu.Lock()
	defer room.mu.Unlock()

	if room.closed {
		return
	}
	room.closed = true

	room.game.cancelTimer()

	room.broadcastLocked(GameEndedMessage{
		Type:   evGameEnded,
		Reason: reason,
	})

	for client := range room.clients {
		client.closed = true
		close(client.send)
		_ = client.conn.Close()
		delete(room.clients, client)
	}
}
