package main

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// Inbound message kinds. This set is closed: anything else read off a
// connection is dropped in the dispatch switch.
const (
	msgCreateGame       = "create-game"
	msgPresenterConnect = "presenter-connect"
	msgPlayerJoin       = "player-join"
	msgSelectQuestion   = "select-question"
	msgDailyDoubleWager = "daily-double-wager"
	msgBuzz             = "buzz"
	msgAnswerResponse   = "answer-response"
	msgAdjustScore      = "adjust-score"
	msgStartFinal       = "start-final-jeopardy"
	msgFinalWager       = "final-jeopardy-wager"
	msgFinalAnswer      = "final-jeopardy-answer"
	msgGradeFinal       = "grade-final-answer"
	msgResetGame        = "reset-game"
)

// Outbound event kinds.
const (
	evGameCreated         = "game-created"
	evGameState           = "game-state"
	evPlayerJoined        = "player-joined"
	evJoinError           = "join-error"
	evPlayersUpdate       = "players-update"
	evPlayerConnected     = "player-connected"
	evPlayerDisconnected  = "player-disconnected"
	evScoresUpdated       = "scores-updated"
	evQuestionSelected    = "question-selected"
	evBuzzReceived        = "buzz-received"
	evAnswerProcessed     = "answer-processed"
	evNextPlayerToAnswer  = "next-player-to-answer"
	evReopenBuzzing       = "reopen-buzzing"
	evAnswerTimeUp        = "answer-time-up"
	evQuestionComplete    = "question-complete"
	evWagerAccepted       = "wager-accepted"
	evWagerError          = "wager-error"
	evDailyDoubleUnlocked = "daily-double-unlocked"
	evAllWagersSubmitted  = "all-wagers-submitted"
	evAnswerSubmitted     = "answer-submitted"
	evReviewFinalAnswers  = "review-final-answers"
	evFinalStarted        = "final-jeopardy-started"
	evGameOver            = "game-over"
	evGameReset           = "game-reset"
	evGameEnded           = "game-ended"
	evError               = "error"
)

// ClientMessage is the single inbound envelope; which fields are
// meaningful depends on Type.
type ClientMessage struct {
	Type       string `json:"type"`
	GameCode   string `json:"gameCode,omitempty"`   // everything except create-game
	GameName   string `json:"gameName,omitempty"`   // create-game
	PlayerName string `json:"playerName,omitempty"` // player-join
	Category   string `json:"category,omitempty"`   // select-question
	Value      int    `json:"value,omitempty"`      // select-question
	PlayerID   string `json:"playerId,omitempty"`   // answer-response / adjust-score / grade-final-answer
	Correct    bool   `json:"correct,omitempty"`    // answer-response / grade-final-answer
	Wager      int    `json:"wager,omitempty"`      // daily-double-wager / final-jeopardy-wager
	Answer     string `json:"answer,omitempty"`     // final-jeopardy-answer
	Points     int    `json:"points,omitempty"`     // adjust-score
}

type GameCreatedMessage struct {
	Type      string       `json:"type"`
	GameCode  string       `json:"gameCode"`
	GameState GameSnapshot `json:"gameState"`
}

type GameStateMessage struct {
	Type      string       `json:"type"`
	GameState GameSnapshot `json:"gameState"`
}

type PlayerMessage struct {
	Type   string `json:"type"`
	Player Player `json:"player"`
}

type PlayersUpdateMessage struct {
	Type    string   `json:"type"`
	Players []Player `json:"players"`
}

type ScoresUpdatedMessage struct {
	Type   string       `json:"type"`
	Scores []ScoreEntry `json:"scores"`
}

type QuestionSelectedMessage struct {
	Type     string           `json:"type"`
	Question SelectedQuestion `json:"question"`
}

type BuzzReceivedMessage struct {
	Type       string    `json:"type"`
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Timestamp  time.Time `json:"timestamp"`
	Position   int       `json:"position"`
}

type AnswerProcessedMessage struct {
	Type     string       `json:"type"`
	PlayerID string       `json:"playerId"`
	Correct  bool         `json:"correct"`
	Points   int          `json:"points"`
	Scores   []ScoreEntry `json:"scores"`
}

type NextPlayerMessage struct {
	Type       string `json:"type"`
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type WagerAcceptedMessage struct {
	Type  string `json:"type"`
	Wager int    `json:"wager"`
}

type DailyDoubleUnlockedMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"playerId"`
	Wager    int    `json:"wager"`
}

type FinalStartedMessage struct {
	Type  string          `json:"type"`
	State FinalRoundState `json:"state"`
}

type ReviewFinalAnswersMessage struct {
	Type    string        `json:"type"`
	Answers []FinalAnswer `json:"answers"`
}

type GameOverMessage struct {
	Type      string         `json:"type"`
	Standings FinalStandings `json:"standings"`
}

type GameEndedMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ErrorMessage carries a user-facing failure reason; Type distinguishes
// generic errors from join and wager failures.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SimpleEvent is for events that carry no payload.
type SimpleEvent struct {
	Type string `json:"type"`
}

type Client struct {
	conn *websocket.Conn
	send chan any

	// id is minted at upgrade time and owned by this layer; it doubles
	// as the player id inside whatever room the connection joins.
	id string

	// roomCode is set once the connection creates or joins a room.
	roomCode string

	// closed is set under the room mutex by whichever path closes send
	// (broadcast drop, detach, room close). Once set, trySend is a
	// no-op; before the client joins a room nothing else touches it.
	closed bool
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, registry *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 16),
			id:   uuid.NewString(),
		}

		go client.writePump()
		client.readPump(cfg, registry)
	}
}

func (c *Client) readPump(cfg *Config, registry *Registry) {
	defer func() {
		handleDisconnect(cfg, registry, c)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case msgCreateGame:
			handleCreateGame(cfg, registry, c, msg)
		case msgPresenterConnect:
			handlePresenterConnect(cfg, registry, c, msg)
		case msgPlayerJoin:
			handlePlayerJoin(cfg, registry, c, msg)
		case msgSelectQuestion:
			handleSelectQuestion(cfg, registry, c, msg)
		case msgDailyDoubleWager:
			handleDailyDoubleWager(registry, c, msg)
		case msgBuzz:
			handleBuzz(registry, c, msg)
		case msgAnswerResponse:
			handleAnswerResponse(registry, c, msg)
		case msgAdjustScore:
			handleAdjustScore(registry, c, msg)
		case msgStartFinal:
			handleStartFinal(cfg, registry, c, msg)
		case msgFinalWager:
			handleFinalWager(registry, c, msg)
		case msgFinalAnswer:
			handleFinalAnswer(registry, c, msg)
		case msgGradeFinal:
			handleGradeFinal(registry, c, msg)
		case msgResetGame:
			handleResetGame(cfg, registry, c, msg)
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// trySend queues a message for a client that may not yet belong to a
// room (errors during create/join). Clients already dropped by a
// broadcast are skipped rather than hitting their closed channel.
func (c *Client) trySend(msg any) {
	if c.closed {
		return
	}

	select {
	case c.send <- msg:
	default:
	}
}

func handleCreateGame(cfg *Config, registry *Registry, c *Client, msg ClientMessage) {
	room, err := registry.createRoom(msg.GameName)
	if err != nil {
		c.trySend(ErrorMessage{Type: evError, Message: err.Error()})
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	room.game.SetPresenter(c.id)
	room.attachLocked(c)
	c.roomCode = room.code

	c.trySend(GameCreatedMessage{
		Type:      evGameCreated,
		GameCode:  room.code,
		GameState: room.game.Snapshot(),
	})

	logf(cfg, "GAMES: Presenter created game %s", room.code)
}

func handlePresenterConnect(cfg *Config, registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		c.trySend(ErrorMessage{Type: evError, Message: "Game room not found"})
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	room.game.SetPresenter(c.id)
	room.attachLocked(c)
	c.roomCode = room.code

	c.trySend(GameStateMessage{Type: evGameState, GameState: room.game.Snapshot()})
	c.trySend(PlayersUpdateMessage{Type: evPlayersUpdate, Players: room.game.Players()})

	logf(cfg, "GAMES: Presenter reconnected to game %s", room.code)
}

func handlePlayerJoin(cfg *Config, registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		c.trySend(ErrorMessage{Type: evJoinError, Message: "Invalid game code"})
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	player := room.game.AddPlayer(c.id, msg.PlayerName)
	if player == nil {
		c.trySend(ErrorMessage{Type: evJoinError, Message: "Game is full or invalid name"})
		return
	}

	room.attachLocked(c)
	c.roomCode = room.code

	c.trySend(PlayerMessage{Type: evPlayerJoined, Player: *player})

	room.broadcastLocked(PlayersUpdateMessage{Type: evPlayersUpdate, Players: room.game.Players()})
	room.broadcastLocked(ScoresUpdatedMessage{Type: evScoresUpdated, Scores: room.game.Scores()})
	room.toPresenterLocked(PlayerMessage{Type: evPlayerConnected, Player: *player})

	logf(cfg, "GAMES: Player %q joined %s", player.Name, room.code)
}

func handleSelectQuestion(cfg *Config, registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if c.id != room.game.PresenterID() {
		return
	}

	question := room.game.SelectQuestion(msg.Category, msg.Value)
	if question == nil {
		return
	}

	room.broadcastLocked(QuestionSelectedMessage{Type: evQuestionSelected, Question: *question})
	room.broadcastLocked(GameStateMessage{Type: evGameState, GameState: room.game.Snapshot()})

	logf(cfg, "GAMES: %s selected %s for %d", room.code, msg.Category, msg.Value)
}

func handleDailyDoubleWager(registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.game.SubmitDailyDoubleWager(c.id, msg.Wager) {
		c.trySend(ErrorMessage{Type: evWagerError, Message: "Invalid wager amount"})
		return
	}

	room.broadcastLocked(DailyDoubleUnlockedMessage{
		Type:     evDailyDoubleUnlocked,
		PlayerID: c.id,
		Wager:    msg.Wager,
	})
	room.broadcastLocked(GameStateMessage{Type: evGameState, GameState: room.game.Snapshot()})
}

func handleBuzz(registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	position := room.game.RecordBuzz(c.id)
	if position == 0 {
		return
	}

	entry := room.game.BuzzQueue()[position-1]

	room.broadcastLocked(BuzzReceivedMessage{
		Type:       evBuzzReceived,
		PlayerID:   entry.PlayerID,
		PlayerName: entry.PlayerName,
		Timestamp:  entry.Timestamp,
		Position:   position,
	})
}

func handleAnswerResponse(registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if c.id != room.game.PresenterID() {
		return
	}

	points := room.game.ProcessAnswer(msg.PlayerID, msg.Correct)

	room.broadcastLocked(AnswerProcessedMessage{
		Type:     evAnswerProcessed,
		PlayerID: msg.PlayerID,
		Correct:  msg.Correct,
		Points:   points,
		Scores:   room.game.Scores(),
	})

	if msg.Correct {
		room.broadcastLocked(PlayersUpdateMessage{Type: evPlayersUpdate, Players: room.game.Players()})
		room.broadcastLocked(SimpleEvent{Type: evQuestionComplete})
		room.broadcastLocked(GameStateMessage{Type: evGameState, GameState: room.game.Snapshot()})
		return
	}

	// Incorrect: promote the next queued buzzer with a fresh window, or
	// reopen buzzing if the queue drained.
	if next := room.game.NextToAnswer(); next != nil {
		room.broadcastLocked(NextPlayerMessage{
			Type:       evNextPlayerToAnswer,
			PlayerID:   next.PlayerID,
			PlayerName: next.PlayerName,
		})
		room.game.StartAnswerTimer()
		return
	}

	if room.game.CurrentQuestion() != nil {
		room.broadcastLocked(SimpleEvent{Type: evReopenBuzzing})
	}
}

func handleAdjustScore(registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if c.id != room.game.PresenterID() {
		return
	}

	if room.game.AdjustScore(msg.PlayerID, msg.Points) {
		room.broadcastLocked(ScoresUpdatedMessage{Type: evScoresUpdated, Scores: room.game.Scores()})
	}
}

func handleStartFinal(cfg *Config, registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if c.id != room.game.PresenterID() {
		return
	}

	state := room.game.StartFinalJeopardy()
	if state == nil {
		return
	}

	room.broadcastLocked(FinalStartedMessage{Type: evFinalStarted, State: *state})

	logf(cfg, "GAMES: Final round started in %s", room.code)
}

func handleFinalWager(registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.game.SubmitFinalWager(c.id, msg.Wager) {
		c.trySend(ErrorMessage{Type: evWagerError, Message: "Invalid wager amount"})
		return
	}

	c.trySend(WagerAcceptedMessage{Type: evWagerAccepted, Wager: msg.Wager})

	if room.game.AllWagersSubmitted() {
		room.broadcastLocked(SimpleEvent{Type: evAllWagersSubmitted})
	}
}

func handleFinalAnswer(registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.game.SubmitFinalAnswer(c.id, msg.Answer) {
		return
	}

	c.trySend(SimpleEvent{Type: evAnswerSubmitted})

	if room.game.AllAnswersSubmitted() {
		room.toPresenterLocked(ReviewFinalAnswersMessage{
			Type:    evReviewFinalAnswers,
			Answers: room.game.FinalAnswers(),
		})
	}
}

func handleGradeFinal(registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if c.id != room.game.PresenterID() {
		return
	}

	if !room.game.GradeFinalAnswer(msg.PlayerID, msg.Correct) {
		return
	}

	room.broadcastLocked(ScoresUpdatedMessage{Type: evScoresUpdated, Scores: room.game.Scores()})

	if room.game.AllAnswersGraded() {
		room.broadcastLocked(GameOverMessage{Type: evGameOver, Standings: room.game.Standings()})
	}
}

func handleResetGame(cfg *Config, registry *Registry, c *Client, msg ClientMessage) {
	room := registry.getRoom(msg.GameCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if c.id != room.game.PresenterID() {
		return
	}

	room.game.ResetGame()

	room.broadcastLocked(SimpleEvent{Type: evGameReset})
	room.broadcastLocked(GameStateMessage{Type: evGameState, GameState: room.game.Snapshot()})

	logf(cfg, "GAMES: Game %s reset", room.code)
}

// handleDisconnect runs when a connection drops. A presenter leaving
// only unbinds the presenter slot; a player leaving is removed outright,
// with no identity continuity on reconnect.
func handleDisconnect(cfg *Config, registry *Registry, c *Client) {
	if c.roomCode == "" {
		c.closed = true
		close(c.send)
		return
	}

	room := registry.getRoom(c.roomCode)
	if room == nil {
		return
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	room.detachLocked(c)

	if c.id == room.game.PresenterID() {
		room.game.PresenterDisconnected()
		logf(cfg, "GAMES: Presenter disconnected from %s", room.code)
		return
	}

	player := room.game.RemovePlayer(c.id)
	if player == nil {
		return
	}

	room.broadcastLocked(PlayerMessage{Type: evPlayerDisconnected, Player: *player})
	room.broadcastLocked(PlayersUpdateMessage{Type: evPlayersUpdate, Players: room.game.Players()})
	room.broadcastLocked(ScoresUpdatedMessage{Type: evScoresUpdated, Scores: room.game.Scores()})

	logf(cfg, "GAMES: Player %q left %s", player.Name, room.code)
}
