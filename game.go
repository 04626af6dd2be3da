package main

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"
)

// Game states. "question-active" and "daily-double-wager" are tied to
// exactly one in-flight question.
const (
	stateWaiting          = "waiting"
	stateReady            = "ready"
	stateQuestionActive   = "question-active"
	stateDailyDoubleWager = "daily-double-wager"
	stateFinalJeopardy    = "final-jeopardy"
	stateComplete         = "complete"
)

const finalCategory = "Final Jeopardy"

// Player holds the data we store server-side. Players are keyed by their
// connection id; a reconnect is a brand-new player.
type Player struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Score      int       `json:"score"`
	JoinedAt   time.Time `json:"joinedAt"`
	HasControl bool      `json:"hasControl"`
}

// BuzzEntry records one buzz. A player has at most one live entry and the
// queue is kept in ascending arrival order.
type BuzzEntry struct {
	PlayerID   string    `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Timestamp  time.Time `json:"timestamp"`
}

// ScoreEntry is one row of the scoreboard, sorted highest first.
type ScoreEntry struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

// SelectedQuestion is what a successful board pick returns.
type SelectedQuestion struct {
	Question
	QuestionKey     string `json:"questionKey"`
	RequiresWager   bool   `json:"requiresWager,omitempty"`
	ControlPlayerID string `json:"controlPlayerId,omitempty"`
}

// DailyDoubleState describes the pending wager to the presenter.
type DailyDoubleState struct {
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	CurrentScore int    `json:"currentScore"`
	MaxWager     int    `json:"maxWager"`
}

// FinalRoundState is broadcast when the final round begins. The eligible
// player set is frozen at that moment and never recomputed.
type FinalRoundState struct {
	Active          bool         `json:"active"`
	Category        string       `json:"category"`
	EligiblePlayers []ScoreEntry `json:"eligiblePlayers"`
}

// FinalAnswer pairs a player's submitted answer with their wager, for
// presenter review.
type FinalAnswer struct {
	PlayerID     string `json:"playerId"`
	PlayerName   string `json:"playerName"`
	Answer       string `json:"answer"`
	Wager        int    `json:"wager"`
	CurrentScore int    `json:"currentScore"`
}

// FinalStandings is the end-of-game result, winner first.
type FinalStandings struct {
	Scores []ScoreEntry `json:"scores"`
	Winner *ScoreEntry  `json:"winner"`
}

// TimeoutResult describes what the engine did when an answer window
// expired: either it promoted the next queued player, or the queue
// drained and buzzing reopened.
type TimeoutResult struct {
	Next     *BuzzEntry
	Reopened bool
}

// GameSnapshot is the full board state sent on connect and after every
// state transition.
type GameSnapshot struct {
	State           string            `json:"state"`
	Categories      []string          `json:"categories"`
	UsedQuestions   []string          `json:"usedQuestions"`
	CurrentQuestion *Question         `json:"currentQuestion"`
	Scores          []ScoreEntry      `json:"scores"`
	BuzzQueue       []BuzzEntry       `json:"buzzQueue"`
	PlayerCount     int               `json:"playerCount"`
	FinalRound      bool              `json:"finalJeopardy"`
	DailyDouble     *DailyDoubleState `json:"dailyDoubleWager"`
}

type dailyDoubleWager struct {
	active      bool
	playerID    string
	wager       int
	wagerPlaced bool
	questionKey string
}

type finalRound struct {
	active   bool
	question *Question
	eligible map[string]bool
	wagers   map[string]int
	answers  map[string]string
	grades   map[string]bool
}

// Game is the per-room session engine. It owns the board, the buzz
// queue, the answer-window timer, both wager sub-states, and the score
// ledger. It knows nothing about the transport; the room layer installs
// onTimeout and serializes all calls.
type Game struct {
	code         string
	maxPlayers   int
	answerWindow time.Duration

	presenterID string
	players     map[string]*Player

	questions     []Question
	categories    []string
	usedQuestions map[string]bool
	current       *Question

	state     string
	buzzQueue []BuzzEntry
	controlID string
	daily     dailyDoubleWager
	final     finalRound

	timer    *time.Timer
	timerGen uint64

	// onTimeout is invoked from the timer goroutine with the generation
	// that armed it. The room layer locks, then calls AnswerTimeout with
	// the same generation so stale callbacks discard themselves.
	onTimeout func(gen uint64)
}

func newGame(code string, maxPlayers int, answerWindow time.Duration) *Game {
	return &Game{
		code:          code,
		maxPlayers:    maxPlayers,
		answerWindow:  answerWindow,
		players:       make(map[string]*Player),
		usedQuestions: make(map[string]bool),
		state:         stateWaiting,
		final: finalRound{
			eligible: make(map[string]bool),
			wagers:   make(map[string]int),
			answers:  make(map[string]string),
			grades:   make(map[string]bool),
		},
	}
}

func questionKey(category string, value int) string {
	return fmt.Sprintf("%s-%d", category, value)
}

func (g *Game) SetPresenter(connID string) {
	g.presenterID = connID
}

func (g *Game) PresenterID() string {
	return g.presenterID
}

func (g *Game) PresenterDisconnected() {
	g.presenterID = ""
}

// AddPlayer registers a new player. Returns nil when the room is full or
// the name is empty after trimming.
func (g *Game) AddPlayer(connID, name string) *Player {
	if len(g.players) >= g.maxPlayers {
		return nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	player := &Player{
		ID:       connID,
		Name:     name,
		JoinedAt: time.Now(),
	}
	g.players[connID] = player

	return player
}

// RemovePlayer drops a player and any live buzz entry they hold.
func (g *Game) RemovePlayer(connID string) *Player {
	player, ok := g.players[connID]
	if !ok {
		return nil
	}

	delete(g.players, connID)

	queue := g.buzzQueue[:0]
	for _, entry := range g.buzzQueue {
		if entry.PlayerID != connID {
			queue = append(queue, entry)
		}
	}
	g.buzzQueue = queue

	return player
}

func (g *Game) PlayerCount() int {
	return len(g.players)
}

// Players returns the roster with the control holder first.
func (g *Game) Players() []Player {
	players := g.sortedPlayers()

	list := make([]Player, 0, len(players))
	for _, p := range players {
		view := *p
		view.HasControl = p.ID == g.controlID
		list = append(list, view)
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].HasControl && !list[j].HasControl
	})

	return list
}

// sortedPlayers returns players in join order, so downstream sorts are
// deterministic regardless of map iteration order.
func (g *Game) sortedPlayers() []*Player {
	players := make([]*Player, 0, len(g.players))
	for _, p := range g.players {
		players = append(players, p)
	}

	sort.SliceStable(players, func(i, j int) bool {
		if players[i].JoinedAt.Equal(players[j].JoinedAt) {
			return players[i].ID < players[j].ID
		}
		return players[i].JoinedAt.Before(players[j].JoinedAt)
	})

	return players
}

// Scores returns the scoreboard sorted by score descending. Ties keep
// join order.
func (g *Game) Scores() []ScoreEntry {
	players := g.sortedPlayers()

	scores := make([]ScoreEntry, 0, len(players))
	for _, p := range players {
		scores = append(scores, ScoreEntry{
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Score:      p.Score,
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Score > scores[j].Score
	})

	return scores
}

// AdjustScore applies a manual delta. Unknown players are a no-op.
func (g *Game) AdjustScore(connID string, delta int) bool {
	player, ok := g.players[connID]
	if !ok {
		return false
	}
	player.Score += delta
	return true
}

// LoadQuestions replaces the board with a new question set. The category
// list is the first six distinct categories encountered, used-question
// tracking is cleared, and min(2, count/10) questions are re-rolled as
// daily doubles. No state precondition: a mid-game load is a full
// replace.
func (g *Game) LoadQuestions(questions []Question) {
	g.questions = make([]Question, len(questions))
	copy(g.questions, questions)

	g.categories = nil
	seen := make(map[string]bool)
	for _, q := range g.questions {
		if !seen[q.Category] && len(g.categories) < 6 {
			seen[q.Category] = true
			g.categories = append(g.categories, q.Category)
		}
	}

	for i := range g.questions {
		g.questions[i].IsDaily = false
	}

	dailyCount := min(2, len(g.questions)/10)
	indices := rand.Perm(len(g.questions))
	for i := 0; i < dailyCount; i++ {
		g.questions[indices[i]].IsDaily = true
	}

	clear(g.usedQuestions)
	g.state = stateReady
}

// Categories returns a copy of the board's category list. Snapshots
// escape the room lock, so handing out the live slice would race a
// later LoadQuestions.
func (g *Game) Categories() []string {
	categories := make([]string, len(g.categories))
	copy(categories, g.categories)
	return categories
}

func (g *Game) QuestionCount() int {
	return len(g.questions)
}

func (g *Game) UsedCount() int {
	return len(g.usedQuestions)
}

func (g *Game) CurrentQuestion() *Question {
	return g.current
}

func (g *Game) State() string {
	return g.state
}

func (g *Game) ControlPlayerID() string {
	return g.controlID
}

// SelectQuestion marks a board cell used and puts its question in play.
// Returns nil without side effects when the cell was already used or no
// question matches. A daily double transitions to the wager phase with
// the control holder as the sole eligible wagerer; otherwise buzzing
// opens immediately. No timer starts here.
func (g *Game) SelectQuestion(category string, value int) *SelectedQuestion {
	key := questionKey(category, value)

	if g.usedQuestions[key] {
		return nil
	}

	for i := range g.questions {
		q := &g.questions[i]
		if q.Category != category || q.Value != value {
			continue
		}

		g.current = q
		g.usedQuestions[key] = true
		g.buzzQueue = nil
		g.cancelTimer()

		if q.IsDaily {
			g.state = stateDailyDoubleWager
			g.daily = dailyDoubleWager{
				active:      true,
				playerID:    g.controlID,
				questionKey: key,
			}
			return &SelectedQuestion{
				Question:        *q,
				QuestionKey:     key,
				RequiresWager:   true,
				ControlPlayerID: g.controlID,
			}
		}

		g.state = stateQuestionActive
		return &SelectedQuestion{
			Question:    *q,
			QuestionKey: key,
		}
	}

	return nil
}

// SubmitDailyDoubleWager accepts a wager from the sole eligible player.
// The valid range is [0, max(score, 1000)]: a player may always risk up
// to 1000 even with a low or negative score. Acceptance unlocks the
// question and starts the answer window for the wagering player.
func (g *Game) SubmitDailyDoubleWager(connID string, wager int) bool {
	if !g.daily.active || connID != g.daily.playerID {
		return false
	}

	if wager < 0 || wager > g.maxDailyWager(connID) {
		return false
	}

	g.daily.wager = wager
	g.daily.wagerPlaced = true
	g.state = stateQuestionActive
	g.StartAnswerTimer()

	return true
}

func (g *Game) maxDailyWager(connID string) int {
	score := 0
	if player, ok := g.players[connID]; ok {
		score = player.Score
	}
	return max(score, 1000)
}

// DailyDoubleState returns the pending wager view, or nil when no wager
// phase is active.
func (g *Game) DailyDoubleState() *DailyDoubleState {
	if !g.daily.active {
		return nil
	}

	name := ""
	score := 0
	if player, ok := g.players[g.daily.playerID]; ok {
		name = player.Name
		score = player.Score
	}

	return &DailyDoubleState{
		PlayerID:     g.daily.playerID,
		PlayerName:   name,
		CurrentScore: score,
		MaxWager:     max(score, 1000),
	}
}

// RecordBuzz appends a timestamped entry for the player and returns its
// 1-based queue position. Returns 0 when there is no active question,
// the player is unknown, or the player already buzzed. The answer window
// is armed only by the first buzz.
func (g *Game) RecordBuzz(connID string) int {
	if g.current == nil || g.state != stateQuestionActive {
		return 0
	}

	player, ok := g.players[connID]
	if !ok {
		return 0
	}

	// Daily doubles skip the buzz queue entirely.
	if g.daily.active {
		return 0
	}

	for _, entry := range g.buzzQueue {
		if entry.PlayerID == connID {
			return 0
		}
	}

	g.buzzQueue = append(g.buzzQueue, BuzzEntry{
		PlayerID:   connID,
		PlayerName: player.Name,
		Timestamp:  time.Now(),
	})

	sort.SliceStable(g.buzzQueue, func(i, j int) bool {
		return g.buzzQueue[i].Timestamp.Before(g.buzzQueue[j].Timestamp)
	})

	if len(g.buzzQueue) == 1 {
		g.StartAnswerTimer()
	}

	for i, entry := range g.buzzQueue {
		if entry.PlayerID == connID {
			return i + 1
		}
	}

	return 0
}

// BuzzQueue returns a copy of the live queue, earliest buzz first.
func (g *Game) BuzzQueue() []BuzzEntry {
	queue := make([]BuzzEntry, len(g.buzzQueue))
	copy(queue, g.buzzQueue)
	return queue
}

// NextToAnswer peeks at the queue front: the player currently holding
// answer rights.
func (g *Game) NextToAnswer() *BuzzEntry {
	if len(g.buzzQueue) == 0 {
		return nil
	}
	entry := g.buzzQueue[0]
	return &entry
}

// ProcessAnswer grades the active question for one player and returns
// the applied score delta. A pending daily-double wager overrides the
// question's face value. A correct answer hands the player board
// control, clears the queue, and returns the board to ready; an
// incorrect answer only removes the player from the queue, leaving the
// question active for the caller to promote the next buzzer or reopen
// buzzing.
func (g *Game) ProcessAnswer(connID string, correct bool) int {
	if g.current == nil {
		return 0
	}

	player, ok := g.players[connID]
	if !ok {
		return 0
	}

	g.cancelTimer()

	points := g.current.Value
	if g.daily.active && g.daily.wagerPlaced {
		points = g.daily.wager
	}
	if !correct {
		points = -points
	}

	player.Score += points

	g.daily = dailyDoubleWager{}

	if correct {
		g.controlID = connID
		g.ClearBuzzQueue()
		g.current = nil
		g.state = stateReady
	} else {
		queue := g.buzzQueue[:0]
		for _, entry := range g.buzzQueue {
			if entry.PlayerID != connID {
				queue = append(queue, entry)
			}
		}
		g.buzzQueue = queue
	}

	return points
}

// StartAnswerTimer arms (or re-arms) the answer window. Any previously
// scheduled expiry is cancelled first, so two timers are never live for
// the same room.
func (g *Game) StartAnswerTimer() {
	g.cancelTimer()

	g.timerGen++
	gen := g.timerGen

	if g.onTimeout == nil {
		return
	}

	g.timer = time.AfterFunc(g.answerWindow, func() {
		g.onTimeout(gen)
	})
}

// cancelTimer stops any scheduled expiry and bumps the generation so an
// already-fired callback racing the cancel discards itself.
func (g *Game) cancelTimer() {
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
	g.timerGen++
}

// AnswerTimeout handles an expired answer window. The front queue entry
// is discarded (that player forfeits this cycle); the next queued player,
// if any, is promoted with a fresh window, otherwise buzzing reopens and
// the question stays active with no timer running. Returns false for
// stale generations or when no question is active.
func (g *Game) AnswerTimeout(gen uint64) (TimeoutResult, bool) {
	if gen != g.timerGen || g.current == nil {
		return TimeoutResult{}, false
	}

	g.timer = nil

	if len(g.buzzQueue) > 0 {
		g.buzzQueue = g.buzzQueue[1:]
	}

	if len(g.buzzQueue) > 0 {
		next := g.buzzQueue[0]
		g.StartAnswerTimer()
		return TimeoutResult{Next: &next}, true
	}

	return TimeoutResult{Reopened: true}, true
}

// ClearBuzzQueue empties the queue and cancels any running window.
func (g *Game) ClearBuzzQueue() {
	g.buzzQueue = nil
	g.cancelTimer()
}

// StartFinalJeopardy switches to the final round. The question comes
// from the "Final Jeopardy" category when the set has one, falling back
// to a built-in default. Eligibility is every player with a strictly
// positive score right now; the set is frozen for the round.
func (g *Game) StartFinalJeopardy() *FinalRoundState {
	if g.final.active {
		return nil
	}

	g.cancelTimer()
	g.state = stateFinalJeopardy
	g.final.active = true

	g.final.question = &Question{
		Category: finalCategory,
		Prompt:   "This programming language was created by Brendan Eich in just 10 days in 1995",
		Answer:   "What is JavaScript?",
	}
	for i := range g.questions {
		if g.questions[i].Category == finalCategory {
			g.final.question = &g.questions[i]
			break
		}
	}

	clear(g.final.eligible)
	clear(g.final.wagers)
	clear(g.final.answers)
	clear(g.final.grades)

	for _, p := range g.players {
		if p.Score > 0 {
			g.final.eligible[p.ID] = true
		}
	}

	return g.FinalRoundState()
}

// FinalRoundState reports the round and its frozen eligible players.
func (g *Game) FinalRoundState() *FinalRoundState {
	if !g.final.active {
		return nil
	}

	eligible := make([]ScoreEntry, 0, len(g.final.eligible))
	for _, entry := range g.Scores() {
		if g.final.eligible[entry.PlayerID] {
			eligible = append(eligible, entry)
		}
	}

	return &FinalRoundState{
		Active:          true,
		Category:        g.final.question.Category,
		EligiblePlayers: eligible,
	}
}

// SubmitFinalWager accepts a wager in [0, score] from a frozen-eligible
// player.
func (g *Game) SubmitFinalWager(connID string, wager int) bool {
	if !g.final.active || !g.final.eligible[connID] {
		return false
	}

	player, ok := g.players[connID]
	if !ok {
		return false
	}

	if wager < 0 || wager > player.Score {
		return false
	}

	g.final.wagers[connID] = wager
	return true
}

// AllWagersSubmitted reports whether every frozen-eligible player has
// wagered.
func (g *Game) AllWagersSubmitted() bool {
	if !g.final.active {
		return false
	}
	for connID := range g.final.eligible {
		if _, ok := g.final.wagers[connID]; !ok {
			return false
		}
	}
	return true
}

// SubmitFinalAnswer records a free-text answer from a player who already
// wagered.
func (g *Game) SubmitFinalAnswer(connID, answer string) bool {
	if !g.final.active {
		return false
	}
	if _, ok := g.final.wagers[connID]; !ok {
		return false
	}

	g.final.answers[connID] = answer
	return true
}

// AllAnswersSubmitted reports whether every wagering player has answered.
func (g *Game) AllAnswersSubmitted() bool {
	if !g.final.active || len(g.final.wagers) == 0 {
		return false
	}
	for connID := range g.final.wagers {
		if _, ok := g.final.answers[connID]; !ok {
			return false
		}
	}
	return true
}

// FinalAnswers lists submitted answers with wagers, for presenter review.
func (g *Game) FinalAnswers() []FinalAnswer {
	answers := make([]FinalAnswer, 0, len(g.final.answers))
	for _, p := range g.sortedPlayers() {
		answer, ok := g.final.answers[p.ID]
		if !ok {
			continue
		}
		answers = append(answers, FinalAnswer{
			PlayerID:     p.ID,
			PlayerName:   p.Name,
			Answer:       answer,
			Wager:        g.final.wagers[p.ID],
			CurrentScore: p.Score,
		})
	}
	return answers
}

// GradeFinalAnswer applies ±wager to the player's score immediately.
// Once every wagering player is graded the game is complete.
func (g *Game) GradeFinalAnswer(connID string, correct bool) bool {
	if !g.final.active {
		return false
	}

	wager, ok := g.final.wagers[connID]
	if !ok {
		return false
	}

	g.final.grades[connID] = correct

	if player, exists := g.players[connID]; exists {
		if correct {
			player.Score += wager
		} else {
			player.Score -= wager
		}
	}

	if g.AllAnswersGraded() {
		g.state = stateComplete
	}

	return true
}

// AllAnswersGraded reports whether every wagering player has been graded.
func (g *Game) AllAnswersGraded() bool {
	if !g.final.active || len(g.final.wagers) == 0 {
		return false
	}
	for connID := range g.final.wagers {
		if _, ok := g.final.grades[connID]; !ok {
			return false
		}
	}
	return true
}

// Standings computes the final results, winner first. Ties are not
// specially broken; the first entry in sort order wins.
func (g *Game) Standings() FinalStandings {
	scores := g.Scores()

	standings := FinalStandings{Scores: scores}
	if len(scores) > 0 {
		winner := scores[0]
		standings.Winner = &winner
	}

	return standings
}

// ResetGame zeroes every score and clears all per-game state, keeping
// the loaded question set and roster. Returns to ready when questions
// are loaded, waiting otherwise.
func (g *Game) ResetGame() {
	g.ClearBuzzQueue()

	g.current = nil
	g.controlID = ""
	g.daily = dailyDoubleWager{}
	clear(g.usedQuestions)

	g.final = finalRound{
		eligible: make(map[string]bool),
		wagers:   make(map[string]int),
		answers:  make(map[string]string),
		grades:   make(map[string]bool),
	}

	for _, p := range g.players {
		p.Score = 0
	}

	if len(g.questions) > 0 {
		g.state = stateReady
	} else {
		g.state = stateWaiting
	}
}

// Snapshot captures the full board state for clients.
func (g *Game) Snapshot() GameSnapshot {
	used := make([]string, 0, len(g.usedQuestions))
	for key := range g.usedQuestions {
		used = append(used, key)
	}
	sort.Strings(used)

	return GameSnapshot{
		State:           g.state,
		Categories:      g.Categories(),
		UsedQuestions:   used,
		CurrentQuestion: g.current,
		Scores:          g.Scores(),
		BuzzQueue:       g.BuzzQueue(),
		PlayerCount:     len(g.players),
		FinalRound:      g.final.active,
		DailyDouble:     g.DailyDoubleState(),
	}
}
