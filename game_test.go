package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testGame() *Game {
	return newGame("TEST01", 50, 10*time.Second)
}

func loadedGame(t *testing.T) *Game {
	t.Helper()

	game := testGame()
	game.LoadQuestions(DefaultQuestions())

	// Deterministic board: no daily doubles unless a test sets one.
	for i := range game.questions {
		game.questions[i].IsDaily = false
	}

	return game
}

func addPlayers(t *testing.T, game *Game, names ...string) []string {
	t.Helper()

	ids := make([]string, 0, len(names))
	for i, name := range names {
		id := string(rune('a'+i)) + "-conn"
		require.NotNil(t, game.AddPlayer(id, name))
		ids = append(ids, id)
	}

	return ids
}

func TestAddPlayerValidation(t *testing.T) {
	game := testGame()

	require.Nil(t, game.AddPlayer("c1", "   "))
	require.Nil(t, game.AddPlayer("c2", ""))

	player := game.AddPlayer("c3", "  Alice  ")
	require.NotNil(t, player)
	require.Equal(t, "Alice", player.Name)
	require.Equal(t, 0, player.Score)
}

func TestAddPlayerCapacity(t *testing.T) {
	game := newGame("TEST01", 2, 10*time.Second)

	require.NotNil(t, game.AddPlayer("c1", "Alice"))
	require.NotNil(t, game.AddPlayer("c2", "Bob"))
	require.Nil(t, game.AddPlayer("c3", "Carol"))
}

func TestLoadQuestions(t *testing.T) {
	game := testGame()
	require.Equal(t, stateWaiting, game.State())

	game.LoadQuestions(DefaultQuestions())

	require.Equal(t, stateReady, game.State())
	require.Equal(t, []string{"Science", "History", "Geography", "Technology", "Literature", "Pop Culture"}, game.Categories())
	require.Equal(t, 0, game.UsedCount())

	dailies := 0
	for _, q := range game.questions {
		if q.IsDaily {
			dailies++
		}
	}
	require.Equal(t, 2, dailies)
}

func TestLoadQuestionsDailyCountSmall(t *testing.T) {
	game := testGame()
	game.LoadQuestions(DefaultQuestions()[:9])

	dailies := 0
	for _, q := range game.questions {
		if q.IsDaily {
			dailies++
		}
	}
	require.Equal(t, 0, dailies)
}

func TestSelectQuestionMarksUsed(t *testing.T) {
	game := loadedGame(t)

	question := game.SelectQuestion("Science", 200)
	require.NotNil(t, question)
	require.Equal(t, "Science", question.Category)
	require.Equal(t, 200, question.Value)
	require.Equal(t, stateQuestionActive, game.State())

	// Second select of the same cell returns nothing and does not
	// double-mark usage.
	require.Nil(t, game.SelectQuestion("Science", 200))
	require.Equal(t, 1, game.UsedCount())
}

func TestSelectQuestionUnknown(t *testing.T) {
	game := loadedGame(t)

	require.Nil(t, game.SelectQuestion("Quantum Basket Weaving", 200))
	require.Nil(t, game.SelectQuestion("Science", 123))
	require.Equal(t, 0, game.UsedCount())
}

func TestSelectDailyDouble(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice")
	game.controlID = ids[0]

	for i := range game.questions {
		if game.questions[i].Category == "History" && game.questions[i].Value == 400 {
			game.questions[i].IsDaily = true
		}
	}

	question := game.SelectQuestion("History", 400)
	require.NotNil(t, question)
	require.True(t, question.RequiresWager)
	require.Equal(t, ids[0], question.ControlPlayerID)
	require.Equal(t, stateDailyDoubleWager, game.State())

	// Buzzing is not open during the wager phase.
	require.Equal(t, 0, game.RecordBuzz(ids[0]))
}

func TestDailyDoubleWagerRange(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice")
	game.controlID = ids[0]

	markDaily := func(category string, value int) {
		for i := range game.questions {
			if game.questions[i].Category == category && game.questions[i].Value == value {
				game.questions[i].IsDaily = true
			}
		}
	}

	// Score -50: the floor of 1000 still applies.
	markDaily("Science", 200)
	game.players[ids[0]].Score = -50
	require.NotNil(t, game.SelectQuestion("Science", 200))

	require.False(t, game.SubmitDailyDoubleWager(ids[0], -1))
	require.False(t, game.SubmitDailyDoubleWager(ids[0], 1001))
	require.True(t, game.SubmitDailyDoubleWager(ids[0], 1000))
	require.Equal(t, stateQuestionActive, game.State())

	game.ProcessAnswer(ids[0], true)

	// Score 3000: the cap tracks the score.
	markDaily("Science", 400)
	game.players[ids[0]].Score = 3000
	require.NotNil(t, game.SelectQuestion("Science", 400))

	require.False(t, game.SubmitDailyDoubleWager(ids[0], 3001))
	require.True(t, game.SubmitDailyDoubleWager(ids[0], 3000))
}

func TestDailyDoubleWagerWrongPlayer(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob")
	game.controlID = ids[0]

	for i := range game.questions {
		if game.questions[i].Category == "Science" && game.questions[i].Value == 200 {
			game.questions[i].IsDaily = true
		}
	}

	require.NotNil(t, game.SelectQuestion("Science", 200))
	require.False(t, game.SubmitDailyDoubleWager(ids[1], 500))
	require.True(t, game.SubmitDailyDoubleWager(ids[0], 500))
}

func TestDailyDoubleWagerOverridesValue(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice")
	game.controlID = ids[0]

	for i := range game.questions {
		if game.questions[i].Category == "Science" && game.questions[i].Value == 200 {
			game.questions[i].IsDaily = true
		}
	}

	require.NotNil(t, game.SelectQuestion("Science", 200))
	require.True(t, game.SubmitDailyDoubleWager(ids[0], 777))

	points := game.ProcessAnswer(ids[0], false)
	require.Equal(t, -777, points)
	require.Equal(t, -777, game.players[ids[0]].Score)
}

func TestRecordBuzzOrderAndDedupe(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob", "Carol")

	require.NotNil(t, game.SelectQuestion("Science", 200))

	require.Equal(t, 1, game.RecordBuzz(ids[0]))
	require.Equal(t, 2, game.RecordBuzz(ids[1]))
	require.Equal(t, 3, game.RecordBuzz(ids[2]))

	// Re-buzzing and unknown players are no-ops.
	require.Equal(t, 0, game.RecordBuzz(ids[1]))
	require.Equal(t, 0, game.RecordBuzz("nobody"))

	queue := game.BuzzQueue()
	require.Len(t, queue, 3)
	require.Equal(t, ids[0], queue[0].PlayerID)
	require.Equal(t, ids[1], queue[1].PlayerID)
	require.Equal(t, ids[2], queue[2].PlayerID)

	for i := 1; i < len(queue); i++ {
		require.False(t, queue[i].Timestamp.Before(queue[i-1].Timestamp))
	}
}

func TestRecordBuzzNoActiveQuestion(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice")

	require.Equal(t, 0, game.RecordBuzz(ids[0]))
}

func TestProcessAnswerCorrect(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob")

	require.NotNil(t, game.SelectQuestion("Science", 200))
	game.RecordBuzz(ids[0])
	game.RecordBuzz(ids[1])

	points := game.ProcessAnswer(ids[0], true)
	require.Equal(t, 200, points)
	require.Equal(t, 200, game.players[ids[0]].Score)

	require.Equal(t, ids[0], game.ControlPlayerID())
	require.Empty(t, game.BuzzQueue())
	require.Nil(t, game.CurrentQuestion())
	require.Equal(t, stateReady, game.State())
	require.Nil(t, game.timer)
}

func TestProcessAnswerIncorrectPromotes(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob")

	require.NotNil(t, game.SelectQuestion("Science", 200))
	game.RecordBuzz(ids[0])
	game.RecordBuzz(ids[1])

	points := game.ProcessAnswer(ids[0], false)
	require.Equal(t, -200, points)
	require.Equal(t, -200, game.players[ids[0]].Score)

	// The question stays active; the next buzzer holds answer rights.
	require.NotNil(t, game.CurrentQuestion())
	next := game.NextToAnswer()
	require.NotNil(t, next)
	require.Equal(t, ids[1], next.PlayerID)
	require.Equal(t, "", game.ControlPlayerID())
}

func TestProcessAnswerNoQuestion(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice")

	require.Equal(t, 0, game.ProcessAnswer(ids[0], true))
	require.Equal(t, 0, game.ProcessAnswer("nobody", true))
}

func TestAnswerTimeoutPromotesSecondPlayer(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob")

	require.NotNil(t, game.SelectQuestion("Science", 200))
	game.RecordBuzz(ids[0])
	game.RecordBuzz(ids[1])

	result, ok := game.AnswerTimeout(game.timerGen)
	require.True(t, ok)
	require.NotNil(t, result.Next)
	require.Equal(t, ids[1], result.Next.PlayerID)
	require.False(t, result.Reopened)

	// The forfeiting player keeps their score.
	require.Equal(t, 0, game.players[ids[0]].Score)
}

func TestAnswerTimeoutReopensBuzzing(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice")

	require.NotNil(t, game.SelectQuestion("Science", 200))
	game.RecordBuzz(ids[0])

	result, ok := game.AnswerTimeout(game.timerGen)
	require.True(t, ok)
	require.Nil(t, result.Next)
	require.True(t, result.Reopened)

	require.NotNil(t, game.CurrentQuestion())
	require.Nil(t, game.timer)

	// The forfeiter may buzz again once buzzing reopens.
	require.Equal(t, 1, game.RecordBuzz(ids[0]))
}

func TestAnswerTimeoutStaleGeneration(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob")

	require.NotNil(t, game.SelectQuestion("Science", 200))
	game.RecordBuzz(ids[0])
	game.RecordBuzz(ids[1])

	stale := game.timerGen

	// A manual grade lands before expiry; the stale callback must
	// discard itself.
	game.ProcessAnswer(ids[0], false)

	_, ok := game.AnswerTimeout(stale)
	require.False(t, ok)
	require.Len(t, game.BuzzQueue(), 1)
}

func TestFinalRoundEligibilityFrozen(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob", "Carol")

	game.players[ids[0]].Score = 100
	game.players[ids[1]].Score = 500
	game.players[ids[2]].Score = -200

	state := game.StartFinalJeopardy()
	require.NotNil(t, state)
	require.Equal(t, stateFinalJeopardy, game.State())
	require.Len(t, state.EligiblePlayers, 2)

	// A later score drop does not revoke eligibility.
	game.AdjustScore(ids[0], -300)
	require.True(t, game.SubmitFinalWager(ids[0], 0))

	// Ineligible players stay out even if their score later rises.
	game.AdjustScore(ids[2], 1000)
	require.False(t, game.SubmitFinalWager(ids[2], 100))

	// Starting again is a no-op.
	require.Nil(t, game.StartFinalJeopardy())
}

func TestFinalRoundWagerRange(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice")
	game.players[ids[0]].Score = 600

	require.NotNil(t, game.StartFinalJeopardy())

	require.False(t, game.SubmitFinalWager(ids[0], -1))
	require.False(t, game.SubmitFinalWager(ids[0], 601))
	require.True(t, game.SubmitFinalWager(ids[0], 600))
}

func TestFinalRoundFlow(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob")
	game.players[ids[0]].Score = 1000
	game.players[ids[1]].Score = 400

	require.NotNil(t, game.StartFinalJeopardy())

	// Answers require a recorded wager.
	require.False(t, game.SubmitFinalAnswer(ids[0], "What is Go?"))

	require.True(t, game.SubmitFinalWager(ids[0], 800))
	require.False(t, game.AllWagersSubmitted())
	require.True(t, game.SubmitFinalWager(ids[1], 400))
	require.True(t, game.AllWagersSubmitted())

	require.True(t, game.SubmitFinalAnswer(ids[0], "What is Go?"))
	require.False(t, game.AllAnswersSubmitted())
	require.True(t, game.SubmitFinalAnswer(ids[1], "What is Rust?"))
	require.True(t, game.AllAnswersSubmitted())

	answers := game.FinalAnswers()
	require.Len(t, answers, 2)

	require.True(t, game.GradeFinalAnswer(ids[0], true))
	require.False(t, game.AllAnswersGraded())
	require.Equal(t, 1800, game.players[ids[0]].Score)

	require.True(t, game.GradeFinalAnswer(ids[1], false))
	require.True(t, game.AllAnswersGraded())
	require.Equal(t, 0, game.players[ids[1]].Score)
	require.Equal(t, stateComplete, game.State())

	standings := game.Standings()
	require.NotNil(t, standings.Winner)
	require.Equal(t, ids[0], standings.Winner.PlayerID)
	require.Equal(t, 1800, standings.Winner.Score)
}

func TestFinalRoundDefaultQuestion(t *testing.T) {
	game := testGame()
	ids := addPlayers(t, game, "Alice")
	game.players[ids[0]].Score = 100

	state := game.StartFinalJeopardy()
	require.NotNil(t, state)
	require.Equal(t, finalCategory, state.Category)
}

func TestSnapshotIsolatedFromReload(t *testing.T) {
	game := loadedGame(t)

	snapshot := game.Snapshot()
	categories := game.Categories()

	// Reloading the board must not reach into state handed out earlier;
	// snapshots travel through send channels unlocked.
	game.LoadQuestions([]Question{
		{Category: "Opera", Value: 200, Prompt: "p", Answer: "a"},
	})

	require.Equal(t, "Science", snapshot.Categories[0])
	require.Equal(t, "Science", categories[0])
	require.Equal(t, []string{"Opera"}, game.Categories())
}

func TestResetGame(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob")

	require.NotNil(t, game.SelectQuestion("Science", 200))
	game.RecordBuzz(ids[0])
	game.ProcessAnswer(ids[0], true)
	require.Equal(t, 200, game.players[ids[0]].Score)

	game.ResetGame()

	require.Equal(t, stateReady, game.State())
	require.Equal(t, 0, game.UsedCount())
	require.Equal(t, "", game.ControlPlayerID())
	require.Nil(t, game.CurrentQuestion())
	require.Empty(t, game.BuzzQueue())
	require.Nil(t, game.timer)

	for _, id := range ids {
		require.Equal(t, 0, game.players[id].Score)
	}

	// The board itself survives a reset.
	require.Len(t, game.Categories(), 6)
	require.NotNil(t, game.SelectQuestion("Science", 200))
}

func TestResetGameWithoutQuestions(t *testing.T) {
	game := testGame()
	game.ResetGame()
	require.Equal(t, stateWaiting, game.State())
}

func TestScoresSortedDescending(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob", "Carol")

	game.players[ids[0]].Score = 100
	game.players[ids[1]].Score = 500
	game.players[ids[2]].Score = -200

	scores := game.Scores()
	require.Equal(t, ids[1], scores[0].PlayerID)
	require.Equal(t, ids[0], scores[1].PlayerID)
	require.Equal(t, ids[2], scores[2].PlayerID)
}

func TestPlayersControlFirst(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob")
	game.controlID = ids[1]

	players := game.Players()
	require.Equal(t, ids[1], players[0].ID)
	require.True(t, players[0].HasControl)
	require.False(t, players[1].HasControl)
}

func TestRemovePlayerDropsBuzzEntry(t *testing.T) {
	game := loadedGame(t)
	ids := addPlayers(t, game, "Alice", "Bob")

	require.NotNil(t, game.SelectQuestion("Science", 200))
	game.RecordBuzz(ids[0])
	game.RecordBuzz(ids[1])

	removed := game.RemovePlayer(ids[0])
	require.NotNil(t, removed)
	require.Equal(t, "Alice", removed.Name)

	queue := game.BuzzQueue()
	require.Len(t, queue, 1)
	require.Equal(t, ids[1], queue[0].PlayerID)

	require.Nil(t, game.RemovePlayer(ids[0]))
}
