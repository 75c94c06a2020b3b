package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mcoot/quizmatch/internal/model"
	"github.com/mcoot/quizmatch/internal/services/timer"
)

// Handle applies one inbound command. It must run on the engine loop.
// Failures are logged; only team commands answer the sender with an error.
func (h *Handler) Handle(in Inbound) {
	var err error

	switch cmd := in.Command.(type) {
	case *JoinMatch:
		err = h.joinMatch(in.ConnID, cmd)
	case *JoinMatchObserver:
		err = h.joinMatchObserver(in.ConnID, cmd)
	case *SendMessage:
		h.sendMessage(in.ConnID, cmd)
	case *SwitchQuestion:
		err = h.switchQuestion(cmd)
	case *SendChartData:
		h.toRoom(cmd.Code(), model.EventUpdateChartDataList, cmd.QuestionChartData)
	case *PanicModeActivated:
		err = h.flagEvent(cmd.Code(), h.matches.ActivatePanicMode, model.EventPanicModeActivated)
	case *BeginQrlEvaluation:
		err = h.flagEvent(cmd.Code(), h.matches.BeginQrlEvaluation, model.EventQrlEvaluationBegun)
	case *FinishQrlEvaluation:
		err = h.flagEvent(cmd.Code(), h.matches.FinishQrlEvaluation, model.EventQrlEvaluationFinished)
	case *UpdateAnswer:
		err = h.updateAnswer(cmd)
	case *SetFinalAnswer:
		err = h.setFinalAnswer(cmd)
	case *StartTimer:
		err = h.startTimer(cmd)
	case *HistogramTime:
		err = h.histogramTime(in.ConnID, cmd)
	case *StopTimer:
		h.stopTimer(in.ConnID, cmd)
	case *CancelGame:
		h.cancelGame(cmd)
	case *FinishMatch:
		h.finishMatch(cmd)
	case *BeginMatch:
		err = h.beginMatch(in.ConnID, cmd)
	case *RemovePlayer:
		err = h.removePlayer(in.ConnID, cmd)
	case *UpdateScore:
		err = h.updateScore(cmd)
	case *PlayerLeftAfterMatchBegun:
		err = h.playerLeft(in.ConnID, cmd)
	case *ChangeChatAccessibility:
		err = h.changeChatAccess(cmd)
	case *UpdateMoney:
		h.updateMoney(cmd)
	case *CreateTeam:
		h.teamEvent(in.ConnID, &cmd.TeamRequest, h.matches.CreateTeam, model.EventTeamCreated, "Failed to create team")
	case *JoinTeam:
		h.teamEvent(in.ConnID, &cmd.TeamRequest, h.matches.JoinTeam, model.EventTeamJoined, "Failed to join team")
	case *QuitTeam:
		h.teamEvent(in.ConnID, &cmd.TeamRequest, h.matches.QuitTeam, model.EventTeamQuit, "Failed to quit team")
	case *RemoveObserver:
		err = h.removeObserver(in.ConnID, cmd)
	case *GameEvaluation:
		h.gameEvaluation(cmd)
	default:
		err = model.ErrUnknownEvent
	}

	if err != nil {
		h.logger.Warn("session command failed",
			slog.String("event", string(in.Event)),
			slog.String("access_code", string(in.Command.Code())),
			slog.String("conn_id", in.ConnID),
			slog.String("error", err.Error()))
	}
}

// Room membership

func (h *Handler) joinMatch(connID string, cmd *JoinMatch) error {
	code := cmd.RoomID
	name := strings.TrimSpace(cmd.Name)

	m, err := h.registry.Get(code)
	if err != nil {
		return err
	}
	h.rooms.Join(connID, code, name)

	// The manager and testers share the room but are not players
	if m.IsReservedName(name) {
		return nil
	}

	m, err = h.matches.AddPlayer(code, name)
	if err != nil {
		return err
	}
	h.toRoom(code, model.EventNewPlayer, model.NewRosterPayload(m))
	h.toAll(model.EventMatchListUpdated, nil)
	return nil
}

func (h *Handler) joinMatchObserver(connID string, cmd *JoinMatchObserver) error {
	code := cmd.AccessCode
	if !h.registry.Exists(code) {
		return model.ErrMatchNotFound
	}
	name := strings.TrimSpace(cmd.Name)
	h.rooms.Join(connID, code, name)

	m, err := h.matches.AddObserver(code, name)
	if errors.Is(err, model.ErrObserverIsManager) {
		// The manager reconnecting from an observer view keeps their seat
		h.logger.Info("observer redirected to manager view",
			slog.String("access_code", string(code)),
			slog.String("conn_id", connID))
		return nil
	}
	if err != nil {
		return err
	}

	h.toRoom(code, model.EventJoinedMatchObserver, model.ObserverJoinedPayload{Match: m, AddedObserverName: name})
	h.toAll(model.EventMatchListUpdated, nil)
	return nil
}

func (h *Handler) removePlayer(connID string, cmd *RemovePlayer) error {
	code := cmd.RoomID
	m, err := h.matches.RemovePlayer(code, cmd.Name, cmd.HasPlayerLeft)
	if err != nil {
		return err
	}
	h.toRoom(code, model.EventPlayerRemoved, model.NewRosterPayload(m))
	h.toAll(model.EventMatchListUpdated, nil)
	if cmd.HasPlayerLeft {
		h.rooms.Leave(connID, code)
	}
	return nil
}

func (h *Handler) removeObserver(connID string, cmd *RemoveObserver) error {
	observers, err := h.matches.RemoveObserver(cmd.AccessCode, cmd.ObserverName)
	if err != nil {
		return err
	}
	h.toRoom(cmd.AccessCode, model.EventObserverRemoved, observers)
	h.rooms.Leave(connID, cmd.AccessCode)
	return nil
}

// Chat

func (h *Handler) sendMessage(connID string, cmd *SendMessage) {
	if !h.rooms.InRoom(connID, cmd.MatchAccessCode) {
		h.logger.Debug("chat message from outside the room ignored",
			slog.String("access_code", string(cmd.MatchAccessCode)),
			slog.String("conn_id", connID))
		return
	}
	h.toRoom(cmd.MatchAccessCode, model.EventChatMessage, cmd.Message)
}

func (h *Handler) changeChatAccess(cmd *ChangeChatAccessibility) error {
	players, err := h.matches.UpdateChatAccess(cmd.MatchAccessCode, cmd.Players)
	if err != nil {
		return err
	}
	h.toRoom(cmd.MatchAccessCode, model.EventChatAccessibilityChanged, model.ChatAccessPayload{
		MatchAccessCode: cmd.MatchAccessCode,
		Players:         players,
	})
	return nil
}

// Match phases

func (h *Handler) beginMatch(connID string, cmd *BeginMatch) error {
	m, err := h.matches.Begin(cmd.ID, h.rooms.NameOf(connID))
	if err != nil {
		return err
	}
	h.toRoom(cmd.ID, model.EventJoinBegunMatch, m)
	h.toAll(model.EventMatchListUpdated, nil)
	return nil
}

func (h *Handler) switchQuestion(cmd *SwitchQuestion) error {
	index := *cmd.CurrentQuestionIndex
	if err := h.matches.SwitchQuestion(cmd.AccessCode, index); err != nil {
		return err
	}
	h.toRoom(cmd.AccessCode, model.EventNextQuestion, model.NextQuestionPayload{CurrentQuestionIndex: index})
	return nil
}

// flagEvent applies a flag transition and announces it with an empty payload
func (h *Handler) flagEvent(code model.AccessCode, apply func(model.AccessCode) error, event model.EventType) error {
	if err := apply(code); err != nil {
		return err
	}
	h.toRoom(code, event, model.Empty{})
	return nil
}

func (h *Handler) cancelGame(cmd *CancelGame) {
	code := cmd.ID
	if err := h.matches.Cancel(code); err != nil && !errors.Is(err, model.ErrMatchNotFound) {
		h.logger.Warn("cancelling match in unexpected state",
			slog.String("access_code", string(code)),
			slog.String("error", err.Error()))
	}
	h.teardownRoom(code)
	if _, err := h.registry.Delete(code); err == nil {
		h.logger.Info("match cancelled", slog.String("access_code", string(code)))
	}

	h.toRoom(code, model.EventGameCanceled, nil)
	h.rooms.Evict(code)
	h.toAll(model.EventMatchListUpdated, nil)
}

// finishMatch ends play and releases the room. The match stays in the
// registry until it is deleted and finalized.
func (h *Handler) finishMatch(cmd *FinishMatch) {
	code := cmd.ID
	if err := h.matches.Finish(code); err != nil {
		h.logger.Warn("finishing match in unexpected state",
			slog.String("access_code", string(code)),
			slog.String("error", err.Error()))
	}
	h.timers.StopRoom(code)

	h.toRoom(code, model.EventMatchFinished, model.Empty{})
	h.rooms.Evict(code)
}

// Answers and scores

func (h *Handler) updateAnswer(cmd *UpdateAnswer) error {
	answers, err := h.matches.UpdatePlayerAnswers(cmd.MatchAccessCode, cmd.PlayerAnswers)
	if err != nil {
		return err
	}
	h.toRoom(cmd.MatchAccessCode, model.EventAnswerUpdated, answers)
	return nil
}

func (h *Handler) setFinalAnswer(cmd *SetFinalAnswer) error {
	code := cmd.MatchAccessCode
	res, err := h.matches.SetFinalAnswer(code, cmd.PlayerAnswers)
	if err != nil {
		return err
	}
	h.toRoom(code, model.EventFinalAnswerSet, res.Answer)
	if res.AllResponded {
		h.announceAllResponded(code, cmd.PlayerAnswers.QuestionID)
	}
	return nil
}

// announceAllResponded broadcasts that the question is complete, at most once
// per question, and ends its countdown
func (h *Handler) announceAllResponded(code model.AccessCode, questionID string) {
	if last, ok := h.announced[code]; ok && last == questionID {
		return
	}
	h.announced[code] = questionID

	h.timers.Stop(timer.RoomKey(code))
	if err := h.matches.SetTimer(code, 0); err != nil {
		h.logger.Warn("failed to zero timer", slog.String("access_code", string(code)), slog.String("error", err.Error()))
	}
	h.toRoom(code, model.EventAllPlayersResponded, model.Empty{})

	h.logger.Info("all players responded",
		slog.String("access_code", string(code)),
		slog.String("question_id", questionID))
}

func (h *Handler) updateScore(cmd *UpdateScore) error {
	res, err := h.matches.UpdateScore(cmd.MatchAccessCode, cmd.Player, cmd.QuestionID)
	if err != nil {
		return err
	}
	h.toRoom(cmd.MatchAccessCode, model.EventUpdatedScore, model.ScorePayload{Teams: res.Teams, Player: &res.Player})
	return nil
}

// playerLeft disables a player who left a running match and records their
// stats in the background
func (h *Handler) playerLeft(connID string, cmd *PlayerLeftAfterMatchBegun) error {
	code := cmd.MatchAccessCode
	res, err := h.matches.DisablePlayer(code, cmd.Player.Name, cmd.QuestionID)
	if err != nil {
		return err
	}

	h.toRoom(code, model.EventPlayerDisabled, model.PlayerDisabledPayload{Name: res.Player.Name, Players: &res.Player})
	h.toRoom(code, model.EventAnswerUpdated, res.Answers)
	if res.AllResponded && !cmd.HasQrlEvaluationBegun {
		h.announceAllResponded(code, cmd.QuestionID)
	}
	h.rooms.Leave(connID, code)

	snapshot, name, now := res.Match, res.Player.Name, h.clock.Now()
	h.goBackground("departure", func(ctx context.Context) {
		if err := h.finalizer.RecordDeparture(ctx, snapshot, name, now); err != nil {
			h.logger.Error("failed to record departed player",
				slog.String("access_code", string(code)),
				slog.String("player", name),
				slog.String("error", err.Error()))
		}
	})
	return nil
}

// Timers

func (h *Handler) startTimer(cmd *StartTimer) error {
	code := cmd.RoomID
	if err := h.matches.SetTimer(code, cmd.Timer); err != nil {
		return err
	}
	h.timers.StartCountdown(timer.RoomKey(code), cmd.Timer, time.Duration(cmd.TimeInterval)*time.Millisecond)
	return nil
}

func (h *Handler) histogramTime(connID string, cmd *HistogramTime) error {
	code := cmd.RoomID
	if !h.registry.Exists(code) {
		return model.ErrMatchNotFound
	}
	key := timer.HistogramKey(code, connID)
	h.histograms[key] = histogramTarget{code: code, connID: connID}
	h.timers.StartElapsed(key, time.Duration(cmd.TimeInterval)*time.Millisecond)
	return nil
}

func (h *Handler) stopTimer(connID string, cmd *StopTimer) {
	if cmd.IsHistogramTimer {
		key := timer.HistogramKey(cmd.RoomID, connID)
		h.timers.Stop(key)
		delete(h.histograms, key)
		return
	}
	h.timers.Stop(timer.RoomKey(cmd.RoomID))
}

// Teams

// teamEvent runs a team operation. The team list goes to the room; a failure
// is reported to the sender only, under the same event name.
func (h *Handler) teamEvent(
	connID string,
	req *TeamRequest,
	apply func(code model.AccessCode, teamName, playerName string) ([]model.Team, error),
	event model.EventType,
	failure string,
) {
	teams, err := apply(req.AccessCode, req.TeamName, req.PlayerName)
	if err != nil {
		h.logger.Warn("team command failed",
			slog.String("event", string(event)),
			slog.String("access_code", string(req.AccessCode)),
			slog.String("conn_id", connID),
			slog.String("error", err.Error()))
		h.toConn(connID, event, model.ErrorPayload{Message: failure})
		return
	}
	h.toRoom(req.AccessCode, event, teams)
}

// Collaborator calls, run off the loop

func (h *Handler) updateMoney(cmd *UpdateMoney) {
	code, winner := cmd.ID, cmd.WinnerPlayerName
	h.goBackground("update money", func(ctx context.Context) {
		h.sendBalances(ctx, h.rooms.Members(code), winner)
	})
}

func (h *Handler) gameEvaluation(cmd *GameEvaluation) {
	eval := cmd.GameEvaluation
	h.goBackground("game evaluation", func(ctx context.Context) {
		if err := h.storage.RecordGameEvaluation(ctx, eval); err != nil {
			h.logger.Error("failed to record game evaluation",
				slog.String("game_id", eval.GameID),
				slog.String("error", err.Error()))
		}
	})
}
