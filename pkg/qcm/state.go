// Package qcm implements the multiple-choice quiz generator: a conversational
// parameter-collection state machine followed by two-phase LLM generation
// grounded in retrieved chunks.
package qcm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/mentora-ai/mentora/pkg/llms"
)

// State of the parameter-collection conversation.
type State int

const (
	StateAskTopic State = iota
	StateAskDifficulty
	StateAskCount
	StateConfirm
	StateRunning
)

const (
	maxCount = 50

	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Params are the confirmed generation parameters.
type Params struct {
	Topic      string
	Difficulty string
	Count      int
}

// Replay runs the state machine over the full message history and returns the
// resulting state, the collected parameters, and the reply to show the user
// when the machine is not yet running. The machine is pure: the same history
// always yields the same outcome.
func Replay(messages []llms.Message) (State, Params, string) {
	state := StateAskTopic
	var params Params
	malformed := false

	for _, msg := range messages {
		if msg.Role != "user" {
			continue
		}
		text := strings.TrimSpace(msg.Content)
		malformed = false

		switch state {
		case StateAskTopic:
			if text == "" {
				malformed = true
				continue
			}
			params.Topic = text
			state = StateAskDifficulty

		case StateAskDifficulty:
			difficulty, ok := parseDifficulty(text)
			if !ok {
				malformed = true
				continue
			}
			params.Difficulty = difficulty
			state = StateAskCount

		case StateAskCount:
			count, ok := parseCount(text)
			if !ok {
				malformed = true
				continue
			}
			params.Count = count
			state = StateConfirm

		case StateConfirm:
			switch {
			case isAffirmative(text):
				state = StateRunning
			case isNegative(text):
				params = Params{}
				state = StateAskTopic
			default:
				malformed = true
			}

		case StateRunning:
			// Terminal; later messages belong to a finished quiz.
		}
	}

	return state, params, replyFor(state, params, malformed)
}

func replyFor(state State, params Params, malformed bool) string {
	var prompt string
	switch state {
	case StateAskTopic:
		prompt = "Sur quel sujet souhaitez-vous générer un QCM ?"
	case StateAskDifficulty:
		prompt = "Quelle difficulté souhaitez-vous ? (facile, moyen, difficile)"
	case StateAskCount:
		prompt = fmt.Sprintf("Combien de questions ? (entre 1 et %d)", maxCount)
	case StateConfirm:
		prompt = fmt.Sprintf(
			"Récapitulatif :\n- Sujet : %s\n- Difficulté : %s\n- Questions : %d\n\nConfirmez-vous la génération ? (oui/non)",
			params.Topic, DifficultyLabel(params.Difficulty), params.Count)
	case StateRunning:
		return ""
	}
	if malformed {
		return "Je n'ai pas compris votre réponse. " + prompt
	}
	return prompt
}

// DifficultyLabel returns the French display label.
func DifficultyLabel(difficulty string) string {
	switch difficulty {
	case DifficultyEasy:
		return "Facile"
	case DifficultyMedium:
		return "Moyen"
	case DifficultyHard:
		return "Difficile"
	}
	return difficulty
}

func parseDifficulty(text string) (string, bool) {
	switch normalize(text) {
	case "facile", "simple", "easy":
		return DifficultyEasy, true
	case "moyen", "moyenne", "intermédiaire", "intermediaire", "medium":
		return DifficultyMedium, true
	case "difficile", "dur", "avancé", "avance", "hard":
		return DifficultyHard, true
	}
	return "", false
}

func parseCount(text string) (int, bool) {
	fields := strings.Fields(text)
	for _, f := range fields {
		if n, err := strconv.Atoi(strings.Trim(f, ".,!?")); err == nil {
			if n >= 1 && n <= maxCount {
				return n, true
			}
			return 0, false
		}
	}
	return 0, false
}

var affirmatives = map[string]bool{
	"oui": true, "yes": true, "ok": true, "d'accord": true,
	"parfait": true, "c'est bon": true, "lance": true, "go": true,
	"confirme": true, "je confirme": true, "allez": true,
}

var negatives = map[string]bool{
	"non": true, "no": true, "annule": true, "annuler": true,
	"recommence": true, "recommencer": true, "change": true, "changer": true,
}

func isAffirmative(text string) bool {
	return affirmatives[normalize(text)]
}

func isNegative(text string) bool {
	return negatives[normalize(text)]
}

func normalize(text string) string {
	s := strings.ToLower(strings.TrimSpace(text))
	return strings.Trim(s, ".,!? ")
}
