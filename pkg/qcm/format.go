package qcm

import (
	"fmt"
	"math/rand/v2"
	"strings"
)

// formatMarkdown renders the quiz for display, with collapsible answers and
// numbered source citations. Choices are shuffled here; the JSON export keeps
// the correct answer first.
func formatMarkdown(items []Item, params Params) string {
	var lines []string
	lines = append(lines,
		fmt.Sprintf("# QCM: %s", params.Topic),
		fmt.Sprintf("**Difficulté:** %s", DifficultyLabel(params.Difficulty)),
		fmt.Sprintf("**Nombre de questions:** %d", len(items)),
		"",
		"---",
		"",
	)

	type sourceRef struct {
		number int
		title  string
		url    string
	}
	var allSources []sourceRef
	urlToNumber := make(map[string]int)

	for i, item := range items {
		type choice struct {
			text    string
			correct bool
		}
		choices := []choice{
			{item.RightChoice, true},
			{item.WrongChoice1, false},
			{item.WrongChoice2, false},
		}
		rand.Shuffle(len(choices), func(a, b int) {
			choices[a], choices[b] = choices[b], choices[a]
		})

		letters := []string{"A", "B", "C"}
		correctLetter := ""
		for j, c := range choices {
			if c.correct {
				correctLetter = letters[j]
			}
		}

		lines = append(lines,
			fmt.Sprintf("## Question %d", i+1),
			fmt.Sprintf("**%s**", item.Question),
			"",
		)
		for j, c := range choices {
			lines = append(lines, fmt.Sprintf("- **%s.** %s", letters[j], c.text))
		}

		lines = append(lines,
			"",
			"<details><summary>Voir la réponse</summary>",
			"",
			fmt.Sprintf("**Réponse correcte: %s**", correctLetter),
		)
		if item.SourceText != "" {
			lines = append(lines,
				"",
				"**Extrait source:**",
				"",
				"> "+strings.ReplaceAll(item.SourceText, "\n", "\n> "),
			)
		}
		if item.SourceURL != "" {
			number, seen := urlToNumber[item.SourceURL]
			if !seen {
				number = len(allSources) + 1
				urlToNumber[item.SourceURL] = number
				title := item.SourceTitle
				if title == "" {
					title = "Document"
				}
				allSources = append(allSources, sourceRef{number: number, title: title, url: item.SourceURL})
			}
			lines = append(lines,
				"",
				fmt.Sprintf("Source: [%d](%s)", number, item.SourceURL),
			)
		}
		lines = append(lines, "</details>", "", "---", "")
	}

	if len(allSources) > 0 {
		lines = append(lines, "", "## Sources", "")
		for _, src := range allSources {
			lines = append(lines, fmt.Sprintf("- [%d] [%s](%s)", src.number, src.title, src.url))
		}
		lines = append(lines, "")
	}

	return strings.Join(lines, "\n")
}

type quizSource struct {
	Text  string `json:"text"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type quizQuestion struct {
	Question string     `json:"question"`
	AnsList  []string   `json:"ans_list"`
	Source   quizSource `json:"source"`
}

type quizMetadata struct {
	Topic           string `json:"topic"`
	Difficulty      string `json:"difficulty"`
	DifficultyLabel string `json:"difficulty_label"`
	TotalQuestions  int    `json:"total_questions"`
	Note            string `json:"note"`
}

// Quiz is the downloadable JSON artifact. ans_list keeps the correct answer
// at index 0; consumers shuffle at render time.
type Quiz struct {
	Metadata  quizMetadata   `json:"metadata"`
	Questions []quizQuestion `json:"questions"`
}

func downloadable(items []Item, params Params) Quiz {
	questions := make([]quizQuestion, 0, len(items))
	for _, item := range items {
		questions = append(questions, quizQuestion{
			Question: item.Question,
			AnsList:  []string{item.RightChoice, item.WrongChoice1, item.WrongChoice2},
			Source: quizSource{
				Text:  item.SourceText,
				Title: item.SourceTitle,
				URL:   item.SourceURL,
			},
		})
	}
	return Quiz{
		Metadata: quizMetadata{
			Topic:           params.Topic,
			Difficulty:      params.Difficulty,
			DifficultyLabel: DifficultyLabel(params.Difficulty),
			TotalQuestions:  len(questions),
			Note:            "Dans ans_list, la premiere reponse (index 0) est toujours la bonne reponse",
		},
		Questions: questions,
	}
}
