package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Standard point ladder for a board column. Categories missing a value
// are padded with a placeholder so the board always renders a full grid.
var standardValues = []int{200, 400, 600, 800, 1000}

type Question struct {
	Category string `json:"category"`
	Value    int    `json:"value"`
	Prompt   string `json:"question"`
	Answer   string `json:"answer"`
	IsDaily  bool   `json:"isDaily"`
}

// ParseQuestionsCSV reads question rows from r. Column names are matched
// case-insensitively ("Points" and "Value" are interchangeable), rows with
// missing or malformed fields are skipped rather than failing the upload.
func ParseQuestionsCSV(r io.Reader) ([]Question, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}

	field := func(row []string, names ...string) string {
		for _, name := range names {
			if i, ok := columns[name]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
		}
		return ""
	}

	var questions []Question

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv row: %w", err)
		}

		value, err := strconv.Atoi(field(row, "points", "value"))
		if err != nil {
			continue
		}

		question := Question{
			Category: field(row, "category"),
			Value:    value,
			Prompt:   field(row, "question"),
			Answer:   field(row, "answer"),
			IsDaily:  strings.EqualFold(field(row, "isdaily"), "true"),
		}

		if question.Category == "" || question.Prompt == "" || question.Answer == "" {
			continue
		}

		questions = append(questions, question)
	}

	if len(questions) == 0 {
		return nil, fmt.Errorf("no valid questions found in csv")
	}

	return organizeQuestions(questions), nil
}

// organizeQuestions groups questions by category in first-seen order and
// pads each category to the standard point ladder with placeholders.
func organizeQuestions(questions []Question) []Question {
	categories := []string{}
	byCategory := make(map[string][]Question)

	for _, q := range questions {
		if _, ok := byCategory[q.Category]; !ok {
			categories = append(categories, q.Category)
		}
		byCategory[q.Category] = append(byCategory[q.Category], q)
	}

	organized := make([]Question, 0, len(categories)*len(standardValues))

	for _, category := range categories {
		for _, value := range standardValues {
			found := false
			for _, q := range byCategory[category] {
				if q.Value == value {
					organized = append(organized, q)
					found = true
					break
				}
			}
			if !found {
				organized = append(organized, Question{
					Category: category,
					Value:    value,
					Prompt:   fmt.Sprintf("Placeholder question for %s - $%d", category, value),
					Answer:   "Placeholder answer",
				})
			}
		}
	}

	return organized
}

// DefaultQuestions returns the built-in thirty-question set, six
// categories across the standard ladder.
func DefaultQuestions() []Question {
	return []Question{
		{Category: "Science", Value: 200, Prompt: "This planet is known as the Red Planet", Answer: "What is Mars?"},
		{Category: "Science", Value: 400, Prompt: "The chemical symbol for gold", Answer: "What is Au?"},
		{Category: "Science", Value: 600, Prompt: "The number of bones in an adult human body", Answer: "What is 206?"},
		{Category: "Science", Value: 800, Prompt: "The scientist who developed the theory of evolution", Answer: "Who is Charles Darwin?"},
		{Category: "Science", Value: 1000, Prompt: "The speed of light in a vacuum in meters per second", Answer: "What is 299,792,458 m/s?"},

		{Category: "History", Value: 200, Prompt: "The year Christopher Columbus arrived in the Americas", Answer: "What is 1492?"},
		{Category: "History", Value: 400, Prompt: "The first President of the United States", Answer: "Who is George Washington?"},
		{Category: "History", Value: 600, Prompt: "The ancient wonder of the world still standing today", Answer: "What are the Great Pyramids of Giza?"},
		{Category: "History", Value: 800, Prompt: "The year World War II ended", Answer: "What is 1945?"},
		{Category: "History", Value: 1000, Prompt: "The empire that built Machu Picchu", Answer: "What is the Inca Empire?"},

		{Category: "Geography", Value: 200, Prompt: "The capital of France", Answer: "What is Paris?"},
		{Category: "Geography", Value: 400, Prompt: "The longest river in the world", Answer: "What is the Nile?"},
		{Category: "Geography", Value: 600, Prompt: "The number of continents on Earth", Answer: "What is 7?"},
		{Category: "Geography", Value: 800, Prompt: "The smallest country in the world", Answer: "What is Vatican City?"},
		{Category: "Geography", Value: 1000, Prompt: "The deepest point in the ocean", Answer: "What is the Mariana Trench?"},

		{Category: "Technology", Value: 200, Prompt: "The acronym CPU stands for this", Answer: "What is Central Processing Unit?"},
		{Category: "Technology", Value: 400, Prompt: "The company that created the iPhone", Answer: "What is Apple?"},
		{Category: "Technology", Value: 600, Prompt: "The programming language created by Guido van Rossum", Answer: "What is Python?"},
		{Category: "Technology", Value: 800, Prompt: "The year Facebook was founded", Answer: "What is 2004?"},
		{Category: "Technology", Value: 1000, Prompt: "The inventor of the World Wide Web", Answer: "Who is Tim Berners-Lee?"},

		{Category: "Literature", Value: 200, Prompt: "The author of \"Romeo and Juliet\"", Answer: "Who is William Shakespeare?"},
		{Category: "Literature", Value: 400, Prompt: "The boy wizard created by J.K. Rowling", Answer: "Who is Harry Potter?"},
		{Category: "Literature", Value: 600, Prompt: "The author of \"1984\"", Answer: "Who is George Orwell?"},
		{Category: "Literature", Value: 800, Prompt: "The epic poem about the fall of Troy", Answer: "What is The Iliad?"},
		{Category: "Literature", Value: 1000, Prompt: "The Russian author of \"War and Peace\"", Answer: "Who is Leo Tolstoy?"},

		{Category: "Pop Culture", Value: 200, Prompt: "The highest-grossing film of all time (not adjusted for inflation)", Answer: "What is Avatar (2009)?"},
		{Category: "Pop Culture", Value: 400, Prompt: "The streaming service that produced \"Stranger Things\"", Answer: "What is Netflix?"},
		{Category: "Pop Culture", Value: 600, Prompt: "The artist known as \"The King of Pop\"", Answer: "Who is Michael Jackson?"},
		{Category: "Pop Culture", Value: 800, Prompt: "The year the first Star Wars movie was released", Answer: "What is 1977?"},
		{Category: "Pop Culture", Value: 1000, Prompt: "The host of Jeopardy! from 1984 to 2020", Answer: "Who is Alex Trebek?"},
	}
}
