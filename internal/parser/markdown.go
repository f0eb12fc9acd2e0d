package parser

import (
	"bufio"
	"io"
	"strings"

	"github.com/conorfennell/memodeck/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
)

// Field names of rows built from Markdown notes.
const (
	FieldQuestion = "question"
	FieldAnswer   = "answer"
	FieldContext  = "context"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingContext
)

type card struct {
	question, answer, context string
}

func (c card) row(index int) domain.Row {
	row := domain.NewRow(index, FieldQuestion, c.question, FieldAnswer, c.answer)
	if c.context != "" {
		row.Fields = append(row.Fields, domain.Field{Name: FieldContext, Value: c.context})
	}
	return row
}

// Parse reads Markdown Q:/A:/C: notes from an io.Reader and returns one
// row per card, indexed in order of appearance.
func Parse(r io.Reader) ([]domain.Row, error) {
	scanner := bufio.NewScanner(r)
	var rows []domain.Row
	var current card
	var block []string
	currentState := seeking

	flush := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(block, "\n"), " \t\n")
		switch currentState {
		case readingQuestion:
			current.question = content
		case readingAnswer:
			current.answer = content
		case readingContext:
			current.context = content
		}
		block = nil
	}

	finishCard := func() {
		flush()
		if current.question != "" {
			rows = append(rows, current.row(len(rows)))
		}
		current = card{}
		currentState = seeking
	}

	stripPrefix := func(line, prefix string) string {
		return strings.TrimPrefix(line[len(prefix):], " ")
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishCard()
			continue
		}

		switch {
		case strings.HasPrefix(line, questionPrefix):
			flush()
			if currentState != seeking { // A new question always starts a new card
				finishCard()
			}
			currentState = readingQuestion
			block = append(block, stripPrefix(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			flush()
			currentState = readingAnswer
			block = append(block, stripPrefix(line, answerPrefix))
		case strings.HasPrefix(line, contextPrefix):
			flush()
			currentState = readingContext
			block = append(block, stripPrefix(line, contextPrefix))
		default:
			if currentState != seeking {
				block = append(block, line)
			}
		}
	}

	finishCard() // Finish the very last card in the file

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
