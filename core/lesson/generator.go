package lesson

import (
	"context"

	"github.com/pkg/errors"
)

// ErrAIProcessingFailed signals that the content-generation collaborator
// failed or returned malformed output. The caller must not partially
// populate a lesson from such a response.
var ErrAIProcessingFailed = errors.New("content generation failed")

// GeneratedQuestionCount is the fixed number of questions the collaborator
// is asked to produce.
const GeneratedQuestionCount = 10

type (
	// GenerateInput is either raw text or an inline binary document.
	GenerateInput struct {
		Text     string
		Document []byte
		MimeType string
	}

	GeneratedQuestion struct {
		Prompt        string   `json:"prompt"`
		Choices       []string `json:"choices"`
		CorrectChoice int      `json:"correct_choice"`
	}

	// GeneratedLesson is the collaborator's structured output: a suggested
	// title, the literal cleaned transcript and a fixed-size quiz.
	GeneratedLesson struct {
		Title       string              `json:"title"`
		CleanedText string              `json:"cleaned_text"`
		Questions   []GeneratedQuestion `json:"questions"`
	}

	// Generator is the external content-generation collaborator. It is
	// treated as unreliable: any error maps to ErrAIProcessingFailed.
	Generator interface {
		Generate(ctx context.Context, in GenerateInput) (GeneratedLesson, error)
	}
)

func (in GenerateInput) IsEmpty() bool {
	return in.Text == "" && len(in.Document) == 0
}

// Validate checks the collaborator's output for shape: non-empty title and
// transcript, GeneratedQuestionCount questions of ChoiceCount choices each,
// with an in-range answer key.
func (gl GeneratedLesson) Validate() error {
	if gl.Title == "" || gl.CleanedText == "" {
		return errors.Wrap(ErrAIProcessingFailed, "empty title or transcript")
	}
	if len(gl.Questions) != GeneratedQuestionCount {
		return errors.Wrapf(ErrAIProcessingFailed, "expected %d questions, got %d", GeneratedQuestionCount, len(gl.Questions))
	}
	for i, q := range gl.Questions {
		if q.Prompt == "" || len(q.Choices) != ChoiceCount {
			return errors.Wrapf(ErrAIProcessingFailed, "malformed question at index %d", i)
		}
		if q.CorrectChoice < 0 || q.CorrectChoice >= ChoiceCount {
			return errors.Wrapf(ErrAIProcessingFailed, "answer key out of range at index %d", i)
		}
	}
	return nil
}
