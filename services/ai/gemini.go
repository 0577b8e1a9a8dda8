package aisvc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/ensinoverso/backend/core"
	"github.com/ensinoverso/backend/core/lesson"
)

const extractionPrompt = `You are a high-precision data extraction engine and pedagogical assistant. Your task has three mandatory parts:

PART 1: TITLE GENERATION
Create a short, engaging, pedagogical title for the lesson based on the main content.

PART 2: TEXT EXTRACTION
Transcribe the complete, integral text of this document (PDF or raw text) exactly as it appears.
Do NOT summarize. Do NOT adapt. Do NOT omit parts.
The goal is a literal extraction of the original content, fixing only obvious character-encoding (OCR) errors.

PART 3: QUESTION GENERATION
Based strictly on the extracted content, generate exactly 10 multiple-choice questions (A, B, C, D).
The 'correct_choice' field must be an index from 0 to 3 (0=A, 1=B, 2=C, 3=D).

Return the data strictly in the JSON format defined by the schema.`

type (
	geminiService struct {
		client *resty.Client
		model  string
	}

	genContentRequest struct {
		Contents         []genContent      `json:"contents"`
		GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
	}
	genContent struct {
		Parts []genPart `json:"parts"`
	}
	genPart struct {
		Text       string        `json:"text,omitempty"`
		InlineData *genInlineData `json:"inlineData,omitempty"`
	}
	genInlineData struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"` // base64
	}
	generationConfig struct {
		ResponseMimeType string          `json:"responseMimeType,omitempty"`
		ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
	}

	genContentResponse struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
)

var _ lesson.Generator = (*geminiService)(nil)

// lessonSchema constrains the model output to the GeneratedLesson shape.
var lessonSchema = json.RawMessage(`{
  "type": "OBJECT",
  "properties": {
    "title": {"type": "STRING", "description": "Suggested pedagogical lesson title"},
    "cleaned_text": {"type": "STRING", "description": "The integral, literal text extracted from the original document"},
    "questions": {
      "type": "ARRAY",
      "items": {
        "type": "OBJECT",
        "properties": {
          "prompt": {"type": "STRING"},
          "choices": {"type": "ARRAY", "items": {"type": "STRING"}, "minItems": 4, "maxItems": 4},
          "correct_choice": {"type": "INTEGER"}
        },
        "required": ["prompt", "choices", "correct_choice"]
      }
    }
  },
  "required": ["title", "cleaned_text", "questions"]
}`)

func NewGeminiService(conf *core.Config) lesson.Generator {
	client := resty.New().
		SetHostURL(conf.AI.BaseURL).
		SetTimeout(conf.AI.Timeout).
		SetQueryParam("key", conf.AI.APIKey).
		SetHeader("Content-Type", "application/json")
	return &geminiService{client: client, model: conf.AI.Model}
}

func (svc geminiService) Generate(ctx context.Context, in lesson.GenerateInput) (lesson.GeneratedLesson, error) {
	var gl lesson.GeneratedLesson
	if in.IsEmpty() {
		return gl, errors.Wrap(lesson.ErrAIProcessingFailed, "empty input")
	}

	parts := make([]genPart, 0, 2)
	if len(in.Document) > 0 {
		parts = append(parts, genPart{InlineData: &genInlineData{
			MimeType: in.MimeType,
			Data:     base64.StdEncoding.EncodeToString(in.Document),
		}})
	} else {
		parts = append(parts, genPart{Text: in.Text})
	}
	parts = append(parts, genPart{Text: extractionPrompt})

	req := genContentRequest{
		Contents: []genContent{{Parts: parts}},
		GenerationConfig: &generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   lessonSchema,
		},
	}

	var res genContentResponse
	resp, err := svc.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&res).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", svc.model))
	if err != nil {
		return gl, errors.Wrap(lesson.ErrAIProcessingFailed, err.Error())
	}
	if resp.StatusCode() != http.StatusOK {
		if res.Error != nil {
			return gl, errors.Wrapf(lesson.ErrAIProcessingFailed, "status %d: %s", res.Error.Code, res.Error.Message)
		}
		return gl, errors.Wrapf(lesson.ErrAIProcessingFailed, "status %d", resp.StatusCode())
	}
	if len(res.Candidates) == 0 || len(res.Candidates[0].Content.Parts) == 0 {
		return gl, errors.Wrap(lesson.ErrAIProcessingFailed, "no candidates returned")
	}

	if err := json.Unmarshal([]byte(res.Candidates[0].Content.Parts[0].Text), &gl); err != nil {
		return gl, errors.Wrap(lesson.ErrAIProcessingFailed, "decoding model output")
	}
	if err := gl.Validate(); err != nil {
		return gl, err
	}
	return gl, nil
}
