package lesson

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/ensinoverso/backend/core"
	"github.com/ensinoverso/backend/core/user"
)

// Performance bands used for display only; never stored.
type Band string

const (
	BandCritical Band = "critical"
	BandMedium   Band = "medium"
	BandHigh     Band = "high"
)

// BandFor classifies a success rate: below 50 is critical, below 75 is
// medium, anything else is high.
func BandFor(rate float64) Band {
	switch {
	case rate < 50:
		return BandCritical
	case rate < 75:
		return BandMedium
	default:
		return BandHigh
	}
}

type (
	Participant struct {
		StudentID    string    `json:"student_id"`
		Name         string    `json:"name"`
		CorrectCount int       `json:"correct_count"`
		TotalCount   int       `json:"total_count"`
		Rate         float64   `json:"rate"`
		SubmittedAt  time.Time `json:"submitted_at"`
	}

	// Report is the per-lesson performance summary, optionally restricted to
	// one class. Its output is a valid input to a document exporter.
	Report struct {
		LessonID         string        `json:"lesson_id"`
		ClassID          string        `json:"class_id,omitempty"`
		ParticipantCount int           `json:"participant_count"`
		TotalQuestions   int           `json:"total_questions"`
		OverallRate      float64       `json:"overall_rate"`
		OverallBand      Band          `json:"overall_band"`
		PerQuestionRate  []float64     `json:"per_question_rate"`
		Participants     []Participant `json:"participants"`
	}
)

// Report aggregates the lesson's results into per-question and overall
// success rates. With filterClassID set, only results from students in that
// class count. All rates are 0 when there are no participants or questions.
func (svc *service) Report(lessonID, filterClassID string) (Report, error) {
	les, err := svc.repo.GetLessonByID(lessonID)
	if err != nil {
		return Report{}, err
	}
	results, err := svc.repo.GetResultsByLesson(les.ID)
	if err != nil {
		return Report{}, errors.Wrap(err, "getting lesson results")
	}
	users, err := svc.usrRepo.QueryAllUsers()
	if err != nil {
		return Report{}, errors.Wrap(err, "getting users")
	}
	names := make(map[string]string, len(users))
	classes := make(map[string][]string, len(users))
	for _, usr := range users {
		names[usr.ID] = usr.Name
		classes[usr.ID] = usr.ClassIDs
	}

	filtered := results
	if filterClassID != "" {
		filtered = make([]Result, 0, len(results))
		for _, res := range results {
			for _, clsID := range classes[res.StudentID] {
				if clsID == filterClassID {
					filtered = append(filtered, res)
					break
				}
			}
		}
	}

	// results are aligned with the question count at submission time;
	// fall back to the current quiz size when no one has submitted yet
	var totalQuestions int
	if len(results) > 0 {
		totalQuestions = results[0].TotalCount
	} else {
		questions, err := svc.repo.GetLessonQuestions(les.ID)
		if err != nil {
			return Report{}, errors.Wrap(err, "getting lesson questions")
		}
		totalQuestions = len(questions)
	}

	participantCount := len(filtered)

	perQuestionHits := make([]int, totalQuestions)
	var correctSum int
	for _, res := range filtered {
		correctSum += res.CorrectCount
		for i, ok := range res.PerQuestionCorrect {
			if ok && i < totalQuestions {
				perQuestionHits[i]++
			}
		}
	}

	var overall float64
	if participantCount > 0 && totalQuestions > 0 {
		overall = float64(correctSum) / float64(participantCount*totalQuestions) * 100
	}

	perQuestionRate := make([]float64, totalQuestions)
	if participantCount > 0 {
		for i, hits := range perQuestionHits {
			perQuestionRate[i] = float64(hits) / float64(participantCount) * 100
		}
	}

	participants := make([]Participant, 0, participantCount)
	for _, res := range filtered {
		var rate float64
		if res.TotalCount > 0 {
			rate = float64(res.CorrectCount) / float64(res.TotalCount) * 100
		}
		participants = append(participants, Participant{
			StudentID:    res.StudentID,
			Name:         names[res.StudentID],
			CorrectCount: res.CorrectCount,
			TotalCount:   res.TotalCount,
			Rate:         rate,
			SubmittedAt:  res.SubmittedAt,
		})
	}
	// best first; equal scores stay ordered by submission time
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].SubmittedAt.Before(participants[j].SubmittedAt)
	})
	sort.SliceStable(participants, func(i, j int) bool {
		return participants[i].CorrectCount > participants[j].CorrectCount
	})

	return Report{
		LessonID:         les.ID,
		ClassID:          filterClassID,
		ParticipantCount: participantCount,
		TotalQuestions:   totalQuestions,
		OverallRate:      overall,
		OverallBand:      BandFor(overall),
		PerQuestionRate:  perQuestionRate,
		Participants:     participants,
	}, nil
}

func (svc *service) EmailReport(teacher user.User, les Lesson, filterClassID string) error {
	report, err := svc.Report(les.ID, filterClassID)
	if err != nil {
		return err
	}

	csvDoc, err := renderReportCSV(report)
	if err != nil {
		return errors.Wrap(err, "rendering report")
	}

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: teacher.Name, Address: teacher.Email}},
		Subject: "Performance report: " + les.Title,
		BodyStr: fmt.Sprintf(
			"Hi %s,\n\nAttached is the performance report for \"%s\": "+
				"%d participant(s), overall success rate %.1f%% (%s).",
			teacher.Name, les.Title, report.ParticipantCount, report.OverallRate, report.OverallBand,
		),
	}
	if err := msg.Attach(bytes.NewReader(csvDoc), "report-"+les.ID+".csv", "text/csv"); err != nil {
		return errors.Wrap(err, "attaching report")
	}
	svc.mailSvc.SendMessages(msg)
	return nil
}

func renderReportCSV(report Report) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := csv.NewWriter(buf)

	records := [][]string{{"student_id", "name", "correct_count", "total_count", "rate"}}
	for _, p := range report.Participants {
		records = append(records, []string{
			p.StudentID,
			p.Name,
			strconv.Itoa(p.CorrectCount),
			strconv.Itoa(p.TotalCount),
			strconv.FormatFloat(p.Rate, 'f', 1, 64),
		})
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
