package dummydb

import (
	"sort"

	"github.com/google/uuid"

	"github.com/ensinoverso/backend/core"
	"github.com/ensinoverso/backend/core/lesson"
)

type lessonRepository struct {
	db *lessonTable
}

var _ lesson.Repository = (*lessonRepository)(nil) // interface compliance check

func NewLessonRepository(db *DB) lesson.Repository {
	return &lessonRepository{db: db.lesson}
}

func resultKey(studentID, lessonID string) string {
	return studentID + ":" + lessonID
}

func (repo *lessonRepository) query() []lesson.Lesson {
	lessons := make([]lesson.Lesson, 0, len(repo.db.lessons))
	for _, les := range repo.db.lessons {
		lessons = append(lessons, *les)
	}
	return lessons
}

func (repo *lessonRepository) CreateLesson(les lesson.Lesson, questions []lesson.Question) (lesson.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if les.ID == "" {
		les.ID = uuid.New().String()
	}
	repo.db.lessons[les.ID] = &les
	repo.db.questions[les.ID] = cloneQuestions(les.ID, questions)
	return les, nil
}

func (repo *lessonRepository) QueryAllLessons() ([]lesson.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.query(), nil
}

func (repo *lessonRepository) GetLessonByID(id string) (lesson.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if les, ok := repo.db.lessons[id]; ok {
		return *les, nil
	}
	return lesson.Lesson{}, lesson.ErrNotFound
}

func (repo *lessonRepository) GetLessonQuestions(lessonID string) ([]lesson.Question, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if _, ok := repo.db.lessons[lessonID]; !ok {
		return nil, lesson.ErrNotFound
	}
	return append([]lesson.Question(nil), repo.db.questions[lessonID]...), nil
}

func (repo *lessonRepository) FilterLessons(filter lesson.QueryFilter, ordering ...core.DBOrdering) ([]lesson.Lesson, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	lessons := repo.query()

	if filter.TeacherID != "" {
		var filtered []lesson.Lesson
		for _, les := range lessons {
			if les.TeacherID == filter.TeacherID {
				filtered = append(filtered, les)
			}
		}
		lessons = filtered
	}
	if lessons != nil && filter.Status != "" {
		var filtered []lesson.Lesson
		for _, les := range lessons {
			if les.Status == filter.Status {
				filtered = append(filtered, les)
			}
		}
		lessons = filtered
	}
	if lessons != nil && filter.ClassID != "" {
		var filtered []lesson.Lesson
		for _, les := range lessons {
			if core.Intersects(les.ClassIDs, []string{filter.ClassID}) {
				filtered = append(filtered, les)
			}
		}
		lessons = filtered
	}

	sortLessons(lessons, ordering)
	return lessons, nil
}

// sortLessons applies the requested ordering; keys are applied back to front
// so the first one wins. Unknown fields are ignored.
func sortLessons(lessons []lesson.Lesson, ordering []core.DBOrdering) {
	for i := len(ordering) - 1; i >= 0; i-- {
		ord := ordering[i]
		less := lessonLess(ord.Field)
		if less == nil {
			continue
		}
		sort.SliceStable(lessons, func(a, b int) bool {
			if ord.Ascending {
				return less(lessons[a], lessons[b])
			}
			return less(lessons[b], lessons[a])
		})
	}
}

func lessonLess(field string) func(a, b lesson.Lesson) bool {
	switch field {
	case "title":
		return func(a, b lesson.Lesson) bool { return a.Title < b.Title }
	case "subject":
		return func(a, b lesson.Lesson) bool { return a.Subject < b.Subject }
	case "school":
		return func(a, b lesson.Lesson) bool { return a.School < b.School }
	case "status":
		return func(a, b lesson.Lesson) bool { return a.Status < b.Status }
	case "created_at":
		return func(a, b lesson.Lesson) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated_at":
		return func(a, b lesson.Lesson) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
	return nil
}

func (repo *lessonRepository) UpdateLesson(les lesson.Lesson, questions []lesson.Question) (lesson.Lesson, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origLes, ok := repo.db.lessons[les.ID]
	if !ok {
		return lesson.Lesson{}, lesson.ErrNotFound
	}
	if les.Title != "" {
		origLes.Title = les.Title
	}
	if les.Body != "" {
		origLes.Body = les.Body
	}
	if les.School != "" {
		origLes.School = les.School
	}
	if les.Subject != "" {
		origLes.Subject = les.Subject
	}
	if les.ClassIDs != nil {
		origLes.ClassIDs = les.ClassIDs
	}
	if les.Status != "" {
		origLes.Status = les.Status
	}
	if les.Skills != nil {
		origLes.Skills = les.Skills
	}
	if les.Keywords != nil {
		origLes.Keywords = les.Keywords
	}
	if les.ExtraLinks != nil {
		origLes.ExtraLinks = les.ExtraLinks
	}
	if les.ImageURL != "" {
		origLes.ImageURL = les.ImageURL
	}
	if !les.UpdatedAt.IsZero() {
		origLes.UpdatedAt = les.UpdatedAt
	}

	repo.db.lessons[les.ID] = origLes
	if questions != nil {
		repo.db.questions[les.ID] = cloneQuestions(les.ID, questions)
	}
	return *origLes, nil
}

func (repo *lessonRepository) DeleteLessonsByID(ids ...string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, id := range ids {
		delete(repo.db.lessons, id)
		delete(repo.db.questions, id)
		for key, res := range repo.db.results {
			if res.LessonID == id {
				delete(repo.db.results, key)
			}
		}
	}
	return nil
}

func (repo *lessonRepository) CreateResult(res lesson.Result) (lesson.Result, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := resultKey(res.StudentID, res.LessonID)
	if _, ok := repo.db.results[key]; ok {
		return lesson.Result{}, lesson.ErrResultExists
	}
	if res.ID == "" {
		res.ID = uuid.New().String()
	}
	repo.db.results[key] = &res
	return res, nil
}

func (repo *lessonRepository) GetResult(studentID, lessonID string) (lesson.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if res, ok := repo.db.results[resultKey(studentID, lessonID)]; ok {
		return *res, nil
	}
	return lesson.Result{}, lesson.ErrResultNotFound
}

func (repo *lessonRepository) GetResultsByLesson(lessonID string) ([]lesson.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var results []lesson.Result
	for _, res := range repo.db.results {
		if res.LessonID == lessonID {
			results = append(results, *res)
		}
	}
	return results, nil
}

func (repo *lessonRepository) GetResultsByStudent(studentID string) ([]lesson.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var results []lesson.Result
	for _, res := range repo.db.results {
		if res.StudentID == studentID {
			results = append(results, *res)
		}
	}
	return results, nil
}

func cloneQuestions(lessonID string, questions []lesson.Question) []lesson.Question {
	cloned := make([]lesson.Question, 0, len(questions))
	for _, q := range questions {
		if q.ID == "" {
			q.ID = uuid.New().String()
		}
		q.LessonID = lessonID
		cloned = append(cloned, q)
	}
	return cloned
}
