package dummydb

import (
	"sync"

	"github.com/ensinoverso/backend/core/lesson"
	"github.com/ensinoverso/backend/core/school"
	"github.com/ensinoverso/backend/core/user"
)

type (
	DB struct {
		user   *userTable
		school *schoolTable
		lesson *lessonTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	schoolTable struct {
		sync.RWMutex
		classes map[string]*school.Class
		skills  map[string][]school.Skill // keyed by component
	}

	lessonTable struct {
		sync.RWMutex
		lessons   map[string]*lesson.Lesson
		questions map[string][]lesson.Question // keyed by lesson ID
		results   map[string]*lesson.Result
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{table: make(map[string]*user.User)},
		school: &schoolTable{
			classes: make(map[string]*school.Class),
			skills:  make(map[string][]school.Skill),
		},
		lesson: &lessonTable{
			lessons:   make(map[string]*lesson.Lesson),
			questions: make(map[string][]lesson.Question),
			results:   make(map[string]*lesson.Result),
		},
	}
	return db, nil
}
