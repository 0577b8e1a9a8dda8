package echoapi

import (
	"encoding/base64"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ensinoverso/backend/core"
	"github.com/ensinoverso/backend/core/lesson"
	"github.com/ensinoverso/backend/core/user"
)

var errLesNotFoundInCtx = errors.New("lesson object not found in echo.Context")

type lessonApi struct {
	svc      lesson.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerLessonAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc lesson.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := lessonApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	lg := g.Group("/lessons", jwt, activeAccountMiddleware())

	lg.POST("", api.create, roleMiddleware(user.RoleTeacher))
	lg.GET("", api.query, roleMiddleware(user.RoleTeacher))
	lg.GET("/for-student", api.queryForStudent)
	lg.GET("/results", api.queryOwnResults)
	lg.POST("/generate", api.generate, roleMiddleware(user.RoleTeacher))

	// detail endpoints
	dg := lg.Group("/:id", api.lessonObjectMiddleware())
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, roleMiddleware(user.RoleTeacher))
	dg.DELETE("", api.destroy, roleMiddleware(user.RoleTeacher))
	dg.POST("/submit", api.submit)
	dg.GET("/report", api.report, roleMiddleware(user.RoleTeacher))
	dg.POST("/report/send", api.sendReport, roleMiddleware(user.RoleTeacher))
}

// lessonObjectMiddleware loads the target lesson into the context.
// Teachers only reach their own lessons; admins reach any.
func (api *lessonApi) lessonObjectMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			lwq, err := api.svc.GetByID(ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == lesson.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding lesson by ID")
			}

			ctxUsr, err := getContextUser(ctx, api.usrSvc)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if ctxUsr.IsTeacher() && lwq.Lesson.TeacherID != ctxUsr.ID {
				return errHttpNotFound
			}

			ctx.Set("object", lwq)
			return next(ctx)
		}
	}
}

// Handlers

func (api *lessonApi) create(ctx echo.Context) error {
	var data lesson.NewLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLesson")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lwq, err := api.svc.Create(ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating lesson")
	}
	return ctx.JSON(http.StatusCreated, lwq)
}

// query returns the calling teacher's own lessons; admins get everything.
func (api *lessonApi) query(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	var lessons []lesson.Lesson
	if ctxUsr.IsAdmin() {
		lessons, err = api.svc.QueryAll(ordering.Orderings...)
	} else {
		lessons, err = api.svc.ByTeacher(ctxUsr.ID, ordering.Orderings...)
	}
	if err != nil {
		return errors.Wrap(err, "querying lessons")
	}
	if lessons == nil {
		lessons = []lesson.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *lessonApi) queryForStudent(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	lessons, err := api.svc.ForStudent(ctxUsr)
	if err != nil {
		return errors.Wrap(err, "querying student lessons")
	}
	if lessons == nil {
		lessons = []lesson.Lesson{}
	}
	return ctx.JSON(http.StatusOK, lessons)
}

func (api *lessonApi) retrieve(ctx echo.Context) error {
	lwq, ok := ctx.Get("object").(lesson.LessonWithQuestions)
	if !ok {
		return errors.Wrap(errLesNotFoundInCtx, "retrieving object from context")
	}

	// students only see published lessons targeting their classes
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if ctxUsr.IsStudent() && !lwq.Lesson.VisibleTo(ctxUsr.ClassIDs) {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, lwq)
}

func (api *lessonApi) update(ctx echo.Context) error {
	lwq, ok := ctx.Get("object").(lesson.LessonWithQuestions)
	if !ok {
		return errors.Wrap(errLesNotFoundInCtx, "retrieving object from context")
	}

	var data lesson.UpdateLesson
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLesson")
	}
	if err := data.Validate(lwq.Lesson, api.validate); err != nil {
		return err
	}

	lwq, err := api.svc.Update(lwq.Lesson, data)
	if err != nil {
		return errors.Wrap(err, "updating lesson")
	}
	return ctx.JSON(http.StatusOK, lwq)
}

func (api *lessonApi) destroy(ctx echo.Context) error {
	lwq, ok := ctx.Get("object").(lesson.LessonWithQuestions)
	if !ok {
		return errors.Wrap(errLesNotFoundInCtx, "retrieving object from context")
	}

	if err := api.svc.Delete(lwq.Lesson.ID); err != nil {
		return errors.Wrap(err, "deleting lesson")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *lessonApi) submit(ctx echo.Context) error {
	lwq, ok := ctx.Get("object").(lesson.LessonWithQuestions)
	if !ok {
		return errors.Wrap(errLesNotFoundInCtx, "retrieving object from context")
	}

	var data lesson.SubmitAnswers
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitAnswers")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !ctxUsr.IsStudent() {
		return errHttpForbidden
	}

	res, err := api.svc.Submit(ctxUsr, lwq.Lesson.ID, data)
	if err != nil {
		switch errors.Cause(err) {
		case lesson.ErrIncompleteSubmission:
			return core.NewValidationError(nil, core.FieldError{Field: "answers", Error: lesson.ErrIncompleteSubmission.Error()})
		case lesson.ErrNotEnrolled:
			return errHttpForbidden
		}
		return errors.Wrap(err, "submitting answers")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *lessonApi) queryOwnResults(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	results, err := api.svc.ResultsByStudent(ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "querying results")
	}
	if results == nil {
		results = []lesson.Result{}
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *lessonApi) report(ctx echo.Context) error {
	lwq, ok := ctx.Get("object").(lesson.LessonWithQuestions)
	if !ok {
		return errors.Wrap(errLesNotFoundInCtx, "retrieving object from context")
	}

	report, err := api.svc.Report(lwq.Lesson.ID, ctx.QueryParam("class_id"))
	if err != nil {
		return errors.Wrap(err, "building report")
	}
	return ctx.JSON(http.StatusOK, report)
}

func (api *lessonApi) sendReport(ctx echo.Context) error {
	lwq, ok := ctx.Get("object").(lesson.LessonWithQuestions)
	if !ok {
		return errors.Wrap(errLesNotFoundInCtx, "retrieving object from context")
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err := api.svc.EmailReport(ctxUsr, lwq.Lesson, ctx.QueryParam("class_id")); err != nil {
		return errors.Wrap(err, "emailing report")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "The report has been emailed to you."})
}

func (api *lessonApi) generate(ctx echo.Context) error {
	var data GenerateRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to GenerateRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	in := lesson.GenerateInput{Text: data.Text, MimeType: data.MimeType}
	if data.Document != "" {
		doc, err := base64.StdEncoding.DecodeString(data.Document)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "document", Error: "invalid base64 payload"})
		}
		in.Document = doc
	}

	gl, err := api.svc.GenerateContent(ctx.Request().Context(), in)
	if err != nil {
		return errors.Wrap(err, "generating lesson content")
	}
	return ctx.JSON(http.StatusOK, gl)
}

type GenerateRequest struct {
	Text     string `json:"text"`
	Document string `json:"document"` // base64
	MimeType string `json:"mime_type" validate:"required_with=Document"`
}

func (gr *GenerateRequest) Validate(validate *validator.Validate) error {
	if gr.Text == "" && gr.Document == "" {
		return core.NewValidationError(errors.New("either text or document is required"))
	}
	return validate.Struct(gr)
}
