package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/ensinoverso/backend/core/school"
	"github.com/ensinoverso/backend/core/user"
)

type schoolApi struct {
	svc      school.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerSchoolAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc school.Service,
	usrSvc user.Service,
	validate *validator.Validate,
) {
	api := schoolApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	cg := g.Group("/classes", jwt, activeAccountMiddleware())
	cg.POST("", api.create, adminMiddleware())
	cg.GET("", api.query)
	cg.DELETE("", api.destroyMultiple, adminMiddleware())
	cg.GET("/manageable", api.queryManageable, roleMiddleware(user.RoleTeacher))
	cg.GET("/:id", api.retrieve)
	cg.PUT("/:id", api.update, adminMiddleware())
	cg.DELETE("/:id", api.destroy, adminMiddleware())

	sg := g.Group("/skills", jwt, activeAccountMiddleware())
	sg.GET("", api.querySkills, roleMiddleware(user.RoleTeacher))
	sg.PUT("", api.saveSkills, adminMiddleware())
}

// Handlers

func (api *schoolApi) create(ctx echo.Context) error {
	var data school.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.svc.Create(data)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *schoolApi) query(ctx echo.Context) error {
	classes, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

// queryManageable returns the classes the calling teacher may act on.
func (api *schoolApi) queryManageable(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var classes []school.Class
	if ctxUsr.IsAdmin() {
		classes, err = api.svc.QueryAll()
	} else {
		classes, err = api.svc.ManageableBy(ctxUsr)
	}
	if err != nil {
		return errors.Wrap(err, "querying manageable classes")
	}
	if classes == nil {
		classes = []school.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) retrieve(ctx echo.Context) error {
	cls, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) update(ctx echo.Context) error {
	cls, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting class")
	}

	var data school.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(cls, api.validate); err != nil {
		return err
	}

	cls, err = api.svc.Update(cls.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) destroy(ctx echo.Context) error {
	if _, err := api.svc.GetByID(ctx.Param("id")); err != nil {
		if errors.Cause(err) == school.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting class")
	}
	if err := api.svc.Delete(ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting class")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}
	if err := api.svc.Delete(query.IDs...); err != nil {
		return errors.Wrap(err, "deleting classes")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) querySkills(ctx echo.Context) error {
	skills, err := api.svc.Skills()
	if err != nil {
		return errors.Wrap(err, "querying skills")
	}
	return ctx.JSON(http.StatusOK, skills)
}

func (api *schoolApi) saveSkills(ctx echo.Context) error {
	var data school.SaveSkills
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveSkills")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.SaveSkills(data); err != nil {
		return errors.Wrap(err, "saving skills")
	}
	return ctx.JSON(http.StatusOK, data)
}
